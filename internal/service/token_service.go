package service

import (
	"errors"
	"fmt"
	"time"

	"zimba-booking/internal/core/domain"
	"zimba-booking/internal/core/ports"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// accessClaims is the JWT body issued to renters, landlords and admins.
type accessClaims struct {
	Role     string `json:"role"`
	Diaspora bool   `json:"diaspora,omitempty"`
	jwt.RegisteredClaims
}

// JWTTokenService issues and verifies HS256 access tokens.
type JWTTokenService struct {
	secret []byte
	expiry time.Duration
	issuer string
	parser *jwt.Parser
}

func NewJWTTokenService(secret string, expiry time.Duration, issuer string) *JWTTokenService {
	return &JWTTokenService{
		secret: []byte(secret),
		expiry: expiry,
		issuer: issuer,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(issuer),
			jwt.WithExpirationRequired(),
			jwt.WithIssuedAt(),
		),
	}
}

// Generate signs a token carrying the caller's role and diaspora flag.
func (s *JWTTokenService) Generate(tc ports.TokenClaims) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.expiry)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims{
		Role:     string(tc.Role),
		Diaspora: tc.Diaspora,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   tc.UserID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing token: %w", err)
	}
	return signed, expiresAt, nil
}

// Validate verifies signature, issuer and expiry, then the role.
func (s *JWTTokenService) Validate(tokenString string) (*ports.TokenClaims, error) {
	var claims accessClaims
	if _, err := s.parser.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}); err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}

	if claims.Subject == "" {
		return nil, errors.New("missing subject claim")
	}
	role := domain.Role(claims.Role)
	if !role.IsValid() {
		return nil, fmt.Errorf("invalid role in token: %q", claims.Role)
	}

	return &ports.TokenClaims{
		UserID:   claims.Subject,
		Role:     role,
		Diaspora: claims.Diaspora,
	}, nil
}
