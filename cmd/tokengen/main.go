// Command tokengen issues a bearer token for local testing, signed with the
// configured JWT secret.
//
//	go run ./cmd/tokengen -sub renter_ama -role renter -diaspora
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"zimba-booking/config"
	"zimba-booking/internal/core/domain"
	"zimba-booking/internal/core/ports"
	"zimba-booking/internal/service"
)

func main() {
	sub := flag.String("sub", "", "user id (token subject)")
	role := flag.String("role", string(domain.RoleRenter), "renter, landlord or admin")
	diaspora := flag.Bool("diaspora", false, "mark the user as diaspora")
	expiry := flag.Duration("expiry", 0, "token lifetime (defaults to jwt.expiry)")
	flag.Parse()

	if err := run(*sub, domain.Role(*role), *diaspora, *expiry); err != nil {
		fmt.Fprintf(os.Stderr, "tokengen: %v\n", err)
		os.Exit(1)
	}
}

func run(sub string, role domain.Role, diaspora bool, expiry time.Duration) error {
	if sub == "" {
		return fmt.Errorf("-sub is required")
	}
	if !role.IsValid() {
		return fmt.Errorf("unknown role %q", role)
	}

	if err := config.LoadEnv(); err != nil {
		return err
	}
	cfg, err := config.Load(os.Getenv("ZMB_CONFIG_FILE"))
	if err != nil {
		return err
	}
	if cfg.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is not configured")
	}
	if expiry <= 0 {
		expiry = cfg.JWT.Expiry
	}

	tokens := service.NewJWTTokenService(cfg.JWT.Secret, expiry, cfg.JWT.Issuer)
	token, expiresAt, err := tokens.Generate(ports.TokenClaims{UserID: sub, Role: role, Diaspora: diaspora})
	if err != nil {
		return err
	}

	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires %s\n", expiresAt.Format(time.RFC3339))
	return nil
}
