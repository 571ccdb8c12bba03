package ports

//go:generate mockgen -source=services.go -destination=mocks/mock_services.go -package=mocks

import (
	"context"
	"time"

	"zimba-booking/internal/core/domain"

	"github.com/shopspring/decimal"
)

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(claims TokenClaims) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	UserID   string
	Role     domain.Role
	Diaspora bool
}

// Actor converts the claims into the identity services act on.
func (c TokenClaims) Actor() domain.Actor {
	return domain.Actor{UserID: c.UserID, Role: c.Role, Diaspora: c.Diaspora}
}

// IdempotencyCache is the Redis-layer replay check for confirmations (fast path).
// The first value stored for a key wins; later Sets leave it untouched.
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached response JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// FlowStore keeps checkout sessions between requests.
type FlowStore interface {
	Save(ctx context.Context, flow *domain.BookingFlow, ttl time.Duration) error
	Get(ctx context.Context, sessionID string) (*domain.BookingFlow, error) // nil when absent or expired
}

// ConfirmGuard serialises payment confirmation per checkout session.
type ConfirmGuard interface {
	// Acquire returns false when another confirmation holds the session.
	Acquire(ctx context.Context, sessionID string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, sessionID string) error
}

// RateLimitStore counts requests per key in fixed windows.
type RateLimitStore interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (*RateLimitResult, error)
}

// RateLimitResult holds the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   int64 // Unix timestamp
}

// SettlementStatus is the provider's verdict on a settlement attempt.
type SettlementStatus string

const (
	SettlementSucceeded SettlementStatus = "succeeded"
	SettlementDeclined  SettlementStatus = "declined"
)

// SettlementRequest is what a payment provider needs to move the funds into escrow.
// IdempotencyKey is unique per attempt; resending it must not charge again.
type SettlementRequest struct {
	SessionID      string
	IdempotencyKey string
	RenterID       string
	PropertyID     string
	Amount         domain.Money
	Description    string
}

// SettlementResult carries the provider reference or the decline reason.
type SettlementResult struct {
	Status        SettlementStatus
	Reference     string
	FailureReason string
}

// Settler moves a renter's payment into escrow.
type Settler interface {
	Settle(ctx context.Context, req SettlementRequest) (*SettlementResult, error)
	Name() string
}

// --- Service Ports (Business Logic) ---

// CheckoutService drives a renter through DETAILS -> PAYMENT -> CONFIRMED.
type CheckoutService interface {
	QuoteFees(req FeeQuoteRequest) (*domain.FeeBreakdown, error)
	Start(ctx context.Context, req StartCheckoutRequest) (*domain.BookingFlow, error)
	Get(ctx context.Context, sessionID string, actor domain.Actor) (*domain.BookingFlow, error)
	Advance(ctx context.Context, sessionID string, actor domain.Actor) (*domain.BookingFlow, error)
	Retreat(ctx context.Context, sessionID string, actor domain.Actor) (*domain.BookingFlow, error)
	ConfirmPayment(ctx context.Context, sessionID string, actor domain.Actor) (*domain.BookingRecord, error)
}

// FeeQuoteRequest holds raw fee calculator input. Nil rates fall back to configuration.
type FeeQuoteRequest struct {
	Amount             decimal.Decimal
	Currency           string
	CommissionRate     *float64
	DiasporaFeeApplied bool
	DiasporaFeeRate    *float64
}

// StartCheckoutRequest opens a checkout for a catalog property.
type StartCheckoutRequest struct {
	Actor      domain.Actor
	PropertyID string
	StartDate  time.Time
	EndDate    time.Time
}

// EscrowService mutates a booking's escrow state through explicit transitions.
type EscrowService interface {
	MarkMoveInPending(ctx context.Context, bookingID string, actor domain.Actor) (*domain.BookingRecord, error)
	ConfirmKeys(ctx context.Context, bookingID string, actor domain.Actor) (*domain.BookingRecord, error)
	OpenDispute(ctx context.Context, bookingID string, actor domain.Actor, reason string) (*domain.BookingRecord, error)
	Transition(ctx context.Context, req EscrowTransitionRequest) (*domain.BookingRecord, error)
	GetTimeline(ctx context.Context, bookingID string, actor domain.Actor) (*BookingTimeline, error)
}

// EscrowTransitionRequest moves a booking to Target.
type EscrowTransitionRequest struct {
	BookingID string
	Target    domain.EscrowState
	Actor     domain.Actor
	Reason    string
	ClientIP  string
}

// BookingTimeline is a booking with its rendered escrow timeline and history.
type BookingTimeline struct {
	Booking *domain.BookingRecord
	View    domain.TimelineView
	Events  []domain.EscrowEvent
}

// ReportingService defines dashboard/reporting business logic.
type ReportingService interface {
	ListBookings(ctx context.Context, actor domain.Actor, params BookingListParams) ([]domain.BookingRecord, int64, error)
	GetBooking(ctx context.Context, bookingID string, actor domain.Actor) (*domain.BookingRecord, error)
	GetDashboardStats(ctx context.Context, actor domain.Actor, period string) (*BookingStats, error)
}

// AuditService records security and business audit events.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}
