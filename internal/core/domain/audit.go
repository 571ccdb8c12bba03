package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionCheckoutStarted  AuditAction = "CHECKOUT_STARTED"
	AuditActionBookingConfirmed AuditAction = "BOOKING_CONFIRMED"
	AuditActionSettlementFailed AuditAction = "SETTLEMENT_FAILED"
	AuditActionEscrowTransition AuditAction = "ESCROW_TRANSITION"
	AuditActionDisputeOpened    AuditAction = "DISPUTE_OPENED"
	AuditActionAccessDenied     AuditAction = "ACCESS_DENIED"
)

// AuditLog records a single audited action in the system.
type AuditLog struct {
	ID           uuid.UUID   `json:"id"`
	ActorID      *string     `json:"actor_id,omitempty"`
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id,omitempty"`
	Details      string      `json:"details,omitempty"` // JSON string
	IPAddress    string      `json:"ip_address"`
	CreatedAt    time.Time   `json:"created_at"`
}
