package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"zimba-booking/internal/core/domain"
	"zimba-booking/internal/core/ports"
	"zimba-booking/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// EscrowServiceImpl implements ports.EscrowService. Every state change runs
// under a row lock and leaves an escrow event behind.
type EscrowServiceImpl struct {
	bookings   ports.BookingRepository
	events     ports.EscrowEventRepository
	transactor ports.DBTransactor
	audit      ports.AuditService
	now        func() time.Time
	log        zerolog.Logger
}

// NewEscrowService creates a new EscrowServiceImpl.
func NewEscrowService(
	bookings ports.BookingRepository,
	events ports.EscrowEventRepository,
	transactor ports.DBTransactor,
	audit ports.AuditService,
	log zerolog.Logger,
) *EscrowServiceImpl {
	return &EscrowServiceImpl{
		bookings:   bookings,
		events:     events,
		transactor: transactor,
		audit:      audit,
		now:        func() time.Time { return time.Now().UTC() },
		log:        log,
	}
}

// MarkMoveInPending is the landlord's signal that the unit is ready.
func (s *EscrowServiceImpl) MarkMoveInPending(ctx context.Context, bookingID string, actor domain.Actor) (*domain.BookingRecord, error) {
	return s.Transition(ctx, ports.EscrowTransitionRequest{
		BookingID: bookingID,
		Target:    domain.EscrowStateMoveInPending,
		Actor:     actor,
	})
}

// ConfirmKeys is the renter confirming key handover, which completes the escrow.
func (s *EscrowServiceImpl) ConfirmKeys(ctx context.Context, bookingID string, actor domain.Actor) (*domain.BookingRecord, error) {
	return s.Transition(ctx, ports.EscrowTransitionRequest{
		BookingID: bookingID,
		Target:    domain.EscrowStateCompleted,
		Actor:     actor,
	})
}

// OpenDispute freezes the escrow. There is no way out of dispute in the core.
func (s *EscrowServiceImpl) OpenDispute(ctx context.Context, bookingID string, actor domain.Actor, reason string) (*domain.BookingRecord, error) {
	return s.Transition(ctx, ports.EscrowTransitionRequest{
		BookingID: bookingID,
		Target:    domain.EscrowStateDispute,
		Actor:     actor,
		Reason:    reason,
	})
}

// Transition moves a booking's escrow to req.Target.
func (s *EscrowServiceImpl) Transition(ctx context.Context, req ports.EscrowTransitionRequest) (*domain.BookingRecord, error) {
	if !req.Target.IsValid() {
		return nil, apperror.Validation(fmt.Sprintf("unknown escrow state %q", req.Target))
	}
	req.Reason = strings.TrimSpace(req.Reason)
	if req.Target == domain.EscrowStateDispute && req.Reason == "" {
		return nil, apperror.ErrDisputeReasonRequired()
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	booking, err := s.bookings.GetByIDForUpdate(ctx, dbTx, req.BookingID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("lock booking: %w", err))
	}
	if booking == nil {
		return nil, apperror.ErrNotFound("booking")
	}
	if !mayTransition(req.Actor, booking, req.Target) {
		return nil, apperror.ErrForbidden()
	}

	from := booking.EscrowState
	if !domain.CanTransition(from, req.Target) {
		return nil, apperror.ErrInvalidEscrowTransition(string(from), string(req.Target))
	}

	now := s.now()
	if err := s.bookings.UpdateEscrowState(ctx, dbTx, booking.ID, req.Target, now); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("update escrow state: %w", err))
	}
	event := &domain.EscrowEvent{
		ID:         uuid.New(),
		BookingID:  booking.ID,
		FromState:  from,
		ToState:    req.Target,
		Actor:      req.Actor.UserID,
		Reason:     req.Reason,
		OccurredAt: now,
	}
	if err := s.events.Append(ctx, dbTx, event); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("append escrow event: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	booking.EscrowState = req.Target
	booking.UpdatedAt = now

	action := domain.AuditActionEscrowTransition
	if req.Target == domain.EscrowStateDispute {
		action = domain.AuditActionDisputeOpened
	}
	s.audit.Log(ctx, newAuditEntry(action, req.Actor, "booking", booking.ID, req.ClientIP, map[string]any{
		"from":   from,
		"to":     req.Target,
		"reason": req.Reason,
	}, now))

	s.log.Info().
		Str("booking_id", booking.ID).
		Str("escrow_from", string(from)).
		Str("escrow_to", string(req.Target)).
		Str("actor_id", req.Actor.UserID).
		Msg("escrow transitioned")

	return booking, nil
}

// GetTimeline returns the booking, its rendered timeline and its event history.
func (s *EscrowServiceImpl) GetTimeline(ctx context.Context, bookingID string, actor domain.Actor) (*ports.BookingTimeline, error) {
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("get booking: %w", err))
	}
	if booking == nil {
		return nil, apperror.ErrNotFound("booking")
	}
	if !actor.CanView(booking) {
		return nil, apperror.ErrForbidden()
	}

	events, err := s.events.ListByBooking(ctx, booking.ID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("list escrow events: %w", err))
	}

	return &ports.BookingTimeline{
		Booking: booking,
		View:    domain.BuildTimelineView(booking.EscrowState),
		Events:  events,
	}, nil
}

// mayTransition decides who may push the escrow where. The landlord signals
// move-in, the renter confirms keys, either party may dispute, and admins may
// do anything the state machine allows.
func mayTransition(actor domain.Actor, b *domain.BookingRecord, target domain.EscrowState) bool {
	if actor.Role == domain.RoleAdmin {
		return true
	}
	if !actor.CanView(b) {
		return false
	}
	switch target {
	case domain.EscrowStateMoveInPending:
		return actor.Role == domain.RoleLandlord
	case domain.EscrowStateCompleted:
		return actor.Role == domain.RoleRenter
	case domain.EscrowStateDispute:
		return true
	}
	return false
}
