package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"zimba-booking/internal/core/domain"
	"zimba-booking/internal/core/ports"
	"zimba-booking/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// CheckoutOptions carries the pricing and timing knobs of the checkout flow.
type CheckoutOptions struct {
	CommissionRate  float64
	DiasporaFeeRate float64
	SessionTTL      time.Duration
	ConfirmTimeout  time.Duration
	IdempotencyTTL  time.Duration
}

// CheckoutServiceImpl implements ports.CheckoutService.
type CheckoutServiceImpl struct {
	properties ports.PropertyRepository
	bookings   ports.BookingRepository
	events     ports.EscrowEventRepository
	flows      ports.FlowStore
	guard      ports.ConfirmGuard
	idempCache ports.IdempotencyCache
	settler    ports.Settler
	transactor ports.DBTransactor
	audit      ports.AuditService
	opts       CheckoutOptions
	now        func() time.Time
	log        zerolog.Logger
}

// NewCheckoutService creates a new CheckoutServiceImpl.
func NewCheckoutService(
	properties ports.PropertyRepository,
	bookings ports.BookingRepository,
	events ports.EscrowEventRepository,
	flows ports.FlowStore,
	guard ports.ConfirmGuard,
	idempCache ports.IdempotencyCache,
	settler ports.Settler,
	transactor ports.DBTransactor,
	audit ports.AuditService,
	opts CheckoutOptions,
	log zerolog.Logger,
) *CheckoutServiceImpl {
	return &CheckoutServiceImpl{
		properties: properties,
		bookings:   bookings,
		events:     events,
		flows:      flows,
		guard:      guard,
		idempCache: idempCache,
		settler:    settler,
		transactor: transactor,
		audit:      audit,
		opts:       opts,
		now:        func() time.Time { return time.Now().UTC() },
		log:        log,
	}
}

// QuoteFees runs the fee calculator on raw input. Nil rates fall back to the
// configured platform rates.
func (s *CheckoutServiceImpl) QuoteFees(req ports.FeeQuoteRequest) (*domain.FeeBreakdown, error) {
	commission := s.opts.CommissionRate
	if req.CommissionRate != nil {
		commission = *req.CommissionRate
	}
	diaspora := s.opts.DiasporaFeeRate
	if req.DiasporaFeeRate != nil {
		diaspora = *req.DiasporaFeeRate
	}

	base, err := domain.NewMoney(req.Amount, req.Currency)
	if err != nil {
		return nil, s.mapDomainError(err, "")
	}
	fees, err := domain.ComputeFeeBreakdown(base, commission, req.DiasporaFeeApplied, diaspora)
	if err != nil {
		return nil, s.mapDomainError(err, "")
	}
	return fees, nil
}

// Start prices a catalog property for the renter and opens a flow in DETAILS.
func (s *CheckoutServiceImpl) Start(ctx context.Context, req ports.StartCheckoutRequest) (*domain.BookingFlow, error) {
	if req.Actor.Role != domain.RoleRenter {
		return nil, apperror.ErrForbidden()
	}
	if req.EndDate.Before(req.StartDate) {
		return nil, apperror.Validation("end_date must not be before start_date")
	}

	property, err := s.properties.GetByID(ctx, req.PropertyID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("get property: %w", err))
	}
	if property == nil {
		return nil, apperror.ErrNotFound("property")
	}

	fees, err := domain.ComputeFeeBreakdown(property.Price, s.opts.CommissionRate, req.Actor.Diaspora, s.opts.DiasporaFeeRate)
	if err != nil {
		return nil, s.mapDomainError(err, "")
	}

	flow := domain.NewBookingFlow(req.Actor.UserID, *property, req.Actor.Diaspora, req.StartDate, req.EndDate, fees, s.now())
	if err := s.flows.Save(ctx, flow, s.opts.SessionTTL); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("save flow: %w", err))
	}

	s.record(ctx, domain.AuditActionCheckoutStarted, req.Actor, "checkout", flow.ID, map[string]any{
		"property_id": property.ID,
		"total":       fees.Total.Amount.String(),
		"currency":    fees.Total.Currency,
	})

	s.log.Info().
		Str("session_id", flow.ID).
		Str("property_id", property.ID).
		Bool("diaspora", req.Actor.Diaspora).
		Msg("checkout started")

	return flow, nil
}

// Get returns the caller's checkout flow.
func (s *CheckoutServiceImpl) Get(ctx context.Context, sessionID string, actor domain.Actor) (*domain.BookingFlow, error) {
	return s.loadFlow(ctx, sessionID, actor)
}

// Advance moves the flow from DETAILS to PAYMENT.
func (s *CheckoutServiceImpl) Advance(ctx context.Context, sessionID string, actor domain.Actor) (*domain.BookingFlow, error) {
	return s.step(ctx, sessionID, actor, (*domain.BookingFlow).Advance)
}

// Retreat moves the flow from PAYMENT back to DETAILS.
func (s *CheckoutServiceImpl) Retreat(ctx context.Context, sessionID string, actor domain.Actor) (*domain.BookingFlow, error) {
	return s.step(ctx, sessionID, actor, (*domain.BookingFlow).Retreat)
}

func (s *CheckoutServiceImpl) step(ctx context.Context, sessionID string, actor domain.Actor, move func(*domain.BookingFlow) error) (*domain.BookingFlow, error) {
	flow, err := s.loadFlow(ctx, sessionID, actor)
	if err != nil {
		return nil, err
	}
	if err := move(flow); err != nil {
		return nil, s.mapDomainError(err, sessionID)
	}
	flow.UpdatedAt = s.now()
	if err := s.flows.Save(ctx, flow, s.opts.SessionTTL); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("save flow: %w", err))
	}
	return flow, nil
}

// ConfirmPayment settles the payment and creates the booking exactly once per
// session. Replays return the existing booking; a concurrent confirmation of
// the same session gets BKG_003.
func (s *CheckoutServiceImpl) ConfirmPayment(ctx context.Context, sessionID string, actor domain.Actor) (*domain.BookingRecord, error) {
	if _, err := s.loadFlow(ctx, sessionID, actor); err != nil {
		return nil, err
	}

	// Layer 1: Redis replay check
	cached, err := s.idempCache.Get(ctx, sessionID)
	if err != nil {
		s.log.Warn().Err(err).Str("session_id", sessionID).Msg("redis replay check failed, falling through to DB")
	}
	if cached != nil {
		return s.unmarshalCachedBooking(cached)
	}

	acquired, err := s.guard.Acquire(ctx, sessionID, s.opts.ConfirmTimeout+guardGrace)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("acquire confirm guard: %w", err))
	}
	if !acquired {
		return nil, apperror.ErrConfirmInProgress()
	}
	defer func() {
		if err := s.guard.Release(context.WithoutCancel(ctx), sessionID); err != nil {
			s.log.Warn().Err(err).Str("session_id", sessionID).Msg("failed to release confirm guard")
		}
	}()

	// Layer 2: DB replay check, under the guard
	existing, err := s.bookings.GetBySessionID(ctx, sessionID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("replay check: %w", err))
	}
	if existing != nil {
		return existing, nil
	}

	// Reload: the flow may have moved while we waited for the guard.
	flow, err := s.loadFlow(ctx, sessionID, actor)
	if err != nil {
		return nil, err
	}
	if flow.Confirming {
		// We hold the guard, so the previous holder is gone. Its attempt may
		// have charged the renter, so it is resumed under the same key.
		s.log.Warn().Str("session_id", sessionID).Int("attempt", flow.Attempt).Msg("resuming in-flight confirmation")
		err = flow.ResumeConfirm()
	} else {
		err = flow.BeginConfirm()
	}
	if err != nil {
		return nil, s.mapDomainError(err, sessionID)
	}
	flow.UpdatedAt = s.now()
	if err := s.flows.Save(ctx, flow, s.opts.SessionTTL); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("save flow: %w", err))
	}

	settlementRef := flow.SettlementRef
	if settlementRef == "" {
		settleCtx, cancel := context.WithTimeout(ctx, s.opts.ConfirmTimeout)
		defer cancel()
		result, err := s.settler.Settle(settleCtx, ports.SettlementRequest{
			SessionID:      flow.ID,
			IdempotencyKey: flow.SettlementKey(),
			RenterID:       flow.RenterID,
			PropertyID:     flow.Property.ID,
			Amount:         flow.Fees.Total,
			Description:    fmt.Sprintf("%s, %s to %s", flow.Property.Name, flow.StartDate.Format(time.DateOnly), flow.EndDate.Format(time.DateOnly)),
		})
		if err != nil {
			return nil, s.failSettlement(ctx, flow, actor, err, false)
		}
		if result.Status != ports.SettlementSucceeded {
			return nil, s.failSettlement(ctx, flow, actor, fmt.Errorf("settlement declined: %s", result.FailureReason), true)
		}
		settlementRef = result.Reference
	} else {
		s.log.Info().Str("session_id", sessionID).Str("settlement_ref", settlementRef).Msg("reusing earlier settlement")
	}

	// Funds have moved: finish even if the caller has gone away.
	persistCtx := context.WithoutCancel(ctx)
	booking, err := s.createBooking(persistCtx, flow, actor, settlementRef)
	if err != nil {
		flow.RecordSettlement(settlementRef)
		flow.UpdatedAt = s.now()
		if saveErr := s.flows.Save(persistCtx, flow, s.opts.SessionTTL); saveErr != nil {
			s.log.Error().Err(saveErr).Str("session_id", sessionID).Str("settlement_ref", settlementRef).Msg("failed to record settlement on flow")
		}
		return nil, err
	}

	if err := flow.CompleteConfirm(booking.ID); err != nil {
		return nil, s.mapDomainError(err, sessionID)
	}
	flow.UpdatedAt = s.now()
	if err := s.flows.Save(persistCtx, flow, s.opts.SessionTTL); err != nil {
		s.log.Warn().Err(err).Str("session_id", sessionID).Msg("failed to save confirmed flow")
	}

	// Post-process: cache in Redis (best-effort)
	if respJSON, err := json.Marshal(booking); err == nil {
		if err := s.idempCache.Set(persistCtx, sessionID, respJSON, s.opts.IdempotencyTTL); err != nil {
			s.log.Warn().Err(err).Str("session_id", sessionID).Msg("failed to cache confirmed booking in redis")
		}
	}

	s.record(persistCtx, domain.AuditActionBookingConfirmed, actor, "booking", booking.ID, map[string]any{
		"session_id":     sessionID,
		"provider":       booking.SettlementProvider,
		"settlement_ref": booking.SettlementRef,
		"total":          booking.TotalPrice.Amount.String(),
		"currency":       booking.TotalPrice.Currency,
	})

	s.log.Info().
		Str("session_id", sessionID).
		Str("booking_id", booking.ID).
		Str("provider", booking.SettlementProvider).
		Str("total", booking.TotalPrice.Amount.String()).
		Str("currency", booking.TotalPrice.Currency).
		Msg("booking confirmed")

	return booking, nil
}

// guardGrace keeps the guard alive a little past the settlement timeout.
const guardGrace = 5 * time.Second

func (s *CheckoutServiceImpl) createBooking(ctx context.Context, flow *domain.BookingFlow, actor domain.Actor, settlementRef string) (*domain.BookingRecord, error) {
	now := s.now()
	booking, err := domain.NewBookingRecord(flow, s.settler.Name(), settlementRef, now)
	if err != nil {
		return nil, s.mapDomainError(err, flow.ID)
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.bookings.Create(ctx, dbTx, booking); err != nil {
		if errors.Is(err, domain.ErrDuplicateBooking) {
			existing, getErr := s.bookings.GetBySessionID(ctx, flow.ID)
			if getErr != nil || existing == nil {
				return nil, apperror.ErrDatabaseError(fmt.Errorf("load existing booking: %w", errors.Join(err, getErr)))
			}
			s.log.Warn().Str("session_id", flow.ID).Str("booking_id", existing.ID).Msg("booking already existed for session")
			return existing, nil
		}
		return nil, apperror.ErrDatabaseError(fmt.Errorf("create booking: %w", err))
	}

	event := &domain.EscrowEvent{
		ID:         uuid.New(),
		BookingID:  booking.ID,
		ToState:    booking.EscrowState,
		Actor:      actor.UserID,
		Reason:     "payment settled via " + booking.SettlementProvider,
		OccurredAt: now,
	}
	if err := s.events.Append(ctx, dbTx, event); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("append escrow event: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	return booking, nil
}

// failSettlement puts the flow back on PAYMENT so the renter can retry. A
// declined attempt is final and the retry gets a fresh key; otherwise the
// outcome is unknown and the retry reuses the key.
func (s *CheckoutServiceImpl) failSettlement(ctx context.Context, flow *domain.BookingFlow, actor domain.Actor, cause error, declined bool) error {
	persistCtx := context.WithoutCancel(ctx)
	attempt := flow.Attempt
	if declined {
		flow.AbortConfirm()
	} else {
		flow.AbortUnsettled()
	}
	flow.UpdatedAt = s.now()
	if err := s.flows.Save(persistCtx, flow, s.opts.SessionTTL); err != nil {
		s.log.Error().Err(err).Str("session_id", flow.ID).Msg("failed to save flow after settlement failure")
	}

	s.record(persistCtx, domain.AuditActionSettlementFailed, actor, "checkout", flow.ID, map[string]any{
		"provider": s.settler.Name(),
		"attempt":  attempt,
		"declined": declined,
		"reason":   cause.Error(),
	})

	s.log.Warn().
		Err(cause).
		Str("session_id", flow.ID).
		Str("provider", s.settler.Name()).
		Msg("settlement failed")

	return apperror.ErrSettlementFailed(cause)
}

func (s *CheckoutServiceImpl) loadFlow(ctx context.Context, sessionID string, actor domain.Actor) (*domain.BookingFlow, error) {
	flow, err := s.flows.Get(ctx, sessionID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get flow: %w", err))
	}
	if flow == nil {
		return nil, apperror.ErrNotFound("checkout session")
	}
	if flow.RenterID != actor.UserID {
		return nil, apperror.ErrForbidden()
	}
	return flow, nil
}

func (s *CheckoutServiceImpl) unmarshalCachedBooking(data []byte) (*domain.BookingRecord, error) {
	var booking domain.BookingRecord
	if err := json.Unmarshal(data, &booking); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("unmarshal cached booking: %w", err))
	}
	return &booking, nil
}

// mapDomainError turns core errors into AppErrors. An invalid transition is
// a client defect and is logged at error level.
func (s *CheckoutServiceImpl) mapDomainError(err error, sessionID string) error {
	var inputErr *domain.InvalidInputError
	var transitionErr *domain.InvalidTransitionError
	switch {
	case errors.As(err, &inputErr):
		return apperror.ErrInvalidFeeInput(inputErr.Field, inputErr.Reason)
	case errors.Is(err, domain.ErrConfirmInFlight):
		return apperror.ErrConfirmInProgress()
	case errors.As(err, &transitionErr):
		s.log.Error().
			Str("session_id", sessionID).
			Str("from", transitionErr.From).
			Str("action", transitionErr.Action).
			Msg("invalid booking transition")
		return apperror.ErrInvalidBookingTransition(err)
	default:
		return apperror.InternalError(err)
	}
}

func (s *CheckoutServiceImpl) record(ctx context.Context, action domain.AuditAction, actor domain.Actor, resourceType, resourceID string, details map[string]any) {
	s.audit.Log(ctx, newAuditEntry(action, actor, resourceType, resourceID, "", details, s.now()))
}
