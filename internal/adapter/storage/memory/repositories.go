package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"zimba-booking/internal/core/domain"
	"zimba-booking/internal/core/ports"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// PropertyRepo is a fixed property catalog.
type PropertyRepo struct {
	mu         sync.RWMutex
	properties map[string]domain.Property
}

// NewPropertyRepo creates a catalog holding props.
func NewPropertyRepo(props ...domain.Property) *PropertyRepo {
	r := &PropertyRepo{properties: make(map[string]domain.Property, len(props))}
	for _, p := range props {
		r.properties[p.ID] = p
	}
	return r
}

// Put adds or replaces a listing.
func (r *PropertyRepo) Put(p domain.Property) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.properties[p.ID] = p
}

func (r *PropertyRepo) GetByID(ctx context.Context, id string) (*domain.Property, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.properties[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// BookingRepo implements ports.BookingRepository.
type BookingRepo struct {
	mu        sync.RWMutex
	bookings  map[string]domain.BookingRecord
	bySession map[string]string
}

// NewBookingRepo creates an empty booking table.
func NewBookingRepo() *BookingRepo {
	return &BookingRepo{
		bookings:  make(map[string]domain.BookingRecord),
		bySession: make(map[string]string),
	}
}

func (r *BookingRepo) Create(ctx context.Context, tx pgx.Tx, b *domain.BookingRecord) error {
	r.mu.RLock()
	_, dup := r.bySession[b.SessionID]
	r.mu.RUnlock()
	if dup {
		return domain.ErrDuplicateBooking
	}
	record := *b
	apply(tx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.bookings[record.ID] = record
		r.bySession[record.SessionID] = record.ID
	})
	return nil
}

func (r *BookingRepo) GetByID(ctx context.Context, id string) (*domain.BookingRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bookings[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (r *BookingRepo) GetBySessionID(ctx context.Context, sessionID string) (*domain.BookingRecord, error) {
	r.mu.RLock()
	id, ok := r.bySession[sessionID]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return r.GetByID(ctx, id)
}

// GetByIDForUpdate reads committed state; the open Tx already excludes other writers.
func (r *BookingRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id string) (*domain.BookingRecord, error) {
	return r.GetByID(ctx, id)
}

func (r *BookingRepo) UpdateEscrowState(ctx context.Context, tx pgx.Tx, id string, state domain.EscrowState, updatedAt time.Time) error {
	r.mu.RLock()
	_, ok := r.bookings[id]
	r.mu.RUnlock()
	if !ok {
		return errBookingNotFound(id)
	}
	apply(tx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		b := r.bookings[id]
		b.EscrowState = state
		b.UpdatedAt = updatedAt
		r.bookings[id] = b
	})
	return nil
}

func (r *BookingRepo) List(ctx context.Context, params ports.BookingListParams) ([]domain.BookingRecord, int64, error) {
	r.mu.RLock()
	var matched []domain.BookingRecord
	for _, b := range r.bookings {
		if matches(b, params) {
			matched = append(matched, b)
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].BookedAt.Equal(matched[j].BookedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].BookedAt.After(matched[j].BookedAt)
	})

	total := int64(len(matched))
	start := (params.Page - 1) * params.PageSize
	if start < 0 || start >= len(matched) {
		return nil, total, nil
	}
	end := start + params.PageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func matches(b domain.BookingRecord, p ports.BookingListParams) bool {
	switch {
	case p.LandlordID != nil && b.LandlordID != *p.LandlordID:
		return false
	case p.RenterID != nil && b.RenterID != *p.RenterID:
		return false
	case p.EscrowState != nil && b.EscrowState != *p.EscrowState:
		return false
	case p.From != nil && b.BookedAt.Before(*p.From):
		return false
	case p.To != nil && b.BookedAt.After(*p.To):
		return false
	}
	return true
}

func (r *BookingRepo) GetStats(ctx context.Context, landlordID *string, periodStart *time.Time) (*ports.BookingStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := &ports.BookingStats{ByState: make(map[domain.EscrowState]int64)}
	totals := make(map[string]*ports.CurrencyTotals)
	for _, b := range r.bookings {
		if landlordID != nil && b.LandlordID != *landlordID {
			continue
		}
		if periodStart != nil && b.BookedAt.Before(*periodStart) {
			continue
		}
		stats.TotalBookings++
		stats.ByState[b.EscrowState]++

		cur := b.TotalPrice.Currency
		t, ok := totals[cur]
		if !ok {
			t = &ports.CurrencyTotals{
				Currency:         cur,
				Booked:           decimal.Zero,
				HeldInEscrow:     decimal.Zero,
				CommissionEarned: decimal.Zero,
			}
			totals[cur] = t
		}
		t.Booked = t.Booked.Add(b.TotalPrice.Amount)
		if b.EscrowState.IsHeld() {
			t.HeldInEscrow = t.HeldInEscrow.Add(b.TotalPrice.Amount)
		}
		if b.EscrowState == domain.EscrowStateCompleted {
			t.CommissionEarned = t.CommissionEarned.Add(b.CommissionAmount.Amount)
		}
	}

	for _, t := range totals {
		stats.Totals = append(stats.Totals, *t)
	}
	sort.Slice(stats.Totals, func(i, j int) bool { return stats.Totals[i].Currency < stats.Totals[j].Currency })
	return stats, nil
}

// EscrowEventRepo implements ports.EscrowEventRepository.
type EscrowEventRepo struct {
	mu     sync.RWMutex
	events map[string][]domain.EscrowEvent
}

// NewEscrowEventRepo creates an empty escrow history.
func NewEscrowEventRepo() *EscrowEventRepo {
	return &EscrowEventRepo{events: make(map[string][]domain.EscrowEvent)}
}

func (r *EscrowEventRepo) Append(ctx context.Context, tx pgx.Tx, e *domain.EscrowEvent) error {
	event := *e
	apply(tx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.events[event.BookingID] = append(r.events[event.BookingID], event)
	})
	return nil
}

func (r *EscrowEventRepo) ListByBooking(ctx context.Context, bookingID string) ([]domain.EscrowEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.EscrowEvent, len(r.events[bookingID]))
	copy(out, r.events[bookingID])
	return out, nil
}

// AuditRepo implements ports.AuditRepository.
type AuditRepo struct {
	mu      sync.Mutex
	entries []domain.AuditLog
}

// NewAuditRepo creates an empty audit log.
func NewAuditRepo() *AuditRepo {
	return &AuditRepo{}
}

func (r *AuditRepo) Create(ctx context.Context, log *domain.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *log)
	return nil
}

// Entries returns a copy of everything logged so far.
func (r *AuditRepo) Entries() []domain.AuditLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.AuditLog, len(r.entries))
	copy(out, r.entries)
	return out
}
