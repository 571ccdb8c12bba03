package service

import (
	"context"
	"fmt"
	"time"

	"zimba-booking/internal/core/domain"
	"zimba-booking/internal/core/ports"
	"zimba-booking/pkg/apperror"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// reportingService implements ports.ReportingService.
type reportingService struct {
	bookings ports.BookingRepository
	now      func() time.Time
}

// NewReportingService creates a new reporting service.
func NewReportingService(bookings ports.BookingRepository) ports.ReportingService {
	return &reportingService{
		bookings: bookings,
		now:      time.Now,
	}
}

// GetDashboardStats returns aggregated booking stats. Landlords see their own
// properties, admins see everything.
func (s *reportingService) GetDashboardStats(ctx context.Context, actor domain.Actor, period string) (*ports.BookingStats, error) {
	var landlordID *string
	switch actor.Role {
	case domain.RoleAdmin:
	case domain.RoleLandlord:
		landlordID = &actor.UserID
	default:
		return nil, apperror.ErrForbidden()
	}

	var periodStart *time.Time
	switch period {
	case "day":
		t := s.now().AddDate(0, 0, -1)
		periodStart = &t
	case "week":
		t := s.now().AddDate(0, 0, -7)
		periodStart = &t
	case "month":
		t := s.now().AddDate(0, -1, 0)
		periodStart = &t
	case "all", "":
		// No time filter
	default:
		return nil, apperror.Validation("invalid period: must be day, week, month, or all")
	}

	stats, err := s.bookings.GetStats(ctx, landlordID, periodStart)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	return stats, nil
}

// ListBookings returns a paginated list scoped to what the actor may see.
func (s *reportingService) ListBookings(ctx context.Context, actor domain.Actor, params ports.BookingListParams) ([]domain.BookingRecord, int64, error) {
	switch actor.Role {
	case domain.RoleAdmin:
	case domain.RoleLandlord:
		params.LandlordID = &actor.UserID
	case domain.RoleRenter:
		params.RenterID = &actor.UserID
	default:
		return nil, 0, apperror.ErrForbidden()
	}

	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 {
		params.PageSize = defaultPageSize
	}
	if params.PageSize > maxPageSize {
		params.PageSize = maxPageSize
	}

	bookings, total, err := s.bookings.List(ctx, params)
	if err != nil {
		return nil, 0, apperror.ErrDatabaseError(err)
	}
	return bookings, total, nil
}

// GetBooking returns one booking the actor is a party to.
func (s *reportingService) GetBooking(ctx context.Context, bookingID string, actor domain.Actor) (*domain.BookingRecord, error) {
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
	return booking, nil
}
