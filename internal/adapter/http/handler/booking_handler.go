package handler

import (
	"time"

	"zimba-booking/internal/adapter/http/dto"
	"zimba-booking/internal/adapter/http/middleware"
	"zimba-booking/internal/core/domain"
	"zimba-booking/internal/core/ports"
	"zimba-booking/pkg/apperror"
	"zimba-booking/pkg/response"

	"github.com/gin-gonic/gin"
)

const (
	defaultPage     = 1
	defaultPageSize = 20
)

// BookingHandler serves booking reads and escrow transitions.
type BookingHandler struct {
	reportingSvc ports.ReportingService
	escrowSvc    ports.EscrowService
}

// NewBookingHandler creates a new BookingHandler.
func NewBookingHandler(reportingSvc ports.ReportingService, escrowSvc ports.EscrowService) *BookingHandler {
	return &BookingHandler{reportingSvc: reportingSvc, escrowSvc: escrowSvc}
}

// List handles GET /api/v1/bookings.
func (h *BookingHandler) List(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var q dto.BookingListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	if q.Page == 0 {
		q.Page = defaultPage
	}
	if q.PageSize == 0 {
		q.PageSize = defaultPageSize
	}

	params := ports.BookingListParams{Page: q.Page, PageSize: q.PageSize}
	if q.EscrowState != "" {
		state := domain.EscrowState(q.EscrowState)
		params.EscrowState = &state
	}
	if q.From != "" {
		from, err := time.Parse(dto.DateLayout, q.From)
		if err != nil {
			response.Error(c, apperror.Validation("from must be YYYY-MM-DD"))
			return
		}
		params.From = &from
	}
	if q.To != "" {
		to, err := time.Parse(dto.DateLayout, q.To)
		if err != nil {
			response.Error(c, apperror.Validation("to must be YYYY-MM-DD"))
			return
		}
		// inclusive of the whole day
		to = to.Add(24*time.Hour - time.Nanosecond)
		params.To = &to
	}

	bookings, total, err := h.reportingSvc.ListBookings(c.Request.Context(), actor, params)
	if err != nil {
		response.Error(c, err)
		return
	}

	f := formatterFor(c, "")
	items := make([]dto.BookingResponse, 0, len(bookings))
	for i := range bookings {
		items = append(items, dto.ToBookingResponse(&bookings[i], f))
	}

	response.Paginated(c, items, total, q.Page, q.PageSize)
}

// Get handles GET /api/v1/bookings/:id.
func (h *BookingHandler) Get(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	booking, err := h.reportingSvc.GetBooking(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.ToBookingResponse(booking, formatterFor(c, "")))
}

// Timeline handles GET /api/v1/bookings/:id/timeline.
func (h *BookingHandler) Timeline(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	timeline, err := h.escrowSvc.GetTimeline(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.ToTimelineResponse(timeline))
}

// MoveIn handles POST /api/v1/bookings/:id/escrow/move-in.
func (h *BookingHandler) MoveIn(c *gin.Context) {
	h.transition(c, domain.EscrowStateMoveInPending, "")
}

// ConfirmKeys handles POST /api/v1/bookings/:id/escrow/confirm-keys.
func (h *BookingHandler) ConfirmKeys(c *gin.Context) {
	h.transition(c, domain.EscrowStateCompleted, "")
}

// Dispute handles POST /api/v1/bookings/:id/escrow/dispute.
func (h *BookingHandler) Dispute(c *gin.Context) {
	var req dto.DisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	h.transition(c, domain.EscrowStateDispute, req.Reason)
}

func (h *BookingHandler) transition(c *gin.Context, target domain.EscrowState, reason string) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	booking, err := h.escrowSvc.Transition(c.Request.Context(), ports.EscrowTransitionRequest{
		BookingID: c.Param("id"),
		Target:    target,
		Actor:     actor,
		Reason:    reason,
		ClientIP:  c.ClientIP(),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.ToBookingResponse(booking, formatterFor(c, "")))
}
