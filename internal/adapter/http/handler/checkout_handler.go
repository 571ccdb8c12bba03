package handler

import (
	"context"
	"time"

	"zimba-booking/internal/adapter/http/dto"
	"zimba-booking/internal/adapter/http/middleware"
	"zimba-booking/internal/core/domain"
	"zimba-booking/internal/core/ports"
	"zimba-booking/pkg/apperror"
	"zimba-booking/pkg/response"

	"github.com/gin-gonic/gin"
)

// CheckoutHandler handles the renter checkout flow.
type CheckoutHandler struct {
	checkoutSvc ports.CheckoutService
}

// NewCheckoutHandler creates a new CheckoutHandler.
func NewCheckoutHandler(checkoutSvc ports.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{checkoutSvc: checkoutSvc}
}

// Start handles POST /api/v1/checkout.
func (h *CheckoutHandler) Start(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.StartCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	start, err := time.Parse(dto.DateLayout, req.StartDate)
	if err != nil {
		response.Error(c, apperror.Validation("start_date must be YYYY-MM-DD"))
		return
	}
	end, err := time.Parse(dto.DateLayout, req.EndDate)
	if err != nil {
		response.Error(c, apperror.Validation("end_date must be YYYY-MM-DD"))
		return
	}

	flow, err := h.checkoutSvc.Start(c.Request.Context(), ports.StartCheckoutRequest{
		Actor:      actor,
		PropertyID: req.PropertyID,
		StartDate:  start,
		EndDate:    end,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.ToCheckoutResponse(flow, formatterFor(c, "")))
}

// Get handles GET /api/v1/checkout/:id.
func (h *CheckoutHandler) Get(c *gin.Context) {
	h.flowAction(c, h.checkoutSvc.Get)
}

// Advance handles POST /api/v1/checkout/:id/advance.
func (h *CheckoutHandler) Advance(c *gin.Context) {
	h.flowAction(c, h.checkoutSvc.Advance)
}

// Retreat handles POST /api/v1/checkout/:id/retreat.
func (h *CheckoutHandler) Retreat(c *gin.Context) {
	h.flowAction(c, h.checkoutSvc.Retreat)
}

// Confirm handles POST /api/v1/checkout/:id/confirm.
// A replayed confirmation returns the booking created by the first one.
func (h *CheckoutHandler) Confirm(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	booking, err := h.checkoutSvc.ConfirmPayment(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.ToBookingResponse(booking, formatterFor(c, "")))
}

type flowFunc func(ctx context.Context, sessionID string, actor domain.Actor) (*domain.BookingFlow, error)

func (h *CheckoutHandler) flowAction(c *gin.Context, fn flowFunc) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	flow, err := fn(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.ToCheckoutResponse(flow, formatterFor(c, "")))
}
