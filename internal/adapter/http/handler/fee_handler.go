package handler

import (
	"zimba-booking/internal/adapter/http/dto"
	"zimba-booking/internal/core/ports"
	"zimba-booking/pkg/apperror"
	"zimba-booking/pkg/response"

	"github.com/gin-gonic/gin"
)

// FeeHandler serves fee quotes.
type FeeHandler struct {
	checkoutSvc ports.CheckoutService
}

// NewFeeHandler creates a new FeeHandler.
func NewFeeHandler(checkoutSvc ports.CheckoutService) *FeeHandler {
	return &FeeHandler{checkoutSvc: checkoutSvc}
}

// Quote handles POST /api/v1/fees/quote.
func (h *FeeHandler) Quote(c *gin.Context) {
	var req dto.FeeQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	breakdown, err := h.checkoutSvc.QuoteFees(ports.FeeQuoteRequest{
		Amount:             *req.Amount,
		Currency:           req.Currency,
		CommissionRate:     req.CommissionRate,
		DiasporaFeeApplied: req.DiasporaFeeApplied,
		DiasporaFeeRate:    req.DiasporaFeeRate,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.ToFeeBreakdownResponse(breakdown, formatterFor(c, req.Locale)))
}
