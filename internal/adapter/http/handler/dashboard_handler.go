package handler

import (
	"zimba-booking/internal/adapter/http/dto"
	"zimba-booking/internal/adapter/http/middleware"
	"zimba-booking/internal/core/ports"
	"zimba-booking/pkg/apperror"
	"zimba-booking/pkg/response"

	"github.com/gin-gonic/gin"
)

// DashboardHandler handles dashboard endpoints.
type DashboardHandler struct {
	reportingSvc ports.ReportingService
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(reportingSvc ports.ReportingService) *DashboardHandler {
	return &DashboardHandler{reportingSvc: reportingSvc}
}

// GetStats handles GET /api/v1/dashboard/stats.
func (h *DashboardHandler) GetStats(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	period := c.DefaultQuery("period", "all")
	stats, err := h.reportingSvc.GetDashboardStats(c.Request.Context(), actor, period)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.ToDashboardStatsResponse(period, stats))
}
