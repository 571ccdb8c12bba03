package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"zimba-booking/internal/core/domain"
	"zimba-booking/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AuditLog records rejected write attempts on protected routes. Successful
// business actions are audited by the services themselves.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		status := c.Writer.Status()
		if status != http.StatusUnauthorized && status != http.StatusForbidden {
			return
		}
		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead || c.Request.Method == http.MethodOptions {
			return
		}

		resourceType := mapRouteToResource(c.FullPath())
		if resourceType == "" {
			return
		}

		var actorID *string
		if uid := c.GetString(CtxUserID); uid != "" {
			actorID = &uid
		}

		details, _ := json.Marshal(map[string]interface{}{
			"method": c.Request.Method,
			"route":  c.FullPath(),
			"status": status,
		})

		auditSvc.Log(c.Request.Context(), &domain.AuditLog{
			ID:           uuid.New(),
			ActorID:      actorID,
			Action:       domain.AuditActionAccessDenied,
			ResourceType: resourceType,
			ResourceID:   resourceID(c),
			IPAddress:    c.ClientIP(),
			Details:      string(details),
			CreatedAt:    time.Now(),
		})
	}
}

func mapRouteToResource(route string) string {
	switch route {
	case "/api/v1/checkout",
		"/api/v1/checkout/:id/advance",
		"/api/v1/checkout/:id/retreat",
		"/api/v1/checkout/:id/confirm":
		return "checkout"
	case "/api/v1/bookings/:id/escrow/move-in",
		"/api/v1/bookings/:id/escrow/confirm-keys",
		"/api/v1/bookings/:id/escrow/dispute":
		return "booking"
	}
	return ""
}

func resourceID(c *gin.Context) string {
	return c.Param("id")
}
