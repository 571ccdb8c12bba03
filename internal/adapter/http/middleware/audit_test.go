package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"zimba-booking/internal/core/domain"
	"zimba-booking/internal/core/ports/mocks"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func setupAuditRouter(auditSvc *mocks.MockAuditService, status int) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(CtxUserID, "renter-1")
		c.Next()
	})
	r.Use(AuditLog(auditSvc))
	handler := func(c *gin.Context) { c.Status(status) }
	r.POST("/api/v1/bookings/:id/escrow/move-in", handler)
	r.GET("/api/v1/bookings/:id", handler)
	r.POST("/api/v1/fees/quote", handler)
	return r
}

func TestAuditLog_RecordsDeniedWrite(t *testing.T) {
	ctrl := gomock.NewController(t)
	auditSvc := mocks.NewMockAuditService(ctrl)

	var got *domain.AuditLog
	auditSvc.EXPECT().Log(gomock.Any(), gomock.Any()).Do(func(_ any, entry any) {
		got = entry.(*domain.AuditLog)
	})

	r := setupAuditRouter(auditSvc, http.StatusForbidden)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/bookings/bk-9/escrow/move-in", nil))

	require.NotNil(t, got)
	assert.Equal(t, domain.AuditActionAccessDenied, got.Action)
	assert.Equal(t, "booking", got.ResourceType)
	assert.Equal(t, "bk-9", got.ResourceID)
	require.NotNil(t, got.ActorID)
	assert.Equal(t, "renter-1", *got.ActorID)
	assert.Contains(t, got.Details, `"status":403`)
	assert.WithinDuration(t, time.Now(), got.CreatedAt, time.Minute)
}

func TestAuditLog_SkipsOtherRequests(t *testing.T) {
	cases := []struct {
		name   string
		method string
		path   string
		status int
	}{
		{"success", http.MethodPost, "/api/v1/bookings/bk-1/escrow/move-in", http.StatusOK},
		{"business rejection", http.MethodPost, "/api/v1/bookings/bk-1/escrow/move-in", http.StatusConflict},
		{"read", http.MethodGet, "/api/v1/bookings/bk-1", http.StatusForbidden},
		{"unmapped route", http.MethodPost, "/api/v1/fees/quote", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			auditSvc := mocks.NewMockAuditService(ctrl)
			// no Log call expected

			r := setupAuditRouter(auditSvc, tc.status)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(tc.method, tc.path, nil))
			assert.Equal(t, tc.status, w.Code)
		})
	}
}

func TestMapRouteToResource(t *testing.T) {
	assert.Equal(t, "checkout", mapRouteToResource("/api/v1/checkout/:id/confirm"))
	assert.Equal(t, "booking", mapRouteToResource("/api/v1/bookings/:id/escrow/dispute"))
	assert.Empty(t, mapRouteToResource("/health"))
}
