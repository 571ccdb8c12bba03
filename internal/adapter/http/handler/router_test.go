package handler_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"zimba-booking/internal/adapter/http/handler"
	"zimba-booking/internal/adapter/http/middleware"
	"zimba-booking/internal/adapter/settlement"
	"zimba-booking/internal/adapter/storage/memory"
	redisStorage "zimba-booking/internal/adapter/storage/redis"
	"zimba-booking/internal/core/domain"
	"zimba-booking/internal/core/ports"
	"zimba-booking/internal/service"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	t      *testing.T
	router *gin.Engine
	tokens *service.JWTTokenService
	audit  *memory.AuditRepo
}

// sessionStores are the ports kept outside the database.
type sessionStores struct {
	flows     ports.FlowStore
	guard     ports.ConfirmGuard
	idemp     ports.IdempotencyCache
	rateLimit ports.RateLimitStore
	health    ports.HealthChecker
}

func memoryStores() sessionStores {
	return sessionStores{
		flows:     memory.NewFlowStore(),
		guard:     memory.NewConfirmGuard(),
		idemp:     memory.NewIdempotencyCache(),
		rateLimit: memory.NewRateLimitStore(),
		health:    memory.HealthCheck{},
	}
}

func redisStores(t *testing.T) (*miniredis.Miniredis, sessionStores) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, sessionStores{
		flows:     redisStorage.NewFlowStore(client),
		guard:     redisStorage.NewConfirmGuard(client),
		idemp:     redisStorage.NewIdempotencyCache(client),
		rateLimit: redisStorage.NewRateLimitStore(client),
		health:    redisStorage.NewHealthCheck(client),
	}
}

func newTestServer(t *testing.T, rules map[string]middleware.RateLimitRule) *testServer {
	t.Helper()
	return newTestServerWith(t, rules, memoryStores())
}

func newTestServerWith(t *testing.T, rules map[string]middleware.RateLimitRule, ss sessionStores) *testServer {
	t.Helper()
	log := zerolog.New(io.Discard)

	bookings := memory.NewBookingRepo()
	events := memory.NewEscrowEventRepo()
	auditRepo := memory.NewAuditRepo()
	txr := memory.NewTransactor()
	auditSvc := service.NewAuditService(auditRepo, log)
	tokens := service.NewJWTTokenService("test-secret", time.Hour, "zimba-test")

	checkout := service.NewCheckoutService(
		memory.NewPropertyRepo(memory.DemoProperties()...), bookings, events,
		ss.flows, ss.guard, ss.idemp,
		settlement.NewSimulated(0, nil), txr, auditSvc,
		service.CheckoutOptions{
			CommissionRate:  0.05,
			DiasporaFeeRate: 0.02,
			SessionTTL:      30 * time.Minute,
			ConfirmTimeout:  5 * time.Second,
			IdempotencyTTL:  time.Hour,
		}, log,
	)

	router := handler.SetupRouter(handler.RouterDeps{
		CheckoutSvc:    checkout,
		EscrowSvc:      service.NewEscrowService(bookings, events, txr, auditSvc, log),
		ReportingSvc:   service.NewReportingService(bookings),
		TokenSvc:       tokens,
		RateLimitStore: ss.rateLimit,
		RateLimitRules: rules,
		HealthCheckers: []ports.HealthChecker{memory.HealthCheck{}, ss.health},
		AuditSvc:       auditSvc,
		Logger:         log,
	})

	return &testServer{t: t, router: router, tokens: tokens, audit: auditRepo}
}

func (s *testServer) token(userID string, role domain.Role, diaspora bool) string {
	s.t.Helper()
	tok, _, err := s.tokens.Generate(ports.TokenClaims{UserID: userID, Role: role, Diaspora: diaspora})
	require.NoError(s.t, err)
	return tok
}

// do sends a request and returns the status and decoded envelope.
func (s *testServer) do(method, path, token string, body interface{}) (int, map[string]interface{}) {
	s.t.Helper()
	var reader io.Reader = http.NoBody
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var resp map[string]interface{}
	require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return w.Code, resp
}

func data(resp map[string]interface{}) map[string]interface{} {
	return resp["data"].(map[string]interface{})
}

func TestRouter_BookingLifecycle(t *testing.T) {
	s := newTestServer(t, nil)
	renter := s.token("renter_ama", domain.RoleRenter, true)
	landlord := s.token("landlord_kwame", domain.RoleLandlord, false)
	admin := s.token("admin_1", domain.RoleAdmin, false)

	status, resp := s.do(http.MethodPost, "/api/v1/checkout", renter, map[string]string{
		"property_id": "prop_east_legon_2br",
		"start_date":  "2026-11-01",
		"end_date":    "2026-12-01",
	})
	require.Equal(t, http.StatusCreated, status, resp)
	sessionID := data(resp)["session_id"].(string)
	fees := data(resp)["fees"].(map[string]interface{})
	assert.Equal(t, "2675", fees["total"].(map[string]interface{})["amount"])

	// Confirming from DETAILS is rejected.
	status, resp = s.do(http.MethodPost, "/api/v1/checkout/"+sessionID+"/confirm", renter, nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "BKG_001", resp["error_code"])

	status, _ = s.do(http.MethodPost, "/api/v1/checkout/"+sessionID+"/advance", renter, nil)
	require.Equal(t, http.StatusOK, status)

	// Another renter cannot touch the flow.
	status, resp = s.do(http.MethodGet, "/api/v1/checkout/"+sessionID, s.token("renter_other", domain.RoleRenter, false), nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "AUTH_005", resp["error_code"])

	status, resp = s.do(http.MethodPost, "/api/v1/checkout/"+sessionID+"/confirm", renter, nil)
	require.Equal(t, http.StatusCreated, status, resp)
	bookingID := data(resp)["id"].(string)
	assert.Equal(t, "payment_confirmed", data(resp)["escrow_state"])

	// Replay returns the same booking.
	status, resp = s.do(http.MethodPost, "/api/v1/checkout/"+sessionID+"/confirm", renter, nil)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, bookingID, data(resp)["id"])

	status, resp = s.do(http.MethodGet, "/api/v1/checkout/"+sessionID, renter, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "CONFIRMED", data(resp)["step"])
	assert.Equal(t, bookingID, data(resp)["booking_id"])

	// Renters cannot mark move-in.
	status, resp = s.do(http.MethodPost, "/api/v1/bookings/"+bookingID+"/escrow/move-in", renter, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "AUTH_005", resp["error_code"])

	status, resp = s.do(http.MethodPost, "/api/v1/bookings/"+bookingID+"/escrow/move-in", landlord, nil)
	require.Equal(t, http.StatusOK, status, resp)
	assert.Equal(t, "move_in_pending", data(resp)["escrow_state"])

	status, resp = s.do(http.MethodPost, "/api/v1/bookings/"+bookingID+"/escrow/confirm-keys", renter, nil)
	require.Equal(t, http.StatusOK, status, resp)
	assert.Equal(t, "completed", data(resp)["escrow_state"])

	// Completed is terminal.
	status, resp = s.do(http.MethodPost, "/api/v1/bookings/"+bookingID+"/escrow/dispute", renter, map[string]string{"reason": "late"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "ESC_001", resp["error_code"])

	status, resp = s.do(http.MethodGet, "/api/v1/bookings/"+bookingID+"/timeline", renter, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(100), data(resp)["progress"])
	assert.Len(t, data(resp)["history"], 3)

	status, resp = s.do(http.MethodGet, "/api/v1/bookings", landlord, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), data(resp)["total"])

	status, resp = s.do(http.MethodGet, "/api/v1/bookings", s.token("landlord_adaeze", domain.RoleLandlord, false), nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(0), data(resp)["total"])

	status, resp = s.do(http.MethodGet, "/api/v1/dashboard/stats", landlord, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), data(resp)["total_bookings"])
	totals := data(resp)["totals"].([]interface{})
	require.Len(t, totals, 1)
	assert.Equal(t, "GHS", totals[0].(map[string]interface{})["currency"])
	assert.Equal(t, "125", totals[0].(map[string]interface{})["commission_earned"])
	assert.Equal(t, "0", totals[0].(map[string]interface{})["held_in_escrow"])

	status, _ = s.do(http.MethodGet, "/api/v1/dashboard/stats?period=day", admin, nil)
	assert.Equal(t, http.StatusOK, status)

	status, resp = s.do(http.MethodGet, "/api/v1/dashboard/stats", renter, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "AUTH_005", resp["error_code"])
}

func TestRouter_DisputeRequiresReason(t *testing.T) {
	s := newTestServer(t, nil)
	renter := s.token("renter_ama", domain.RoleRenter, false)

	_, resp := s.do(http.MethodPost, "/api/v1/checkout", renter, map[string]string{
		"property_id": "prop_lekki_studio",
		"start_date":  "2026-11-01",
		"end_date":    "2026-11-30",
	})
	sessionID := data(resp)["session_id"].(string)
	s.do(http.MethodPost, "/api/v1/checkout/"+sessionID+"/advance", renter, nil)
	_, resp = s.do(http.MethodPost, "/api/v1/checkout/"+sessionID+"/confirm", renter, nil)
	bookingID := data(resp)["id"].(string)

	status, resp := s.do(http.MethodPost, "/api/v1/bookings/"+bookingID+"/escrow/dispute", renter, map[string]string{"reason": "   "})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "ESC_002", resp["error_code"])

	status, resp = s.do(http.MethodPost, "/api/v1/bookings/"+bookingID+"/escrow/dispute", renter, map[string]string{"reason": "water damage"})
	require.Equal(t, http.StatusOK, status, resp)
	assert.Equal(t, "dispute", data(resp)["escrow_state"])

	status, resp = s.do(http.MethodGet, "/api/v1/bookings/"+bookingID+"/timeline", renter, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, data(resp)["disputed"])
	assert.Equal(t, float64(0), data(resp)["progress"])
}

func TestRouter_Authentication(t *testing.T) {
	s := newTestServer(t, nil)

	status, resp := s.do(http.MethodGet, "/api/v1/bookings", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "AUTH_003", resp["error_code"])

	status, resp = s.do(http.MethodGet, "/api/v1/bookings", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "AUTH_003", resp["error_code"])

	other := service.NewJWTTokenService("other-secret", time.Hour, "zimba-test")
	forged, _, err := other.Generate(ports.TokenClaims{UserID: "admin", Role: domain.RoleAdmin})
	require.NoError(t, err)
	status, _ = s.do(http.MethodGet, "/api/v1/bookings", forged, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestRouter_OnlyRentersCheckout(t *testing.T) {
	s := newTestServer(t, nil)
	status, resp := s.do(http.MethodPost, "/api/v1/checkout", s.token("landlord_kwame", domain.RoleLandlord, false), map[string]string{
		"property_id": "prop_east_legon_2br",
		"start_date":  "2026-11-01",
		"end_date":    "2026-12-01",
	})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "AUTH_005", resp["error_code"])
}

func TestRouter_DeniedWritesAreAudited(t *testing.T) {
	s := newTestServer(t, nil)
	renter := s.token("renter_ama", domain.RoleRenter, false)

	status, _ := s.do(http.MethodPost, "/api/v1/bookings/booking_x/escrow/move-in", renter, nil)
	require.Equal(t, http.StatusForbidden, status)

	assert.Eventually(t, func() bool {
		for _, e := range s.audit.Entries() {
			if e.Action == domain.AuditActionAccessDenied && e.ResourceID == "booking_x" {
				return e.ActorID != nil && *e.ActorID == "renter_ama" && e.ResourceType == "booking"
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)
}

func TestRouter_FeeQuote(t *testing.T) {
	s := newTestServer(t, nil)

	status, resp := s.do(http.MethodPost, "/api/v1/fees/quote", "", map[string]interface{}{
		"amount":               "1000",
		"currency":             "USD",
		"diaspora_fee_applied": true,
	})
	require.Equal(t, http.StatusOK, status, resp)
	assert.Equal(t, "1070", data(resp)["total"].(map[string]interface{})["amount"])

	status, resp = s.do(http.MethodPost, "/api/v1/fees/quote", "", map[string]interface{}{
		"amount":          "1000",
		"currency":        "USD",
		"commission_rate": 1.5,
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "FEE_001", resp["error_code"])

	status, resp = s.do(http.MethodPost, "/api/v1/fees/quote", "", map[string]interface{}{
		"amount":   "1000",
		"currency": "usd",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "FEE_001", resp["error_code"])
}

func TestRouter_FeeQuoteRejectsOversizedAmounts(t *testing.T) {
	s := newTestServer(t, nil)

	for _, amount := range []string{"1e2000000", "1e-2000000", "1234567890123456789012345678901"} {
		t.Run(amount, func(t *testing.T) {
			start := time.Now()
			status, resp := s.do(http.MethodPost, "/api/v1/fees/quote", "", map[string]interface{}{
				"amount":   amount,
				"currency": "GHS",
			})
			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, "FEE_001", resp["error_code"])
			assert.Contains(t, resp["message"], "basePrice.amount")
			assert.Less(t, time.Since(start), time.Second)
		})
	}
}

func TestRouter_RateLimit(t *testing.T) {
	s := newTestServer(t, map[string]middleware.RateLimitRule{
		"fees_quote": {Limit: 1, Window: time.Hour},
	})
	body := map[string]interface{}{"amount": "10", "currency": "KES"}

	status, _ := s.do(http.MethodPost, "/api/v1/fees/quote", "", body)
	require.Equal(t, http.StatusOK, status)

	status, resp := s.do(http.MethodPost, "/api/v1/fees/quote", "", body)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, "RATE_001", resp["error_code"])
}

func TestRouter_HealthAndRequestID(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(middleware.HeaderRequestID, "req-123")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "req-123", w.Header().Get(middleware.HeaderRequestID))
	assert.Contains(t, w.Body.String(), `"memory"`)
}

func TestRouter_CheckoutOverRedis(t *testing.T) {
	mr, ss := redisStores(t)
	s := newTestServerWith(t, nil, ss)
	renter := s.token("renter_ama", domain.RoleRenter, false)

	_, resp := s.do(http.MethodPost, "/api/v1/checkout", renter, map[string]string{
		"property_id": "prop_kilimani_1br",
		"start_date":  "2026-11-01",
		"end_date":    "2026-12-01",
	})
	sessionID := data(resp)["session_id"].(string)
	assert.True(t, mr.Exists("checkout:flow:"+sessionID), mr.Keys())

	status, _ := s.do(http.MethodPost, "/api/v1/checkout/"+sessionID+"/advance", renter, nil)
	require.Equal(t, http.StatusOK, status)

	status, resp = s.do(http.MethodPost, "/api/v1/checkout/"+sessionID+"/confirm", renter, nil)
	require.Equal(t, http.StatusCreated, status, resp)
	bookingID := data(resp)["id"].(string)
	assert.Equal(t, "89250.525", data(resp)["total_price"].(map[string]interface{})["amount"])

	status, resp = s.do(http.MethodPost, "/api/v1/checkout/"+sessionID+"/confirm", renter, nil)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, bookingID, data(resp)["id"])

	status, _ = s.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, status)

	mr.Close()
	status, resp = s.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "degraded", resp["status"])
}
