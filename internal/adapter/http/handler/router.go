package handler

import (
	"zimba-booking/internal/adapter/http/middleware"
	"zimba-booking/internal/core/domain"
	"zimba-booking/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	CheckoutSvc    ports.CheckoutService
	EscrowSvc      ports.EscrowService
	ReportingSvc   ports.ReportingService
	TokenSvc       ports.TokenService
	RateLimitStore ports.RateLimitStore // nil = rate limiting disabled
	RateLimitRules map[string]middleware.RateLimitRule
	HealthCheckers []ports.HealthChecker
	AuditSvc       ports.AuditService // nil = denied-access auditing disabled
	OpenAPISpec    []byte             // nil = /swagger not mounted
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Audit logging (after response)
	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	if docs := NewDocsHandler(deps.OpenAPISpec); docs != nil {
		r.GET("/swagger", docs.UI)
		r.GET("/swagger/spec", docs.Spec)
	}

	rules := deps.RateLimitRules
	if rules == nil {
		rules = middleware.DefaultRateLimitRules()
	}

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	v1 := r.Group("/api/v1")

	// --- Public routes (no auth) ---
	feeHandler := NewFeeHandler(deps.CheckoutSvc)
	v1.POST("/fees/quote", rl("fees_quote"), feeHandler.Quote)

	// --- JWT-authenticated routes ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	checkoutHandler := NewCheckoutHandler(deps.CheckoutSvc)
	bookingHandler := NewBookingHandler(deps.ReportingSvc, deps.EscrowSvc)
	dashboardHandler := NewDashboardHandler(deps.ReportingSvc)

	checkout := v1.Group("/checkout", jwtAuth)
	{
		checkout.POST("", rl("checkout"), checkoutHandler.Start)
		checkout.GET("/:id", rl("checkout"), checkoutHandler.Get)
		checkout.POST("/:id/advance", rl("checkout"), checkoutHandler.Advance)
		checkout.POST("/:id/retreat", rl("checkout"), checkoutHandler.Retreat)
		checkout.POST("/:id/confirm", rl("checkout_confirm"), checkoutHandler.Confirm)
	}

	bookings := v1.Group("/bookings", jwtAuth)
	{
		bookings.GET("", rl("dashboard"), bookingHandler.List)
		bookings.GET("/:id", rl("dashboard"), bookingHandler.Get)
		bookings.GET("/:id/timeline", rl("dashboard"), bookingHandler.Timeline)

		escrow := bookings.Group("/:id/escrow", rl("escrow"))
		escrow.POST("/move-in", middleware.RequireRole(domain.RoleLandlord, domain.RoleAdmin), bookingHandler.MoveIn)
		escrow.POST("/confirm-keys", middleware.RequireRole(domain.RoleRenter, domain.RoleAdmin), bookingHandler.ConfirmKeys)
		escrow.POST("/dispute", bookingHandler.Dispute)
	}

	dashboard := v1.Group("/dashboard", jwtAuth, middleware.RequireRole(domain.RoleLandlord, domain.RoleAdmin))
	{
		dashboard.GET("/stats", rl("dashboard"), dashboardHandler.GetStats)
	}

	return r
}
