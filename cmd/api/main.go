package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"zimba-booking/config"
	httpHandler "zimba-booking/internal/adapter/http/handler"
	"zimba-booking/internal/adapter/settlement"
	"zimba-booking/internal/adapter/storage/memory"
	pgStorage "zimba-booking/internal/adapter/storage/postgres"
	redisStorage "zimba-booking/internal/adapter/storage/redis"
	"zimba-booking/internal/core/ports"
	"zimba-booking/internal/service"
	"zimba-booking/pkg/logger"

	"github.com/rs/zerolog"
)

// storage bundles the persistence ports for the selected driver.
type storage struct {
	properties ports.PropertyRepository
	bookings   ports.BookingRepository
	events     ports.EscrowEventRepository
	audit      ports.AuditRepository
	transactor ports.DBTransactor
	health     ports.HealthChecker
	close      func()
}

// stores bundles the short-lived state kept outside the database.
type stores struct {
	flows     ports.FlowStore
	guard     ports.ConfirmGuard
	idemp     ports.IdempotencyCache
	rateLimit ports.RateLimitStore
	health    ports.HealthChecker
	close     func()
}

func main() {
	if err := config.LoadEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(os.Getenv("ZMB_CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Str("storage", cfg.Storage.Driver).
		Str("provider", cfg.Settlement.Provider).
		Msg("Starting Zimba booking service")

	ctx := context.Background()

	st, err := openStorage(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open storage")
	}
	defer st.close()

	ss, err := openStores(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open session stores")
	}
	defer ss.close()

	settler := newSettler(cfg.Settlement, log)

	// Initialize business services
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	auditSvc := service.NewAuditService(st.audit, logger.Component(log, "audit"))
	checkoutSvc := service.NewCheckoutService(
		st.properties,
		st.bookings,
		st.events,
		ss.flows,
		ss.guard,
		ss.idemp,
		settler,
		st.transactor,
		auditSvc,
		service.CheckoutOptions{
			CommissionRate:  cfg.Fees.CommissionRate,
			DiasporaFeeRate: cfg.Fees.DiasporaFeeRate,
			SessionTTL:      cfg.Checkout.SessionTTL,
			ConfirmTimeout:  cfg.Checkout.ConfirmTimeout,
			IdempotencyTTL:  cfg.Checkout.IdempotencyTTL,
		},
		logger.Component(log, "checkout"),
	)
	escrowSvc := service.NewEscrowService(st.bookings, st.events, st.transactor, auditSvc, logger.Component(log, "escrow"))
	reportingSvc := service.NewReportingService(st.bookings)

	openAPISpec, err := os.ReadFile("docs/api/openapi.yaml")
	if err != nil {
		log.Warn().Err(err).Msg("OpenAPI spec not found, /swagger disabled")
	}

	checkers := []ports.HealthChecker{st.health}
	if ss.health != nil {
		checkers = append(checkers, ss.health)
	}

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		CheckoutSvc:    checkoutSvc,
		EscrowSvc:      escrowSvc,
		ReportingSvc:   reportingSvc,
		TokenSvc:       tokenSvc,
		RateLimitStore: ss.rateLimit,
		HealthCheckers: checkers,
		AuditSvc:       auditSvc,
		OpenAPISpec:    openAPISpec,
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	// In-flight confirmations may still be settling.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Checkout.ConfirmTimeout+5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

func openStorage(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*storage, error) {
	if cfg.Storage.Driver == "memory" {
		props := memory.NewPropertyRepo()
		if cfg.Storage.SeedDemo {
			for _, p := range memory.DemoProperties() {
				props.Put(p)
			}
		}
		log.Warn().Msg("Using in-memory storage, data is lost on restart")
		return &storage{
			properties: props,
			bookings:   memory.NewBookingRepo(),
			events:     memory.NewEscrowEventRepo(),
			audit:      memory.NewAuditRepo(),
			transactor: memory.NewTransactor(),
			health:     memory.HealthCheck{},
			close:      func() {},
		}, nil
	}

	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		return nil, err
	}
	if err := pgStorage.RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	props := pgStorage.NewPropertyRepo(pool)
	if cfg.Storage.SeedDemo {
		for _, p := range memory.DemoProperties() {
			if err := props.Upsert(ctx, p); err != nil {
				pool.Close()
				return nil, fmt.Errorf("seeding catalog: %w", err)
			}
		}
		log.Info().Msg("Demo property catalog seeded")
	}

	return &storage{
		properties: props,
		bookings:   pgStorage.NewBookingRepo(pool),
		events:     pgStorage.NewEscrowEventRepo(pool),
		audit:      pgStorage.NewAuditRepo(pool),
		transactor: pgStorage.NewTransactor(pool),
		health:     pgStorage.NewHealthCheck(pool),
		close:      pool.Close,
	}, nil
}

func openStores(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*stores, error) {
	if !cfg.Redis.Enabled {
		log.Warn().Msg("Redis disabled, checkout sessions and rate limits are kept in process")
		return &stores{
			flows:     memory.NewFlowStore(),
			guard:     memory.NewConfirmGuard(),
			idemp:     memory.NewIdempotencyCache(),
			rateLimit: memory.NewRateLimitStore(),
			close:     func() {},
		}, nil
	}

	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		return nil, err
	}
	return &stores{
		flows:     redisStorage.NewFlowStore(rdb),
		guard:     redisStorage.NewConfirmGuard(rdb),
		idemp:     redisStorage.NewIdempotencyCache(rdb),
		rateLimit: redisStorage.NewRateLimitStore(rdb),
		health:    redisStorage.NewHealthCheck(rdb),
		close:     func() { _ = rdb.Close() },
	}, nil
}

func newSettler(cfg config.SettlementConfig, log zerolog.Logger) ports.Settler {
	if cfg.Provider == "stripe" {
		return settlement.NewStripe(settlement.NewStripeClient(cfg.StripeSecretKey), cfg.StripePaymentMethod, logger.Component(log, "stripe"))
	}
	return settlement.NewSimulated(cfg.Delay, nil)
}
