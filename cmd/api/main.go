package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/marketly/marketly-api/internal/config"
	"github.com/marketly/marketly-api/internal/domain/boost"
	"github.com/marketly/marketly-api/internal/domain/product"
	"github.com/marketly/marketly-api/internal/domain/reconciler"
	"github.com/marketly/marketly-api/internal/domain/token"
	"github.com/marketly/marketly-api/internal/middleware"
	"github.com/marketly/marketly-api/internal/pkg/database"
	"github.com/marketly/marketly-api/internal/pkg/eventbus"
	"github.com/marketly/marketly-api/internal/pkg/jwt"
	"github.com/marketly/marketly-api/internal/pkg/logger"
	pkgresponse "github.com/marketly/marketly-api/internal/pkg/response"
	"github.com/marketly/marketly-api/internal/pkg/telemetry"
)

const serviceName = "marketly-api"

func main() {
	cfg := config.Load()
	logger.Init(logger.Config{
		Level:       cfg.LogLevel,
		Environment: cfg.Env,
		Service:     serviceName,
		LogFile:     cfg.LogFile,
	})

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Msg("Starting Marketly API")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tel, err := telemetry.New(ctx, telemetry.Config{
		Enabled:     cfg.OtelEnabled,
		Endpoint:    cfg.OtelEndpoint,
		Insecure:    cfg.OtelInsecure,
		ServiceName: cfg.OtelServiceName,
		SampleRate:  cfg.OtelSampleRate,
		Environment: cfg.Env,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialise tracing")
	}

	db, err := database.NewPostgres(cfg.DatabaseURL, database.DefaultPoolConfig())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	rdb, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(rdb)

	nc, err := eventbus.Connect(cfg.NatsURL, serviceName)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to NATS")
	}
	var bus eventbus.Publisher = eventbus.NopBus{}
	if nc != nil {
		bus = eventbus.NewNatsBus(nc)
		defer nc.Close()
	} else {
		log.Warn().Msg("NATS URL not configured, domain events are dropped")
	}

	jwtService := jwt.NewService(cfg.JWTSecret, cfg.JWTAccessTTL)

	// ---------- Repositories ----------
	tokenRepo := token.NewRepository(db, cfg.LockTimeout)
	productRepo := product.NewRepository(db)
	boostRepo := boost.NewRepository(db, productRepo)
	sweepRepo := reconciler.NewRepository(db)

	var balanceCache token.BalanceCache
	if rdb != nil {
		balanceCache = token.NewRedisCache(rdb, cfg.BalanceCacheTTL)
	}

	// ---------- Services ----------
	tokenService := token.NewService(tokenRepo, balanceCache, bus, token.Config{
		SignupBonus:         cfg.SignupBonusTokens,
		FreeTokensTTL:       cfg.FreeTokensTTL,
		PublishCost:         cfg.PublishCost,
		LowBalanceThreshold: cfg.LowBalanceThreshold,
	})
	productService := product.NewService(productRepo, tokenService, tokenService.Now)
	boostService := boost.NewService(boostRepo, tokenService, bus, cfg.BoostCost, tokenService.Now)
	expiryWorker := reconciler.NewWorker(tokenService, boostService, sweepRepo, cfg.ReconcileInterval, tokenService.Now)

	// ---------- Handlers ----------
	tokenHandler := token.NewHandler(tokenService)
	tokenAdminHandler := token.NewAdminHandler(tokenService)
	paymentHandler := token.NewPaymentHandler(tokenService, cfg.PaymentWebhookSecret)
	productHandler := product.NewHandler(productService)
	boostHandler := boost.NewHandler(boostService)

	authMiddleware := middleware.Auth(jwtService)
	rateLimiter := middleware.NewRateLimiter(rdb, cfg.RateLimitPerMinute, cfg.RateLimitBurst)

	// ---------- Router ----------
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			pkgresponse.Error(w, http.StatusServiceUnavailable, "UNAVAILABLE", "database unreachable")
			return
		}
		pkgresponse.OK(w, map[string]string{
			"status":  "ok",
			"version": "1.0.0",
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/tokens", tokenHandler.Routes(authMiddleware, rateLimiter.Handler))
		mountProductRoutes(r,
			productHandler.Routes(authMiddleware, rateLimiter.Handler),
			boostHandler.Routes(authMiddleware, rateLimiter.Handler),
		)
	})

	r.Mount("/webhooks", paymentHandler.WebhookRoutes())
	r.Mount("/api/admin", tokenAdminHandler.Routes(authMiddleware))

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return expiryWorker.Run(gctx)
	})

	if nc != nil {
		subscriber := eventbus.NewSubscriber(nc, serviceName)
		paymentHandler.Register(subscriber)
		g.Go(func() error {
			return subscriber.Start(gctx)
		})
	}

	<-gctx.Done()
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	expiryWorker.Stop()

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Background task failed")
	}

	if err := tel.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Failed to flush traces")
	}

	log.Info().Msg("Server exited properly")
}

// mountProductRoutes nests the boost router under a product id next to the
// product router itself.
func mountProductRoutes(r chi.Router, products, boosts http.Handler) {
	r.Mount("/products", products)
	r.Mount("/products/{id}/boost", boosts)
}
