package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/angelmondragon/collectibles-backend/api/routes"
	"github.com/angelmondragon/collectibles-backend/internal/activities"
	"github.com/angelmondragon/collectibles-backend/internal/chat"
	"github.com/angelmondragon/collectibles-backend/internal/checkout"
	"github.com/angelmondragon/collectibles-backend/internal/collectibles"
	"github.com/angelmondragon/collectibles-backend/internal/orders"
	"github.com/angelmondragon/collectibles-backend/internal/purchases"
	"github.com/angelmondragon/collectibles-backend/internal/reconcile"
	"github.com/angelmondragon/collectibles-backend/internal/stats"
	"github.com/angelmondragon/collectibles-backend/internal/trades"
	stripewebhook "github.com/angelmondragon/collectibles-backend/internal/webhooks/stripe"
	"github.com/angelmondragon/collectibles-backend/pkg/config"
	"github.com/angelmondragon/collectibles-backend/pkg/db"
	"github.com/angelmondragon/collectibles-backend/pkg/instance"
	"github.com/angelmondragon/collectibles-backend/pkg/logger"
	"github.com/angelmondragon/collectibles-backend/pkg/metrics"
	"github.com/angelmondragon/collectibles-backend/pkg/migrate"
	"github.com/angelmondragon/collectibles-backend/pkg/outbox"
	"github.com/angelmondragon/collectibles-backend/pkg/redis"
	stripeclient "github.com/angelmondragon/collectibles-backend/pkg/stripe"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		_ = dbClient.Close()
		os.Exit(1)
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(context.Background(), cfg.Redis, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			_ = dbClient.Close()
			os.Exit(1)
		}
	} else {
		logg.Warn(context.Background(), "redis not configured; webhook fast path and chat rate limit disabled")
	}

	defer func() {
		errs := dbClient.Close()
		if redisClient != nil {
			errs = multierr.Append(errs, redisClient.Close())
		}
		if errs != nil {
			logg.Error(context.Background(), "error releasing resources", errs)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	paymentMetrics := metrics.NewPaymentMetrics(registry)
	httpMetrics := metrics.NewHTTPMetrics(registry)

	params, err := buildServices(context.Background(), cfg, logg, dbClient, redisClient, paymentMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to build services", err)
		os.Exit(1)
	}
	params.HTTPMetrics = httpMetrics
	params.Gatherer = registry

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(params),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "api server shutdown failed", err)
		}
		logg.Info(shutdownCtx, "api server shutting down gracefully")
	}
}

// buildServices wires every domain service. Payment and chat collaborators are
// optional: when their credentials are missing the matching routes answer 503.
func buildServices(
	ctx context.Context,
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	redisClient *redis.Client,
	paymentMetrics *metrics.PaymentMetrics,
) (routes.Params, error) {
	params := routes.Params{
		Config: cfg,
		Logger: logg,
		DB:     dbClient,
		Redis:  redisClient,
	}

	emitter := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	activityRepo := activities.NewRepository(dbClient.DB())
	activityService, err := activities.NewService(activityRepo)
	if err != nil {
		return params, err
	}
	params.Activities = activityService

	collectibleRepo := collectibles.NewRepository(dbClient.DB())
	collectibleService, err := collectibles.NewService(collectibles.ServiceParams{
		Repo:       collectibleRepo,
		Tx:         dbClient,
		Outbox:     emitter,
		Activities: activityService,
	})
	if err != nil {
		return params, err
	}
	params.Collectibles = collectibleService

	purchaseRepo := purchases.NewRepository(dbClient.DB())
	purchaseService, err := purchases.NewService(purchaseRepo)
	if err != nil {
		return params, err
	}
	params.Purchases = purchaseService

	tradeRepo := trades.NewRepository(dbClient.DB())
	tradeService, err := trades.NewService(tradeRepo)
	if err != nil {
		return params, err
	}
	params.Trades = tradeService

	statsService, err := stats.NewService(stats.ServiceParams{
		Trades:       tradeRepo,
		Purchases:    purchaseRepo,
		Collectibles: collectibleRepo,
	})
	if err != nil {
		return params, err
	}
	params.Stats = statsService

	var checkoutService checkout.Service
	stripeClient, err := stripeclient.NewClient(ctx, cfg.Stripe, logg)
	switch {
	case errors.Is(err, stripeclient.ErrAPIKeyRequired):
		logg.Warn(ctx, "stripe secret key not configured; checkout disabled")
	case err != nil:
		return params, err
	default:
		checkoutService, err = checkout.NewService(checkout.ServiceParams{
			Gateway: stripeClient,
			Config:  cfg.Checkout,
			Metrics: paymentMetrics,
			Logger:  logg,
		})
		if err != nil {
			return params, err
		}
		params.Checkout = checkoutService
	}

	orderRepo := orders.NewRepository(dbClient.DB())
	orderService, err := orders.NewService(orders.ServiceParams{
		Repo:         orderRepo,
		Tx:           dbClient,
		Collectibles: collectibleRepo,
		Checkout:     checkoutService,
		Trades:       tradeRepo,
		Outbox:       emitter,
		Activities:   activityService,
		OrderTTL:     cfg.Checkout.OrderTTL,
		Logger:       logg,
	})
	if err != nil {
		return params, err
	}
	params.Orders = orderService

	reconciler, err := reconcile.NewService(reconcile.ServiceParams{
		Tx:           dbClient,
		Purchases:    purchaseRepo,
		Orders:       orderRepo,
		Collectibles: collectibleRepo,
		Trades:       tradeRepo,
		Activities:   activityService,
		Outbox:       emitter,
		Metrics:      paymentMetrics,
		Logger:       logg,
	})
	if err != nil {
		return params, err
	}
	params.Reconciler = reconciler

	params.WebhookService, err = stripewebhook.NewService(stripewebhook.ServiceParams{
		Reconciler: reconciler,
		Metrics:    paymentMetrics,
		Logger:     logg,
	})
	if err != nil {
		return params, err
	}

	verifier, err := stripeclient.NewWebhookVerifier(cfg.Stripe.WebhookSecret)
	switch {
	case errors.Is(err, stripeclient.ErrSigningSecretRequired):
		logg.Warn(ctx, "stripe webhook secret not configured; webhook deliveries will be refused")
	case err != nil:
		return params, err
	default:
		params.WebhookVerifier = verifier
	}

	if redisClient != nil {
		params.WebhookGuard, err = stripewebhook.NewEventGuard(redisClient, cfg.Stripe.EventGuardTTL)
		if err != nil {
			return params, err
		}
	}

	chatService, err := chat.NewService(cfg.Chat, logg)
	switch {
	case errors.Is(err, chat.ErrAPIKeyRequired):
		logg.Warn(ctx, "chat api key not configured; chat disabled")
	case err != nil:
		return params, err
	default:
		params.Chat = chatService
	}

	return params, nil
}
