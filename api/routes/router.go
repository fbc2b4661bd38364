package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/collectibles-backend/api/controllers"
	ordercontrollers "github.com/angelmondragon/collectibles-backend/api/controllers/orders"
	webhookcontrollers "github.com/angelmondragon/collectibles-backend/api/controllers/webhooks"
	"github.com/angelmondragon/collectibles-backend/api/middleware"
	"github.com/angelmondragon/collectibles-backend/api/responses"
	"github.com/angelmondragon/collectibles-backend/internal/activities"
	"github.com/angelmondragon/collectibles-backend/internal/chat"
	checkoutsvc "github.com/angelmondragon/collectibles-backend/internal/checkout"
	"github.com/angelmondragon/collectibles-backend/internal/collectibles"
	"github.com/angelmondragon/collectibles-backend/internal/orders"
	"github.com/angelmondragon/collectibles-backend/internal/purchases"
	"github.com/angelmondragon/collectibles-backend/internal/reconcile"
	"github.com/angelmondragon/collectibles-backend/internal/stats"
	"github.com/angelmondragon/collectibles-backend/internal/trades"
	stripewebhook "github.com/angelmondragon/collectibles-backend/internal/webhooks/stripe"
	"github.com/angelmondragon/collectibles-backend/pkg/config"
	"github.com/angelmondragon/collectibles-backend/pkg/db"
	pkgerrors "github.com/angelmondragon/collectibles-backend/pkg/errors"
	"github.com/angelmondragon/collectibles-backend/pkg/logger"
	"github.com/angelmondragon/collectibles-backend/pkg/metrics"
	"github.com/angelmondragon/collectibles-backend/pkg/redis"
	stripeclient "github.com/angelmondragon/collectibles-backend/pkg/stripe"
)

// Params carries everything the router mounts. Collaborators left nil make
// their routes answer 503 instead of degrading silently.
type Params struct {
	Config *config.Config
	Logger *logger.Logger

	DB    db.Pinger
	Redis *redis.Client

	Checkout     checkoutsvc.Service
	Reconciler   reconcile.Service
	Orders       orders.Service
	Collectibles collectibles.Service
	Purchases    purchases.Service
	Activities   activities.Service
	Trades       trades.Service
	Stats        stats.Service
	Chat         chat.Service

	WebhookService  *stripewebhook.Service
	WebhookVerifier *stripeclient.WebhookVerifier
	WebhookGuard    *stripewebhook.EventGuard

	HTTPMetrics *metrics.HTTPMetrics
	Gatherer    prometheus.Gatherer
}

func NewRouter(p Params) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, p.HTTPMetrics),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		responses.WriteError(r.Context(), nil, w, pkgerrors.New(pkgerrors.CodeNotFound, "route not found"))
	})

	deps := map[string]controllers.Pinger{}
	if p.DB != nil {
		deps["database"] = p.DB
	}
	if p.Redis != nil {
		deps["redis"] = p.Redis
	}

	r.Get("/health", controllers.Health(cfg))
	r.Get("/health/ready", controllers.HealthReady(cfg, logg, deps))
	if p.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(p.Gatherer))
	}

	webhook := webhookcontrollers.StripeWebhook(webhookService(p.WebhookService), webhookVerifier(p.WebhookVerifier), p.WebhookGuard, logg)
	r.Post("/webhook/payment", webhook)
	r.Post("/api/v1/webhooks/stripe", webhook)

	r.With(middleware.OptionalAuth(cfg.Auth, logg)).
		Post("/create-checkout-session", controllers.CreateCheckoutSession(p.Checkout, p.Collectibles, logg))

	var rateStore interface {
		IncrWithTTL(context.Context, string, time.Duration) (int64, error)
	}
	if p.Redis != nil {
		rateStore = p.Redis
	}
	chatPolicy := middleware.NewRateLimitPolicy("chat", cfg.Chat.RateWindow, cfg.Chat.RateLimit)
	r.With(middleware.RateLimit(chatPolicy, rateStore, logg)).
		Post("/chat", controllers.Chat(p.Chat, logg))

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.Auth, logg))
		r.Post("/checkout/confirm", controllers.ConfirmCheckout(p.Checkout, p.Reconciler, p.Collectibles, logg))
		r.Get("/checkout/sessions/{sessionId}", controllers.CheckoutSessionStatus(p.Purchases, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/collectibles", controllers.CollectibleList(p.Collectibles, logg))
		r.Get("/collectibles/{collectibleId}", controllers.CollectibleDetail(p.Collectibles, logg))
		r.Get("/collectibles/{collectibleId}/book", ordercontrollers.Book(p.Orders, logg))
		r.Get("/stats/market", controllers.MarketStats(p.Stats, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.Auth, logg))

			r.Post("/collectibles", controllers.CollectibleCreate(p.Collectibles, logg))
			r.Get("/me/collectibles", controllers.CollectiblesOwned(p.Collectibles, logg))
			r.Get("/purchases", controllers.PurchaseList(p.Purchases, logg))
			r.Get("/activities", controllers.ActivityList(p.Activities, logg))
			r.Get("/trades", controllers.TradeList(p.Trades, logg))
			r.Get("/me/stats", controllers.UserStats(p.Stats, logg))

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", ordercontrollers.List(p.Orders, logg))
				r.Post("/", ordercontrollers.Create(p.Orders, logg))
				r.Post("/{orderId}/cancel", ordercontrollers.Cancel(p.Orders, logg))
			})
		})
	})

	return r
}

// The helpers below keep typed nil pointers from reaching controllers as
// non-nil interfaces.

func webhookService(svc *stripewebhook.Service) webhookcontrollers.StripeWebhookService {
	if svc == nil {
		return nil
	}
	return svc
}

type eventVerifier interface {
	Verify(payload []byte, signatureHeader string) (stripe.Event, error)
}

func webhookVerifier(v *stripeclient.WebhookVerifier) eventVerifier {
	if v == nil {
		return nil
	}
	return v
}
