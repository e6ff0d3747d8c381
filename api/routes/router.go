package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/blingbridge/api/controllers"
	webhookcontrollers "github.com/angelmondragon/blingbridge/api/controllers/webhooks"
	"github.com/angelmondragon/blingbridge/api/middleware"
	"github.com/angelmondragon/blingbridge/pkg/auth"
	"github.com/angelmondragon/blingbridge/pkg/config"
	"github.com/angelmondragon/blingbridge/pkg/logger"
)

// Deps bundles the services the HTTP surface dispatches to.
type Deps struct {
	DB           controllers.Pinger
	Redis        controllers.Pinger
	Replay       middleware.ReplayStore
	Metrics      http.Handler
	Tokens       controllers.TokenService
	Orders       controllers.OrderService
	Orchestrator controllers.InvoiceIssuer
	Channels     controllers.SalesChannelLister
	Webhooks     webhookcontrollers.BlingWebhookService
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	metricsHandler := deps.Metrics
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg.App.Env))
		r.Get("/ready", controllers.HealthReady(cfg.App.Env, logg, map[string]controllers.Pinger{
			"db":    deps.DB,
			"redis": deps.Redis,
		}))
	})
	r.Handle("/metrics", metricsHandler)

	// Bling delivers to /webhook; the versioned path is kept for new registrations.
	webhook := webhookcontrollers.BlingWebhook(deps.Webhooks, logg)
	r.Post("/webhook", webhook)
	r.Post("/api/v1/webhooks/bling", webhook)

	r.Get("/auth/callback", controllers.OAuthCallback(deps.Tokens, cfg.Bling.SuccessURL, logg))

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.With(middleware.RequireRole(logg, auth.RoleAdmin)).
			Post("/refresh-token", controllers.RefreshToken(deps.Tokens, logg))

		r.Route("/api/v1", func(r chi.Router) {
			r.Use(middleware.Idempotency(deps.Replay, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, auth.RoleAdmin, auth.RoleStore))
				r.Post("/orders", controllers.OrderSnapshot(deps.Orders, logg))
				r.Post("/orders/{orderId}/status", controllers.OrderStatusChange(deps.Orchestrator, cfg.Invoice, logg))
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, auth.RoleAdmin))
				r.Post("/orders/{orderId}/invoice", controllers.OrderInvoiceCreate(deps.Orchestrator, cfg.Invoice, logg))
				r.Get("/orders/{orderId}/invoice", controllers.OrderInvoiceGet(deps.Orders, logg))
				r.Get("/sales-channels", controllers.SalesChannels(deps.Channels, logg))
			})
		})
	})

	return r
}
