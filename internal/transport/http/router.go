package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/plumehost/platform/internal/application/account"
	"github.com/plumehost/platform/internal/application/broadcast"
	"github.com/plumehost/platform/internal/application/resolver"
	"github.com/plumehost/platform/internal/application/subscription"
	"github.com/plumehost/platform/internal/config"
	"github.com/plumehost/platform/internal/transport/http/handler"
	appmiddleware "github.com/plumehost/platform/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router. Every non-API request
// goes through host resolution first, so blog endpoints always see a resolved
// tenant in context.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	var authMw, optionalAuthMw func(http.Handler) http.Handler
	if deps.JWTProvider != nil {
		authMw = appmiddleware.Auth(deps.JWTProvider)
		optionalAuthMw = appmiddleware.OptionalAuth(deps.JWTProvider)
	} else {
		authMw = func(next http.Handler) http.Handler { return next }
		optionalAuthMw = authMw
	}

	// 5 requests/second, burst of 10 — applied to sensitive public endpoints.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	resolverSvc := resolver.NewService(deps.TenantRepo, cfg.CanonicalHost)
	accountSvc := account.NewService(account.ServiceDeps{Tenants: deps.TenantRepo, Signer: deps.JWTProvider})
	subscriptionSvc := subscription.NewService(deps.SubscriberRepo)
	broadcastSvc := broadcast.NewService(broadcast.ServiceDeps{
		Posts:         deps.PostRepo,
		Tenants:       deps.TenantRepo,
		Subscribers:   deps.SubscriberRepo,
		Deliveries:    deps.DeliveryRepo,
		Mailer:        deps.Mailer,
		CanonicalHost: cfg.CanonicalHost,
		Scheme:        cfg.Scheme,
	})

	healthH := handler.NewHealthHandler()
	accountH := handler.NewAccountHandler(accountSvc)
	subscriptionH := handler.NewSubscriptionHandler(subscriptionSvc)
	deliveryH := handler.NewDeliveryHandler(broadcastSvc)
	blogH := handler.NewBlogHandler()

	r.Use(optionalAuthMw)
	r.Use(appmiddleware.TenantContext(resolverSvc))

	// ── Blog surface (host-resolved) ─────────────────────────────────────────
	r.Get("/", blogH.Home)
	r.With(sensitiveRL.Limit).Post("/subscribe", subscriptionH.Subscribe)
	r.Get("/unsubscribe", subscriptionH.Unsubscribe)
	// Mail clients POST the List-Unsubscribe URL (RFC 8058 one-click), which
	// points at /unsubscribe. One-click means removal, not deactivation.
	r.Post("/unsubscribe", subscriptionH.UnsubscribeKey)
	r.Get("/unsubscribe-key", subscriptionH.UnsubscribeKey)

	// ── Platform API (host-agnostic) ─────────────────────────────────────────
	r.Route("/v1", func(r chi.Router) {
		r.Get("/health-check/{action}", healthH.Ping)
		r.Post("/health-check/{action}", healthH.Ping)
		r.With(sensitiveRL.Limit).Post("/tenants", accountH.Register)
		r.With(sensitiveRL.Limit).Post("/sessions/login", accountH.Login)

		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Get("/tenant/settings", accountH.GetSettings)
			r.Put("/tenant/settings", accountH.UpdateSettings)
			r.Get("/deliveries", deliveryH.ListPending)
			r.Delete("/deliveries/{postID}/{subscriberID}", deliveryH.Cancel)
		})
	})

	return r
}
