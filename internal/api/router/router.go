// Package router wires the HTTP surface: the WhatsApp webhook, health probes,
// Prometheus metrics and the owner-facing funnel endpoints.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tapbook/salon-booking/internal/http/handlers"
	httpmiddleware "github.com/tapbook/salon-booking/internal/http/middleware"
	"github.com/tapbook/salon-booking/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger         *logging.Logger
	Webhook        *handlers.WhatsAppWebhookHandler
	Health         *handlers.HealthHandler
	AdminFunnel    *handlers.AdminFunnelHandler
	MetricsHandler http.Handler
}

// New creates a chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	if cfg.Health != nil {
		r.Get("/health", cfg.Health.Live)
		r.Get("/ready", cfg.Health.Ready)
	}
	if cfg.Webhook != nil {
		r.Route("/webhooks/whatsapp", func(r chi.Router) {
			r.Get("/", cfg.Webhook.Verify)
			r.Post("/", cfg.Webhook.Receive)
		})
	}
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}
	if cfg.AdminFunnel != nil {
		r.Route("/admin/salons/{salonID}", func(r chi.Router) {
			r.Get("/funnel", cfg.AdminFunnel.Funnel)
			r.Get("/events", cfg.AdminFunnel.Events)
		})
	}

	return r
}
