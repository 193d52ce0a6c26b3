package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes configures all API routes.
func SetupRoutes(h *Handlers) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://admin.bellasuite.com", "http://localhost:5173"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", h.HealthCheck)

	// Provider callbacks. Providers can't send auth headers, so these
	// live outside /api; each handler verifies what its provider signs.
	r.Route("/webhooks", func(r chi.Router) {
		r.Post("/ses", h.ReceiveSESWebhook)
		r.Post("/sms", h.ReceiveSMSWebhook)
	})

	// Recipient-facing consent flows, reached from email/SMS links.
	r.Post("/unsubscribe", h.Unsubscribe)
	r.Post("/reactivate", h.Reactivate)

	// Admin API
	r.Route("/api", func(r chi.Router) {
		r.Route("/notifications", func(r chi.Router) {
			r.Post("/", h.EnqueueNotification)
			r.Get("/", h.ListNotifications)
			r.Get("/stats", h.GetQueueStats)
			r.Get("/{id}", h.GetNotification)
			r.Post("/{id}/cancel", h.CancelNotification)
		})

		r.Route("/dead-letters", func(r chi.Router) {
			r.Get("/", h.ListDeadLetters)
			r.Get("/stats", h.GetDeadLetterStats)
			r.Get("/{id}", h.GetDeadLetter)
			r.Post("/{id}/retry", h.RetryDeadLetter)
			r.Post("/{id}/resolve", h.ResolveDeadLetter)
		})

		r.Route("/budget", func(r chi.Router) {
			r.Get("/usage", h.GetBudgetUsage)
			r.Get("/alerts", h.GetBudgetAlerts)
		})

		r.Route("/retry-configs", func(r chi.Router) {
			r.Get("/", h.ListRetryConfigs)
			r.Put("/", h.UpdateRetryConfig)
		})

		r.Route("/consents", func(r chi.Router) {
			r.Post("/", h.RecordConsent)
		})

		r.Route("/suppressions", func(r chi.Router) {
			r.Get("/", h.ListSuppressions)
			r.Post("/", h.CreateSuppression)
		})

		r.Route("/webhook-events", func(r chi.Router) {
			r.Get("/", h.ListWebhookEvents)
		})

		r.Get("/workers", h.ListWorkers)
	})

	return r
}
