package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robertarktes/afterschool-bookings/internal/idempotency"
	"github.com/robertarktes/afterschool-bookings/internal/observability"
)

type RouterConfig struct {
	// RateLimiter is optional; nil disables rate limiting.
	RateLimiter        Limiter
	RateLimitPerMinute int
	// Idempotency is optional; nil disables Idempotency-Key replay.
	Idempotency *idempotency.Idempotency
	ImagesDir   string
}

func SetupRouter(h *Handlers, logger observability.Logger, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(RequestIDMiddleware)
	r.Use(LoggerMiddleware(logger))
	r.Use(RecoverMiddleware(logger))
	r.Use(TracingMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Idempotency-Key"},
		MaxAge:         300,
	}))

	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Group(func(r chi.Router) {
		if cfg.RateLimiter != nil && cfg.RateLimitPerMinute > 0 {
			r.Use(RateLimitMiddleware(cfg.RateLimiter, cfg.RateLimitPerMinute, logger))
		}

		r.Get("/api/lessons", h.ListLessons)
		r.Put("/api/lessons/{id}", h.UpdateLesson)
		r.Patch("/api/lessons/{id}", h.UpdateLesson)

		r.Get("/api/orders", h.ListOrders)
		r.Delete("/api/orders/{id}", h.CancelOrder)
		if cfg.Idempotency != nil {
			r.With(IdempotencyMiddleware(cfg.Idempotency, logger)).Post("/api/orders", h.PlaceOrder)
		} else {
			r.Post("/api/orders", h.PlaceOrder)
		}

		r.Handle("/images/*", ImagesHandler(cfg.ImagesDir, logger))
		r.Get("/test-image/{imageName}", h.TestImage)
	})

	return r
}
