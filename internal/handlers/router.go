package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"deskhealth/internal/middleware"
)

// NewRouter wires the control endpoints
func NewRouter(h *ControlHandler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)

	r.Get("/health", h.Health)
	r.Get("/state", h.State)
	r.Get("/stats", h.Stats)
	r.Post("/mode", h.SetMode)
	r.Put("/notify", h.SetNotify)
	r.Get("/ws", h.LiveFeed)

	// Prometheus metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	return r
}
