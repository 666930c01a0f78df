// internal/app/features/oi/routes.go
package oi

import (
	"github.com/go-chi/chi/v5"

	"github.com/deepak0937/deepak-watchdog/internal/app/system/ratelimit"
)

// Routes wires the public OI endpoints behind a per-IP limiter.
func Routes(h *Handler, limiter *ratelimit.Limiter) chi.Router {
	r := chi.NewRouter()
	r.Use(limiter.Middleware)
	r.Get("/daily", h.ServeDaily)
	r.Get("/history", h.ServeHistory)
	return r
}
