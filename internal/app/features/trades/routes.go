// internal/app/features/trades/routes.go
package trades

import (
	"github.com/go-chi/chi/v5"

	"github.com/deepak0937/deepak-watchdog/internal/app/system/adminauth"
)

// Routes returns the router for /trades. Everything here is behind the
// admin guard; even a simulated order reveals strategy.
func Routes(h *Handler, guard *adminauth.Guard) chi.Router {
	r := chi.NewRouter()
	r.Use(guard.Require)
	r.Get("/", h.ServeHistory)
	r.Post("/", h.ServePlace)
	r.Post("/simulate", h.ServeSimulate)
	return r
}

// AdminRoutes returns the router for /admin/trades.
func AdminRoutes(h *Handler, guard *adminauth.Guard) chi.Router {
	r := chi.NewRouter()
	r.Use(guard.Require)
	r.Get("/active", h.ServeActive)
	r.Delete("/active", h.ServeClear)
	return r
}
