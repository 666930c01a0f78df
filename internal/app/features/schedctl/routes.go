// internal/app/features/schedctl/routes.go
package schedctl

import (
	"github.com/go-chi/chi/v5"

	"github.com/deepak0937/deepak-watchdog/internal/app/system/adminauth"
)

// Routes returns the router for /scheduler. Status is public; the
// switches are admin-only.
func Routes(h *Handler, guard *adminauth.Guard) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ServeStatus)
	r.Group(func(r chi.Router) {
		r.Use(guard.Require)
		r.Post("/pause", h.ServePause)
		r.Post("/resume", h.ServeResume)
		r.Post("/run-now", h.ServeRunNow)
	})
	return r
}
