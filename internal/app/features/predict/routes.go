// internal/app/features/predict/routes.go
package predict

import (
	"github.com/go-chi/chi/v5"

	"github.com/deepak0937/deepak-watchdog/internal/app/system/adminauth"
)

// Routes returns the router for /predict, admin-guarded: each call
// spends model tokens.
func Routes(h *Handler, guard *adminauth.Guard) chi.Router {
	r := chi.NewRouter()
	r.Use(guard.Require)
	r.Post("/", h.ServePredict)
	r.Get("/recent", h.ServeRecent)
	return r
}
