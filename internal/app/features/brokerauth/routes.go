// internal/app/features/brokerauth/routes.go
package brokerauth

import "github.com/go-chi/chi/v5"

// Routes exposes the broker connect flow. No admin guard here: the
// redirect target is a human browser session, and the callback is only
// redeemable with a state our own /zerodha endpoint minted.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/zerodha", h.ServeConnect)
	r.Get("/zerodha/callback", h.ServeCallback)
	return r
}
