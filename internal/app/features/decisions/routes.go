// internal/app/features/decisions/routes.go
package decisions

import "github.com/go-chi/chi/v5"

// Routes returns the router for decision read endpoints.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ServeList)
	r.Get("/latest", h.ServeLatest)
	return r
}
