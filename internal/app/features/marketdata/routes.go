// internal/app/features/marketdata/routes.go
package marketdata

import "github.com/go-chi/chi/v5"

func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/quote/{symbol}", h.ServeQuote)
	r.Get("/option-chain/{symbol}", h.ServeOptionChain)
	return r
}
