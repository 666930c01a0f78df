// internal/app/features/marketdata/handler.go
package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/deepak0937/deepak-watchdog/internal/app/broker/groww"
	"github.com/deepak0937/deepak-watchdog/internal/app/system/timeouts"
	"github.com/deepak0937/deepak-watchdog/internal/domain/models"
)

// Source is the market-data slice of the Groww client.
type Source interface {
	Quote(ctx context.Context, symbol string) (*groww.Quote, error)
	OptionChain(ctx context.Context, symbol, expiry string) (*models.OptionChain, error)
}

// Handler serves live quotes and option chains straight from the
// upstream broker; nothing here touches the database.
type Handler struct {
	Source Source
	Log    *zap.Logger
}

func NewHandler(source Source, logger *zap.Logger) *Handler {
	return &Handler{Source: source, Log: logger}
}

// ServeQuote handles GET /market/quote/{symbol}.
func (h *Handler) ServeQuote(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Upstream())
	defer cancel()

	symbol := strings.ToUpper(chi.URLParam(r, "symbol"))
	q, err := h.Source.Quote(ctx, symbol)
	if err != nil {
		h.upstreamError(w, "quote", symbol, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// ServeOptionChain handles GET /market/option-chain/{symbol}?expiry=YYYY-MM-DD.
// Expiry is optional; the broker resolves the nearest one when absent.
func (h *Handler) ServeOptionChain(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Upstream())
	defer cancel()

	symbol := strings.ToUpper(chi.URLParam(r, "symbol"))
	expiry := r.URL.Query().Get("expiry")
	chain, err := h.Source.OptionChain(ctx, symbol, expiry)
	if err != nil {
		h.upstreamError(w, "option chain", symbol, err)
		return
	}
	if len(chain.CE) == 0 && len(chain.PE) == 0 {
		h.Log.Warn("empty option chain", zap.String("symbol", symbol))
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "upstream returned an empty option chain"})
		return
	}
	writeJSON(w, http.StatusOK, chain)
}

func (h *Handler) upstreamError(w http.ResponseWriter, what, symbol string, err error) {
	if errors.Is(err, groww.ErrNoCredentials) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "broker not configured"})
		return
	}
	h.Log.Warn("market data fetch failed",
		zap.String("what", what),
		zap.String("symbol", symbol),
		zap.Error(err))
	writeJSON(w, http.StatusBadGateway, map[string]string{"error": "upstream " + what + " fetch failed"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
