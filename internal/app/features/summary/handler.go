// internal/app/features/summary/handler.go
package summary

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/deepak0937/deepak-watchdog/internal/app/broker/zerodha"
	decstore "github.com/deepak0937/deepak-watchdog/internal/app/store/decisions"
	"github.com/deepak0937/deepak-watchdog/internal/app/system/timeouts"
)

// AccountSource is the account-snapshot slice of the Kite client.
type AccountSource interface {
	Positions(ctx context.Context) ([]zerodha.Position, error)
	Margins(ctx context.Context) (zerodha.Margins, error)
}

// Handler serves the public account summary. With a live broker session
// it reports real positions and margins; without one it degrades to the
// decision log so the endpoint is never just an error page.
type Handler struct {
	Account   AccountSource
	Decisions *decstore.Store
	Log       *zap.Logger
}

func NewHandler(account AccountSource, decisions *decstore.Store, logger *zap.Logger) *Handler {
	return &Handler{Account: account, Decisions: decisions, Log: logger}
}

type brokerSummary struct {
	Source        string  `json:"source"`
	NetPnL        float64 `json:"net_pnl"`
	OpenPositions int     `json:"open_positions"`
	Equity        float64 `json:"equity"`
	Cash          float64 `json:"cash"`
}

type decisionsSummary struct {
	Source         string     `json:"source"`
	Decisions      int64      `json:"decisions"`
	LastDecisionAt *time.Time `json:"last_decision_at,omitempty"`
	Note           string     `json:"note"`
}

// ServeSummary handles GET /public/summary.
func (h *Handler) ServeSummary(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Upstream())
	defer cancel()

	positions, perr := h.Account.Positions(ctx)
	if perr == nil {
		margins, merr := h.Account.Margins(ctx)
		if merr == nil {
			writeJSON(w, http.StatusOK, buildBrokerSummary(positions, margins))
			return
		}
		perr = merr
	}
	h.Log.Debug("broker summary unavailable, falling back to decisions", zap.Error(perr))
	h.serveDecisionsFallback(ctx, w)
}

func buildBrokerSummary(positions []zerodha.Position, margins zerodha.Margins) brokerSummary {
	s := brokerSummary{Source: "broker"}
	for _, p := range positions {
		s.NetPnL += p.PnL
		if p.Quantity != 0 {
			s.OpenPositions++
		}
	}
	s.Equity = margins.Net
	if s.Equity == 0 {
		s.Equity = margins.Available.LiveBalance
	}
	s.Cash = margins.Available.Cash
	return s
}

func (h *Handler) serveDecisionsFallback(ctx context.Context, w http.ResponseWriter) {
	count, err := h.Decisions.Count(ctx)
	if err != nil {
		h.Log.Error("decisions count failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	out := decisionsSummary{
		Source:    "decisions",
		Decisions: count,
		Note:      "broker session not active; showing decision log stats",
	}
	if latest, err := h.Decisions.Latest(ctx); err == nil && latest != nil {
		t := latest.CreatedAt
		out.LastDecisionAt = &t
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
