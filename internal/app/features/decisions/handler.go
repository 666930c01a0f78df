package decisions

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	decisionstore "github.com/deepak0937/deepak-watchdog/internal/app/store/decisions"
	"github.com/deepak0937/deepak-watchdog/internal/app/system/timeouts"
	"github.com/deepak0937/deepak-watchdog/internal/domain/models"
)

// Handler serves read access to stored watchdog decisions.
type Handler struct {
	Decisions *decisionstore.Store
	Log       *zap.Logger
}

// NewHandler creates a decisions handler.
func NewHandler(store *decisionstore.Store, logger *zap.Logger) *Handler {
	return &Handler{Decisions: store, Log: logger}
}

// latestResponse is the shape alert consumers poll for: when the
// decision was made, for what, on what data, and what the model said.
type latestResponse struct {
	TS             time.Time     `json:"ts"`
	Symbol         string        `json:"symbol"`
	MarketSnapshot bson.M        `json:"market_snapshot"`
	AI             models.Advice `json:"ai"`
}

// ServeLatest handles GET /decisions/latest.
func (h *Handler) ServeLatest(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	w.Header().Set("Content-Type", "application/json")

	d, err := h.Decisions.Latest(ctx)
	if err != nil {
		h.Log.Error("latest decision lookup failed", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "internal error"})
		return
	}
	if d == nil {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "no data"})
		return
	}

	_ = json.NewEncoder(w).Encode(latestResponse{
		TS:             d.CreatedAt,
		Symbol:         d.Symbol,
		MarketSnapshot: d.Snapshot,
		AI:             d.Advice,
	})
}

// ServeList handles GET /decisions. Optional query parameters: symbol
// to filter, limit (default 20, store-capped).
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	w.Header().Set("Content-Type", "application/json")

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	list, err := h.Decisions.List(ctx, r.URL.Query().Get("symbol"), limit)
	if err != nil {
		h.Log.Error("decision list failed", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "internal error"})
		return
	}

	_ = json.NewEncoder(w).Encode(map[string]any{
		"decisions": list,
		"count":     len(list),
	})
}
