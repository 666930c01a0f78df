// internal/app/features/trades/handler.go
package trades

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/deepak0937/deepak-watchdog/internal/app/broker/zerodha"
	tradestore "github.com/deepak0937/deepak-watchdog/internal/app/store/trades"
	"github.com/deepak0937/deepak-watchdog/internal/app/system/timeouts"
	"github.com/deepak0937/deepak-watchdog/internal/domain/models"
)

// Broker places real orders. *zerodha.Client satisfies it; tests
// substitute a fake.
type Broker interface {
	PlaceOrder(ctx context.Context, p zerodha.OrderParams) (string, error)
}

// Handler serves the risk-gated trade endpoints.
type Handler struct {
	Trades  *tradestore.Store
	Broker  Broker
	MaxLoss float64
	Log     *zap.Logger
}

// NewHandler creates a trades handler. maxLoss is the worst-case-loss
// ceiling in rupees that every order must clear.
func NewHandler(store *tradestore.Store, broker Broker, maxLoss float64, logger *zap.Logger) *Handler {
	return &Handler{Trades: store, Broker: broker, MaxLoss: maxLoss, Log: logger}
}

// ServeSimulate handles POST /trades/simulate: the full risk gate with
// no broker and no active-trade slot. A rejection is a valid answer for
// a dry run, so the status code stays 200 either way.
func (h *Handler) ServeSimulate(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	req, ok := decodeOrder(w, r)
	if !ok {
		return
	}

	v := evaluateRisk(req, h.MaxLoss)
	if !v.OK {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":          "rejected",
			"reason":          v.Reason,
			"worst_case_loss": v.WorstLoss,
		})
		return
	}

	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":          "ok",
		"simulated":       true,
		"order_id":        "SIM-" + uuid.NewString()[:8],
		"worst_case_loss": v.WorstLoss,
	})
}

// ServePlace handles POST /trades. Order of operations matters: the
// risk gate first, then the active-trade slot is reserved in the store
// (the unique index makes this race-safe across workers), and only then
// the broker is called. A broker failure rolls the reservation back.
func (h *Handler) ServePlace(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Upstream())
	defer cancel()

	w.Header().Set("Content-Type", "application/json")

	req, ok := decodeOrder(w, r)
	if !ok {
		return
	}

	v := evaluateRisk(req, h.MaxLoss)
	if !v.OK {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":          "rejected",
			"reason":          v.Reason,
			"worst_case_loss": v.WorstLoss,
		})
		return
	}

	tr := models.Trade{
		Exchange:        req.Exchange,
		TradingSymbol:   req.TradingSymbol,
		TransactionType: req.TransactionType,
		Product:         orDefault(req.Product, "MIS"),
		OrderType:       orDefault(req.OrderType, "MARKET"),
		Qty:             *req.Qty,
		LotSize:         req.LotSize,
		EntryPrice:      *req.Entry,
		Stoploss:        *req.Stoploss,
		WorstLoss:       v.WorstLoss,
	}

	if err := h.Trades.Place(ctx, &tr); err != nil {
		if errors.Is(err, tradestore.ErrActiveTradeExists) {
			w.WriteHeader(http.StatusConflict)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "an active trade already exists"})
			return
		}
		h.Log.Error("trade reserve failed", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "internal error"})
		return
	}

	params := zerodha.OrderParams{
		Exchange:        tr.Exchange,
		TradingSymbol:   tr.TradingSymbol,
		TransactionType: tr.TransactionType,
		Qty:             tr.Qty,
		Product:         tr.Product,
		OrderType:       tr.OrderType,
	}
	if req.Price != nil {
		params.Price = *req.Price
	}

	orderID, err := h.Broker.PlaceOrder(ctx, params)
	if err != nil {
		if derr := h.Trades.Discard(ctx, tr.ID); derr != nil {
			h.Log.Error("active-slot rollback failed", zap.Error(derr))
		}
		if errors.Is(err, zerodha.ErrNotAuthenticated) {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "broker not authenticated"})
			return
		}
		h.Log.Error("order placement failed",
			zap.String("symbol", tr.TradingSymbol), zap.Error(err))
		w.WriteHeader(http.StatusBadGateway)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "order placement failed: " + err.Error()})
		return
	}

	tr.OrderID = orderID
	tr.Simulated = strings.HasPrefix(orderID, "SIM-")
	if err := h.Trades.SetOrderID(ctx, tr.ID, orderID, tr.Simulated); err != nil {
		h.Log.Error("order id save failed", zap.String("order_id", orderID), zap.Error(err))
	}

	h.Log.Info("trade placed",
		zap.String("symbol", tr.TradingSymbol),
		zap.String("order_id", orderID),
		zap.Float64("worst_loss", tr.WorstLoss))

	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":   "ok",
		"order_id": orderID,
		"trade":    tr,
	})
}

// ServeActive handles GET /admin/trades/active.
func (h *Handler) ServeActive(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	w.Header().Set("Content-Type", "application/json")

	tr, err := h.Trades.Active(ctx)
	if err != nil {
		h.Log.Error("active trade lookup failed", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "internal error"})
		return
	}
	if tr == nil {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "no active trade"})
		return
	}
	_ = json.NewEncoder(w).Encode(tr)
}

// ServeClear handles DELETE /admin/trades/active. Clearing when nothing
// is active is not an error; the response says whether anything changed.
func (h *Handler) ServeClear(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	w.Header().Set("Content-Type", "application/json")

	cleared, err := h.Trades.ClearActive(ctx)
	if err != nil {
		h.Log.Error("clear active trade failed", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "internal error"})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]bool{"cleared": cleared})
}

// ServeHistory handles GET /trades, newest first, limit capped by the store.
func (h *Handler) ServeHistory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	w.Header().Set("Content-Type", "application/json")

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	list, err := h.Trades.History(ctx, limit)
	if err != nil {
		h.Log.Error("trade history failed", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "internal error"})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"trades": list, "count": len(list)})
}

func decodeOrder(w http.ResponseWriter, r *http.Request) (*models.OrderRequest, bool) {
	var req models.OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid JSON body"})
		return nil, false
	}
	return &req, true
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
