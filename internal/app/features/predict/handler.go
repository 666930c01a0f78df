// internal/app/features/predict/handler.go
package predict

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/deepak0937/deepak-watchdog/internal/app/advisor"
	decisionstore "github.com/deepak0937/deepak-watchdog/internal/app/store/decisions"
	predictionstore "github.com/deepak0937/deepak-watchdog/internal/app/store/predictions"
	tickstore "github.com/deepak0937/deepak-watchdog/internal/app/store/ticks"
	"github.com/deepak0937/deepak-watchdog/internal/app/system/timeouts"
	"github.com/deepak0937/deepak-watchdog/internal/domain/models"
)

// rawLimit caps the stored raw model text, same budget as decisions.
const rawLimit = 2000

// Forecaster produces trend forecasts. *advisor.Advisor satisfies it.
type Forecaster interface {
	Forecast(ctx context.Context, blob any) (models.Forecast, string, error)
}

// Alerter announces stored forecasts. *notify.Notifier satisfies it.
type Alerter interface {
	ForecastAlert(ctx context.Context, p models.Prediction)
}

// Handler serves on-demand trend forecasts.
type Handler struct {
	Advisor     Forecaster
	Ticks       *tickstore.Store
	Decisions   *decisionstore.Store
	Predictions *predictionstore.Store
	Notifier    Alerter
	Log         *zap.Logger
}

// NewHandler creates a predict handler.
func NewHandler(adv Forecaster, ticks *tickstore.Store, dec *decisionstore.Store, pred *predictionstore.Store, notifier Alerter, logger *zap.Logger) *Handler {
	return &Handler{
		Advisor:     adv,
		Ticks:       ticks,
		Decisions:   dec,
		Predictions: pred,
		Notifier:    notifier,
		Log:         logger,
	}
}

// predictRequest is the optional JSON body; with no body the default
// symbol is forecast.
type predictRequest struct {
	Symbol string `json:"symbol"`
}

// ServePredict handles POST /predict: assemble a data blob from recent
// ticks and the latest stored decision, ask the model for a strict-JSON
// next-day outlook, store it, announce it, return it.
func (h *Handler) ServePredict(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Upstream())
	defer cancel()

	w.Header().Set("Content-Type", "application/json")

	var req predictRequest
	if r.Body != nil {
		// An empty body is fine; only malformed JSON is rejected.
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid JSON body"})
			return
		}
	}
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if symbol == "" {
		symbol = "NIFTY"
	}

	blob, err := h.buildBlob(ctx, symbol)
	if err != nil {
		h.Log.Error("forecast blob build failed", zap.String("symbol", symbol), zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "internal error"})
		return
	}

	fc, raw, err := h.Advisor.Forecast(ctx, blob)
	if err != nil {
		if errors.Is(err, advisor.ErrNotConfigured) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "advisor not configured"})
			return
		}
		h.Log.Warn("forecast failed", zap.String("symbol", symbol), zap.Error(err))
		w.WriteHeader(http.StatusBadGateway)
		resp := map[string]string{"error": "invalid_json"}
		if raw != "" {
			resp["raw"] = raw
		} else {
			resp["error"] = "forecast unavailable: " + err.Error()
		}
		_ = json.NewEncoder(w).Encode(resp)
		return
	}

	if len(raw) > rawLimit {
		raw = raw[:rawLimit]
	}
	p := models.Prediction{
		CreatedAt: time.Now().UTC(),
		Forecast:  fc,
		Raw:       raw,
	}
	if err := h.Predictions.Insert(ctx, &p); err != nil {
		// The forecast is still good; persistence trouble is logged,
		// not returned, matching the decision pipeline's tolerance.
		h.Log.Error("prediction insert failed", zap.Error(err))
	}
	h.Notifier.ForecastAlert(ctx, p)

	_ = json.NewEncoder(w).Encode(p)
}

// ServeRecent handles GET /predict/recent.
func (h *Handler) ServeRecent(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	w.Header().Set("Content-Type", "application/json")

	list, err := h.Predictions.Recent(ctx, 20)
	if err != nil {
		h.Log.Error("recent predictions failed", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "internal error"})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"predictions": list, "count": len(list)})
}

// buildBlob gathers what the model gets to see: the freshest ticks and
// the latest stored decision for context.
func (h *Handler) buildBlob(ctx context.Context, symbol string) (map[string]any, error) {
	ticks, err := h.Ticks.Recent(ctx, symbol, 120)
	if err != nil {
		return nil, err
	}
	prices := make([]float64, 0, len(ticks))
	for _, tk := range ticks {
		prices = append(prices, tk.LTP)
	}

	blob := map[string]any{
		"symbol":       symbol,
		"generated_at": time.Now().UTC().Format(time.RFC3339),
		"recent_ltp":   prices,
		"tick_count":   len(prices),
	}

	latest, err := h.Decisions.Latest(ctx)
	if err != nil {
		return nil, err
	}
	if latest != nil {
		blob["latest_decision"] = map[string]any{
			"symbol":   latest.Symbol,
			"ts":       latest.CreatedAt.Format(time.RFC3339),
			"decision": latest.Stance,
			"snapshot": latest.Snapshot,
		}
	}
	return blob, nil
}
