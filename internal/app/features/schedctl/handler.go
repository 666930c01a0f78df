// internal/app/features/schedctl/handler.go
package schedctl

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	schedstore "github.com/deepak0937/deepak-watchdog/internal/app/store/schedstate"
	"github.com/deepak0937/deepak-watchdog/internal/app/system/timeouts"
)

// Poller runs the poll pipeline on demand. *watchdog.Watchdog satisfies it.
type Poller interface {
	PollAll(ctx context.Context) error
	Symbols() []string
}

// Handler serves scheduler status and control. The pause switch lives
// in MongoDB, so flipping it through any one worker process is observed
// by all of them.
type Handler struct {
	Sched    *schedstore.Store
	Poller   Poller
	Interval time.Duration
	Log      *zap.Logger
}

// NewHandler creates a scheduler control handler.
func NewHandler(sched *schedstore.Store, poller Poller, interval time.Duration, logger *zap.Logger) *Handler {
	return &Handler{Sched: sched, Poller: poller, Interval: interval, Log: logger}
}

// statusResponse is the scheduler switchboard as callers see it.
type statusResponse struct {
	Paused    bool       `json:"paused"`
	Interval  string     `json:"interval"`
	Symbols   []string   `json:"symbols"`
	LastRunAt *time.Time `json:"last_run_at,omitempty"`
	LastError string     `json:"last_error,omitempty"`
}

// ServeStatus handles GET /scheduler.
func (h *Handler) ServeStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	w.Header().Set("Content-Type", "application/json")

	ctrl, err := h.Sched.Control(ctx)
	if err != nil {
		h.Log.Error("scheduler status lookup failed", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "internal error"})
		return
	}

	_ = json.NewEncoder(w).Encode(statusResponse{
		Paused:    ctrl.Paused,
		Interval:  h.Interval.String(),
		Symbols:   h.Poller.Symbols(),
		LastRunAt: ctrl.LastRunAt,
		LastError: ctrl.LastError,
	})
}

// ServePause handles POST /scheduler/pause.
func (h *Handler) ServePause(w http.ResponseWriter, r *http.Request) {
	h.setPaused(w, r, true)
}

// ServeResume handles POST /scheduler/resume.
func (h *Handler) ServeResume(w http.ResponseWriter, r *http.Request) {
	h.setPaused(w, r, false)
}

func (h *Handler) setPaused(w http.ResponseWriter, r *http.Request, paused bool) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	w.Header().Set("Content-Type", "application/json")

	if err := h.Sched.SetPaused(ctx, paused); err != nil {
		h.Log.Error("scheduler switch failed", zap.Bool("paused", paused), zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "internal error"})
		return
	}

	status := "active"
	if paused {
		status = "paused"
	}
	h.Log.Info("scheduler state changed", zap.String("status", status))
	_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
}

// ServeRunNow handles POST /scheduler/run-now: one synchronous poll
// cycle, bypassing both the pause switch and the poll lease. Per-symbol
// failures are reported in the response, not as an HTTP error, because
// a partial cycle still produced decisions.
func (h *Handler) ServeRunNow(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	w.Header().Set("Content-Type", "application/json")

	resp := map[string]any{
		"status":  "completed",
		"symbols": h.Poller.Symbols(),
	}
	if err := h.Poller.PollAll(ctx); err != nil {
		h.Log.Warn("run-now finished with errors", zap.Error(err))
		resp["status"] = "completed_with_errors"
		resp["error"] = err.Error()
	}
	_ = json.NewEncoder(w).Encode(resp)
}
