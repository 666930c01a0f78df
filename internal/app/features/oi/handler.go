// internal/app/features/oi/handler.go
package oi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/deepak0937/deepak-watchdog/internal/app/nse"
	"github.com/deepak0937/deepak-watchdog/internal/app/system/timeouts"
)

const dateLayout = "2006-01-02"

// maxHistoryDays caps /history ranges; every day in the range is an
// archive download, so an unbounded range is a free DoS on us and NSE.
const maxHistoryDays = 31

// Archive is the OI slice of the NSE bhavcopy client.
type Archive interface {
	DailyOI(ctx context.Context, symbol string, date time.Time, expiryISO string) (*nse.DailyOI, error)
	HistoryOI(ctx context.Context, symbol string, start, end time.Time, expiryISO string) (*nse.History, error)
}

// Handler serves public open-interest chain views built from the NSE
// end-of-day archive. These are the anonymous endpoints; the caller-
// facing rate limit is applied in Routes.
type Handler struct {
	Archive Archive
	Log     *zap.Logger
}

func NewHandler(archive Archive, logger *zap.Logger) *Handler {
	return &Handler{Archive: archive, Log: logger}
}

// ServeDaily handles GET /public/oi/daily?symbol=&date=&expiry=.
// Date defaults to today in exchange time; expiry empty means nearest.
func (h *Handler) ServeDaily(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Upstream())
	defer cancel()

	symbol := symbolParam(r)
	date := nse.ISTToday()
	if raw := r.URL.Query().Get("date"); raw != "" {
		var err error
		if date, err = time.Parse(dateLayout, raw); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "date must be YYYY-MM-DD"})
			return
		}
	}

	daily, err := h.Archive.DailyOI(ctx, symbol, date, r.URL.Query().Get("expiry"))
	if err != nil {
		h.archiveError(w, symbol, err)
		return
	}
	writeJSON(w, http.StatusOK, daily)
}

// ServeHistory handles GET /public/oi/history?symbol=&start=&end=&expiry=.
func (h *Handler) ServeHistory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	symbol := symbolParam(r)
	start, err := time.Parse(dateLayout, r.URL.Query().Get("start"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "start must be YYYY-MM-DD"})
		return
	}
	end, err := time.Parse(dateLayout, r.URL.Query().Get("end"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "end must be YYYY-MM-DD"})
		return
	}
	if end.Before(start) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "end must not be before start"})
		return
	}
	if end.Sub(start) > maxHistoryDays*24*time.Hour {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "range too large, max 31 days"})
		return
	}

	hist, err := h.Archive.HistoryOI(ctx, symbol, start, end, r.URL.Query().Get("expiry"))
	if err != nil {
		h.archiveError(w, symbol, err)
		return
	}
	if len(hist.Days) == 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no trading days with data in range"})
		return
	}
	writeJSON(w, http.StatusOK, hist)
}

func (h *Handler) archiveError(w http.ResponseWriter, symbol string, err error) {
	switch {
	case errors.Is(err, nse.ErrHoliday):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no data for date (holiday or not yet published)"})
	case errors.Is(err, nse.ErrNoOptionData):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no option data for " + symbol})
	default:
		h.Log.Warn("oi archive fetch failed", zap.String("symbol", symbol), zap.Error(err))
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "archive fetch failed"})
	}
}

func symbolParam(r *http.Request) string {
	s := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("symbol")))
	if s == "" {
		return "NIFTY"
	}
	return s
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
