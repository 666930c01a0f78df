package oi_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/deepak0937/deepak-watchdog/internal/app/features/oi"
	"github.com/deepak0937/deepak-watchdog/internal/app/nse"
	"github.com/deepak0937/deepak-watchdog/internal/app/system/ratelimit"
)

type fakeArchive struct {
	dailyErr   error
	historyErr error
	emptyDays  bool
	lastSymbol string
	lastDate   time.Time
	lastExpiry string
}

func (f *fakeArchive) DailyOI(ctx context.Context, symbol string, date time.Time, expiryISO string) (*nse.DailyOI, error) {
	f.lastSymbol, f.lastDate, f.lastExpiry = symbol, date, expiryISO
	if f.dailyErr != nil {
		return nil, f.dailyErr
	}
	return &nse.DailyOI{
		Symbol:         symbol,
		TradeDate:      date.Format("02-Jan-2006"),
		Expiry:         "02-Oct-2026",
		TopCallStrikes: []float64{22500, 22600, 22700},
		TopPutStrikes:  []float64{22000, 21900, 21800},
	}, nil
}

func (f *fakeArchive) HistoryOI(ctx context.Context, symbol string, start, end time.Time, expiryISO string) (*nse.History, error) {
	f.lastSymbol = symbol
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	hist := &nse.History{Symbol: symbol, From: start.Format("2006-01-02"), To: end.Format("2006-01-02")}
	if !f.emptyDays {
		hist.Days = []nse.HistoryDay{{Date: hist.From, Expiry: "02-Oct-2026"}}
	}
	return hist, nil
}

func serve(archive *fakeArchive, target string) *httptest.ResponseRecorder {
	h := oi.NewHandler(archive, zap.NewNop())
	rec := httptest.NewRecorder()
	oi.Routes(h, ratelimit.New(100, time.Minute)).ServeHTTP(rec, httptest.NewRequest("GET", target, nil))
	return rec
}

func TestServeDaily_Defaults(t *testing.T) {
	archive := &fakeArchive{}
	rec := serve(archive, "/daily")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if archive.lastSymbol != "NIFTY" {
		t.Errorf("symbol = %q, want NIFTY default", archive.lastSymbol)
	}
	today := nse.ISTToday()
	if archive.lastDate.Format("2006-01-02") != today.Format("2006-01-02") {
		t.Errorf("date = %v, want today in IST", archive.lastDate)
	}
}

func TestServeDaily_ExplicitParams(t *testing.T) {
	archive := &fakeArchive{}
	rec := serve(archive, "/daily?symbol=banknifty&date=2026-08-28&expiry=2026-09-25")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if archive.lastSymbol != "BANKNIFTY" || archive.lastExpiry != "2026-09-25" {
		t.Errorf("symbol = %q expiry = %q", archive.lastSymbol, archive.lastExpiry)
	}
	if got := archive.lastDate.Format("2006-01-02"); got != "2026-08-28" {
		t.Errorf("date = %s", got)
	}
}

func TestServeDaily_BadDate(t *testing.T) {
	if rec := serve(&fakeArchive{}, "/daily?date=28-08-2026"); rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestServeDaily_HolidayAndNoData(t *testing.T) {
	if rec := serve(&fakeArchive{dailyErr: nse.ErrHoliday}, "/daily"); rec.Code != http.StatusNotFound {
		t.Errorf("holiday status = %d, want 404", rec.Code)
	}
	if rec := serve(&fakeArchive{dailyErr: nse.ErrNoOptionData}, "/daily?symbol=OBSCURE"); rec.Code != http.StatusNotFound {
		t.Errorf("no-data status = %d, want 404", rec.Code)
	}
	if rec := serve(&fakeArchive{dailyErr: errors.New("tcp reset")}, "/daily"); rec.Code != http.StatusBadGateway {
		t.Errorf("archive failure status = %d, want 502", rec.Code)
	}
}

func TestServeHistory_Validation(t *testing.T) {
	cases := []struct {
		name   string
		target string
	}{
		{"missing start", "/history?end=2026-08-28"},
		{"missing end", "/history?start=2026-08-01"},
		{"end before start", "/history?start=2026-08-28&end=2026-08-01"},
		{"range over cap", "/history?start=2026-01-01&end=2026-06-30"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if rec := serve(&fakeArchive{}, tc.target); rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestServeHistory_OK(t *testing.T) {
	archive := &fakeArchive{}
	rec := serve(archive, "/history?symbol=nifty&start=2026-08-01&end=2026-08-28")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var hist nse.History
	if err := json.Unmarshal(rec.Body.Bytes(), &hist); err != nil {
		t.Fatal(err)
	}
	if hist.Symbol != "NIFTY" || len(hist.Days) != 1 {
		t.Errorf("history = %+v", hist)
	}
}

func TestServeHistory_EmptyRangeIs404(t *testing.T) {
	rec := serve(&fakeArchive{emptyDays: true}, "/history?start=2026-08-15&end=2026-08-16")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestRoutes_RateLimited(t *testing.T) {
	h := oi.NewHandler(&fakeArchive{}, zap.NewNop())
	router := oi.Routes(h, ratelimit.New(2, time.Minute))

	for i, want := range []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests} {
		req := httptest.NewRequest("GET", "/daily", nil)
		req.RemoteAddr = "203.0.113.7:4242"
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Fatalf("request %d status = %d, want %d", i, rec.Code, want)
		}
	}
}
