package summary_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/deepak0937/deepak-watchdog/internal/app/broker/zerodha"
	"github.com/deepak0937/deepak-watchdog/internal/app/features/summary"
	decstore "github.com/deepak0937/deepak-watchdog/internal/app/store/decisions"
	"github.com/deepak0937/deepak-watchdog/internal/testutil"
)

type fakeAccount struct {
	positions []zerodha.Position
	margins   zerodha.Margins
	err       error
}

func (f *fakeAccount) Positions(ctx context.Context) ([]zerodha.Position, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.positions, nil
}

func (f *fakeAccount) Margins(ctx context.Context) (zerodha.Margins, error) {
	if f.err != nil {
		return zerodha.Margins{}, f.err
	}
	return f.margins, nil
}

func newTestHandler(t *testing.T, account *fakeAccount) (*summary.Handler, *testutil.Fixtures) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	store := decstore.New(db)
	return summary.NewHandler(account, store, zap.NewNop()), testutil.NewFixtures(t, db)
}

func get(h *summary.Handler) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeSummary(rec, httptest.NewRequest("GET", "/public/summary", nil))
	return rec
}

func TestServeSummary_BrokerSource(t *testing.T) {
	account := &fakeAccount{
		positions: []zerodha.Position{
			{TradingSymbol: "NIFTY24SEPFUT", Quantity: 75, PnL: 1250.50},
			{TradingSymbol: "BANKNIFTY24SEPFUT", Quantity: 0, PnL: -300.25},
		},
	}
	account.margins.Net = 150000
	account.margins.Available.Cash = 42000
	handler, _ := newTestHandler(t, account)

	rec := get(handler)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Source        string  `json:"source"`
		NetPnL        float64 `json:"net_pnl"`
		OpenPositions int     `json:"open_positions"`
		Equity        float64 `json:"equity"`
		Cash          float64 `json:"cash"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Source != "broker" {
		t.Errorf("source = %q", body.Source)
	}
	if body.NetPnL != 950.25 {
		t.Errorf("net pnl = %v, want 950.25", body.NetPnL)
	}
	if body.OpenPositions != 1 {
		t.Errorf("open positions = %d, closed positions must not count", body.OpenPositions)
	}
	if body.Equity != 150000 || body.Cash != 42000 {
		t.Errorf("equity = %v cash = %v", body.Equity, body.Cash)
	}
}

func TestServeSummary_LiveBalanceFallsIn(t *testing.T) {
	account := &fakeAccount{}
	account.margins.Available.LiveBalance = 98765
	handler, _ := newTestHandler(t, account)

	rec := get(handler)
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["equity"] != 98765.0 {
		t.Errorf("equity = %v, want live balance when net is zero", body["equity"])
	}
}

func TestServeSummary_DecisionsFallback(t *testing.T) {
	handler, fixtures := newTestHandler(t, &fakeAccount{err: zerodha.ErrNotAuthenticated})
	ctx, cancel := testutil.TestContext()
	defer cancel()
	fixtures.CreateDecision(ctx, "NIFTY", "BULLISH")
	fixtures.CreateDecision(ctx, "NIFTY", "NEUTRAL")

	rec := get(handler)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, fallback must still answer, body %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Source         string `json:"source"`
		Decisions      int64  `json:"decisions"`
		LastDecisionAt string `json:"last_decision_at"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Source != "decisions" || body.Decisions != 2 {
		t.Errorf("body = %+v", body)
	}
	if body.LastDecisionAt == "" {
		t.Error("last_decision_at missing")
	}
}

func TestServeSummary_FallbackOnEmptyDB(t *testing.T) {
	handler, _ := newTestHandler(t, &fakeAccount{err: zerodha.ErrNotAuthenticated})

	rec := get(handler)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["decisions"] != 0.0 {
		t.Errorf("decisions = %v, want 0", body["decisions"])
	}
}
