package predict_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/deepak0937/deepak-watchdog/internal/app/advisor"
	"github.com/deepak0937/deepak-watchdog/internal/app/features/predict"
	decisionstore "github.com/deepak0937/deepak-watchdog/internal/app/store/decisions"
	predictionstore "github.com/deepak0937/deepak-watchdog/internal/app/store/predictions"
	tickstore "github.com/deepak0937/deepak-watchdog/internal/app/store/ticks"
	"github.com/deepak0937/deepak-watchdog/internal/domain/models"
	"github.com/deepak0937/deepak-watchdog/internal/testutil"
)

type fakeForecaster struct {
	fc   models.Forecast
	raw  string
	err  error
	blob any
}

func (f *fakeForecaster) Forecast(ctx context.Context, blob any) (models.Forecast, string, error) {
	f.blob = blob
	return f.fc, f.raw, f.err
}

type fakeAlerter struct{ alerts []models.Prediction }

func (f *fakeAlerter) ForecastAlert(ctx context.Context, p models.Prediction) {
	f.alerts = append(f.alerts, p)
}

func newTestHandler(t *testing.T, fc *fakeForecaster) (*predict.Handler, *predictionstore.Store, *fakeAlerter, *testutil.Fixtures) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	alerter := &fakeAlerter{}
	preds := predictionstore.New(db)
	h := predict.NewHandler(fc, tickstore.New(db), decisionstore.New(db), preds, alerter, zap.NewNop())
	return h, preds, alerter, testutil.NewFixtures(t, db)
}

func TestServePredict_StoresAndAlerts(t *testing.T) {
	fc := &fakeForecaster{
		fc: models.Forecast{
			Date: "2026-09-01", Bias: "BULLISH", ProbabilityPct: 64,
			Pivot: 24750, Support: []float64{24600, 24500}, Resistance: []float64{24900, 25000},
			Reason: "OI buildup on calls",
		},
		raw: `{"date":"2026-09-01"}`,
	}
	handler, preds, alerter, fixtures := newTestHandler(t, fc)

	ctx, cancel := testutil.TestContext()
	defer cancel()
	fixtures.CreateTick(ctx, "NIFTY", 24710)
	fixtures.CreateTick(ctx, "NIFTY", 24725)
	fixtures.CreateDecision(ctx, "NIFTY", models.StanceBuy)

	rec := httptest.NewRecorder()
	handler.ServePredict(rec, httptest.NewRequest("POST", "/predict", strings.NewReader(`{"symbol":"nifty"}`)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var got models.Prediction
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Bias != "BULLISH" || got.ProbabilityPct != 64 {
		t.Errorf("forecast = %+v", got.Forecast)
	}

	// The model saw the ticks and the latest decision.
	blob, ok := fc.blob.(map[string]any)
	if !ok {
		t.Fatalf("blob type %T", fc.blob)
	}
	if blob["symbol"] != "NIFTY" {
		t.Errorf("blob symbol = %v", blob["symbol"])
	}
	if blob["tick_count"].(int) != 2 {
		t.Errorf("tick_count = %v", blob["tick_count"])
	}
	if blob["latest_decision"] == nil {
		t.Error("blob missing latest_decision")
	}

	stored, err := preds.Recent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 1 {
		t.Fatalf("stored predictions = %d, want 1", len(stored))
	}
	if len(alerter.alerts) != 1 {
		t.Errorf("alerts = %d, want 1", len(alerter.alerts))
	}
}

func TestServePredict_AdvisorNotConfigured(t *testing.T) {
	handler, _, _, _ := newTestHandler(t, &fakeForecaster{err: advisor.ErrNotConfigured})

	rec := httptest.NewRecorder()
	handler.ServePredict(rec, httptest.NewRequest("POST", "/predict", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestServePredict_UnparseableModelReply(t *testing.T) {
	fc := &fakeForecaster{raw: "the market feels bullish to me", err: errInvalid{}}
	handler, preds, _, _ := newTestHandler(t, fc)

	rec := httptest.NewRecorder()
	handler.ServePredict(rec, httptest.NewRequest("POST", "/predict", nil))

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["error"] != "invalid_json" {
		t.Errorf("error = %q", body["error"])
	}
	if body["raw"] == "" {
		t.Error("raw model text should be surfaced for debugging")
	}

	ctx, cancel := testutil.TestContext()
	defer cancel()
	stored, err := preds.Recent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 0 {
		t.Error("failed forecast must not be stored")
	}
}

func TestServePredict_BadBody(t *testing.T) {
	handler, _, _, _ := newTestHandler(t, &fakeForecaster{})

	rec := httptest.NewRecorder()
	handler.ServePredict(rec, httptest.NewRequest("POST", "/predict", strings.NewReader("{not json")))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestServeRecent(t *testing.T) {
	handler, _, _, fixtures := newTestHandler(t, &fakeForecaster{})
	ctx, cancel := testutil.TestContext()
	defer cancel()
	fixtures.CreatePrediction(ctx, "2026-09-01", "NEUTRAL")
	fixtures.CreatePrediction(ctx, "2026-09-02", "BEARISH")

	rec := httptest.NewRecorder()
	handler.ServeRecent(rec, httptest.NewRequest("GET", "/predict/recent", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Count != 2 {
		t.Errorf("count = %d, want 2", body.Count)
	}
}

// errInvalid stands in for a forecast parse failure.
type errInvalid struct{}

func (errInvalid) Error() string { return "forecast response: invalid JSON" }
