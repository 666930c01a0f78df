package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/deepak0937/deepak-watchdog/internal/domain/models"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateDecision inserts a decision with the given symbol and stance.
func (f *Fixtures) CreateDecision(ctx context.Context, symbol, stance string) models.Decision {
	f.t.Helper()

	d := models.Decision{
		ID:        primitive.NewObjectID(),
		Symbol:    symbol,
		CreatedAt: time.Now().UTC(),
		Snapshot:  bson.M{"ltp": 24700.0},
		Advice: models.Advice{
			Stance:        stance,
			Rationale:     "fixture decision",
			ConfidencePct: 50,
		},
	}
	if _, err := f.db.Collection("decisions").InsertOne(ctx, d); err != nil {
		f.t.Fatalf("fixture: insert decision: %v", err)
	}
	return d
}

// CreateActiveTrade inserts an active simulated trade.
func (f *Fixtures) CreateActiveTrade(ctx context.Context, symbol string) models.Trade {
	f.t.Helper()

	tr := models.Trade{
		ID:              primitive.NewObjectID(),
		Active:          true,
		Exchange:        "NFO",
		TradingSymbol:   symbol,
		TransactionType: "BUY",
		Product:         "NRML",
		OrderType:       "MARKET",
		Qty:             75,
		LotSize:         1,
		EntryPrice:      100.5,
		Stoploss:        99.0,
		WorstLoss:       112.5,
		OrderID:         "SIM-1",
		Simulated:       true,
		PlacedAt:        time.Now().UTC(),
	}
	if _, err := f.db.Collection("trades").InsertOne(ctx, tr); err != nil {
		f.t.Fatalf("fixture: insert trade: %v", err)
	}
	return tr
}

// CreateTick inserts one price tick for the symbol.
func (f *Fixtures) CreateTick(ctx context.Context, symbol string, ltp float64) models.Tick {
	f.t.Helper()

	tk := models.Tick{
		ID:        primitive.NewObjectID(),
		Symbol:    symbol,
		LTP:       ltp,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := f.db.Collection("ticks").InsertOne(ctx, tk); err != nil {
		f.t.Fatalf("fixture: insert tick: %v", err)
	}
	return tk
}

// CreatePrediction inserts a next-day forecast.
func (f *Fixtures) CreatePrediction(ctx context.Context, date, bias string) models.Prediction {
	f.t.Helper()

	p := models.Prediction{
		ID:        primitive.NewObjectID(),
		CreatedAt: time.Now().UTC(),
		Forecast: models.Forecast{
			Date:           date,
			Bias:           bias,
			ProbabilityPct: 55,
			Pivot:          24750,
			Support:        []float64{24600},
			Resistance:     []float64{24900},
			Reason:         "fixture forecast",
		},
	}
	if _, err := f.db.Collection("predictions").InsertOne(ctx, p); err != nil {
		f.t.Fatalf("fixture: insert prediction: %v", err)
	}
	return p
}
