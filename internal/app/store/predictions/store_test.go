package predictions_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/deepak0937/deepak-watchdog/internal/app/store/predictions"
	"github.com/deepak0937/deepak-watchdog/internal/domain/models"
	"github.com/deepak0937/deepak-watchdog/internal/testutil"
)

func TestStore_InsertAndRecent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := predictions.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	p := models.Prediction{
		Forecast: models.Forecast{
			Date:           "2025-06-03",
			Bias:           "bullish",
			ProbabilityPct: 62,
			Pivot:          24750.0,
			Support:        []float64{24600, 24480},
			Resistance:     []float64{24880, 25000},
			Reason:         "OI buildup at lower strikes",
		},
	}
	if err := store.Insert(ctx, &p); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if p.ID.IsZero() || p.CreatedAt.IsZero() {
		t.Error("expected ID and CreatedAt to be filled in")
	}

	got, err := store.Recent(ctx, 5)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 prediction, got %d", len(got))
	}
	if got[0].Bias != "bullish" || got[0].ProbabilityPct != 62 {
		t.Errorf("round trip mismatch: %+v", got[0])
	}
	if len(got[0].Support) != 2 {
		t.Errorf("Support: got %v", got[0].Support)
	}
}

func TestStore_Recent_Empty(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := predictions.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	got, err := store.Recent(ctx, 5)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty slice, got %d items", len(got))
	}
}

func TestStore_Insert_TrimsOldest(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping retention test in short mode")
	}
	db := testutil.SetupTestDB(t)
	store := predictions.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	base := time.Now().UTC().Add(-24 * time.Hour)
	for i := 0; i < predictions.Keep+10; i++ {
		p := models.Prediction{
			CreatedAt: base.Add(time.Duration(i) * time.Second),
			Forecast:  models.Forecast{Date: fmt.Sprintf("day-%d", i)},
		}
		if err := store.Insert(ctx, &p); err != nil {
			t.Fatalf("Insert %d failed: %v", i, err)
		}
	}

	got, err := store.Recent(ctx, predictions.Keep)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(got) != predictions.Keep {
		t.Fatalf("expected %d retained predictions, got %d", predictions.Keep, len(got))
	}
	// The newest survives, the oldest ten are gone.
	if got[0].Date != fmt.Sprintf("day-%d", predictions.Keep+9) {
		t.Errorf("newest prediction is %q", got[0].Date)
	}
	for _, p := range got {
		var n int
		if _, err := fmt.Sscanf(p.Date, "day-%d", &n); err == nil && n < 10 {
			t.Errorf("prediction %q should have been trimmed", p.Date)
		}
	}
}
