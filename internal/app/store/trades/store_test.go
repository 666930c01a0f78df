package trades_test

import (
	"testing"

	"github.com/deepak0937/deepak-watchdog/internal/app/store/trades"
	"github.com/deepak0937/deepak-watchdog/internal/domain/models"
	"github.com/deepak0937/deepak-watchdog/internal/testutil"
)

func newTrade(symbol string) *models.Trade {
	return &models.Trade{
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
		Simulated:       true,
	}
}

func TestStore_Active_Empty(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := trades.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	tr, err := store.Active(ctx)
	if err != nil {
		t.Fatalf("Active failed: %v", err)
	}
	if tr != nil {
		t.Errorf("expected no active trade, got %+v", tr)
	}
}

func TestStore_Place_SetsActiveAndTimestamps(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := trades.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := store.EnsureIndexes(ctx); err != nil {
		t.Fatalf("EnsureIndexes failed: %v", err)
	}

	tr := newTrade("NIFTY25JUN24000CE")
	if err := store.Place(ctx, tr); err != nil {
		t.Fatalf("Place failed: %v", err)
	}
	if tr.ID.IsZero() {
		t.Error("expected ID set")
	}
	if tr.PlacedAt.IsZero() {
		t.Error("expected PlacedAt set")
	}
	if !tr.Active {
		t.Error("expected trade marked active")
	}

	got, err := store.Active(ctx)
	if err != nil {
		t.Fatalf("Active failed: %v", err)
	}
	if got == nil || got.TradingSymbol != "NIFTY25JUN24000CE" {
		t.Errorf("Active returned %+v", got)
	}
}

func TestStore_Place_SecondActiveRejected(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := trades.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := store.EnsureIndexes(ctx); err != nil {
		t.Fatalf("EnsureIndexes failed: %v", err)
	}

	if err := store.Place(ctx, newTrade("NIFTY25JUN24000CE")); err != nil {
		t.Fatalf("first Place failed: %v", err)
	}

	err := store.Place(ctx, newTrade("BANKNIFTY25JUN52000PE"))
	if err != trades.ErrActiveTradeExists {
		t.Errorf("expected ErrActiveTradeExists, got %v", err)
	}
}

func TestStore_ClearActive(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := trades.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := store.EnsureIndexes(ctx); err != nil {
		t.Fatalf("EnsureIndexes failed: %v", err)
	}

	// Clearing with no active trade reports false, not an error.
	cleared, err := store.ClearActive(ctx)
	if err != nil {
		t.Fatalf("ClearActive failed: %v", err)
	}
	if cleared {
		t.Error("expected cleared=false with no active trade")
	}

	if err := store.Place(ctx, newTrade("NIFTY25JUN24000CE")); err != nil {
		t.Fatalf("Place failed: %v", err)
	}

	cleared, err = store.ClearActive(ctx)
	if err != nil {
		t.Fatalf("ClearActive failed: %v", err)
	}
	if !cleared {
		t.Error("expected cleared=true")
	}

	tr, err := store.Active(ctx)
	if err != nil {
		t.Fatalf("Active failed: %v", err)
	}
	if tr != nil {
		t.Errorf("expected no active trade after clear, got %+v", tr)
	}

	// The slot is free again.
	if err := store.Place(ctx, newTrade("BANKNIFTY25JUN52000PE")); err != nil {
		t.Fatalf("Place after clear failed: %v", err)
	}
}

func TestStore_History_NewestFirst(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := trades.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := store.EnsureIndexes(ctx); err != nil {
		t.Fatalf("EnsureIndexes failed: %v", err)
	}

	for _, sym := range []string{"A", "B", "C"} {
		if err := store.Place(ctx, newTrade(sym)); err != nil {
			t.Fatalf("Place %s failed: %v", sym, err)
		}
		if _, err := store.ClearActive(ctx); err != nil {
			t.Fatalf("ClearActive failed: %v", err)
		}
	}

	hist, err := store.History(ctx, 0)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(hist) != 3 {
		t.Fatalf("expected 3 trades, got %d", len(hist))
	}
	if hist[0].TradingSymbol != "C" {
		t.Errorf("expected newest first, got %q", hist[0].TradingSymbol)
	}
	for _, tr := range hist {
		if tr.Active {
			t.Errorf("trade %s still active in history", tr.TradingSymbol)
		}
		if tr.ClosedAt == nil {
			t.Errorf("trade %s missing closed_at", tr.TradingSymbol)
		}
	}
}
