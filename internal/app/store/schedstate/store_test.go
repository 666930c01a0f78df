package schedstate_test

import (
	"testing"
	"time"

	"github.com/deepak0937/deepak-watchdog/internal/app/store/schedstate"
	"github.com/deepak0937/deepak-watchdog/internal/testutil"
)

func TestStore_Control_Default(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := schedstate.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	c, err := store.Control(ctx)
	if err != nil {
		t.Fatalf("Control failed: %v", err)
	}
	if c.Paused {
		t.Error("expected scheduler running by default")
	}
	if c.LastRunAt != nil {
		t.Errorf("expected no last run, got %v", c.LastRunAt)
	}
}

func TestStore_SetPaused(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := schedstate.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := store.SetPaused(ctx, true); err != nil {
		t.Fatalf("SetPaused failed: %v", err)
	}
	c, err := store.Control(ctx)
	if err != nil {
		t.Fatalf("Control failed: %v", err)
	}
	if !c.Paused {
		t.Error("expected paused=true")
	}

	if err := store.SetPaused(ctx, false); err != nil {
		t.Fatalf("SetPaused resume failed: %v", err)
	}
	c, _ = store.Control(ctx)
	if c.Paused {
		t.Error("expected paused=false after resume")
	}
}

func TestStore_MarkRun(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := schedstate.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	at := time.Now().UTC().Truncate(time.Millisecond)
	if err := store.MarkRun(ctx, at, "quote fetch failed"); err != nil {
		t.Fatalf("MarkRun failed: %v", err)
	}

	c, err := store.Control(ctx)
	if err != nil {
		t.Fatalf("Control failed: %v", err)
	}
	if c.LastRunAt == nil || !c.LastRunAt.Equal(at) {
		t.Errorf("LastRunAt: got %v, want %v", c.LastRunAt, at)
	}
	if c.LastError != "quote fetch failed" {
		t.Errorf("LastError: got %q", c.LastError)
	}

	// A clean run clears the error.
	if err := store.MarkRun(ctx, time.Now().UTC(), ""); err != nil {
		t.Fatalf("MarkRun failed: %v", err)
	}
	c, _ = store.Control(ctx)
	if c.LastError != "" {
		t.Errorf("expected LastError cleared, got %q", c.LastError)
	}
}

func TestStore_AcquireLease_FirstWins(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := schedstate.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ok, err := store.AcquireLease(ctx, "host-a/100", time.Minute)
	if err != nil {
		t.Fatalf("AcquireLease failed: %v", err)
	}
	if !ok {
		t.Fatal("expected first acquirer to win")
	}

	ok, err = store.AcquireLease(ctx, "host-b/200", time.Minute)
	if err != nil {
		t.Fatalf("AcquireLease failed: %v", err)
	}
	if ok {
		t.Error("expected second acquirer to lose while lease is live")
	}
}

func TestStore_AcquireLease_HolderRenews(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := schedstate.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	for i := 0; i < 3; i++ {
		ok, err := store.AcquireLease(ctx, "host-a/100", time.Minute)
		if err != nil {
			t.Fatalf("AcquireLease renewal %d failed: %v", i, err)
		}
		if !ok {
			t.Fatalf("holder failed to renew on attempt %d", i)
		}
	}
}

func TestStore_AcquireLease_ExpiredLeaseStolen(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := schedstate.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ok, err := store.AcquireLease(ctx, "host-a/100", 10*time.Millisecond)
	if err != nil || !ok {
		t.Fatalf("initial acquire: ok=%v err=%v", ok, err)
	}

	time.Sleep(25 * time.Millisecond)

	ok, err = store.AcquireLease(ctx, "host-b/200", time.Minute)
	if err != nil {
		t.Fatalf("AcquireLease failed: %v", err)
	}
	if !ok {
		t.Error("expected expired lease to be taken over")
	}
}

func TestStore_ReleaseLease(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := schedstate.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ok, err := store.AcquireLease(ctx, "host-a/100", time.Minute)
	if err != nil || !ok {
		t.Fatalf("acquire: ok=%v err=%v", ok, err)
	}

	// The wrong holder cannot release it.
	if err := store.ReleaseLease(ctx, "host-b/200"); err != nil {
		t.Fatalf("ReleaseLease failed: %v", err)
	}
	ok, _ = store.AcquireLease(ctx, "host-b/200", time.Minute)
	if ok {
		t.Error("lease should still be held after foreign release")
	}

	if err := store.ReleaseLease(ctx, "host-a/100"); err != nil {
		t.Fatalf("ReleaseLease failed: %v", err)
	}
	ok, err = store.AcquireLease(ctx, "host-b/200", time.Minute)
	if err != nil {
		t.Fatalf("AcquireLease failed: %v", err)
	}
	if !ok {
		t.Error("expected lease available after owner release")
	}
}
