package launch

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestTrackerCountsInFlight(t *testing.T) {
	tr := newTracker()

	first := tr.begin()
	time.Sleep(2 * time.Millisecond)
	second := tr.begin()

	n, oldest, served := tr.snapshot()
	if n != 2 || served != 0 {
		t.Fatalf("snapshot = (%d, _, %d), want (2, _, 0)", n, served)
	}
	if oldest == 0 {
		t.Fatal("oldest start missing with requests in flight")
	}

	tr.end(first)
	n, oldest2, served := tr.snapshot()
	if n != 1 || served != 1 {
		t.Fatalf("snapshot = (%d, _, %d), want (1, _, 1)", n, served)
	}
	if oldest2 <= oldest {
		t.Errorf("oldest did not advance after the older request finished")
	}

	tr.end(second)
	n, oldest3, served := tr.snapshot()
	if n != 0 || oldest3 != 0 || served != 2 {
		t.Errorf("snapshot = (%d, %d, %d), want (0, 0, 2)", n, oldest3, served)
	}
}

func TestRequestBudget(t *testing.T) {
	if b := requestBudget(0, 50); b != 0 {
		t.Errorf("budget = %d, zero max must disable recycling", b)
	}
	if b := requestBudget(10, 0); b != 10 {
		t.Errorf("budget = %d, want 10 without jitter", b)
	}
	for i := 0; i < 100; i++ {
		b := requestBudget(1000, 50)
		if b < 1000 || b > 1050 {
			t.Fatalf("budget = %d, want within [1000, 1050]", b)
		}
	}
}

func TestWrapRetiresOnceAtBudget(t *testing.T) {
	tr := newTracker()
	var retired atomic.Int32
	h := tr.wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}), 3, func() { retired.Add(1) })

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusNoContent {
			t.Fatalf("request %d: status %d", i, rec.Code)
		}
	}
	if retired.Load() != 1 {
		t.Errorf("retire fired %d times, want exactly once", retired.Load())
	}
	if _, _, served := tr.snapshot(); served != 5 {
		t.Errorf("served = %d, want 5 (requests past the budget still complete)", served)
	}
}

func TestInheritedRuntime_RequiresSupervisorEnv(t *testing.T) {
	t.Setenv(listenerFDEnv, "")
	t.Setenv(heartbeatFDEnv, "")

	_, err := InheritedRuntime()
	if err == nil {
		t.Fatal("expected an error outside a supervisor")
	}
	if !strings.Contains(err.Error(), listenerFDEnv) {
		t.Errorf("error %q does not name the missing variable", err)
	}
}

func TestInheritedRuntime_RejectsBogusDescriptor(t *testing.T) {
	t.Setenv(listenerFDEnv, "not-a-number")
	t.Setenv(heartbeatFDEnv, "4")

	if _, err := InheritedRuntime(); err == nil {
		t.Fatal("expected an error for a non-numeric descriptor")
	}

	t.Setenv(listenerFDEnv, "1")
	if _, err := InheritedRuntime(); err == nil {
		t.Fatal("expected an error for a reserved descriptor")
	}
}
