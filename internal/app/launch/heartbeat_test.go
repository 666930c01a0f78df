package launch

import (
	"bytes"
	"testing"
	"time"
)

func TestBeatRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteBeat(&buf, Beat{PID: 10, InFlight: 2, OldestStart: 1234, Served: 7}); err != nil {
		t.Fatalf("WriteBeat: %v", err)
	}
	if err := WriteBeat(&buf, Beat{PID: 10, Served: 8}); err != nil {
		t.Fatalf("WriteBeat: %v", err)
	}
	// A worker dying mid-write leaves a torn line; the reader skips it.
	buf.WriteString("{torn\n")
	if err := WriteBeat(&buf, Beat{PID: 10, Served: 9}); err != nil {
		t.Fatalf("WriteBeat: %v", err)
	}

	var got []Beat
	if err := ReadBeats(&buf, func(b Beat) { got = append(got, b) }); err != nil {
		t.Fatalf("ReadBeats: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("beats = %d, want 3", len(got))
	}
	if got[0].InFlight != 2 || got[0].OldestStart != 1234 || got[0].Served != 7 {
		t.Errorf("first beat = %+v", got[0])
	}
	if got[2].Served != 9 {
		t.Errorf("last beat = %+v", got[2])
	}
}

func TestOldestAge(t *testing.T) {
	now := time.Now()
	if age := (Beat{}).OldestAge(now); age != 0 {
		t.Errorf("idle age = %v, want 0", age)
	}
	b := Beat{OldestStart: now.Add(-3 * time.Second).UnixNano()}
	if age := b.OldestAge(now); age != 3*time.Second {
		t.Errorf("age = %v, want 3s", age)
	}
}

func TestShouldKill(t *testing.T) {
	now := time.Now()
	timeout := time.Minute

	cases := []struct {
		name     string
		beat     Beat
		lastSeen time.Time
		reason   string
		kill     bool
	}{
		{"fresh idle worker", Beat{}, now.Add(-time.Second), "", false},
		{"stale heartbeat", Beat{}, now.Add(-2 * time.Minute), "heartbeat stale", true},
		{
			"request over timeout",
			Beat{OldestStart: now.Add(-2 * time.Minute).UnixNano()},
			now.Add(-time.Second),
			"request timeout", true,
		},
		{
			"request within timeout",
			Beat{OldestStart: now.Add(-30 * time.Second).UnixNano()},
			now.Add(-time.Second),
			"", false,
		},
	}
	for _, tc := range cases {
		reason, kill := shouldKill(tc.beat, tc.lastSeen, now, timeout)
		if kill != tc.kill || reason != tc.reason {
			t.Errorf("%s: got (%q, %v), want (%q, %v)", tc.name, reason, kill, tc.reason, tc.kill)
		}
	}

	// Disabled timeout never kills.
	if _, kill := shouldKill(Beat{}, now.Add(-time.Hour), now, 0); kill {
		t.Error("zero timeout must disable the check")
	}
}
