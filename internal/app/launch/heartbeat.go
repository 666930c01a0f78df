package launch

import (
	"bufio"
	"encoding/json"
	"io"
	"time"
)

// Beat is one status line a worker writes to its heartbeat pipe. The
// master uses it both as a liveness signal and to spot requests that
// have been in flight longer than the configured timeout.
type Beat struct {
	PID      int `json:"pid"`
	InFlight int `json:"in_flight"`
	// OldestStart is the unix-nano start time of the oldest in-flight
	// request, zero when the worker is idle.
	OldestStart int64  `json:"oldest_start,omitempty"`
	Served      uint64 `json:"served"`
}

// OldestAge is how long the oldest in-flight request has been running.
func (b Beat) OldestAge(now time.Time) time.Duration {
	if b.OldestStart == 0 {
		return 0
	}
	return now.Sub(time.Unix(0, b.OldestStart))
}

// WriteBeat appends one JSON line to the heartbeat pipe.
func WriteBeat(w io.Writer, b Beat) error {
	return json.NewEncoder(w).Encode(b)
}

// ReadBeats consumes heartbeat lines until the pipe closes, invoking fn
// for each decoded beat. Torn or malformed lines are skipped so a worker
// dying mid-write cannot wedge the reader.
func ReadBeats(r io.Reader, fn func(Beat)) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		var b Beat
		if err := json.Unmarshal(sc.Bytes(), &b); err != nil {
			continue
		}
		fn(b)
	}
	return sc.Err()
}

// shouldKill decides whether a worker is past its limits: either its
// oldest in-flight request has exceeded the request timeout, or the
// worker has stopped heartbeating entirely for that long.
func shouldKill(last Beat, lastSeen, now time.Time, requestTimeout time.Duration) (string, bool) {
	if requestTimeout <= 0 {
		return "", false
	}
	if now.Sub(lastSeen) > requestTimeout {
		return "heartbeat stale", true
	}
	if age := last.OldestAge(now); age > requestTimeout {
		return "request timeout", true
	}
	return "", false
}
