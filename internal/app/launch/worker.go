package launch

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Environment keys the master sets for each worker it spawns. The values
// are the child-side file descriptor numbers of the inherited listener
// and heartbeat pipe.
const (
	listenerFDEnv  = "WATCHDOG_LISTENER_FD"
	heartbeatFDEnv = "WATCHDOG_HEARTBEAT_FD"
	workerIDEnv    = "WATCHDOG_WORKER_ID"
)

// BootFailureCode is the exit code a worker uses when its own startup
// fails (config, database, listener). The master treats it as
// unrecoverable and stops the whole pool instead of respawning forever.
const BootFailureCode = 3

// Runtime is the launch state a supervised worker inherits from its
// master: the shared listener and the write end of the heartbeat pipe.
type Runtime struct {
	Listener net.Listener
	WorkerID int

	heartbeat *os.File
}

// InheritedRuntime rebuilds the listener and heartbeat pipe from the
// environment the master prepared. An error here means the worker
// command was invoked outside a supervisor, which is a fatal misuse.
func InheritedRuntime() (*Runtime, error) {
	lnFD, err := fdFromEnv(listenerFDEnv)
	if err != nil {
		return nil, err
	}
	hbFD, err := fdFromEnv(heartbeatFDEnv)
	if err != nil {
		return nil, err
	}

	lnFile := os.NewFile(uintptr(lnFD), "inherited-listener")
	if lnFile == nil {
		return nil, fmt.Errorf("fd %d is not open", lnFD)
	}
	ln, err := net.FileListener(lnFile)
	// FileListener dups the descriptor, the original is no longer needed.
	lnFile.Close()
	if err != nil {
		return nil, fmt.Errorf("inherited listener: %w", err)
	}

	hb := os.NewFile(uintptr(hbFD), "heartbeat-pipe")
	if hb == nil {
		ln.Close()
		return nil, fmt.Errorf("fd %d is not open", hbFD)
	}

	id, _ := strconv.Atoi(os.Getenv(workerIDEnv))
	return &Runtime{Listener: ln, WorkerID: id, heartbeat: hb}, nil
}

func fdFromEnv(key string) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return 0, fmt.Errorf("%s not set: the worker command is started by the supervisor, not by hand", key)
	}
	fd, err := strconv.Atoi(v)
	if err != nil || fd < 3 {
		return 0, fmt.Errorf("%s=%q is not a usable descriptor", key, v)
	}
	return fd, nil
}

// RunWorker serves handler on the inherited listener, writing a beat
// every second, until ctx is canceled or the request budget is spent.
// Each worker owns its full app (its own Mongo connection and clients);
// nothing is shared with siblings except the listener.
func RunWorker(ctx context.Context, cfg Config, rt *Runtime, handler http.Handler, log *zap.Logger) error {
	ctx, retire := context.WithCancel(ctx)
	defer retire()

	tr := newTracker()
	budget := requestBudget(cfg.MaxRequests, cfg.MaxRequestsJitter)
	wrapped := tr.wrap(handler, budget, func() {
		log.Info("request budget spent, retiring",
			zap.Int("worker", rt.WorkerID),
			zap.Uint64("budget", budget))
		retire()
	})

	go beatLoop(ctx, rt.heartbeat, tr, time.Second)

	log.Info("worker serving",
		zap.Int("worker", rt.WorkerID),
		zap.Int("pid", os.Getpid()),
		zap.String("addr", rt.Listener.Addr().String()))

	err := serveListener(ctx, cfg, rt.Listener, wrapped, log)
	rt.heartbeat.Close()
	return err
}

// requestBudget is MaxRequests plus a random jitter so pool members do
// not all recycle at once. Zero means no recycling.
func requestBudget(maxRequests, jitter int) uint64 {
	if maxRequests <= 0 {
		return 0
	}
	if jitter > 0 {
		maxRequests += rand.Intn(jitter + 1)
	}
	return uint64(maxRequests)
}

// beatLoop writes one beat immediately, then one per interval, until ctx
// is canceled or the pipe breaks (master gone).
func beatLoop(ctx context.Context, w *os.File, tr *tracker, every time.Duration) {
	pid := os.Getpid()
	send := func() error {
		inFlight, oldest, served := tr.snapshot()
		return WriteBeat(w, Beat{PID: pid, InFlight: inFlight, OldestStart: oldest, Served: served})
	}
	if err := send(); err != nil {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		if err := send(); err != nil {
			return
		}
	}
}

// tracker records in-flight requests so beats can report the oldest
// start time, which is what lets the master enforce the request timeout
// from outside the process.
type tracker struct {
	mu       sync.Mutex
	seq      uint64
	inflight map[uint64]time.Time
	served   uint64
}

func newTracker() *tracker {
	return &tracker{inflight: make(map[uint64]time.Time)}
}

func (t *tracker) begin() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seq++
	t.inflight[t.seq] = time.Now()
	return t.seq
}

// end retires one request and returns the served total so far.
func (t *tracker) end(id uint64) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.inflight, id)
	t.served++
	return t.served
}

func (t *tracker) snapshot() (inFlight int, oldestStart int64, served uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var oldest time.Time
	for _, start := range t.inflight {
		if oldest.IsZero() || start.Before(oldest) {
			oldest = start
		}
	}
	if !oldest.IsZero() {
		oldestStart = oldest.UnixNano()
	}
	return len(t.inflight), oldestStart, t.served
}

// wrap counts requests through next and fires retire exactly once when
// the budget is spent. In-flight requests still drain normally; retire
// only cancels the serve context.
func (t *tracker) wrap(next http.Handler, budget uint64, retire func()) http.Handler {
	var once sync.Once
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := t.begin()
		defer func() {
			served := t.end(id)
			if budget > 0 && served >= budget {
				once.Do(retire)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
