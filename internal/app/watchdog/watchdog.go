// internal/app/watchdog/watchdog.go
package watchdog

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/deepak0937/deepak-watchdog/internal/app/broker/groww"
	"github.com/deepak0937/deepak-watchdog/internal/app/store/decisions"
	"github.com/deepak0937/deepak-watchdog/internal/app/store/schedstate"
	"github.com/deepak0937/deepak-watchdog/internal/app/store/ticks"
	"github.com/deepak0937/deepak-watchdog/internal/domain/models"
)

// DefaultRawLimit caps how much raw model text one decision stores.
const DefaultRawLimit = 2000

// QuoteSource supplies market snapshots. *groww.Client satisfies it.
type QuoteSource interface {
	Quote(ctx context.Context, symbol string) (*groww.Quote, error)
}

// Adviser turns a snapshot into an advice. *advisor.Advisor satisfies it.
type Adviser interface {
	Decide(ctx context.Context, symbol string, snapshot any) (models.Advice, string)
}

// Alerter announces stored decisions. *notify.Notifier satisfies it.
type Alerter interface {
	DecisionAlert(ctx context.Context, d models.Decision)
}

// Config wires the watchdog's collaborators.
type Config struct {
	Quotes    QuoteSource
	Advisor   Adviser
	Decisions *decisions.Store
	Ticks     *ticks.Store
	Sched     *schedstate.Store
	Notifier  Alerter
	Symbols   []string
	RawLimit  int
}

// Watchdog runs the poll pipeline: fetch a market snapshot, ask the
// advisor what to do, persist the decision, and announce it.
type Watchdog struct {
	cfg Config
	log *zap.Logger
}

// New creates a Watchdog.
func New(cfg Config, logger *zap.Logger) *Watchdog {
	if cfg.RawLimit <= 0 {
		cfg.RawLimit = DefaultRawLimit
	}
	if len(cfg.Symbols) == 0 {
		cfg.Symbols = []string{"NIFTY"}
	}
	return &Watchdog{cfg: cfg, log: logger}
}

// Symbols returns the watched symbol list.
func (w *Watchdog) Symbols() []string { return w.cfg.Symbols }

// PollOnce runs the pipeline for a single symbol. A failed quote fetch
// does not abort the cycle: the error becomes the snapshot, and the
// advisor still gets to answer (typically FLAT). The returned error
// reports persistence problems only; the decision itself is always
// produced and announced.
func (w *Watchdog) PollOnce(ctx context.Context, symbol string) (models.Decision, error) {
	var snapshot bson.M
	q, err := w.cfg.Quotes.Quote(ctx, symbol)
	if err != nil {
		w.log.Warn("quote fetch failed", zap.String("symbol", symbol), zap.Error(err))
		snapshot = bson.M{"error": err.Error()}
	} else {
		snapshot = bson.M(q.Raw)
		if q.LTP > 0 {
			tick := models.Tick{Symbol: symbol, LTP: q.LTP}
			if err := w.cfg.Ticks.Insert(ctx, &tick); err != nil {
				w.log.Warn("tick insert failed", zap.String("symbol", symbol), zap.Error(err))
			}
		}
	}

	advice, raw := w.cfg.Advisor.Decide(ctx, symbol, snapshot)
	if len(raw) > w.cfg.RawLimit {
		raw = raw[:w.cfg.RawLimit]
	}

	d := models.Decision{
		Symbol:    symbol,
		CreatedAt: time.Now().UTC(),
		Snapshot:  snapshot,
		Advice:    advice,
		Raw:       raw,
	}

	var storeErr error
	if err := w.cfg.Decisions.Insert(ctx, &d); err != nil {
		w.log.Error("decision insert failed", zap.String("symbol", symbol), zap.Error(err))
		storeErr = err
	}

	w.log.Info("decision",
		zap.String("symbol", symbol),
		zap.String("stance", advice.Stance),
		zap.Int("qty", advice.Qty),
		zap.Float64("confidence_pct", advice.ConfidencePct))
	w.cfg.Notifier.DecisionAlert(ctx, d)

	return d, storeErr
}

// PollAll runs PollOnce for every watched symbol with bounded
// concurrency, then records the cycle outcome in scheduler state.
func (w *Watchdog) PollAll(ctx context.Context) error {
	errsBySymbol := make([]string, len(w.cfg.Symbols))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(3)
	for i, sym := range w.cfg.Symbols {
		i, sym := i, sym
		g.Go(func() error {
			if _, err := w.PollOnce(gctx, sym); err != nil {
				errsBySymbol[i] = sym + ": " + err.Error()
			}
			return nil
		})
	}
	_ = g.Wait()

	var parts []string
	for _, e := range errsBySymbol {
		if e != "" {
			parts = append(parts, e)
		}
	}
	runErr := strings.Join(parts, "; ")

	if err := w.cfg.Sched.MarkRun(ctx, time.Now().UTC(), runErr); err != nil {
		w.log.Warn("mark run failed", zap.Error(err))
	}
	if runErr != "" {
		return errors.New(runErr)
	}
	return nil
}
