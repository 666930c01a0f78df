// internal/app/watchdog/jobs.go
package watchdog

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/deepak0937/deepak-watchdog/internal/app/broker/groww"
	"github.com/deepak0937/deepak-watchdog/internal/app/system/tasks"
)

// PollJob builds the scheduled poll task. Every tick checks the shared
// pause switch, then competes for the poll lease; with several worker
// processes running the same schedule, exactly one wins each cycle.
// The lease outlives the interval so a healthy leader keeps renewing
// before anyone else can take over.
func (w *Watchdog) PollJob(interval time.Duration, holder string) tasks.Job {
	return tasks.Job{
		Name:       "watchdog-poll",
		Interval:   interval,
		RunOnStart: true,
		Run: func(ctx context.Context) error {
			ctrl, err := w.cfg.Sched.Control(ctx)
			if err != nil {
				return err
			}
			if ctrl.Paused {
				w.log.Debug("poll skipped, scheduler paused")
				return nil
			}

			ok, err := w.cfg.Sched.AcquireLease(ctx, holder, 2*interval)
			if err != nil {
				return err
			}
			if !ok {
				w.log.Debug("poll skipped, another worker holds the lease",
					zap.String("holder", holder))
				return nil
			}
			return w.PollAll(ctx)
		},
	}
}

// TokenRefreshJob keeps the Groww token warm so polls never block on a
// cold credential. Missing credentials are not an error; the advisor
// pipeline degrades gracefully without market data auth.
func TokenRefreshJob(g *groww.Client, interval time.Duration) tasks.Job {
	return tasks.Job{
		Name:       "groww-token-refresh",
		Interval:   interval,
		RunOnStart: true,
		Run: func(ctx context.Context) error {
			_, err := g.RefreshToken(ctx)
			if errors.Is(err, groww.ErrNoCredentials) {
				return nil
			}
			return err
		},
	}
}
