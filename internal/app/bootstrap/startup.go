// internal/app/bootstrap/startup.go
package bootstrap

import (
	"go.uber.org/zap"

	"github.com/deepak0937/deepak-watchdog/internal/app/system/tasks"
	"github.com/deepak0937/deepak-watchdog/internal/app/watchdog"
)

// Startup starts the background jobs: the scheduled poll (gated by the
// shared pause switch and the Mongo poll lease, so N supervised workers
// yield exactly one active poller) and the Groww token refresher.
// Idempotent; a second call is a no-op.
func (a *App) Startup() {
	if a.runner != nil {
		return
	}
	a.runner = tasks.NewRunner(a.Log,
		a.Watchdog.PollJob(a.Cfg.PollInterval, leaseHolder()),
		watchdog.TokenRefreshJob(a.Groww, a.Cfg.GrowwRefresh),
	)
	a.runner.Start()
	a.Log.Info("background jobs started",
		zap.Duration("poll_interval", a.Cfg.PollInterval),
		zap.Strings("symbols", a.Cfg.Symbols))
}
