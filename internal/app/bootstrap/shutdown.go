// internal/app/bootstrap/shutdown.go
package bootstrap

import (
	"context"

	"go.uber.org/zap"
)

// Shutdown stops the background jobs and disconnects MongoDB. It is the
// mirror of Build + Startup and runs after the HTTP listener has drained.
func (a *App) Shutdown(ctx context.Context) error {
	if a.runner != nil {
		a.runner.Stop()
		a.runner = nil
	}
	if a.DB.MongoClient != nil {
		a.Log.Info("disconnecting mongo")
		if err := a.DB.MongoClient.Disconnect(ctx); err != nil {
			a.Log.Error("mongo disconnect failed", zap.Error(err))
			return err
		}
	}
	return nil
}
