package launch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Direct binds Host:Port and serves handler from the current process.
// It blocks until ctx is canceled, then drains within GraceTimeout.
// A bind failure is returned immediately, before any traffic is taken.
func Direct(ctx context.Context, cfg Config, handler http.Handler, log *zap.Logger) error {
	ln, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		return fmt.Errorf("bind %s: %w", cfg.Addr(), err)
	}
	log.Info("listening",
		zap.String("addr", ln.Addr().String()),
		zap.String("mode", string(cfg.Mode)))
	return serveListener(ctx, cfg, ln, handler, log)
}

// serveListener runs an HTTP server on an already-bound listener until
// ctx is canceled. Both direct mode and supervised workers end up here;
// only how the listener was obtained differs.
func serveListener(ctx context.Context, cfg Config, ln net.Listener, handler http.Handler, log *zap.Logger) error {
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.GraceTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("drain incomplete, closing open connections", zap.Error(err))
		_ = srv.Close()
	}
	<-errCh
	return nil
}
