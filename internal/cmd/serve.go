package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/deepak0937/deepak-watchdog/internal/app/bootstrap"
	"github.com/deepak0937/deepak-watchdog/internal/app/launch"
)

var (
	serveMode    string
	servePort    int
	serveWorkers int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP service",
	Long: `Runs the watchdog HTTP service.

In direct mode the current process binds and serves. In supervised
mode a master process binds once and manages a fixed pool of worker
processes: crashed workers are respawned, a worker stuck past the
request timeout is killed and replaced, and SIGTERM drains the pool.

The listen port comes from the PORT environment variable, with
fallback_port from the config as the local-run escape hatch. No port
at all is a fatal startup error.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveMode, "mode", "", "launch mode: direct or supervised (default from config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (default: PORT env, then fallback_port)")
	serveCmd.Flags().IntVar(&serveWorkers, "workers", 0, "supervised worker count (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := bootstrap.LoadConfig(cfgFile)
	if err != nil {
		return err
	}
	if serveMode != "" {
		cfg.Mode = serveMode
	}
	if serveWorkers > 0 {
		cfg.Workers = serveWorkers
	}
	if err := bootstrap.ValidateConfig(cfg); err != nil {
		return err
	}

	port := servePort
	if port == 0 {
		port, err = launch.ResolvePort(os.Getenv("PORT"), cfg.FallbackPort)
		if err != nil {
			return err
		}
	}
	lc := cfg.Launch(port)
	if err := lc.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if lc.Mode == launch.ModeSupervised {
		// The master stays out of the app entirely: config was already
		// validated, and each worker builds its own composition root.
		workerArgs := []string{"worker"}
		if cfgFile != "" {
			workerArgs = append(workerArgs, "--config", cfgFile)
		}
		return launch.NewMaster(lc, workerArgs, logger).Run(ctx)
	}

	app, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), lc.GraceTimeout)
		defer cancel()
		if err := app.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown incomplete", zap.Error(err))
		}
	}()
	app.Startup()

	return launch.Direct(ctx, lc, bootstrap.BuildHandler(app), logger)
}
