package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/deepak0937/deepak-watchdog/internal/app/bootstrap"
	"github.com/deepak0937/deepak-watchdog/internal/app/launch"
)

var workerCmd = &cobra.Command{
	Use:    "worker",
	Hidden: true,
	Short:  "Run one supervised worker (started by the master, not by hand)",
	Args:   cobra.NoArgs,
	Run:    runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

// runWorker serves on the listener inherited from the master. Any boot
// failure exits with launch.BootFailureCode so the master stops the
// pool instead of respawning a process that can never come up.
func runWorker(cmd *cobra.Command, args []string) {
	rt, err := launch.InheritedRuntime()
	if err != nil {
		fmt.Fprintln(os.Stderr, "worker boot:", err)
		os.Exit(launch.BootFailureCode)
	}

	cfg, err := bootstrap.LoadConfig(cfgFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "worker boot:", err)
		os.Exit(launch.BootFailureCode)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		fmt.Fprintln(os.Stderr, "worker boot:", err)
		os.Exit(launch.BootFailureCode)
	}
	defer logger.Sync()
	logger = logger.With(zap.Int("worker", rt.WorkerID))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Each worker owns its full app: its own Mongo connection, clients,
	// and background jobs. The Mongo poll lease keeps N identical
	// workers from polling N times.
	app, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("worker boot failed", zap.Error(err))
		_ = logger.Sync()
		os.Exit(launch.BootFailureCode)
	}
	app.Startup()

	lc := cfg.Launch(1) // the port was bound by the master; only timeouts matter here
	serveErr := launch.RunWorker(ctx, lc, rt, bootstrap.BuildHandler(app), logger)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), lc.GraceTimeout)
	defer cancel()
	if err := app.Shutdown(shutdownCtx); err != nil {
		logger.Error("worker shutdown incomplete", zap.Error(err))
	}
	if serveErr != nil {
		logger.Error("worker serve failed", zap.Error(serveErr))
		_ = logger.Sync()
		os.Exit(1)
	}
}
