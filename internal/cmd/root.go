// Package cmd holds the deepak-watchdog command tree.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Global flags.
var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "deepak-watchdog",
	Short: "Market watchdog: broker data in, language-model decisions out",
	Long: `deepak-watchdog polls brokerage APIs for market snapshots, asks a
language-model API for a strict-JSON trading stance, stores every
decision, and serves a JSON HTTP API around the results.

The serve command runs the HTTP service either directly in this
process or as a supervised pool of worker processes. The listen port
always comes from the hosting platform's PORT variable; everything
else is WATCHDOG_* environment variables or an optional YAML file.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", os.Getenv("WATCHDOG_CONFIG"), "YAML config file")
}

// newLogger builds the process logger: human-readable in dev, JSON in
// anything else.
func newLogger(env string) (*zap.Logger, error) {
	if env == "dev" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
