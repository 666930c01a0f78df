package main

import (
	"os"

	"github.com/deepak0937/deepak-watchdog/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
