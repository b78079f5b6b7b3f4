package main

import (
	"context"
	"errors"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/navaarsync/navaar/internal/shared"
)

func main() {
	logger := shared.NewLogger(nil)

	config := shared.DefaultConfig()
	if _, err := os.Stat("config.toml"); err == nil {
		if loaded, err := shared.LoadConfig("config.toml"); err == nil {
			config = loaded
		}
	}

	runner := NewRunner(RunnerConfig{Config: config, Logger: logger, Output: os.Stdout})

	app := &cli.Command{
		Name:     "navaar",
		Usage:    "Keep a Telegram channel, a YouTube Music playlist, and a Spotify playlist in sync",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		if errors.Is(err, shared.ErrNotImplemented) {
			logger.Warn("not implemented")
			os.Exit(0)
		}
		logger.Fatalf("application error: %v", err)
	}
}
