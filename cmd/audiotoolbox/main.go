// Package main provides the entry point for the audiotoolbox CLI.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/maauso/audiotoolbox/internal/cli"
	"github.com/maauso/audiotoolbox/internal/config"
	"github.com/maauso/audiotoolbox/internal/output"
)

func main() {
	if err := run(); err != nil {
		output.NewFormatter(os.Stderr).Error(err.Error())
		os.Exit(1)
	}
}

func run() error {
	// Load configuration from environment and the optional TOML file
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Create structured logger
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	// Interrupts cancel running ffmpeg and 7z processes
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps := &cli.Dependencies{
		Config: cfg,
		Logger: logger,
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.Warn("close failed", slog.String("error", err.Error()))
		}
	}()

	return cli.NewRootCmd(deps).ExecuteContext(ctx)
}
