package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/maauso/audiotoolbox/internal/server"
	"github.com/maauso/audiotoolbox/internal/task"
	"github.com/maauso/audiotoolbox/internal/watch"
)

// NewServeCmd creates the serve command, which runs the JSON API.
func NewServeCmd(deps *Dependencies) *cobra.Command {
	var port int
	var watchDir bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("port") {
				port = deps.Config.Port
			}
			if !cmd.Flags().Changed("watch") {
				watchDir = deps.Config.Watch
			}
			return serve(cmd.Context(), deps, port, watchDir)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "Listen port (default PORT)")
	cmd.Flags().BoolVarP(&watchDir, "watch", "w", false, "Rescan when the recordings directory changes (default WATCH)")

	return cmd
}

func serve(ctx context.Context, deps *Dependencies, port int, watchDir bool) error {
	logger := deps.Logger
	app := deps.App
	workDir := deps.Config.WorkDir

	logger.Info("starting audiotoolbox API",
		slog.Int("port", port),
		slog.String("work_dir", workDir),
		slog.Bool("watch", watchDir),
		slog.String("log_format", deps.Config.LogFormat),
		slog.String("log_level", deps.Config.LogLevel),
	)

	if n, err := app.Service.Scan(ctx, workDir); err != nil {
		logger.Warn("initial scan failed", slog.String("error", err.Error()))
	} else {
		logger.Info("initial scan complete", slog.Int("files", n))
	}

	handlers := server.NewHandlers(app.Service, workDir, logger)
	router := server.NewRouter(handlers, logger, server.Config{
		AllowedOrigins: server.DefaultConfig().AllowedOrigins,
		Gatherer:       app.Registry,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if watchDir {
		w := watch.New(workDir, func(ctx context.Context) error {
			_, err := app.Service.Scan(ctx, workDir)
			return err
		},
			watch.WithLogger(logger),
			watch.WithRetry(func(err error) bool { return errors.Is(err, task.ErrBusy) }),
		)
		go func() {
			if err := w.Run(runCtx); err != nil {
				logger.Error("watcher stopped", slog.String("error", err.Error()))
			}
		}()
	}

	// Graceful shutdown handling
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdownCh)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening",
			slog.String("addr", srv.Addr),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server failed: %w", err)
		}
	}()

	// Wait for shutdown signal or error
	select {
	case sig := <-shutdownCh:
		logger.Info("received shutdown signal",
			slog.String("signal", sig.String()),
		)
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}
	cancel()

	// Graceful shutdown with timeout
	shutdownCtx, stop := context.WithTimeout(context.Background(), 30*time.Second)
	defer stop()

	logger.Info("shutting down server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	logger.Info("waiting for running task")
	app.Service.Wait()

	logger.Info("server stopped gracefully")
	return nil
}
