// Package app provides application lifecycle management for the sync service.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/stacklok/npm-sync/internal/app/storage"
	"github.com/stacklok/npm-sync/internal/config"
)

// SyncApp encapsulates the pipeline workers and the control plane server.
// It provides lifecycle management and graceful shutdown capabilities.
type SyncApp struct {
	config         *config.Config
	components     *AppComponents
	storageFactory storage.Factory
	httpServer     *http.Server

	// Lifecycle management
	ctx        context.Context
	cancelFunc context.CancelFunc
	workers    errgroup.Group
}

// Start recovers an interrupted backfill, starts the queue consumers and
// the change poller in the background, then serves HTTP.
// This method blocks until the HTTP server stops or encounters an error.
func (app *SyncApp) Start() error {
	if err := app.components.Backfill.Recover(app.ctx); err != nil {
		slog.Error("Failed to recover backfill", "error", err)
	}

	for _, w := range app.components.workers() {
		app.workers.Go(func() error {
			slog.Debug("Starting worker", "worker", w.name)
			if err := w.run(app.ctx); err != nil {
				slog.Error("Worker stopped with error", "worker", w.name, "error", err)
				return fmt.Errorf("%s: %w", w.name, err)
			}
			return nil
		})
	}

	slog.Info("Server listening", "address", app.httpServer.Addr)
	if err := app.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	return nil
}

// Stop gracefully stops the application with the given timeout.
// It shuts down the HTTP server, cancels the workers and waits for in-flight
// jobs to settle, then releases storage.
func (app *SyncApp) Stop(timeout time.Duration) error {
	slog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	if err := app.httpServer.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server forced to shutdown: %w", err))
	}

	app.cancelFunc()

	done := make(chan error, 1)
	go func() {
		done <- app.workers.Wait()
	}()
	select {
	case err := <-done:
		if err != nil {
			errs = append(errs, err)
		}
	case <-shutdownCtx.Done():
		errs = append(errs, fmt.Errorf("workers did not stop within %s", timeout))
	}

	app.storageFactory.Cleanup()

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	slog.Info("Server shutdown complete")
	return nil
}

// GetConfig returns the application configuration
func (app *SyncApp) GetConfig() *config.Config {
	return app.config
}

// GetHTTPServer returns the HTTP server (useful for testing to get the actual port)
func (app *SyncApp) GetHTTPServer() *http.Server {
	return app.httpServer
}

// GetComponents returns the wired pipeline components
func (app *SyncApp) GetComponents() *AppComponents {
	return app.components
}
