package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// serve starts the dispatch scheduler and the HTTP server, then blocks
// until the context is cancelled (shutdown signal) and both have stopped
// gracefully. In-flight analysis attempts are allowed to settle.
func (app *application) serve(ctx context.Context) error {
	if err := app.scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", app.config.Server.Port),
		Handler:           app.setupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		app.logger.Info("server listening", "port", app.config.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = app.scheduler.Stop(stopCtx)
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		app.logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		app.logger.Error("HTTP server shutdown failed", "error", err)
	}

	if err := app.scheduler.Stop(shutdownCtx); err != nil {
		app.logger.Error("scheduler did not stop in time", "error", err)
		return err
	}

	app.logger.Info("server shutdown completed")
	return nil
}
