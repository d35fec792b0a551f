package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/strategyforge/gateway/internal/observability"
)

// defaultShutdownTimeout applies when the configuration sets none.
const defaultShutdownTimeout = 30 * time.Second

// exitFunc is os.Exit; tests replace it.
var exitFunc = os.Exit

// fatalWithSync logs at error level, flushes the logger and exits.
func fatalWithSync(logger observability.Logger, msg string, fields ...observability.Field) {
	logger.Error(msg, fields...)
	_ = logger.Sync()
	exitFunc(1)
}

// runGateway serves until a shutdown signal arrives or the server fails.
func runGateway(ctx context.Context, app *application, logger observability.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.server.Start(ctx)
	}()

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", observability.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			app.close(ctx, logger)
			fatalWithSync(logger, "HTTP server failed", observability.Error(err))
			return
		}
	}

	shutdown(app, logger)
}

// shutdown drains the server, then releases the rest.
func shutdown(app *application, logger observability.Logger) {
	timeout := app.config.Server.ShutdownTimeout.Duration()
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	app.health.SetDraining(true)
	if err := app.server.Stop(shutdownCtx); err != nil {
		logger.Error("failed to stop HTTP server gracefully", observability.Error(err))
	}
	app.close(shutdownCtx, logger)

	logger.Info("gateway stopped")
}
