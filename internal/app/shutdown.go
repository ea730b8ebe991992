package app

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

// Shutdown gracefully shuts down the application: the context cancel
// stops the scan loop, the realtime workers and the event loop, then the
// HTTP server drains its clients within the shutdown deadline.
func (a *App) Shutdown() {
	a.logger.Info("application-shutting-down")

	a.healthChecker.SetReady(false)

	a.cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	err := a.httpServer.Shutdown(shutdownCtx)
	if err != nil {
		a.logger.Error("http-server-shutdown-error", zap.Error(err))
	}

	a.wg.Wait()

	a.logger.Info("application-shutdown-complete")
}
