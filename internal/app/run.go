package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/crossvenue/arbscan/internal/realtime"
)

// Run starts the application and blocks until shutdown.
func (a *App) Run() error {
	a.logger.Info("application-starting",
		zap.Float64("threshold-pct", a.cfg.Arbitrage.MinArbitrageThreshold),
		zap.Int("venues", len(a.cfg.EnabledVenues())),
		zap.Bool("realtime", a.realtime != nil),
		zap.String("log-level", a.cfg.LogLevel))

	a.startComponents()

	a.logger.Info("application-ready",
		zap.String("http-addr", ":"+a.cfg.HTTPPort),
		zap.Duration("scan-interval", a.cfg.ScanInterval()))

	return a.waitForShutdown()
}

func (a *App) startComponents() {
	a.wg.Add(1)
	go a.runHTTPServer()

	a.wg.Add(1)
	go a.runScanner()

	if a.realtime != nil {
		a.wg.Add(1)
		go a.runRealtime()
	}

	a.wg.Add(1)
	go a.runEventLoop()
}

func (a *App) runHTTPServer() {
	defer a.wg.Done()

	err := a.httpServer.Start()
	if err != nil {
		a.logger.Error("http-server-error", zap.Error(err))
		a.fail(fmt.Errorf("http server: %w", err))
	}
}

func (a *App) runScanner() {
	defer a.wg.Done()

	err := a.scanner.Run(a.ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Error("scanner-error", zap.Error(err))
	}
}

func (a *App) runRealtime() {
	defer a.wg.Done()

	err := a.realtime.Run(a.ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Error("realtime-error", zap.Error(err))
	}
}

// runEventLoop fans scan results and realtime events out to the broker
// and the dashboard. It is the only consumer of both channels.
func (a *App) runEventLoop() {
	defer a.wg.Done()

	var events <-chan realtime.Event
	if a.realtime != nil {
		events = a.realtime.Events()
	}

	firstScan := true
	for {
		select {
		case <-a.ctx.Done():
			return

		case result := <-a.scanner.Results():
			if firstScan {
				firstScan = false
				if result.AllUnreachable() {
					a.fail(ErrNoVenuesReachable)
					continue
				}
			}

			a.healthChecker.RecordScan()

			if a.realtime != nil {
				a.realtime.OnScan(result)
			}
			if len(result.NewKeys) > 0 {
				a.broker.NotifyKeys(a.ctx, result.NewKeys)
			}
			a.httpServer.BroadcastState()

		case evt := <-events:
			if evt.Type == realtime.EventRising {
				a.broker.Notify(a.ctx, evt.Opportunity)
				a.httpServer.Broadcast("opportunity", evt.Opportunity)
			} else {
				a.httpServer.Broadcast("expired", map[string]string{"key": evt.Key})
			}
		}
	}
}

// fail records the first fatal error; later ones are dropped.
func (a *App) fail(err error) {
	select {
	case a.fatal <- err:
	default:
	}
}

func (a *App) waitForShutdown() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var runErr error
	select {
	case sig := <-sigChan:
		a.logger.Info("shutdown-signal-received", zap.String("signal", sig.String()))
	case err := <-a.fatal:
		a.logger.Error("fatal-error", zap.Error(err))
		runErr = err
	case <-a.ctx.Done():
		a.logger.Info("context-cancelled")
	}

	a.Shutdown()

	return runErr
}
