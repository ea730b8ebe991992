// Package app wires configuration into the running service: venue
// adapters, matcher, evaluator, scan loop, realtime workers, the
// notification broker and the HTTP surface.
package app

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/crossvenue/arbscan/internal/arbitrage"
	"github.com/crossvenue/arbscan/internal/notify"
	"github.com/crossvenue/arbscan/internal/realtime"
	"github.com/crossvenue/arbscan/internal/scanner"
	"github.com/crossvenue/arbscan/pkg/config"
	"github.com/crossvenue/arbscan/pkg/healthprobe"
	"github.com/crossvenue/arbscan/pkg/httpserver"
)

// ErrNoVenuesReachable means the startup scan reached no venue at all.
// Scanning blind is pointless, so the process exits instead of looping.
var ErrNoVenuesReachable = errors.New("startup scan: no venue reachable")

// App is the main application orchestrator.
type App struct {
	cfg           *config.Config
	logger        *zap.Logger
	healthChecker *healthprobe.HealthChecker
	httpServer    *httpserver.Server
	book          *arbitrage.Book
	scanner       *scanner.Scanner
	realtime      *realtime.Manager
	broker        *notify.Broker
	fatal         chan error
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
}

// Options holds application options.
type Options struct {
	// DisableRealtime runs the polling scan loop without venue streams.
	DisableRealtime bool
}

// ScanOnce runs a single synchronous scan without starting any long-lived
// component. One-shot CLI commands use it instead of Run.
func (a *App) ScanOnce(ctx context.Context) *scanner.ScanResult {
	return a.scanner.ScanOnce(ctx)
}
