package scanner

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	ScansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbscan_scan_total",
		Help: "Completed scan iterations by outcome",
	}, []string{"outcome"})

	ScanDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "arbscan_scan_duration_seconds",
		Help:    "Wall time of one full scan iteration",
		Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
	})

	TicksSkippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arbscan_scan_ticks_skipped_total",
		Help: "Scheduler ticks coalesced because a scan was still running",
	})

	CoolOffsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arbscan_scan_cooloffs_total",
		Help: "Cool-off pauses taken after consecutive scan failures",
	})

	VenueUp = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "arbscan_scan_venue_up",
		Help: "Whether the last catalog fetch for a venue succeeded (1) or not (0)",
	}, []string{"venue"})

	CatalogMarkets = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "arbscan_scan_catalog_markets",
		Help: "Markets returned by the last catalog fetch per venue",
	}, []string{"venue"})

	QuoteFillsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbscan_scan_quote_fills_total",
		Help: "Top-of-book fills for matched legs missing catalog quotes",
	}, []string{"venue", "outcome"})
)
