package venues

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbscan_venue_requests_total",
		Help: "Total venue REST requests by operation and outcome",
	}, []string{"venue", "op", "outcome"})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "arbscan_venue_request_duration_seconds",
		Help:    "Venue REST request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"venue"})

	ParseErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbscan_venue_parse_errors_total",
		Help: "Markets dropped because their payload failed validation",
	}, []string{"venue"})

	CacheFallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbscan_venue_cache_fallbacks_total",
		Help: "Catalog fetches served from the stale cache after a failure",
	}, []string{"venue"})

	CatalogSize = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "arbscan_venue_catalog_size",
		Help: "Markets in the venue's last successful catalog fetch",
	}, []string{"venue"})
)
