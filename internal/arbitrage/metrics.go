package arbitrage

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	EvaluationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arbscan_arb_evaluations_total",
		Help: "Matched pairs run through the evaluator",
	})

	OpportunitiesFoundTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbscan_arb_opportunities_found_total",
		Help: "Opportunities at or above the effective threshold by direction",
	}, []string{"direction"})

	SkipsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbscan_arb_skips_total",
		Help: "Pair evaluations skipped by reason",
	}, []string{"reason"})

	EdgePct = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "arbscan_arb_edge_pct",
		Help:    "Net edge of emitted opportunities in percentage points",
		Buckets: []float64{0.5, 1, 2, 3, 4, 5, 7.5, 10, 15, 20},
	})

	ActiveOpportunities = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arbscan_arb_active_opportunities",
		Help: "Opportunities in the published book",
	})

	BookChangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbscan_arb_book_changes_total",
		Help: "Opportunity book mutations by kind",
	}, []string{"change"})
)
