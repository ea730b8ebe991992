package matching

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	PairsMatchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbscan_match_pairs_total",
		Help: "Matched pairs emitted by tier",
	}, []string{"venue_pair", "tier"})

	RejectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbscan_match_rejects_total",
		Help: "Candidate pairs rejected by reason",
	}, []string{"reason"})

	MatchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "arbscan_match_duration_seconds",
		Help:    "Wall time of one cross-venue matching call",
		Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5},
	}, []string{"venue_pair"})

	CandidatesPerMarket = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "arbscan_match_candidates_per_market",
		Help:    "Candidate set size produced by the inverted index per market",
		Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
	})
)
