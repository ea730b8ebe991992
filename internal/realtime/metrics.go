package realtime

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	UpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbscan_rt_updates_total",
		Help: "Stream quote updates applied to the live board",
	}, []string{"venue"})

	UpdatesDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbscan_rt_updates_dropped_total",
		Help: "Stream quote updates dropped because the ingest queue was full",
	}, []string{"venue"})

	StreamDeathsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbscan_rt_stream_deaths_total",
		Help: "Streams declared dead after reconnection was exhausted",
	}, []string{"venue"})

	SubscribedMarkets = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "arbscan_rt_subscribed_markets",
		Help: "Markets currently subscribed on each venue stream",
	}, []string{"venue"})

	EdgeCrossingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbscan_rt_edge_crossings_total",
		Help: "Threshold crossings published from live updates",
	}, []string{"venue", "edge"})

	EventsDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arbscan_rt_events_dropped_total",
		Help: "Edge events dropped because the consumer fell behind",
	})
)
