package websocket

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveConnections tracks active WebSocket connections per venue.
	ActiveConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "arbscan_ws_active_connections",
			Help: "Number of active WebSocket connections",
		},
		[]string{"venue"},
	)

	// ReconnectAttemptsTotal tracks reconnection attempts.
	ReconnectAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arbscan_ws_reconnect_attempts_total",
		Help: "Total number of WebSocket reconnection attempts",
	})

	// ReconnectFailuresTotal tracks reconnection failures.
	ReconnectFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arbscan_ws_reconnect_failures_total",
		Help: "Total number of WebSocket reconnection failures",
	})

	// MessagesReceivedTotal tracks frames received per venue.
	MessagesReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arbscan_ws_messages_received_total",
			Help: "Total number of WebSocket frames received",
		},
		[]string{"venue"},
	)

	// MessagesDroppedTotal tracks frames dropped before delivery.
	MessagesDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arbscan_ws_messages_dropped_total",
			Help: "Total number of WebSocket frames dropped",
		},
		[]string{"venue", "reason"},
	)

	// ConnectionDuration tracks WebSocket connection lifetime per venue.
	ConnectionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "arbscan_ws_connection_duration_seconds",
			Help:    "Duration of WebSocket connections before disconnect",
			Buckets: []float64{60, 300, 600, 1800, 3600, 7200, 14400, 28800, 43200, 86400},
		},
		[]string{"venue"},
	)

	// StreamsDiedTotal counts streams declared dead after exhausting
	// their reconnect budget.
	StreamsDiedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arbscan_ws_streams_died_total",
			Help: "Total number of venue streams declared dead",
		},
		[]string{"venue"},
	)

	// SubscriptionCount tracks active market subscriptions per venue.
	SubscriptionCount = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "arbscan_ws_subscription_count",
			Help: "Number of active market subscriptions",
		},
		[]string{"venue"},
	)
)
