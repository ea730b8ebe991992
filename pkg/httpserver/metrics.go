package httpserver

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	WSClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arbscan_http_ws_clients",
		Help: "Connected dashboard websocket clients",
	})

	WSBroadcastsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arbscan_http_ws_broadcasts_total",
		Help: "Events broadcast to dashboard clients",
	})

	WSSlowClientDropsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arbscan_http_ws_slow_client_drops_total",
		Help: "Dashboard clients disconnected for not keeping up",
	})
)
