package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	SendsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbscan_notify_sends_total",
		Help: "Notification dispatches per sink and outcome",
	}, []string{"sink", "outcome"})

	SuppressedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arbscan_notify_suppressed_total",
		Help: "Notifications dropped inside the cooldown window",
	})
)
