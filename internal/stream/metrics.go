package stream

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kubelogx_sessions_active",
			Help: "Number of stream sessions currently running.",
		},
	)
	sessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kubelogx_sessions_total",
			Help: "Total finished stream sessions by outcome.",
		},
		[]string{"outcome"},
	)
	entriesDelivered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kubelogx_entries_delivered_total",
			Help: "Total log entries accepted by subscriber channels.",
		},
	)
	entriesEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kubelogx_entries_evicted_total",
			Help: "Total entries evicted from session history buffers.",
		},
	)
	reconnectsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kubelogx_reconnects_total",
			Help: "Total reconnect attempts after a lost log stream.",
		},
	)
	sendWouldBlock = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kubelogx_send_would_block_total",
			Help: "Total sends that found the subscriber channel busy.",
		},
	)
)
