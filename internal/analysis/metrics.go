package analysis

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	analysisRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kubelogx_analysis_requests_total",
			Help: "Total analysis requests by status.",
		},
		[]string{"status"},
	)
	analysisDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kubelogx_analysis_duration_seconds",
			Help:    "Duration of analysis requests to the model endpoint.",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"status"},
	)
)
