package worker

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var metrics = struct {
	computeDuration prometheus.Histogram
	requests        *prometheus.CounterVec
}{
	computeDuration: prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "elasticmv",
			Subsystem: "worker",
			Name:      "compute_duration_seconds",
			Help:      "Time spent computing partial products",
		},
	),
	requests: prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "elasticmv",
			Subsystem: "worker",
			Name:      "requests",
			Help:      "Requests handled since startup",
		},
		[]string{"kind", "result"},
	),
}

var metricsRegister sync.Once

func registerMetrics() {
	metricsRegister.Do(func() {
		prometheus.MustRegister(metrics.computeDuration)
		prometheus.MustRegister(metrics.requests)
	})
}

func recordCompute(duration time.Duration) {
	metrics.computeDuration.Observe(duration.Seconds())
}

func recordRequest(kind string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	metrics.requests.WithLabelValues(kind, result).Inc()
}
