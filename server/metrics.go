package server

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var serverMetrics = struct {
	httpRequestDuration *prometheus.HistogramVec
}{
	httpRequestDuration: prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "elasticmv",
			Name:      "http_request_duration_seconds",
			Help:      "Time spent generating HTTP responses",
		},
		[]string{
			"method",
			"path",
			"status_code",
		},
	),
}

var metricsRegister sync.Once

func registerMetrics() {
	metricsRegister.Do(func() {
		prometheus.MustRegister(serverMetrics.httpRequestDuration)
	})
}

func recordHTTPRequestDuration(method, path string, statusCode int, duration time.Duration) {
	labels := prometheus.Labels{"method": method, "path": path, "status_code": strconv.Itoa(statusCode)}
	serverMetrics.httpRequestDuration.With(labels).Observe(duration.Seconds())
}
