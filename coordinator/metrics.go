package coordinator

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var metrics = struct {
	rounds           *prometheus.CounterVec
	roundDuration    *prometheus.HistogramVec
	taskFailures     *prometheus.CounterVec
	activeWorkers    prometheus.Gauge
	reconfigurations prometheus.Counter
}{
	rounds: prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "elasticmv",
			Subsystem: "coordinator",
			Name:      "rounds",
			Help:      "Rounds completed since startup",
		},
		[]string{"kind"},
	),
	roundDuration: prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "elasticmv",
			Subsystem: "coordinator",
			Name:      "round_duration_seconds",
			Help:      "Time spent on a round, from fan-out to decode",
		},
		[]string{"kind", "workers"},
	),
	taskFailures: prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "elasticmv",
			Subsystem: "coordinator",
			Name:      "task_failures",
			Help:      "Failed worker requests",
		},
		[]string{"worker"},
	),
	activeWorkers: prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "elasticmv",
			Subsystem: "coordinator",
			Name:      "active_workers",
			Help:      "Current number of active workers",
		},
	),
	reconfigurations: prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "elasticmv",
			Subsystem: "coordinator",
			Name:      "reconfigurations",
			Help:      "Worker count changes since startup",
		},
	),
}

var metricsRegister sync.Once

func registerMetrics() {
	metricsRegister.Do(func() {
		prometheus.MustRegister(metrics.rounds)
		prometheus.MustRegister(metrics.roundDuration)
		prometheus.MustRegister(metrics.taskFailures)
		prometheus.MustRegister(metrics.activeWorkers)
		prometheus.MustRegister(metrics.reconfigurations)
	})
}

func recordRound(kind RoundKind, workers int, duration time.Duration) {
	metrics.rounds.WithLabelValues(string(kind)).Inc()
	metrics.roundDuration.WithLabelValues(string(kind), strconv.Itoa(workers)).Observe(duration.Seconds())
}

func recordTaskFailure(worker int) {
	metrics.taskFailures.WithLabelValues(strconv.Itoa(worker)).Inc()
}

func recordReconfiguration(workers int) {
	metrics.reconfigurations.Inc()
	metrics.activeWorkers.Set(float64(workers))
}
