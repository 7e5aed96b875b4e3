package manager

import "github.com/prometheus/client_golang/prometheus"

var (
	generationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sightspeak",
			Subsystem: "generation",
			Name:      "total",
			Help:      "Generations by request kind and outcome",
		},
		[]string{"kind", "outcome"},
	)
	generationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sightspeak",
			Subsystem: "generation",
			Name:      "duration_seconds",
			Help:      "Time from admission to terminal event",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 10, 15, 30},
		},
		[]string{"kind"},
	)
	sessionResets = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sightspeak",
			Subsystem: "session",
			Name:      "resets_total",
			Help:      "Session recreations by reason and result",
		},
		[]string{"reason", "result"},
	)
	busyRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sightspeak",
			Subsystem: "generation",
			Name:      "busy_rejections_total",
			Help:      "Requests rejected by the single-flight policy",
		},
		[]string{"kind"},
	)
	memoryEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "sightspeak",
			Subsystem: "memory",
			Name:      "entries",
			Help:      "Exchanges currently held in the memory ring",
		},
	)
)

func init() {
	prometheus.MustRegister(generationsTotal, generationDuration, sessionResets, busyRejections, memoryEntries)
}
