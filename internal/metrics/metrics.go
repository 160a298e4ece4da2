package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// AnalysesTotal counts finished analyses by outcome
	// (success, parse_failed, decode_error, model_error, timeout).
	AnalysesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ecosnap",
		Subsystem: "analysis",
		Name:      "total",
		Help:      "Total number of waste analyses, labeled by result.",
	}, []string{"result"})

	// AnalysisDurationSeconds is end-to-end service time per analysis.
	AnalysisDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ecosnap",
		Subsystem: "analysis",
		Name:      "duration_seconds",
		Help:      "Time to normalize, prompt, call the model and interpret the reply.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
	}, []string{"result"})

	// ModelCallDurationSeconds measures only the external model round-trip, retries included.
	ModelCallDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ecosnap",
		Subsystem: "model",
		Name:      "call_duration_seconds",
		Help:      "Duration of external model calls, labeled by provider and result.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
	}, []string{"provider", "result"})

	// InFlight is the number of analyses currently being processed.
	InFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "ecosnap",
		Subsystem: "analysis",
		Name:      "in_flight",
		Help:      "Current number of analyses in progress.",
	})
)

// Register registers the service metrics with the default Prometheus registry.
// Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			AnalysesTotal,
			AnalysisDurationSeconds,
			ModelCallDurationSeconds,
			InFlight,
		)
	})
}
