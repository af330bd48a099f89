package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for sign-in evaluation and recording.
type Metrics struct {
	// Evaluations by detector reason
	Evaluations *prometheus.CounterVec

	// Logins flagged as impossible travel
	Flagged prometheus.Counter

	// Highest implied speed per evaluation that had a comparison
	ImpliedSpeed prometheus.Histogram

	EvaluateLatency prometheus.Histogram

	// Records appended by sign-in type and outcome
	RecordsStored *prometheus.CounterVec
}

// New registers the sign-in metrics with reg. Pass prometheus.DefaultRegisterer
// in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Evaluations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "signinguard_evaluations_total",
			Help: "Impossible-travel evaluations by outcome reason",
		}, []string{"reason"}),

		Flagged: factory.NewCounter(prometheus.CounterOpts{
			Name: "signinguard_impossible_travel_flagged_total",
			Help: "Sign-ins flagged as impossible travel",
		}),

		ImpliedSpeed: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "signinguard_implied_speed_kmh",
			Help:    "Highest finite implied travel speed per evaluation in km/h",
			Buckets: []float64{10, 40, 80, 200, 500, 900, 2000, 5000, 20000},
		}),

		EvaluateLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "signinguard_evaluate_duration_seconds",
			Help:    "Duration of an impossible-travel evaluation including store and locator calls",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		}),

		RecordsStored: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "signinguard_signins_recorded_total",
			Help: "Sign-in records appended by type and outcome",
		}, []string{"type", "succeeded"}),
	}
}

func (m *Metrics) ObserveEvaluation(reason string, flagged bool, d time.Duration) {
	if m == nil {
		return
	}
	m.Evaluations.WithLabelValues(reason).Inc()
	if flagged {
		m.Flagged.Inc()
	}
	m.EvaluateLatency.Observe(d.Seconds())
}

func (m *Metrics) ObserveImpliedSpeed(kmh float64) {
	if m != nil {
		m.ImpliedSpeed.Observe(kmh)
	}
}

func (m *Metrics) IncrementRecorded(signInType string, succeeded bool) {
	if m == nil {
		return
	}
	label := "false"
	if succeeded {
		label = "true"
	}
	m.RecordsStored.WithLabelValues(signInType, label).Inc()
}
