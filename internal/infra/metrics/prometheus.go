package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"argus/internal/domain"
)

// Sink exposes pipeline and workflow counters to Prometheus. All increments
// are fire-and-forget; nothing here can fail a case operation.
type Sink struct {
	registry       *prometheus.Registry
	validationRuns *prometheus.CounterVec
	riskLevels     *prometheus.CounterVec
	transitions    *prometheus.CounterVec
	ingests        *prometheus.CounterVec
}

func NewSink() *Sink {
	s := &Sink{
		registry: prometheus.NewRegistry(),
		validationRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "argus",
			Name:      "validation_runs_total",
			Help:      "Validation passes by stage and outcome",
		}, []string{"stage", "outcome"}),
		riskLevels: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "argus",
			Name:      "risk_computations_total",
			Help:      "Risk scoring runs by resulting level",
		}, []string{"level"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "argus",
			Name:      "workflow_transitions_total",
			Help:      "Review workflow attempts by action and outcome",
		}, []string{"action", "outcome"}),
		ingests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "argus",
			Name:      "alert_ingests_total",
			Help:      "Alert ingest attempts by outcome",
		}, []string{"outcome"}),
	}
	s.registry.MustRegister(s.validationRuns, s.riskLevels, s.transitions, s.ingests)
	return s
}

func (s *Sink) IncValidationRun(stage domain.ValidationStage, outcome string) {
	s.validationRuns.WithLabelValues(string(stage), outcome).Inc()
}

func (s *Sink) IncRiskComputation(level domain.RiskLevel) {
	s.riskLevels.WithLabelValues(string(level)).Inc()
}

func (s *Sink) IncTransition(action domain.ReviewAction, outcome string) {
	s.transitions.WithLabelValues(string(action), outcome).Inc()
}

func (s *Sink) IncIngest(outcome string) {
	s.ingests.WithLabelValues(outcome).Inc()
}

// Handler serves the registry for scraping.
func (s *Sink) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}
