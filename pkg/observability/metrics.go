package observability

import (
	"context"
	"net/http"

	"github.com/gnueaj/SAE-vis-sub000/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors fed by engine lifecycle events.
type Metrics struct {
	gatherer prometheus.Gatherer

	Stages        *prometheus.CounterVec
	StageChildren *prometheus.HistogramVec
	Fetches       *prometheus.CounterVec
	FetchDuration *prometheus.HistogramVec
	Integrity     *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
// It panics if any collector is already registered, like prometheus.MustRegister.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		gatherer: reg,
		Stages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "saevis_stage_mutations_total",
				Help: "Total number of tree mutations by event type and rule type",
			},
			[]string{"event", "rule_type"},
		),
		StageChildren: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "saevis_stage_children",
				Help:    "Number of children created by a stage",
				Buckets: []float64{1, 2, 3, 4, 6, 8, 12, 16},
			},
			[]string{"rule_type"},
		),
		Fetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "saevis_provider_fetches_total",
				Help: "Total number of feature-group fetches by outcome",
			},
			[]string{"metric", "outcome"},
		),
		FetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "saevis_provider_fetch_duration_seconds",
				Help: "Duration of feature-group fetches",
			},
			[]string{"metric"},
		),
		Integrity: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "saevis_integrity_warnings_total",
				Help: "Total number of non-fatal data inconsistencies by kind",
			},
			[]string{"kind"},
		),
	}
	reg.MustRegister(m.Stages, m.StageChildren, m.Fetches, m.FetchDuration, m.Integrity)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Hooks returns lifecycle hooks that record every event into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	stage := func(_ context.Context, e *domain.StageEvent) {
		rt := string(e.RuleType)
		m.Stages.WithLabelValues(string(e.Type), rt).Inc()
		if e.Type != domain.EventStageRemoved {
			m.StageChildren.WithLabelValues(rt).Observe(float64(e.Children))
		}
	}
	return domain.LifecycleHooks{
		OnStageAdded:        stage,
		OnStageRemoved:      stage,
		OnThresholdsUpdated: stage,
		OnFetch: func(_ context.Context, e *domain.FetchEvent) {
			outcome := "ok"
			if e.Err != nil {
				outcome = "error"
			}
			m.Fetches.WithLabelValues(e.Metric, outcome).Inc()
			m.FetchDuration.WithLabelValues(e.Metric).Observe(e.Duration.Seconds())
		},
		OnIntegrityWarning: func(_ context.Context, e *domain.IntegrityEvent) {
			m.Integrity.WithLabelValues(string(e.Kind)).Inc()
		},
	}
}
