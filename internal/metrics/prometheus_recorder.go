package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	transformDuration  *prom.HistogramVec
	transformOutcomes  *prom.CounterVec
	itemsSkipped       *prom.CounterVec
	workspacesOpened   prom.Counter
	workspacesDisposed prom.Counter
}

// NewPrometheusRecorder constructs and registers Prometheus metrics on reg.
// A nil reg gets a fresh private registry.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		transformDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "quire",
			Name:      "transform_duration_seconds",
			Help:      "Duration of transform calls by kind",
			Buckets:   prom.DefBuckets,
		}, []string{"kind"}),
		transformOutcomes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "quire",
			Name:      "transform_outcomes_total",
			Help:      "Transform outcomes by kind and result shape",
		}, []string{"kind", "outcome"}),
		itemsSkipped: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "quire",
			Name:      "items_skipped_total",
			Help:      "Batch items omitted after a per-item failure",
		}, []string{"kind"}),
		workspacesOpened: prom.NewCounter(prom.CounterOpts{
			Namespace: "quire",
			Name:      "workspaces_opened_total",
			Help:      "Temporary workspaces created",
		}),
		workspacesDisposed: prom.NewCounter(prom.CounterOpts{
			Namespace: "quire",
			Name:      "workspaces_disposed_total",
			Help:      "Temporary workspaces removed",
		}),
	}
	reg.MustRegister(pr.transformDuration, pr.transformOutcomes, pr.itemsSkipped, pr.workspacesOpened, pr.workspacesDisposed)
	return pr
}

func (p *PrometheusRecorder) ObserveTransformDuration(kind string, d time.Duration) {
	if p == nil {
		return
	}
	p.transformDuration.WithLabelValues(kind).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncTransformOutcome(kind string, outcome Outcome) {
	if p == nil {
		return
	}
	p.transformOutcomes.WithLabelValues(kind, string(outcome)).Inc()
}

func (p *PrometheusRecorder) IncItemSkipped(kind string) {
	if p == nil {
		return
	}
	p.itemsSkipped.WithLabelValues(kind).Inc()
}

func (p *PrometheusRecorder) IncWorkspaceOpened() {
	if p == nil {
		return
	}
	p.workspacesOpened.Inc()
}

func (p *PrometheusRecorder) IncWorkspaceDisposed() {
	if p == nil {
		return
	}
	p.workspacesDisposed.Inc()
}

// HTTPHandler returns an http.Handler that serves Prometheus metrics for the provided registry.
func HTTPHandler(reg *prom.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
