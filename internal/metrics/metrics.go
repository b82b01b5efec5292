// Package metrics exposes scheduler and engine events as Prometheus metrics.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/custodia-labs/arbiter/internal/core/domain"
	"github.com/custodia-labs/arbiter/internal/core/ports/driven"
)

const namespace = "arbiter"

// Ensure Recorder implements the interface.
var _ driven.EventSink = (*Recorder)(nil)

// Recorder counts published events on its own registry.
type Recorder struct {
	registry *prometheus.Registry

	events  *prometheus.CounterVec
	firings *prometheus.CounterVec
	step    prometheus.Gauge
}

// NewRecorder creates a recorder with a fresh registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Scheduler and engine events by kind.",
		}, []string{"kind"}),
		firings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "firings_total",
			Help:      "Task firings by target and outcome.",
		}, []string{"target", "outcome"}),
		step: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_event_step",
			Help:      "Step of the most recent event.",
		}),
	}
	r.registry.MustRegister(r.events, r.firings, r.step)
	return r
}

// Publish updates the counters for event.
func (r *Recorder) Publish(_ context.Context, event domain.Event) {
	r.events.WithLabelValues(string(event.Kind)).Inc()
	r.step.Set(float64(event.Step))

	switch event.Kind {
	case domain.EventFired:
		r.firings.WithLabelValues(string(event.Address), "success").Inc()
	case domain.EventFailed:
		r.firings.WithLabelValues(string(event.Address), "failure").Inc()
	}
}

// Registry returns the registry holding the recorder's collectors.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
