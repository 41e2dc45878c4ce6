// Package metrics exposes Prometheus collectors for the calendar.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"slidecal/internal/carousel"
)

// Metrics groups every collector registered by the application. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	settles      *prometheus.CounterVec
	renders      *prometheus.CounterVec
	renderTime   *prometheus.HistogramVec
	fetchErrors  *prometheus.CounterVec
	eventsLoaded prometheus.Gauge
}

// New registers the collectors on a fresh registry, together with the Go
// and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		settles: f.NewCounterVec(prometheus.CounterOpts{
			Name: "slidecal_carousel_settles_total",
			Help: "Carousel transitions that settled, by outcome",
		}, []string{"outcome"}),
		renders: f.NewCounterVec(prometheus.CounterOpts{
			Name: "slidecal_calendar_renders_total",
			Help: "Calendar strips rendered, by view",
		}, []string{"view"}),
		renderTime: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "slidecal_calendar_render_seconds",
			Help:    "Time spent building and rendering a calendar strip",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		}, []string{"view"}),
		fetchErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "slidecal_source_fetch_errors_total",
			Help: "Event source loads that failed, by source id",
		}, []string{"source"}),
		eventsLoaded: f.NewGauge(prometheus.GaugeOpts{
			Name: "slidecal_events_loaded",
			Help: "Number of events in the last loaded list",
		}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry is exposed for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Settled(o carousel.Outcome) {
	if m == nil {
		return
	}
	m.settles.WithLabelValues(o.String()).Inc()
}

// Rendered records one strip render for view and how long it took.
func (m *Metrics) Rendered(view string, took time.Duration) {
	if m == nil {
		return
	}
	m.renders.WithLabelValues(view).Inc()
	m.renderTime.WithLabelValues(view).Observe(took.Seconds())
}

func (m *Metrics) FetchFailed(sourceID string) {
	if m == nil {
		return
	}
	m.fetchErrors.WithLabelValues(sourceID).Inc()
}

func (m *Metrics) EventsLoaded(n int) {
	if m == nil {
		return
	}
	m.eventsLoaded.Set(float64(n))
}
