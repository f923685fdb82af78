// Package metrics exposes engine activity to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"go-lightsynth/note"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the light engine.
// It satisfies engine.Observer.
type Metrics struct {
	registry        *prometheus.Registry
	eventsTotal     *prometheus.CounterVec
	unmatchedTotal  prometheus.Counter
	droppedTotal    prometheus.Counter
	panicsTotal     prometheus.Counter
	tickDuration    prometheus.Histogram
	activeEnvelopes prometheus.Gauge
	pendingEvents   prometheus.Gauge
	devices         prometheus.Gauge
	requestsTotal   prometheus.Counter
	errorsTotal     prometheus.Counter
}

// New creates and registers the engine metrics
func New() *Metrics {
	registry := prometheus.NewRegistry()

	eventsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lightsynth_events_total",
		Help: "Note events applied by at least one instrument",
	}, []string{"kind"})
	unmatchedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lightsynth_events_unmatched_total",
		Help: "Note-offs without a binding and note-ons that chose no lights",
	})
	droppedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lightsynth_events_dropped_total",
		Help: "Pending events discarded by panic",
	})
	panicsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lightsynth_panics_total",
		Help: "All-off requests applied",
	})
	tickDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "lightsynth_tick_duration_seconds",
		Help:    "Time spent computing one frame",
		Buckets: prometheus.ExponentialBuckets(0.00001, 4, 8),
	})
	activeEnvelopes := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "lightsynth_active_envelopes",
		Help: "Envelopes not yet idle after the last tick",
	})
	pendingEvents := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "lightsynth_pending_events",
		Help: "Events queued for a future tick",
	})
	devices := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "lightsynth_midi_devices",
		Help: "Connected MIDI devices",
	})
	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lightsynth_http_requests_total",
		Help: "Total number of HTTP requests received",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lightsynth_http_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})

	registry.MustRegister(
		eventsTotal,
		unmatchedTotal,
		droppedTotal,
		panicsTotal,
		tickDuration,
		activeEnvelopes,
		pendingEvents,
		devices,
		requestsTotal,
		errorsTotal,
	)

	return &Metrics{
		registry:        registry,
		eventsTotal:     eventsTotal,
		unmatchedTotal:  unmatchedTotal,
		droppedTotal:    droppedTotal,
		panicsTotal:     panicsTotal,
		tickDuration:    tickDuration,
		activeEnvelopes: activeEnvelopes,
		pendingEvents:   pendingEvents,
		devices:         devices,
		requestsTotal:   requestsTotal,
		errorsTotal:     errorsTotal,
	}
}

// EventApplied counts an event by kind
func (m *Metrics) EventApplied(kind note.Kind) {
	m.eventsTotal.WithLabelValues(kind.String()).Inc()
}

// EventUnmatched counts an event no instrument could use
func (m *Metrics) EventUnmatched() {
	m.unmatchedTotal.Inc()
}

// Dropped counts events thrown away by panic
func (m *Metrics) Dropped(n int) {
	m.droppedTotal.Add(float64(n))
}

// Ticked records one frame's compute time and the envelopes still running
func (m *Metrics) Ticked(took time.Duration, active int) {
	m.tickDuration.Observe(took.Seconds())
	m.activeEnvelopes.Set(float64(active))
}

// Panicked counts an applied all-off
func (m *Metrics) Panicked() {
	m.panicsTotal.Inc()
}

// SetPending sets the queued events gauge
func (m *Metrics) SetPending(n int) {
	m.pendingEvents.Set(float64(n))
}

// SetDevices sets the connected MIDI devices gauge
func (m *Metrics) SetDevices(n int) {
	m.devices.Set(float64(n))
}

// IncRequests increments the total request counter
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh sampled gauges.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		h.ServeHTTP(w, r)
	})
}
