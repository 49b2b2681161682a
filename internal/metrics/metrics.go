// Package metrics exposes Prometheus collectors for the Ring API client and
// the watch daemon.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector, registered against one registry.
type Metrics struct {
	registry *prometheus.Registry

	// Tracks the number of outbound API calls to Ring.
	RequestsTotal *prometheus.CounterVec
	// Measures duration of API requests to Ring.
	RequestDuration *prometheus.HistogramVec
	// Tracks history events handled by the watcher, by kind and result.
	EventsTotal *prometheus.CounterVec
	// Counts recordings written to disk.
	RecordingsSaved prometheus.Counter
	// Tracks total errors (aggregated).
	ErrorsTotal *prometheus.CounterVec
	// Gauges the last successful poll time (seconds since epoch).
	LastPollTimestamp prometheus.Gauge
}

// New creates the collectors on a fresh registry that also carries the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ring_api_requests_total",
				Help: "Total number of Ring API requests made (by endpoint and method).",
			},
			[]string{"endpoint", "method", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ring_api_request_duration_seconds",
				Help:    "Duration of Ring API requests in seconds.",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms → ~20s
			},
			[]string{"endpoint", "method"},
		),
		EventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ring_watch_events_total",
				Help: "Total number of history events handled by the watcher.",
			},
			[]string{"kind", "result"}, // result = "published" | "skipped" | "error"
		),
		RecordingsSaved: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ring_watch_recordings_saved_total",
				Help: "Total number of recordings written to the download directory.",
			},
		),
		ErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ring_watch_errors_total",
				Help: "Count of watcher errors by component.",
			},
			[]string{"component", "reason"},
		),
		LastPollTimestamp: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "ring_watch_last_poll_timestamp",
				Help: "Timestamp (unix seconds) of the last successful history poll.",
			},
		),
	}
}

// Registry returns the registry the collectors are registered with.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// IncRequest counts one API request by endpoint, method and status.
func (m *Metrics) IncRequest(endpoint, method, status string) {
	m.RequestsTotal.WithLabelValues(endpoint, method, status).Inc()
}

// ObserveDuration records the time elapsed since start for endpoint and method.
func (m *Metrics) ObserveDuration(start time.Time, endpoint, method string) {
	m.RequestDuration.WithLabelValues(endpoint, method).Observe(time.Since(start).Seconds())
}

// IncEvent counts one history event by kind and how it was handled.
func (m *Metrics) IncEvent(kind, result string) {
	m.EventsTotal.WithLabelValues(kind, result).Inc()
}

// IncError counts an error raised by component.
func (m *Metrics) IncError(component, reason string) {
	m.ErrorsTotal.WithLabelValues(component, reason).Inc()
}

// SetLastPoll records the time of the last completed history poll.
func (m *Metrics) SetLastPoll(t time.Time) {
	m.LastPollTimestamp.Set(float64(t.Unix()))
}

// InstrumentedTransport wraps an http.RoundTripper and records request
// counts and latencies.
type InstrumentedTransport struct {
	Base    http.RoundTripper
	Metrics *Metrics
}

// RoundTrip implements http.RoundTripper with instrumentation.
func (t *InstrumentedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	start := time.Now()
	resp, err := base.RoundTrip(req)

	endpoint := EndpointLabel(req.URL.Path)
	status := "error"
	if err == nil {
		status = strconv.Itoa(resp.StatusCode)
	}
	t.Metrics.IncRequest(endpoint, req.Method, status)
	t.Metrics.ObserveDuration(start, endpoint, req.Method)
	return resp, err
}

// EndpointLabel maps a request path onto a bounded label value. Ding ids are
// collapsed so every recording download shares one series.
func EndpointLabel(path string) string {
	path = strings.Trim(path, "/")
	path = strings.TrimPrefix(path, "clients_api/")

	parts := strings.Split(path, "/")
	switch {
	case path == "":
		return "root"
	case len(parts) == 3 && parts[0] == "dings" && parts[2] == "recording":
		return "dings/recording"
	case path == "session", path == "ring_devices", path == "doorbots/history":
		return path
	default:
		return "other"
	}
}
