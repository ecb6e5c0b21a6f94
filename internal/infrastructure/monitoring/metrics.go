package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Stream metrics
	StreamsActive  prometheus.Gauge
	StreamsTotal   *prometheus.CounterVec
	StreamBytes    *prometheus.CounterVec
	StreamDuration prometheus.Histogram
	Boundaries     prometheus.Counter
	StreamErrors   *prometheus.CounterVec

	// Injection metrics
	Injections     *prometheus.CounterVec
	InjectRejected *prometheus.CounterVec

	// Stage timings (upstream fetch, rule matching)
	StageDuration *prometheus.HistogramVec

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	registry  *prometheus.Registry
	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot MetricsSnapshot
	mu       sync.RWMutex
}

// MetricsSnapshot holds current metric values for the JSON API
type MetricsSnapshot struct {
	TotalRequests int64   `json:"total_requests"`
	TotalErrors   int64   `json:"total_errors"`
	ActiveStreams int64   `json:"active_streams"`
	TotalStreams  int64   `json:"total_streams"`
	Boundaries    int64   `json:"boundaries"`
	Injections    int64   `json:"injections"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// NewMetrics registers all metrics with reg. A nil reg uses the default
// Prometheus registry; tests pass their own so collectors can be registered
// more than once per process.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	var registerer prometheus.Registerer = prometheus.DefaultRegisterer
	if reg != nil {
		registerer = reg
	}
	factory := promauto.With(registerer)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "splice_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "splice_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"method", "route"},
		),
		ResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "splice_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "route"},
		),

		// Stream metrics
		StreamsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "splice_streams_active",
				Help: "Number of responses currently being proxied",
			},
		),
		StreamsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "splice_streams_total",
				Help: "Total number of proxied responses",
			},
			[]string{"kind"},
		),
		StreamBytes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "splice_stream_bytes_total",
				Help: "Bytes read from upstream and written to clients",
			},
			[]string{"direction"},
		),
		StreamDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "splice_stream_duration_seconds",
				Help:    "Time from first upstream byte to stream close",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
		),
		Boundaries: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "splice_boundaries_total",
				Help: "Direct-child-of-body boundaries detected",
			},
		),
		StreamErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "splice_stream_errors_total",
				Help: "Streams that ended with an error",
			},
			[]string{"stage"},
		),

		// Injection metrics
		Injections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "splice_injections_total",
				Help: "Fragments written into a stream",
			},
			[]string{"source"},
		),
		InjectRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "splice_inject_rejected_total",
				Help: "Fragments refused before queueing",
			},
			[]string{"reason"},
		),

		StageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "splice_stage_duration_seconds",
				Help:    "Duration of pipeline stages in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"stage", "status"},
		),

		// WebSocket metrics
		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "splice_ws_connections",
				Help: "Number of active debug WebSocket connections",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "splice_ws_messages_total",
				Help: "Total number of WebSocket messages",
			},
			[]string{"direction", "type"},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "splice_uptime_seconds",
			Help: "Process uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, route, status string, duration time.Duration, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, route, status).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
	m.ResponseSize.WithLabelValues(method, route).Observe(float64(respSize))

	m.mu.Lock()
	m.snapshot.TotalRequests++
	if status != "" && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// StreamOpened records the start of a proxied response. kind is "html" or
// "passthrough".
func (m *Metrics) StreamOpened(kind string) {
	m.StreamsActive.Inc()
	m.StreamsTotal.WithLabelValues(kind).Inc()

	m.mu.Lock()
	m.snapshot.ActiveStreams++
	m.snapshot.TotalStreams++
	m.mu.Unlock()
}

// StreamClosed records the end of a proxied response.
func (m *Metrics) StreamClosed(duration time.Duration, bytesIn, bytesOut int64) {
	m.StreamsActive.Dec()
	m.StreamDuration.Observe(duration.Seconds())
	m.StreamBytes.WithLabelValues("in").Add(float64(bytesIn))
	m.StreamBytes.WithLabelValues("out").Add(float64(bytesOut))

	m.mu.Lock()
	m.snapshot.ActiveStreams--
	m.mu.Unlock()
}

// RecordStreamError counts a stream that failed at stage.
func (m *Metrics) RecordStreamError(stage string) {
	m.StreamErrors.WithLabelValues(stage).Inc()
}

// RecordBoundary counts one direct-child boundary.
func (m *Metrics) RecordBoundary() {
	m.RecordBoundaries(1)
}

// RecordBoundaries counts n boundaries at once, typically the total of a
// finished stream.
func (m *Metrics) RecordBoundaries(n int) {
	if n <= 0 {
		return
	}
	m.Boundaries.Add(float64(n))

	m.mu.Lock()
	m.snapshot.Boundaries += int64(n)
	m.mu.Unlock()
}

// RecordInjection counts a fragment written into a stream.
func (m *Metrics) RecordInjection(source string) {
	m.Injections.WithLabelValues(source).Inc()

	m.mu.Lock()
	m.snapshot.Injections++
	m.mu.Unlock()
}

// RecordInjectRejected counts a fragment refused for reason.
func (m *Metrics) RecordInjectRejected(reason string) {
	m.InjectRejected.WithLabelValues(reason).Inc()
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	m.WSConnections.Inc()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	m.WSConnections.Dec()
}

// Snapshot returns the current values tracked for the JSON API.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	s := m.snapshot
	m.mu.RUnlock()
	s.UptimeSeconds = time.Since(m.startTime).Seconds()
	return s
}
