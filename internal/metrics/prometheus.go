// Package metrics exposes discovery run counters in Prometheus format.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/muurk/onvif-discover/internal/discovery"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// Namespace for all onvif-discover metrics
	namespace = "onvif_discover"

	subsystemRun   = "run"
	subsystemProbe = "probe"
	subsystemResp  = "response"
	subsystemHTTP  = "http"
	subsystemFeed  = "feed"
)

// Metrics holds the Prometheus collectors and implements discovery.Observer.
type Metrics struct {
	runsTotal     *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	activeRuns    prometheus.Gauge
	sockets       *prometheus.GaugeVec
	lastDevices   *prometheus.GaugeVec
	probesSent    *prometheus.CounterVec
	probeFailures *prometheus.CounterVec
	responses     *prometheus.CounterVec
	responseBytes *prometheus.HistogramVec
	rejected      *prometheus.CounterVec
	devices       *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	feedClients  prometheus.Gauge

	registry *prometheus.Registry
}

var _ discovery.Observer = (*Metrics)(nil)

// New creates a Metrics instance backed by its own registry, with the
// standard Go and process collectors registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{registry: registry}

	m.initRunMetrics()
	m.initResponseMetrics()
	m.initHTTPMetrics()

	registry.MustRegister(
		m.runsTotal, m.runDuration, m.activeRuns, m.sockets, m.lastDevices,
		m.probesSent, m.probeFailures,
		m.responses, m.responseBytes, m.rejected, m.devices,
		m.httpRequests, m.httpDuration, m.feedClients,
	)
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return m
}

func (m *Metrics) initRunMetrics() {
	m.runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemRun,
			Name:      "total",
			Help:      "Total number of completed discovery runs by mode",
		},
		[]string{"mode"},
	)

	m.runDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemRun,
			Name:      "duration_seconds",
			Help:      "Wall time of discovery runs in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"mode"},
	)

	m.activeRuns = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemRun,
			Name:      "active",
			Help:      "Number of discovery runs in progress",
		},
	)

	m.sockets = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemRun,
			Name:      "sockets",
			Help:      "Sockets opened by the most recent run",
		},
		[]string{"mode"},
	)

	m.lastDevices = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemRun,
			Name:      "devices",
			Help:      "Devices found by the most recent run",
		},
		[]string{"mode"},
	)

	m.probesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemProbe,
			Name:      "sent_total",
			Help:      "Probes handed to the network",
		},
		[]string{"mode"},
	)

	m.probeFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemProbe,
			Name:      "failures_total",
			Help:      "Probes that could not be sent",
		},
		[]string{"mode"},
	)
}

func (m *Metrics) initResponseMetrics() {
	m.responses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemResp,
			Name:      "received_total",
			Help:      "Datagrams received during runs",
		},
		[]string{"mode"},
	)

	m.responseBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemResp,
			Name:      "size_bytes",
			Help:      "Size of received datagrams",
			Buckets:   prometheus.ExponentialBuckets(64, 2, 8),
		},
		[]string{"mode"},
	)

	m.rejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemResp,
			Name:      "rejected_total",
			Help:      "Datagrams that failed validation",
		},
		[]string{"mode"},
	)

	m.devices = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemResp,
			Name:      "devices_total",
			Help:      "Distinct devices added to run results",
		},
		[]string{"mode"},
	)
}

func (m *Metrics) initHTTPMetrics() {
	m.httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemHTTP,
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	m.httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemHTTP,
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	m.feedClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemFeed,
			Name:      "clients",
			Help:      "Connected event feed clients",
		},
	)
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RunStarted implements discovery.Observer.
func (m *Metrics) RunStarted(mode discovery.Mode, sockets int) {
	m.activeRuns.Inc()
	m.sockets.WithLabelValues(mode.String()).Set(float64(sockets))
}

// ProbeSent implements discovery.Observer.
func (m *Metrics) ProbeSent(mode discovery.Mode, _ string) {
	m.probesSent.WithLabelValues(mode.String()).Inc()
}

// ProbeFailed implements discovery.Observer.
func (m *Metrics) ProbeFailed(mode discovery.Mode, _ string, _ error) {
	m.probeFailures.WithLabelValues(mode.String()).Inc()
}

// ResponseReceived implements discovery.Observer.
func (m *Metrics) ResponseReceived(mode discovery.Mode, size int) {
	m.responses.WithLabelValues(mode.String()).Inc()
	m.responseBytes.WithLabelValues(mode.String()).Observe(float64(size))
}

// ResponseRejected implements discovery.Observer.
func (m *Metrics) ResponseRejected(mode discovery.Mode) {
	m.rejected.WithLabelValues(mode.String()).Inc()
}

// DeviceDiscovered implements discovery.Observer.
func (m *Metrics) DeviceDiscovered(mode discovery.Mode) {
	m.devices.WithLabelValues(mode.String()).Inc()
}

// RunCompleted implements discovery.Observer.
func (m *Metrics) RunCompleted(mode discovery.Mode, devices int, elapsed time.Duration) {
	m.activeRuns.Dec()
	m.runsTotal.WithLabelValues(mode.String()).Inc()
	m.runDuration.WithLabelValues(mode.String()).Observe(elapsed.Seconds())
	m.lastDevices.WithLabelValues(mode.String()).Set(float64(devices))
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// FeedConnected adjusts the connected feed client gauge by delta.
func (m *Metrics) FeedConnected(delta int) {
	m.feedClients.Add(float64(delta))
}
