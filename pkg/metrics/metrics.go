// Package metrics instruments tunnel lifecycle and data-transfer events
// with Prometheus counters and histograms, exposing them for local
// scraping rather than pushing them anywhere.
package metrics

import (
	"net/http"
	"time"

	"github.com/docker/go-units"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Tracker owns one Prometheus registry's worth of tunnel metrics. It is
// purely passive: callers feed it observations and it exposes them for
// scraping, with no outbound network activity of its own.
type Tracker struct {
	registry *prometheus.Registry

	connectsTotal *prometheus.CounterVec
	connectErrors *prometheus.CounterVec
	callsTotal    *prometheus.CounterVec
	callErrors    *prometheus.CounterVec
	callDuration  *prometheus.HistogramVec
	bytesSent     *prometheus.CounterVec
	bytesReceived *prometheus.CounterVec
	importsTotal  *prometheus.CounterVec
	importMissing *prometheus.CounterVec
	queueDepth    *prometheus.GaugeVec
}

// NewTracker builds a Tracker with its own private Prometheus registry, so
// multiple Trackers (e.g. in tests) never collide on global collector
// registration the way a naive package-level prometheus.MustRegister
// would.
func NewTracker() *Tracker {
	reg := prometheus.NewRegistry()

	t := &Tracker{
		registry: reg,
		connectsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tether_connects_total",
			Help: "Total tunnel Connect attempts, by host.",
		}, []string{"host"}),
		connectErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tether_connect_errors_total",
			Help: "Total tunnel Connect attempts that failed, by host.",
		}, []string{"host"}),
		callsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tether_calls_total",
			Help: "Total CALL operations issued, by host and callable.",
		}, []string{"host", "callable"}),
		callErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tether_call_errors_total",
			Help: "Total CALL operations that returned an exception or transport error.",
		}, []string{"host", "callable"}),
		callDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tether_call_duration_seconds",
			Help:    "CALL round-trip latency, by host and callable.",
			Buckets: prometheus.DefBuckets,
		}, []string{"host", "callable"}),
		bytesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tether_bytes_sent_total",
			Help: "Total bytes written to remote hosts via PUT.",
		}, []string{"host"}),
		bytesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tether_bytes_received_total",
			Help: "Total bytes read from remote hosts via FETCH.",
		}, []string{"host"}),
		importsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tether_imports_total",
			Help: "Total IMP asset requests served, by host.",
		}, []string{"host"}),
		importMissing: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tether_import_misses_total",
			Help: "Total IMP asset requests that resolved to non-existence.",
		}, []string{"host"}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tether_queue_depth",
			Help: "Current number of pending+running operations in a Queue lane.",
		}, []string{"host"}),
	}

	reg.MustRegister(
		t.connectsTotal, t.connectErrors,
		t.callsTotal, t.callErrors, t.callDuration,
		t.bytesSent, t.bytesReceived,
		t.importsTotal, t.importMissing,
		t.queueDepth,
	)
	return t
}

// ObserveConnect records the outcome of a Connect attempt against host.
func (t *Tracker) ObserveConnect(host string, err error) {
	t.connectsTotal.WithLabelValues(host).Inc()
	if err != nil {
		t.connectErrors.WithLabelValues(host).Inc()
	}
}

// ObserveCall records a completed CALL's outcome and latency.
func (t *Tracker) ObserveCall(host, callable string, dur time.Duration, err error) {
	t.callsTotal.WithLabelValues(host, callable).Inc()
	t.callDuration.WithLabelValues(host, callable).Observe(dur.Seconds())
	if err != nil {
		t.callErrors.WithLabelValues(host, callable).Inc()
	}
}

// ObserveBytesSent records n bytes written to host via PUT. The returned
// human-readable size keeps debug log lines for large transfers readable.
func (t *Tracker) ObserveBytesSent(host string, n int) string {
	t.bytesSent.WithLabelValues(host).Add(float64(n))
	return units.HumanSize(float64(n))
}

// ObserveBytesReceived records n bytes read from host via FETCH.
func (t *Tracker) ObserveBytesReceived(host string, n int) string {
	t.bytesReceived.WithLabelValues(host).Add(float64(n))
	return units.HumanSize(float64(n))
}

// ObserveImport records one IMP request served for host, noting whether
// the asset existed.
func (t *Tracker) ObserveImport(host string, existed bool) {
	t.importsTotal.WithLabelValues(host).Inc()
	if !existed {
		t.importMissing.WithLabelValues(host).Inc()
	}
}

// SetQueueDepth publishes the current depth of host's Queue lane.
func (t *Tracker) SetQueueDepth(host string, depth int) {
	t.queueDepth.WithLabelValues(host).Set(float64(depth))
}

// Handler returns an http.Handler serving this Tracker's metrics in the
// Prometheus exposition format, for mounting at /metrics.
func (t *Tracker) Handler() http.Handler {
	return promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{})
}

// ListenAndServe starts a dedicated metrics HTTP server on addr, in a
// background goroutine, the way churn.startMetricsEndpoint does for a
// standalone deployment that doesn't already expose Prometheus elsewhere.
func (t *Tracker) ListenAndServe(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", t.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		_ = server.ListenAndServe()
	}()
}
