package metrics

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/csmith/tlsguard/enforce"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder provides methods to track metrics for requests
type Recorder struct {
	registry         *prometheus.Registry
	decisionCounter  *prometheus.CounterVec
	upstreamErrCount prometheus.Counter
}

// NewRecorder creates a new Recorder with its own registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),

		decisionCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tlsguard_decision_total",
			Help: "The total number of requests checked, by outcome",
		}, []string{"outcome", "status", "method"}),

		upstreamErrCount: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tlsguard_upstream_error_total",
			Help: "The total number of requests that could not be passed on to the upstream",
		}),
	}
	r.registerMetrics()
	return r
}

// registerMetrics registers the various metrics we will record with the prometheus registry
func (r *Recorder) registerMetrics() {
	if err := r.registry.Register(r.decisionCounter); err != nil {
		slog.Error("Failed to register decision counter", "error", err)
	}

	if err := r.registry.Register(r.upstreamErrCount); err != nil {
		slog.Error("Failed to register upstream error counter", "error", err)
	}

	// Prometheus-supplied general process metrics
	if err := r.registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		slog.Error("Failed to register process collector", "error", err)
	}

	if err := r.registry.Register(collectors.NewGoCollector()); err != nil {
		slog.Error("Failed to register go collector", "error", err)
	}
}

// Handler returns a HTTP handler that will provide prometheus metrics.
func (r *Recorder) Handler() http.Handler {
	return promhttp.InstrumentMetricHandler(
		r.registry,
		promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{}),
	)
}

// Observe records the outcome of a single decision. It satisfies the signature of enforce.Options.Observer.
func (r *Recorder) Observe(req *http.Request, outcome enforce.Outcome) {
	status := "none"
	if outcome.Kind != enforce.Proceed {
		status = strconv.Itoa(outcome.Status)
	}

	r.decisionCounter.With(prometheus.Labels{
		"outcome": outcome.Kind.String(),
		"status":  status,
		"method":  method(req.Method),
	}).Inc()
}

// TrackBadGateway wraps the ErrorHandler field of httputil.ReverseProxy, counting each failure.
func (r *Recorder) TrackBadGateway(fn func(http.ResponseWriter, *http.Request, error)) func(http.ResponseWriter, *http.Request, error) {
	return func(writer http.ResponseWriter, req *http.Request, err error) {
		r.upstreamErrCount.Inc()
		fn(writer, req, err)
	}
}

// method limits the method label to well-known values, so clients can't create unbounded series.
func method(m string) string {
	switch m {
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut, http.MethodPatch,
		http.MethodDelete, http.MethodConnect, http.MethodOptions, http.MethodTrace:
		return m
	default:
		return "other"
	}
}
