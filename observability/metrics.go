// Package observability exposes Prometheus instruments for the orchestrator
// and the HTTP surface.
package observability

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/smallnest/lexgraph/graph"
	"github.com/smallnest/lexgraph/orchestrator"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "lexgraph"

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	Invocations       *prometheus.CounterVec
	RouteDecisions    *prometheus.CounterVec
	MalformedQueries  *prometheus.CounterVec
	ProgressDropped   *prometheus.CounterVec
	HTTPRequests      *prometheus.CounterVec
	InvocationLatency prometheus.Histogram
	NodeLatency       *prometheus.HistogramVec
}

// NewMetrics registers the instruments with reg. A nil reg uses the default
// registerer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		Invocations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invocations_total",
			Help:      "Orchestrator invocations by outcome.",
		}, []string{"outcome"}),
		RouteDecisions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "route_decisions_total",
			Help:      "Routing decisions by router, route and whether the depth ceiling forced them.",
		}, []string{"router", "route", "forced"}),
		MalformedQueries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "malformed_queries_total",
			Help:      "Generated backend queries skipped as malformed, by node.",
		}, []string{"node"}),
		ProgressDropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "progress_dropped_total",
			Help:      "Progress updates dropped by sink.",
		}, []string{"sink"}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		InvocationLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "invocation_duration_seconds",
			Help:      "End to end invocation latency.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80, 160},
		}),
		NodeLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "node_duration_seconds",
			Help:      "State machine node latency by node and result.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"node", "result"}),
	}
}

// RouteDecided implements orchestrator.Observer.
func (m *Metrics) RouteDecided(router string, route orchestrator.Route, forced bool) {
	m.RouteDecisions.WithLabelValues(router, string(route), strconv.FormatBool(forced)).Inc()
}

// MalformedQuery implements orchestrator.Observer.
func (m *Metrics) MalformedQuery(node string) {
	m.MalformedQueries.WithLabelValues(node).Inc()
}

// InvocationDone implements orchestrator.Observer.
func (m *Metrics) InvocationDone(outcome string, elapsed time.Duration) {
	m.Invocations.WithLabelValues(outcome).Inc()
	m.InvocationLatency.Observe(elapsed.Seconds())
}

// DropCounter returns a callback counting drops for sink, suitable for the
// progress OnDrop options.
func (m *Metrics) DropCounter(sink string) func() {
	c := m.ProgressDropped.WithLabelValues(sink)
	return c.Inc
}

// ObserveRequest counts one HTTP response.
func (m *Metrics) ObserveRequest(route string, code int) {
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

// TraceHook feeds node spans into NodeLatency.
func (m *Metrics) TraceHook() graph.TraceHook {
	return graph.TraceHookFunc(func(_ context.Context, span *graph.TraceSpan) {
		switch span.Event {
		case graph.TraceEventNodeEnd:
			m.NodeLatency.WithLabelValues(span.NodeName, "ok").Observe(span.Duration.Seconds())
		case graph.TraceEventNodeError:
			m.NodeLatency.WithLabelValues(span.NodeName, "error").Observe(span.Duration.Seconds())
		}
	})
}

var _ orchestrator.Observer = (*Metrics)(nil)

// MetricsHandler serves the metrics in g. A nil g serves the default
// gatherer.
func MetricsHandler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
