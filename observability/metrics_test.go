package observability

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallnest/lexgraph/graph"
	"github.com/smallnest/lexgraph/orchestrator"
)

func TestMetrics_Observer(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("test", reg)

	m.RouteDecided("router", orchestrator.RouteSearchGraph, false)
	m.RouteDecided("router", orchestrator.RouteAnswerFinal, true)
	m.RouteDecided("router", orchestrator.RouteAnswerFinal, true)
	m.MalformedQuery("search_graph")
	m.InvocationDone("ok", 2*time.Second)
	m.InvocationDone("timeout", time.Minute)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RouteDecisions.WithLabelValues("router", "search_graph", "false")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RouteDecisions.WithLabelValues("router", "answer_final", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MalformedQueries.WithLabelValues("search_graph")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Invocations.WithLabelValues("timeout")))
	assert.Equal(t, uint64(2), sampleCount(t, reg, "test_invocation_duration_seconds"))
}

func sampleCount(t *testing.T, reg *prometheus.Registry, name string) uint64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	var n uint64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			n += metric.GetHistogram().GetSampleCount()
		}
	}
	return n
}

func TestMetrics_DropCounterAndRequests(t *testing.T) {
	m := NewMetrics("test", prometheus.NewRegistry())

	drop := m.DropCounter("hub")
	drop()
	drop()
	m.ObserveRequest("chat", http.StatusOK)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ProgressDropped.WithLabelValues("hub")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("chat", "200")))
}

func TestMetrics_TraceHook(t *testing.T) {
	m := NewMetrics("test", prometheus.NewRegistry())
	tracer := graph.NewTracer(m.TraceHook())

	ctx := context.Background()
	ok := tracer.StartSpan(ctx, graph.TraceEventNodeStart, "router")
	tracer.EndSpan(ctx, ok, nil)
	failed := tracer.StartSpan(ctx, graph.TraceEventNodeStart, "answer")
	tracer.EndSpan(ctx, failed, assert.AnError)
	tracer.TraceEdgeTraversal(ctx, "router", "answer")

	assert.Equal(t, 2, testutil.CollectAndCount(m.NodeLatency))
}

func TestMetricsHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("test", reg)
	m.InvocationDone("ok", time.Second)

	srv := httptest.NewServer(MetricsHandler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `test_invocations_total{outcome="ok"} 1`)
}

func TestNewMetrics_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics("dup", reg)
	assert.Panics(t, func() { NewMetrics("dup", reg) })
}
