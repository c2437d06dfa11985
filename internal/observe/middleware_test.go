package observe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func withTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	orig := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(orig) })
	return exp
}

func serve(h http.Handler, path string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestMiddleware_CorrelationID(t *testing.T) {
	m, _ := newTestMetrics(t)
	withTestTracer(t)

	var seen string
	h := Middleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = CorrelationID(r.Context())
	}))

	rec := serve(h, "/readyz", nil)
	if len(seen) != 32 {
		t.Fatalf("correlation ID = %q, want 32 hex chars", seen)
	}
	if got := rec.Header().Get("X-Correlation-ID"); got != seen {
		t.Errorf("X-Correlation-ID = %q, want %q", got, seen)
	}
}

func TestMiddleware_ContinuesIncomingTrace(t *testing.T) {
	m, _ := newTestMetrics(t)
	withTestTracer(t)

	const traceID = "4bf92f3577b34da6a3ce929d0e0e4736"
	var seen string
	h := Middleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = CorrelationID(r.Context())
	}))

	rec := serve(h, "/healthz", http.Header{"Traceparent": {"00-" + traceID + "-00f067aa0ba902b7-01"}})
	if seen != traceID {
		t.Errorf("correlation ID = %q, want %q", seen, traceID)
	}
	if got := rec.Header().Get("X-Correlation-ID"); got != traceID {
		t.Errorf("X-Correlation-ID = %q, want %q", got, traceID)
	}
}

func TestMiddleware_SpanAndStatus(t *testing.T) {
	m, _ := newTestMetrics(t)
	exp := withTestTracer(t)

	h := Middleware(m)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	rec := serve(h, "/readyz", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(spans))
	}
	if spans[0].Name != "HTTP GET /readyz" {
		t.Errorf("span name = %q, want %q", spans[0].Name, "HTTP GET /readyz")
	}
	var status int64
	for _, a := range spans[0].Attributes {
		if a.Key == "http.response.status_code" {
			status = a.Value.AsInt64()
		}
	}
	if status != http.StatusServiceUnavailable {
		t.Errorf("span status attribute = %d, want %d", status, http.StatusServiceUnavailable)
	}
}

func TestMiddleware_RecordsDuration(t *testing.T) {
	m, reader := newTestMetrics(t)
	withTestTracer(t)

	h := Middleware(m)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	serve(h, "/metrics", nil)

	rm := collect(t, reader)
	met := findMetric(rm, "voicetutor.http.request.duration")
	if met == nil {
		t.Fatal("metric not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok || len(hist.DataPoints) == 0 {
		t.Fatal("metric has no histogram data points")
	}
	dp := hist.DataPoints[0]
	if dp.Count != 1 {
		t.Errorf("sample count = %d, want 1", dp.Count)
	}
	if v, ok := dp.Attributes.Value("path"); !ok || v.AsString() != "/metrics" {
		t.Errorf("path attribute = %v, want /metrics", v.AsString())
	}
}
