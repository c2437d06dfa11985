// Package observe provides the tutor's observability primitives:
// OpenTelemetry metrics and tracing, context-aware structured logging, and
// HTTP middleware for the ops server.
//
// Metrics are recorded through the OpenTelemetry Metrics API and exported to
// Prometheus by [InitProvider]. [DefaultMetrics] returns a package-level
// instance bound to the global meter provider; tests should use [NewMetrics]
// with their own [metric.MeterProvider].
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope for all tutor metrics.
const meterName = "github.com/MrWong99/voicetutor"

// Metrics holds the metric instruments. All fields are safe for concurrent use.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// CaptureDuration tracks how long utterance capture took.
	CaptureDuration metric.Float64Histogram

	// STTDuration tracks speech-to-text transcription latency.
	STTDuration metric.Float64Histogram

	// LLMDuration tracks LLM latency for evaluation and coaching calls.
	LLMDuration metric.Float64Histogram

	// TTSDuration tracks synthesis plus playback of one spoken line.
	TTSDuration metric.Float64Histogram

	// --- Dialogue counters ---

	// Turns counts completed lesson turns. Attribute: mode.
	Turns metric.Int64Counter

	// Attempts counts evaluated answers. Attribute: mode.
	Attempts metric.Int64Counter

	// Verdicts counts oracle verdicts. Attributes: mode, verdict.
	Verdicts metric.Int64Counter

	// TurnFailures counts turns restarted after an adapter error. Attribute: mode.
	TurnFailures metric.Int64Counter

	// --- Provider counters ---

	// ProviderRequests counts provider calls. Attributes: provider, kind, status.
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts provider errors. Attributes: provider, kind.
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks running tutoring sessions.
	ActiveSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks ops server request time. Attributes: method, path.
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets are histogram boundaries in seconds. Capture and playback
// run for several seconds, so the tail is longer than for pure API calls.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 12, 20, 30,
}

// NewMetrics creates every instrument on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	histograms := []struct {
		dst  *metric.Float64Histogram
		name string
		desc string
	}{
		{&met.CaptureDuration, "voicetutor.capture.duration", "Duration of utterance capture."},
		{&met.STTDuration, "voicetutor.stt.duration", "Latency of speech-to-text transcription."},
		{&met.LLMDuration, "voicetutor.llm.duration", "Latency of LLM calls."},
		{&met.TTSDuration, "voicetutor.tts.duration", "Duration of synthesizing and playing one line."},
	}
	for _, h := range histograms {
		if *h.dst, err = m.Float64Histogram(h.name,
			metric.WithDescription(h.desc),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(latencyBuckets...),
		); err != nil {
			return nil, err
		}
	}

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&met.Turns, "voicetutor.turns", "Completed lesson turns by mode."},
		{&met.Attempts, "voicetutor.attempts", "Evaluated learner answers by mode."},
		{&met.Verdicts, "voicetutor.verdicts", "Oracle verdicts by mode and verdict."},
		{&met.TurnFailures, "voicetutor.turn.failures", "Turns restarted after an adapter error."},
		{&met.ProviderRequests, "voicetutor.provider.requests", "Provider requests by provider, kind, and status."},
		{&met.ProviderErrors, "voicetutor.provider.errors", "Provider errors by provider and kind."},
	}
	for _, c := range counters {
		if *c.dst, err = m.Int64Counter(c.name, metric.WithDescription(c.desc)); err != nil {
			return nil, err
		}
	}

	if met.ActiveSessions, err = m.Int64UpDownCounter("voicetutor.sessions.active",
		metric.WithDescription("Number of running tutoring sessions."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("voicetutor.http.request.duration",
		metric.WithDescription("Ops server request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics], creating it on first
// call from [otel.GetMeterProvider]. Panics if instrument creation fails.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is shorthand for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// ObserveDuration records the time since start on h.
func ObserveDuration(ctx context.Context, h metric.Float64Histogram, start time.Time, attrs ...attribute.KeyValue) {
	h.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(attrs...))
}

// RecordProviderRequest counts one provider call.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError counts one provider error.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordTurn counts a completed turn.
func (m *Metrics) RecordTurn(ctx context.Context, mode string) {
	m.Turns.Add(ctx, 1, metric.WithAttributes(attribute.String("mode", mode)))
}

// RecordVerdict counts an evaluated attempt and its verdict.
func (m *Metrics) RecordVerdict(ctx context.Context, mode, verdict string) {
	m.Attempts.Add(ctx, 1, metric.WithAttributes(attribute.String("mode", mode)))
	m.Verdicts.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("mode", mode),
			attribute.String("verdict", verdict),
		),
	)
}

// RecordTurnFailure counts a turn restart.
func (m *Metrics) RecordTurnFailure(ctx context.Context, mode string) {
	m.TurnFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("mode", mode)))
}
