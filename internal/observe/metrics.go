// Package observe provides application-wide observability primitives for
// sonoscribe: OpenTelemetry metrics, tracing, structured logging helpers,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all sonoscribe metrics.
const meterName = "github.com/MrWong99/sonoscribe"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// TranscriptionDuration tracks the latency of one engine Transcribe
	// call, from drain to segments.
	TranscriptionDuration metric.Float64Histogram

	// SessionsTotal counts finished sessions. Use with attribute:
	//   attribute.String("status", ...) — "ok", "engine_error", "transport_error"
	SessionsTotal metric.Int64Counter

	// ActiveSessions tracks the number of currently open websocket sessions.
	ActiveSessions metric.Int64UpDownCounter

	// AudioBytes counts raw PCM bytes accepted across all sessions.
	AudioBytes metric.Int64Counter

	// EngineErrors counts failed engine Transcribe calls.
	EngineErrors metric.Int64Counter

	// HTTPRequestDuration tracks HTTP request processing time. Use with
	// attributes: attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds). Batch
// whisper inference on commodity CPUs lands in the upper buckets.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.TranscriptionDuration, err = m.Float64Histogram("sonoscribe.transcription.duration",
		metric.WithDescription("Latency of one batch transcription call."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.SessionsTotal, err = m.Int64Counter("sonoscribe.sessions",
		metric.WithDescription("Total finished sessions by status."),
	); err != nil {
		return nil, err
	}

	if met.ActiveSessions, err = m.Int64UpDownCounter("sonoscribe.active_sessions",
		metric.WithDescription("Number of currently open websocket sessions."),
	); err != nil {
		return nil, err
	}

	if met.AudioBytes, err = m.Int64Counter("sonoscribe.audio.bytes",
		metric.WithDescription("Raw PCM bytes accepted across all sessions."),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}

	if met.EngineErrors, err = m.Int64Counter("sonoscribe.engine.errors",
		metric.WithDescription("Failed engine transcription calls."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("sonoscribe.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
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

// RecordSession records one finished session with the given status
// ("ok", "engine_error", "transport_error").
func (m *Metrics) RecordSession(ctx context.Context, status string) {
	m.SessionsTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}

// RecordEngineError records one failed engine transcription call.
func (m *Metrics) RecordEngineError(ctx context.Context) {
	m.EngineErrors.Add(ctx, 1)
}
