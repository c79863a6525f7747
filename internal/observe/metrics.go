// Package observe provides application-wide observability primitives for
// murmur: OpenTelemetry metrics, tracing, trace-aware structured logging, and
// HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped from the /metrics endpoint. A package-level default [Metrics]
// instance ([DefaultMetrics]) is provided for convenience; tests should use
// [NewMetrics] with a custom [metric.MeterProvider] to avoid cross-test
// pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all murmur metrics.
const meterName = "github.com/MrWong99/murmur"

// Utterance outcomes recorded on [Metrics.Utterances].
const (
	OutcomeQueued    = "queued"
	OutcomeTooShort  = "too_short"
	OutcomeMaxLength = "max_length"
)

// Transcription statuses recorded on [Metrics.Transcriptions].
const (
	StatusOK    = "ok"
	StatusEmpty = "empty"
	StatusError = "error"
)

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// TranscriptionDuration tracks wall-clock time of one transcription call.
	TranscriptionDuration metric.Float64Histogram

	// UtteranceDuration tracks the audio length of finalized utterances.
	UtteranceDuration metric.Float64Histogram

	// Utterances counts finalized utterances. Attributes:
	//   attribute.String("source", ...), attribute.String("outcome", ...)
	Utterances metric.Int64Counter

	// Transcriptions counts finished transcription jobs. Attribute:
	//   attribute.String("status", ...)
	Transcriptions metric.Int64Counter

	// CaptureEvicted counts samples dropped by a full capture buffer.
	// Attribute: attribute.String("source", ...)
	CaptureEvicted metric.Int64Counter

	// QueuePending tracks jobs waiting for the transcription worker.
	QueuePending metric.Int64UpDownCounter

	// VADFallback counts switches from the neural to the energy classifier.
	VADFallback metric.Int64Counter

	// BreakerTransitions counts circuit breaker state changes. Attributes:
	//   attribute.String("backend", ...), attribute.String("state", ...)
	BreakerTransitions metric.Int64Counter

	// HTTPRequestDuration tracks HTTP request processing time. Attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets are histogram boundaries (seconds) for transcription calls,
// which range from tens of milliseconds to tens of seconds.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 15, 30,
}

// utteranceBuckets are histogram boundaries (seconds) for utterance length.
var utteranceBuckets = []float64{
	0.3, 0.5, 1, 2, 3, 5, 8, 12, 20, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.TranscriptionDuration, err = m.Float64Histogram("murmur.transcription.duration",
		metric.WithDescription("Latency of one transcription call."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.UtteranceDuration, err = m.Float64Histogram("murmur.utterance.duration",
		metric.WithDescription("Audio length of finalized utterances."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(utteranceBuckets...),
	); err != nil {
		return nil, err
	}

	if met.Utterances, err = m.Int64Counter("murmur.utterances",
		metric.WithDescription("Finalized utterances by source and outcome."),
	); err != nil {
		return nil, err
	}
	if met.Transcriptions, err = m.Int64Counter("murmur.transcriptions",
		metric.WithDescription("Finished transcription jobs by status."),
	); err != nil {
		return nil, err
	}
	if met.CaptureEvicted, err = m.Int64Counter("murmur.capture.evicted_samples",
		metric.WithDescription("Samples dropped by a full capture buffer, by source."),
	); err != nil {
		return nil, err
	}
	if met.VADFallback, err = m.Int64Counter("murmur.vad.fallback",
		metric.WithDescription("Switches from the neural to the energy classifier."),
	); err != nil {
		return nil, err
	}
	if met.BreakerTransitions, err = m.Int64Counter("murmur.breaker.transitions",
		metric.WithDescription("Circuit breaker state changes by backend and new state."),
	); err != nil {
		return nil, err
	}

	if met.QueuePending, err = m.Int64UpDownCounter("murmur.queue.pending",
		metric.WithDescription("Jobs waiting for the transcription worker."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("murmur.http.request.duration",
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
// first call using [otel.GetMeterProvider]. Panics if instrument creation
// fails (should not happen with the global provider).
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

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordUtterance counts one finalized utterance and, unless it was
// discarded, records its audio length.
func (m *Metrics) RecordUtterance(ctx context.Context, source, outcome string, length time.Duration) {
	m.Utterances.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("source", source),
			attribute.String("outcome", outcome),
		),
	)
	if outcome != OutcomeTooShort {
		m.UtteranceDuration.Record(ctx, length.Seconds(),
			metric.WithAttributes(attribute.String("source", source)),
		)
	}
}

// RecordTranscription counts one finished job and records its latency.
func (m *Metrics) RecordTranscription(ctx context.Context, status string, latency time.Duration) {
	m.Transcriptions.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
	m.TranscriptionDuration.Record(ctx, latency.Seconds(),
		metric.WithAttributes(attribute.String("status", status)),
	)
}

// RecordEvicted adds n evicted samples for source. Non-positive n is ignored.
func (m *Metrics) RecordEvicted(ctx context.Context, source string, n int64) {
	if n <= 0 {
		return
	}
	m.CaptureEvicted.Add(ctx, n,
		metric.WithAttributes(attribute.String("source", source)),
	)
}

// RecordBreakerTransition counts a circuit breaker moving to state.
func (m *Metrics) RecordBreakerTransition(ctx context.Context, backend, state string) {
	m.BreakerTransitions.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("backend", backend),
			attribute.String("state", state),
		),
	)
}
