package observe

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// collect gathers all metric data from the reader.
func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

// findMetric searches for a metric by name across all scope metrics.
func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestNewMetrics_CreatesWithoutError(t *testing.T) {
	m, _ := newTestMetrics(t)
	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

// sumFor returns the value of the data point in sum whose attributes contain
// key=value, and whether one was found.
func sumFor(sum metricdata.Sum[int64], key, value string) (int64, bool) {
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.AsString() == value {
			return dp.Value, true
		}
	}
	return 0, false
}

func TestHistogramObservation(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	histograms := []struct {
		name string
		h    metric.Float64Histogram
	}{
		{"murmur.transcription.duration", m.TranscriptionDuration},
		{"murmur.utterance.duration", m.UtteranceDuration},
		{"murmur.http.request.duration", m.HTTPRequestDuration},
	}

	for _, tc := range histograms {
		tc.h.Record(ctx, 0.123)
		tc.h.Record(ctx, 0.456)
	}

	rm := collect(t, reader)

	for _, tc := range histograms {
		t.Run(tc.name, func(t *testing.T) {
			met := findMetric(rm, tc.name)
			if met == nil {
				t.Fatalf("metric %q not found", tc.name)
			}
			hist, ok := met.Data.(metricdata.Histogram[float64])
			if !ok {
				t.Fatalf("metric %q is not a histogram", tc.name)
			}
			if len(hist.DataPoints) == 0 {
				t.Fatalf("metric %q has no data points", tc.name)
			}
			if got := hist.DataPoints[0].Count; got != 2 {
				t.Errorf("sample count = %d, want 2", got)
			}
		})
	}
}

func TestRecordUtterance(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordUtterance(ctx, "mic", OutcomeQueued, 2*time.Second)
	m.RecordUtterance(ctx, "mic", OutcomeQueued, time.Second)
	m.RecordUtterance(ctx, "mic", OutcomeTooShort, 100*time.Millisecond)

	rm := collect(t, reader)
	met := findMetric(rm, "murmur.utterances")
	if met == nil {
		t.Fatal("metric not found")
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("metric is not a sum")
	}
	if got, _ := sumFor(sum, "outcome", OutcomeQueued); got != 2 {
		t.Errorf("queued = %d, want 2", got)
	}
	if got, _ := sumFor(sum, "outcome", OutcomeTooShort); got != 1 {
		t.Errorf("too_short = %d, want 1", got)
	}

	// Discarded utterances do not contribute to the length histogram.
	hmet := findMetric(rm, "murmur.utterance.duration")
	if hmet == nil {
		t.Fatal("histogram not found")
	}
	hist := hmet.Data.(metricdata.Histogram[float64])
	if got := hist.DataPoints[0].Count; got != 2 {
		t.Errorf("histogram count = %d, want 2", got)
	}
	if got := hist.DataPoints[0].Sum; got != 3 {
		t.Errorf("histogram sum = %v, want 3", got)
	}
}

func TestRecordTranscription(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordTranscription(ctx, StatusOK, 200*time.Millisecond)
	m.RecordTranscription(ctx, StatusOK, 300*time.Millisecond)
	m.RecordTranscription(ctx, StatusError, 10*time.Millisecond)

	rm := collect(t, reader)
	met := findMetric(rm, "murmur.transcriptions")
	if met == nil {
		t.Fatal("metric not found")
	}
	sum := met.Data.(metricdata.Sum[int64])
	if got, _ := sumFor(sum, "status", StatusOK); got != 2 {
		t.Errorf("ok = %d, want 2", got)
	}
	if got, _ := sumFor(sum, "status", StatusError); got != 1 {
		t.Errorf("error = %d, want 1", got)
	}
}

func TestRecordEvicted(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordEvicted(ctx, "loopback", 160)
	m.RecordEvicted(ctx, "loopback", 0)
	m.RecordEvicted(ctx, "loopback", 40)

	rm := collect(t, reader)
	met := findMetric(rm, "murmur.capture.evicted_samples")
	if met == nil {
		t.Fatal("metric not found")
	}
	got, ok := sumFor(met.Data.(metricdata.Sum[int64]), "source", "loopback")
	if !ok {
		t.Fatal("data point with source=loopback not found")
	}
	if got != 200 {
		t.Errorf("evicted = %d, want 200", got)
	}
}

func TestRecordBreakerTransition(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordBreakerTransition(ctx, "whisper", "open")

	rm := collect(t, reader)
	met := findMetric(rm, "murmur.breaker.transitions")
	if met == nil {
		t.Fatal("metric not found")
	}
	if got, _ := sumFor(met.Data.(metricdata.Sum[int64]), "backend", "whisper"); got != 1 {
		t.Errorf("transitions = %d, want 1", got)
	}
}

func TestQueuePendingGauge(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	// UpDownCounters are additive: three enqueues, one dequeue.
	m.QueuePending.Add(ctx, 3)
	m.QueuePending.Add(ctx, -1)

	rm := collect(t, reader)
	met := findMetric(rm, "murmur.queue.pending")
	if met == nil {
		t.Fatal("metric not found")
	}
	sum := met.Data.(metricdata.Sum[int64])
	if len(sum.DataPoints) == 0 {
		t.Fatal("no data points")
	}
	if got := sum.DataPoints[0].Value; got != 2 {
		t.Errorf("pending = %d, want 2", got)
	}
}

func TestDefaultMetrics_ReturnsSameInstance(t *testing.T) {
	// DefaultMetrics uses the global OTel provider so we just check
	// that repeated calls return the same pointer.
	a := DefaultMetrics()
	b := DefaultMetrics()
	if a != b {
		t.Error("DefaultMetrics returned different pointers")
	}
}
