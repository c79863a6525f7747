package observe

import (
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
	"go.opentelemetry.io/otel/trace"
)

// CorrelationHeader carries the request's trace ID back to the caller.
const CorrelationHeader = "X-Correlation-ID"

// MiddlewareOption configures [Middleware].
type MiddlewareOption func(*instrumented)

// WithQuietPaths logs successful requests for the given paths at debug level
// instead of info. Use it for endpoints polled by scrapers and probes.
func WithQuietPaths(paths ...string) MiddlewareOption {
	return func(h *instrumented) {
		h.quiet = append(h.quiet, paths...)
	}
}

// Middleware wraps an [http.Handler] with a server span (continuing any W3C
// traceparent from the request), the [CorrelationHeader] response header, a
// sample in [Metrics.HTTPRequestDuration] and one completion log line.
func Middleware(m *Metrics, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		h := &instrumented{next: next, metrics: m}
		for _, o := range opts {
			o(h)
		}
		return h
	}
}

type instrumented struct {
	next    http.Handler
	metrics *Metrics
	quiet   []string
	prop    propagation.TraceContext
}

func (h *instrumented) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	path := r.URL.Path

	ctx := h.prop.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := StartSpan(ctx, "HTTP "+r.Method+" "+path,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(semconv.HTTPRequestMethodKey.String(r.Method), semconv.URLPath(path)),
	)
	defer span.End()

	cid := CorrelationID(ctx)
	if cid != "" {
		w.Header().Set(CorrelationHeader, cid)
	}
	h.prop.Inject(ctx, propagation.HeaderCarrier(w.Header()))

	sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
	h.next.ServeHTTP(sw, r.WithContext(ctx))
	elapsed := time.Since(start)

	span.SetAttributes(semconv.HTTPResponseStatusCode(sw.code))
	h.metrics.HTTPRequestDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(
		attribute.String("method", r.Method),
		attribute.String("path", path),
		attribute.String("code", strconv.Itoa(sw.code)),
	))

	level := slog.LevelInfo
	if sw.code < http.StatusBadRequest && slices.Contains(h.quiet, path) {
		level = slog.LevelDebug
	}
	slog.LogAttrs(ctx, level, "http: request completed",
		slog.String("trace_id", cid),
		slog.String("method", r.Method),
		slog.String("path", path),
		slog.Int("status", sw.code),
		slog.Duration("duration", elapsed),
	)
}

// statusWriter remembers the status code written by the wrapped handler.
type statusWriter struct {
	http.ResponseWriter
	code        int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.code = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}

// Unwrap lets [http.ResponseController] reach the underlying writer.
func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
