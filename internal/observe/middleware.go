package observe

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// responseStatus wraps [http.ResponseWriter] to remember the status code the
// downstream handler wrote. An implicit WriteHeader from the first Write
// counts as 200.
type responseStatus struct {
	http.ResponseWriter
	code int
}

func (r *responseStatus) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware instruments the admin HTTP surface (health probes and the
// Prometheus scrape endpoint). Each request gets a server span, an
// X-Correlation-ID response header carrying the trace ID, and a sample in
// [Metrics.HTTPRequestDuration] tagged with method, path and status.
//
// Nothing upstream of this listener speaks W3C trace context, so incoming
// headers are not consulted; every request starts its own trace.
//
// Scrapes and probe hits arrive every few seconds, so completions log at
// Debug; error statuses log at Warn.
func Middleware(m *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ctx, span := StartSpan(r.Context(), "HTTP "+r.Method+" "+r.URL.Path,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPRequestMethodKey.String(r.Method),
					semconv.URLPath(r.URL.Path),
				),
			)
			defer span.End()

			cid := CorrelationID(ctx)
			if cid != "" {
				w.Header().Set("X-Correlation-ID", cid)
			}

			rec := &responseStatus{ResponseWriter: w, code: http.StatusOK}
			next.ServeHTTP(rec, r.WithContext(ctx))

			elapsed := time.Since(start)
			m.HTTPRequestDuration.Record(ctx, elapsed.Seconds(),
				metric.WithAttributes(
					attribute.String("method", r.Method),
					attribute.String("path", r.URL.Path),
					attribute.String("status", strconv.Itoa(rec.code)),
				),
			)
			span.SetAttributes(semconv.HTTPResponseStatusCode(rec.code))

			level := slog.LevelDebug
			if rec.code >= http.StatusBadRequest {
				level = slog.LevelWarn
			}
			slog.LogAttrs(ctx, level, "admin request served",
				slog.String("trace_id", cid),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.code),
				slog.Duration("duration", elapsed),
			)
		})
	}
}
