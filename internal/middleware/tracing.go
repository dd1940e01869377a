package middleware

import (
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rumpus/rucho/internal/chaos"
	"github.com/rumpus/rucho/internal/metrics"
)

// TracerName is the instrumentation name used for request spans.
const TracerName = "rucho"

// Tracing starts a server span per request, named after the canonical
// endpoint so that /status/503 and /status/200 share a span name.
func Tracing(next http.Handler) http.Handler {
	tracer := otel.Tracer(TracerName)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := metrics.Normalize(r.URL.Path)
		ctx, span := tracer.Start(r.Context(), r.Method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.route", route),
				attribute.String("http.target", r.URL.RequestURI()),
			),
		)
		defer span.End()

		sw := wrap(w)
		next.ServeHTTP(sw, r.WithContext(ctx))

		span.SetAttributes(attribute.Int("http.status_code", sw.status))
		if v := sw.Header().Get(chaos.HeaderName); v != "" {
			span.SetAttributes(attribute.String("rucho.chaos", v))
		}
		if sw.status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(sw.status))
		}
	})
}
