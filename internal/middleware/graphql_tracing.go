package middleware

import (
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"graph-query-connector/internal/gqldoc"
	"graph-query-connector/internal/logging"
	"graph-query-connector/internal/observability"
)

// GraphQLTracingMiddleware wraps graph store execution in a graphql.execute
// span. Requests without an analyzed query pass through untraced.
func GraphQLTracingMiddleware(fingerprint func() string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			analysis := gqldoc.AnalysisFromContext(r.Context())
			if analysis == nil || analysis.SizeBytes == 0 {
				next.ServeHTTP(w, r)
				return
			}

			ctx, span := otel.Tracer("graph-query-connector/graphql").Start(r.Context(), "graphql.execute")
			defer span.End()
			if spanCtx := span.SpanContext(); spanCtx.IsValid() {
				reqLogger := logging.FromContext(ctx).WithFields(
					slog.String("trace_id", spanCtx.TraceID().String()),
					slog.String("span_id", spanCtx.SpanID().String()),
				)
				ctx = logging.WithLogger(ctx, reqLogger)
			}

			if span.IsRecording() {
				var current string
				if fingerprint != nil {
					current = fingerprint()
				}
				span.SetAttributes(observability.QuerySpanAttributes(analysis, current)...)
				if err := analysis.Err(); err != nil {
					span.SetAttributes(attribute.String("graphql.analysis.error", err.Error()))
				}
			}

			rw := newStatusRecorder(w, false)
			next.ServeHTTP(rw, r.WithContext(ctx))
			if span.IsRecording() {
				span.SetAttributes(attribute.Int("http.response.status_code", rw.status))
			}
		})
	}
}
