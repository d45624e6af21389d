package observability

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"graph-query-connector/internal/gqldoc"
)

// QuerySpanAttributes builds span attributes from a query-text analysis.
// fingerprint identifies the schema descriptor the query ran against.
func QuerySpanAttributes(analysis *gqldoc.Analysis, fingerprint string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 9)

	if analysis != nil {
		if analysis.OperationName != "" {
			attrs = append(attrs, attribute.String("graphql.operation.name", analysis.OperationName))
		}
		if analysis.OperationType != "" {
			attrs = append(attrs, attribute.String("graphql.operation.type", analysis.OperationType))
		}
		if analysis.Hash != "" {
			attrs = append(attrs, attribute.String("graphql.operation.hash", analysis.Hash))
		}
		if analysis.SizeBytes > 0 {
			attrs = append(attrs, attribute.Int("graphql.document.size_bytes", analysis.SizeBytes))
		}
		if analysis.Operation != nil {
			attrs = append(attrs,
				attribute.Int("graphql.query.field_count", analysis.FieldCount),
				attribute.Int("graphql.query.depth", analysis.SelectionDepth),
				attribute.Int("graphql.query.variable_count", analysis.VariableCount),
			)
		}
	}

	if fingerprint != "" {
		attrs = append(attrs, attribute.String("schema.fingerprint", fingerprint))
	}

	return attrs
}

// QueryLogFields builds structured log fields from a query-text analysis.
func QueryLogFields(ctx context.Context, analysis *gqldoc.Analysis, fingerprint string) []any {
	fields := make([]any, 0, 6)

	if analysis != nil {
		if analysis.OperationName != "" {
			fields = append(fields, slog.String("operation_name", analysis.OperationName))
		}
		if analysis.OperationType != "" {
			fields = append(fields, slog.String("operation_type", analysis.OperationType))
		}
		if analysis.Hash != "" {
			fields = append(fields, slog.String("operation_hash", analysis.Hash))
		}
	}

	if fingerprint != "" {
		fields = append(fields, slog.String("schema_fingerprint", fingerprint))
	}

	spanCtx := trace.SpanContextFromContext(ctx)
	if spanCtx.IsValid() {
		fields = append(fields, slog.String("trace_id", spanCtx.TraceID().String()))
	}

	return fields
}
