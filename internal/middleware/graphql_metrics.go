package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"graph-query-connector/internal/gqldoc"
	"graph-query-connector/internal/observability"
)

const graphQLOperation = "graphql"

// GraphQLMetricsMiddleware records connector request metrics for documents
// posted to the graph store endpoint. It runs after the analysis middleware
// and labels failures by their kind: parse, http or graphql.
func GraphQLMetricsMiddleware(metrics *observability.ConnectorMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Skip metrics for non-POST requests (GraphiQL page loads, etc.)
			if r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			metrics.IncrementActiveRequests(ctx)
			defer metrics.DecrementActiveRequests(ctx)

			start := time.Now()
			analysis := gqldoc.AnalysisFromContext(ctx)
			if analysis == nil {
				analysis = gqldoc.AnalyzeRequest(r)
			}

			wrapped := newStatusRecorder(w, true)
			next.ServeHTTP(wrapped, r)
			duration := time.Since(start)

			outcome := "success"
			switch {
			case analysis.ParseError != nil:
				outcome = "error"
				metrics.RecordError(ctx, graphQLOperation, "parse")
			case wrapped.status >= 400:
				outcome = "error"
				metrics.RecordError(ctx, graphQLOperation, "http")
			case responseHasGraphQLErrors(wrapped.body.Bytes()):
				outcome = "error"
				metrics.RecordError(ctx, graphQLOperation, "graphql")
			}
			metrics.RecordRequest(ctx, graphQLOperation, duration, outcome)
		})
	}
}

func responseHasGraphQLErrors(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return false
	}

	var payload struct {
		Errors []json.RawMessage `json:"errors"`
	}
	if err := json.Unmarshal(trimmed, &payload); err != nil {
		return false
	}
	return len(payload.Errors) > 0
}
