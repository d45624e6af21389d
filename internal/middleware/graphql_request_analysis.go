package middleware

import (
	"net/http"

	"graph-query-connector/internal/gqldoc"
	"graph-query-connector/internal/logging"
	"graph-query-connector/internal/observability"
)

// GraphQLRequestAnalysisMiddleware decodes and analyzes the GraphQL request once
// and stores the analysis in request context for downstream middleware.
// fingerprint, when set, reports the schema descriptor currently served.
func GraphQLRequestAnalysisMiddleware(fingerprint func() string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			analysis := gqldoc.AnalyzeRequest(r)
			ctx := gqldoc.WithAnalysis(r.Context(), analysis)

			var current string
			if fingerprint != nil {
				current = fingerprint()
			}

			logger := logging.FromContext(ctx)
			if logFields := observability.QueryLogFields(ctx, analysis, current); len(logFields) > 0 {
				ctx = logging.WithLogger(ctx, logger.WithFields(logFields...))
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
