package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"graph-query-connector/internal/logging"
	"graph-query-connector/internal/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type authContextKey struct{}

// AuthContext describes the caller accepted by an auth middleware.
type AuthContext struct {
	Method   string
	Subject  string
	Issuer   string
	Audience []string
	Claims   map[string]interface{}
}

// WithAuthContext stores auth on ctx.
func WithAuthContext(ctx context.Context, auth AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey{}, auth)
}

// AuthFromContext returns the auth context from a request context.
func AuthFromContext(ctx context.Context) (AuthContext, bool) {
	auth, ok := ctx.Value(authContextKey{}).(AuthContext)
	return auth, ok
}

func bearerToken(value string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(value), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// authRejection is a credential failure. Reason feeds metrics and logs;
// message is what the client sees.
type authRejection struct {
	reason  string
	message string
	err     error
}

// authGate is the request flow shared by every credential check: run
// check, record the outcome, and either reject or continue with the
// caller attached to the context.
type authGate struct {
	method    string
	challenge string
	metrics   *observability.SecurityMetrics
	check     func(r *http.Request) (AuthContext, *authRejection)
}

func (g authGate) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		endpoint := r.URL.Path
		reqLogger := logging.FromContext(r.Context())

		auth, rejected := g.check(r)
		if rejected != nil {
			g.metrics.RecordAuthFailure(r.Context(), endpoint, g.method, rejected.reason)
			attrs := []any{
				slog.String("method", g.method),
				slog.String("reason", rejected.reason),
				slog.String("endpoint", endpoint),
				slog.String("remote_addr", r.RemoteAddr),
			}
			if rejected.err != nil {
				attrs = append(attrs, slog.String("error", rejected.err.Error()))
			}
			reqLogger.Warn("authentication failed", attrs...)

			if g.challenge != "" {
				w.Header().Set("WWW-Authenticate", g.challenge)
			}
			writeError(w, http.StatusUnauthorized, KindUnauthorized, rejected.message)
			return
		}

		auth.Method = g.method
		g.metrics.RecordAuthSuccess(r.Context(), endpoint, g.method)
		reqLogger.Debug("authentication successful",
			slog.String("method", g.method),
			slog.String("subject", auth.Subject),
			slog.String("endpoint", endpoint),
		)
		if span := trace.SpanFromContext(r.Context()); span.IsRecording() {
			span.SetAttributes(
				attribute.String("auth.method", g.method),
				attribute.String("auth.subject", auth.Subject),
			)
			if len(auth.Audience) > 0 {
				span.SetAttributes(attribute.StringSlice("auth.audience", auth.Audience))
			}
		}

		next.ServeHTTP(w, r.WithContext(WithAuthContext(r.Context(), auth)))
	})
}
