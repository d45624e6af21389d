package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"graph-query-connector/internal/observability"
)

// AdminTokenHeader carries the shared admin token. A bearer token in the
// Authorization header is accepted as well.
const AdminTokenHeader = "X-Admin-Token"

// AdminTokenAuthConfig controls shared-token authentication for admin endpoints.
type AdminTokenAuthConfig struct {
	Token   string
	Metrics *observability.SecurityMetrics
}

// AdminTokenAuthMiddleware admits requests presenting the configured token.
func AdminTokenAuthMiddleware(cfg AdminTokenAuthConfig) (func(http.Handler) http.Handler, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("admin auth token is required")
	}
	expected := sha256.Sum256([]byte(token))

	gate := authGate{
		method:  observability.AuthMethodAdminToken,
		metrics: cfg.Metrics,
		check: func(r *http.Request) (AuthContext, *authRejection) {
			provided := strings.TrimSpace(r.Header.Get(AdminTokenHeader))
			if provided == "" {
				provided = bearerToken(r.Header.Get("Authorization"))
			}
			if provided == "" {
				return AuthContext{}, &authRejection{reason: "missing_token", message: "missing admin token"}
			}
			// Hashing first keeps the comparison length independent.
			got := sha256.Sum256([]byte(provided))
			if subtle.ConstantTimeCompare(got[:], expected[:]) != 1 {
				return AuthContext{}, &authRejection{reason: "invalid_token", message: "invalid admin token"}
			}
			return AuthContext{Subject: "admin"}, nil
		},
	}
	return gate.wrap, nil
}
