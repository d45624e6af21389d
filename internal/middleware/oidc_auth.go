package middleware

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"graph-query-connector/internal/logging"
	"graph-query-connector/internal/observability"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

const (
	defaultOIDCClockSkew = 2 * time.Minute
	oidcDiscoveryTimeout = 10 * time.Second
)

// OIDCAuthConfig controls bearer token validation against an OIDC issuer.
type OIDCAuthConfig struct {
	Enabled       bool
	IssuerURL     string
	Audience      string
	ClockSkew     time.Duration
	SkipTLSVerify bool
}

// OIDCAuthMiddleware rejects requests without a valid bearer token signed by
// the configured issuer for the configured audience. Discovery runs once,
// here; key rotation is handled by the go-oidc remote key set.
func OIDCAuthMiddleware(cfg OIDCAuthConfig, logger *logging.Logger, metrics *observability.SecurityMetrics) (func(http.Handler) http.Handler, error) {
	if !cfg.Enabled {
		return func(next http.Handler) http.Handler { return next }, nil
	}
	if cfg.IssuerURL == "" || cfg.Audience == "" {
		return nil, errors.New("oidc auth enabled but issuer/audience not configured")
	}
	issuer, err := url.Parse(cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("invalid oidc issuer url: %w", err)
	}
	if issuer.Scheme != "https" {
		return nil, errors.New("oidc issuer url must use https")
	}
	if cfg.ClockSkew == 0 {
		cfg.ClockSkew = defaultOIDCClockSkew
	}
	if cfg.SkipTLSVerify && logger != nil {
		logger.Warn("oidc tls verification is disabled; enable only for local development",
			"issuer", cfg.IssuerURL,
		)
	}

	client := &http.Client{
		Timeout: oidcDiscoveryTimeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: cfg.SkipTLSVerify},
		},
	}
	// The provider keeps this context for later JWKS fetches.
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, client)
	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize oidc provider: %w", err)
	}
	verifier := provider.Verifier(&oidc.Config{ClientID: cfg.Audience})

	gate := authGate{
		method:    observability.AuthMethodOIDC,
		challenge: "Bearer",
		metrics:   metrics,
		check: func(r *http.Request) (AuthContext, *authRejection) {
			return verifyBearer(r.Context(), verifier, cfg.ClockSkew, r.Header.Get("Authorization"))
		},
	}
	return gate.wrap, nil
}

func verifyBearer(ctx context.Context, verifier *oidc.IDTokenVerifier, skew time.Duration, header string) (AuthContext, *authRejection) {
	raw := bearerToken(header)
	if raw == "" {
		return AuthContext{}, &authRejection{reason: "missing_token", message: "missing bearer token"}
	}

	token, err := verifier.Verify(ctx, raw)
	if err != nil {
		return AuthContext{}, &authRejection{reason: "invalid_token", message: "invalid token", err: err}
	}

	claims := map[string]interface{}{}
	if err := token.Claims(&claims); err != nil {
		return AuthContext{}, &authRejection{reason: "invalid_claims", message: "invalid token claims", err: err}
	}
	if err := validateTimeClaims(claims, skew); err != nil {
		return AuthContext{}, &authRejection{reason: "invalid_time", message: "invalid token", err: err}
	}

	return AuthContext{
		Subject:  token.Subject,
		Issuer:   token.Issuer,
		Audience: extractAudience(claims),
		Claims:   claims,
	}, nil
}

// validateTimeClaims re-checks exp and nbf with a tolerance for issuer
// clock drift. A non-positive skew disables the check.
func validateTimeClaims(claims map[string]interface{}, skew time.Duration) error {
	if skew <= 0 {
		return nil
	}
	now := time.Now()
	if exp, ok := numericDate(claims["exp"]); ok && now.After(exp.Add(skew)) {
		return errors.New("token expired")
	}
	if nbf, ok := numericDate(claims["nbf"]); ok && now.Add(skew).Before(nbf) {
		return errors.New("token not valid yet")
	}
	return nil
}

func numericDate(value interface{}) (time.Time, bool) {
	var seconds int64
	switch v := value.(type) {
	case float64:
		seconds = int64(v)
	case int64:
		seconds = v
	case int:
		seconds = int64(v)
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return time.Time{}, false
		}
		seconds = n
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return time.Time{}, false
		}
		seconds = n
	default:
		return time.Time{}, false
	}
	return time.Unix(seconds, 0), true
}

func extractAudience(claims map[string]interface{}) []string {
	switch aud := claims["aud"].(type) {
	case string:
		return []string{aud}
	case []string:
		return aud
	case []interface{}:
		out := make([]string, 0, len(aud))
		for _, item := range aud {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
