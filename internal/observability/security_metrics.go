package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Authentication methods reported on security metrics.
const (
	AuthMethodOIDC       = "oidc"
	AuthMethodAdminToken = "admin_token"
)

// SecurityMetrics counts authentication outcomes and admin endpoint use.
// A nil *SecurityMetrics records nothing.
type SecurityMetrics struct {
	authAttempts metric.Int64Counter
	authFailures metric.Int64Counter
	adminAccess  metric.Int64Counter
}

// InitSecurityMetrics creates the security counters on the global meter provider.
func InitSecurityMetrics() (*SecurityMetrics, error) {
	meter := otel.Meter(meterName + "/security")
	m := &SecurityMetrics{}
	counters := []struct {
		target      *metric.Int64Counter
		name        string
		description string
	}{
		{&m.authAttempts, "connector.auth.attempts", "Authentication attempts by method and outcome"},
		{&m.authFailures, "connector.auth.failures", "Rejected credentials by method and reason"},
		{&m.adminAccess, "connector.admin.requests", "Admin endpoint requests by operation and result"},
	}

	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.description))
		if err != nil {
			return nil, fmt.Errorf("failed to create %s counter: %w", c.name, err)
		}
		*c.target = counter
	}
	return m, nil
}

// RecordAuthSuccess counts an accepted credential.
func (m *SecurityMetrics) RecordAuthSuccess(ctx context.Context, endpoint, method string) {
	if m == nil {
		return
	}
	m.authAttempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.String("method", method),
		attribute.String("outcome", "accepted"),
	))
}

// RecordAuthFailure counts a rejected credential. Reason is a short stable
// token such as missing_token or invalid_token.
func (m *SecurityMetrics) RecordAuthFailure(ctx context.Context, endpoint, method, reason string) {
	if m == nil {
		return
	}
	m.authAttempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.String("method", method),
		attribute.String("outcome", "rejected"),
	))
	m.authFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("reason", reason),
	))
}

// RecordAdminEndpointAccess counts a request that reached an admin handler.
func (m *SecurityMetrics) RecordAdminEndpointAccess(ctx context.Context, operation string, authenticated bool, success bool) {
	if m == nil {
		return
	}
	m.adminAccess.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.Bool("authenticated", authenticated),
		attribute.Bool("success", success),
	))
}
