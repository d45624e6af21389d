package serverapp

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"graph-query-connector/internal/config"
	"graph-query-connector/internal/connector"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRouter_AdminRouteFollowsConfig(t *testing.T) {
	for _, enabled := range []bool{false, true} {
		cfg := &config.Config{Server: config.ServerConfig{
			HealthCheckTimeout: time.Second,
			Admin:              config.AdminConfig{SchemaReloadEnabled: enabled},
		}}
		admin := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusAccepted) })

		mux, err := buildRouter(cfg, testLogger(), connector.New(), nil, nil, nil, nil, admin, nil)
		require.NoError(t, err)

		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/reload-schema", nil))
		want := http.StatusNotFound
		if enabled {
			want = http.StatusAccepted
		}
		assert.Equal(t, want, rec.Code, "schema_reload_enabled=%v", enabled)
	}
}

func tokenAdminConfig() *config.Config {
	return &config.Config{Server: config.ServerConfig{
		Admin: config.AdminConfig{SchemaReloadEnabled: true, AuthToken: "secret-token"},
	}}
}

func TestBuildAdminHandler_TokenMode(t *testing.T) {
	handler, err := buildAdminHandler(tokenAdminConfig(), testLogger(), nil, nil)
	require.NoError(t, err)

	tests := []struct {
		name   string
		method string
		header string
		value  string
		want   int
	}{
		{"no token", http.MethodPost, "", "", http.StatusUnauthorized},
		{"wrong token", http.MethodPost, "X-Admin-Token", "nope", http.StatusUnauthorized},
		// GET passes auth and stops at the method check before any refresh.
		{"header token", http.MethodGet, "X-Admin-Token", "secret-token", http.StatusMethodNotAllowed},
		{"bearer token", http.MethodGet, "Authorization", "Bearer secret-token", http.StatusMethodNotAllowed},
		// Without a manager the authenticated POST reports unavailability.
		{"authenticated post", http.MethodPost, "X-Admin-Token", "secret-token", http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/admin/reload-schema", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusUnauthorized {
				assert.Contains(t, rec.Body.String(), `"kind":"unauthorized"`)
			}
		})
	}
}

func TestBuildAdminHandler_OIDCTakesPrecedence(t *testing.T) {
	cfg := tokenAdminConfig()
	// Issuer and audience are missing, so building fails inside the OIDC path.
	cfg.Server.Auth.OIDCEnabled = true

	_, err := buildAdminHandler(cfg, testLogger(), nil, nil)
	assert.ErrorContains(t, err, "oidc auth enabled but issuer/audience not configured")
}

func TestBuildAdminHandler_Unauthenticated(t *testing.T) {
	cfg := tokenAdminConfig()
	cfg.Server.Admin.AuthToken = ""

	handler, err := buildAdminHandler(cfg, testLogger(), nil, nil)
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/reload-schema", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
