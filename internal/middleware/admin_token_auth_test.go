package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func adminHandler(t *testing.T, next http.HandlerFunc) http.Handler {
	t.Helper()
	mw, err := AdminTokenAuthMiddleware(AdminTokenAuthConfig{Token: " secret-token "})
	require.NoError(t, err)
	return mw(next)
}

func TestAdminTokenAuthMiddleware_Rejects(t *testing.T) {
	handler := adminHandler(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next handler must not run")
	})

	tests := []struct {
		name    string
		header  string
		value   string
		message string
	}{
		{"missing", "", "", "missing admin token"},
		{"wrong header token", AdminTokenHeader, "wrong-token", "invalid admin token"},
		{"wrong bearer", "Authorization", "Bearer wrong-token", "invalid admin token"},
		{"basic scheme", "Authorization", "Basic secret-token", "missing admin token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/admin/reload-schema", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.JSONEq(t, `{"message":"`+tt.message+`","details":{"kind":"unauthorized"}}`, rec.Body.String())
			assert.Empty(t, rec.Header().Get("WWW-Authenticate"))
		})
	}
}

func TestAdminTokenAuthMiddleware_Accepts(t *testing.T) {
	for name, set := range map[string]func(*http.Request){
		"header": func(r *http.Request) { r.Header.Set(AdminTokenHeader, "secret-token") },
		"bearer": func(r *http.Request) { r.Header.Set("Authorization", "bearer secret-token") },
	} {
		t.Run(name, func(t *testing.T) {
			handler := adminHandler(t, func(w http.ResponseWriter, r *http.Request) {
				auth, ok := AuthFromContext(r.Context())
				assert.True(t, ok)
				assert.Equal(t, "admin_token", auth.Method)
				assert.Equal(t, "admin", auth.Subject)
				w.WriteHeader(http.StatusNoContent)
			})
			req := httptest.NewRequest(http.MethodPost, "/admin/reload-schema", nil)
			set(req)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusNoContent, rec.Code)
		})
	}
}

func TestAdminTokenAuthMiddleware_RequiresToken(t *testing.T) {
	_, err := AdminTokenAuthMiddleware(AdminTokenAuthConfig{Token: "   "})
	assert.EqualError(t, err, "admin auth token is required")
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", bearerToken("Bearer abc"))
	assert.Equal(t, "abc", bearerToken("  BEARER   abc "))
	assert.Empty(t, bearerToken("Bearer"))
	assert.Empty(t, bearerToken("Token abc"))
}
