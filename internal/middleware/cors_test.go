package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCORSMiddleware(t *testing.T) {
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	specific := CORSConfig{
		Enabled:          true,
		AllowedOrigins:   []string{" https://app.example.com "},
		AllowCredentials: true,
		MaxAge:           600,
	}
	wildcard := CORSConfig{Enabled: true, AllowedOrigins: []string{"*"}, AllowCredentials: true}

	tests := []struct {
		name       string
		cfg        CORSConfig
		method     string
		origin     string
		preflight  bool
		wantStatus int
		wantHeader map[string]string
	}{
		{
			name:       "disabled passes through",
			cfg:        CORSConfig{Enabled: false, AllowedOrigins: []string{"*"}},
			method:     http.MethodPost,
			origin:     "https://app.example.com",
			wantStatus: http.StatusOK,
			wantHeader: map[string]string{"Access-Control-Allow-Origin": ""},
		},
		{
			name:       "no origin is not a CORS request",
			cfg:        specific,
			method:     http.MethodPost,
			wantStatus: http.StatusOK,
			wantHeader: map[string]string{"Access-Control-Allow-Origin": ""},
		},
		{
			name:       "allowed origin echoed with credentials",
			cfg:        specific,
			method:     http.MethodPost,
			origin:     "https://app.example.com",
			wantStatus: http.StatusOK,
			wantHeader: map[string]string{
				"Access-Control-Allow-Origin":      "https://app.example.com",
				"Access-Control-Allow-Credentials": "true",
				"Access-Control-Expose-Headers":    RequestIDHeader,
				"Vary":                             "Origin",
			},
		},
		{
			name:       "disallowed origin gets no headers",
			cfg:        specific,
			method:     http.MethodPost,
			origin:     "https://evil.example.com",
			wantStatus: http.StatusOK,
			wantHeader: map[string]string{"Access-Control-Allow-Origin": ""},
		},
		{
			name:       "preflight uses defaults",
			cfg:        specific,
			method:     http.MethodOptions,
			origin:     "https://app.example.com",
			preflight:  true,
			wantStatus: http.StatusNoContent,
			wantHeader: map[string]string{
				"Access-Control-Allow-Methods": "GET, POST, OPTIONS",
				"Access-Control-Allow-Headers": "Authorization, Content-Type, X-Request-ID",
				"Access-Control-Max-Age":       "600",
			},
		},
		{
			name:       "disallowed preflight is answered bare",
			cfg:        specific,
			method:     http.MethodOptions,
			origin:     "https://evil.example.com",
			preflight:  true,
			wantStatus: http.StatusNoContent,
			wantHeader: map[string]string{"Access-Control-Allow-Methods": ""},
		},
		{
			name:       "wildcard never allows credentials",
			cfg:        wildcard,
			method:     http.MethodGet,
			origin:     "https://anything.example.com",
			wantStatus: http.StatusOK,
			wantHeader: map[string]string{
				"Access-Control-Allow-Origin":      "*",
				"Access-Control-Allow-Credentials": "",
				"Vary":                             "",
			},
		},
		{
			name:       "plain OPTIONS without request method reaches handler",
			cfg:        specific,
			method:     http.MethodOptions,
			origin:     "https://app.example.com",
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/query", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			rec := httptest.NewRecorder()
			CORSMiddleware(tt.cfg)(okHandler).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			for key, want := range tt.wantHeader {
				assert.Equal(t, want, rec.Header().Get(key), key)
			}
		})
	}
}

func TestCORSMiddleware_CustomLists(t *testing.T) {
	handler := CORSMiddleware(CORSConfig{
		Enabled:        true,
		AllowedOrigins: []string{"https://app.example.com"},
		AllowedMethods: []string{"POST"},
		AllowedHeaders: []string{"Content-Type"},
		ExposeHeaders:  []string{"X-Request-ID", "Retry-After"},
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodOptions, "/explain", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "POST", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Content-Type", rec.Header().Get("Access-Control-Allow-Headers"))

	req = httptest.NewRequest(http.MethodPost, "/explain", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "X-Request-ID, Retry-After", rec.Header().Get("Access-Control-Expose-Headers"))
}
