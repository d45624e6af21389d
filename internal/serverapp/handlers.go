package serverapp

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"graph-query-connector/internal/connector"
	"graph-query-connector/internal/execution"
	"graph-query-connector/internal/logging"
	"graph-query-connector/internal/middleware"
	"graph-query-connector/internal/ndc"
	"graph-query-connector/internal/observability"
	"graph-query-connector/internal/planner"
	"graph-query-connector/internal/schemarefresh"
)

const maxRequestBody = 8 << 20

type errorDetails struct {
	Kind   string `json:"kind"`
	Target string `json:"target,omitempty"`
	Query  string `json:"query,omitempty"`
}

type errorResponse struct {
	Message string       `json:"message"`
	Details errorDetails `json:"details"`
}

func queryHandler(conn *connector.Connector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeQueryRequest(w, r)
		if !ok {
			return
		}
		resp, err := conn.Query(r.Context(), req)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, resp)
	}
}

func explainHandler(conn *connector.Connector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeQueryRequest(w, r)
		if !ok {
			return
		}
		resp, err := conn.Explain(r.Context(), req)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, resp)
	}
}

func schemaHandler(conn *connector.Connector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, r, http.MethodGet)
			return
		}
		resp, err := conn.Schema()
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, resp)
	}
}

func capabilitiesHandler(conn *connector.Connector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, r, http.MethodGet)
			return
		}
		writeJSON(w, r, http.StatusOK, conn.Capabilities())
	}
}

func decodeQueryRequest(w http.ResponseWriter, r *http.Request) (*ndc.QueryRequest, bool) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, r, http.MethodPost)
		return nil, false
	}
	req, err := ndc.DecodeQueryRequest(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	return req, true
}

// statusForError maps connector error kinds onto HTTP statuses.
func statusForError(err error) int {
	switch connector.ErrorKind(err) {
	case connector.KindInvalidRequest, connector.KindSchemaViolation, connector.KindUnsupportedQuery,
		connector.KindUnboundVariable, connector.KindUnsupportedOperator:
		return http.StatusBadRequest
	case connector.KindExecution, connector.KindMalformedResult:
		return http.StatusBadGateway
	case connector.KindConfigurationMissing:
		return http.StatusServiceUnavailable
	case connector.KindCanceled:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func errorBody(err error) errorResponse {
	resp := errorResponse{
		Message: err.Error(),
		Details: errorDetails{Kind: connector.ErrorKind(err)},
	}
	var planErr *planner.PlanError
	if errors.As(err, &planErr) {
		resp.Details.Target = planErr.Target
	}
	var execErr *execution.ExecutionError
	if errors.As(err, &execErr) {
		resp.Details.Query = execErr.Query
	}
	if resp.Details.Kind == connector.KindInternal {
		resp.Message = "internal error"
	}
	return resp
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	body := errorBody(err)
	logger := logging.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", slog.String("kind", body.Details.Kind), slog.String("error", err.Error()))
	} else {
		logger.Debug("request rejected", slog.String("kind", body.Details.Kind), slog.String("error", err.Error()))
	}
	writeJSON(w, r, status, body)
}

func writeMethodNotAllowed(w http.ResponseWriter, r *http.Request, allowed string) {
	w.Header().Set("Allow", allowed)
	writeJSON(w, r, http.StatusMethodNotAllowed, errorResponse{
		Message: "method not allowed",
		Details: errorDetails{Kind: connector.KindInvalidRequest},
	})
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Warn("failed to write response", slog.String("error", err.Error()))
	}
}

type healthStatus struct {
	Status      string `json:"status"`
	Check       string `json:"check,omitempty"`
	Kind        string `json:"kind,omitempty"`
	Fingerprint string `json:"schema_fingerprint,omitempty"`
}

// healthHandler reports whether a descriptor is installed and the backend
// answers. db is pinged directly when present so a pool problem shows up
// before the first descriptor loads. Failure bodies never carry error text.
func healthHandler(conn *connector.Connector, db *sql.DB, timeout time.Duration) http.HandlerFunc {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		unhealthy := func(check string, err error) {
			status := healthStatus{Status: "unhealthy", Check: check}
			if err != nil {
				status.Kind = connector.ErrorKind(err)
				logging.FromContext(r.Context()).Error("health check failed",
					slog.String("check", check), slog.String("error", err.Error()))
			}
			writeJSON(w, r, http.StatusServiceUnavailable, status)
		}

		if db != nil {
			if err := db.PingContext(ctx); err != nil {
				unhealthy("database", err)
				return
			}
		}
		if conn == nil {
			unhealthy("connector", nil)
			return
		}
		if err := conn.Health(ctx); err != nil {
			unhealthy("connector", err)
			return
		}
		writeJSON(w, r, http.StatusOK, healthStatus{Status: "healthy", Fingerprint: conn.Fingerprint()})
	}
}

const schemaReloadTimeout = 15 * time.Second

// schemaReloadHandler re-reads the descriptor on POST and answers with the
// fingerprint now being served.
func schemaReloadHandler(manager *schemarefresh.Manager, securityMetrics *observability.SecurityMetrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, r, http.MethodPost)
			return
		}

		authCtx, authenticated := middleware.AuthFromContext(r.Context())
		logger := logging.FromContext(r.Context()).WithFields(
			slog.String("operation", "schema_reload"),
			slog.String("remote_addr", r.RemoteAddr),
			slog.Bool("authenticated", authenticated),
		)
		if authenticated {
			logger = logger.WithFields(slog.String("subject", authCtx.Subject), slog.String("auth_method", authCtx.Method))
		}
		logger.Info("admin endpoint accessed")

		if manager == nil {
			writeJSON(w, r, http.StatusServiceUnavailable, errorResponse{
				Message: "schema manager not ready",
				Details: errorDetails{Kind: connector.KindConfigurationMissing},
			})
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), schemaReloadTimeout)
		defer cancel()
		err := manager.RefreshNowContext(ctx)
		securityMetrics.RecordAdminEndpointAccess(r.Context(), "schema_reload", authenticated, err == nil)
		if err != nil {
			logger.Error("schema reload failed", slog.String("error", err.Error()))
			writeJSON(w, r, http.StatusInternalServerError, errorResponse{
				Message: "schema reload failed",
				Details: errorDetails{Kind: connector.KindInternal},
			})
			return
		}

		fingerprint := manager.CurrentSnapshot().Fingerprint
		logger.Info("schema reloaded", slog.String("fingerprint", fingerprint))
		writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok", "fingerprint": fingerprint})
	}
}
