package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
)

// Error kinds reported by the middleware. They share the details.kind field
// with the connector's own error responses.
const (
	KindUnauthorized = "unauthorized"
	KindRateLimited  = "rate_limited"
)

type errorBody struct {
	Message string `json:"message"`
	Details struct {
		Kind string `json:"kind"`
	} `json:"details"`
}

// writeError renders {"message": ..., "details": {"kind": ...}}.
func writeError(w http.ResponseWriter, status int, kind, message string) {
	body := errorBody{Message: message}
	body.Details.Kind = kind
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// statusRecorder captures the status code and size of a response. When
// captureBody is set the body is also buffered for inspection.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
	captureBody bool
	body        bytes.Buffer
}

func newStatusRecorder(w http.ResponseWriter, captureBody bool) *statusRecorder {
	return &statusRecorder{ResponseWriter: w, status: http.StatusOK, captureBody: captureBody}
}

func (r *statusRecorder) WriteHeader(status int) {
	if r.wroteHeader {
		return
	}
	r.status = status
	r.wroteHeader = true
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	if r.captureBody {
		r.body.Write(b)
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
