package gqldoc

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"
)

// Envelope is the GraphQL-over-HTTP payload of a request.
type Envelope struct {
	Query         string
	OperationName string
	Variables     json.RawMessage
}

// DecodeEnvelope reads the GraphQL payload from a GET query string or a POST
// body and rewinds the body for the next handler.
func DecodeEnvelope(r *http.Request) (Envelope, error) {
	if r == nil {
		return Envelope{}, errors.New("request is nil")
	}

	switch r.Method {
	case http.MethodGet:
		params := r.URL.Query()
		return Envelope{Query: params.Get("query"), OperationName: params.Get("operationName")}, nil
	case http.MethodPost:
	default:
		return Envelope{}, nil
	}
	if r.Body == nil {
		return Envelope{}, nil
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return Envelope{}, err
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	contentType := r.Header.Get("Content-Type")
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(contentType)
	}
	if mediaType == "application/graphql" {
		return Envelope{Query: string(body)}, nil
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return Envelope{}, nil
	}
	var payload struct {
		Query         string          `json:"query"`
		OperationName string          `json:"operationName"`
		Variables     json.RawMessage `json:"variables"`
	}
	if err := json.Unmarshal(trimmed, &payload); err != nil {
		return Envelope{}, err
	}
	env := Envelope{Query: payload.Query, OperationName: payload.OperationName}
	if vars := bytes.TrimSpace(payload.Variables); len(vars) > 0 && !bytes.Equal(vars, []byte("null")) {
		env.Variables = append(json.RawMessage(nil), vars...)
	}
	return env, nil
}

// AnalyzeRequest decodes and analyzes the GraphQL payload of r. A payload
// that cannot be decoded is reported as a parse error.
func AnalyzeRequest(r *http.Request) *Analysis {
	env, err := DecodeEnvelope(r)
	if err != nil {
		return &Analysis{ParseError: err}
	}
	return Analyze(env.Query, env.OperationName)
}
