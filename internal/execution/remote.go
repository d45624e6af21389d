package execution

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const maxErrorBody = 4 << 10

// RemoteConfig configures a RemoteExecutor.
type RemoteConfig struct {
	URL         string
	Timeout     time.Duration
	BearerToken string
	Headers     map[string]string
	// Client overrides the default instrumented client.
	Client *http.Client
}

// RemoteExecutor posts query text to a GraphQL endpoint that speaks the
// graph dialect.
type RemoteExecutor struct {
	url     string
	token   string
	headers map[string]string
	client  *http.Client
}

// NewRemoteExecutor builds an executor for cfg.URL. Requests are traced
// through an otelhttp transport.
func NewRemoteExecutor(cfg RemoteConfig) (*RemoteExecutor, error) {
	if cfg.URL == "" {
		return nil, errors.New("remote executor url is required")
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	headers := make(map[string]string, len(cfg.Headers))
	for k, v := range cfg.Headers {
		headers[k] = v
	}
	return &RemoteExecutor{url: cfg.URL, token: cfg.BearerToken, headers: headers, client: client}, nil
}

type remoteRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type remoteResponse struct {
	Data   map[string]any `json:"data"`
	Errors []GraphQLError `json:"errors"`
}

// Execute sends one request and decodes numbers as json.Number.
func (e *RemoteExecutor) Execute(ctx context.Context, queryText string, variables map[string]any) (map[string]any, error) {
	body, err := json.Marshal(remoteRequest{Query: queryText, Variables: variables})
	if err != nil {
		return nil, Wrap(queryText, fmt.Errorf("encode request: %w", err))
	}

	resp, err := e.do(ctx, http.MethodPost, bytes.NewReader(body))
	if err != nil {
		return nil, Wrap(queryText, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, Wrap(queryText, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet)))
	}

	var decoded remoteResponse
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&decoded); err != nil {
		return nil, Wrap(queryText, fmt.Errorf("decode response: %w", err))
	}
	if len(decoded.Errors) > 0 {
		return nil, &ExecutionError{Query: queryText, Errors: decoded.Errors}
	}
	if decoded.Data == nil {
		decoded.Data = map[string]any{}
	}
	return decoded.Data, nil
}

// Ping issues an introspection-free probe query.
func (e *RemoteExecutor) Ping(ctx context.Context) error {
	_, err := e.Execute(ctx, "query { __typename }", nil)
	return err
}

func (e *RemoteExecutor) do(ctx context.Context, method string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, e.url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range e.headers {
		req.Header.Set(k, v)
	}
	if e.token != "" {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}
	return e.client.Do(req)
}
