package execution

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const moviesQuery = "query {\n  movies {\n    title\n  }\n}\n"

func TestRemoteExecutor_Execute(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer s3cret", r.Header.Get("Authorization"))
		assert.Equal(t, "graph", r.Header.Get("X-Tenant"))

		var body struct {
			Query     string         `json:"query"`
			Variables map[string]any `json:"variables"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, moviesQuery, body.Query)
		assert.Equal(t, "x", body.Variables["v"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"movies":[{"title":"Matrix","released":1999}]}}`))
	}))
	defer server.Close()

	exec, err := NewRemoteExecutor(RemoteConfig{
		URL:         server.URL,
		Timeout:     time.Second,
		BearerToken: "s3cret",
		Headers:     map[string]string{"X-Tenant": "graph"},
	})
	require.NoError(t, err)

	data, err := exec.Execute(context.Background(), moviesQuery, map[string]any{"v": "x"})
	require.NoError(t, err)
	movies := data["movies"].([]any)
	require.Len(t, movies, 1)
	assert.Equal(t, json.Number("1999"), movies[0].(map[string]any)["released"])
}

func TestRemoteExecutor_GraphQLErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":null,"errors":[{"message":"Cannot query field \"budget\""}]}`))
	}))
	defer server.Close()

	exec, err := NewRemoteExecutor(RemoteConfig{URL: server.URL})
	require.NoError(t, err)

	_, err = exec.Execute(context.Background(), moviesQuery, nil)
	var execErr *ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, moviesQuery, execErr.Query)
	require.Len(t, execErr.Errors, 1)
	assert.Contains(t, execErr.Error(), `Cannot query field "budget"`)
}

func TestRemoteExecutor_HTTPFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer server.Close()

	exec, err := NewRemoteExecutor(RemoteConfig{URL: server.URL})
	require.NoError(t, err)

	_, err = exec.Execute(context.Background(), moviesQuery, nil)
	var execErr *ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Contains(t, execErr.Error(), "unexpected status 502")
	assert.Contains(t, execErr.Error(), "upstream down")
	assert.Error(t, exec.Ping(context.Background()))
}

func TestRemoteExecutor_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	exec, err := NewRemoteExecutor(RemoteConfig{URL: server.URL})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = exec.Execute(ctx, moviesQuery, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewRemoteExecutor_RequiresURL(t *testing.T) {
	_, err := NewRemoteExecutor(RemoteConfig{})
	assert.Error(t, err)
}

func TestWrap(t *testing.T) {
	assert.NoError(t, Wrap("q", nil))

	cause := errors.New("boom")
	err := Wrap("q", cause)
	assert.ErrorIs(t, err, cause)

	var execErr *ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, "q", execErr.Query)
	assert.Same(t, err, Wrap("other", err))
}

func TestFunc(t *testing.T) {
	var exec Executor = Func(func(ctx context.Context, q string, vars map[string]any) (map[string]any, error) {
		return map[string]any{"q": q}, nil
	})
	data, err := exec.Execute(context.Background(), "query { x }", nil)
	require.NoError(t, err)
	assert.Equal(t, "query { x }", data["q"])
}
