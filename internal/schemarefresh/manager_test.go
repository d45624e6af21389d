package schemarefresh

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"graph-query-connector/internal/connector"
	"graph-query-connector/internal/execution"
	"graph-query-connector/internal/graphstore"
	"graph-query-connector/internal/logging"
	"graph-query-connector/internal/schema"
)

const moviesYAML = `collections:
  - name: Movies
    fields:
      - name: id
        type: ID!
      - name: title
        type: String!
`

const moviesWithActorsYAML = moviesYAML + `    relationships:
      - name: actors
        target: Actors
        local_field: id
        foreign_field: movie_id
  - name: Actors
    fields:
      - name: id
        type: ID!
      - name: movie_id
        type: ID!
`

func testLogger() *logging.Logger {
	handler := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelInfo})
	return &logging.Logger{Logger: slog.New(handler)}
}

func writeSchema(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write schema file: %v", err)
	}
}

type countingBuild struct {
	calls atomic.Int32
}

func (b *countingBuild) build(ctx context.Context, desc *schema.Descriptor) (execution.Executor, error) {
	b.calls.Add(1)
	return execution.Func(func(ctx context.Context, q string, vars map[string]any) (map[string]any, error) {
		return map[string]any{}, nil
	}), nil
}

func newTestManager(t *testing.T, content string, mutate func(*Config)) (*Manager, *connector.Connector, *countingBuild, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "schema.yaml")
	writeSchema(t, path, content)

	builds := &countingBuild{}
	conn := connector.New(connector.WithLogger(testLogger()))
	cfg := Config{
		Path:        path,
		Build:       builds.build,
		Connector:   conn,
		Logger:      testLogger(),
		MinInterval: 5 * time.Second,
		MaxInterval: time.Minute,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	manager, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}
	t.Cleanup(manager.Close)
	return manager, conn, builds, path
}

func TestNewManager_InstallsDescriptor(t *testing.T) {
	manager, conn, builds, _ := newTestManager(t, moviesYAML, nil)

	snapshot := manager.CurrentSnapshot()
	if snapshot == nil {
		t.Fatalf("expected snapshot after startup")
	}
	if snapshot.Fingerprint != Fingerprint([]byte(moviesYAML)) {
		t.Fatalf("unexpected fingerprint %s", snapshot.Fingerprint)
	}
	if conn.Fingerprint() != snapshot.Fingerprint {
		t.Fatalf("connector fingerprint %q, want %q", conn.Fingerprint(), snapshot.Fingerprint)
	}
	if _, ok := conn.Descriptor().Collection("Movies"); !ok {
		t.Fatalf("expected Movies to be installed")
	}
	if builds.calls.Load() != 1 {
		t.Fatalf("expected one build, got %d", builds.calls.Load())
	}

	manager.Close()
	if conn.Descriptor() != nil {
		t.Fatalf("expected Close to uninstall the descriptor")
	}
}

func TestNewManager_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.yaml")
	writeSchema(t, path, "collections:\n  - name: Movies\n    fields:\n      - name: id\n        type: \"[[\"\n")

	conn := connector.New()
	_, err := NewManager(Config{
		Path:      path,
		Build:     (&countingBuild{}).build,
		Connector: conn,
		Logger:    testLogger(),
	})
	if err == nil {
		t.Fatalf("expected invalid schema to fail")
	}
	if conn.Descriptor() != nil {
		t.Fatalf("connector must stay unconfigured")
	}

	if _, err := NewManager(Config{Path: filepath.Join(t.TempDir(), "missing.yaml"), Build: (&countingBuild{}).build, Connector: conn}); err == nil {
		t.Fatalf("expected missing file to fail")
	}
}

func TestRefreshOnce_NoChange_BacksOff(t *testing.T) {
	manager, _, builds, _ := newTestManager(t, moviesYAML, nil)

	interval := manager.minInterval
	manager.refreshOnce(context.Background(), "poll", &interval)

	if interval <= manager.minInterval {
		t.Fatalf("expected backoff interval > min interval, got %v", interval)
	}
	if builds.calls.Load() != 1 {
		t.Fatalf("unchanged file must not rebuild, got %d builds", builds.calls.Load())
	}

	for i := 0; i < 20; i++ {
		manager.refreshOnce(context.Background(), "poll", &interval)
	}
	if interval != manager.maxInterval {
		t.Fatalf("expected interval capped at %v, got %v", manager.maxInterval, interval)
	}
}

func TestRefreshOnce_Change_Rebuilds(t *testing.T) {
	manager, conn, _, path := newTestManager(t, moviesYAML, nil)
	writeSchema(t, path, moviesWithActorsYAML)

	interval := 30 * time.Second
	manager.refreshOnce(context.Background(), "poll", &interval)

	snapshot := manager.CurrentSnapshot()
	if snapshot.Fingerprint != Fingerprint([]byte(moviesWithActorsYAML)) {
		t.Fatalf("fingerprint not updated: got %s", snapshot.Fingerprint)
	}
	if _, ok := conn.Descriptor().Collection("Actors"); !ok {
		t.Fatalf("expected Actors after refresh")
	}
	if interval != manager.minInterval {
		t.Fatalf("interval should reset to min interval, got %v", interval)
	}
}

func TestRefreshOnce_FailureKeepsSnapshot(t *testing.T) {
	manager, conn, _, path := newTestManager(t, moviesYAML, nil)
	before := manager.CurrentSnapshot()
	writeSchema(t, path, "collections: [")

	interval := 30 * time.Second
	manager.refreshOnce(context.Background(), "poll", &interval)

	if manager.CurrentSnapshot() != before {
		t.Fatalf("failed refresh must keep the previous snapshot")
	}
	if conn.Fingerprint() != before.Fingerprint {
		t.Fatalf("failed refresh must keep the installed descriptor")
	}
	if interval != manager.minInterval {
		t.Fatalf("interval should reset to min interval, got %v", interval)
	}
}

func TestRefreshNow_AlwaysRebuilds(t *testing.T) {
	manager, _, builds, _ := newTestManager(t, moviesYAML, nil)
	if err := manager.RefreshNow(); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if builds.calls.Load() != 2 {
		t.Fatalf("expected manual refresh to rebuild, got %d builds", builds.calls.Load())
	}
}

func TestHandler_NotReadyWithoutGraphSchema(t *testing.T) {
	manager, _, _, _ := newTestManager(t, moviesYAML, nil)

	rec := httptest.NewRecorder()
	manager.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/graphql?query=%7B__typename%7D", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestHandler_ServesGraphStoreSchema(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	manager, _, _, _ := newTestManager(t, moviesYAML, func(cfg *Config) {
		cfg.Build = func(ctx context.Context, desc *schema.Descriptor) (execution.Executor, error) {
			return graphstore.NewExecutor(graphstore.New(desc, graphstore.NewDBQuerier(db)))
		}
	})
	if manager.CurrentSnapshot().Schema == nil {
		t.Fatalf("expected graph schema on snapshot")
	}

	rec := httptest.NewRecorder()
	manager.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/graphql?query=%7B__typename%7D", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"Query"`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	manager, conn, _, path := newTestManager(t, moviesYAML, func(cfg *Config) {
		cfg.MinInterval = 0
		cfg.Watch = true
	})

	ctx, cancel := context.WithCancel(context.Background())
	manager.Start(ctx)
	defer func() {
		cancel()
		_ = manager.Wait(context.Background())
	}()

	writeSchema(t, path, moviesWithActorsYAML)

	want := Fingerprint([]byte(moviesWithActorsYAML))
	deadline := time.Now().Add(5 * time.Second)
	for conn.Fingerprint() != want {
		if time.Now().After(deadline) {
			t.Fatalf("schema was not reloaded after write")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestNextInterval(t *testing.T) {
	if got := nextInterval(time.Second, 5*time.Second, time.Minute); got != 5*time.Second {
		t.Fatalf("below min: got %v", got)
	}
	if got := nextInterval(10*time.Second, 5*time.Second, time.Minute); got != 15*time.Second {
		t.Fatalf("growth: got %v", got)
	}
	if got := nextInterval(50*time.Second, 5*time.Second, time.Minute); got != time.Minute {
		t.Fatalf("cap: got %v", got)
	}
}
