// Package schemarefresh loads the schema descriptor file, installs it into
// the connector and reloads it when the file changes. Changes are detected
// by polling with backoff and, optionally, by watching the file.
package schemarefresh

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/graphql-go/graphql"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"graph-query-connector/internal/connector"
	"graph-query-connector/internal/execution"
	"graph-query-connector/internal/logging"
	"graph-query-connector/internal/naming"
	"graph-query-connector/internal/observability"
	"graph-query-connector/internal/schema"
)

const watchDebounce = 200 * time.Millisecond

// Snapshot contains an immutable view of the installed schema state.
type Snapshot struct {
	Descriptor  *schema.Descriptor
	Executor    execution.Executor
	Schema      *graphql.Schema
	Handler     http.Handler
	BuiltAt     time.Time
	Fingerprint string
}

// Config controls schema refresh behavior.
type Config struct {
	Path        string
	Namer       *naming.Namer
	Build       BuildFunc
	Connector   *connector.Connector
	Logger      *logging.Logger
	Metrics     *observability.SchemaRefreshMetrics
	MinInterval time.Duration
	MaxInterval time.Duration
	Watch       bool
	GraphiQL    bool
}

// Manager maintains and refreshes schema snapshots.
type Manager struct {
	path        string
	namer       *naming.Namer
	build       BuildFunc
	connector   *connector.Connector
	logger      *logging.Logger
	metrics     *observability.SchemaRefreshMetrics
	minInterval time.Duration
	maxInterval time.Duration
	watch       bool
	graphiQL    bool

	// mu serializes rebuilds and guards handle.
	mu     sync.Mutex
	handle *connector.Handle
	active atomic.Pointer[Snapshot]
	wg     sync.WaitGroup
}

// NewManager loads the descriptor file, installs it and returns a manager.
// A zero MinInterval disables polling.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("schema refresh manager requires a schema file")
	}
	if cfg.Build == nil {
		return nil, fmt.Errorf("schema refresh manager requires an executor build function")
	}
	if cfg.Connector == nil {
		return nil, fmt.Errorf("schema refresh manager requires a connector")
	}
	if cfg.Logger == nil {
		cfg.Logger = &logging.Logger{Logger: slog.Default()}
	}

	minInterval := cfg.MinInterval
	maxInterval := cfg.MaxInterval
	if maxInterval < minInterval {
		maxInterval = minInterval
	}

	manager := &Manager{
		path:        filepath.Clean(cfg.Path),
		namer:       cfg.Namer,
		build:       cfg.Build,
		connector:   cfg.Connector,
		logger:      cfg.Logger.WithFields(slog.String("component", "schema_refresh")),
		metrics:     cfg.Metrics,
		minInterval: minInterval,
		maxInterval: maxInterval,
		watch:       cfg.Watch,
		graphiQL:    cfg.GraphiQL,
	}

	start := time.Now()
	if _, err := manager.refresh(context.Background(), true); err != nil {
		manager.recordRefresh(time.Since(start), false, "startup")
		return nil, err
	}
	manager.recordRefresh(time.Since(start), true, "startup")
	return manager, nil
}

// Start begins background polling and file watching.
func (m *Manager) Start(ctx context.Context) {
	if m.minInterval > 0 {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.refreshLoop(ctx)
		}()
	} else {
		m.logger.Info("schema polling disabled")
	}

	if m.watch {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			m.logger.Warn("cannot create schema file watcher", slog.String("error", err.Error()))
			return
		}
		// Watch the directory so that editors replacing the file are seen.
		if err := watcher.Add(filepath.Dir(m.path)); err != nil {
			_ = watcher.Close()
			m.logger.Warn("cannot watch schema file", slog.String("path", m.path), slog.String("error", err.Error()))
			return
		}
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			defer watcher.Close()
			m.watchLoop(ctx, watcher)
		}()
	}
}

// Handler returns the /graphql handler for the current snapshot.
func (m *Manager) Handler() http.Handler {
	snapshot := m.CurrentSnapshot()
	if snapshot == nil || snapshot.Handler == nil {
		return notReadyHandler()
	}
	return snapshot.Handler
}

// CurrentSnapshot returns the active snapshot.
func (m *Manager) CurrentSnapshot() *Snapshot {
	return m.active.Load()
}

// RefreshNow forces a schema rebuild and swap.
func (m *Manager) RefreshNow() error {
	return m.RefreshNowContext(context.Background())
}

// RefreshNowContext forces a schema rebuild and swap with context support.
func (m *Manager) RefreshNowContext(ctx context.Context) error {
	start := time.Now()
	if _, err := m.refresh(ctx, true); err != nil {
		m.recordRefresh(time.Since(start), false, "manual")
		return err
	}
	m.recordRefresh(time.Since(start), true, "manual")
	return nil
}

// Wait blocks until the background loops exit or the context is canceled.
func (m *Manager) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close uninstalls the manager's snapshot from the connector.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handle.Release()
	m.handle = nil
}

func (m *Manager) refreshLoop(ctx context.Context) {
	interval := m.minInterval
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("schema refresh stopped")
			return
		case <-timer.C:
			m.refreshOnce(ctx, "poll", &interval)
			timer.Reset(interval)
		}
	}
}

func (m *Manager) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	debounce := time.NewTimer(time.Hour)
	debounce.Stop()
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				m.logger.Debug("schema watcher channel is closed")
				return
			}
			if filepath.Clean(event.Name) != m.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			debounce.Reset(watchDebounce)
		case <-debounce.C:
			interval := m.minInterval
			m.refreshOnce(ctx, "watch", &interval)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			m.logger.Warn("schema watcher error", slog.String("error", err.Error()))
		}
	}
}

func (m *Manager) refreshOnce(ctx context.Context, trigger string, interval *time.Duration) {
	start := time.Now()
	changed, err := m.refresh(ctx, false)
	if err != nil {
		m.logger.Error("failed to reload schema", slog.String("trigger", trigger), slog.String("error", err.Error()))
		m.recordRefresh(time.Since(start), false, trigger)
		*interval = m.minInterval
		return
	}
	if !changed {
		m.recordRefresh(time.Since(start), true, trigger+"_no_change")
		*interval = nextInterval(*interval, m.minInterval, m.maxInterval)
		return
	}

	*interval = m.minInterval
	m.recordRefresh(time.Since(start), true, trigger)
	m.logger.Info("schema refresh complete",
		slog.String("trigger", trigger),
		slog.String("fingerprint", m.CurrentSnapshot().Fingerprint),
	)
}

// refresh rebuilds the snapshot when the file content changed, or always
// when force is set. A failed rebuild leaves the current snapshot installed.
func (m *Manager) refresh(ctx context.Context, force bool) (bool, error) {
	ctx, span := otel.Tracer("graph-query-connector/schemarefresh").Start(ctx, "schemarefresh.refresh")
	defer span.End()

	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.path)
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("failed to read schema file: %w", err)
	}
	fingerprint := Fingerprint(data)
	span.SetAttributes(attribute.String("schema.fingerprint", fingerprint))

	current := m.active.Load()
	if !force && current != nil && current.Fingerprint == fingerprint {
		return false, nil
	}
	if current != nil {
		m.logger.Info("schema change detected, rebuilding",
			slog.String("previous_fingerprint", current.Fingerprint),
			slog.String("fingerprint", fingerprint),
		)
	}

	snapshot, err := BuildSnapshot(ctx, BuildSnapshotConfig{
		Data:     data,
		Format:   schema.FormatFromPath(m.path),
		Namer:    m.namer,
		Build:    m.build,
		GraphiQL: m.graphiQL,
	})
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("schema file %s: %w", m.path, err)
	}

	handle, err := m.connector.Install(snapshot.Descriptor, snapshot.Executor, snapshot.Fingerprint)
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("failed to install schema: %w", err)
	}
	previous := m.handle
	m.handle = handle
	m.active.Store(snapshot)
	previous.Release()

	m.logger.Info("schema snapshot installed",
		slog.Int("collections", len(snapshot.Descriptor.Collections())),
		slog.String("fingerprint", snapshot.Fingerprint),
	)
	return true, nil
}

func nextInterval(current, minInterval, maxInterval time.Duration) time.Duration {
	if current < minInterval {
		return minInterval
	}
	next := current + current/2
	if next > maxInterval {
		return maxInterval
	}
	return next
}

func (m *Manager) recordRefresh(duration time.Duration, success bool, trigger string) {
	if m.metrics == nil {
		return
	}
	m.metrics.RecordRefresh(context.Background(), duration, success, trigger)
}
