package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// SchemaRefreshMetrics tracks descriptor reloads. A nil
// *SchemaRefreshMetrics records nothing.
type SchemaRefreshMetrics struct {
	attempts    metric.Int64Counter
	duration    metric.Float64Histogram
	lastSuccess atomic.Int64
	failing     atomic.Bool
}

// InitSchemaRefreshMetrics creates the reload instruments. Besides the
// counter and histogram it exports two observable gauges: the unix time of
// the last successful reload and whether the most recent attempt failed.
func InitSchemaRefreshMetrics(logger *slog.Logger) (*SchemaRefreshMetrics, error) {
	meter := otel.Meter(meterName)
	m := &SchemaRefreshMetrics{}

	var err error
	m.attempts, err = meter.Int64Counter(
		"connector.schema.reloads",
		metric.WithDescription("Schema descriptor reload attempts by trigger and result"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create schema reload counter: %w", err)
	}
	m.duration, err = meter.Float64Histogram(
		"connector.schema.reload.duration",
		metric.WithDescription("Time spent reading and installing a schema descriptor"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create schema reload histogram: %w", err)
	}

	lastSuccess, err := meter.Int64ObservableGauge(
		"connector.schema.last_reload",
		metric.WithDescription("Unix time of the last successful schema reload"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create schema last reload gauge: %w", err)
	}
	stale, err := meter.Int64ObservableGauge(
		"connector.schema.reload_failing",
		metric.WithDescription("1 while the latest schema reload attempt has failed"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create schema reload failing gauge: %w", err)
	}

	_, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		if ts := m.lastSuccess.Load(); ts > 0 {
			o.ObserveInt64(lastSuccess, ts)
		}
		var failing int64
		if m.failing.Load() {
			failing = 1
		}
		o.ObserveInt64(stale, failing)
		return nil
	}, lastSuccess, stale)
	if err != nil {
		return nil, fmt.Errorf("failed to register schema reload gauges: %w", err)
	}

	if logger != nil {
		logger.Debug("schema refresh metrics initialized")
	}
	return m, nil
}

// RecordRefresh records one reload attempt. Triggers ending in _no_change
// mark polls that found the descriptor file unchanged.
func (m *SchemaRefreshMetrics) RecordRefresh(ctx context.Context, duration time.Duration, success bool, trigger string) {
	if m == nil {
		return
	}
	result := "ok"
	if !success {
		result = "error"
	}
	attrs := metric.WithAttributes(
		attribute.String("trigger", trigger),
		attribute.String("result", result),
	)
	m.attempts.Add(ctx, 1, attrs)
	m.duration.Record(ctx, float64(duration)/float64(time.Millisecond), attrs)

	m.failing.Store(!success)
	if success {
		m.lastSuccess.Store(time.Now().Unix())
	}
}
