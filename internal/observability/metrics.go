package observability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "graph-query-connector"

// ConnectorMetrics holds custom metrics for connector operations.
// A nil *ConnectorMetrics records nothing.
type ConnectorMetrics struct {
	queryDuration   metric.Float64Histogram
	planDuration    metric.Float64Histogram
	executeDuration metric.Float64Histogram
	requestCounter  metric.Int64Counter
	errorCounter    metric.Int64Counter
	activeRequests  metric.Int64UpDownCounter
	queryDepth      metric.Int64Histogram
	queryFields     metric.Int64Histogram
	rowsReturned    metric.Int64Histogram
}

// InitConnectorMetrics initializes connector metrics on the global meter provider.
func InitConnectorMetrics() (*ConnectorMetrics, error) {
	meter := otel.Meter(meterName)

	queryDuration, err := meter.Float64Histogram(
		"connector.query.duration",
		metric.WithDescription("Duration of connector requests in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create query duration histogram: %w", err)
	}

	planDuration, err := meter.Float64Histogram(
		"connector.plan.duration",
		metric.WithDescription("Duration of query planning in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create plan duration histogram: %w", err)
	}

	executeDuration, err := meter.Float64Histogram(
		"connector.execute.duration",
		metric.WithDescription("Duration of query execution in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create execute duration histogram: %w", err)
	}

	requestCounter, err := meter.Int64Counter(
		"connector.requests.total",
		metric.WithDescription("Total number of connector requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request counter: %w", err)
	}

	errorCounter, err := meter.Int64Counter(
		"connector.errors",
		metric.WithDescription("Total number of connector errors by kind"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create error counter: %w", err)
	}

	activeRequests, err := meter.Int64UpDownCounter(
		"connector.active_requests",
		metric.WithDescription("Number of in-flight connector requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create active requests counter: %w", err)
	}

	queryDepth, err := meter.Int64Histogram(
		"connector.query.depth",
		metric.WithDescription("Selection depth of compiled queries"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create query depth histogram: %w", err)
	}

	queryFields, err := meter.Int64Histogram(
		"connector.query.fields",
		metric.WithDescription("Number of fields in compiled queries"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create query fields histogram: %w", err)
	}

	rowsReturned, err := meter.Int64Histogram(
		"connector.rows.returned",
		metric.WithDescription("Number of root rows returned per row set"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create rows returned histogram: %w", err)
	}

	return &ConnectorMetrics{
		queryDuration:   queryDuration,
		planDuration:    planDuration,
		executeDuration: executeDuration,
		requestCounter:  requestCounter,
		errorCounter:    errorCounter,
		activeRequests:  activeRequests,
		queryDepth:      queryDepth,
		queryFields:     queryFields,
		rowsReturned:    rowsReturned,
	}, nil
}

// RecordRequest records a finished connector request.
func (m *ConnectorMetrics) RecordRequest(ctx context.Context, operation string, duration time.Duration, outcome string) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	)
	m.queryDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	m.requestCounter.Add(ctx, 1, attrs)
}

// RecordPlan records the duration and shape of one planned query.
func (m *ConnectorMetrics) RecordPlan(ctx context.Context, duration time.Duration, depth, fields int) {
	if m == nil {
		return
	}
	m.planDuration.Record(ctx, float64(duration.Milliseconds()))
	m.queryDepth.Record(ctx, int64(depth))
	m.queryFields.Record(ctx, int64(fields))
}

// RecordExecute records one executor round trip.
func (m *ConnectorMetrics) RecordExecute(ctx context.Context, duration time.Duration, success bool) {
	if m == nil {
		return
	}
	m.executeDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(
		attribute.Bool("success", success),
	))
}

// RecordError counts a failed request by error kind.
func (m *ConnectorMetrics) RecordError(ctx context.Context, operation, kind string) {
	if m == nil {
		return
	}
	m.errorCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("kind", kind),
	))
}

// RecordRows records the size of one returned row set.
func (m *ConnectorMetrics) RecordRows(ctx context.Context, count int) {
	if m == nil {
		return
	}
	m.rowsReturned.Record(ctx, int64(count))
}

// IncrementActiveRequests increments the active requests counter.
func (m *ConnectorMetrics) IncrementActiveRequests(ctx context.Context) {
	if m == nil {
		return
	}
	m.activeRequests.Add(ctx, 1)
}

// DecrementActiveRequests decrements the active requests counter.
func (m *ConnectorMetrics) DecrementActiveRequests(ctx context.Context) {
	if m == nil {
		return
	}
	m.activeRequests.Add(ctx, -1)
}

// InitMetrics initializes the connector metrics and logs the outcome.
func InitMetrics(logger *slog.Logger) (*ConnectorMetrics, error) {
	metrics, err := InitConnectorMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize connector metrics: %w", err)
	}

	logger.Info("custom connector metrics initialized")
	return metrics, nil
}
