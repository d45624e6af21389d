package connector

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"graph-query-connector/internal/execution"
	"graph-query-connector/internal/gqldoc"
	"graph-query-connector/internal/logging"
	"graph-query-connector/internal/ndc"
	"graph-query-connector/internal/planner"
	"graph-query-connector/internal/transform"
)

// Query plans, executes and reshapes req. A request with variables yields
// one RowSet per variable set, in order; without variables it yields exactly
// one RowSet. Variable sets run sequentially and the first failure aborts
// the request.
func (c *Connector) Query(ctx context.Context, req *ndc.QueryRequest) (resp ndc.QueryResponse, err error) {
	start := time.Now()
	c.metrics.IncrementActiveRequests(ctx)
	defer c.metrics.DecrementActiveRequests(ctx)

	ctx, span := tracer.Start(ctx, "connector.query")
	defer func() {
		c.finish(ctx, span, "query", start, err)
	}()

	s, err := c.snapshot()
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, fmt.Errorf("%w: query request is required", ndc.ErrInvalidRequest)
	}
	span.SetAttributes(
		attribute.String("connector.collection", req.Collection),
		attribute.Int("connector.variable_sets", len(req.Variables)),
	)

	sets := req.Variables
	if sets == nil {
		sets = []map[string]any{nil}
	}
	resp = make(ndc.QueryResponse, 0, len(sets))
	for i, variables := range sets {
		rows, err := c.queryOne(ctx, s, req, variables)
		if err != nil {
			if len(req.Variables) > 1 {
				return nil, fmt.Errorf("variable set %d: %w", i, err)
			}
			return nil, err
		}
		resp = append(resp, rows)
	}
	return resp, nil
}

func (c *Connector) queryOne(ctx context.Context, s *state, req *ndc.QueryRequest, variables map[string]any) (ndc.RowSet, error) {
	plan, err := c.plan(ctx, s, req, variables)
	if err != nil {
		return ndc.RowSet{}, err
	}

	raw, err := c.execute(ctx, s, plan)
	if err != nil {
		return ndc.RowSet{}, err
	}

	_, span := tracer.Start(ctx, "connector.transform")
	rows, err := transform.Transform(req, raw)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()
		return ndc.RowSet{}, execution.Wrap(plan.QueryText, err)
	}
	span.SetAttributes(attribute.Int("connector.rows", len(rows.Rows)))
	span.End()
	c.metrics.RecordRows(ctx, len(rows.Rows))
	return rows, nil
}

func (c *Connector) plan(ctx context.Context, s *state, req *ndc.QueryRequest, variables map[string]any) (*planner.Plan, error) {
	_, span := tracer.Start(ctx, "connector.plan")
	defer span.End()

	start := time.Now()
	plan, err := planner.PlanQuery(req, s.desc, variables, c.planOptions()...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	analysis := gqldoc.Analyze(plan.QueryText, "")
	c.metrics.RecordPlan(ctx, time.Since(start), analysis.SelectionDepth, analysis.FieldCount)
	span.SetAttributes(
		attribute.Int("connector.query.depth", analysis.SelectionDepth),
		attribute.Int("connector.query.fields", analysis.FieldCount),
		attribute.String("connector.query.hash", analysis.Hash),
	)
	c.logger.Debug("query planned",
		slog.String("collection", req.Collection),
		slog.String("query_hash", analysis.Hash),
		slog.String("query", plan.QueryText),
	)
	return plan, nil
}

// execute runs the compiled text. Variables were substituted while planning,
// so the executor receives none.
func (c *Connector) execute(ctx context.Context, s *state, plan *planner.Plan) (map[string]any, error) {
	ctx, span := tracer.Start(ctx, "connector.execute")
	defer span.End()

	start := time.Now()
	raw, err := s.exec.Execute(ctx, plan.QueryText, nil)
	c.metrics.RecordExecute(ctx, time.Since(start), err == nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, execution.Wrap(plan.QueryText, err)
	}
	return raw, nil
}

func (c *Connector) finish(ctx context.Context, span trace.Span, operation string, start time.Time, err error) {
	defer span.End()
	duration := time.Since(start)
	if err == nil {
		c.metrics.RecordRequest(ctx, operation, duration, "success")
		return
	}

	kind := ErrorKind(err)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(attribute.String("connector.error_kind", kind))
	c.metrics.RecordRequest(ctx, operation, duration, "error")
	c.metrics.RecordError(ctx, operation, kind)

	attrs := []any{
		slog.String("operation", operation),
		slog.String("kind", kind),
		slog.String("error", err.Error()),
		slog.Duration("duration", duration),
	}
	if requestID := logging.GetRequestID(ctx); requestID != "" {
		attrs = append(attrs, slog.String("request_id", requestID))
	}
	c.logger.Warn("connector request failed", attrs...)
}
