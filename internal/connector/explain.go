package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"graph-query-connector/internal/gqldoc"
	"graph-query-connector/internal/ndc"
)

// Explain compiles req without executing it. The request is echoed under
// "queryRequest" and the compiled text under "queryPlan", together with the
// text's depth, field count and hash. When planning fails the failure is
// described in "queryPlan" instead; only a missing configuration or an
// unencodable request is returned as an error. The first variable set, if
// any, is substituted.
func (c *Connector) Explain(ctx context.Context, req *ndc.QueryRequest) (resp *ndc.ExplainResponse, err error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "connector.explain")
	defer func() {
		c.finish(ctx, span, "explain", start, err)
	}()

	s, err := c.snapshot()
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, fmt.Errorf("%w: query request is required", ndc.ErrInvalidRequest)
	}
	span.SetAttributes(attribute.String("connector.collection", req.Collection))

	encoded, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode query request: %w", err)
	}
	details := map[string]string{"queryRequest": string(encoded)}

	var variables map[string]any
	if len(req.Variables) > 0 {
		variables = req.Variables[0]
	}
	plan, planErr := c.plan(ctx, s, req, variables)
	if planErr != nil {
		details["queryPlan"] = "Query failed to plan with message: " + planErr.Error()
		span.SetAttributes(attribute.String("connector.plan_error", ErrorKind(planErr)))
		return &ndc.ExplainResponse{Details: details}, nil
	}

	details["queryPlan"] = plan.QueryText
	analysis := gqldoc.Analyze(plan.QueryText, "")
	if analysis.Err() == nil {
		details["depth"] = strconv.Itoa(analysis.SelectionDepth)
		details["fields"] = strconv.Itoa(analysis.FieldCount)
		details["hash"] = analysis.Hash
	}
	return &ndc.ExplainResponse{Details: details}, nil
}
