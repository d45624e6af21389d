package connector

import (
	"context"
	"errors"

	"graph-query-connector/internal/execution"
	"graph-query-connector/internal/ndc"
	"graph-query-connector/internal/planner"
	"graph-query-connector/internal/transform"
)

// Error kinds reported by ErrorKind.
const (
	KindConfigurationMissing = "configuration_missing"
	KindInvalidRequest       = "invalid_request"
	KindSchemaViolation      = "schema_violation"
	KindUnsupportedQuery     = "unsupported_query"
	KindUnboundVariable      = "unbound_variable"
	KindUnsupportedOperator  = "unsupported_operator"
	KindMalformedResult      = "malformed_result"
	KindExecution            = "execution"
	KindCanceled             = "canceled"
	KindInternal             = "internal"
)

// ErrorKind classifies err for metrics and error responses.
func ErrorKind(err error) string {
	var execErr *execution.ExecutionError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfigurationMissing):
		return KindConfigurationMissing
	case errors.Is(err, ndc.ErrInvalidRequest):
		return KindInvalidRequest
	case errors.Is(err, planner.ErrSchemaViolation):
		return KindSchemaViolation
	case errors.Is(err, planner.ErrUnsupportedQuery):
		return KindUnsupportedQuery
	case errors.Is(err, planner.ErrUnboundVariable):
		return KindUnboundVariable
	case errors.Is(err, planner.ErrUnsupportedOperator):
		return KindUnsupportedOperator
	case errors.Is(err, transform.ErrMalformedResult):
		return KindMalformedResult
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	case errors.As(err, &execErr):
		return KindExecution
	default:
		return KindInternal
	}
}
