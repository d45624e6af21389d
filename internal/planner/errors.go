package planner

import (
	"errors"
	"fmt"
)

// Error kinds. Use errors.Is to classify a planning failure.
var (
	ErrSchemaViolation     = errors.New("schema violation")
	ErrUnsupportedQuery    = errors.New("unsupported query")
	ErrUnboundVariable     = errors.New("unbound variable")
	ErrUnsupportedOperator = errors.New("unsupported operator")
)

// PlanError is a planning failure naming the offending collection, field or
// variable. No partial plan accompanies it.
type PlanError struct {
	Kind    error
	Target  string
	Message string
}

func (e *PlanError) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Target)
}

func (e *PlanError) Unwrap() error {
	return e.Kind
}

func schemaViolation(target, format string, args ...any) error {
	return &PlanError{Kind: ErrSchemaViolation, Target: target, Message: fmt.Sprintf(format, args...)}
}

func unsupportedQuery(target, format string, args ...any) error {
	return &PlanError{Kind: ErrUnsupportedQuery, Target: target, Message: fmt.Sprintf(format, args...)}
}

func unboundVariable(name string) error {
	return &PlanError{Kind: ErrUnboundVariable, Target: name, Message: "variable is referenced but not bound"}
}

func unsupportedOperator(target, format string, args ...any) error {
	return &PlanError{Kind: ErrUnsupportedOperator, Target: target, Message: fmt.Sprintf(format, args...)}
}
