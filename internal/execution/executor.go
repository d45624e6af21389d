// Package execution runs compiled query text against a graph store and
// returns the raw nested result. Executors never retry; a failure surfaces
// once as an *ExecutionError carrying the query text that failed.
package execution

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Executor runs query text with variables and returns the raw "data" object.
type Executor interface {
	Execute(ctx context.Context, queryText string, variables map[string]any) (map[string]any, error)
}

// HealthChecker is implemented by executors that can probe their backend.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Func adapts a function to an Executor.
type Func func(ctx context.Context, queryText string, variables map[string]any) (map[string]any, error)

// Execute calls f.
func (f Func) Execute(ctx context.Context, queryText string, variables map[string]any) (map[string]any, error) {
	return f(ctx, queryText, variables)
}

// GraphQLError is one entry of a GraphQL response's errors list.
type GraphQLError struct {
	Message string         `json:"message"`
	Path    []any          `json:"path,omitempty"`
	Extra   map[string]any `json:"extensions,omitempty"`
}

// ExecutionError is a failed execution. Query is the compiled text that was
// sent, kept for diagnostics.
type ExecutionError struct {
	Query  string
	Cause  error
	Errors []GraphQLError
}

func (e *ExecutionError) Error() string {
	if len(e.Errors) > 0 {
		messages := make([]string, len(e.Errors))
		for i, ge := range e.Errors {
			messages[i] = ge.Message
		}
		return "execution failed: " + strings.Join(messages, "; ")
	}
	if e.Cause == nil {
		return "execution failed"
	}
	return fmt.Sprintf("execution failed: %v", e.Cause)
}

func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// Wrap returns err as an *ExecutionError for queryText, leaving existing
// execution errors untouched.
func Wrap(queryText string, err error) error {
	if err == nil {
		return nil
	}
	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		return err
	}
	return &ExecutionError{Query: queryText, Cause: err}
}
