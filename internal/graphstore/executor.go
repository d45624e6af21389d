package graphstore

import (
	"context"
	"fmt"

	"github.com/graphql-go/graphql"

	"graph-query-connector/internal/execution"
)

// Executor runs compiled query text in-process against a Store's schema.
type Executor struct {
	store  *Store
	schema graphql.Schema
}

// NewExecutor builds the store schema once and returns an executor over it.
func NewExecutor(store *Store) (*Executor, error) {
	s, err := store.BuildSchema()
	if err != nil {
		return nil, fmt.Errorf("failed to build graph schema: %w", err)
	}
	return &Executor{store: store, schema: s}, nil
}

// Schema returns the executable schema, for serving it over HTTP.
func (e *Executor) Schema() graphql.Schema {
	return e.schema
}

// Execute implements execution.Executor.
func (e *Executor) Execute(ctx context.Context, queryText string, variables map[string]any) (map[string]any, error) {
	result := graphql.Do(graphql.Params{
		Schema:         e.schema,
		RequestString:  queryText,
		VariableValues: variables,
		Context:        ctx,
	})
	if err := ctx.Err(); err != nil {
		return nil, execution.Wrap(queryText, err)
	}
	if len(result.Errors) > 0 {
		errs := make([]execution.GraphQLError, len(result.Errors))
		for i, fe := range result.Errors {
			errs[i] = execution.GraphQLError{Message: fe.Message, Path: fe.Path, Extra: fe.Extensions}
		}
		return nil, &execution.ExecutionError{Query: queryText, Errors: errs}
	}
	data, _ := result.Data.(map[string]interface{})
	if data == nil {
		data = map[string]any{}
	}
	return data, nil
}

// Ping implements execution.HealthChecker.
func (e *Executor) Ping(ctx context.Context) error {
	return e.store.Ping(ctx)
}
