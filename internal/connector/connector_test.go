package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"graph-query-connector/internal/execution"
	"graph-query-connector/internal/graphstore"
	"graph-query-connector/internal/logging"
	"graph-query-connector/internal/ndc"
	"graph-query-connector/internal/planner"
	"graph-query-connector/internal/schema"
	"graph-query-connector/internal/transform"
)

const actorsKey = `[{"subgraph":"default","name":"Movie"},"actors"]`

func movieDescriptor(t *testing.T) *schema.Descriptor {
	t.Helper()
	desc, err := schema.New([]schema.Collection{
		{
			Name:        "Movies",
			Description: "Feature films",
			Fields: []schema.Field{
				{Name: "id", Type: schema.Named("ID")},
				{Name: "title", Type: schema.Named("String")},
				{Name: "released", Type: schema.Nullable(schema.Named("Int"))},
				{Name: "tags", Type: schema.Nullable(schema.Array(schema.Named("String")))},
			},
			Relationships: []schema.Relationship{
				{Name: "actors", Target: "Actors", LocalField: "id", ForeignField: "movie_id"},
			},
		},
		{
			Name: "Actors",
			Fields: []schema.Field{
				{Name: "id", Type: schema.Named("ID")},
				{Name: "name", Type: schema.Named("String")},
				{Name: "movie_id", Type: schema.Named("ID")},
			},
			Relationships: []schema.Relationship{
				{Name: "movie", Target: "Movies", LocalField: "movie_id", ForeignField: "id", Cardinality: schema.CardinalityOne},
			},
		},
	})
	require.NoError(t, err)
	return desc
}

func titlesReleasedAfter(year ndc.ComparisonValue) *ndc.QueryRequest {
	return &ndc.QueryRequest{
		Collection: "Movies",
		Query: ndc.Query{
			Fields: map[string]ndc.Field{"title": ndc.ColumnField("title")},
			Predicate: ndc.BinaryComparison{
				Column:   ndc.Column("released"),
				Operator: ndc.Operator("gt"),
				Value:    year,
			},
		},
		CollectionRelationships: map[string]ndc.Relationship{},
	}
}

func installed(t *testing.T, exec execution.Executor, opts ...Option) *Connector {
	t.Helper()
	c := New(opts...)
	handle, err := c.Install(movieDescriptor(t), exec, "fp-1")
	require.NoError(t, err)
	t.Cleanup(handle.Release)
	return c
}

func TestConnector_ConfigurationMissing(t *testing.T) {
	c := New()
	ctx := context.Background()
	req := titlesReleasedAfter(ndc.Scalar(1990))

	_, err := c.Query(ctx, req)
	assert.ErrorIs(t, err, ErrConfigurationMissing)
	_, err = c.Explain(ctx, req)
	assert.ErrorIs(t, err, ErrConfigurationMissing)
	_, err = c.Schema()
	assert.ErrorIs(t, err, ErrConfigurationMissing)
	assert.ErrorIs(t, c.Health(ctx), ErrConfigurationMissing)
	assert.Equal(t, KindConfigurationMissing, ErrorKind(err))
	assert.Equal(t, "config is not configured", ErrConfigurationMissing.Error())
}

func TestConnector_InstallAndRelease(t *testing.T) {
	c := New()
	exec := execution.Func(func(ctx context.Context, q string, vars map[string]any) (map[string]any, error) {
		return map[string]any{}, nil
	})

	_, err := c.Install(nil, exec, "")
	assert.Error(t, err)

	first, err := c.Install(movieDescriptor(t), exec, "fp-1")
	require.NoError(t, err)
	assert.Equal(t, "fp-1", c.Fingerprint())

	second, err := c.Install(movieDescriptor(t), exec, "fp-2")
	require.NoError(t, err)
	assert.Equal(t, "fp-2", c.Fingerprint())

	first.Release()
	assert.NotNil(t, c.Descriptor(), "releasing a superseded handle keeps the current snapshot")

	second.Release()
	second.Release()
	assert.Nil(t, c.Descriptor())
	assert.Equal(t, "fp-2", second.Fingerprint())
}

func TestConnector_QueryWithoutVariablesYieldsOneRowSet(t *testing.T) {
	var gotQuery string
	var gotVars map[string]any
	exec := execution.Func(func(ctx context.Context, q string, vars map[string]any) (map[string]any, error) {
		gotQuery, gotVars = q, vars
		return map[string]any{"movies": []any{
			map[string]any{"title": "Matrix"},
		}}, nil
	})
	c := installed(t, exec)

	resp, err := c.Query(context.Background(), titlesReleasedAfter(ndc.Scalar(1990)))
	require.NoError(t, err)
	assert.Equal(t, "query {\n  movies(where: {released_GT: 1990}) {\n    title\n  }\n}\n", gotQuery)
	assert.Nil(t, gotVars)

	encoded, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"rows":[{"title":"Matrix"}]}]`, string(encoded))
}

func TestConnector_QueryEmptyVariableListYieldsNoRowSets(t *testing.T) {
	calls := 0
	exec := execution.Func(func(ctx context.Context, q string, vars map[string]any) (map[string]any, error) {
		calls++
		return map[string]any{}, nil
	})
	c := installed(t, exec)

	req := titlesReleasedAfter(ndc.Variable("year"))
	req.Variables = []map[string]any{}
	resp, err := c.Query(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, resp)
	assert.Zero(t, calls)
}

func TestConnector_QueryDoesNotExecuteFailedPlans(t *testing.T) {
	exec := execution.Func(func(ctx context.Context, q string, vars map[string]any) (map[string]any, error) {
		t.Fatal("executor must not be called")
		return nil, nil
	})
	c := installed(t, exec)

	req := titlesReleasedAfter(ndc.Scalar(1990))
	req.Collection = "Directors"
	_, err := c.Query(context.Background(), req)
	assert.ErrorIs(t, err, planner.ErrSchemaViolation)
	assert.Equal(t, KindSchemaViolation, ErrorKind(err))

	_, err = c.Query(context.Background(), titlesReleasedAfter(ndc.Variable("year")))
	assert.ErrorIs(t, err, planner.ErrUnboundVariable)
}

func TestConnector_QueryExecutionFailureCarriesQueryText(t *testing.T) {
	cause := errors.New("connection refused")
	exec := execution.Func(func(ctx context.Context, q string, vars map[string]any) (map[string]any, error) {
		return nil, cause
	})
	c := installed(t, exec)

	_, err := c.Query(context.Background(), titlesReleasedAfter(ndc.Scalar(1990)))
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)

	var execErr *execution.ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Contains(t, execErr.Query, "released_GT: 1990")
	assert.Equal(t, KindExecution, ErrorKind(err))
}

func TestConnector_FailureLogCarriesRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLogger(logging.Config{Level: "warn", Format: "json", Output: &buf})
	exec := execution.Func(func(ctx context.Context, q string, vars map[string]any) (map[string]any, error) {
		return nil, errors.New("connection refused")
	})
	c := installed(t, exec, WithLogger(logger))

	ctx := logging.WithRequestIDContext(context.Background(), "req-42")
	_, err := c.Query(ctx, titlesReleasedAfter(ndc.Scalar(1990)))
	require.Error(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "connector request failed", entry["msg"])
	assert.Equal(t, "req-42", entry["request_id"])
	assert.Equal(t, KindExecution, entry["kind"])
}

func TestConnector_QueryMalformedResult(t *testing.T) {
	exec := execution.Func(func(ctx context.Context, q string, vars map[string]any) (map[string]any, error) {
		return map[string]any{"movies": []any{"Matrix"}}, nil
	})
	c := installed(t, exec)

	_, err := c.Query(context.Background(), titlesReleasedAfter(ndc.Scalar(1990)))
	assert.ErrorIs(t, err, transform.ErrMalformedResult)
	assert.Equal(t, KindMalformedResult, ErrorKind(err))
}

func TestConnector_QueryAgainstGraphStore(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	desc := movieDescriptor(t)
	exec, err := graphstore.NewExecutor(graphstore.New(desc, graphstore.NewDBQuerier(db)))
	require.NoError(t, err)

	c := New()
	handle, err := c.Install(desc, exec, "fp-1")
	require.NoError(t, err)
	defer handle.Release()

	mock.ExpectQuery("SELECT (.+) FROM `movies` WHERE `movies`.`released` > \\?").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "released", "tags"}).
			AddRow("m1", "Matrix", int64(1999), nil))
	mock.ExpectQuery("SELECT (.+) FROM `movies` WHERE `movies`.`released` > \\?").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "released", "tags"}))

	req := titlesReleasedAfter(ndc.Variable("year"))
	req.Variables = []map[string]any{
		{"year": json.Number("1990")},
		{"year": json.Number("2020")},
	}
	resp, err := c.Query(context.Background(), req)
	require.NoError(t, err)

	encoded, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"rows":[{"title":"Matrix"}]},{"rows":[]}]`, string(encoded))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConnector_Explain(t *testing.T) {
	exec := execution.Func(func(ctx context.Context, q string, vars map[string]any) (map[string]any, error) {
		t.Fatal("explain must not execute")
		return nil, nil
	})
	c := installed(t, exec)

	req := titlesReleasedAfter(ndc.Variable("year"))
	req.Variables = []map[string]any{{"year": 1990}}
	resp, err := c.Explain(context.Background(), req)
	require.NoError(t, err)

	details := resp.Details
	assert.Equal(t, "query {\n  movies(where: {released_GT: 1990}) {\n    title\n  }\n}\n", details["queryPlan"])
	assert.Equal(t, "2", details["depth"])
	assert.Equal(t, "2", details["fields"])
	assert.NotEmpty(t, details["hash"])

	var echoed map[string]any
	require.NoError(t, json.Unmarshal([]byte(details["queryRequest"]), &echoed))
	assert.Equal(t, "Movies", echoed["collection"])
}

func TestConnector_ExplainReportsPlanFailures(t *testing.T) {
	exec := execution.Func(func(ctx context.Context, q string, vars map[string]any) (map[string]any, error) {
		return nil, nil
	})
	c := installed(t, exec)

	req := titlesReleasedAfter(ndc.Scalar(1990))
	req.Collection = "Directors"
	resp, err := c.Explain(context.Background(), req)
	require.NoError(t, err)
	assert.Contains(t, resp.Details["queryPlan"], "Query failed to plan with message: ")
	assert.Contains(t, resp.Details["queryPlan"], "Directors")
	assert.NotContains(t, resp.Details, "hash")
}

func TestConnector_PlanLimits(t *testing.T) {
	exec := execution.Func(func(ctx context.Context, q string, vars map[string]any) (map[string]any, error) {
		return map[string]any{}, nil
	})
	c := installed(t, exec, WithPlanLimits(planner.PlanLimits{MaxDepth: 1}))

	_, err := c.Query(context.Background(), titlesReleasedAfter(ndc.Scalar(1990)))
	assert.ErrorIs(t, err, planner.ErrUnsupportedQuery)
}

func TestConnector_Schema(t *testing.T) {
	c := installed(t, execution.Func(func(ctx context.Context, q string, vars map[string]any) (map[string]any, error) {
		return nil, nil
	}))

	resp, err := c.Schema()
	require.NoError(t, err)

	require.Len(t, resp.Collections, 2)
	assert.Equal(t, "Actors", resp.Collections[0].Name)
	assert.Equal(t, "Actor", resp.Collections[0].Type)
	assert.Equal(t, ndc.ForeignKeyConstraint{
		ColumnMapping:     map[string]string{"movie_id": "id"},
		ForeignCollection: "Movies",
	}, resp.Collections[0].ForeignKeys["movie"])
	assert.Empty(t, resp.Collections[1].ForeignKeys)
	require.NotNil(t, resp.Collections[1].Description)
	assert.Equal(t, "Feature films", *resp.Collections[1].Description)

	movie := resp.ObjectTypes["Movie"]
	assert.Equal(t, ndc.Type{Type: "named", Name: "String"}, movie.Fields["title"].Type)
	tags := movie.Fields["tags"].Type
	assert.Equal(t, "nullable", tags.Type)
	require.NotNil(t, tags.UnderlyingType)
	assert.Equal(t, "array", tags.UnderlyingType.Type)
	assert.Equal(t, "String", tags.UnderlyingType.ElementType.Name)

	intType := resp.ScalarTypes["Int"]
	assert.Contains(t, intType.ComparisonOperators, "gt")
	assert.Equal(t, "Int", intType.ComparisonOperators["gt"].ArgumentType.Name)
	assert.Contains(t, resp.ScalarTypes, "ID")

	encoded, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.Contains(t, string(encoded), `"functions":[]`)
}

func TestConnector_Capabilities(t *testing.T) {
	encoded, err := json.Marshal(New().Capabilities())
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":"0.1.0","capabilities":{"query":{"variables":{},"explain":{}}}}`, string(encoded))
}

type pingingExecutor struct {
	execution.Func
	err error
}

func (p pingingExecutor) Ping(ctx context.Context) error {
	return p.err
}

func TestConnector_Health(t *testing.T) {
	down := errors.New("backend down")
	c := installed(t, pingingExecutor{err: down})
	assert.ErrorIs(t, c.Health(context.Background()), down)

	c = installed(t, pingingExecutor{})
	assert.NoError(t, c.Health(context.Background()))
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "", ErrorKind(nil))
	assert.Equal(t, KindInvalidRequest, ErrorKind(ndc.ErrInvalidRequest))
	assert.Equal(t, KindCanceled, ErrorKind(execution.Wrap("q", context.Canceled)))
	assert.Equal(t, KindInternal, ErrorKind(errors.New("boom")))
	assert.Equal(t, KindUnsupportedOperator, ErrorKind(&planner.PlanError{Kind: planner.ErrUnsupportedOperator}))
}
