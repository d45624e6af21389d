package graphstore

import (
	"context"
	"errors"
	"strings"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/graphql-go/graphql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"graph-query-connector/internal/execution"
	"graph-query-connector/internal/schema"
)

func movieDescriptor(t *testing.T) *schema.Descriptor {
	t.Helper()
	parse := func(s string) schema.FieldType {
		ft, err := schema.ParseFieldType(s)
		require.NoError(t, err)
		return ft
	}
	desc, err := schema.New([]schema.Collection{
		{
			Name: "Movies",
			Fields: []schema.Field{
				{Name: "id", Type: parse("ID!")},
				{Name: "title", Type: parse("String!")},
				{Name: "released", Type: parse("Int")},
				{Name: "tags", Type: parse("[String!]")},
			},
			Relationships: []schema.Relationship{
				{Name: "actors", Target: "Actors", LocalField: "id", ForeignField: "movie_id"},
			},
		},
		{
			Name: "Actors",
			Fields: []schema.Field{
				{Name: "id", Type: parse("ID!")},
				{Name: "name", Type: parse("String!")},
				{Name: "movie_id", Type: parse("ID")},
			},
			Relationships: []schema.Relationship{
				{Name: "movie", Target: "Movies", LocalField: "movie_id", ForeignField: "id", Cardinality: schema.CardinalityOne},
			},
		},
	})
	require.NoError(t, err)
	return desc
}

func newMockStore(t *testing.T, opts ...Option) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	mock.MatchExpectationsInOrder(false)
	return New(movieDescriptor(t), NewDBQuerier(db), opts...), mock
}

func TestBuildSchema_Shape(t *testing.T) {
	store, _ := newMockStore(t)
	s, err := store.BuildSchema()
	require.NoError(t, err)

	movies := s.QueryType().Fields()["movies"]
	require.NotNil(t, movies)
	nonNull, ok := movies.Type.(*graphql.NonNull)
	require.True(t, ok)
	list, ok := nonNull.OfType.(*graphql.List)
	require.True(t, ok)
	assert.Equal(t, "Movie", list.OfType.(*graphql.NonNull).OfType.Name())

	where := s.Type("MovieWhere").(*graphql.InputObject).Fields()
	for _, key := range []string{"title", "title_STARTS_WITH", "title_NOT_IN", "released_GT", "actors", "actors_SOME", "actors_NONE", "AND", "OR", "NOT"} {
		assert.Contains(t, where, key)
	}
	assert.NotContains(t, where, "tags")
	assert.NotContains(t, where, "released_CONTAINS")

	actorWhere := s.Type("ActorWhere").(*graphql.InputObject).Fields()
	assert.Contains(t, actorWhere, "movie")
	assert.NotContains(t, actorWhere, "movie_SOME")

	sortFields := s.Type("MovieSort").(*graphql.InputObject).Fields()
	assert.Contains(t, sortFields, "title")
	assert.NotContains(t, sortFields, "tags")

	actor := s.Type("Actor").(*graphql.Object).Fields()
	_, isObject := actor["movie"].Type.(*graphql.Object)
	assert.True(t, isObject, "object relationship should resolve to a single object")
}

func TestBuildSchema_EmptyDescriptor(t *testing.T) {
	desc, err := schema.New(nil)
	require.NoError(t, err)
	s, err := New(desc, nil).BuildSchema()
	require.NoError(t, err)
	assert.Contains(t, s.QueryType().Fields(), "_schema")
}

func TestExecutor_NestedQuery(t *testing.T) {
	store, mock := newMockStore(t)
	exec, err := NewExecutor(store)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT (.+) FROM `movies` WHERE `movies`.`released` > \\? ORDER BY `movies`.`title` ASC LIMIT").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "released", "tags"}).
			AddRow("m1", "Matrix", int64(1999), `["sci-fi"]`).
			AddRow("m2", "Speed", nil, nil))
	mock.ExpectQuery("SELECT (.+) FROM `actors` WHERE `actors`.`movie_id` = \\?").
		WithArgs("m1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "movie_id"}).AddRow("a1", "Keanu", "m1"))
	mock.ExpectQuery("SELECT (.+) FROM `actors` WHERE `actors`.`movie_id` = \\?").
		WithArgs("m2").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "movie_id"}))

	query := "query {\n  movies(where: {released_GT: 1990}, options: {limit: 10, sort: [{title: ASC}]}) {\n    actors {\n      name\n    }\n    tags\n    title\n  }\n}\n"
	data, err := exec.Execute(context.Background(), query, nil)
	require.NoError(t, err)

	movies, ok := data["movies"].([]interface{})
	require.True(t, ok, "movies is %T", data["movies"])
	require.Len(t, movies, 2)

	first := movies[0].(map[string]interface{})
	assert.Equal(t, "Matrix", first["title"])
	assert.Equal(t, []interface{}{"sci-fi"}, first["tags"])
	actors := first["actors"].([]interface{})
	require.Len(t, actors, 1)
	assert.Equal(t, map[string]interface{}{"name": "Keanu"}, actors[0])

	second := movies[1].(map[string]interface{})
	assert.Nil(t, second["tags"])
	assert.Empty(t, second["actors"])

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutor_ObjectRelationship(t *testing.T) {
	store, mock := newMockStore(t)
	exec, err := NewExecutor(store)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT (.+) FROM `actors`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "movie_id"}).
			AddRow("a1", "Keanu", "m1").
			AddRow("a2", "Extra", nil))
	mock.ExpectQuery("SELECT (.+) FROM `movies` WHERE `movies`.`id` = \\?").
		WithArgs("m1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "released", "tags"}).AddRow("m1", "Matrix", int64(1999), nil))

	data, err := exec.Execute(context.Background(), "query {\n  actors {\n    movie {\n      title\n    }\n    name\n  }\n}\n", nil)
	require.NoError(t, err)

	actors := data["actors"].([]interface{})
	require.Len(t, actors, 2)
	assert.Equal(t, map[string]interface{}{"title": "Matrix"}, actors[0].(map[string]interface{})["movie"])
	assert.Nil(t, actors[1].(map[string]interface{})["movie"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutor_ValidationErrors(t *testing.T) {
	store, _ := newMockStore(t)
	exec, err := NewExecutor(store)
	require.NoError(t, err)

	query := "query {\n  movies {\n    budget\n  }\n}\n"
	_, err = exec.Execute(context.Background(), query, nil)
	var execErr *execution.ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, query, execErr.Query)
	require.NotEmpty(t, execErr.Errors)
	assert.Contains(t, execErr.Error(), "budget")
}

func TestExecutor_DatabaseErrorsSurface(t *testing.T) {
	store, mock := newMockStore(t)
	exec, err := NewExecutor(store)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT (.+) FROM `movies`").
		WillReturnError(&mysql.MySQLError{Number: 1142, Message: "SELECT command denied"})

	_, err = exec.Execute(context.Background(), "query {\n  movies {\n    title\n  }\n}\n", nil)
	var execErr *execution.ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Contains(t, execErr.Error(), "access denied")
}

func TestExecutor_Ping(t *testing.T) {
	store, mock := newMockStore(t)
	exec, err := NewExecutor(store)
	require.NoError(t, err)

	mock.ExpectPing()
	assert.NoError(t, exec.Ping(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Error(t, New(movieDescriptor(t), nil).Ping(context.Background()))
}

func TestBuildSelect_Pagination(t *testing.T) {
	store, _ := newMockStore(t, WithDefaultLimit(25))
	movies, _ := store.desc.Collection("Movies")
	actors, _ := store.desc.Collection("Actors")

	query, _, err := store.buildSelect(movies, nil, map[string]interface{}{})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(query, "SELECT `movies`.`id`, `movies`.`title`, `movies`.`released`, `movies`.`tags` FROM `movies`"), query)
	assert.Contains(t, query, "LIMIT")

	query, _, err = store.buildSelect(actors, &joinKey{column: "movie_id", value: "m1"}, nil)
	require.NoError(t, err)
	assert.NotContains(t, query, "LIMIT", "default limit applies to root lists only")

	query, _, err = store.buildSelect(movies, nil, map[string]interface{}{
		"options": map[string]interface{}{"offset": 5, "limit": nil},
	})
	require.NoError(t, err)
	assert.Contains(t, query, "LIMIT")
	assert.Contains(t, query, "OFFSET")

	_, _, err = store.buildSelect(movies, nil, map[string]interface{}{
		"options": map[string]interface{}{"limit": -1},
	})
	assert.Error(t, err)

	query, _, err = store.buildSelect(movies, nil, map[string]interface{}{
		"options": map[string]interface{}{"sort": []interface{}{
			map[string]interface{}{"released": "DESC"},
			map[string]interface{}{"title": "ASC"},
		}},
	})
	require.NoError(t, err)
	assert.Contains(t, query, "ORDER BY `movies`.`released` DESC, `movies`.`title` ASC")

	_, _, err = store.buildSelect(movies, nil, map[string]interface{}{
		"options": map[string]interface{}{"sort": []interface{}{map[string]interface{}{"budget": "ASC"}}},
	})
	assert.Error(t, err)
}

func TestConvertValue(t *testing.T) {
	assert.Nil(t, convertValue(nil, false))
	assert.Equal(t, "Matrix", convertValue([]byte("Matrix"), false))
	assert.Equal(t, int64(3), convertValue(int64(3), false))
	assert.Equal(t, []any{"a", "b"}, convertValue([]byte(`["a","b"]`), true))
	assert.Equal(t, "not json", convertValue("not json", true))
}

func TestBuildSchema_DialectScalars(t *testing.T) {
	desc, err := schema.New([]schema.Collection{{
		Name: "Screenings",
		Fields: []schema.Field{
			{Name: "id", Type: schema.Named("ID")},
			{Name: "starts_at", Type: schema.Named("DateTime")},
			{Name: "audience", Type: schema.Nullable(schema.Named("BigInt"))},
			{Name: "rating", Type: schema.Nullable(schema.Named("Rating"))},
			{Name: "ticket", Type: schema.Nullable(schema.Named("UUID"))},
		},
	}})
	require.NoError(t, err)

	s, err := New(desc, nil).BuildSchema()
	require.NoError(t, err)

	bigInt, ok := s.Type("BigInt").(*graphql.Scalar)
	require.True(t, ok)
	assert.Equal(t, "42", bigInt.Serialize(int64(42)))

	where := s.Type("ScreeningWhere").(*graphql.InputObject).Fields()
	assert.Contains(t, where, "starts_at_GTE")
	assert.Equal(t, "DateTime", where["starts_at_GTE"].Type.Name())

	rating, ok := s.Type("Rating").(*graphql.Scalar)
	require.True(t, ok)
	assert.Contains(t, rating.Description(), "Opaque")

	ticket, ok := s.Type("UUID").(*graphql.Scalar)
	require.True(t, ok)
	assert.Equal(t, "550e8400-e29b-41d4-a716-446655440000", ticket.Serialize("550E8400-E29B-41D4-A716-446655440000"))
}
