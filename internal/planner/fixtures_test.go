package planner

import (
	"testing"

	"graph-query-connector/internal/ndc"
	"graph-query-connector/internal/schema"
)

const actorsKey = `[{"subgraph":"default","name":"Movie"},"actors"]`
const movieKey = `[{"subgraph":"default","name":"Actor"},"movie"]`

func movieSchema(t *testing.T) *schema.Descriptor {
	t.Helper()
	desc, err := schema.New([]schema.Collection{
		{
			Name: "Movies",
			Fields: []schema.Field{
				{Name: "id", Type: schema.Named("ID")},
				{Name: "title", Type: schema.Named("String")},
				{Name: "released", Type: schema.Nullable(schema.Named("Int"))},
				{Name: "tags", Type: schema.Nullable(schema.Array(schema.Named("String")))},
				{Name: "genres", Type: schema.Array(schema.Named("String"))},
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
				{Name: "age", Type: schema.Nullable(schema.Named("Int"))},
				{Name: "movie_id", Type: schema.Named("ID")},
			},
			Relationships: []schema.Relationship{
				{Name: "movie", Target: "Movies", LocalField: "movie_id", ForeignField: "id", Cardinality: schema.CardinalityOne},
			},
		},
	})
	if err != nil {
		t.Fatalf("building schema: %v", err)
	}
	return desc
}

func movieRelationships() map[string]ndc.Relationship {
	return map[string]ndc.Relationship{
		actorsKey: {
			ColumnMapping:    map[string]string{"id": "movie_id"},
			RelationshipType: "array",
			TargetCollection: "Actors",
		},
		movieKey: {
			ColumnMapping:    map[string]string{"movie_id": "id"},
			RelationshipType: "object",
			TargetCollection: "Movies",
		},
	}
}

func moviesRequest(q ndc.Query) *ndc.QueryRequest {
	return &ndc.QueryRequest{
		Collection:              "Movies",
		Query:                   q,
		CollectionRelationships: movieRelationships(),
	}
}

func intPtr(n int) *int {
	return &n
}
