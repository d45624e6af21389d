package planner

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"graph-query-connector/internal/ndc"
)

func TestCompileFilter_CustomOperatorSuffix(t *testing.T) {
	filter, err := CompileFilter(ndc.BinaryComparison{
		Column:   ndc.Column("age"),
		Operator: ndc.Operator("gt"),
		Value:    ndc.Scalar(30),
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, Filter{"age_GT": 30}, filter)
}

func TestCompileFilter_EqualHasNoSuffix(t *testing.T) {
	filter, err := CompileFilter(ndc.BinaryComparison{
		Column:   ndc.Column("name"),
		Operator: ndc.EqualOperator,
		Value:    ndc.Scalar("Neo"),
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, Filter{"name": "Neo"}, filter)

	filter, err = CompileFilter(ndc.BinaryComparison{
		Column:   ndc.Column("name"),
		Operator: ndc.Operator("eq"),
		Value:    ndc.Scalar("Neo"),
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, Filter{"name": "Neo"}, filter)
}

func TestCompileFilter_OneHopNestsTwoLevels(t *testing.T) {
	filter, err := CompileFilter(ndc.BinaryComparison{
		Column:   ndc.Column("name", ndc.Hop(actorsKey)),
		Operator: ndc.EqualOperator,
		Value:    ndc.Scalar("Keanu"),
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, Filter{"actors": map[string]any{"name": "Keanu"}}, filter)
}

func TestCompileFilter_MultiHopFold(t *testing.T) {
	target := ndc.Column("title", ndc.Hop(actorsKey), ndc.Hop(movieKey))
	filter, err := CompileFilter(ndc.UnaryComparison{Column: target, Operator: "is_null"}, nil)
	require.NoError(t, err)
	assert.Equal(t, Filter{"actors": map[string]any{"movie": map[string]any{"title": nil}}}, filter)
	assert.Len(t, target.Path, 2, "path must not be mutated")
	assert.Equal(t, actorsKey, target.Path[0].Relationship)
}

func TestCompileFilter_PlainHopKey(t *testing.T) {
	filter, err := CompileFilter(ndc.BinaryComparison{
		Column:   ndc.Column("name", ndc.Hop("actors")),
		Operator: ndc.Operator("contains"),
		Value:    ndc.Scalar("ee"),
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, Filter{"actors": map[string]any{"name_CONTAINS": "ee"}}, filter)
}

func TestCompileFilter_HopPredicateIsConjoined(t *testing.T) {
	hop := ndc.Hop(actorsKey)
	hop.Predicate = ndc.BinaryComparison{Column: ndc.Column("age"), Operator: ndc.Operator("gte"), Value: ndc.Scalar(18)}
	filter, err := CompileFilter(ndc.BinaryComparison{
		Column:   ndc.Column("name", hop),
		Operator: ndc.EqualOperator,
		Value:    ndc.Scalar("Keanu"),
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, Filter{"actors": map[string]any{
		"AND": []any{map[string]any{"age_GTE": 18}, map[string]any{"name": "Keanu"}},
	}}, filter)

	hop.Predicate = ndc.And{Expressions: []ndc.Expression{}}
	filter, err = CompileFilter(ndc.BinaryComparison{Column: ndc.Column("name", hop), Operator: ndc.EqualOperator, Value: ndc.Scalar("Keanu")}, nil)
	require.NoError(t, err)
	assert.Equal(t, Filter{"actors": map[string]any{"name": "Keanu"}}, filter)
}

func TestCompileFilter_Connectives(t *testing.T) {
	filter, err := CompileFilter(ndc.Or{Expressions: []ndc.Expression{
		ndc.Not{Expression: ndc.UnaryComparison{Column: ndc.Column("released"), Operator: "is_null"}},
		ndc.And{Expressions: []ndc.Expression{}},
	}}, nil)
	require.NoError(t, err)
	assert.Equal(t, Filter{"OR": []any{
		map[string]any{"NOT": map[string]any{"released": nil}},
		map[string]any{"AND": []any{}},
	}}, filter)
}

func TestCompileFilter_Variables(t *testing.T) {
	expr := ndc.BinaryArrayComparison{
		Column:   ndc.Column("id"),
		Operator: "in",
		Values:   []ndc.ComparisonValue{ndc.Variable("first"), ndc.Scalar("m2")},
	}
	filter, err := CompileFilter(expr, map[string]any{"first": json.Number("7")})
	require.NoError(t, err)
	assert.Equal(t, Filter{"id_IN": []any{json.Number("7"), "m2"}}, filter)

	_, err = CompileFilter(expr, nil)
	assert.ErrorIs(t, err, ErrUnboundVariable)

	_, err = CompileFilter(expr, map[string]any{"second": 1})
	assert.ErrorIs(t, err, ErrUnboundVariable)
}

func TestCompileFilter_UnsupportedOperators(t *testing.T) {
	column := ndc.Column("other")
	rootColumn := ndc.ComparisonTarget{Type: ndc.TargetRootCollectionColumn, Name: "id"}
	cases := map[string]ndc.Expression{
		"exists":           ndc.Exists{InCollection: ndc.ExistsInCollection{Type: "related", Relationship: actorsKey}},
		"column value":     ndc.BinaryComparison{Column: ndc.Column("name"), Operator: ndc.EqualOperator, Value: ndc.ComparisonValue{Type: ndc.ValueColumn, Column: &column}},
		"array operator":   ndc.BinaryArrayComparison{Column: ndc.Column("id"), Operator: "not_in"},
		"unary operator":   ndc.UnaryComparison{Column: ndc.Column("id"), Operator: "is_empty"},
		"root column":      ndc.BinaryComparison{Column: rootColumn, Operator: ndc.EqualOperator, Value: ndc.Scalar(1)},
		"nested in a list": ndc.And{Expressions: []ndc.Expression{ndc.Exists{}}},
	}
	for name, expr := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := CompileFilter(expr, nil)
			assert.ErrorIs(t, err, ErrUnsupportedOperator)
		})
	}
}

func TestCompileFilter_RendersAsLiteral(t *testing.T) {
	filter, err := CompileFilter(ndc.And{Expressions: []ndc.Expression{
		ndc.BinaryComparison{Column: ndc.Column("title"), Operator: ndc.Operator("starts_with"), Value: ndc.Scalar(`The "One"`)},
		ndc.BinaryComparison{Column: ndc.Column("name", ndc.Hop(actorsKey)), Operator: ndc.EqualOperator, Value: ndc.Scalar("Keanu")},
	}}, nil)
	require.NoError(t, err)

	rendered, err := RenderLiteral(map[string]any(filter))
	require.NoError(t, err)
	assert.Equal(t, `{AND: [{title_STARTS_WITH: "The \"One\""}, {actors: {name: "Keanu"}}]}`, rendered)
}

func TestHopName(t *testing.T) {
	assert.Equal(t, "actors", hopName(actorsKey))
	assert.Equal(t, "actors", hopName("actors"))
	assert.Equal(t, "[broken", hopName("[broken"))
	assert.Equal(t, `["only"]`, hopName(`["only"]`))
}
