// Package transform reshapes a graph-dialect result into row sets. It walks
// the original field selection alongside the raw result, so the output only
// ever contains fields that were both requested and returned.
package transform

import (
	"errors"
	"fmt"

	"graph-query-connector/internal/naming"
	"graph-query-connector/internal/ndc"
)

// ErrMalformedResult is returned when the raw result does not have the shape
// the compiled query text implies.
var ErrMalformedResult = errors.New("malformed result")

// Transform converts the raw result of a planned request into its row set.
// The root collection's rows are read from the key the planner attached the
// root field to.
func Transform(req *ndc.QueryRequest, raw map[string]any) (ndc.RowSet, error) {
	if req == nil {
		return ndc.RowSet{}, errors.New("query request is required")
	}
	root := naming.LowerFirst(req.Collection)
	return toRows(raw[root], &req.Query, root)
}

// TransformQuery converts one raw object of an inner level into a row.
func TransformQuery(q *ndc.Query, raw map[string]any) (ndc.Row, error) {
	return transformRow(q, raw, "")
}

func transformRow(q *ndc.Query, raw map[string]any, path string) (ndc.Row, error) {
	row := make(ndc.Row, len(raw))
	if q == nil {
		return row, nil
	}
	for key, value := range raw {
		field, ok := q.Fields[key]
		if !ok {
			continue
		}
		switch field.Type {
		case ndc.FieldColumn:
			row[key] = value
		case ndc.FieldRelationship:
			nested, err := toRows(value, field.Query, joinPath(path, key))
			if err != nil {
				return nil, err
			}
			row[key] = nested
		}
	}
	return row, nil
}

// toRows normalizes a list, a single object, or nothing into rows.
func toRows(value any, q *ndc.Query, path string) (ndc.RowSet, error) {
	elements := asRows(value)
	rows := make([]ndc.Row, 0, len(elements))
	for i, element := range elements {
		obj, ok := element.(map[string]any)
		if !ok {
			return ndc.RowSet{}, fmt.Errorf("%w: %s[%d] is %T, not an object", ErrMalformedResult, path, i, element)
		}
		row, err := transformRow(q, obj, path)
		if err != nil {
			return ndc.RowSet{}, err
		}
		rows = append(rows, row)
	}
	return ndc.RowSet{Rows: rows}, nil
}

func asRows(value any) []any {
	switch v := value.(type) {
	case nil:
		return nil
	case []any:
		return v
	case []map[string]any:
		out := make([]any, len(v))
		for i := range v {
			out[i] = v[i]
		}
		return out
	default:
		return []any{v}
	}
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}
