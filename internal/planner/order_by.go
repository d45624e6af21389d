package planner

import (
	"strings"

	"graph-query-connector/internal/ndc"
	"graph-query-connector/internal/schema"
)

// Sort directions as the graph dialect spells them.
const (
	SortAsc  EnumValue = "ASC"
	SortDesc EnumValue = "DESC"
)

// buildSort validates an order-by clause against the collection and returns
// the dialect's sort list: one single-key {field: DIRECTION} object per
// element, in request order. A nil result means no sort.
func buildSort(coll *schema.Collection, orderBy *ndc.OrderBy) ([]any, error) {
	if orderBy == nil || len(orderBy.Elements) == 0 {
		return nil, nil
	}

	sort := make([]any, 0, len(orderBy.Elements))
	for _, element := range orderBy.Elements {
		target := element.Target
		name := target.Name
		if name == "" {
			name = target.Column
		}
		qualified := coll.Name + "." + name

		if target.Type != "" && target.Type != "column" {
			return nil, unsupportedQuery(qualified, "sorting is only supported on own fields, not %s", target.Type)
		}
		if len(target.Path) > 0 {
			return nil, unsupportedQuery(qualified, "sorting across relationships is not supported")
		}

		field, ok := coll.Field(name)
		if !ok {
			if _, isRel := coll.Relationship(name); isRel {
				return nil, unsupportedQuery(qualified, "cannot sort by relationship field %s", name)
			}
			return nil, schemaViolation(qualified, "sort references unknown field %s", name)
		}
		if field.Type.IsArray() {
			return nil, unsupportedQuery(qualified, "sorting is not supported on array fields")
		}

		direction, err := sortDirection(qualified, element.OrderDirection)
		if err != nil {
			return nil, err
		}
		sort = append(sort, map[string]any{name: direction})
	}
	return sort, nil
}

func sortDirection(target string, d ndc.OrderDirection) (EnumValue, error) {
	switch EnumValue(strings.ToUpper(string(d))) {
	case SortAsc:
		return SortAsc, nil
	case SortDesc:
		return SortDesc, nil
	default:
		return "", unsupportedQuery(target, "unknown sort direction %q", string(d))
	}
}
