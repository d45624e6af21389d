package planner

import (
	"math"

	"graph-query-connector/internal/ndc"
)

// PlanLimits bounds the size of a compiled query. Zero disables a limit.
type PlanLimits struct {
	MaxDepth  int
	MaxFields int
	MaxRows   int
}

// PlanCost captures the estimated cost of a query.
type PlanCost struct {
	Depth  int
	Fields int
	Rows   int
}

// EstimateCost measures a query the way the compiled text will nest: the
// root field is depth 1 and every selected column adds one more level below
// its parent. Rows multiply down relationship levels using each level's
// limit, or fallbackLimit when the level is unbounded.
func EstimateCost(q *ndc.Query, fallbackLimit int) PlanCost {
	if q == nil {
		return PlanCost{}
	}
	return PlanCost{
		Depth:  selectionDepth(q, 1),
		Fields: countFields(q),
		Rows:   estimateRows(q, fallbackLimit),
	}
}

func validateLimits(cost PlanCost, limits PlanLimits) error {
	if limits.MaxDepth > 0 && cost.Depth > limits.MaxDepth {
		return unsupportedQuery("", "query exceeds maximum depth of %d (depth: %d)", limits.MaxDepth, cost.Depth)
	}
	if limits.MaxFields > 0 && cost.Fields > limits.MaxFields {
		return unsupportedQuery("", "query exceeds maximum field count of %d (fields: %d)", limits.MaxFields, cost.Fields)
	}
	if limits.MaxRows > 0 && cost.Rows > limits.MaxRows {
		return unsupportedQuery("", "query exceeds maximum rows of %d (estimated: %d)", limits.MaxRows, cost.Rows)
	}
	return nil
}

func selectionDepth(q *ndc.Query, current int) int {
	maxDepth := current
	for name, f := range q.Fields {
		if isPhantom(name) {
			continue
		}
		depth := current + 1
		if f.Type == ndc.FieldRelationship && f.Query != nil {
			depth = selectionDepth(f.Query, current+1)
		}
		if depth > maxDepth {
			maxDepth = depth
		}
	}
	return maxDepth
}

func countFields(q *ndc.Query) int {
	count := 0
	for name, f := range q.Fields {
		if isPhantom(name) {
			continue
		}
		count++
		if f.Type == ndc.FieldRelationship && f.Query != nil {
			count += countFields(f.Query)
		}
	}
	return count
}

func estimateRows(q *ndc.Query, fallbackLimit int) int {
	limit := fallbackLimit
	if q.Limit != nil && *q.Limit > 0 {
		limit = *q.Limit
	}
	rows := limit
	for _, f := range q.Fields {
		if f.Type == ndc.FieldRelationship && f.Query != nil {
			rows = saturatingAdd(rows, saturatingMul(limit, estimateRows(f.Query, fallbackLimit)))
		}
	}
	return rows
}

// saturatingAdd and saturatingMul clamp at math.MaxInt. Both operands are
// non-negative.
func saturatingAdd(a, b int) int {
	if a > math.MaxInt-b {
		return math.MaxInt
	}
	return a + b
}

func saturatingMul(a, b int) int {
	if a != 0 && b > math.MaxInt/a {
		return math.MaxInt
	}
	return a * b
}
