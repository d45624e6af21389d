package schema

import "sort"

// Operators available on every scalar, independent of the table below.
const (
	OperatorEqual  = "eq"
	OperatorIsNull = "is_null"
	OperatorIn     = "in"
)

// ComparisonOperator is a named binary operator and the scalar type its
// argument must have.
type ComparisonOperator struct {
	Name         string
	ArgumentType string
}

var (
	orderedOperators = []string{"not", "gt", "lt", "gte", "lte"}
	stringOperators  = []string{"not", "contains", "starts_with", "ends_with", "not_contains", "not_starts_with", "not_ends_with"}
	spatialOperators = []string{"not", "distance", "gt", "lt", "gte", "lte"}
)

// scalarOperators lists the custom comparison operators the graph dialect
// generates filter suffixes for, per built-in scalar.
var scalarOperators = map[string][]ComparisonOperator{
	"Int":            sameArgument("Int", orderedOperators),
	"Float":          sameArgument("Float", orderedOperators),
	"BigInt":         sameArgument("BigInt", orderedOperators),
	"DateTime":       sameArgument("DateTime", orderedOperators),
	"Date":           sameArgument("Date", orderedOperators),
	"Duration":       sameArgument("Duration", orderedOperators),
	"LocalDateTime":  sameArgument("LocalDateTime", orderedOperators),
	"LocalTime":      sameArgument("LocalTime", orderedOperators),
	"Time":           sameArgument("Time", orderedOperators),
	"String":         sameArgument("String", stringOperators),
	"ID":             sameArgument("ID", stringOperators),
	"Boolean":        sameArgument("Boolean", []string{"not"}),
	"Point":          spatial("Point"),
	"CartesianPoint": spatial("CartesianPoint"),
}

func sameArgument(scalar string, names []string) []ComparisonOperator {
	ops := make([]ComparisonOperator, len(names))
	for i, name := range names {
		ops[i] = ComparisonOperator{Name: name, ArgumentType: scalar}
	}
	return ops
}

func spatial(scalar string) []ComparisonOperator {
	ops := make([]ComparisonOperator, len(spatialOperators))
	for i, name := range spatialOperators {
		arg := scalar + "Distance"
		if name == "not" {
			arg = scalar
		}
		ops[i] = ComparisonOperator{Name: name, ArgumentType: arg}
	}
	return ops
}

// ScalarTypeNames returns the built-in scalar names in sorted order.
func ScalarTypeNames() []string {
	names := make([]string, 0, len(scalarOperators))
	for name := range scalarOperators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ScalarOperators returns the custom comparison operators for a scalar.
func ScalarOperators(scalar string) []ComparisonOperator {
	ops := scalarOperators[scalar]
	out := make([]ComparisonOperator, len(ops))
	copy(out, ops)
	return out
}

// IsBuiltinScalar reports whether scalar has an operator table.
func IsBuiltinScalar(scalar string) bool {
	_, ok := scalarOperators[scalar]
	return ok
}

// SupportsOperator reports whether a binary operator can compare a scalar.
// Equality and membership apply to every scalar.
func SupportsOperator(scalar, op string) bool {
	if op == OperatorEqual || op == OperatorIn {
		return true
	}
	for _, candidate := range scalarOperators[scalar] {
		if candidate.Name == op {
			return true
		}
	}
	return false
}
