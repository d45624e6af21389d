package planner

import (
	"encoding/json"
	"strings"

	"graph-query-connector/internal/ndc"
	"graph-query-connector/internal/schema"
)

// Filter is a where-argument value in the graph dialect's vocabulary:
// leaf keys are <field><_SUFFIX>, connectives are AND, OR and NOT, and
// relationship hops nest as single-key objects.
type Filter map[string]any

// CompileFilter converts a predicate tree into a where filter, substituting
// variables eagerly. Comparison targets are not checked against a schema.
func CompileFilter(expr ndc.Expression, variables map[string]any) (Filter, error) {
	c := filterCompiler{variables: variables}
	return c.compile(expr)
}

// filterScope resolves comparison targets against the descriptor while
// compiling inside PlanQuery.
type filterScope struct {
	desc          *schema.Descriptor
	collection    *schema.Collection
	relationships map[string]ndc.Relationship
	strict        bool
}

type filterCompiler struct {
	variables map[string]any
	scope     *filterScope
}

func (c filterCompiler) compile(expr ndc.Expression) (Filter, error) {
	switch e := expr.(type) {
	case ndc.And:
		return c.compileConnective("AND", e.Expressions)
	case ndc.Or:
		return c.compileConnective("OR", e.Expressions)
	case ndc.Not:
		if e.Expression == nil {
			return nil, unsupportedQuery("NOT", "negation has no operand")
		}
		inner, err := c.compile(e.Expression)
		if err != nil {
			return nil, err
		}
		return Filter{"NOT": map[string]any(inner)}, nil
	case ndc.UnaryComparison:
		if e.Operator != schema.OperatorIsNull {
			return nil, unsupportedOperator(e.Column.Name, "unary operator %q is not supported", e.Operator)
		}
		return c.comparison(e.Column, "", nil)
	case ndc.BinaryComparison:
		suffix, opName := binarySuffix(e.Operator)
		value, err := c.resolveValue(e.Column.Name, e.Value)
		if err != nil {
			return nil, err
		}
		if err := c.checkOperator(e.Column, opName); err != nil {
			return nil, err
		}
		return c.comparison(e.Column, suffix, value)
	case ndc.BinaryArrayComparison:
		if e.Operator != schema.OperatorIn {
			return nil, unsupportedOperator(e.Column.Name, "array operator %q is not supported", e.Operator)
		}
		values := make([]any, 0, len(e.Values))
		for _, v := range e.Values {
			resolved, err := c.resolveValue(e.Column.Name, v)
			if err != nil {
				return nil, err
			}
			values = append(values, resolved)
		}
		return c.comparison(e.Column, "_IN", values)
	case ndc.Exists:
		return nil, unsupportedOperator("exists", "exists expressions are not supported")
	case nil:
		return nil, unsupportedQuery("", "predicate is empty")
	default:
		return nil, unsupportedOperator("", "expression type %T is not supported", expr)
	}
}

func (c filterCompiler) compileConnective(name string, children []ndc.Expression) (Filter, error) {
	compiled := make([]any, 0, len(children))
	for _, child := range children {
		f, err := c.compile(child)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, map[string]any(f))
	}
	return Filter{name: compiled}, nil
}

// binarySuffix maps an operator to its leaf-key suffix. Equality has none.
func binarySuffix(op ndc.BinaryOperator) (suffix, name string) {
	if op.Equal || op.Name == schema.OperatorEqual {
		return "", schema.OperatorEqual
	}
	return "_" + strings.ToUpper(op.Name), op.Name
}

func (c filterCompiler) resolveValue(target string, v ndc.ComparisonValue) (any, error) {
	switch v.Type {
	case ndc.ValueScalar:
		return v.Value, nil
	case ndc.ValueVariable:
		if c.variables == nil {
			return nil, unboundVariable(v.Name)
		}
		bound, ok := c.variables[v.Name]
		if !ok {
			return nil, unboundVariable(v.Name)
		}
		return bound, nil
	case ndc.ValueColumn:
		return nil, unsupportedOperator(target, "comparing against another column is not supported")
	default:
		return nil, unsupportedOperator(target, "comparison value type %q is not supported", v.Type)
	}
}

// comparison builds the leaf {<field><suffix>: value} and nests it under
// each relationship hop, innermost hop first.
func (c filterCompiler) comparison(target ndc.ComparisonTarget, suffix string, value any) (Filter, error) {
	if target.Type != "" && target.Type != ndc.TargetColumn {
		return nil, unsupportedOperator(target.Name, "comparison target type %q is not supported", target.Type)
	}
	if err := c.checkTarget(target); err != nil {
		return nil, err
	}

	leaf := Filter{target.Name + suffix: value}
	nested := leaf
	for i := len(target.Path) - 1; i >= 0; i-- {
		hop := target.Path[i]
		inner := map[string]any(nested)
		if hop.Predicate != nil && !isTriviallyTrue(hop.Predicate) {
			hopFilter, err := c.withinHop(target.Path[:i+1]).compile(hop.Predicate)
			if err != nil {
				return nil, err
			}
			inner = map[string]any{"AND": []any{map[string]any(hopFilter), inner}}
		}
		nested = Filter{hopName(hop.Relationship): inner}
	}
	return nested, nil
}

// hopName extracts the relationship field name from an opaque relationship
// key. Keys of the form [<source type>, "<field>"] name the field second.
func hopName(key string) string {
	if name, ok := relationshipFieldFromKey(key); ok {
		return name
	}
	return key
}

func relationshipFieldFromKey(key string) (string, bool) {
	trimmed := strings.TrimSpace(key)
	if !strings.HasPrefix(trimmed, "[") {
		return "", false
	}
	var parts []json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &parts); err != nil || len(parts) < 2 {
		return "", false
	}
	var name string
	if err := json.Unmarshal(parts[1], &name); err != nil || name == "" {
		return "", false
	}
	return name, true
}

func isTriviallyTrue(expr ndc.Expression) bool {
	and, ok := expr.(ndc.And)
	return ok && len(and.Expressions) == 0
}

// withinHop returns a compiler whose scope is the collection reached by the
// given hops, for compiling hop predicates.
func (c filterCompiler) withinHop(path []ndc.PathElement) filterCompiler {
	if c.scope == nil {
		return filterCompiler{variables: c.variables}
	}
	coll, _, err := c.scope.walk(path)
	if err != nil {
		return filterCompiler{variables: c.variables}
	}
	scope := *c.scope
	scope.collection = coll
	return filterCompiler{variables: c.variables, scope: &scope}
}

func (c filterCompiler) checkTarget(target ndc.ComparisonTarget) error {
	if c.scope == nil {
		return nil
	}
	coll, trail, err := c.scope.walk(target.Path)
	if err != nil {
		return err
	}
	if _, ok := coll.Field(target.Name); !ok {
		return schemaViolation(coll.Name+"."+target.Name, "filter references unknown field %s%s", trail, target.Name)
	}
	return nil
}

func (c filterCompiler) checkOperator(target ndc.ComparisonTarget, op string) error {
	if c.scope == nil || !c.scope.strict {
		return nil
	}
	coll, _, err := c.scope.walk(target.Path)
	if err != nil {
		return err
	}
	field, ok := coll.Field(target.Name)
	if !ok {
		return nil
	}
	scalar := field.Type.ScalarName()
	if !schema.IsBuiltinScalar(scalar) || schema.SupportsOperator(scalar, op) {
		return nil
	}
	return unsupportedOperator(coll.Name+"."+target.Name, "operator %q is not defined for %s", op, scalar)
}

// walk follows relationship hops from the scope's collection and returns the
// collection reached plus a dotted trail for error messages.
func (s *filterScope) walk(path []ndc.PathElement) (*schema.Collection, string, error) {
	coll := s.collection
	var trail strings.Builder
	for _, hop := range path {
		name := hopName(hop.Relationship)
		rel, ok := coll.Relationship(name)
		if !ok {
			return nil, "", schemaViolation(coll.Name+"."+name, "filter traverses undeclared relationship %s", name)
		}
		if mapped, ok := s.relationships[hop.Relationship]; ok && mapped.TargetCollection != "" && mapped.TargetCollection != rel.Target {
			return nil, "", schemaViolation(coll.Name+"."+name, "relationship targets %s but the request maps it to %s", rel.Target, mapped.TargetCollection)
		}
		next, ok := s.desc.Collection(rel.Target)
		if !ok {
			return nil, "", schemaViolation(rel.Target, "relationship %s targets unknown collection", name)
		}
		trail.WriteString(name)
		trail.WriteByte('.')
		coll = next
	}
	return coll, trail.String(), nil
}
