package ndc

import (
	"encoding/json"
	"fmt"
)

// Expression is a boolean predicate tree node.
type Expression interface {
	expressionType() string
}

// And is a conjunction; an empty And is true.
type And struct {
	Expressions []Expression
}

// Or is a disjunction; an empty Or is false.
type Or struct {
	Expressions []Expression
}

// Not negates its operand.
type Not struct {
	Expression Expression
}

// UnaryComparison applies a unary operator such as is_null to a target.
type UnaryComparison struct {
	Column   ComparisonTarget
	Operator string
}

// BinaryComparison compares a target against a single value.
type BinaryComparison struct {
	Column   ComparisonTarget
	Operator BinaryOperator
	Value    ComparisonValue
}

// BinaryArrayComparison compares a target against a list of values.
type BinaryArrayComparison struct {
	Column   ComparisonTarget
	Operator string
	Values   []ComparisonValue
}

// Exists tests for related or unrelated rows matching a predicate.
type Exists struct {
	InCollection ExistsInCollection
	Predicate    Expression
}

// ExistsInCollection names the collection an Exists expression ranges over.
type ExistsInCollection struct {
	Type         string              `json:"type"`
	Relationship string              `json:"relationship,omitempty"`
	Collection   string              `json:"collection,omitempty"`
	Arguments    map[string]Argument `json:"arguments,omitempty"`
}

func (And) expressionType() string                   { return "and" }
func (Or) expressionType() string                    { return "or" }
func (Not) expressionType() string                   { return "not" }
func (UnaryComparison) expressionType() string       { return "unary_comparison_operator" }
func (BinaryComparison) expressionType() string      { return "binary_comparison_operator" }
func (BinaryArrayComparison) expressionType() string { return "binary_array_comparison_operator" }
func (Exists) expressionType() string                { return "exists" }

// BinaryOperator is Equal or a named custom operator.
type BinaryOperator struct {
	Equal bool
	Name  string
}

// EqualOperator is the built-in equality operator.
var EqualOperator = BinaryOperator{Equal: true}

// Operator returns a named custom operator.
func Operator(name string) BinaryOperator {
	return BinaryOperator{Name: name}
}

// UnmarshalJSON accepts {"type":"equal"}, {"type":"other","name":"gt"} and bare "gt"/"eq".
func (o *BinaryOperator) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		if name == "eq" || name == "_eq" {
			*o = EqualOperator
		} else {
			*o = Operator(name)
		}
		return nil
	}
	var aux struct {
		Type string `json:"type"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	switch aux.Type {
	case "equal":
		*o = EqualOperator
	case "other":
		if aux.Name == "" {
			return fmt.Errorf("%w: custom operator has no name", ErrInvalidRequest)
		}
		*o = Operator(aux.Name)
	default:
		return fmt.Errorf("%w: unknown operator type %q", ErrInvalidRequest, aux.Type)
	}
	return nil
}

// MarshalJSON writes the tagged object form.
func (o BinaryOperator) MarshalJSON() ([]byte, error) {
	if o.Equal {
		return []byte(`{"type":"equal"}`), nil
	}
	return json.Marshal(struct {
		Type string `json:"type"`
		Name string `json:"name"`
	}{Type: "other", Name: o.Name})
}

// Target kinds.
const (
	TargetColumn               = "column"
	TargetRootCollectionColumn = "root_collection_column"
)

// ComparisonTarget names a field, optionally reached through relationship hops.
type ComparisonTarget struct {
	Type string        `json:"type"`
	Name string        `json:"name"`
	Path []PathElement `json:"path"`
}

// Column returns a column target on the current collection.
func Column(name string, path ...PathElement) ComparisonTarget {
	return ComparisonTarget{Type: TargetColumn, Name: name, Path: path}
}

// PathElement is one relationship hop; Relationship is an opaque key into
// the request's collection_relationships.
type PathElement struct {
	Relationship string
	Arguments    map[string]Argument
	Predicate    Expression
}

// Hop returns a path element for a relationship key.
func Hop(relationship string) PathElement {
	return PathElement{Relationship: relationship, Arguments: map[string]Argument{}}
}

type pathElementJSON struct {
	Relationship string              `json:"relationship"`
	Arguments    map[string]Argument `json:"arguments"`
	Predicate    json.RawMessage     `json:"predicate,omitempty"`
}

// UnmarshalJSON decodes the optional hop predicate.
func (p *PathElement) UnmarshalJSON(data []byte) error {
	var aux pathElementJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	p.Relationship, p.Arguments, p.Predicate = aux.Relationship, aux.Arguments, nil
	if !isNull(aux.Predicate) {
		pred, err := decodeExpression(aux.Predicate)
		if err != nil {
			return err
		}
		p.Predicate = pred
	}
	return nil
}

// MarshalJSON writes the hop predicate when present.
func (p PathElement) MarshalJSON() ([]byte, error) {
	aux := pathElementJSON{Relationship: p.Relationship, Arguments: p.Arguments}
	if aux.Arguments == nil {
		aux.Arguments = map[string]Argument{}
	}
	if p.Predicate != nil {
		raw, err := json.Marshal(p.Predicate)
		if err != nil {
			return nil, err
		}
		aux.Predicate = raw
	}
	return json.Marshal(aux)
}

// Value kinds.
const (
	ValueScalar   = "scalar"
	ValueVariable = "variable"
	ValueColumn   = "column"
)

// ComparisonValue is Scalar(value) | Variable(name) | Column(target).
type ComparisonValue struct {
	Type   string
	Value  any
	Name   string
	Column *ComparisonTarget
}

// Scalar returns a literal comparison value.
func Scalar(v any) ComparisonValue {
	return ComparisonValue{Type: ValueScalar, Value: v}
}

// Variable returns a comparison value bound at plan time.
func Variable(name string) ComparisonValue {
	return ComparisonValue{Type: ValueVariable, Name: name}
}

// UnmarshalJSON keeps scalar numbers exact.
func (v *ComparisonValue) UnmarshalJSON(data []byte) error {
	var aux struct {
		Type   string            `json:"type"`
		Value  json.RawMessage   `json:"value"`
		Name   string            `json:"name"`
		Column *ComparisonTarget `json:"column"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*v = ComparisonValue{Type: aux.Type, Name: aux.Name, Column: aux.Column}
	switch aux.Type {
	case ValueScalar:
		if !isNull(aux.Value) {
			if err := decodeNumbers(aux.Value, &v.Value); err != nil {
				return err
			}
		}
	case ValueVariable:
		if aux.Name == "" {
			return fmt.Errorf("%w: variable value has no name", ErrInvalidRequest)
		}
	case ValueColumn:
	default:
		return fmt.Errorf("%w: unknown comparison value type %q", ErrInvalidRequest, aux.Type)
	}
	return nil
}

// MarshalJSON writes the tagged form.
func (v ComparisonValue) MarshalJSON() ([]byte, error) {
	switch v.Type {
	case ValueVariable:
		return json.Marshal(map[string]any{"type": v.Type, "name": v.Name})
	case ValueColumn:
		return json.Marshal(map[string]any{"type": v.Type, "column": v.Column})
	default:
		return json.Marshal(map[string]any{"type": ValueScalar, "value": v.Value})
	}
}

type expressionJSON struct {
	Type         string              `json:"type"`
	Expressions  []json.RawMessage   `json:"expressions,omitempty"`
	Expression   json.RawMessage     `json:"expression,omitempty"`
	Column       *ComparisonTarget   `json:"column,omitempty"`
	Operator     json.RawMessage     `json:"operator,omitempty"`
	Value        *ComparisonValue    `json:"value,omitempty"`
	Values       []ComparisonValue   `json:"values,omitempty"`
	InCollection *ExistsInCollection `json:"in_collection,omitempty"`
	Predicate    json.RawMessage     `json:"predicate,omitempty"`
	Where        json.RawMessage     `json:"where,omitempty"`
}

func decodeExpression(raw json.RawMessage) (Expression, error) {
	var aux expressionJSON
	if err := json.Unmarshal(raw, &aux); err != nil {
		return nil, err
	}

	switch aux.Type {
	case "and", "or":
		children := make([]Expression, 0, len(aux.Expressions))
		for _, childRaw := range aux.Expressions {
			child, err := decodeExpression(childRaw)
			if err != nil {
				return nil, err
			}
			children = append(children, child)
		}
		if aux.Type == "and" {
			return And{Expressions: children}, nil
		}
		return Or{Expressions: children}, nil

	case "not":
		if isNull(aux.Expression) {
			return nil, fmt.Errorf("%w: not expression has no operand", ErrInvalidRequest)
		}
		child, err := decodeExpression(aux.Expression)
		if err != nil {
			return nil, err
		}
		return Not{Expression: child}, nil

	case "unary_comparison_operator":
		if aux.Column == nil {
			return nil, fmt.Errorf("%w: unary comparison has no column", ErrInvalidRequest)
		}
		var op string
		if err := json.Unmarshal(aux.Operator, &op); err != nil {
			return nil, fmt.Errorf("%w: unary operator: %v", ErrInvalidRequest, err)
		}
		return UnaryComparison{Column: *aux.Column, Operator: op}, nil

	case "binary_comparison_operator":
		if aux.Column == nil || aux.Value == nil {
			return nil, fmt.Errorf("%w: binary comparison needs column and value", ErrInvalidRequest)
		}
		var op BinaryOperator
		if err := json.Unmarshal(aux.Operator, &op); err != nil {
			return nil, err
		}
		return BinaryComparison{Column: *aux.Column, Operator: op, Value: *aux.Value}, nil

	case "binary_array_comparison_operator":
		if aux.Column == nil {
			return nil, fmt.Errorf("%w: array comparison has no column", ErrInvalidRequest)
		}
		var op string
		if err := json.Unmarshal(aux.Operator, &op); err != nil {
			return nil, fmt.Errorf("%w: array operator: %v", ErrInvalidRequest, err)
		}
		return BinaryArrayComparison{Column: *aux.Column, Operator: op, Values: aux.Values}, nil

	case "exists":
		var ex Exists
		if aux.InCollection != nil {
			ex.InCollection = *aux.InCollection
		}
		predRaw := aux.Predicate
		if isNull(predRaw) {
			predRaw = aux.Where
		}
		if !isNull(predRaw) {
			pred, err := decodeExpression(predRaw)
			if err != nil {
				return nil, err
			}
			ex.Predicate = pred
		}
		return ex, nil
	}
	return nil, fmt.Errorf("%w: unknown expression type %q", ErrInvalidRequest, aux.Type)
}

// MarshalJSON implementations write the tagged wire form.

func (e And) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{"type": e.expressionType(), "expressions": nonNilExpressions(e.Expressions)})
}

func (e Or) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{"type": e.expressionType(), "expressions": nonNilExpressions(e.Expressions)})
}

func (e Not) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{"type": e.expressionType(), "expression": e.Expression})
}

func (e UnaryComparison) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{"type": e.expressionType(), "column": e.Column, "operator": e.Operator})
}

func (e BinaryComparison) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{"type": e.expressionType(), "column": e.Column, "operator": e.Operator, "value": e.Value})
}

func (e BinaryArrayComparison) MarshalJSON() ([]byte, error) {
	values := e.Values
	if values == nil {
		values = []ComparisonValue{}
	}
	return json.Marshal(map[string]any{"type": e.expressionType(), "column": e.Column, "operator": e.Operator, "values": values})
}

func (e Exists) MarshalJSON() ([]byte, error) {
	out := map[string]any{"type": e.expressionType(), "in_collection": e.InCollection}
	if e.Predicate != nil {
		out["predicate"] = e.Predicate
	}
	return json.Marshal(out)
}

func nonNilExpressions(exprs []Expression) []Expression {
	if exprs == nil {
		return []Expression{}
	}
	return exprs
}
