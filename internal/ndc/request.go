// Package ndc models the data-connector query protocol: query requests with
// nested field selections, boolean predicate trees, and the row sets returned
// to callers. Wire decoding keeps numeric literals exact via json.Number.
package ndc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrInvalidRequest marks malformed request payloads.
var ErrInvalidRequest = errors.New("invalid request")

// QueryRequest is a query against a single root collection.
type QueryRequest struct {
	Collection              string                  `json:"collection"`
	Query                   Query                   `json:"query"`
	Arguments               map[string]Argument     `json:"arguments"`
	CollectionRelationships map[string]Relationship `json:"collection_relationships"`
	// Variables holds one binding set per requested row set; nil means the
	// request carries no variables and yields exactly one row set.
	Variables []map[string]any `json:"variables"`
}

// Query is one nesting level of a request.
type Query struct {
	Fields     map[string]Field
	Predicate  Expression
	OrderBy    *OrderBy
	Limit      *int
	Offset     *int
	Aggregates map[string]json.RawMessage
}

// FieldKind distinguishes column selections from relationship selections.
type FieldKind string

const (
	FieldColumn       FieldKind = "column"
	FieldRelationship FieldKind = "relationship"
)

// Field is a single field selection: Column or Relationship(nested query).
type Field struct {
	Type         FieldKind           `json:"type"`
	Column       string              `json:"column,omitempty"`
	Relationship string              `json:"relationship,omitempty"`
	Arguments    map[string]Argument `json:"arguments"`
	Query        *Query              `json:"query,omitempty"`
}

// ColumnField selects a column by name.
func ColumnField(column string) Field {
	return Field{Type: FieldColumn, Column: column}
}

// RelationshipField selects a relationship, resolved through the request's
// collection_relationships under key, with a nested query.
func RelationshipField(key string, q Query) Field {
	return Field{Type: FieldRelationship, Relationship: key, Arguments: map[string]Argument{}, Query: &q}
}

// Relationship is an entry of collection_relationships.
type Relationship struct {
	ColumnMapping    map[string]string   `json:"column_mapping"`
	RelationshipType string              `json:"relationship_type"`
	TargetCollection string              `json:"target_collection"`
	Arguments        map[string]Argument `json:"arguments"`
}

// Argument is a literal or variable collection/relationship argument.
type Argument struct {
	Type  string `json:"type"`
	Value any    `json:"value,omitempty"`
	Name  string `json:"name,omitempty"`
}

// OrderDirection is asc or desc.
type OrderDirection string

const (
	Asc  OrderDirection = "asc"
	Desc OrderDirection = "desc"
)

// OrderBy is an ordered list of sort keys.
type OrderBy struct {
	Elements []OrderByElement `json:"elements"`
}

// OrderByElement sorts by one target.
type OrderByElement struct {
	OrderDirection OrderDirection `json:"order_direction"`
	Target         OrderByTarget  `json:"target"`
}

// OrderByTarget is a column (optionally through relationship hops) or an aggregate.
type OrderByTarget struct {
	Type     string        `json:"type"`
	Name     string        `json:"name,omitempty"`
	Column   string        `json:"column,omitempty"`
	Function string        `json:"function,omitempty"`
	Path     []PathElement `json:"path"`
}

// DecodeQueryRequest decodes a request body.
func DecodeQueryRequest(r io.Reader) (*QueryRequest, error) {
	var req QueryRequest
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		if errors.Is(err, ErrInvalidRequest) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if req.Collection == "" {
		return nil, fmt.Errorf("%w: collection is required", ErrInvalidRequest)
	}
	return &req, nil
}

// UnmarshalJSON keeps variable values as json.Number.
func (r *QueryRequest) UnmarshalJSON(data []byte) error {
	var aux struct {
		Collection              string                  `json:"collection"`
		Query                   Query                   `json:"query"`
		Arguments               map[string]Argument     `json:"arguments"`
		CollectionRelationships map[string]Relationship `json:"collection_relationships"`
		Variables               json.RawMessage         `json:"variables"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.Collection = aux.Collection
	r.Query = aux.Query
	r.Arguments = aux.Arguments
	r.CollectionRelationships = aux.CollectionRelationships
	r.Variables = nil
	if isNull(aux.Variables) {
		return nil
	}
	var sets []map[string]any
	if err := decodeNumbers(aux.Variables, &sets); err != nil {
		return fmt.Errorf("%w: variables: %v", ErrInvalidRequest, err)
	}
	r.Variables = sets
	return nil
}

type queryJSON struct {
	Fields     map[string]Field           `json:"fields"`
	Predicate  json.RawMessage            `json:"predicate,omitempty"`
	Where      json.RawMessage            `json:"where,omitempty"`
	OrderBy    *OrderBy                   `json:"order_by,omitempty"`
	Limit      *int                       `json:"limit,omitempty"`
	Offset     *int                       `json:"offset,omitempty"`
	Aggregates map[string]json.RawMessage `json:"aggregates,omitempty"`
}

// UnmarshalJSON accepts both "predicate" and the older "where" key.
func (q *Query) UnmarshalJSON(data []byte) error {
	var aux queryJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	raw := aux.Predicate
	if isNull(raw) {
		raw = aux.Where
	}
	var pred Expression
	if !isNull(raw) {
		var err error
		pred, err = decodeExpression(raw)
		if err != nil {
			return err
		}
	}
	*q = Query{
		Fields:     aux.Fields,
		Predicate:  pred,
		OrderBy:    aux.OrderBy,
		Limit:      aux.Limit,
		Offset:     aux.Offset,
		Aggregates: aux.Aggregates,
	}
	return nil
}

// MarshalJSON writes the predicate under "predicate".
func (q Query) MarshalJSON() ([]byte, error) {
	aux := queryJSON{
		Fields:     q.Fields,
		OrderBy:    q.OrderBy,
		Limit:      q.Limit,
		Offset:     q.Offset,
		Aggregates: q.Aggregates,
	}
	if q.Predicate != nil {
		raw, err := json.Marshal(q.Predicate)
		if err != nil {
			return nil, err
		}
		aux.Predicate = raw
	}
	return json.Marshal(aux)
}

// UnmarshalJSON validates the field kind.
func (f *Field) UnmarshalJSON(data []byte) error {
	type plain Field
	var aux plain
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	switch aux.Type {
	case FieldColumn:
	case FieldRelationship:
		if aux.Query == nil {
			return fmt.Errorf("%w: relationship field %q has no query", ErrInvalidRequest, aux.Relationship)
		}
	default:
		return fmt.Errorf("%w: unknown field type %q", ErrInvalidRequest, aux.Type)
	}
	*f = Field(aux)
	return nil
}

// UnmarshalJSON keeps literal argument values as json.Number.
func (a *Argument) UnmarshalJSON(data []byte) error {
	var aux struct {
		Type  string          `json:"type"`
		Value json.RawMessage `json:"value"`
		Name  string          `json:"name"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	a.Type, a.Name, a.Value = aux.Type, aux.Name, nil
	if !isNull(aux.Value) {
		if err := decodeNumbers(aux.Value, &a.Value); err != nil {
			return err
		}
	}
	return nil
}

func decodeNumbers(raw json.RawMessage, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(v)
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
