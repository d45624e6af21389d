package ndc

import "encoding/json"

// Row maps a selected field name to a scalar value or a nested RowSet.
type Row map[string]any

// RowSet is the canonical nested-rows result shape.
type RowSet struct {
	Rows []Row
}

// MarshalJSON always emits a rows array, never null.
func (rs RowSet) MarshalJSON() ([]byte, error) {
	rows := rs.Rows
	if rows == nil {
		rows = []Row{}
	}
	return json.Marshal(struct {
		Rows []Row `json:"rows"`
	}{Rows: rows})
}

// QueryResponse holds one RowSet per variable set, or a single RowSet when
// the request carried no variables.
type QueryResponse []RowSet

// ExplainResponse describes a plan without executing it.
type ExplainResponse struct {
	Details map[string]string `json:"details"`
}

// CapabilitiesResponse advertises the protocol features a connector supports.
type CapabilitiesResponse struct {
	Version      string       `json:"version"`
	Capabilities Capabilities `json:"capabilities"`
}

// Capabilities groups the supported features.
type Capabilities struct {
	Query QueryCapabilities `json:"query"`
}

// QueryCapabilities lists query-level features; a present (empty) object
// means supported.
type QueryCapabilities struct {
	Variables *struct{} `json:"variables,omitempty"`
	Explain   *struct{} `json:"explain,omitempty"`
}

// SchemaResponse describes the collections, types and operators a connector exposes.
type SchemaResponse struct {
	ScalarTypes map[string]ScalarType `json:"scalar_types"`
	ObjectTypes map[string]ObjectType `json:"object_types"`
	Collections []CollectionInfo      `json:"collections"`
	Functions   []any                 `json:"functions"`
	Procedures  []any                 `json:"procedures"`
}

// ScalarType lists the comparison operators applicable to a scalar.
type ScalarType struct {
	AggregateFunctions  map[string]any                    `json:"aggregate_functions"`
	ComparisonOperators map[string]ComparisonOperatorInfo `json:"comparison_operators"`
}

// ComparisonOperatorInfo gives the argument type of a custom operator.
type ComparisonOperatorInfo struct {
	ArgumentType Type `json:"argument_type"`
}

// ObjectType is a named row shape.
type ObjectType struct {
	Description *string                `json:"description"`
	Fields      map[string]ObjectField `json:"fields"`
}

// ObjectField is a typed field of an object type.
type ObjectField struct {
	Description *string `json:"description"`
	Type        Type    `json:"type"`
}

// Type is the wire form of a field type: named, nullable or array.
type Type struct {
	Type           string `json:"type"`
	Name           string `json:"name,omitempty"`
	UnderlyingType *Type  `json:"underlying_type,omitempty"`
	ElementType    *Type  `json:"element_type,omitempty"`
}

// CollectionInfo describes a queryable collection.
type CollectionInfo struct {
	Name                  string                          `json:"name"`
	Description           *string                         `json:"description"`
	Arguments             map[string]any                  `json:"arguments"`
	Type                  string                          `json:"type"`
	UniquenessConstraints map[string]UniquenessConstraint `json:"uniqueness_constraints"`
	ForeignKeys           map[string]ForeignKeyConstraint `json:"foreign_keys"`
}

// UniquenessConstraint lists columns that identify a row.
type UniquenessConstraint struct {
	UniqueColumns []string `json:"unique_columns"`
}

// ForeignKeyConstraint maps local columns to columns of a foreign collection.
type ForeignKeyConstraint struct {
	ColumnMapping     map[string]string `json:"column_mapping"`
	ForeignCollection string            `json:"foreign_collection"`
}
