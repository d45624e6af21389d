package connector

import (
	"sort"

	"graph-query-connector/internal/ndc"
	"graph-query-connector/internal/schema"
)

const capabilitiesVersion = "0.1.0"

// Capabilities advertises variables (foreach) and explain support.
func (c *Connector) Capabilities() ndc.CapabilitiesResponse {
	return ndc.CapabilitiesResponse{
		Version: capabilitiesVersion,
		Capabilities: ndc.Capabilities{
			Query: ndc.QueryCapabilities{
				Variables: &struct{}{},
				Explain:   &struct{}{},
			},
		},
	}
}

// Schema describes the installed descriptor: every built-in scalar with its
// comparison operators, one object type per collection, and the collections
// with their object relationships as foreign keys.
func (c *Connector) Schema() (*ndc.SchemaResponse, error) {
	s, err := c.snapshot()
	if err != nil {
		return nil, err
	}
	return BuildSchemaResponse(s.desc), nil
}

// BuildSchemaResponse converts desc to its wire description.
func BuildSchemaResponse(desc *schema.Descriptor) *ndc.SchemaResponse {
	resp := &ndc.SchemaResponse{
		ScalarTypes: make(map[string]ndc.ScalarType),
		ObjectTypes: make(map[string]ndc.ObjectType),
		Collections: []ndc.CollectionInfo{},
		Functions:   []any{},
		Procedures:  []any{},
	}
	for _, name := range schema.ScalarTypeNames() {
		resp.ScalarTypes[name] = scalarType(name)
	}

	for _, coll := range desc.Collections() {
		fields := make(map[string]ndc.ObjectField, len(coll.Fields))
		for _, f := range coll.Fields {
			scalarName := f.Type.ScalarName()
			if _, ok := resp.ScalarTypes[scalarName]; !ok {
				resp.ScalarTypes[scalarName] = scalarType(scalarName)
			}
			fields[f.Name] = ndc.ObjectField{
				Description: optionalString(f.Description),
				Type:        wireType(f.Type),
			}
		}
		resp.ObjectTypes[coll.TypeName] = ndc.ObjectType{
			Description: optionalString(coll.Description),
			Fields:      fields,
		}

		foreignKeys := make(map[string]ndc.ForeignKeyConstraint)
		for _, rel := range coll.Relationships {
			if rel.Cardinality != schema.CardinalityOne {
				continue
			}
			foreignKeys[rel.Name] = ndc.ForeignKeyConstraint{
				ColumnMapping:     map[string]string{rel.LocalField: rel.ForeignField},
				ForeignCollection: rel.Target,
			}
		}
		resp.Collections = append(resp.Collections, ndc.CollectionInfo{
			Name:                  coll.Name,
			Description:           optionalString(coll.Description),
			Arguments:             map[string]any{},
			Type:                  coll.TypeName,
			UniquenessConstraints: map[string]ndc.UniquenessConstraint{},
			ForeignKeys:           foreignKeys,
		})
	}
	sort.Slice(resp.Collections, func(i, j int) bool {
		return resp.Collections[i].Name < resp.Collections[j].Name
	})
	return resp
}

func scalarType(name string) ndc.ScalarType {
	ops := schema.ScalarOperators(name)
	comparison := make(map[string]ndc.ComparisonOperatorInfo, len(ops))
	for _, op := range ops {
		comparison[op.Name] = ndc.ComparisonOperatorInfo{
			ArgumentType: ndc.Type{Type: "named", Name: op.ArgumentType},
		}
	}
	return ndc.ScalarType{
		AggregateFunctions:  map[string]any{},
		ComparisonOperators: comparison,
	}
}

func wireType(t schema.FieldType) ndc.Type {
	switch t.Kind {
	case schema.KindNullable:
		inner := wireType(*t.Elem)
		return ndc.Type{Type: "nullable", UnderlyingType: &inner}
	case schema.KindArray:
		elem := wireType(*t.Elem)
		return ndc.Type{Type: "array", ElementType: &elem}
	default:
		return ndc.Type{Type: "named", Name: t.Name}
	}
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
