package graphstore

import (
	"strconv"
	"strings"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"

	"graph-query-connector/internal/scalars"
	"graph-query-connector/internal/schema"
)

func (s *Store) scalar(name string) *graphql.Scalar {
	switch name {
	case "Int":
		return graphql.Int
	case "Float":
		return graphql.Float
	case "String":
		return graphql.String
	case "Boolean":
		return graphql.Boolean
	case "ID":
		return graphql.ID
	}
	if known, ok := scalars.ForName(name); ok {
		return known
	}

	s.mu.RLock()
	cached, ok := s.scalarCache[name]
	s.mu.RUnlock()
	if ok {
		return cached
	}

	scalar := graphql.NewScalar(graphql.ScalarConfig{
		Name:        name,
		Description: "Opaque " + name + " value passed through unchanged.",
		Serialize: func(value interface{}) interface{} {
			if b, ok := value.([]byte); ok {
				return string(b)
			}
			return value
		},
		ParseValue: func(value interface{}) interface{} {
			return value
		},
		ParseLiteral: parseOpaqueLiteral,
	})

	s.mu.Lock()
	if cached, ok := s.scalarCache[name]; ok {
		s.mu.Unlock()
		return cached
	}
	s.scalarCache[name] = scalar
	s.mu.Unlock()
	return scalar
}

func parseOpaqueLiteral(valueAST ast.Value) interface{} {
	switch v := valueAST.(type) {
	case *ast.StringValue:
		return v.Value
	case *ast.IntValue:
		if n, err := strconv.ParseInt(v.Value, 10, 64); err == nil {
			return n
		}
		return v.Value
	case *ast.FloatValue:
		if f, err := strconv.ParseFloat(v.Value, 64); err == nil {
			return f
		}
		return v.Value
	case *ast.BooleanValue:
		return v.Value
	case *ast.EnumValue:
		return v.Value
	case *ast.ObjectValue:
		obj := make(map[string]interface{}, len(v.Fields))
		for _, f := range v.Fields {
			obj[f.Name.Value] = parseOpaqueLiteral(f.Value)
		}
		return obj
	case *ast.ListValue:
		list := make([]interface{}, len(v.Values))
		for i, item := range v.Values {
			list[i] = parseOpaqueLiteral(item)
		}
		return list
	}
	return nil
}

// whereInput builds <Type>Where with one key per supported column operator,
// relationship keys for EXISTS filters, and the AND/OR/NOT connectives.
func (s *Store) whereInput(coll *schema.Collection) *graphql.InputObject {
	typeName := coll.TypeName + "Where"
	s.mu.RLock()
	cached, ok := s.whereCache[typeName]
	s.mu.RUnlock()
	if ok {
		return cached
	}

	var inputObj *graphql.InputObject
	inputObj = graphql.NewInputObject(graphql.InputObjectConfig{
		Name: typeName,
		Fields: graphql.InputObjectConfigFieldMapThunk(func() graphql.InputObjectConfigFieldMap {
			fields := graphql.InputObjectConfigFieldMap{}
			for _, f := range coll.Fields {
				// Array columns are stored as JSON text and are not filterable.
				if f.Type.IsArray() {
					continue
				}
				s.addColumnFilters(fields, f)
			}
			for _, rel := range coll.Relationships {
				target, ok := s.desc.Collection(rel.Target)
				if !ok {
					continue
				}
				nested := s.whereInput(target)
				fields[rel.Name] = &graphql.InputObjectFieldConfig{Type: nested}
				fields[rel.Name+"_NOT"] = &graphql.InputObjectFieldConfig{Type: nested}
				if rel.Cardinality != schema.CardinalityOne {
					for _, suffix := range []string{"_SOME", "_NONE", "_ALL"} {
						fields[rel.Name+suffix] = &graphql.InputObjectFieldConfig{Type: nested}
					}
				}
			}
			fields["AND"] = &graphql.InputObjectFieldConfig{Type: graphql.NewList(graphql.NewNonNull(inputObj))}
			fields["OR"] = &graphql.InputObjectFieldConfig{Type: graphql.NewList(graphql.NewNonNull(inputObj))}
			fields["NOT"] = &graphql.InputObjectFieldConfig{Type: inputObj}
			return fields
		}),
	})

	s.mu.Lock()
	if cached, ok := s.whereCache[typeName]; ok {
		s.mu.Unlock()
		return cached
	}
	s.whereCache[typeName] = inputObj
	s.mu.Unlock()
	return inputObj
}

func (s *Store) addColumnFilters(fields graphql.InputObjectConfigFieldMap, f schema.Field) {
	scalarName := f.Type.ScalarName()
	valueType := s.scalar(scalarName)
	listType := graphql.NewList(graphql.NewNonNull(valueType))

	fields[f.Name] = &graphql.InputObjectFieldConfig{Type: valueType}
	fields[f.Name+"_IN"] = &graphql.InputObjectFieldConfig{Type: listType}
	fields[f.Name+"_NOT_IN"] = &graphql.InputObjectFieldConfig{Type: listType}
	for _, op := range schema.ScalarOperators(scalarName) {
		// Distance filters need a spatial backend.
		if op.Name == "distance" {
			continue
		}
		fields[f.Name+"_"+strings.ToUpper(op.Name)] = &graphql.InputObjectFieldConfig{Type: valueType}
	}
	if _, ok := fields[f.Name+"_NOT"]; !ok {
		fields[f.Name+"_NOT"] = &graphql.InputObjectFieldConfig{Type: valueType}
	}
}

func (s *Store) sortInput(coll *schema.Collection) *graphql.InputObject {
	typeName := coll.TypeName + "Sort"
	s.mu.RLock()
	cached, ok := s.sortCache[typeName]
	s.mu.RUnlock()
	if ok {
		return cached
	}

	fields := graphql.InputObjectConfigFieldMap{}
	for _, f := range coll.Fields {
		if f.Type.IsArray() {
			continue
		}
		fields[f.Name] = &graphql.InputObjectFieldConfig{Type: s.sortDirectionEnum()}
	}
	inputObj := graphql.NewInputObject(graphql.InputObjectConfig{
		Name:   typeName,
		Fields: fields,
	})

	s.mu.Lock()
	if cached, ok := s.sortCache[typeName]; ok {
		s.mu.Unlock()
		return cached
	}
	s.sortCache[typeName] = inputObj
	s.mu.Unlock()
	return inputObj
}

func (s *Store) optionsInput(coll *schema.Collection) *graphql.InputObject {
	typeName := coll.TypeName + "Options"
	s.mu.RLock()
	cached, ok := s.optionsCache[typeName]
	s.mu.RUnlock()
	if ok {
		return cached
	}

	fields := graphql.InputObjectConfigFieldMap{
		"limit":  &graphql.InputObjectFieldConfig{Type: graphql.Int},
		"offset": &graphql.InputObjectFieldConfig{Type: graphql.Int},
	}
	if sortable(coll) {
		fields["sort"] = &graphql.InputObjectFieldConfig{Type: graphql.NewList(graphql.NewNonNull(s.sortInput(coll)))}
	}
	inputObj := graphql.NewInputObject(graphql.InputObjectConfig{
		Name:   typeName,
		Fields: fields,
	})

	s.mu.Lock()
	if cached, ok := s.optionsCache[typeName]; ok {
		s.mu.Unlock()
		return cached
	}
	s.optionsCache[typeName] = inputObj
	s.mu.Unlock()
	return inputObj
}

func sortable(coll *schema.Collection) bool {
	for _, f := range coll.Fields {
		if !f.Type.IsArray() {
			return true
		}
	}
	return false
}

func (s *Store) sortDirectionEnum() *graphql.Enum {
	s.mu.RLock()
	cached := s.sortDirection
	s.mu.RUnlock()
	if cached != nil {
		return cached
	}

	enumValue := graphql.NewEnum(graphql.EnumConfig{
		Name: "SortDirection",
		Values: graphql.EnumValueConfigMap{
			"ASC":  &graphql.EnumValueConfig{Value: "ASC"},
			"DESC": &graphql.EnumValueConfig{Value: "DESC"},
		},
	})

	s.mu.Lock()
	if s.sortDirection == nil {
		s.sortDirection = enumValue
	}
	cached = s.sortDirection
	s.mu.Unlock()
	return cached
}
