// Package schema holds the Schema Descriptor: the collections a connector
// exposes, their typed fields, and the foreign-key relationships between them.
// A Descriptor is validated once when it is built and is read-only afterwards.
package schema

import (
	"fmt"
	"sort"
	"strings"

	"graph-query-connector/internal/naming"
)

// Cardinality describes how many target rows a relationship yields per source row.
type Cardinality string

const (
	CardinalityMany Cardinality = "array"
	CardinalityOne  Cardinality = "object"
)

// Field is a scalar (or array of scalars) column on a collection.
type Field struct {
	Name        string
	Description string
	Type        FieldType
}

// Relationship is a declared foreign-key edge to another collection.
// Target rows match when target.ForeignField equals source.LocalField.
type Relationship struct {
	Name         string
	Target       string
	LocalField   string
	ForeignField string
	Cardinality  Cardinality
}

// Collection is an externally visible, pluralized set of entities.
type Collection struct {
	Name          string // "Movies"
	TypeName      string // "Movie"
	Table         string // backing table for SQL-backed stores
	Description   string
	Fields        []Field
	Relationships []Relationship

	fieldIndex map[string]int
	relIndex   map[string]int
}

// Field returns the named field.
func (c *Collection) Field(name string) (Field, bool) {
	i, ok := c.fieldIndex[name]
	if !ok {
		return Field{}, false
	}
	return c.Fields[i], true
}

// Relationship returns the named relationship field.
func (c *Collection) Relationship(name string) (Relationship, bool) {
	i, ok := c.relIndex[name]
	if !ok {
		return Relationship{}, false
	}
	return c.Relationships[i], true
}

// HasMember reports whether name is a declared field or relationship.
func (c *Collection) HasMember(name string) bool {
	_, isField := c.fieldIndex[name]
	_, isRel := c.relIndex[name]
	return isField || isRel
}

// FieldNames returns the declared field names in declaration order.
func (c *Collection) FieldNames() []string {
	names := make([]string, len(c.Fields))
	for i, f := range c.Fields {
		names[i] = f.Name
	}
	return names
}

// Descriptor is the validated, immutable schema consumed by the planner.
type Descriptor struct {
	collections []*Collection
	byName      map[string]*Collection
	byType      map[string]*Collection
}

// ValidationError lists every invariant violation found while building a Descriptor.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 1 {
		return "invalid schema: " + e.Problems[0]
	}
	return fmt.Sprintf("invalid schema: %d problems: %s", len(e.Problems), strings.Join(e.Problems, "; "))
}

// Options customizes how defaults are derived for a Descriptor.
type Options struct {
	Namer *naming.Namer
}

// New validates the collections and builds a Descriptor. Missing type names
// default to the singular form of the collection name and missing tables to
// its snake_case form.
func New(collections []Collection, opts ...Options) (*Descriptor, error) {
	var opt Options
	if len(opts) > 0 {
		opt = opts[0]
	}
	namer := opt.Namer
	if namer == nil {
		namer = naming.Default()
	}

	d := &Descriptor{
		collections: make([]*Collection, 0, len(collections)),
		byName:      make(map[string]*Collection, len(collections)),
		byType:      make(map[string]*Collection, len(collections)),
	}
	var problems []string
	addf := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	for i := range collections {
		c := collections[i]
		c.Fields = append([]Field(nil), c.Fields...)
		c.Relationships = append([]Relationship(nil), c.Relationships...)

		if c.Name == "" {
			addf("collection %d has no name", i)
			continue
		}
		if c.TypeName == "" {
			c.TypeName = namer.Singularize(c.Name)
		}
		if c.Table == "" {
			c.Table = naming.ToSnakeCase(c.Name)
		}
		if err := naming.CheckTypeName(c.TypeName); err != nil {
			addf("collection %s: %v", c.Name, err)
		}
		if _, dup := d.byName[c.Name]; dup {
			addf("duplicate collection %s", c.Name)
			continue
		}
		if other, dup := d.byType[c.TypeName]; dup {
			addf("collections %s and %s share type name %s", other.Name, c.Name, c.TypeName)
			continue
		}

		c.fieldIndex = make(map[string]int, len(c.Fields))
		for j, f := range c.Fields {
			if f.Name == "" {
				addf("collection %s: field %d has no name", c.Name, j)
				continue
			}
			if _, dup := c.fieldIndex[f.Name]; dup {
				addf("collection %s: duplicate field %s", c.Name, f.Name)
				continue
			}
			if err := f.Type.validate(); err != nil {
				addf("collection %s: field %s: %v", c.Name, f.Name, err)
			}
			c.fieldIndex[f.Name] = j
		}

		c.relIndex = make(map[string]int, len(c.Relationships))
		for j := range c.Relationships {
			rel := &c.Relationships[j]
			if rel.Name == "" {
				addf("collection %s: relationship %d has no name", c.Name, j)
				continue
			}
			if _, clash := c.fieldIndex[rel.Name]; clash {
				addf("collection %s: relationship %s shadows a field", c.Name, rel.Name)
				continue
			}
			if _, dup := c.relIndex[rel.Name]; dup {
				addf("collection %s: duplicate relationship %s", c.Name, rel.Name)
				continue
			}
			if rel.Cardinality == "" {
				rel.Cardinality = CardinalityMany
			}
			if rel.Cardinality != CardinalityMany && rel.Cardinality != CardinalityOne {
				addf("collection %s: relationship %s has unknown cardinality %q", c.Name, rel.Name, rel.Cardinality)
			}
			c.relIndex[rel.Name] = j
		}

		cp := c
		d.collections = append(d.collections, &cp)
		d.byName[cp.Name] = &cp
		d.byType[cp.TypeName] = &cp
	}

	// Relationship targets and join keys can only be checked once every
	// collection is indexed.
	for _, c := range d.collections {
		for _, rel := range c.Relationships {
			target, ok := d.byName[rel.Target]
			if !ok {
				addf("collection %s: relationship %s targets unknown collection %s", c.Name, rel.Name, rel.Target)
				continue
			}
			if rel.LocalField == "" || rel.ForeignField == "" {
				addf("collection %s: relationship %s has an incomplete join key", c.Name, rel.Name)
				continue
			}
			if _, ok := c.Field(rel.LocalField); !ok {
				addf("collection %s: relationship %s joins on unknown local field %s", c.Name, rel.Name, rel.LocalField)
			}
			if _, ok := target.Field(rel.ForeignField); !ok {
				addf("collection %s: relationship %s joins on unknown field %s.%s", c.Name, rel.Name, target.Name, rel.ForeignField)
			}
		}
	}

	if len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}
	return d, nil
}

// Collection returns the collection registered under its plural name.
func (d *Descriptor) Collection(name string) (*Collection, bool) {
	if d == nil {
		return nil, false
	}
	c, ok := d.byName[name]
	return c, ok
}

// ObjectType returns the collection whose singular type name is typeName.
func (d *Descriptor) ObjectType(typeName string) (*Collection, bool) {
	if d == nil {
		return nil, false
	}
	c, ok := d.byType[typeName]
	return c, ok
}

// Collections returns the collections in declaration order.
func (d *Descriptor) Collections() []*Collection {
	if d == nil {
		return nil
	}
	out := make([]*Collection, len(d.collections))
	copy(out, d.collections)
	return out
}

// CollectionNames returns the sorted collection names.
func (d *Descriptor) CollectionNames() []string {
	if d == nil {
		return nil
	}
	names := make([]string, 0, len(d.byName))
	for name := range d.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
