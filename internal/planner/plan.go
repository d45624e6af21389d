package planner

import (
	"errors"
	"sort"
	"strings"

	"github.com/graphql-go/graphql/language/ast"

	"graph-query-connector/internal/naming"
	"graph-query-connector/internal/ndc"
	"graph-query-connector/internal/schema"
)

// phantomMarker tags fields injected by the engine that never reach the store.
const phantomMarker = "hasura_phantom_field"

// Plan is the compiled form of a query request.
type Plan struct {
	RootCollection string
	QueryText      string
}

type planOptions struct {
	limits       *PlanLimits
	defaultLimit int
	strict       bool
}

// PlanOption customizes planning behavior.
type PlanOption func(*planOptions)

// WithLimits enforces depth and size limits for a query.
func WithLimits(limits PlanLimits) PlanOption {
	return func(o *planOptions) {
		o.limits = &limits
	}
}

// WithDefaultLimit applies limit n to the root collection when the request
// does not set one.
func WithDefaultLimit(n int) PlanOption {
	return func(o *planOptions) {
		o.defaultLimit = n
	}
}

// WithStrictOperators rejects custom comparison operators that the leaf
// field's scalar type does not define.
func WithStrictOperators() PlanOption {
	return func(o *planOptions) {
		o.strict = true
	}
}

type levelPlanner struct {
	req       *ndc.QueryRequest
	desc      *schema.Descriptor
	variables map[string]any
	options   *planOptions
}

// PlanQuery compiles req into query text for the graph dialect. Every
// collection, field and relationship the request names is checked against
// desc, and variables are substituted into comparisons. It returns a
// *PlanError on failure and never a partial plan.
func PlanQuery(req *ndc.QueryRequest, desc *schema.Descriptor, variables map[string]any, opts ...PlanOption) (*Plan, error) {
	if req == nil || desc == nil {
		return nil, errors.New("query request and schema descriptor are required")
	}

	options := &planOptions{}
	for _, opt := range opts {
		opt(options)
	}

	if options.limits != nil {
		if err := validateLimits(EstimateCost(&req.Query, max(options.defaultLimit, 1)), *options.limits); err != nil {
			return nil, err
		}
	}

	p := levelPlanner{req: req, desc: desc, variables: variables, options: options}
	root, err := p.planLevel(&req.Query, req.Collection, naming.LowerFirst(req.Collection), "", true)
	if err != nil {
		return nil, err
	}

	doc := ast.NewDocument(&ast.Document{Definitions: []ast.Node{
		ast.NewOperationDefinition(&ast.OperationDefinition{
			Operation:    ast.OperationTypeQuery,
			SelectionSet: selectionSet([]ast.Selection{root}),
		}),
	}})
	text, err := printNode(doc)
	if err != nil {
		return nil, unsupportedQuery(req.Collection, "cannot print query: %v", err)
	}
	// The printer drops the operation keyword from anonymous queries.
	return &Plan{RootCollection: req.Collection, QueryText: "query " + text}, nil
}

func (p levelPlanner) planLevel(q *ndc.Query, collectionName, attachAs, alias string, root bool) (*ast.Field, error) {
	coll, ok := p.desc.Collection(collectionName)
	if !ok {
		return nil, schemaViolation(collectionName, "collection %s not found in schema", collectionName)
	}
	if len(q.Fields) == 0 {
		return nil, unsupportedQuery(coll.Name, "fields must be requested")
	}
	if len(q.Aggregates) > 0 {
		return nil, unsupportedQuery(coll.Name, "aggregates are not supported")
	}

	sortList, err := buildSort(coll, q.OrderBy)
	if err != nil {
		return nil, err
	}

	children, err := p.planFields(coll, q.Fields)
	if err != nil {
		return nil, err
	}

	args, err := p.levelArguments(coll, q, sortList, root)
	if err != nil {
		return nil, err
	}

	field, err := newField(alias, attachAs, args, children)
	if err != nil {
		return nil, unsupportedQuery(coll.Name, "%v", err)
	}
	return field, nil
}

func (p levelPlanner) planFields(coll *schema.Collection, fields map[string]ndc.Field) ([]ast.Selection, error) {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		if isPhantom(key) {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	if len(keys) == 0 {
		typename, err := newField("", "__typename", nil, nil)
		if err != nil {
			return nil, err
		}
		return []ast.Selection{typename}, nil
	}

	children := make([]ast.Selection, 0, len(keys))
	for _, key := range keys {
		if !namePattern.MatchString(key) {
			return nil, unsupportedQuery(coll.Name+"."+key, "field key %q is not a valid GraphQL name", key)
		}
		field := fields[key]
		switch field.Type {
		case ndc.FieldColumn:
			column := field.Column
			if column == "" {
				column = key
			}
			if _, ok := coll.Field(column); !ok {
				if _, isRel := coll.Relationship(column); isRel {
					return nil, unsupportedQuery(coll.Name+"."+key, "relationship %s must be selected as a relationship", column)
				}
				return nil, schemaViolation(coll.Name+"."+key, "requested field %s not in schema", column)
			}
			child, err := newField(aliasFor(key, column), column, nil, nil)
			if err != nil {
				return nil, unsupportedQuery(coll.Name+"."+key, "%v", err)
			}
			children = append(children, child)
		case ndc.FieldRelationship:
			child, err := p.planRelationship(coll, key, field)
			if err != nil {
				return nil, err
			}
			children = append(children, child)
		default:
			return nil, unsupportedQuery(coll.Name+"."+key, "field type %q is not supported", field.Type)
		}
	}
	return children, nil
}

func (p levelPlanner) planRelationship(coll *schema.Collection, key string, field ndc.Field) (*ast.Field, error) {
	qualified := coll.Name + "." + key
	if field.Query == nil {
		return nil, unsupportedQuery(qualified, "relationship field has no nested query")
	}

	mappingKey, mapping, ok := p.lookupRelationship(key, field.Relationship)
	if !ok {
		return nil, schemaViolation(qualified, "attempting to resolve relationship field without relationship in collection")
	}

	name := key
	if parsed, ok := relationshipFieldFromKey(mappingKey); ok {
		name = parsed
	}
	rel, ok := coll.Relationship(name)
	if !ok {
		return nil, schemaViolation(qualified, "relationship %s is not declared on %s", name, coll.Name)
	}
	if mapping.TargetCollection != "" && mapping.TargetCollection != rel.Target {
		return nil, schemaViolation(qualified, "relationship targets %s but the request maps it to %s", rel.Target, mapping.TargetCollection)
	}

	return p.planLevel(field.Query, rel.Target, rel.Name, aliasFor(key, rel.Name), false)
}

// lookupRelationship finds the collection_relationships entry for a field:
// the entry named by the field itself, or else the first key, in sorted
// order, whose JSON form names the field.
func (p levelPlanner) lookupRelationship(fieldKey, relKey string) (string, ndc.Relationship, bool) {
	if relKey != "" {
		if mapping, ok := p.req.CollectionRelationships[relKey]; ok {
			return relKey, mapping, true
		}
	}

	keys := make([]string, 0, len(p.req.CollectionRelationships))
	for k := range p.req.CollectionRelationships {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if name, ok := relationshipFieldFromKey(k); ok && name == fieldKey {
			return k, p.req.CollectionRelationships[k], true
		}
	}
	return "", ndc.Relationship{}, false
}

func (p levelPlanner) levelArguments(coll *schema.Collection, q *ndc.Query, sortList []any, root bool) ([]*ast.Argument, error) {
	var args []*ast.Argument

	if q.Predicate != nil {
		c := filterCompiler{
			variables: p.variables,
			scope: &filterScope{
				desc:          p.desc,
				collection:    coll,
				relationships: p.req.CollectionRelationships,
				strict:        p.options.strict,
			},
		}
		filter, err := c.compile(q.Predicate)
		if err != nil {
			return nil, err
		}
		where, err := newArgument("where", map[string]any(filter))
		if err != nil {
			return nil, unsupportedQuery(coll.Name, "cannot render filter: %v", err)
		}
		args = append(args, where)
	}

	limit := q.Limit
	if root && limit == nil && p.options.defaultLimit > 0 {
		n := p.options.defaultLimit
		limit = &n
	}
	options, err := composeOptions(coll.Name, limit, q.Offset, sortList)
	if err != nil {
		return nil, err
	}
	if len(options) > 0 {
		arg, err := newArgument("options", options)
		if err != nil {
			return nil, unsupportedQuery(coll.Name, "cannot render options: %v", err)
		}
		args = append(args, arg)
	}
	return args, nil
}

// composeOptions builds the pagination argument. Zero limits and offsets are
// omitted along with absent ones.
func composeOptions(target string, limit, offset *int, sortList []any) (map[string]any, error) {
	options := map[string]any{}
	if limit != nil {
		if *limit < 0 {
			return nil, unsupportedQuery(target, "limit must be non-negative")
		}
		if *limit > 0 {
			options["limit"] = *limit
		}
	}
	if offset != nil {
		if *offset < 0 {
			return nil, unsupportedQuery(target, "offset must be non-negative")
		}
		if *offset > 0 {
			options["offset"] = *offset
		}
	}
	if len(sortList) > 0 {
		options["sort"] = sortList
	}
	return options, nil
}

func newArgument(name string, v any) (*ast.Argument, error) {
	value, err := literalValue(v)
	if err != nil {
		return nil, err
	}
	return ast.NewArgument(&ast.Argument{Name: ast.NewName(&ast.Name{Value: name}), Value: value}), nil
}

// newField builds one selection. An empty alias selects the field under its
// own name.
func newField(alias, name string, args []*ast.Argument, children []ast.Selection) (*ast.Field, error) {
	field := &ast.Field{Arguments: args}
	if alias != "" {
		aliasName, err := newName(alias)
		if err != nil {
			return nil, err
		}
		field.Alias = aliasName
	}
	fieldName, err := newName(name)
	if err != nil {
		return nil, err
	}
	field.Name = fieldName
	if len(children) > 0 {
		field.SelectionSet = selectionSet(children)
	}
	return ast.NewField(field), nil
}

func selectionSet(selections []ast.Selection) *ast.SelectionSet {
	return ast.NewSelectionSet(&ast.SelectionSet{Selections: selections})
}

func aliasFor(key, name string) string {
	if key == name {
		return ""
	}
	return key
}

func isPhantom(name string) bool {
	return strings.Contains(name, phantomMarker)
}
