// Package graphstore serves the graph dialect from a relational database.
// It builds a graphql-go schema from a Schema Descriptor: one list field per
// collection with where/options arguments, and relationship fields resolved
// by foreign-key lookups. SQL is generated with squirrel.
package graphstore

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	sq "github.com/Masterminds/squirrel"
	"github.com/go-sql-driver/mysql"
	"github.com/graphql-go/graphql"
	"go.opentelemetry.io/otel/attribute"

	"graph-query-connector/internal/naming"
	"graph-query-connector/internal/schema"
	"graph-query-connector/internal/sqlutil"
)

const (
	mysqlErrDBAccessDenied     = 1044
	mysqlErrTableAccessDenied  = 1142
	mysqlErrColumnAccessDenied = 1143
)

var errAccessDenied = errors.New("access denied")

// Store resolves graph-dialect queries against SQL tables described by a
// Descriptor. Types are built lazily and cached, so a Store serves exactly
// one descriptor.
type Store struct {
	desc         *schema.Descriptor
	db           Querier
	defaultLimit int

	mu            sync.RWMutex
	typeCache     map[string]*graphql.Object
	whereCache    map[string]*graphql.InputObject
	sortCache     map[string]*graphql.InputObject
	optionsCache  map[string]*graphql.InputObject
	scalarCache   map[string]*graphql.Scalar
	sortDirection *graphql.Enum
}

// Option configures a Store.
type Option func(*Store)

// WithDefaultLimit caps root list fields that do not pass options.limit.
func WithDefaultLimit(n int) Option {
	return func(s *Store) {
		s.defaultLimit = n
	}
}

// New creates a store over db for desc.
func New(desc *schema.Descriptor, db Querier, opts ...Option) *Store {
	s := &Store{
		desc:         desc,
		db:           db,
		typeCache:    make(map[string]*graphql.Object),
		whereCache:   make(map[string]*graphql.InputObject),
		sortCache:    make(map[string]*graphql.InputObject),
		optionsCache: make(map[string]*graphql.InputObject),
		scalarCache:  make(map[string]*graphql.Scalar),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Descriptor returns the descriptor the store serves.
func (s *Store) Descriptor() *schema.Descriptor {
	return s.desc
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	if s.db == nil {
		return errors.New("graph store has no database")
	}
	return s.db.PingContext(ctx)
}

// BuildSchema builds the graph-dialect schema for every collection.
func (s *Store) BuildSchema() (graphql.Schema, error) {
	queryFields := graphql.Fields{}
	for _, coll := range s.desc.Collections() {
		queryFields[naming.LowerFirst(coll.Name)] = &graphql.Field{
			Type:        graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(s.objectType(coll)))),
			Description: coll.Description,
			Args:        s.listArgs(coll),
			Resolve:     s.listResolver(coll),
		}
	}

	// GraphQL requires at least one query field.
	if len(queryFields) == 0 {
		queryFields["_schema"] = &graphql.Field{
			Type: graphql.String,
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return "No collections configured", nil
			},
			Description: "Placeholder field when the descriptor has no collections",
		}
	}

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: graphql.NewObject(graphql.ObjectConfig{
			Name:   "Query",
			Fields: queryFields,
		}),
	})
}

func (s *Store) objectType(coll *schema.Collection) *graphql.Object {
	s.mu.RLock()
	cached, ok := s.typeCache[coll.TypeName]
	s.mu.RUnlock()
	if ok {
		return cached
	}

	// Fields are built lazily so relationship cycles resolve to the cached type.
	objType := graphql.NewObject(graphql.ObjectConfig{
		Name:        coll.TypeName,
		Description: coll.Description,
		Fields: graphql.FieldsThunk(func() graphql.Fields {
			return s.buildFields(coll)
		}),
	})

	s.mu.Lock()
	if cached, ok := s.typeCache[coll.TypeName]; ok {
		s.mu.Unlock()
		return cached
	}
	s.typeCache[coll.TypeName] = objType
	s.mu.Unlock()
	return objType
}

func (s *Store) buildFields(coll *schema.Collection) graphql.Fields {
	fields := graphql.Fields{}
	for _, f := range coll.Fields {
		fields[f.Name] = &graphql.Field{
			Type:        s.outputType(f.Type),
			Description: f.Description,
		}
	}
	for _, rel := range coll.Relationships {
		target, ok := s.desc.Collection(rel.Target)
		if !ok {
			continue
		}
		var typ graphql.Output = s.objectType(target)
		if rel.Cardinality != schema.CardinalityOne {
			typ = graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(typ)))
		}
		fields[rel.Name] = &graphql.Field{
			Type:    typ,
			Args:    s.listArgs(target),
			Resolve: s.relationshipResolver(rel, target),
		}
	}
	return fields
}

func (s *Store) listArgs(coll *schema.Collection) graphql.FieldConfigArgument {
	return graphql.FieldConfigArgument{
		"where":   &graphql.ArgumentConfig{Type: s.whereInput(coll)},
		"options": &graphql.ArgumentConfig{Type: s.optionsInput(coll)},
	}
}

func (s *Store) outputType(t schema.FieldType) graphql.Output {
	switch t.Kind {
	case schema.KindNullable:
		return nullableOf(s.outputType(*t.Elem))
	case schema.KindArray:
		return graphql.NewNonNull(graphql.NewList(s.outputType(*t.Elem)))
	default:
		return graphql.NewNonNull(s.scalar(t.Name))
	}
}

func nullableOf(t graphql.Output) graphql.Output {
	if nn, ok := t.(*graphql.NonNull); ok {
		return nn.OfType
	}
	return t
}

func (s *Store) listResolver(coll *schema.Collection) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		return s.selectRows(p.Context, coll, nil, p.Args)
	}
}

func (s *Store) relationshipResolver(rel schema.Relationship, target *schema.Collection) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		source, ok := p.Source.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("invalid source type")
		}
		key := source[rel.LocalField]
		if key == nil {
			if rel.Cardinality == schema.CardinalityOne {
				return nil, nil
			}
			return []map[string]interface{}{}, nil
		}

		rows, err := s.selectRows(p.Context, target, &joinKey{column: rel.ForeignField, value: key}, p.Args)
		if err != nil {
			return nil, err
		}
		if rel.Cardinality == schema.CardinalityOne {
			if len(rows) == 0 {
				return nil, nil
			}
			return rows[0], nil
		}
		return rows, nil
	}
}

type joinKey struct {
	column string
	value  any
}

func (s *Store) selectRows(ctx context.Context, coll *schema.Collection, join *joinKey, args map[string]interface{}) (results []map[string]interface{}, err error) {
	ctx, span := startSpan(ctx, "graphstore.select",
		attribute.String("graphstore.collection", coll.Name),
		attribute.Bool("graphstore.relationship", join != nil),
	)
	defer func() {
		finishSpan(span, err, len(results))
	}()

	query, queryArgs, err := s.buildSelect(coll, join, args)
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, queryArgs...)
	if err != nil {
		return nil, normalizeQueryError(err)
	}
	defer func() {
		_ = rows.Close()
	}()

	return scanRows(rows, coll)
}

func (s *Store) buildSelect(coll *schema.Collection, join *joinKey, args map[string]interface{}) (string, []interface{}, error) {
	alias := coll.Table
	columns := make([]string, len(coll.Fields))
	for i, f := range coll.Fields {
		columns[i] = sqlutil.QualifiedColumn(alias, f.Name)
	}
	builder := sq.Select(columns...).From(sqlutil.QuoteIdentifier(coll.Table))

	if join != nil {
		builder = builder.Where(sq.Eq{sqlutil.QualifiedColumn(alias, join.column): join.value})
	}
	if where, ok := args["where"].(map[string]interface{}); ok {
		cond, err := BuildWhere(s.desc, coll, alias, where)
		if err != nil {
			return "", nil, err
		}
		if cond != nil {
			builder = builder.Where(cond)
		}
	}

	options, _ := args["options"].(map[string]interface{})
	orderBy, err := orderByClauses(coll, alias, options["sort"])
	if err != nil {
		return "", nil, err
	}
	if len(orderBy) > 0 {
		builder = builder.OrderBy(orderBy...)
	}

	limit, hasLimit, err := optionalInt(options, "limit")
	if err != nil {
		return "", nil, err
	}
	if !hasLimit && join == nil && s.defaultLimit > 0 {
		limit, hasLimit = s.defaultLimit, true
	}
	offset, hasOffset, err := optionalInt(options, "offset")
	if err != nil {
		return "", nil, err
	}
	if hasOffset && offset > 0 {
		// MySQL and SQLite only accept OFFSET after a LIMIT.
		if !hasLimit {
			limit, hasLimit = math.MaxInt, true
		}
		builder = builder.Offset(uint64(offset))
	}
	if hasLimit {
		builder = builder.Limit(uint64(limit))
	}

	return builder.PlaceholderFormat(sq.Question).ToSql()
}

func orderByClauses(coll *schema.Collection, alias string, raw any) ([]string, error) {
	if raw == nil {
		return nil, nil
	}
	entries, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("sort on %s must be a list", coll.Name)
	}
	var clauses []string
	for _, entry := range entries {
		fields, ok := entry.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("sort entry on %s must be an object", coll.Name)
		}
		names := make([]string, 0, len(fields))
		for name := range fields {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if _, ok := coll.Field(name); !ok {
				return nil, fmt.Errorf("unknown sort field %s.%s", coll.Name, name)
			}
			dir, _ := fields[name].(string)
			if dir != "DESC" {
				dir = "ASC"
			}
			clauses = append(clauses, sqlutil.QualifiedColumn(alias, name)+" "+dir)
		}
	}
	return clauses, nil
}

func optionalInt(args map[string]interface{}, key string) (int, bool, error) {
	if args == nil {
		return 0, false, nil
	}
	var n int
	switch v := args[key].(type) {
	case nil:
		return 0, false, nil
	case int:
		n = v
	case int64:
		n = int(v)
	case float64:
		n = int(v)
	default:
		return 0, false, fmt.Errorf("%s must be an integer, got %T", key, v)
	}
	if n < 0 {
		return 0, false, fmt.Errorf("%s must be non-negative", key)
	}
	return n, true, nil
}

func scanRows(rows Rows, coll *schema.Collection) ([]map[string]interface{}, error) {
	results := make([]map[string]interface{}, 0)

	for rows.Next() {
		values := make([]interface{}, len(coll.Fields))
		valuePtrs := make([]interface{}, len(coll.Fields))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}

		row := make(map[string]interface{}, len(coll.Fields))
		for i, f := range coll.Fields {
			row[f.Name] = convertValue(values[i], f.Type.IsArray())
		}
		results = append(results, row)
	}

	return results, rows.Err()
}

func normalizeQueryError(err error) error {
	if err == nil {
		return nil
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case mysqlErrDBAccessDenied, mysqlErrTableAccessDenied, mysqlErrColumnAccessDenied:
			return errAccessDenied
		}
	}
	return err
}
