package graphstore

import (
	"fmt"
	"sort"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"graph-query-connector/internal/schema"
	"graph-query-connector/internal/sqlutil"
)

// Column filter suffixes, longest first so "_NOT_IN" wins over "_IN".
var columnSuffixes = []string{
	"_NOT_STARTS_WITH",
	"_NOT_ENDS_WITH",
	"_NOT_CONTAINS",
	"_STARTS_WITH",
	"_ENDS_WITH",
	"_CONTAINS",
	"_NOT_IN",
	"_GTE",
	"_LTE",
	"_NOT",
	"_IN",
	"_GT",
	"_LT",
}

// Relationship filter suffixes. A bare relationship key behaves like _SOME.
var relationshipSuffixes = []string{"_SOME", "_NONE", "_ALL", "_NOT"}

type whereState struct {
	desc         *schema.Descriptor
	aliasCounter int
}

func (s *whereState) nextAlias(table string) string {
	normalized := strings.TrimSpace(table)
	if normalized == "" {
		normalized = "rel"
	}
	normalized = strings.ReplaceAll(normalized, "`", "")
	normalized = strings.ReplaceAll(normalized, ".", "_")
	s.aliasCounter++
	return fmt.Sprintf("__%s_%d", normalized, s.aliasCounter)
}

// BuildWhere translates a graph-dialect where input on coll into a SQL
// condition whose columns are qualified by alias. Relationship keys become
// correlated EXISTS subqueries. A nil condition means no filtering.
func BuildWhere(desc *schema.Descriptor, coll *schema.Collection, alias string, where map[string]any) (sq.Sqlizer, error) {
	if len(where) == 0 {
		return nil, nil
	}
	state := &whereState{desc: desc}
	return state.condition(coll, alias, where)
}

func (s *whereState) condition(coll *schema.Collection, alias string, where map[string]any) (sq.Sqlizer, error) {
	keys := make([]string, 0, len(where))
	for key := range where {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	conds := make(sq.And, 0, len(keys))
	for _, key := range keys {
		value := where[key]
		var (
			cond sq.Sqlizer
			err  error
		)
		switch key {
		case "AND", "OR":
			cond, err = s.connective(coll, alias, key, value)
		case "NOT":
			nested, ok := value.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("NOT filter on %s must be an object", coll.Name)
			}
			var inner sq.Sqlizer
			inner, err = s.condition(coll, alias, nested)
			if err == nil {
				cond, err = negate(inner)
			}
		default:
			cond, err = s.member(coll, alias, key, value)
		}
		if err != nil {
			return nil, err
		}
		conds = append(conds, cond)
	}
	if len(conds) == 1 {
		return conds[0], nil
	}
	return conds, nil
}

func (s *whereState) connective(coll *schema.Collection, alias, key string, value any) (sq.Sqlizer, error) {
	items, ok := value.([]any)
	if !ok {
		return nil, fmt.Errorf("%s filter on %s must be a list", key, coll.Name)
	}
	parts := make([]sq.Sqlizer, 0, len(items))
	for i, item := range items {
		nested, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s[%d] filter on %s must be an object", key, i, coll.Name)
		}
		cond, err := s.condition(coll, alias, nested)
		if err != nil {
			return nil, err
		}
		parts = append(parts, cond)
	}
	if key == "OR" {
		return sq.Or(parts), nil
	}
	return sq.And(parts), nil
}

func (s *whereState) member(coll *schema.Collection, alias, key string, value any) (sq.Sqlizer, error) {
	if _, ok := coll.Field(key); ok {
		return columnCondition(sqlutil.QualifiedColumn(alias, key), "", value)
	}
	if rel, ok := coll.Relationship(key); ok {
		return s.relationship(alias, rel, "", value)
	}
	for _, suffix := range relationshipSuffixes {
		name, found := strings.CutSuffix(key, suffix)
		if !found {
			continue
		}
		if rel, ok := coll.Relationship(name); ok {
			return s.relationship(alias, rel, suffix, value)
		}
	}
	for _, suffix := range columnSuffixes {
		name, found := strings.CutSuffix(key, suffix)
		if !found {
			continue
		}
		if _, ok := coll.Field(name); ok {
			return columnCondition(sqlutil.QualifiedColumn(alias, name), suffix, value)
		}
	}
	return nil, fmt.Errorf("unknown filter field %s.%s", coll.Name, key)
}

func columnCondition(column, suffix string, value any) (sq.Sqlizer, error) {
	switch suffix {
	case "":
		return sq.Eq{column: value}, nil
	case "_NOT":
		return sq.NotEq{column: value}, nil
	case "_IN", "_NOT_IN":
		values, ok := value.([]any)
		if !ok {
			return nil, fmt.Errorf("%s filter on %s must be a list", suffix[1:], column)
		}
		if suffix == "_IN" {
			return sq.Eq{column: values}, nil
		}
		return sq.NotEq{column: values}, nil
	case "_GT":
		return sq.Gt{column: value}, nil
	case "_GTE":
		return sq.GtOrEq{column: value}, nil
	case "_LT":
		return sq.Lt{column: value}, nil
	case "_LTE":
		return sq.LtOrEq{column: value}, nil
	case "_CONTAINS":
		return like(column, "%"+sqlutil.EscapeLike(fmt.Sprint(value))+"%", false), nil
	case "_NOT_CONTAINS":
		return like(column, "%"+sqlutil.EscapeLike(fmt.Sprint(value))+"%", true), nil
	case "_STARTS_WITH":
		return like(column, sqlutil.EscapeLike(fmt.Sprint(value))+"%", false), nil
	case "_NOT_STARTS_WITH":
		return like(column, sqlutil.EscapeLike(fmt.Sprint(value))+"%", true), nil
	case "_ENDS_WITH":
		return like(column, "%"+sqlutil.EscapeLike(fmt.Sprint(value)), false), nil
	case "_NOT_ENDS_WITH":
		return like(column, "%"+sqlutil.EscapeLike(fmt.Sprint(value)), true), nil
	}
	return nil, fmt.Errorf("unsupported filter suffix %s", suffix)
}

func like(column, pattern string, negated bool) sq.Sqlizer {
	op := "LIKE"
	if negated {
		op = "NOT LIKE"
	}
	return sq.Expr(fmt.Sprintf("%s %s ? ESCAPE '%s'", column, op, sqlutil.LikeEscape), pattern)
}

func (s *whereState) relationship(outerAlias string, rel schema.Relationship, suffix string, value any) (sq.Sqlizer, error) {
	target, ok := s.desc.Collection(rel.Target)
	if !ok {
		return nil, fmt.Errorf("relationship %s targets unknown collection %s", rel.Name, rel.Target)
	}
	// A null relationship filter matches rows with no related row.
	if value == nil {
		return s.exists(outerAlias, rel, target, nil, false, false)
	}
	nested, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("relationship filter %s must be an object", rel.Name)
	}
	switch suffix {
	case "", "_SOME":
		return s.exists(outerAlias, rel, target, nested, false, true)
	case "_NONE", "_NOT":
		return s.exists(outerAlias, rel, target, nested, false, false)
	case "_ALL":
		if len(nested) == 0 {
			return sq.And{}, nil
		}
		return s.exists(outerAlias, rel, target, nested, true, false)
	}
	return nil, fmt.Errorf("unsupported relationship filter suffix %s", suffix)
}

func (s *whereState) exists(outerAlias string, rel schema.Relationship, target *schema.Collection, nested map[string]any, negateNested, shouldExist bool) (sq.Sqlizer, error) {
	alias := s.nextAlias(target.Table)
	builder := sq.Select("1").
		From(sqlutil.AliasedTable(target.Table, alias)).
		Where(sq.Expr(sqlutil.QualifiedColumn(alias, rel.ForeignField) + " = " + sqlutil.QualifiedColumn(outerAlias, rel.LocalField)))

	if len(nested) > 0 {
		cond, err := s.condition(target, alias, nested)
		if err != nil {
			return nil, err
		}
		if negateNested {
			if cond, err = negate(cond); err != nil {
				return nil, err
			}
		}
		builder = builder.Where(cond)
	}

	subquery, args, err := builder.PlaceholderFormat(sq.Question).ToSql()
	if err != nil {
		return nil, err
	}
	prefix := "EXISTS"
	if !shouldExist {
		prefix = "NOT EXISTS"
	}
	return sq.Expr(fmt.Sprintf("%s (%s)", prefix, subquery), args...), nil
}

func negate(cond sq.Sqlizer) (sq.Sqlizer, error) {
	sql, args, err := cond.ToSql()
	if err != nil {
		return nil, err
	}
	return sq.Expr("NOT ("+sql+")", args...), nil
}
