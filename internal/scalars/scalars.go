// Package scalars defines the graph dialect's non-standard scalar types for
// the in-process graph store.
package scalars

import (
	"math"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"

	"graph-query-connector/internal/uuidutil"
)

// Temporal layouts accepted on input. The first layout is used on output.
var (
	dateLayouts          = []string{"2006-01-02"}
	dateTimeLayouts      = []string{time.RFC3339Nano, "2006-01-02T15:04:05Z07:00"}
	localDateTimeLayouts = []string{"2006-01-02T15:04:05.999999999", "2006-01-02 15:04:05.999999999", "2006-01-02T15:04:05"}
	timeLayouts          = []string{"15:04:05.999999999Z07:00", "15:04:05Z07:00"}
	localTimeLayouts     = []string{"15:04:05.999999999", "15:04:05"}
)

// durationPattern matches ISO 8601 durations such as P1Y2M3DT4H5M6.5S.
var durationPattern = regexp.MustCompile(`^-?P(?:\d+Y)?(?:\d+M)?(?:\d+W)?(?:\d+D)?(?:T(?:\d+H)?(?:\d+M)?(?:\d+(?:\.\d+)?S)?)?$`)

var (
	once     sync.Once
	byName   map[string]*graphql.Scalar
	builders = map[string]func() *graphql.Scalar{
		"BigInt": BigInt,
		"Date":   Date,
		"DateTime": func() *graphql.Scalar {
			return temporal("DateTime", "ISO 8601 date and time with offset.", dateTimeLayouts)
		},
		"LocalDateTime": func() *graphql.Scalar {
			return temporal("LocalDateTime", "ISO 8601 date and time without offset.", localDateTimeLayouts)
		},
		"Time": func() *graphql.Scalar { return temporal("Time", "ISO 8601 time with offset.", timeLayouts) },
		"LocalTime": func() *graphql.Scalar {
			return temporal("LocalTime", "ISO 8601 time without offset.", localTimeLayouts)
		},
		"Duration": Duration,
		"UUID":     UUID,
	}
)

// ForName returns the shared scalar for a graph dialect type name. A schema
// may only contain one type per name, so instances are shared.
func ForName(name string) (*graphql.Scalar, bool) {
	once.Do(func() {
		byName = make(map[string]*graphql.Scalar, len(builders))
		for n, build := range builders {
			byName[n] = build()
		}
	})
	s, ok := byName[name]
	return s, ok
}

// BigInt is a 64-bit integer serialized as a string so that clients do not
// lose precision.
func BigInt() *graphql.Scalar {
	return graphql.NewScalar(graphql.ScalarConfig{
		Name:        "BigInt",
		Description: "64-bit integer value serialized as a string.",
		Serialize: func(value interface{}) interface{} {
			if n, ok := toInt64(value); ok {
				return strconv.FormatInt(n, 10)
			}
			return nil
		},
		ParseValue: func(value interface{}) interface{} {
			if n, ok := toInt64(value); ok {
				return n
			}
			return nil
		},
		ParseLiteral: func(valueAST ast.Value) interface{} {
			switch v := valueAST.(type) {
			case *ast.IntValue:
				return parseInt64(v.Value)
			case *ast.StringValue:
				return parseInt64(v.Value)
			default:
				return nil
			}
		},
	})
}

// Date is a calendar date serialized as YYYY-MM-DD. Inputs in RFC 3339 form
// are truncated to their date.
func Date() *graphql.Scalar {
	return graphql.NewScalar(graphql.ScalarConfig{
		Name:        "Date",
		Description: "Date value serialized as YYYY-MM-DD.",
		Serialize: func(value interface{}) interface{} {
			switch v := value.(type) {
			case time.Time:
				return v.UTC().Format(dateLayouts[0])
			case *time.Time:
				if v == nil {
					return nil
				}
				return v.UTC().Format(dateLayouts[0])
			default:
				return serializeText(value, dateLayouts)
			}
		},
		ParseValue: func(value interface{}) interface{} {
			if s, ok := value.(string); ok {
				return parseDate(s)
			}
			return nil
		},
		ParseLiteral: func(valueAST ast.Value) interface{} {
			if sv, ok := valueAST.(*ast.StringValue); ok {
				return parseDate(sv.Value)
			}
			return nil
		},
	})
}

// Duration is an ISO 8601 duration string. It is validated but not
// normalized.
func Duration() *graphql.Scalar {
	parse := func(s string) interface{} {
		if s == "" || s == "P" || !durationPattern.MatchString(s) {
			return nil
		}
		return s
	}
	return graphql.NewScalar(graphql.ScalarConfig{
		Name:        "Duration",
		Description: "ISO 8601 duration, for example P1DT2H.",
		Serialize: func(value interface{}) interface{} {
			switch v := value.(type) {
			case string:
				return v
			case []byte:
				return string(v)
			default:
				return nil
			}
		},
		ParseValue: func(value interface{}) interface{} {
			if s, ok := value.(string); ok {
				return parse(s)
			}
			return nil
		},
		ParseLiteral: func(valueAST ast.Value) interface{} {
			if sv, ok := valueAST.(*ast.StringValue); ok {
				return parse(sv.Value)
			}
			return nil
		},
	})
}

// UUID accepts any common UUID spelling and always emits the lower-case
// hyphenated form. BINARY(16) column values are decoded in RFC byte order.
func UUID() *graphql.Scalar {
	parse := func(value interface{}) interface{} {
		s, ok := value.(string)
		if !ok {
			return nil
		}
		if _, canonical, err := uuidutil.ParseString(s); err == nil {
			return canonical
		}
		return nil
	}
	return graphql.NewScalar(graphql.ScalarConfig{
		Name:        "UUID",
		Description: "RFC 4122 UUID serialized in lower-case hyphenated form.",
		Serialize: func(value interface{}) interface{} {
			if canonical, ok := uuidutil.Canonical(value); ok {
				return canonical
			}
			return nil
		},
		ParseValue: parse,
		ParseLiteral: func(valueAST ast.Value) interface{} {
			if sv, ok := valueAST.(*ast.StringValue); ok {
				return parse(sv.Value)
			}
			return nil
		},
	})
}

// temporal builds a string-backed scalar that accepts any of layouts. Inputs
// are returned as given so that they compare against stored text unchanged.
func temporal(name, description string, layouts []string) *graphql.Scalar {
	parse := func(s string) interface{} {
		if _, ok := parseTime(s, layouts); ok {
			return s
		}
		return nil
	}
	return graphql.NewScalar(graphql.ScalarConfig{
		Name:        name,
		Description: description,
		Serialize: func(value interface{}) interface{} {
			if t, ok := value.(time.Time); ok {
				return t.Format(layouts[0])
			}
			return serializeText(value, layouts)
		},
		ParseValue: func(value interface{}) interface{} {
			if s, ok := value.(string); ok {
				return parse(s)
			}
			return nil
		},
		ParseLiteral: func(valueAST ast.Value) interface{} {
			if sv, ok := valueAST.(*ast.StringValue); ok {
				return parse(sv.Value)
			}
			return nil
		},
	})
}

func serializeText(value interface{}, layouts []string) interface{} {
	var s string
	switch v := value.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return nil
	}
	if _, ok := parseTime(s, layouts); !ok {
		return nil
	}
	return s
}

func parseTime(s string, layouts []string) (time.Time, bool) {
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseDate(s string) interface{} {
	if _, err := time.Parse(dateLayouts[0], s); err == nil {
		return s
	}
	if parsed, err := time.Parse(time.RFC3339, s); err == nil {
		return parsed.Format(dateLayouts[0])
	}
	return nil
}

func parseInt64(s string) interface{} {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil
	}
	return n
}

func toInt64(value interface{}) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint:
		return toInt64(uint64(v))
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint64:
		if v > math.MaxInt64 {
			return 0, false
		}
		return int64(v), true
	case float64:
		if v != math.Trunc(v) || v > math.MaxInt64 || v < math.MinInt64 {
			return 0, false
		}
		return int64(v), true
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	case []byte:
		n, err := strconv.ParseInt(string(v), 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}
