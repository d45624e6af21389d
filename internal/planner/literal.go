package planner

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/printer"
)

// EnumValue renders bare, e.g. the sort directions ASC and DESC.
type EnumValue string

var (
	namePattern   = regexp.MustCompile(`^[_A-Za-z][_0-9A-Za-z]*$`)
	numberPattern = regexp.MustCompile(`^-?(0|[1-9][0-9]*)(\.[0-9]+)?([eE][+-]?[0-9]+)?$`)
)

// newName returns a name node, rejecting anything that is not a GraphQL
// name token.
func newName(value string) (*ast.Name, error) {
	if !namePattern.MatchString(value) {
		return nil, fmt.Errorf("%q is not a valid GraphQL name", value)
	}
	return ast.NewName(&ast.Name{Value: value}), nil
}

// RenderLiteral renders v as a GraphQL input value literal. Object keys are
// emitted in sorted order so identical inputs always render identically.
func RenderLiteral(v any) (string, error) {
	value, err := literalValue(v)
	if err != nil {
		return "", err
	}
	return printNode(value)
}

func printNode(node ast.Node) (string, error) {
	text, ok := printer.Print(node).(string)
	if !ok {
		return "", fmt.Errorf("cannot print %s node", node.GetKind())
	}
	return text, nil
}

// literalValue converts v into an input value node.
func literalValue(v any) (ast.Value, error) {
	switch val := v.(type) {
	case nil:
		return ast.NewEnumValue(&ast.EnumValue{Value: "null"}), nil
	case EnumValue:
		if !namePattern.MatchString(string(val)) {
			return nil, fmt.Errorf("%q is not a valid enum value", string(val))
		}
		return ast.NewEnumValue(&ast.EnumValue{Value: string(val)}), nil
	case string:
		return stringValue(val)
	case bool:
		return ast.NewBooleanValue(&ast.BooleanValue{Value: val}), nil
	case json.Number:
		return numberValue(string(val))
	case int:
		return ast.NewIntValue(&ast.IntValue{Value: strconv.Itoa(val)}), nil
	case int64:
		return ast.NewIntValue(&ast.IntValue{Value: strconv.FormatInt(val, 10)}), nil
	case float64:
		return floatValue(val)
	case map[string]any:
		return objectValue(val)
	case []any:
		return listValue(len(val), func(i int) any { return val[i] })
	default:
		return reflectedValue(v)
	}
}

// stringValue rejects characters the printer would escape in a form the
// graph dialect cannot read back.
func stringValue(s string) (ast.Value, error) {
	if !utf8.ValidString(s) {
		return nil, fmt.Errorf("string %q is not valid UTF-8", s)
	}
	for _, r := range s {
		switch {
		case r < 0x20 && !strings.ContainsRune("\b\f\n\r\t", r), r == 0x7f:
			return nil, fmt.Errorf("string %q contains control character %U", s, r)
		case r > 0xffff && !strconv.IsPrint(r):
			return nil, fmt.Errorf("string %q contains non-printable character %U", s, r)
		}
	}
	return ast.NewStringValue(&ast.StringValue{Value: s}), nil
}

func numberValue(n string) (ast.Value, error) {
	if !numberPattern.MatchString(n) {
		return nil, fmt.Errorf("invalid number literal %q", n)
	}
	if strings.ContainsAny(n, ".eE") {
		return ast.NewFloatValue(&ast.FloatValue{Value: n}), nil
	}
	return ast.NewIntValue(&ast.IntValue{Value: n}), nil
}

func floatValue(f float64) (ast.Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("cannot render non-finite number %v", f)
	}
	return ast.NewFloatValue(&ast.FloatValue{Value: strconv.FormatFloat(f, 'f', -1, 64)}), nil
}

func objectValue(obj map[string]any) (ast.Value, error) {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]*ast.ObjectField, 0, len(keys))
	for _, k := range keys {
		name, err := newName(k)
		if err != nil {
			return nil, err
		}
		value, err := literalValue(obj[k])
		if err != nil {
			return nil, err
		}
		fields = append(fields, ast.NewObjectField(&ast.ObjectField{Name: name, Value: value}))
	}
	return ast.NewObjectValue(&ast.ObjectValue{Fields: fields}), nil
}

func listValue(n int, at func(int) any) (ast.Value, error) {
	values := make([]ast.Value, 0, n)
	for i := 0; i < n; i++ {
		value, err := literalValue(at(i))
		if err != nil {
			return nil, err
		}
		values = append(values, value)
	}
	return ast.NewListValue(&ast.ListValue{Values: values}), nil
}

// reflectedValue covers values handed in by Go callers rather than decoded
// from JSON: sized ints, typed slices and string-keyed maps.
func reflectedValue(v any) (ast.Value, error) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return ast.NewIntValue(&ast.IntValue{Value: strconv.FormatInt(rv.Int(), 10)}), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return ast.NewIntValue(&ast.IntValue{Value: strconv.FormatUint(rv.Uint(), 10)}), nil
	case reflect.Float32, reflect.Float64:
		return floatValue(rv.Float())
	case reflect.String:
		return stringValue(rv.String())
	case reflect.Bool:
		return ast.NewBooleanValue(&ast.BooleanValue{Value: rv.Bool()}), nil
	case reflect.Slice, reflect.Array:
		return listValue(rv.Len(), func(i int) any { return rv.Index(i).Interface() })
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("cannot render map with %s keys", rv.Type().Key())
		}
		obj := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			obj[iter.Key().String()] = iter.Value().Interface()
		}
		return objectValue(obj)
	case reflect.Pointer:
		if rv.IsNil() {
			return literalValue(nil)
		}
		return literalValue(rv.Elem().Interface())
	default:
		return nil, fmt.Errorf("cannot render value of type %T", v)
	}
}
