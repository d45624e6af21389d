package schema

import (
	"fmt"
	"strings"
)

// TypeKind distinguishes the three field type shapes.
type TypeKind int

const (
	KindNamed TypeKind = iota + 1
	KindNullable
	KindArray
)

func (k TypeKind) String() string {
	switch k {
	case KindNamed:
		return "named"
	case KindNullable:
		return "nullable"
	case KindArray:
		return "array"
	default:
		return fmt.Sprintf("TypeKind(%d)", int(k))
	}
}

// FieldType is Named(scalar) | Nullable(FieldType) | Array(FieldType).
type FieldType struct {
	Kind TypeKind
	Name string     // set for KindNamed
	Elem *FieldType // set for KindNullable and KindArray
}

// Named returns the named scalar type.
func Named(name string) FieldType {
	return FieldType{Kind: KindNamed, Name: name}
}

// Nullable wraps t.
func Nullable(t FieldType) FieldType {
	return FieldType{Kind: KindNullable, Elem: &t}
}

// Array wraps t.
func Array(t FieldType) FieldType {
	return FieldType{Kind: KindArray, Elem: &t}
}

// IsArray reports whether the type is Array(_) or Nullable(Array(_)).
func (t FieldType) IsArray() bool {
	if t.Kind == KindNullable && t.Elem != nil {
		return t.Elem.Kind == KindArray
	}
	return t.Kind == KindArray
}

// IsNullable reports whether the outermost wrapper is Nullable.
func (t FieldType) IsNullable() bool {
	return t.Kind == KindNullable
}

// ScalarName returns the innermost named type, or "" for malformed types.
func (t FieldType) ScalarName() string {
	cur := &t
	for cur != nil {
		if cur.Kind == KindNamed {
			return cur.Name
		}
		cur = cur.Elem
	}
	return ""
}

// String renders the type in GraphQL notation.
func (t FieldType) String() string {
	inner, nullable := t, false
	if t.Kind == KindNullable && t.Elem != nil {
		inner, nullable = *t.Elem, true
	}
	var s string
	switch inner.Kind {
	case KindNamed:
		s = inner.Name
	case KindArray:
		if inner.Elem == nil {
			s = "[]"
		} else {
			s = "[" + inner.Elem.String() + "]"
		}
	default:
		s = "?"
	}
	if !nullable {
		s += "!"
	}
	return s
}

func (t FieldType) validate() error {
	switch t.Kind {
	case KindNamed:
		if t.Name == "" {
			return fmt.Errorf("named type has no name")
		}
		return nil
	case KindNullable:
		if t.Elem == nil {
			return fmt.Errorf("nullable type has no underlying type")
		}
		if t.Elem.Kind == KindNullable {
			return fmt.Errorf("nullable type wraps another nullable type")
		}
		return t.Elem.validate()
	case KindArray:
		if t.Elem == nil {
			return fmt.Errorf("array type has no element type")
		}
		return t.Elem.validate()
	default:
		return fmt.Errorf("unknown type kind %d", int(t.Kind))
	}
}

// ParseFieldType parses GraphQL type notation.
// "String" is Nullable(Named), "String!" is Named, "[Int!]" is Nullable(Array(Named)).
func ParseFieldType(s string) (FieldType, error) {
	p := typeParser{input: strings.TrimSpace(s)}
	if p.input == "" {
		return FieldType{}, fmt.Errorf("empty type expression")
	}
	t, err := p.parse()
	if err != nil {
		return FieldType{}, fmt.Errorf("invalid type %q: %w", s, err)
	}
	p.skipSpace()
	if p.pos != len(p.input) {
		return FieldType{}, fmt.Errorf("invalid type %q: unexpected %q at offset %d", s, p.input[p.pos:], p.pos)
	}
	return t, nil
}

type typeParser struct {
	input string
	pos   int
}

func (p *typeParser) skipSpace() {
	for p.pos < len(p.input) && p.input[p.pos] == ' ' {
		p.pos++
	}
}

func (p *typeParser) parse() (FieldType, error) {
	p.skipSpace()
	if p.pos >= len(p.input) {
		return FieldType{}, fmt.Errorf("unexpected end of input")
	}

	var base FieldType
	if p.input[p.pos] == '[' {
		p.pos++
		elem, err := p.parse()
		if err != nil {
			return FieldType{}, err
		}
		p.skipSpace()
		if p.pos >= len(p.input) || p.input[p.pos] != ']' {
			return FieldType{}, fmt.Errorf("missing closing bracket")
		}
		p.pos++
		base = Array(elem)
	} else {
		start := p.pos
		for p.pos < len(p.input) && isNameByte(p.input[p.pos], p.pos == start) {
			p.pos++
		}
		if p.pos == start {
			return FieldType{}, fmt.Errorf("expected type name at offset %d", start)
		}
		base = Named(p.input[start:p.pos])
	}

	p.skipSpace()
	if p.pos < len(p.input) && p.input[p.pos] == '!' {
		p.pos++
		return base, nil
	}
	return Nullable(base), nil
}

func isNameByte(c byte, first bool) bool {
	switch {
	case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		return true
	case c >= '0' && c <= '9':
		return !first
	}
	return false
}
