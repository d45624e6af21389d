// Package naming converts between the externally visible collection names and
// the schema-facing names used by the graph dialect: singular type names,
// lower-first attachment fields and snake_case table names.
package naming

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/jinzhu/inflection"
)

// Config holds naming customization options.
type Config struct {
	// PluralOverrides maps singular -> custom plural.
	// Example: {"Person": "People"}
	PluralOverrides map[string]string `mapstructure:"plural_overrides"`

	// SingularOverrides maps plural -> custom singular.
	// Example: {"People": "Person", "Data": "Datum"}
	SingularOverrides map[string]string `mapstructure:"singular_overrides"`
}

// Namer applies inflection rules with optional per-word overrides.
type Namer struct {
	config Config
}

// New creates a Namer with the given configuration.
func New(cfg Config) *Namer {
	return &Namer{config: cfg}
}

// Default returns a Namer without overrides.
func Default() *Namer {
	return New(Config{})
}

// Singularize converts a plural collection name to its singular type name.
// Overrides are consulted before the inflection rules.
func (n *Namer) Singularize(word string) string {
	if n != nil {
		if override, ok := n.config.SingularOverrides[word]; ok {
			return override
		}
	}
	return inflection.Singular(word)
}

// Pluralize converts a singular type name to its plural collection name.
func (n *Namer) Pluralize(word string) string {
	if n != nil {
		if override, ok := n.config.PluralOverrides[word]; ok {
			return override
		}
	}
	return inflection.Plural(word)
}

// LowerFirst lowercases the first rune of s.
// "Movies" -> "movies", "ActedIn" -> "actedIn".
func LowerFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError || unicode.IsLower(r) {
		return s
	}
	return string(unicode.ToLower(r)) + s[size:]
}

// UpperFirst uppercases the first rune of s.
func UpperFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError || unicode.IsUpper(r) {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// ToSnakeCase converts PascalCase or camelCase to snake_case.
// Example: "MovieGenres" -> "movie_genres", "releasedAt" -> "released_at".
func ToSnakeCase(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 4)
	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && runes[i-1] != '_' {
				prevLower := unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if prevLower || (nextLower && unicode.IsUpper(runes[i-1])) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
