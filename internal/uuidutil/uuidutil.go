// Package uuidutil normalizes UUID values read from or written to the graph
// store.
package uuidutil

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ParseString parses common UUID string formats and returns a normalized lower-case UUID.
func ParseString(raw string) (uuid.UUID, string, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("invalid UUID value")
	}
	return parsed, strings.ToLower(parsed.String()), nil
}

// ParseBytes parses RFC-order UUID bytes and returns a normalized lower-case UUID.
func ParseBytes(raw []byte) (uuid.UUID, string, error) {
	parsed, err := uuid.FromBytes(raw)
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("invalid UUID bytes")
	}
	return parsed, strings.ToLower(parsed.String()), nil
}

// Canonical renders a driver value as a lower-case hyphenated UUID. Sixteen
// byte values are treated as BINARY(16) storage, anything else as text.
func Canonical(value any) (string, bool) {
	var (
		canonical string
		err       error
	)
	switch v := value.(type) {
	case uuid.UUID:
		return v.String(), true
	case []byte:
		if len(v) == 16 {
			_, canonical, err = ParseBytes(v)
		} else {
			_, canonical, err = ParseString(string(v))
		}
	case string:
		if len(v) == 16 {
			_, canonical, err = ParseBytes([]byte(v))
		} else {
			_, canonical, err = ParseString(v)
		}
	default:
		return "", false
	}
	if err != nil {
		return "", false
	}
	return canonical, true
}
