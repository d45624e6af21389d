package naming

import (
	"fmt"
	"strings"
)

// graphqlReservedTypeWords contains GraphQL keywords and built-in types
// that cannot be used as object type names.
var graphqlReservedTypeWords = map[string]bool{
	"query":        true,
	"mutation":     true,
	"subscription": true,
	"type":         true,
	"schema":       true,
	"scalar":       true,
	"enum":         true,
	"input":        true,
	"interface":    true,
	"union":        true,
	"fragment":     true,
	"int":          true,
	"float":        true,
	"string":       true,
	"boolean":      true,
	"id":           true,
}

// CheckTypeName reports why name cannot be used as a graph type name, or nil.
// PageInfo, Node and any name ending in "Connection" are reserved by the
// relay pagination model the graph dialect generates.
func CheckTypeName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("type name is empty")
	case graphqlReservedTypeWords[strings.ToLower(name)]:
		return fmt.Errorf("type name %q is a reserved GraphQL word", name)
	case name == "PageInfo":
		return fmt.Errorf("type name %q is reserved for connection pagination", name)
	case name == "Node":
		return fmt.Errorf("type name %q is reserved for relay node lookups", name)
	case len(name) > len("Connection") && strings.HasSuffix(name, "Connection"):
		return fmt.Errorf("type name %q ends with the reserved suffix \"Connection\"", name)
	case strings.HasPrefix(name, "__"):
		return fmt.Errorf("type name %q uses the introspection prefix \"__\"", name)
	}
	return nil
}
