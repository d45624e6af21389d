package gqldoc

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/printer"
)

const anonymousOperation = "<anonymous>"

// canonicalize prints the operation plus the fragments it reaches, in name
// order, and hashes the result together with the operation label.
func canonicalize(op *ast.OperationDefinition, fragments map[string]*ast.FragmentDefinition) (string, string, error) {
	reached := map[string]bool{}
	collectFragments(op.SelectionSet, fragments, reached)
	names := make([]string, 0, len(reached))
	for name := range reached {
		names = append(names, name)
	}
	sort.Strings(names)

	definitions := make([]ast.Node, 0, 1+len(names))
	definitions = append(definitions, op)
	for _, name := range names {
		fragment, ok := fragments[name]
		if !ok || fragment == nil {
			return "", "", fmt.Errorf("fragment %q not found", name)
		}
		definitions = append(definitions, fragment)
	}

	printed, ok := printer.Print(ast.NewDocument(&ast.Document{Definitions: definitions})).(string)
	if !ok {
		return "", "", fmt.Errorf("printer returned a non-string document")
	}
	return printed, FramedSHA256(printed, operationLabel(op)), nil
}

func collectFragments(set *ast.SelectionSet, fragments map[string]*ast.FragmentDefinition, reached map[string]bool) {
	if set == nil {
		return
	}
	for _, selection := range set.Selections {
		switch sel := selection.(type) {
		case *ast.Field:
			collectFragments(sel.SelectionSet, fragments, reached)
		case *ast.InlineFragment:
			collectFragments(sel.SelectionSet, fragments, reached)
		case *ast.FragmentSpread:
			if sel.Name == nil || sel.Name.Value == "" || reached[sel.Name.Value] {
				continue
			}
			reached[sel.Name.Value] = true
			if fragment := fragments[sel.Name.Value]; fragment != nil {
				collectFragments(fragment.SelectionSet, fragments, reached)
			}
		}
	}
}

func operationLabel(op *ast.OperationDefinition) string {
	if op == nil || op.Name == nil || op.Name.Value == "" {
		return anonymousOperation
	}
	return op.Name.Value
}

// FramedSHA256 hashes length-prefixed parts so that ("ab", "c") and
// ("a", "bc") differ. Schema fingerprints use it too.
func FramedSHA256(parts ...string) string {
	hash := sha256.New()
	for _, part := range parts {
		_, _ = fmt.Fprintf(hash, "%d:%s|", len(part), part)
	}
	return hex.EncodeToString(hash.Sum(nil))
}
