// Package gqldoc parses GraphQL documents and derives the metadata the
// connector reports about them: selection depth, field count and a
// whitespace-insensitive operation hash. It analyzes both the query text the
// planner compiles and documents posted to the /graphql endpoint.
package gqldoc

import (
	"errors"
	"fmt"
	"strings"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/parser"
	"github.com/graphql-go/graphql/language/source"
)

// ErrNoOperation is reported when a document has no executable operation.
var ErrNoOperation = errors.New("document does not include an operation")

// Analysis holds a parsed document and what was derived from it. Failures
// are recorded rather than returned so callers can log partial results.
type Analysis struct {
	Document  *ast.Document
	Operation *ast.OperationDefinition
	Fragments map[string]*ast.FragmentDefinition

	OperationName string
	OperationType string

	FieldCount     int
	SelectionDepth int
	VariableCount  int
	SizeBytes      int

	Canonical string
	Hash      string

	ParseError     error
	SelectionError error
	CanonicalError error
}

// Err returns the first failure recorded during analysis.
func (a *Analysis) Err() error {
	switch {
	case a == nil:
		return nil
	case a.ParseError != nil:
		return a.ParseError
	case a.SelectionError != nil:
		return a.SelectionError
	default:
		return a.CanonicalError
	}
}

// Analyze parses text and selects operationName, or the only operation when
// operationName is empty.
func Analyze(text, operationName string) *Analysis {
	analysis := &Analysis{
		Fragments: map[string]*ast.FragmentDefinition{},
		SizeBytes: len(text),
	}
	if strings.TrimSpace(text) == "" {
		analysis.SelectionError = ErrNoOperation
		return analysis
	}

	doc, err := parser.Parse(parser.ParseParams{
		Source: source.NewSource(&source.Source{
			Body: []byte(text),
			Name: "graphql",
		}),
	})
	if err != nil {
		analysis.ParseError = err
		return analysis
	}
	analysis.Document = doc
	analysis.Fragments = fragmentsByName(doc)

	op, err := selectOperation(doc, operationName)
	if err != nil {
		analysis.SelectionError = err
		return analysis
	}
	analysis.Operation = op
	analysis.OperationName = operationLabel(op)
	analysis.OperationType = string(op.Operation)
	analysis.VariableCount = len(op.VariableDefinitions)

	walker := selectionWalker{fragments: analysis.Fragments, visited: map[string]bool{}, inFlight: map[string]bool{}}
	analysis.FieldCount, analysis.SelectionDepth = walker.walk(op.SelectionSet, 1)

	canonical, hash, err := canonicalize(op, analysis.Fragments)
	if err != nil {
		analysis.CanonicalError = err
		return analysis
	}
	analysis.Canonical = canonical
	analysis.Hash = hash
	return analysis
}

func fragmentsByName(doc *ast.Document) map[string]*ast.FragmentDefinition {
	fragments := map[string]*ast.FragmentDefinition{}
	for _, def := range doc.Definitions {
		fragment, ok := def.(*ast.FragmentDefinition)
		if !ok || fragment == nil || fragment.Name == nil || fragment.Name.Value == "" {
			continue
		}
		fragments[fragment.Name.Value] = fragment
	}
	return fragments
}

func selectOperation(doc *ast.Document, operationName string) (*ast.OperationDefinition, error) {
	var operations []*ast.OperationDefinition
	for _, def := range doc.Definitions {
		if op, ok := def.(*ast.OperationDefinition); ok && op != nil {
			operations = append(operations, op)
		}
	}

	if operationName != "" {
		for _, op := range operations {
			if op.Name != nil && op.Name.Value == operationName {
				return op, nil
			}
		}
		return nil, fmt.Errorf("unknown operation named %q", operationName)
	}

	switch len(operations) {
	case 0:
		return nil, ErrNoOperation
	case 1:
		return operations[0], nil
	default:
		return nil, errors.New("operationName is required when a document has multiple operations")
	}
}

// selectionWalker counts fields and depth, expanding each fragment once.
type selectionWalker struct {
	fragments map[string]*ast.FragmentDefinition
	visited   map[string]bool
	inFlight  map[string]bool
}

func (w selectionWalker) walk(set *ast.SelectionSet, depth int) (fields, maxDepth int) {
	if set == nil {
		return 0, depth - 1
	}
	maxDepth = depth
	merge := func(f, d int) {
		fields += f
		if d > maxDepth {
			maxDepth = d
		}
	}

	for _, selection := range set.Selections {
		switch sel := selection.(type) {
		case *ast.Field:
			fields++
			if sel.SelectionSet != nil {
				merge(w.walk(sel.SelectionSet, depth+1))
			}
		case *ast.InlineFragment:
			merge(w.walk(sel.SelectionSet, depth))
		case *ast.FragmentSpread:
			if sel.Name == nil {
				continue
			}
			name := sel.Name.Value
			if name == "" || w.inFlight[name] || w.visited[name] {
				continue
			}
			w.inFlight[name] = true
			w.visited[name] = true
			if fragment := w.fragments[name]; fragment != nil {
				merge(w.walk(fragment.SelectionSet, depth))
			}
			delete(w.inFlight, name)
		}
	}
	return fields, maxDepth
}
