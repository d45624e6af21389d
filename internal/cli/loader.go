package cli

import (
	"fmt"
	"io"
	"os"

	"graph-query-connector/internal/naming"
	"graph-query-connector/internal/ndc"
	"graph-query-connector/internal/planner"
	"graph-query-connector/internal/schema"
)

// loadDescriptor reads the descriptor file named by opts.
func loadDescriptor(opts *RootOptions) (*schema.Descriptor, error) {
	if opts.Schema == "" {
		return nil, fmt.Errorf("--schema is required")
	}
	desc, _, err := schema.Load(opts.Schema, naming.Default())
	if err != nil {
		return nil, err
	}
	return desc, nil
}

// readRequest decodes a query request from path, or from stdin when path is
// "-".
func readRequest(path string, stdin io.Reader) (*ndc.QueryRequest, error) {
	if path == "-" {
		return ndc.DecodeQueryRequest(stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open request file: %w", err)
	}
	defer f.Close()
	return ndc.DecodeQueryRequest(f)
}

func planOptions(opts *RootOptions) []planner.PlanOption {
	var planOpts []planner.PlanOption
	if opts.DefaultLimit > 0 {
		planOpts = append(planOpts, planner.WithDefaultLimit(opts.DefaultLimit))
	}
	if opts.Strict {
		planOpts = append(planOpts, planner.WithStrictOperators())
	}
	return planOpts
}
