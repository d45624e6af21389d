package cli

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"graph-query-connector/internal/connector"
	"graph-query-connector/internal/execution"
)

var errOffline = errors.New("qc does not execute queries")

// NewExplainCommand creates the explain command.
func NewExplainCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "explain <request.json|->",
		Short:         "Describe how a query request compiles",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplain(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runExplain(opts *RootOptions, requestPath string, cmd *cobra.Command) error {
	formatter := formatterFor(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	desc, err := loadDescriptor(opts)
	if err != nil {
		return formatter.Fail(err)
	}
	req, err := readRequest(requestPath, cmd.InOrStdin())
	if err != nil {
		return formatter.Fail(err)
	}

	conn := connector.New(
		connector.WithDefaultLimit(opts.DefaultLimit),
		connector.WithStrictOperators(opts.Strict),
	)
	offline := execution.Func(func(context.Context, string, map[string]any) (map[string]any, error) {
		return nil, errOffline
	})
	handle, err := conn.Install(desc, offline, opts.Schema)
	if err != nil {
		return formatter.Fail(err)
	}
	defer handle.Release()

	resp, err := conn.Explain(cmd.Context(), req)
	if err != nil {
		return formatter.Fail(err)
	}

	if opts.Format == "json" {
		return formatter.JSON(resp)
	}
	keys := make([]string, 0, len(resp.Details))
	for k := range resp.Details {
		if k != "queryPlan" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(formatter.Writer, "%s: %s\n", k, resp.Details[k])
	}
	fmt.Fprintf(formatter.Writer, "queryPlan:\n%s", resp.Details["queryPlan"])
	return nil
}
