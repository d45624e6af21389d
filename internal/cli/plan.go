package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"graph-query-connector/internal/planner"
)

// PlanResult is the JSON output of plan, one entry per variable set.
type PlanResult struct {
	Collection string   `json:"collection"`
	Queries    []string `json:"queries"`
}

// NewPlanCommand creates the plan command.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan <request.json|->",
		Short: "Compile a query request into graph query text",
		Long: `Compile a query request into graph query text.

The request is checked against the schema descriptor. When it carries
variable sets, one query is printed per set.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runPlan(opts *RootOptions, requestPath string, cmd *cobra.Command) error {
	formatter := formatterFor(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	desc, err := loadDescriptor(opts)
	if err != nil {
		return formatter.Fail(err)
	}
	formatter.VerboseLog("loaded %d collection(s) from %s", len(desc.Collections()), opts.Schema)

	req, err := readRequest(requestPath, cmd.InOrStdin())
	if err != nil {
		return formatter.Fail(err)
	}

	variableSets := req.Variables
	if variableSets == nil {
		variableSets = []map[string]any{nil}
	}

	result := PlanResult{Collection: req.Collection, Queries: make([]string, 0, len(variableSets))}
	for i, vars := range variableSets {
		plan, err := planner.PlanQuery(req, desc, vars, planOptions(opts)...)
		if err != nil {
			if len(variableSets) > 1 {
				err = fmt.Errorf("variable set %d: %w", i, err)
			}
			return formatter.Fail(err)
		}
		result.Queries = append(result.Queries, plan.QueryText)
	}

	if opts.Format == "json" {
		return formatter.JSON(result)
	}
	for i, q := range result.Queries {
		if i > 0 {
			fmt.Fprintln(formatter.Writer)
		}
		fmt.Fprint(formatter.Writer, q)
	}
	return nil
}
