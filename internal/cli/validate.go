package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"graph-query-connector/internal/naming"
	"graph-query-connector/internal/schema"
)

// ValidationResult holds validate-schema output.
type ValidationResult struct {
	Valid       bool     `json:"valid"`
	Collections []string `json:"collections"`
}

// NewValidateSchemaCommand creates the validate-schema command.
func NewValidateSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate-schema [descriptor]",
		Short: "Validate a schema descriptor file",
		Long: `Validate a schema descriptor file.

Checks field types, relationship targets and join fields. The file given
as an argument takes precedence over --schema.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := rootOpts.Schema
			if len(args) == 1 {
				path = args[0]
			}
			return runValidateSchema(rootOpts, path, cmd)
		},
	}
	return cmd
}

func runValidateSchema(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := formatterFor(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	desc, _, err := schema.Load(path, naming.Default())
	if err != nil {
		return formatter.Fail(err)
	}

	result := ValidationResult{Valid: true}
	for _, coll := range desc.Collections() {
		result.Collections = append(result.Collections, coll.Name)
		formatter.VerboseLog("%s: %d field(s), %d relationship(s)", coll.Name, len(coll.Fields), len(coll.Relationships))
	}

	if opts.Format == "json" {
		return formatter.JSON(result)
	}
	fmt.Fprintf(formatter.Writer, "%s is valid (%d collections)\n", path, len(result.Collections))
	return nil
}
