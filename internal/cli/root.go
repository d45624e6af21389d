// Package cli implements the qc command, which plans, explains and validates
// offline against a schema descriptor file.
package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	// Schema is the descriptor file used by plan and explain.
	Schema string
	// DefaultLimit is applied to the root collection when a request has none.
	DefaultLimit int
	Strict       bool
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the qc CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "qc",
		Short: "qc - graph query compiler",
		Long:  "Compile collection query requests into graph query text without running a server.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.Schema, "schema", "s", "schema.yaml", "schema descriptor file")
	cmd.PersistentFlags().IntVar(&opts.DefaultLimit, "default-limit", 0, "limit applied to the root collection when the request has none")
	cmd.PersistentFlags().BoolVar(&opts.Strict, "strict-operators", false, "reject custom operators the scalar type does not define")

	cmd.AddCommand(NewPlanCommand(opts))
	cmd.AddCommand(NewExplainCommand(opts))
	cmd.AddCommand(NewValidateSchemaCommand(opts))

	return cmd
}
