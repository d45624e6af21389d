package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"graph-query-connector/internal/planner"
)

// OutputFormatter writes command results as text or JSON.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer
	Verbose   bool
}

// VerboseLog writes to ErrWriter when verbose output is on.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if f.Verbose && f.ErrWriter != nil {
		fmt.Fprintf(f.ErrWriter, format+"\n", args...)
	}
}

// JSON writes v as indented JSON.
func (f *OutputFormatter) JSON(v any) error {
	enc := json.NewEncoder(f.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// CommandError is the JSON shape of a failed command.
type CommandError struct {
	Status  string `json:"status"`
	Kind    string `json:"kind,omitempty"`
	Target  string `json:"target,omitempty"`
	Message string `json:"message"`
}

// Fail reports err in the selected format and returns it so the process
// exits non-zero.
func (f *OutputFormatter) Fail(err error) error {
	out := CommandError{Status: "error", Message: err.Error()}
	var planErr *planner.PlanError
	if errors.As(err, &planErr) {
		out.Kind = planErr.Kind.Error()
		out.Target = planErr.Target
	}
	if f.Format == "json" {
		if encErr := f.JSON(out); encErr != nil {
			return encErr
		}
		return err
	}
	fmt.Fprintf(f.ErrWriter, "error: %s\n", err)
	return err
}

func formatterFor(opts *RootOptions, w, errW io.Writer) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    w,
		ErrWriter: errW,
		Verbose:   opts.Verbose,
	}
}
