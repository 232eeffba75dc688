package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/converge-sh/converge/internal/task"
)

// ValidationResult holds playbook validation results.
type ValidationResult struct {
	Valid  bool                   `json:"valid"`
	Errors []task.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <playbook>",
		Short: "Validate a playbook without running it",
		Long: `Validate playbook structure without touching the filesystem.

Checks YAML syntax, the playbook schema, and cross-references: every
notify must name a declared handler, non-templated paths must be
absolute, absent tasks must not carry template or mode.

Templates are not rendered; use plan to catch render failures.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		_ = formatter.Error(task.ErrCodeGeneric, fmt.Sprintf("cannot read playbook: %v", err), nil)
		return WrapExitError(ExitCommandError, fmt.Sprintf("cannot read %s", path), err)
	}

	pb, verrs := task.Parse(data)
	if len(verrs) > 0 {
		return outputValidationErrors(formatter, path, verrs)
	}

	formatter.VerboseLog("Parsed %d task(s), %d handler(s)", len(pb.Tasks), len(pb.Handlers))

	return outputValidateSuccess(formatter, path, pb)
}

// outputValidateSuccess reports a clean playbook.
func outputValidateSuccess(formatter *OutputFormatter, path string, pb *task.Playbook) error {
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true})
	}

	fmt.Fprintf(formatter.Writer, "✓ %s: %d task(s), %d handler(s)\n", path, len(pb.Tasks), len(pb.Handlers))
	return nil
}

// outputValidationErrors reports playbook validation failures. Shared by
// validate, plan, and apply so a bad playbook fails identically everywhere.
func outputValidationErrors(formatter *OutputFormatter, path string, errs []task.ValidationError) error {
	if formatter.Format == "json" {
		result := ValidationResult{
			Valid:  false,
			Errors: errs,
		}

		response := CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}

		// Validation failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	// Text format
	fmt.Fprintf(formatter.Writer, "✗ %s: validation failed\n", path)
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}

	// Validation failures = exit code 1
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
