package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/ruleware/internal/compiler"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Strict bool // treat cycle warnings as errors
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool                       `json:"valid"`
	Errors   []compiler.ValidationError `json:"errors,omitempty"`
	Warnings []compiler.CycleWarning    `json:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <program>",
		Short: "Validate a rule program without producing output",
		Long: `Validate a CUE rule program.

Reports structural and semantic errors with their codes, and warns about
rules whose follow-up dispatches can re-trigger each other.

Exit codes:
  0 - Program is valid
  1 - Validation errors (or cycle warnings with --strict)
  2 - Command error (program not found)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "treat cycle warnings as errors")

	return cmd
}

func runValidate(opts *ValidateOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	errs, warnings, err := ValidateProgram(path)
	if err != nil {
		return outputValidateError(formatter, err)
	}
	formatter.VerboseLog("Validated %s: %d error(s), %d warning(s)", path, len(errs), len(warnings))

	if opts.Strict {
		for _, w := range warnings {
			errs = append(errs, compiler.ValidationError{
				Field:   "rules",
				Message: w.Message,
				Code:    ErrCodeCycle,
			})
		}
		warnings = nil
	}

	if len(errs) > 0 {
		return outputValidationErrors(formatter, errs)
	}
	return outputValidateSuccess(formatter, warnings)
}

// ValidateProgram loads the program at path and returns its validation
// errors and cycle warnings. Structural compile errors are reported as
// validation errors; the returned error covers only a missing path.
func ValidateProgram(path string) ([]compiler.ValidationError, []compiler.CycleWarning, error) {
	program, err := LoadProgram(path)
	if err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) && loadErr.Code != ErrCodeNotFound {
			return []compiler.ValidationError{{
				Field:   "load",
				Message: loadErr.Message,
				Code:    loadErr.Code,
				Line:    lineOf(loadErr.Pos),
			}}, nil, nil
		}
		return nil, nil, err
	}
	return compiler.Validate(program), compiler.AnalyzeCycles(program), nil
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, warnings []compiler.CycleWarning) error {
	return formatter.Result(ValidationResult{Valid: true, Warnings: warnings}, func(w io.Writer) {
		for _, warning := range warnings {
			fmt.Fprintf(w, "⚠ %s\n", warning.Message)
		}
		fmt.Fprintln(w, "✓ Program valid")
	})
}

// outputValidateError outputs a command-level failure (exit code 2).
func outputValidateError(formatter *OutputFormatter, err error) error {
	code, message := ErrCodeGeneric, err.Error()
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		code, message = loadErr.Code, loadErr.Message
	}
	_ = formatter.Fail(code, message, nil, nil)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs every validation error (exit code 1).
func outputValidationErrors(formatter *OutputFormatter, errs []compiler.ValidationError) error {
	result := ValidationResult{Valid: false, Errors: errs}
	err := formatter.Fail(errs[0].Code, errs[0].Message, result, func(w io.Writer) {
		fmt.Fprintln(w, "✗ Validation failed")
		fmt.Fprintln(w)
		for _, ve := range errs {
			if ve.Line > 0 {
				fmt.Fprintf(w, "line %d\n", ve.Line)
			}
			fmt.Fprintf(w, "  %s: %s: %s\n\n", ve.Code, ve.Field, ve.Message)
		}
	})
	if err != nil {
		return err
	}
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
