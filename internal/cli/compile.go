package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"cuelang.org/go/cue/token"
	"github.com/spf13/cobra"

	"github.com/roach88/ruleware/internal/compiler"
	"github.com/roach88/ruleware/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompilationResult holds the compiled program and its content hash.
type CompilationResult struct {
	Program     *ir.Program `json:"program"`
	ProgramHash string      `json:"program_hash"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <program>",
		Short: "Compile a CUE rule program to canonical IR",
		Long: `Compile a CUE rule program (a .cue file or a package directory) to IR.

The program is validated before output. The program hash identifies the
compiled rules in the journal.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	program, err := LoadProgram(path)
	if err != nil {
		return outputCompileError(formatter, err)
	}
	formatter.VerboseLog("Loaded %d rule(s), %d reducer(s) from %s", len(program.Rules), len(program.Reducers), path)

	if errs := compiler.Validate(program); len(errs) > 0 {
		return outputValidationErrors(formatter, errs)
	}

	hash, err := ir.ProgramHash(program)
	if err != nil {
		return outputCompileError(formatter, err)
	}
	result := &CompilationResult{Program: program, ProgramHash: hash}

	if opts.Output != "" {
		if err := writeIRToFile(result, opts.Output); err != nil {
			_ = formatter.Fail(ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil, nil)
			return WrapExitError(ExitCommandError, "writing output file", err)
		}
	}

	return outputCompileSuccess(formatter, result, opts.Output)
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult, outputFile string) error {
	return formatter.Result(result, func(w io.Writer) {
		p := result.Program
		fmt.Fprintf(w, "✓ Compiled %d rule(s), %d reducer(s)\n", len(p.Rules), len(p.Reducers))
		fmt.Fprintf(w, "Program hash: %s\n\n", result.ProgramHash)

		if len(p.Rules) > 0 {
			fmt.Fprintln(w, "Rules:")
			for _, rule := range p.Rules {
				fmt.Fprintf(w, "  %s: [%s] %s%s\n",
					rule.Type, strings.Join(rule.ActionTypes, ", "), rule.Reaction.Timing, dispatchSummary(rule.Reaction))
			}
			fmt.Fprintln(w)
		}

		if len(p.Reducers) > 0 {
			fmt.Fprintln(w, "Reducers:")
			for _, red := range p.Reducers {
				fmt.Fprintf(w, "  %s: %s %s\n", red.On, red.Op, red.Path)
			}
			fmt.Fprintln(w)
		}

		if outputFile != "" {
			fmt.Fprintf(w, "Wrote canonical IR to %s\n", outputFile)
		}
	})
}

// dispatchSummary renders " → A, B" for a reaction's follow-up types.
func dispatchSummary(r ir.ReactionSpec) string {
	if len(r.Dispatch) == 0 {
		return ""
	}
	types := make([]string, len(r.Dispatch))
	for i, tmpl := range r.Dispatch {
		types[i] = tmpl.Type
	}
	return " → " + strings.Join(types, ", ")
}

// outputCompileError outputs a load or compile failure.
func outputCompileError(formatter *OutputFormatter, err error) error {
	code, message := ErrCodeGeneric, err.Error()
	var pos token.Pos
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		code, message, pos = loadErr.Code, loadErr.Message, loadErr.Pos
	}
	_ = formatter.Fail(code, message, nil, func(w io.Writer) {
		if pos.IsValid() {
			fmt.Fprintf(w, "%s:%d:%d\n", pos.Filename(), pos.Line(), pos.Column())
		}
		fmt.Fprintf(w, "Error [%s]: %s\n", code, message)
	})
	// Compilation errors are command-level errors (exit code 2)
	return WrapExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message), nil)
}

// writeIRToFile writes the compilation result to a file.
func writeIRToFile(result *CompilationResult, filename string) error {
	// Indented for readability; canonical JSON is used only for hashing.
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling IR: %w", err)
	}

	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}

	return nil
}
