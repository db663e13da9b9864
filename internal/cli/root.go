package cli

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/ruleware/internal/config"
	"github.com/roach88/ruleware/internal/ir"
	"github.com/roach88/ruleware/internal/logging"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose   bool
	Format    string // "json" | "text"
	LogLevel  string
	LogFormat string
	MaxDepth  int
	MaxSteps  int

	// DB is the journal path used when a command's --db flag is empty.
	// It is only ever set from RULEWARE_DB.
	DB string

	// Logger is built in PersistentPreRunE from the flags above.
	Logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the ruleware CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{Logger: logging.Discard()}

	cmd := &cobra.Command{
		Use:     "ruleware",
		Short:   "ruleware - declarative rule engine middleware",
		Long:    "Compile, validate and run declarative rule programs, and inspect their dispatch journals.",
		Version: fmt.Sprintf("%s (ir %s)", ir.EngineVersion, ir.IRVersion),
		// main prints errors and picks the exit code.
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.resolve(cmd)
		},
	}

	// Global flags. Defaults come from the environment in resolve.
	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.StringVar(&opts.LogLevel, "log-level", "warn", "log level (debug|info|warn|error)")
	flags.StringVar(&opts.LogFormat, "log-format", "text", "log format (json|text)")
	flags.IntVar(&opts.MaxDepth, "max-depth", 64, "max nested dispatch depth (0 uses the default)")
	flags.IntVar(&opts.MaxSteps, "max-steps", 1000, "max dispatches per root dispatch (0 uses the default)")

	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewDispatchCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))

	return cmd
}

// resolve fills flags the user did not set from the environment, checks
// them and builds the logger. --verbose forces debug logging.
func (o *RootOptions) resolve(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid environment", err)
	}

	flags := cmd.Flags()
	if !flags.Changed("format") {
		o.Format = cfg.Format
	}
	if !flags.Changed("log-level") {
		o.LogLevel = cfg.LogLevel
	}
	if !flags.Changed("log-format") {
		o.LogFormat = cfg.LogFormat
	}
	o.DB = cfg.DB
	if !flags.Changed("max-depth") {
		o.MaxDepth = cfg.MaxDepth
	}
	if !flags.Changed("max-steps") {
		o.MaxSteps = cfg.MaxSteps
	}

	if !isValidFormat(o.Format) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", o.Format, ValidFormats))
	}
	if o.MaxDepth < 0 || o.MaxSteps < 0 {
		return NewExitError(ExitCommandError, "--max-depth and --max-steps must be >= 0")
	}

	level := o.LogLevel
	if o.Verbose {
		level = "debug"
	}
	o.Logger = logging.NewWithWriter(level, o.LogFormat, cmd.ErrOrStderr())
	return nil
}

// logger returns the resolved logger, or a discarding one when the command
// runs without the root (tests construct subcommands directly).
func (o *RootOptions) logger() *slog.Logger {
	if o.Logger == nil {
		return logging.Discard()
	}
	return o.Logger
}

// journalPath picks the --db flag value, falling back to RULEWARE_DB.
func (o *RootOptions) journalPath(flag string) string {
	if flag != "" {
		return flag
	}
	return o.DB
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
