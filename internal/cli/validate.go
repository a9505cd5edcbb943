package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/preproc/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                       `json:"valid"`
	Config string                     `json:"config,omitempty"`
	Errors []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [config-file]",
		Short: "Validate configuration without transforming anything",
		Long: `Compile and check a configuration file.

Reports every problem found: empty or duplicate keys, regex keys that do
not compile, delimiters that do not compile, malformed include/exclude
globs and condition names no marker can reference.

The file defaults to --config, then preproc.cue, preproc.yaml or
preproc.yml in the working directory.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := *rootOpts
			if len(args) == 1 {
				opts.ConfigPath = args[0]
			}
			return runValidate(&opts, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	load, err := LoadConfig(opts)
	if err != nil {
		code := loadErrorCode(err)
		if code != ErrCodeConfigInvalid {
			return outputValidateError(formatter, code, err.Error(), nil)
		}
		return outputValidationErrors(formatter, opts.ConfigPath, []compiler.ValidationError{compileValidationError(err)})
	}
	formatter.VerboseLog("Validating %s", load.Path)

	if errs := compiler.Validate(load.Config); len(errs) > 0 {
		return outputValidationErrors(formatter, load.Path, errs)
	}
	return outputValidateSuccess(formatter, load.Path)
}

// compileValidationError converts a compile failure into a validation
// error, keeping its field and line.
func compileValidationError(err error) compiler.ValidationError {
	var cErr *compiler.CompileError
	if errors.As(err, &cErr) {
		line := cErr.Line
		if cErr.Pos.IsValid() {
			line = cErr.Pos.Line()
		}
		return compiler.ValidationError{
			Field:   cErr.Field,
			Message: cErr.Message,
			Code:    ErrCodeConfigInvalid,
			Line:    line,
		}
	}
	return compiler.ValidationError{Field: "config", Message: err.Error(), Code: ErrCodeConfigInvalid}
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, path string) error {
	if formatter.JSON() {
		return formatter.Success(ValidationResult{Valid: true, Config: path})
	}

	fmt.Fprintf(formatter.Writer, "\u2713 %s is valid\n", path)
	return nil
}

// outputValidateError outputs a single command-level error.
func outputValidateError(formatter *OutputFormatter, code, message string, details any) error {
	_ = formatter.Error(code, message, details)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, path string, errs []compiler.ValidationError) error {
	failure := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))

	if formatter.JSON() {
		if err := formatter.encode(CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Config: path, Errors: errs},
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}); err != nil {
			return err
		}
		return failure
	}

	fmt.Fprintln(formatter.Writer, "\u2717 Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s %s: %s\n\n", err.Code, err.Field, err.Message)
	}
	return failure
}
