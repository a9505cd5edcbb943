package cli

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EnvPrefix prefixes environment variables that override flags,
// e.g. PREPROC_CONFIG or PREPROC_DB.
const EnvPrefix = "PREPROC"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string // empty searches the working directory
	Database   string // journal path; only commands that journal register --db
	Release    bool
	Defines    []string

	// Logger is built in PersistentPreRunE unless already set.
	Logger *zap.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the preproc CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "preproc",
		Short: "preproc - source text preprocessor",
		Long: `Rewrites source artifacts before bundling.

Two stages run over every artifact: conditional comment markers such as
/*[debug]{}*/ comment out code whose conditions are not defined, then
literal and regex replacement rules substitute values.

Flags can also be set through PREPROC_* environment variables
(PREPROC_CONFIG, PREPROC_DB, PREPROC_RELEASE, PREPROC_DEFINE).
PREPROC_DEFINE takes names separated by commas or spaces.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := loadSettings(opts, cmd.Flags()); err != nil {
				return WrapExitError(ExitCommandError, "failed to read settings", err)
			}
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if opts.Logger == nil {
				logger, err := newLogger(opts.Verbose)
				if err != nil {
					return fmt.Errorf("failed to initialize logger: %w", err)
				}
				opts.Logger = logger
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.Logger != nil {
				_ = opts.Logger.Sync()
			}
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output (debug logging)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "config file (default: preproc.cue, preproc.yaml or preproc.yml)")
	cmd.PersistentFlags().BoolVar(&opts.Release, "release", false, "release build: conditional blocks are never allowed")
	cmd.PersistentFlags().StringSliceVarP(&opts.Defines, "define", "D", nil, "define a condition (repeatable)")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))

	return cmd
}

// loadSettings layers flags over PREPROC_* environment variables over
// flag defaults and copies the result back into opts.
func loadSettings(opts *RootOptions, flags *pflag.FlagSet) error {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	var bindErr error
	flags.VisitAll(func(f *pflag.Flag) {
		if err := v.BindPFlag(f.Name, f); err != nil && bindErr == nil {
			bindErr = fmt.Errorf("binding --%s: %w", f.Name, err)
		}
	})
	if bindErr != nil {
		return bindErr
	}

	opts.Verbose = v.GetBool("verbose")
	opts.Format = v.GetString("format")
	opts.ConfigPath = v.GetString("config")
	opts.Release = v.GetBool("release")
	opts.Defines = defineList(v, "define")
	if flags.Lookup("db") != nil {
		opts.Database = v.GetString("db")
	}
	return nil
}

// defineList reads a list setting. A flag value arrives already split on
// commas; an environment value is split on commas and whitespace so that
// PREPROC_DEFINE="a,b" and --define a,b agree.
func defineList(v *viper.Viper, key string) []string {
	raw, ok := v.Get(key).(string)
	if !ok {
		return v.GetStringSlice(key)
	}
	return strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
}

// newLogger builds the process logger: production JSON on stderr,
// debug level when verbose.
func newLogger(verbose bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	if verbose {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return config.Build()
}

// logger returns the configured logger, or a no-op logger when the command
// runs without the root command's pre-run.
func (o *RootOptions) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
