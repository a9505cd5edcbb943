package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/preproc/internal/ir"
	"github.com/roach88/preproc/internal/pattern"
	"github.com/roach88/preproc/internal/transform"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // canonical config output path
}

// CompiledRule is one rule as the matcher sees it.
type CompiledRule struct {
	Group string `json:"group"`
	Kind  string `json:"kind"`
	Key   string `json:"key"`
	Value string `json:"value"`
}

// CompileResult describes the compiled configuration.
type CompileResult struct {
	Config     string         `json:"config"`
	ConfigHash string         `json:"config_hash"`
	Rules      []CompiledRule `json:"rules"`
	Matcher    string         `json:"matcher,omitempty"`
	Comments   bool           `json:"comments"`
	Release    bool           `json:"release"`
	Conditions []string       `json:"conditions,omitempty"`
	Output     string         `json:"output,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Show the compiled rule set",
		Long: `Compile the configuration and print every rule with its group name,
in alternation order, followed by the combined matcher source.

Rules synthesized by objectGuards are included. With --output the
canonical JSON form of the configuration (the input to the config hash)
is written to a file.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write canonical config JSON to file")

	return cmd
}

func runCompile(opts *CompileOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	load, err := LoadConfig(opts.RootOptions)
	if err != nil {
		_ = formatter.Error(loadErrorCode(err), err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	formatter.VerboseLog("Loaded %s", load.Path)

	engine, err := pattern.New(load.Config, pattern.WithLogger(opts.logger().Named("pattern")))
	if err != nil {
		_ = formatter.Error(ErrCodeConfigInvalid, err.Error(), nil)
		return WrapExitError(ExitFailure, "invalid rules", err)
	}

	result := CompileResult{
		Config:     load.Path,
		ConfigHash: load.Hash,
		Rules:      []CompiledRule{},
		Comments:   load.Config.Comments.Enabled,
		Release:    load.Config.Comments.ForRelease,
		Conditions: configConditions(load.Config),
	}
	if m := engine.Matcher(); m != nil {
		for _, g := range m.Groups() {
			rule, _ := m.Rule(g.Name)
			result.Rules = append(result.Rules, CompiledRule{
				Group: g.Name,
				Kind:  g.Kind,
				Key:   g.Key,
				Value: rule.Produce("", rule.Key, rule.Key),
			})
		}
		result.Matcher = m.Source()
	}

	if opts.Output != "" {
		data, err := ir.CanonicalJSON(load.Config)
		if err != nil {
			_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to marshal config", err)
		}
		if err := os.WriteFile(opts.Output, data, 0o644); err != nil {
			_ = formatter.Error(ErrCodeWriteFailed, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to write output", err)
		}
		result.Output = opts.Output
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}
	writeCompileText(cmd.OutOrStdout(), result)
	return nil
}

// configConditions lists the names the configuration defines up front.
func configConditions(cfg *ir.Config) []string {
	if !cfg.Comments.Enabled {
		return nil
	}
	return transform.NewRegistry(cfg.Comments).Names()
}

func writeCompileText(w io.Writer, r CompileResult) {
	fmt.Fprintf(w, "Config: %s\n", r.Config)
	fmt.Fprintf(w, "Hash:   %s\n", r.ConfigHash)

	if len(r.Rules) == 0 {
		fmt.Fprintln(w, "Rules:  none")
	} else {
		fmt.Fprintf(w, "Rules:  %d\n", len(r.Rules))
		for _, rule := range r.Rules {
			fmt.Fprintf(w, "  %-4s %-7s %q -> %q\n", rule.Group, rule.Kind, rule.Key, rule.Value)
		}
		fmt.Fprintln(w, "Matcher:")
		fmt.Fprintf(w, "  %s\n", r.Matcher)
	}

	switch {
	case !r.Comments:
		fmt.Fprintln(w, "Comments: disabled")
	case r.Release:
		fmt.Fprintln(w, "Comments: release (blocks never allowed)")
	default:
		fmt.Fprintf(w, "Comments: defined [%s]\n", strings.Join(r.Conditions, ", "))
	}
}
