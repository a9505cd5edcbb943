package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/preproc/internal/ir"
	"github.com/roach88/preproc/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Artifact string // show one artifact's history across runs instead
	List     bool   // list runs
}

// TraceRun is the JSON form of a journaled run.
type TraceRun struct {
	ID            string `json:"id"`
	Seq           int64  `json:"seq"`
	ConfigHash    string `json:"config_hash"`
	Release       bool   `json:"release"`
	EngineVersion string `json:"engine_version"`
	ConfigVersion string `json:"config_version"`
}

// TraceArtifact is one processed artifact.
type TraceArtifact struct {
	RunID      string `json:"run_id"`
	Seq        int64  `json:"seq"`
	ArtifactID string `json:"artifact"`
	Stage      string `json:"stage"`
	Changed    bool   `json:"changed"`
	EditCount  int    `json:"edit_count"`
	OutputHash string `json:"output_hash,omitempty"`
	Error      string `json:"error,omitempty"`
}

// TraceCondition is one condition definition and where it came from.
type TraceCondition struct {
	Name       string `json:"name"`
	Source     string `json:"source"`
	Seq        int64  `json:"seq,omitempty"`
	ArtifactID string `json:"artifact,omitempty"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Run        *TraceRun        `json:"run,omitempty"`
	Runs       []TraceRun       `json:"runs,omitempty"`
	Artifacts  []TraceArtifact  `json:"artifacts"`
	Conditions []TraceCondition `json:"conditions,omitempty"`
	Stats      TraceStats       `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	Artifacts  int `json:"artifacts"`
	Changed    int `json:"changed"`
	Failed     int `json:"failed"`
	Conditions int `json:"conditions"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace [run-id]",
		Short: "Show a journaled run",
		Long: `Show what a journaled run did.

The output includes:
- Artifacts: every artifact in processing order, with its edit count
  and any error
- Conditions: every condition defined, by configuration or by a
  directive, with the artifact that defined it
- Stats: summary counts

Without a run id the latest run is shown.

Examples:
  preproc trace --db ./preproc.db
  preproc trace --db ./preproc.db 01928c3e-...
  preproc trace --db ./preproc.db --list
  preproc trace --db ./preproc.db --artifact src/app.js --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			runID := ""
			if len(args) == 1 {
				runID = args[0]
			}
			return runTrace(opts, runID, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	cmd.Flags().StringVar(&opts.Artifact, "artifact", "", "show one artifact's history across runs")
	cmd.Flags().BoolVar(&opts.List, "list", false, "list runs")

	return cmd
}

func runTrace(opts *TraceOptions, runID string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if opts.Database == "" {
		_ = formatter.Error(ErrCodeJournal, "--db is required", nil)
		return NewExitError(ExitCommandError, "required flag \"db\" not set")
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		_ = formatter.Error(ErrCodeJournal, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	var result TraceResult
	switch {
	case opts.List:
		result, err = traceRuns(ctx, st)
	case opts.Artifact != "":
		result, err = traceArtifact(ctx, st, opts.Artifact)
	default:
		result, err = traceRun(ctx, st, runID)
	}
	if errors.Is(err, store.ErrRunNotFound) {
		if formatter.JSON() {
			return formatter.Success(TraceResult{Artifacts: []TraceArtifact{}})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "No runs found: %v\n", err)
		return nil
	}
	if err != nil {
		_ = formatter.Error(ErrCodeJournal, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}
	writeTraceText(cmd.OutOrStdout(), result, opts.List)
	return nil
}

func traceRun(ctx context.Context, st *store.Store, runID string) (TraceResult, error) {
	var run ir.Run
	var err error
	if runID == "" {
		run, err = st.LatestRun(ctx)
	} else {
		run, err = st.ReadRun(ctx, runID)
	}
	if err != nil {
		return TraceResult{}, err
	}

	recs, err := st.ReadArtifacts(ctx, run.ID)
	if err != nil {
		return TraceResult{}, err
	}
	conds, err := st.ReadConditions(ctx, run.ID)
	if err != nil {
		return TraceResult{}, err
	}

	tr := toTraceRun(run)
	result := TraceResult{
		Run:        &tr,
		Artifacts:  toTraceArtifacts(recs),
		Conditions: make([]TraceCondition, len(conds)),
	}
	for i, c := range conds {
		result.Conditions[i] = TraceCondition{Name: c.Name, Source: c.Source, Seq: c.Seq, ArtifactID: c.ArtifactID}
	}
	result.Stats = buildStats(result.Artifacts, len(result.Conditions))
	return result, nil
}

func traceRuns(ctx context.Context, st *store.Store) (TraceResult, error) {
	runs, err := st.ListRuns(ctx)
	if err != nil {
		return TraceResult{}, err
	}
	result := TraceResult{Runs: make([]TraceRun, len(runs)), Artifacts: []TraceArtifact{}}
	for i, r := range runs {
		result.Runs[i] = toTraceRun(r)
	}
	return result, nil
}

func traceArtifact(ctx context.Context, st *store.Store, artifactID string) (TraceResult, error) {
	recs, err := st.ArtifactHistory(ctx, artifactID)
	if err != nil {
		return TraceResult{}, err
	}
	result := TraceResult{Artifacts: toTraceArtifacts(recs)}
	result.Stats = buildStats(result.Artifacts, 0)
	return result, nil
}

func toTraceRun(r ir.Run) TraceRun {
	return TraceRun{
		ID:            r.ID,
		Seq:           r.Seq,
		ConfigHash:    r.ConfigHash,
		Release:       r.Release,
		EngineVersion: r.EngineVersion,
		ConfigVersion: r.ConfigVersion,
	}
}

func toTraceArtifacts(recs []ir.ArtifactRecord) []TraceArtifact {
	out := make([]TraceArtifact, len(recs))
	for i, r := range recs {
		out[i] = TraceArtifact{
			RunID:      r.RunID,
			Seq:        r.Seq,
			ArtifactID: r.ArtifactID,
			Stage:      r.Stage,
			Changed:    r.Changed,
			EditCount:  r.EditCount,
			OutputHash: r.OutputHash,
			Error:      r.Error,
		}
	}
	return out
}

func buildStats(artifacts []TraceArtifact, conditions int) TraceStats {
	stats := TraceStats{Artifacts: len(artifacts), Conditions: conditions}
	for _, a := range artifacts {
		if a.Changed {
			stats.Changed++
		}
		if a.Error != "" {
			stats.Failed++
		}
	}
	return stats
}

// writeTraceText outputs the trace result as text.
func writeTraceText(w io.Writer, r TraceResult, list bool) {
	if list {
		if len(r.Runs) == 0 {
			fmt.Fprintln(w, "No runs.")
			return
		}
		for _, run := range r.Runs {
			fmt.Fprintf(w, "#%d %s config=%s release=%t\n", run.Seq, run.ID, shortHash(run.ConfigHash), run.Release)
		}
		return
	}

	if r.Run != nil {
		fmt.Fprintf(w, "Run %s (#%d)\n", r.Run.ID, r.Run.Seq)
		fmt.Fprintf(w, "  config:  %s\n", shortHash(r.Run.ConfigHash))
		fmt.Fprintf(w, "  release: %t\n", r.Run.Release)
		fmt.Fprintf(w, "  engine:  %s\n", r.Run.EngineVersion)
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "Artifacts:")
	if len(r.Artifacts) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for _, a := range r.Artifacts {
		prefix := fmt.Sprintf("  [%d] %s %s", a.Seq, a.Stage, a.ArtifactID)
		if r.Run == nil {
			prefix = fmt.Sprintf("  %s [%d] %s %s", a.RunID, a.Seq, a.Stage, a.ArtifactID)
		}
		switch {
		case a.Error != "":
			fmt.Fprintf(w, "%s error: %s\n", prefix, a.Error)
		case a.Changed:
			fmt.Fprintf(w, "%s changed (%d edits)\n", prefix, a.EditCount)
		default:
			fmt.Fprintf(w, "%s unchanged\n", prefix)
		}
	}

	if r.Run != nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Conditions:")
		if len(r.Conditions) == 0 {
			fmt.Fprintln(w, "  (none)")
		}
		for _, c := range r.Conditions {
			if c.Source == ir.SourceDirective {
				fmt.Fprintf(w, "  %s (directive, %s @%d)\n", c.Name, c.ArtifactID, c.Seq)
			} else {
				fmt.Fprintf(w, "  %s (%s)\n", c.Name, c.Source)
			}
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Stats: %d artifacts, %d changed, %d failed, %d conditions\n",
		r.Stats.Artifacts, r.Stats.Changed, r.Stats.Failed, r.Stats.Conditions)
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
