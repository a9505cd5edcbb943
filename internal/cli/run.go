package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/preproc/internal/compiler"
	"github.com/roach88/preproc/internal/harness"
	"github.com/roach88/preproc/internal/ir"
	"github.com/roach88/preproc/internal/store"
	"github.com/roach88/preproc/internal/transform"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	OutDir string

	// RunIDs allows overriding the journal run id generator (for testing).
	// If nil, defaults to transform.UUIDv7Generator.
	RunIDs transform.RunIDGenerator
}

// ArtifactSummary is the outcome for one input file.
type ArtifactSummary struct {
	ID        string `json:"id"`
	Filtered  bool   `json:"filtered,omitempty"`
	Changed   bool   `json:"changed"`
	EditCount int    `json:"edit_count"`
	Output    string `json:"output,omitempty"` // written file, with --out
	Map       string `json:"map,omitempty"`    // written source map, with --out
	Text      string `json:"text,omitempty"`   // output text, without --out
	Error     string `json:"error,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
}

// RunResult summarizes a run.
type RunResult struct {
	RunID      string            `json:"run_id,omitempty"`
	Config     string            `json:"config"`
	ConfigHash string            `json:"config_hash"`
	Artifacts  []ArtifactSummary `json:"artifacts"`
	Defined    []string          `json:"defined"`
	Changed    int               `json:"changed"`
	Failed     int               `json:"failed"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <path>...",
		Short: "Transform files",
		Long: `Transform files and directories with the configured rules.

Artifacts are processed in argument order, directory contents in lexical
order. Conditions defined by /*<name>*/ directives in one artifact apply
to every artifact processed after it.

Without --out the transformed text is written to stdout. With --out each
artifact is written under the output directory at its path relative to
the argument it was found under, with a .map file next to it when source
maps are enabled.

Examples:
  preproc run src/main.js
  preproc run --out dist src
  preproc run --config preproc.yaml --release --db ./preproc.db --out dist src`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTransform(opts, args, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.OutDir, "out", "o", "", "output directory")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (optional)")

	return cmd
}

func runTransform(opts *RunOptions, paths []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	ctx, cancel := signalContext(cmd, opts.logger())
	defer cancel()

	inputs, err := CollectInputs(paths)
	if err != nil {
		_ = formatter.Error(loadErrorCode(err), err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to collect inputs", err)
	}

	sess, err := openSession(ctx, opts.RootOptions, opts.OutDir, opts.RunIDs)
	if err != nil {
		return sessionError(formatter, err)
	}
	defer sess.Close()

	result := RunResult{
		RunID:      sess.runID,
		Config:     sess.load.Path,
		ConfigHash: sess.load.Hash,
		Artifacts:  make([]ArtifactSummary, 0, len(inputs)),
	}
	for _, in := range inputs {
		if ctx.Err() != nil {
			break
		}
		sum := sess.process(ctx, in)
		result.Artifacts = append(result.Artifacts, sum)
		if sum.Changed {
			result.Changed++
		}
		if sum.Error != "" {
			result.Failed++
		}
		writeSummaryText(formatter, cmd, opts.OutDir, sum)
	}
	result.Defined = sess.defined()

	sess.logger.Info("run complete",
		zap.Int("artifacts", len(result.Artifacts)),
		zap.Int("changed", result.Changed),
		zap.Int("failed", result.Failed))

	resp := CLIResponse{Status: "ok", Data: result, RunID: result.RunID}
	var runErr error
	if result.Failed > 0 {
		msg := fmt.Sprintf("%d artifact(s) failed to transform", result.Failed)
		resp.Status = "error"
		resp.Error = &CLIError{Code: ErrCodeTransform, Message: msg}
		runErr = NewExitError(ExitFailure, msg)
	} else if err := ctx.Err(); err != nil {
		runErr = WrapExitError(ExitCommandError, "interrupted", err)
	}
	if opts.OutDir != "" {
		formatter.Textf("Processed %d artifact(s): %d changed, %d failed", len(result.Artifacts), result.Changed, result.Failed)
	}
	if err := formatter.Response(resp); err != nil {
		return err
	}
	return runErr
}

// writeSummaryText reports one artifact in text mode. Without --out the
// output text itself goes to stdout and failures to stderr.
func writeSummaryText(f *OutputFormatter, cmd *cobra.Command, outDir string, sum ArtifactSummary) {
	if f.JSON() {
		return
	}
	if sum.Error != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "\u2717 %s: %s\n", sum.ID, sum.Error)
		return
	}
	if outDir == "" {
		fmt.Fprint(cmd.OutOrStdout(), sum.Text)
		return
	}
	switch {
	case sum.Filtered:
		f.Textf("- %s (filtered)", sum.ID)
	case sum.Changed:
		f.Textf("\u2713 %s (%d edits)", sum.ID, sum.EditCount)
	default:
		f.Textf("  %s (unchanged)", sum.ID)
	}
}

// session is a configured pipeline, optionally journaling to a store.
// One session spans a run, or the lifetime of a watch.
type session struct {
	pipeline *transform.Pipeline
	store    *store.Store
	load     *LoadResult
	runID    string
	outDir   string
	logger   *zap.Logger
}

// openSession loads and validates configuration, opens the journal when
// --db is set and builds the pipeline.
func openSession(ctx context.Context, opts *RootOptions, outDir string, ids transform.RunIDGenerator) (*session, error) {
	logger := opts.logger()

	load, err := LoadConfig(opts)
	if err != nil {
		return nil, err
	}
	if verrs := compiler.Validate(load.Config); len(verrs) > 0 {
		return nil, &LoadError{
			Code:    ErrCodeValidation,
			Message: fmt.Sprintf("%s: %d validation error(s)", load.Path, len(verrs)),
			Err:     errors.Join(validationErrs(verrs)...),
		}
	}
	logger.Debug("config loaded", zap.String("path", load.Path), zap.String("hash", load.Hash))

	sess := &session{load: load, outDir: outDir, logger: logger}
	pipeOpts := []transform.Option{transform.WithLogger(logger)}

	if opts.Database != "" {
		st, err := store.Open(opts.Database)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeJournal, Message: "failed to open database", Err: err}
		}
		if ids == nil {
			ids = transform.UUIDv7Generator{}
		}
		run, err := st.BeginRun(ctx, ir.Run{
			ID:            ids.Generate(),
			ConfigHash:    load.Hash,
			Release:       load.Config.Comments.ForRelease,
			EngineVersion: ir.EngineVersion,
			ConfigVersion: ir.ConfigVersion,
		})
		if err != nil {
			_ = st.Close()
			return nil, &LoadError{Code: ErrCodeJournal, Message: "failed to begin run", Err: err}
		}
		sess.store = st
		sess.runID = run.ID
		pipeOpts = append(pipeOpts, transform.WithJournal(st, run.ID))
		logger.Info("journaling run", zap.String("db", opts.Database), zap.String("run", run.ID), zap.Int64("seq", run.Seq))
	}

	p, err := transform.New(load.Config, pipeOpts...)
	if err != nil {
		sess.Close()
		return nil, &LoadError{Code: ErrCodeConfigInvalid, Message: "failed to build pipeline", Err: err}
	}
	if err := p.Begin(ctx); err != nil {
		sess.Close()
		return nil, &LoadError{Code: ErrCodeJournal, Message: "failed to journal conditions", Err: err}
	}
	sess.pipeline = p
	return sess, nil
}

// Close releases the journal.
func (s *session) Close() {
	if s.store == nil {
		return
	}
	if err := s.store.Close(); err != nil {
		s.logger.Error("error closing database", zap.Error(err))
	}
	s.store = nil
}

// defined lists the registry's condition names, empty when comment
// processing is disabled.
func (s *session) defined() []string {
	reg := s.pipeline.Registry()
	if reg == nil {
		return []string{}
	}
	return reg.Names()
}

// process transforms one input and writes its output.
func (s *session) process(ctx context.Context, in Input) ArtifactSummary {
	sum := ArtifactSummary{ID: in.ID}
	fail := func(code string, err error) ArtifactSummary {
		sum.Error = err.Error()
		sum.ErrorCode = code
		s.logger.Warn("artifact failed", zap.String("artifact", in.ID), zap.Error(err))
		return sum
	}

	data, err := os.ReadFile(in.Path)
	if err != nil {
		return fail(ErrCodeReadFailed, err)
	}
	src := string(data)

	sum.Filtered = !s.pipeline.Accepts(in.ID)
	res, err := s.pipeline.Transform(ctx, src, in.ID)
	if err != nil {
		return fail(harness.ErrorCode(err), err)
	}

	out := src
	if res != nil {
		out = res.Text
		sum.Changed = true
		sum.EditCount = len(res.Edits)
	}
	s.logger.Debug("artifact processed",
		zap.String("artifact", in.ID),
		zap.Bool("filtered", sum.Filtered),
		zap.Int("edits", sum.EditCount))

	if s.outDir == "" {
		sum.Text = out
		return sum
	}

	dest := filepath.Join(s.outDir, filepath.FromSlash(in.ID))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fail(ErrCodeWriteFailed, err)
	}
	if err := os.WriteFile(dest, []byte(out), 0o644); err != nil {
		return fail(ErrCodeWriteFailed, err)
	}
	sum.Output = dest

	if res != nil && res.Map != nil {
		data, err := res.Map.JSON()
		if err != nil {
			return fail(ErrCodeWriteFailed, err)
		}
		if err := os.WriteFile(dest+".map", data, 0o644); err != nil {
			return fail(ErrCodeWriteFailed, err)
		}
		sum.Map = dest + ".map"
	}
	return sum
}

// sessionError reports an openSession failure and maps it to an exit code.
func sessionError(f *OutputFormatter, err error) error {
	code := loadErrorCode(err)
	var details any
	var verrs interface{ Unwrap() []error }
	if errors.As(err, &verrs) {
		details = verrs.Unwrap()
	}
	_ = f.Error(code, err.Error(), details)
	if code == ErrCodeValidation || code == ErrCodeConfigInvalid {
		return WrapExitError(ExitFailure, "invalid configuration", err)
	}
	return WrapExitError(ExitCommandError, "failed to start", err)
}

func validationErrs(verrs []compiler.ValidationError) []error {
	out := make([]error, len(verrs))
	for i, v := range verrs {
		out[i] = v
	}
	return out
}

// signalContext returns a context canceled on SIGINT/SIGTERM or when the
// command's own context ends.
func signalContext(cmd *cobra.Command, logger *zap.Logger) (context.Context, context.CancelFunc) {
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", zap.Stringer("signal", sig))
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}
