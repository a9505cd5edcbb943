package harness

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/roach88/preproc/internal/conditional"
	"github.com/roach88/preproc/internal/ir"
	"github.com/roach88/preproc/internal/pattern"
	"github.com/roach88/preproc/internal/store"
	"github.com/roach88/preproc/internal/testutil"
	"github.com/roach88/preproc/internal/transform"
)

// Harness is the test execution engine.
// It runs scenarios with a deterministic clock and run id.
type Harness struct {
	pipeline *transform.Pipeline
	clock    *testutil.DeterministicClock
	runID    string
	logger   *zap.Logger
}

// Option configures scenario execution.
type Option func(*runOptions)

type runOptions struct {
	logger *zap.Logger
}

// WithLogger routes pipeline logs, including nesting traces, to logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *runOptions) {
		o.logger = logger
	}
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Deterministic helpers ensure reproducible results.
//
// Execution flow:
// 1. Compile the scenario config
// 2. Create fresh in-memory journal and begin a run
// 3. Feed artifacts through one pipeline, checking expect clauses
// 4. Evaluate assertions against the journal and registry
//
// An error is returned only when the scenario cannot be set up; failed
// expectations are reported through Result.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	o := &runOptions{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(o)
	}

	cfg, err := scenario.CompileConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to compile config: %w", err)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()
	h := &Harness{
		clock:  testutil.NewDeterministicClock(),
		runID:  testutil.NewFixedRunIDGenerator(scenario.RunID).Generate(),
		logger: o.logger,
	}

	hash, err := ir.ConfigHash(cfg)
	if err != nil {
		return nil, err
	}
	if _, err := st.BeginRun(ctx, ir.Run{
		ID:            h.runID,
		ConfigHash:    hash,
		Release:       cfg.Comments.ForRelease,
		EngineVersion: ir.EngineVersion,
		ConfigVersion: ir.ConfigVersion,
	}); err != nil {
		return nil, fmt.Errorf("failed to begin run: %w", err)
	}

	h.pipeline, err = transform.New(cfg,
		transform.WithJournal(st, h.runID),
		transform.WithClock(h.clock),
		transform.WithLogger(h.logger))
	if err != nil {
		return nil, fmt.Errorf("failed to build pipeline: %w", err)
	}
	if err := h.pipeline.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to journal conditions: %w", err)
	}

	result := NewResult()
	for i, step := range scenario.Artifacts {
		h.executeStep(ctx, i, step, result)
	}
	if reg := h.pipeline.Registry(); reg != nil {
		result.Defined = reg.Names()
	}

	actx := &AssertionContext{
		Store:    st,
		Ctx:      ctx,
		RunID:    h.runID,
		Registry: h.pipeline.Registry(),
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

// executeStep runs one artifact and checks its expect clause.
func (h *Harness) executeStep(ctx context.Context, i int, step ArtifactStep, result *Result) {
	before := h.clock.Current()

	var res *transform.Result
	var err error
	stage := ir.StageTransform
	if step.Render {
		stage = ir.StageRender
		res, err = h.pipeline.Render(ctx, step.Input, step.ID)
	} else {
		res, err = h.pipeline.Transform(ctx, step.Input, step.ID)
	}

	ev := TraceEvent{Artifact: step.ID, Stage: stage}
	if seq := h.clock.Current(); seq != before {
		ev.Seq = seq
	} else {
		ev.Filtered = true
	}
	output := step.Input
	if res != nil {
		output = res.Text
		ev.Changed = true
		ev.EditCount = len(res.Edits)
		ev.Output = res.Text
	}
	if err != nil {
		ev.Error = ErrorCode(err)
	}
	result.AddTrace(ev)

	label := fmt.Sprintf("artifacts[%d] %s", i, step.ID)
	expect := step.Expect
	if expect == nil {
		expect = &ExpectClause{}
	}

	if expect.Error != "" {
		switch {
		case err == nil:
			result.AddError(fmt.Sprintf("%s: expected error %s, got none", label, expect.Error))
		case expect.Error != ErrorAny && ev.Error != expect.Error:
			result.AddError(fmt.Sprintf("%s: expected error %s, got %s (%v)", label, expect.Error, ev.Error, err))
		}
		return
	}
	if err != nil {
		result.AddError(fmt.Sprintf("%s: unexpected error: %v", label, err))
		return
	}

	if expect.Unchanged && res != nil {
		result.AddError(fmt.Sprintf("%s: expected unchanged, got:\n%s", label, res.Text))
	}
	if expect.Output != nil && *expect.Output != output {
		result.AddError(fmt.Sprintf("%s: output mismatch\n  Expected: %q\n  Actual:   %q", label, *expect.Output, output))
	}
}

// ErrorCode classifies a processing error for expect clauses and traces.
func ErrorCode(err error) string {
	var mb *conditional.MismatchedBlockError
	if errors.As(err, &mb) {
		return string(mb.Code)
	}
	var ie *pattern.InternalError
	if errors.As(err, &ie) {
		return string(ie.Code)
	}
	return "ERROR"
}
