package transform

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/roach88/preproc/internal/conditional"
	"github.com/roach88/preproc/internal/edit"
	"github.com/roach88/preproc/internal/ir"
	"github.com/roach88/preproc/internal/pattern"
)

// Journal records processed artifacts. Implemented by *store.Store.
type Journal interface {
	WriteArtifact(ctx context.Context, rec ir.ArtifactRecord) error
	WriteConditions(ctx context.Context, recs []ir.ConditionRecord) error
}

// Result is a rewritten artifact.
type Result struct {
	Text  string
	Edits []edit.Edit     // against the original input
	Map   *edit.SourceMap // nil unless source maps are enabled
	Seq   int64
}

// Pipeline runs both stages over artifacts with one shared registry.
type Pipeline struct {
	mu sync.Mutex

	filter    pattern.Filter
	patterns  *pattern.Engine
	comments  *conditional.Processor // nil when comment processing is disabled
	registry  *conditional.Registry
	clock     Sequencer
	sourceMap bool
	logger    *zap.Logger

	journal Journal
	runID   string

	// defined collects names committed by the artifact in progress.
	defined []string
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger shared by both stages.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithRegistry shares an existing condition registry instead of seeding a
// new one from configuration.
func WithRegistry(reg *conditional.Registry) Option {
	return func(p *Pipeline) {
		p.registry = reg
	}
}

// WithJournal records every artifact under runID.
func WithJournal(j Journal, runID string) Option {
	return func(p *Pipeline) {
		p.journal = j
		p.runID = runID
	}
}

// WithClock sets the clock used to stamp artifacts.
func WithClock(c Sequencer) Option {
	return func(p *Pipeline) {
		p.clock = c
	}
}

// NewRegistry creates a registry seeded from configuration.
func NewRegistry(c ir.CommentsConfig) *conditional.Registry {
	reg := conditional.NewRegistry(c.ForRelease)
	reg.Define(c.Conditions...)
	reg.DefineStates(c.ConditionStates)
	return reg
}

// New builds a pipeline. Malformed rules and globs fail here, before any
// artifact is read.
func New(cfg *ir.Config, opts ...Option) (*Pipeline, error) {
	p := &Pipeline{
		clock:     NewClock(),
		sourceMap: cfg.SourceMap,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}

	filter, err := NewFilter(cfg.Include, cfg.Exclude)
	if err != nil {
		return nil, err
	}
	p.filter = filter

	p.patterns, err = pattern.New(cfg,
		pattern.WithLogger(p.logger.Named("pattern")),
		pattern.WithFilter(filter),
		pattern.WithSourceMap(false))
	if err != nil {
		return nil, err
	}

	if cfg.Comments.Enabled {
		if p.registry == nil {
			p.registry = NewRegistry(cfg.Comments)
		}
		p.comments = conditional.New(p.registry,
			conditional.WithLogger(p.logger.Named("conditional")),
			conditional.WithVerbose(cfg.Comments.Verbose),
			conditional.WithDefineHook(func(_ string, names []string) {
				p.defined = append(p.defined, names...)
			}))
	}
	return p, nil
}

// Registry returns the condition registry, or nil when comment processing
// is disabled.
func (p *Pipeline) Registry() *conditional.Registry {
	return p.registry
}

// Accepts reports whether artifactID passes the include/exclude filter.
func (p *Pipeline) Accepts(artifactID string) bool {
	return p.filter == nil || p.filter(artifactID)
}

// Begin journals the conditions defined by configuration.
func (p *Pipeline) Begin(ctx context.Context) error {
	if p.journal == nil || p.registry == nil {
		return nil
	}
	names := p.registry.Names()
	recs := make([]ir.ConditionRecord, len(names))
	for i, n := range names {
		recs[i] = ir.ConditionRecord{RunID: p.runID, Name: n, Source: ir.SourceConfig}
	}
	return p.journal.WriteConditions(ctx, recs)
}

// Transform runs the conditional stage and then the pattern stage.
//
// Transform returns (nil, nil) when the artifact is filtered out or
// neither stage changed it.
func (p *Pipeline) Transform(ctx context.Context, text, artifactID string) (*Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.filter != nil && !p.filter(artifactID) {
		p.logger.Debug("filtered", zap.String("artifact", artifactID))
		return nil, nil
	}

	seq := p.clock.Next()
	p.defined = p.defined[:0]
	res, err := p.transform(text, artifactID, seq)
	if err != nil {
		err = fmt.Errorf("transform %s: %w", artifactID, err)
	}
	if jerr := p.record(ctx, ir.StageTransform, artifactID, seq, res, err); jerr != nil && err == nil {
		return nil, jerr
	}
	return res, err
}

func (p *Pipeline) transform(text, artifactID string, seq int64) (*Result, error) {
	current := text
	var first, second []edit.Edit

	if p.comments != nil {
		cres, err := p.comments.Process(text, artifactID)
		if err != nil {
			return nil, err
		}
		if cres != nil {
			current, first = cres.Text, cres.Edits
		}
	}

	pres, err := p.patterns.Apply(current, artifactID)
	if err != nil {
		return nil, err
	}
	if pres != nil {
		current, second = pres.Text, pres.Edits
	}

	if first == nil && second == nil {
		return nil, nil
	}
	edits, err := edit.Compose(text, first, second)
	if err != nil {
		return nil, err
	}
	return p.result(text, current, artifactID, seq, edits)
}

// Render runs only the pattern stage. Markers are resolved by Transform,
// so rendered chunks are never scanned for them.
func (p *Pipeline) Render(ctx context.Context, text, chunkName string) (*Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !p.patterns.Accepts(chunkName) {
		return nil, nil
	}

	seq := p.clock.Next()
	p.defined = p.defined[:0]
	var res *Result
	pres, err := p.patterns.Apply(text, chunkName)
	if err == nil && pres != nil {
		res, err = p.result(text, pres.Text, chunkName, seq, pres.Edits)
	}
	if err != nil {
		err = fmt.Errorf("render %s: %w", chunkName, err)
	}
	if jerr := p.record(ctx, ir.StageRender, chunkName, seq, res, err); jerr != nil && err == nil {
		return nil, jerr
	}
	return res, err
}

func (p *Pipeline) result(src, out, artifactID string, seq int64, edits []edit.Edit) (*Result, error) {
	res := &Result{Text: out, Edits: edits, Seq: seq}
	if p.sourceMap {
		m, err := edit.NewSourceMap(artifactID, artifactID, src, edits)
		if err != nil {
			return nil, err
		}
		res.Map = m
	}
	return res, nil
}

// record journals one artifact and the names it defined.
func (p *Pipeline) record(ctx context.Context, stage, artifactID string, seq int64, res *Result, procErr error) error {
	if p.journal == nil {
		return nil
	}

	rec := ir.ArtifactRecord{
		RunID:      p.runID,
		Seq:        seq,
		ArtifactID: artifactID,
		Stage:      stage,
		Edits:      []ir.Span{},
	}
	if res != nil {
		rec.Changed = true
		rec.EditCount = len(res.Edits)
		rec.OutputHash = ir.ContentHash(res.Text)
		for _, e := range res.Edits {
			rec.Edits = append(rec.Edits, ir.Span{Start: e.Start, End: e.End, Text: e.Text})
		}
	}
	if procErr != nil {
		rec.Error = procErr.Error()
	}
	if err := p.journal.WriteArtifact(ctx, rec); err != nil {
		return fmt.Errorf("journal %s: %w", artifactID, err)
	}

	if len(p.defined) == 0 {
		return nil
	}
	recs := make([]ir.ConditionRecord, len(p.defined))
	for i, n := range p.defined {
		recs[i] = ir.ConditionRecord{RunID: p.runID, Name: n, Seq: seq, Source: ir.SourceDirective, ArtifactID: artifactID}
	}
	if err := p.journal.WriteConditions(ctx, recs); err != nil {
		return fmt.Errorf("journal %s conditions: %w", artifactID, err)
	}
	return nil
}
