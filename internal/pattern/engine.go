package pattern

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/roach88/preproc/internal/edit"
	"github.com/roach88/preproc/internal/ir"
)

// Filter decides whether an artifact is processed at all.
type Filter func(artifactID string) bool

// Result is a rewritten artifact.
type Result struct {
	Text  string
	Edits []edit.Edit     // against the input text, sorted by offset
	Map   *edit.SourceMap // nil unless source maps are enabled
}

// Engine applies a compiled rule set to artifacts.
//
// An Engine is immutable after construction and safe for concurrent use.
// Changing the rules requires building a new Engine.
type Engine struct {
	matcher   *Matcher // nil when there are no rules
	filter    Filter
	sourceMap bool
	timeout   time.Duration
	logger    *zap.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the logger used for per-match debug output.
func WithLogger(logger *zap.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithFilter restricts processing to artifacts accepted by f.
func WithFilter(f Filter) EngineOption {
	return func(e *Engine) {
		e.filter = f
	}
}

// WithSourceMap enables or disables source map generation.
func WithSourceMap(enabled bool) EngineOption {
	return func(e *Engine) {
		e.sourceMap = enabled
	}
}

// WithMatchTimeout bounds regex backtracking per scan.
func WithMatchTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		e.timeout = d
	}
}

// New builds an Engine from a compiled configuration.
// Source maps and the match timeout default to the configured values.
func New(cfg *ir.Config, opts ...EngineOption) (*Engine, error) {
	settings := Settings{
		Delimiters:        cfg.Delimiters,
		PreventAssignment: cfg.PreventAssignment,
		ObjectGuards:      cfg.ObjectGuards,
	}
	opts = append([]EngineOption{
		WithSourceMap(cfg.SourceMap),
		WithMatchTimeout(time.Duration(cfg.MatchTimeoutMS) * time.Millisecond),
	}, opts...)
	return NewFromRules(RulesFromConfig(cfg), settings, opts...)
}

// NewFromRules builds an Engine from rules with arbitrary producers.
// A malformed regex rule fails here with a RuleError.
func NewFromRules(rules []Rule, s Settings, opts ...EngineOption) (*Engine, error) {
	e := &Engine{sourceMap: true, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	if s.MatchTimeout == 0 {
		s.MatchTimeout = e.timeout
	}

	m, err := Compile(rules, s)
	if err != nil {
		return nil, err
	}
	e.matcher = m
	return e, nil
}

// Matcher returns the compiled matcher, or nil when there are no rules.
func (e *Engine) Matcher() *Matcher {
	return e.matcher
}

// Accepts reports whether Apply would scan the artifact.
func (e *Engine) Accepts(artifactID string) bool {
	if e.matcher == nil {
		return false
	}
	return e.filter == nil || e.filter(artifactID)
}

// Apply rewrites every match in text.
//
// Apply returns (nil, nil) when the artifact is unchanged: there are no
// rules, the filter rejects artifactID, or nothing matched. The first two
// are checked before the text is scanned.
func (e *Engine) Apply(text, artifactID string) (*Result, error) {
	if !e.Accepts(artifactID) {
		return nil, nil
	}

	matches, err := e.matcher.FindAll(text)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", artifactID, err)
	}
	if len(matches) == 0 {
		return nil, nil
	}

	buf := edit.NewBuffer(text)
	for _, m := range matches {
		rule, ok := e.matcher.Rule(m.Group)
		if !ok || rule.Produce == nil {
			return nil, &InternalError{Code: ErrCodeNoProducer, Group: m.Group, Match: m.Text, Offset: m.Start}
		}
		replacement := rule.Produce(artifactID, m.Text, rule.Key)
		if err := buf.Overwrite(m.Start, m.End, replacement); err != nil {
			return nil, fmt.Errorf("record replacement: %w", err)
		}
		e.logger.Debug("replace",
			zap.String("artifact", artifactID),
			zap.String("group", m.Group),
			zap.String("match", m.Text),
			zap.String("replacement", replacement),
			zap.Int("offset", m.Start))
	}

	result := &Result{Text: buf.String(), Edits: buf.Edits()}
	if e.sourceMap {
		result.Map, err = edit.NewSourceMap(artifactID, artifactID, text, result.Edits)
		if err != nil {
			return nil, fmt.Errorf("source map: %w", err)
		}
	}
	return result, nil
}
