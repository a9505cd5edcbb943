package conditional

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/roach88/preproc/internal/edit"
)

// maxTraceDepth caps trace indentation.
const maxTraceDepth = 100

// Result is a rewritten artifact.
type Result struct {
	Text  string
	Edits []edit.Edit // against the input text, one per changed line
}

// DefineHook observes names committed by a successful scan.
type DefineHook func(artifactID string, names []string)

// Processor comments out disallowed code. Scans are serialized, so the
// order in which artifacts are processed decides which directives each
// one sees.
type Processor struct {
	mu       sync.Mutex
	registry *Registry
	logger   *zap.Logger
	verbose  bool
	onDefine DefineHook
}

// Option configures a Processor.
type Option func(*Processor)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Processor) {
		p.logger = logger
	}
}

// WithVerbose logs every marker decision and the nesting trace of each scan.
func WithVerbose(verbose bool) Option {
	return func(p *Processor) {
		p.verbose = verbose
	}
}

// WithDefineHook registers a hook called after each scan that defined names.
func WithDefineHook(hook DefineHook) Option {
	return func(p *Processor) {
		p.onDefine = hook
	}
}

// New creates a processor over a shared registry.
func New(registry *Registry, opts ...Option) *Processor {
	p := &Processor{registry: registry, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Registry returns the shared registry.
func (p *Processor) Registry() *Registry {
	return p.registry
}

// scan is the state of one Process call.
type scan struct {
	artifact string
	lines    []line
	scope    *scope
	depth    int
	pending  int // line index where the outermost disallowed block opened, -1 if none
	trace    []string
}

// Process comments out disallowed lines of text.
//
// It returns (nil, nil) when no line changed. On a MismatchedBlockError the
// trace is logged before the error is returned and the registry is left
// untouched.
func (p *Processor) Process(text, artifactID string) (*Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := &scan{
		artifact: artifactID,
		lines:    splitLines(text),
		scope:    newScope(p.registry),
		pending:  -1,
	}

	for idx := range s.lines {
		if err := p.checkLine(s, idx); err != nil {
			p.emitTrace(s, zap.WarnLevel)
			return nil, err
		}
	}
	if s.depth != 0 {
		p.emitTrace(s, zap.WarnLevel)
		return nil, &MismatchedBlockError{
			Code:     ErrCodeMissingClose,
			Artifact: artifactID,
			Depth:    s.depth,
			Trace:    s.trace,
		}
	}

	if defined := s.scope.commit(); len(defined) > 0 {
		p.logger.Debug("conditions defined",
			zap.String("artifact", artifactID),
			zap.Strings("names", defined))
		if p.onDefine != nil {
			p.onDefine(artifactID, defined)
		}
	}
	if p.verbose {
		p.emitTrace(s, zap.InfoLevel)
	}

	edits := rewrite(s.lines)
	if len(edits) == 0 {
		return nil, nil
	}
	out, err := edit.Apply(text, edits)
	if err != nil {
		return nil, fmt.Errorf("apply line edits: %w", err)
	}
	return &Result{Text: out, Edits: edits}, nil
}

// checkLine handles the markers on one line. The first marker selects the
// operation.
func (p *Processor) checkLine(s *scan, idx int) error {
	l := &s.lines[idx]
	if isInert(l.text) {
		return nil
	}
	markers := parseMarkers(l.text)
	if len(markers) == 0 {
		return nil
	}

	first := markers[0]
	switch first.Op {
	case OpDefine:
		for _, m := range markers {
			if m.Op == OpDefine {
				s.scope.define(m.Names)
			}
		}

	case OpInline:
		allowed := true
		for _, m := range markers {
			if !s.scope.allowed(m.Names) {
				allowed = false
				break
			}
		}
		p.decision(s, idx, first, allowed)
		if !allowed {
			l.out = commentInline(l.out)
		}

	case OpOpen:
		s.trace = append(s.trace, traceLine(">>>", s.depth, idx, l.text))
		if s.depth == 0 {
			allowed := s.scope.allowed(first.Names)
			p.decision(s, idx, first, allowed)
			if !allowed {
				s.pending = idx
			}
		}
		s.depth++

	case OpClose:
		s.depth--
		if s.depth < 0 {
			return &MismatchedBlockError{
				Code:     ErrCodeMissingOpen,
				Artifact: s.artifact,
				Line:     idx + 1,
				Depth:    s.depth,
				Trace:    s.trace,
			}
		}
		s.trace = append(s.trace, traceLine("<<<", s.depth, idx, l.text))
		if s.depth == 0 && s.pending >= 0 {
			commentSpan(s.lines, s.pending, idx)
			s.pending = -1
		}
	}
	return nil
}

func (p *Processor) decision(s *scan, idx int, m Marker, allowed bool) {
	if !p.verbose {
		return
	}
	p.logger.Debug("marker",
		zap.String("artifact", s.artifact),
		zap.Int("line", idx+1),
		zap.String("op", string(m.Op)),
		zap.Strings("names", m.Names),
		zap.Bool("allowed", allowed))
}

func (p *Processor) emitTrace(s *scan, level zapcore.Level) {
	for _, t := range s.trace {
		p.logger.Check(level, "nesting").Write(
			zap.String("artifact", s.artifact),
			zap.String("trace", t))
	}
}

// traceLine formats one nesting event, indented by depth.
func traceLine(dir string, depth, idx int, text string) string {
	return "    : " + strings.Repeat(" ", min(maxTraceDepth, depth)*4) +
		fmt.Sprintf("%s %d: %s", dir, idx+1, text)
}
