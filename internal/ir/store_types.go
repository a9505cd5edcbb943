package ir

// Stage names recorded in the journal.
const (
	StageTransform = "transform"
	StageRender    = "render"
)

// Condition sources recorded in the journal.
const (
	SourceConfig    = "config"
	SourceDirective = "directive"
)

// Run is one journaled invocation of the pipeline.
type Run struct {
	ID            string
	Seq           int64 // assigned by the store, increasing per database
	ConfigHash    string
	Release       bool
	EngineVersion string
	ConfigVersion string
}

// ArtifactRecord is one artifact processed within a run.
type ArtifactRecord struct {
	RunID      string
	Seq        int64 // logical processing order within the run
	ArtifactID string
	Stage      string
	Changed    bool
	EditCount  int
	Edits      []Span
	OutputHash string // ContentHash of the output, empty when unchanged
	Error      string
}

// Span is the journal form of one edit.
type Span struct {
	Start int
	End   int
	Text  string
}

// ConditionRecord is a condition name defined during a run.
// Seq is the artifact seq that defined it, 0 for configuration.
type ConditionRecord struct {
	RunID      string
	Name       string
	Seq        int64
	Source     string
	ArtifactID string
}
