package ir

// Config is a compiled preproc configuration.
type Config struct {
	Values            []RuleSpec     `json:"values"`
	RegexValues       []RuleSpec     `json:"regexValues"`
	Delimiters        *Delimiters    `json:"delimiters,omitempty"` // nil = identifier boundaries
	PreventAssignment bool           `json:"preventAssignment"`
	ObjectGuards      bool           `json:"objectGuards"`
	Include           []string       `json:"include,omitempty"`
	Exclude           []string       `json:"exclude,omitempty"`
	SourceMap         bool           `json:"sourceMap"`
	MatchTimeoutMS    int64          `json:"matchTimeoutMs,omitempty"`
	Comments          CommentsConfig `json:"comments"`
}

// RuleSpec is a single key -> value replacement as written in configuration.
type RuleSpec struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Delimiters wrap every literal rule: Before is prepended, After appended.
type Delimiters struct {
	Before string `json:"before"`
	After  string `json:"after"`
}

// CommentsConfig configures the conditional comment processor.
type CommentsConfig struct {
	Enabled    bool `json:"enabled"`
	ForRelease bool `json:"forRelease"`

	// Conditions are defined unconditionally.
	Conditions []string `json:"conditions,omitempty"`

	// ConditionStates are defined when truthy and not the string "0".
	// Values are string, int64 or bool.
	ConditionStates map[string]any `json:"conditionStates,omitempty"`

	Verbose bool `json:"verbose"`
}

// NewConfig returns a Config with defaults applied.
func NewConfig() *Config {
	return &Config{SourceMap: true}
}

// HasRules reports whether any literal or regex rule is configured.
func (c *Config) HasRules() bool {
	return len(c.Values) > 0 || len(c.RegexValues) > 0
}
