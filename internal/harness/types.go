package harness

// TraceEvent records one artifact as the pipeline saw it.
type TraceEvent struct {
	Seq       int64  `json:"seq"` // 0 when filtered out
	Artifact  string `json:"artifact"`
	Stage     string `json:"stage"`
	Filtered  bool   `json:"filtered,omitempty"`
	Changed   bool   `json:"changed"`
	EditCount int    `json:"edit_count"`
	Output    string `json:"output,omitempty"` // only when changed
	Error     string `json:"error,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace contains one event per artifact, in scenario order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Defined lists the condition names defined at the end of the run.
	Defined []string `json:"defined"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Trace:   []TraceEvent{},
		Errors:  []string{},
		Defined: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends an artifact event.
func (r *Result) AddTrace(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
}
