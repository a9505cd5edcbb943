package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/preproc/internal/conditional"
)

func TestAssertionErrorFormat(t *testing.T) {
	err := &AssertionError{
		Type:     AssertDefined,
		Expected: "a, b",
		Actual:   "not defined: b",
		Trace: []TraceEvent{
			{Seq: 1, Artifact: "a.js", Stage: "transform", Changed: true, EditCount: 2},
			{Artifact: "vendor/x.js", Stage: "transform", Filtered: true},
			{Seq: 2, Artifact: "b.js", Stage: "transform", Error: "MISSING_CLOSE"},
			{Seq: 3, Artifact: "c.js", Stage: "render"},
		},
	}

	assert.Equal(t, "Assertion failed: defined\n"+
		"  Expected: a, b\n"+
		"  Actual: not defined: b\n"+
		"\nFull trace:\n"+
		"  [1] transform a.js: changed (2 edits)\n"+
		"  [2] transform vendor/x.js: filtered\n"+
		"  [3] transform b.js: error MISSING_CLOSE\n"+
		"  [4] render c.js: unchanged\n", err.Error())
}

func TestEvaluateAssertionsRegistryOnly(t *testing.T) {
	reg := conditional.NewRegistry(false)
	reg.Define("a")
	actx := &AssertionContext{Registry: reg}

	errs := EvaluateAssertions(NewResult(), []Assertion{
		{Type: AssertDefined, Names: []string{"a"}},
		{Type: AssertNotDefined, Names: []string{"b"}},
	}, actx)
	assert.Empty(t, errs)

	errs = EvaluateAssertions(NewResult(), []Assertion{
		{Type: AssertNotDefined, Names: []string{"a"}},
	}, actx)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "Actual: defined: a")
}

func TestEvaluateAssertionsNeedsJournal(t *testing.T) {
	errs := EvaluateAssertions(NewResult(), []Assertion{
		{Type: AssertChangedCount, Count: 0},
		{Type: AssertDefinedBy, Names: []string{"a"}, Artifact: "a.js"},
		{Type: "bogus"},
	}, nil)

	require.Len(t, errs, 3)
	assert.Equal(t, "assertion[0]: changed_count requires journal context", errs[0])
	assert.Equal(t, "assertion[1]: defined_by requires journal context", errs[1])
	assert.Equal(t, `assertion[2]: unknown assertion type "bogus"`, errs[2])
}

func TestResultAddError(t *testing.T) {
	r := NewResult()
	assert.True(t, r.Pass)

	r.AddError("boom")
	assert.False(t, r.Pass)
	assert.Equal(t, []string{"boom"}, r.Errors)
}
