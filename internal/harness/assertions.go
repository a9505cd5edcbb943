package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/preproc/internal/conditional"
	"github.com/roach88/preproc/internal/ir"
	"github.com/roach88/preproc/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for i, event := range e.Trace {
		status := "unchanged"
		switch {
		case event.Filtered:
			status = "filtered"
		case event.Error != "":
			status = "error " + event.Error
		case event.Changed:
			status = fmt.Sprintf("changed (%d edits)", event.EditCount)
		}
		fmt.Fprintf(&buf, "  [%d] %s %s: %s\n", i+1, event.Stage, event.Artifact, status)
	}

	return buf.String()
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Store    *store.Store
	Ctx      context.Context
	RunID    string
	Registry *conditional.Registry // nil when comment processing is disabled
}

// assertDefined checks that every name is (or, with want false, is not)
// defined at the end of the run.
func assertDefined(trace []TraceEvent, reg *conditional.Registry, assertion Assertion, want bool) error {
	var wrong []string
	for _, name := range assertion.Names {
		has := reg != nil && reg.Has(name)
		if has != want {
			wrong = append(wrong, name)
		}
	}
	if len(wrong) == 0 {
		return nil
	}

	actual := "not defined: " + strings.Join(wrong, ", ")
	if !want {
		actual = "defined: " + strings.Join(wrong, ", ")
	}
	if reg == nil {
		actual = "comment processing is disabled"
	}
	return &AssertionError{
		Type:     assertion.Type,
		Expected: strings.Join(assertion.Names, ", "),
		Actual:   actual,
		Trace:    trace,
	}
}

// assertDefinedBy checks the journal for directive definitions made by
// one artifact.
func assertDefinedBy(ctx context.Context, st *store.Store, runID string, trace []TraceEvent, assertion Assertion) error {
	conds, err := st.ReadConditions(ctx, runID)
	if err != nil {
		return fmt.Errorf("defined_by: %w", err)
	}

	definedBy := make(map[string]string)
	for _, c := range conds {
		if c.Source == ir.SourceDirective {
			definedBy[c.Name] = c.ArtifactID
		}
	}

	var wrong []string
	for _, name := range assertion.Names {
		if definedBy[name] != assertion.Artifact {
			by := definedBy[name]
			if by == "" {
				by = "<none>"
			}
			wrong = append(wrong, fmt.Sprintf("%s by %s", name, by))
		}
	}
	if len(wrong) == 0 {
		return nil
	}
	return &AssertionError{
		Type:     AssertDefinedBy,
		Expected: fmt.Sprintf("%s by %s", strings.Join(assertion.Names, ", "), assertion.Artifact),
		Actual:   strings.Join(wrong, ", "),
		Trace:    trace,
	}
}

// assertJournalCount counts journaled artifacts, optionally only changed ones.
func assertJournalCount(ctx context.Context, st *store.Store, runID string, trace []TraceEvent, assertion Assertion, changedOnly bool) error {
	recs, err := st.ReadArtifacts(ctx, runID)
	if err != nil {
		return fmt.Errorf("%s: %w", assertion.Type, err)
	}

	count := 0
	for _, r := range recs {
		if !changedOnly || r.Changed {
			count++
		}
	}
	if count == assertion.Count {
		return nil
	}
	return &AssertionError{
		Type:     assertion.Type,
		Expected: fmt.Sprintf("%d artifacts", assertion.Count),
		Actual:   fmt.Sprintf("%d artifacts", count),
		Trace:    trace,
	}
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides journal access for defined_by and count
// assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	var reg *conditional.Registry
	if actx != nil {
		reg = actx.Registry
	}

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertDefined:
			err = assertDefined(result.Trace, reg, assertion, true)
		case AssertNotDefined:
			err = assertDefined(result.Trace, reg, assertion, false)
		case AssertDefinedBy, AssertChangedCount, AssertJournalCount:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: %s requires journal context", i, assertion.Type)
				break
			}
			switch assertion.Type {
			case AssertDefinedBy:
				err = assertDefinedBy(actx.Ctx, actx.Store, actx.RunID, result.Trace, assertion)
			case AssertChangedCount:
				err = assertJournalCount(actx.Ctx, actx.Store, actx.RunID, result.Trace, assertion, true)
			default:
				err = assertJournalCount(actx.Ctx, actx.Store, actx.RunID, result.Trace, assertion, false)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
