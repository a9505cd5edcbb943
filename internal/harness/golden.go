package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/preproc/internal/ir"
	"github.com/roach88/preproc/internal/testutil"
)

// TraceSnapshot captures the complete trace for a scenario execution.
// All fields use canonical JSON serialization for deterministic comparison.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	RunID        string       `json:"run_id"`
	Trace        []TraceEvent `json:"trace"`
	Defined      []string     `json:"defined"`
}

// toCanonicalMap converts a TraceSnapshot to a map[string]any for canonical JSON serialization.
// This is required because ir.MarshalCanonical only handles primitives, slices and maps.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		eventMap := map[string]any{
			"seq":        event.Seq,
			"artifact":   event.Artifact,
			"stage":      event.Stage,
			"changed":    event.Changed,
			"edit_count": event.EditCount,
		}
		if event.Filtered {
			eventMap["filtered"] = true
		}
		if event.Output != "" {
			eventMap["output"] = event.Output
		}
		if event.Error != "" {
			eventMap["error"] = event.Error
		}
		traceList[i] = eventMap
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"run_id":        s.RunID,
		"trace":         traceList,
		"defined":       s.Defined,
	}
}

// Snapshot returns the canonical JSON of a scenario result.
func Snapshot(scenario *Scenario, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{
		ScenarioName: scenario.Name,
		RunID:        testutil.NewFixedRunIDGenerator(scenario.RunID).Generate(),
		Trace:        result.Trace,
		Defined:      result.Defined,
	}
	return ir.MarshalCanonical(snapshot.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	return AssertGolden(t, scenario, result)
}

// AssertGolden compares an already computed result against its golden file.
func AssertGolden(t *testing.T, scenario *Scenario, result *Result) error {
	t.Helper()

	traceJSON, err := Snapshot(scenario, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, traceJSON)

	return nil
}
