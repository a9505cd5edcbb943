// Package harness runs transformation scenarios against the full pipeline.
//
// A scenario feeds an ordered list of artifacts through one pipeline, so
// directives defined by an earlier artifact are visible to later ones,
// and checks each artifact's output as well as the final run state.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	run_id: "test-run-001"          # optional, fixed for golden output
//	config:                         # inline config, same shape as preproc.yaml
//	  values: { __DEV__: "false" }
//	  comments: { enabled: true }
//	# config_file: ../preproc.cue   # or a config file, relative to the scenario
//	artifacts:
//	  - id: src/features.js
//	    input: |
//	      /*<feature>*/
//	    expect:
//	      unchanged: true
//	  - id: src/app.js
//	    input: |
//	      if (__DEV__) log(); /*[feature]{}*/
//	    expect:
//	      output: |
//	        if (false) log(); /*[feature]{}*/
//	  - id: src/broken.js
//	    input: "/*{*/\n"
//	    expect:
//	      error: MISSING_CLOSE
//	assertions:
//	  - type: defined
//	    names: [feature]
//	  - type: defined_by
//	    names: [feature]
//	    artifact: src/features.js
//
// Artifacts marked render: true run only the pattern stage, the way
// emitted chunks are processed.
//
// # Assertion Types
//
//   - defined: every name is defined when the scenario ends
//   - not_defined: no name is defined when the scenario ends
//   - defined_by: every name was defined by a directive in artifact
//   - changed_count: exactly count artifacts were changed
//   - journal_count: exactly count artifacts were journaled (filtered
//     artifacts are not)
//
// # Deterministic Testing
//
// Every scenario runs against a fresh in-memory journal with a fixed run
// id (testutil.FixedRunIDGenerator) and a logical clock that starts at
// zero (testutil.DeterministicClock), so repeated runs produce identical
// traces for golden comparison.
package harness
