package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/preproc/internal/compiler"
	"github.com/roach88/preproc/internal/ir"
)

// Scenario defines a transformation scenario.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// RunID is an optional fixed journal run id for deterministic tests.
	// If empty, defaults to testutil.DefaultRunID.
	RunID string `yaml:"run_id,omitempty"`

	// Config is an inline configuration, decoded like preproc.yaml.
	Config yaml.Node `yaml:"config,omitempty"`

	// ConfigFile is a configuration file path, used when Config is absent.
	// Relative paths are resolved against the scenario's base path.
	ConfigFile string `yaml:"config_file,omitempty"`

	// Artifacts are processed in order through one pipeline.
	Artifacts []ArtifactStep `yaml:"artifacts"`

	// Assertions validate the final run state.
	Assertions []Assertion `yaml:"assertions,omitempty"`

	// path is the file the scenario was loaded from, for error positions.
	path string
}

// ArtifactStep is one artifact fed to the pipeline.
type ArtifactStep struct {
	// ID is the artifact identifier matched by include/exclude globs.
	ID string `yaml:"id"`

	// Render runs only the pattern stage.
	Render bool `yaml:"render,omitempty"`

	// Input is the artifact text.
	Input string `yaml:"input"`

	// Expect specifies the expected outcome.
	// If nil, the artifact must be processed without error.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected outcome of one artifact.
// At most one of Output, Unchanged and Error may be set.
type ExpectClause struct {
	// Output is the exact expected text.
	Output *string `yaml:"output,omitempty"`

	// Unchanged expects the artifact to come back untouched.
	Unchanged bool `yaml:"unchanged,omitempty"`

	// Error is the expected error code (MISSING_OPEN, MISSING_CLOSE,
	// NO_GROUP, NO_PRODUCER) or "any".
	Error string `yaml:"error,omitempty"`
}

// Assertion validates the final run state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "defined": names are defined at the end of the run
	// - "not_defined": names are not defined at the end of the run
	// - "defined_by": names were defined by a directive in Artifact
	// - "changed_count": Count artifacts were changed
	// - "journal_count": Count artifacts were journaled
	Type string `yaml:"type"`

	// Names are condition names (defined, not_defined, defined_by).
	Names []string `yaml:"names,omitempty"`

	// Artifact is the defining artifact id (defined_by).
	Artifact string `yaml:"artifact,omitempty"`

	// Count is the expected number (changed_count, journal_count).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertDefined      = "defined"
	AssertNotDefined   = "not_defined"
	AssertDefinedBy    = "defined_by"
	AssertChangedCount = "changed_count"
	AssertJournalCount = "journal_count"
)

// ErrorAny matches any processing error in an expect clause.
const ErrorAny = "any"

// LoadScenario reads and parses a scenario YAML file. A config_file is
// resolved relative to the scenario's directory.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving config_file relative to the provided base path.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	scenario.path = path

	if scenario.ConfigFile != "" && !filepath.IsAbs(scenario.ConfigFile) && basePath != "" {
		scenario.ConfigFile = filepath.Join(basePath, scenario.ConfigFile)
	}
	if scenario.ConfigFile != "" {
		if _, err := os.Stat(scenario.ConfigFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("invalid scenario: config file not found: %s", scenario.ConfigFile)
		}
	}

	return scenario, nil
}

// ParseScenario parses scenario YAML without touching the filesystem.
func ParseScenario(data []byte) (*Scenario, error) {
	// Parse YAML with strict field validation (catches typos like "artifact:" vs "artifacts:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadDir loads every *.yaml and *.yml scenario in dir, sorted by file name.
func LoadDir(dir string) ([]*Scenario, error) {
	var paths []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		paths = append(paths, matches...)
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// CompileConfig returns the scenario's configuration.
func (s *Scenario) CompileConfig() (*ir.Config, error) {
	if s.Config.Kind != 0 {
		name := s.path
		if name == "" {
			name = s.Name
		}
		return compiler.DecodeYAMLNode(&s.Config, name)
	}
	return compiler.LoadFile(s.ConfigFile)
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	hasConfig := s.Config.Kind != 0
	if hasConfig == (s.ConfigFile != "") {
		return fmt.Errorf("exactly one of config and config_file is required")
	}

	if len(s.Artifacts) == 0 {
		return fmt.Errorf("artifacts list is required and must be non-empty")
	}

	for i, step := range s.Artifacts {
		if step.ID == "" {
			return fmt.Errorf("artifacts[%d]: id is required", i)
		}
		if e := step.Expect; e != nil {
			set := 0
			if e.Output != nil {
				set++
			}
			if e.Unchanged {
				set++
			}
			if e.Error != "" {
				set++
			}
			if set > 1 {
				return fmt.Errorf("artifacts[%d].expect: output, unchanged and error are exclusive", i)
			}
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertDefined, AssertNotDefined:
		if len(a.Names) == 0 {
			return fmt.Errorf("assertions[%d]: names list is required for %s", index, a.Type)
		}
	case AssertDefinedBy:
		if len(a.Names) == 0 {
			return fmt.Errorf("assertions[%d]: names list is required for defined_by", index)
		}
		if a.Artifact == "" {
			return fmt.Errorf("assertions[%d]: artifact is required for defined_by", index)
		}
	case AssertChangedCount, AssertJournalCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
