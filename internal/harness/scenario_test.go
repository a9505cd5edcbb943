package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalScenario = `
name: minimal
description: "one artifact"
config:
  values: { A: "1" }
artifacts:
  - id: a.js
    input: "A"
`

func TestParseScenarioMinimal(t *testing.T) {
	s, err := ParseScenario([]byte(minimalScenario))
	require.NoError(t, err)

	assert.Equal(t, "minimal", s.Name)
	require.Len(t, s.Artifacts, 1)
	assert.Equal(t, "a.js", s.Artifacts[0].ID)
	assert.Nil(t, s.Artifacts[0].Expect)

	cfg, err := s.CompileConfig()
	require.NoError(t, err)
	assert.Equal(t, "A", cfg.Values[0].Key)
}

func TestParseScenarioRejectsUnknownFields(t *testing.T) {
	_, err := ParseScenario([]byte(minimalScenario + "artifact: []\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenarioValidation(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "missing name",
			src:  "config: {}\nartifacts: [{id: a, input: x}]\n",
			want: "name is required",
		},
		{
			name: "missing config",
			src:  "name: n\nartifacts: [{id: a, input: x}]\n",
			want: "exactly one of config and config_file",
		},
		{
			name: "both configs",
			src:  "name: n\nconfig: {}\nconfig_file: a.cue\nartifacts: [{id: a, input: x}]\n",
			want: "exactly one of config and config_file",
		},
		{
			name: "no artifacts",
			src:  "name: n\nconfig: {}\n",
			want: "artifacts list is required",
		},
		{
			name: "missing id",
			src:  "name: n\nconfig: {}\nartifacts: [{input: x}]\n",
			want: "artifacts[0]: id is required",
		},
		{
			name: "exclusive expect",
			src:  "name: n\nconfig: {}\nartifacts: [{id: a, input: x, expect: {unchanged: true, error: any}}]\n",
			want: "artifacts[0].expect: output, unchanged and error are exclusive",
		},
		{
			name: "unknown assertion",
			src:  "name: n\nconfig: {}\nartifacts: [{id: a, input: x}]\nassertions: [{type: nope}]\n",
			want: `unknown assertion type "nope"`,
		},
		{
			name: "defined without names",
			src:  "name: n\nconfig: {}\nartifacts: [{id: a, input: x}]\nassertions: [{type: defined}]\n",
			want: "names list is required for defined",
		},
		{
			name: "defined_by without artifact",
			src:  "name: n\nconfig: {}\nartifacts: [{id: a, input: x}]\nassertions: [{type: defined_by, names: [a]}]\n",
			want: "artifact is required for defined_by",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.src))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenarioResolvesConfigFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "preproc.cue"), []byte(`values: A: "1"`), 0o644))
	path := filepath.Join(dir, "s.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: from_file
config_file: preproc.cue
artifacts:
  - id: a.js
    input: "A"
    expect: { output: "1" }
`), 0o644))

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "preproc.cue"), s.ConfigFile)

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "%v", result.Errors)
}

func TestLoadScenarioMissingConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "s.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: n\nconfig_file: nope.cue\nartifacts: [{id: a, input: x}]\n"), 0o644))

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file not found")
}

func TestLoadScenarioMissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadDirReportsBadFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yml"), []byte("name: [\n"), 0o644))

	_, err := LoadDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.yml")
}
