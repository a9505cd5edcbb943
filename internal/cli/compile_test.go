package cli

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/preproc/internal/compiler"
	"github.com/roach88/preproc/internal/ir"
)

const compileConfig = `values:
  __DEV__: false
  VERSION: "1.2"
regexValues:
  '\bfoo\d+': bar
comments:
  enabled: true
  conditions: [dbg]
`

type compileResponse struct {
	Status string        `json:"status"`
	Data   CompileResult `json:"data"`
	Error  *CLIError     `json:"error"`
}

func TestCompileText(t *testing.T) {
	config := writeFile(t, t.TempDir(), "preproc.yaml", compileConfig)

	out, _, err := executeRoot(t, "--config", config, "compile")
	require.NoError(t, err)

	lines := strings.SplitN(out, "\n", 3)
	require.Len(t, lines, 3)
	assert.Equal(t, "Config: "+config, lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "Hash:   "))

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "compile_text", []byte(lines[2]))
}

func TestCompileJSON(t *testing.T) {
	config := writeFile(t, t.TempDir(), "preproc.yaml", compileConfig)

	out, _, err := executeRoot(t, "--config", config, "--format", "json", "--define", "extra", "compile")
	require.NoError(t, err)

	var resp compileResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, config, resp.Data.Config)
	assert.True(t, resp.Data.Comments)
	assert.False(t, resp.Data.Release)
	assert.Equal(t, []string{"dbg", "extra"}, resp.Data.Conditions)

	require.Len(t, resp.Data.Rules, 3)
	assert.Equal(t, CompiledRule{Group: "r0", Kind: "regex", Key: `\bfoo\d+`, Value: "bar"}, resp.Data.Rules[0])
	assert.Equal(t, CompiledRule{Group: "n0", Kind: "literal", Key: "__DEV__", Value: "false"}, resp.Data.Rules[1])
	assert.Contains(t, resp.Data.Matcher, "(?<n1>VERSION)")
}

func TestCompileHashFollowsOverrides(t *testing.T) {
	config := writeFile(t, t.TempDir(), "preproc.yaml", compileConfig)

	hashOf := func(args ...string) string {
		out, _, err := executeRoot(t, append(append([]string{"--config", config, "--format", "json"}, args...), "compile")...)
		require.NoError(t, err)
		var resp compileResponse
		require.NoError(t, json.Unmarshal([]byte(out), &resp))
		return resp.Data.ConfigHash
	}

	plain := hashOf()
	assert.Equal(t, plain, hashOf(), "hash is stable")
	assert.NotEqual(t, plain, hashOf("--release"))
	assert.NotEqual(t, plain, hashOf("--define", "other"))
}

func TestCompileObjectGuards(t *testing.T) {
	config := writeFile(t, t.TempDir(), "preproc.yaml", `values:
  process.env.NODE_ENV: '"production"'
objectGuards: true
`)

	out, _, err := executeRoot(t, "--config", config, "--format", "json", "compile")
	require.NoError(t, err)

	var resp compileResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Greater(t, len(resp.Data.Rules), 1, "guards add typeof rules")

	keys := make([]string, len(resp.Data.Rules))
	for i, r := range resp.Data.Rules {
		keys[i] = r.Key
	}
	assert.Contains(t, keys, "process.env.NODE_ENV")
	assert.Contains(t, keys, "typeof process ===")
	assert.Contains(t, keys, "typeof process.env !==")
}

func TestCompileNoRules(t *testing.T) {
	config := writeFile(t, t.TempDir(), "preproc.yaml", "sourceMap: false\n")

	out, _, err := executeRoot(t, "--config", config, "compile")
	require.NoError(t, err)
	assert.Contains(t, out, "Rules:  none")
	assert.Contains(t, out, "Comments: disabled")
}

func TestCompileRelease(t *testing.T) {
	config := writeFile(t, t.TempDir(), "preproc.yaml", compileConfig)

	out, _, err := executeRoot(t, "--config", config, "--release", "compile")
	require.NoError(t, err)
	assert.Contains(t, out, "Comments: release (blocks never allowed)")
}

func TestCompileWritesCanonicalJSON(t *testing.T) {
	dir := t.TempDir()
	config := writeFile(t, dir, "preproc.yaml", compileConfig)
	output := filepath.Join(dir, "canonical.json")

	_, _, err := executeRoot(t, "--config", config, "compile", "--output", output)
	require.NoError(t, err)

	cfg, err := compiler.LoadFile(config)
	require.NoError(t, err)
	want, err := ir.CanonicalJSON(cfg)
	require.NoError(t, err)
	assert.Equal(t, string(want), readFile(t, output))
}

func TestCompileMissingConfig(t *testing.T) {
	_, _, err := executeRoot(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "compile")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCompileRejectsArgs(t *testing.T) {
	_, _, err := executeRoot(t, "compile", "extra")
	require.Error(t, err)
}
