package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/preproc/internal/ir"
	"github.com/roach88/preproc/internal/store"
	"github.com/roach88/preproc/internal/testutil"
)

type runResponse struct {
	Status string    `json:"status"`
	Data   RunResult `json:"data"`
	Error  *CLIError `json:"error"`
	RunID  string    `json:"run_id"`
}

func TestRunStdout(t *testing.T) {
	config, src := featureProject(t)

	out, _, err := executeRoot(t, "--config", config, "run",
		filepath.Join(src, "early.js"),
		filepath.Join(src, "features.js"),
		filepath.Join(src, "app.js"),
	)
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "run_stdout", []byte(out))
}

func TestRunDirectoryOrderIsLexical(t *testing.T) {
	config, src := featureProject(t)

	out, _, err := executeRoot(t, "--config", config, "--format", "json", "run", src)
	require.NoError(t, err)

	var resp runResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)

	ids := make([]string, len(resp.Data.Artifacts))
	for i, a := range resp.Data.Artifacts {
		ids[i] = a.ID
	}
	assert.Equal(t, []string{"app.js", "early.js", "features.js"}, ids)
	assert.Equal(t, []string{"base", "feature"}, resp.Data.Defined)
	assert.Equal(t, 2, resp.Data.Changed)
	assert.Zero(t, resp.Data.Failed)
	assert.Equal(t, config, resp.Data.Config)
	assert.NotEmpty(t, resp.Data.ConfigHash)

	// features.js is processed last, so early.js still sees "feature" undefined.
	assert.Equal(t, "// log(\"early\"); /*[feature]{}*/\n", resp.Data.Artifacts[1].Text)
	assert.False(t, resp.Data.Artifacts[2].Changed)
	assert.Equal(t, featuresJS, resp.Data.Artifacts[2].Text)
}

func TestRunWritesOutputDirectory(t *testing.T) {
	config, src := featureProject(t)
	outDir := filepath.Join(t.TempDir(), "dist")

	out, _, err := executeRoot(t, "--config", config, "run", "--out", outDir, src)
	require.NoError(t, err)

	assert.Contains(t, out, "\u2713 early.js (")
	assert.Contains(t, out, "  features.js (unchanged)")
	assert.Contains(t, out, "Processed 3 artifact(s): 2 changed, 0 failed")

	assert.Equal(t, "// log(\"early\"); /*[feature]{}*/\n", readFile(t, filepath.Join(outDir, "early.js")))
	assert.Equal(t, featuresJS, readFile(t, filepath.Join(outDir, "features.js")))
	assert.FileExists(t, filepath.Join(outDir, "app.js"))

	var sourceMap map[string]any
	require.NoError(t, json.Unmarshal([]byte(readFile(t, filepath.Join(outDir, "early.js.map"))), &sourceMap))
	assert.EqualValues(t, 3, sourceMap["version"])
	assert.NoFileExists(t, filepath.Join(outDir, "features.js.map"), "unchanged artifacts get no map")
}

func TestRunNestedIDs(t *testing.T) {
	dir := t.TempDir()
	config := writeFile(t, dir, "preproc.yaml", featureConfig)
	src := filepath.Join(dir, "src")
	writeFile(t, src, "lib/util.js", "if (__DEV__) x();\n")
	outDir := filepath.Join(dir, "dist")

	_, _, err := executeRoot(t, "--config", config, "run", "--out", outDir, src)
	require.NoError(t, err)

	assert.Equal(t, "if (false) x();\n", readFile(t, filepath.Join(outDir, "lib", "util.js")))
}

func TestRunFilteredArtifacts(t *testing.T) {
	dir := t.TempDir()
	config := writeFile(t, dir, "preproc.yaml", `values:
  __DEV__: "false"
include: ["lib/**"]
`)
	src := filepath.Join(dir, "src")
	writeFile(t, src, "lib/a.js", "__DEV__;\n")
	writeFile(t, src, "b.js", "__DEV__;\n")
	outDir := filepath.Join(dir, "dist")

	out, _, err := executeRoot(t, "--config", config, "run", "--out", outDir, src)
	require.NoError(t, err)

	assert.Contains(t, out, "- b.js (filtered)")
	assert.Contains(t, out, "\u2713 lib/a.js (1 edits)")
	assert.Equal(t, "__DEV__;\n", readFile(t, filepath.Join(outDir, "b.js")), "filtered artifacts are copied unchanged")
	assert.Equal(t, "false;\n", readFile(t, filepath.Join(outDir, "lib", "a.js")))
}

func TestRunReleaseFlag(t *testing.T) {
	config, src := featureProject(t)

	out, _, err := executeRoot(t, "--config", config, "--release", "run", filepath.Join(src, "app.js"))
	require.NoError(t, err)

	assert.Contains(t, out, "// log(\"late\"); /*[feature, base]{}*/\n")
}

func TestRunDefineFlag(t *testing.T) {
	config, src := featureProject(t)

	out, _, err := executeRoot(t, "--config", config, "--define", "trace", "run", filepath.Join(src, "app.js"))
	require.NoError(t, err)

	assert.Contains(t, out, "\n    trace(\"production\");\n")
	assert.NotContains(t, out, "//trace")
}

func TestRunMismatchedBlockFails(t *testing.T) {
	dir := t.TempDir()
	config := writeFile(t, dir, "preproc.yaml", featureConfig)
	broken := writeFile(t, dir, "src/broken.js", "x();\n/*}*/\n")
	ok := writeFile(t, dir, "src/ok.js", "if (__DEV__) y();\n")

	out, errOut, err := executeRoot(t, "--config", config, "run", broken, ok)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	assert.Contains(t, errOut, "\u2717 broken.js:")
	assert.Contains(t, errOut, "MISSING_OPEN")
	assert.Equal(t, "if (false) y();\n", out, "later artifacts are still processed")
}

func TestRunMismatchJSON(t *testing.T) {
	dir := t.TempDir()
	config := writeFile(t, dir, "preproc.yaml", featureConfig)
	broken := writeFile(t, dir, "src/broken.js", "/*[dbg]{*/\nx();\n")

	out, _, err := executeRoot(t, "--config", config, "--format", "json", "run", broken)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp runResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeTransform, resp.Error.Code)
	require.Len(t, resp.Data.Artifacts, 1)
	assert.Equal(t, "MISSING_CLOSE", resp.Data.Artifacts[0].ErrorCode)
	assert.Equal(t, 1, resp.Data.Failed)
}

func TestRunMissingConfig(t *testing.T) {
	_, src := featureProject(t)

	_, _, err := executeRoot(t, "--config", filepath.Join(t.TempDir(), "nope.yaml"), "run", src)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRunMissingInput(t *testing.T) {
	config, _ := featureProject(t)

	_, _, err := executeRoot(t, "--config", config, "run", filepath.Join(t.TempDir(), "missing.js"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRunInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	config := writeFile(t, dir, "preproc.yaml", "regexValues:\n  '([': x\n")
	src := writeFile(t, dir, "a.js", "a\n")

	out, _, err := executeRoot(t, "--config", config, "--format", "json", "run", src)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeValidation, resp.Error.Code)
}

func TestRunJournal(t *testing.T) {
	config, src := featureProject(t)
	db := filepath.Join(t.TempDir(), "journal.db")

	opts := &RunOptions{
		RootOptions: &RootOptions{Format: "json", ConfigPath: config, Database: db},
		RunIDs:      testutil.NewFixedRunIDGenerator("run-fixed"),
	}
	cmd := &cobra.Command{}
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})

	require.NoError(t, runTransform(opts, []string{
		filepath.Join(src, "early.js"),
		filepath.Join(src, "features.js"),
		filepath.Join(src, "app.js"),
	}, cmd))

	var resp runResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, "run-fixed", resp.RunID)
	assert.Equal(t, "run-fixed", resp.Data.RunID)

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()

	ctx := t.Context()
	run, err := st.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-fixed", run.ID)
	assert.Equal(t, resp.Data.ConfigHash, run.ConfigHash)
	assert.False(t, run.Release)

	recs, err := st.ReadArtifacts(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "early.js", recs[0].ArtifactID)
	assert.True(t, recs[0].Changed)
	assert.False(t, recs[1].Changed)

	conds, err := st.ReadConditions(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, conds, 2)
	assert.Equal(t, "base", conds[0].Name)
	assert.Equal(t, ir.SourceConfig, conds[0].Source)
	assert.Equal(t, "feature", conds[1].Name)
	assert.Equal(t, ir.SourceDirective, conds[1].Source)
	assert.Equal(t, "features.js", conds[1].ArtifactID)
}
