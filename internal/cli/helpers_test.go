package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// featureConfig enables comments and defines "base"; __DEV__ and the
// NODE_ENV key are replaced.
const featureConfig = `values:
  __DEV__: "false"
  process.env.NODE_ENV: '"production"'
preventAssignment: true
comments:
  enabled: true
  conditions: [base]
`

const (
	earlyJS    = "log(\"early\"); /*[feature]{}*/\n"
	featuresJS = "/*<feature>*/\n"
	appJS      = `if (__DEV__) {
    /*[trace]{*/
    trace(process.env.NODE_ENV);
    /*}*/
}
log("late"); /*[feature, base]{}*/
`
)

// executeRoot runs the root command with args and returns stdout and stderr.
func executeRoot(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

// writeFile creates dir/name (and parents) with content and returns its path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// readFile returns the content of path.
func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

// featureProject writes the feature config and the three sources.
func featureProject(t *testing.T) (config string, src string) {
	t.Helper()
	dir := t.TempDir()
	config = writeFile(t, dir, "preproc.yaml", featureConfig)
	src = filepath.Join(dir, "src")
	writeFile(t, src, "early.js", earlyJS)
	writeFile(t, src, "features.js", featuresJS)
	writeFile(t, src, "app.js", appJS)
	return config, src
}
