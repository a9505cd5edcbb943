package compiler

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/preproc/internal/ir"
)

// DefaultConfigNames are searched, in order, when no config path is given.
var DefaultConfigNames = []string{"preproc.cue", "preproc.yaml", "preproc.yml"}

// LoadFile reads and compiles a configuration file. The format is chosen
// by extension: .cue is compiled as CUE, .yaml, .yml and .json are decoded
// as YAML.
func LoadFile(path string) (*ir.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue":
		return CompileCUE(data, path)
	case ".yaml", ".yml", ".json":
		return DecodeYAML(data, path)
	default:
		return nil, fmt.Errorf("unsupported config format %q (want .cue, .yaml, .yml or .json)", filepath.Ext(path))
	}
}

// FindConfig returns the first default config file present in dir.
func FindConfig(dir string) (string, error) {
	for _, name := range DefaultConfigNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no config found in %s (looked for %s)", dir, strings.Join(DefaultConfigNames, ", "))
}
