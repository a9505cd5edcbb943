package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/roach88/preproc/internal/compiler"
	"github.com/roach88/preproc/internal/ir"
)

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric       = "E001" // Generic/unknown error
	ErrCodeNotFound      = "E002" // Config or input path not found
	ErrCodeConfigInvalid = "E003" // Config failed to compile
	ErrCodeValidation    = "E004" // Config compiled but failed validation
	ErrCodeReadFailed    = "E005" // Input read error
	ErrCodeWriteFailed   = "E006" // Output write error
	ErrCodeJournal       = "E007" // Journal open/read/write error
	ErrCodeTransform     = "E008" // An artifact failed to transform
	ErrCodeTestFailed    = "E009" // One or more scenarios failed
)

// LoadResult is a compiled configuration with command-line overrides applied.
type LoadResult struct {
	Config *ir.Config
	Path   string
	Hash   string
}

// LoadError represents an error that occurred while loading configuration.
type LoadError struct {
	Code    string
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// LoadConfig resolves, compiles and overrides the configuration.
// The config path is opts.ConfigPath, or the first default name found in
// the working directory.
func LoadConfig(opts *RootOptions) (*LoadResult, error) {
	path := opts.ConfigPath
	if path == "" {
		found, err := compiler.FindConfig(".")
		if err != nil {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: "no config file", Err: err}
		}
		path = found
	}
	if _, err := os.Stat(path); err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("config not found: %s", path), Err: err}
	}

	cfg, err := compiler.LoadFile(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeConfigInvalid, Message: fmt.Sprintf("compiling %s", path), Err: err}
	}
	applyOverrides(cfg, opts)

	hash, err := ir.ConfigHash(cfg)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeGeneric, Message: "hashing config", Err: err}
	}
	return &LoadResult{Config: cfg, Path: path, Hash: hash}, nil
}

// applyOverrides folds --release and --define into the config.
func applyOverrides(cfg *ir.Config, opts *RootOptions) {
	if opts.Release {
		cfg.Comments.ForRelease = true
	}
	if len(opts.Defines) > 0 {
		cfg.Comments.Conditions = append(cfg.Comments.Conditions, opts.Defines...)
	}
	if opts.Verbose {
		cfg.Comments.Verbose = true
	}
}

// loadErrorCode extracts the CLI error code from a LoadConfig error.
func loadErrorCode(err error) string {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code
	}
	return ErrCodeGeneric
}

// Input is one artifact found on the command line.
type Input struct {
	Path string // filesystem path
	ID   string // artifact id: slash-separated path relative to Root
	Root string // directory the id is relative to
}

// CollectInputs expands files and directories into artifacts in a stable
// order: arguments as given, directory contents in lexical order.
func CollectInputs(paths []string) ([]Input, error) {
	var inputs []Input
	seen := make(map[string]bool)
	add := func(path, root string) error {
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		if seen[abs] {
			return nil
		}
		seen[abs] = true
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		inputs = append(inputs, Input{Path: path, ID: filepath.ToSlash(rel), Root: root})
		return nil
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("input not found: %s", p), Err: err}
		}
		if !info.IsDir() {
			if err := add(p, filepath.Dir(p)); err != nil {
				return nil, err
			}
			continue
		}

		var files []string
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != p && len(d.Name()) > 1 && d.Name()[0] == '.' {
					return filepath.SkipDir
				}
				return nil
			}
			files = append(files, path)
			return nil
		})
		if err != nil {
			return nil, &LoadError{Code: ErrCodeReadFailed, Message: fmt.Sprintf("scanning %s", p), Err: err}
		}
		sort.Strings(files)
		for _, f := range files {
			if err := add(f, p); err != nil {
				return nil, err
			}
		}
	}
	return inputs, nil
}
