package transform

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/roach88/preproc/internal/pattern"
)

// NewFilter builds an artifact filter from include and exclude globs.
//
// An artifact is accepted when it matches no exclude pattern and either
// there are no include patterns or it matches at least one. Patterns use
// doublestar syntax ("src/**/*.js") against slash-separated ids.
func NewFilter(include, exclude []string) (pattern.Filter, error) {
	for _, p := range append(append([]string{}, include...), exclude...) {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid glob %q", p)
		}
	}
	if len(include) == 0 && len(exclude) == 0 {
		return nil, nil
	}

	return func(artifactID string) bool {
		id := normalizeID(artifactID)
		for _, p := range exclude {
			if ok, _ := doublestar.Match(p, id); ok {
				return false
			}
		}
		if len(include) == 0 {
			return true
		}
		for _, p := range include {
			if ok, _ := doublestar.Match(p, id); ok {
				return true
			}
		}
		return false
	}, nil
}

// normalizeID converts ids to forward slashes and drops a leading "./".
func normalizeID(id string) string {
	return strings.TrimPrefix(filepath.ToSlash(id), "./")
}
