package compiler

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/dlclark/regexp2"

	"github.com/roach88/preproc/internal/ir"
)

// Validation error codes (E100-E199)
const (
	// Rule errors (E101-E109)
	ErrEmptyKey        = "E101" // literal or regex key is empty
	ErrInvalidRegex    = "E102" // regex key does not compile
	ErrDuplicateKey    = "E103" // key listed twice in one rule map
	ErrInvalidDelim    = "E104" // delimiters do not compile around a key
	ErrNegativeTimeout = "E105" // matchTimeoutMs below zero

	// Filter errors (E110-E119)
	ErrInvalidGlob = "E110" // include/exclude pattern is malformed

	// Comment processor errors (E120-E129)
	ErrInvalidCondition = "E120" // condition name cannot be referenced by a marker
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// conditionName matches names a marker can reference.
var conditionName = regexp.MustCompile(`^\w+$`)

// Validate checks a compiled config.
// Returns all errors found (does not fail-fast).
func Validate(cfg *ir.Config) []ValidationError {
	var errs []ValidationError

	errs = append(errs, validateRules(cfg.Values, "values", false)...)
	errs = append(errs, validateRules(cfg.RegexValues, "regexValues", true)...)

	// E104: delimiters wrap an escaped key, so they must compile on their own
	if d := cfg.Delimiters; d != nil {
		if _, err := regexp2.Compile(d.Before+"x"+d.After, regexp2.None); err != nil {
			errs = append(errs, ValidationError{
				Field:   "delimiters",
				Message: fmt.Sprintf("delimiters do not form a valid expression: %v", err),
				Code:    ErrInvalidDelim,
			})
		}
	}

	// E105
	if cfg.MatchTimeoutMS < 0 {
		errs = append(errs, ValidationError{
			Field:   "matchTimeoutMs",
			Message: "must not be negative",
			Code:    ErrNegativeTimeout,
		})
	}

	errs = append(errs, validateGlobs(cfg.Include, "include")...)
	errs = append(errs, validateGlobs(cfg.Exclude, "exclude")...)

	// E120: names a marker could never match are almost always typos
	for i, name := range cfg.Comments.Conditions {
		if !conditionName.MatchString(name) {
			errs = append(errs, invalidCondition(fmt.Sprintf("comments.conditions[%d]", i), name))
		}
	}
	states := make([]string, 0, len(cfg.Comments.ConditionStates))
	for name := range cfg.Comments.ConditionStates {
		states = append(states, name)
	}
	sort.Strings(states)
	for _, name := range states {
		if !conditionName.MatchString(name) {
			errs = append(errs, invalidCondition("comments.conditions."+name, name))
		}
	}

	return errs
}

func validateRules(rules []ir.RuleSpec, field string, regex bool) []ValidationError {
	var errs []ValidationError
	seen := make(map[string]bool)

	for i, r := range rules {
		path := fmt.Sprintf("%s[%d]", field, i)

		// E101
		if r.Key == "" {
			errs = append(errs, ValidationError{
				Field:   path,
				Message: "key must be non-empty",
				Code:    ErrEmptyKey,
			})
			continue
		}

		// E103
		if seen[r.Key] {
			errs = append(errs, ValidationError{
				Field:   path,
				Message: fmt.Sprintf("duplicate key: %q", r.Key),
				Code:    ErrDuplicateKey,
			})
		}
		seen[r.Key] = true

		// E102
		if regex {
			if _, err := regexp2.Compile(r.Key, regexp2.None); err != nil {
				errs = append(errs, ValidationError{
					Field:   path,
					Message: fmt.Sprintf("invalid regular expression %q: %v", r.Key, err),
					Code:    ErrInvalidRegex,
				})
			}
		}
	}
	return errs
}

func validateGlobs(patterns []string, field string) []ValidationError {
	var errs []ValidationError
	for i, p := range patterns {
		if strings.TrimSpace(p) == "" || !doublestar.ValidatePattern(p) {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s[%d]", field, i),
				Message: fmt.Sprintf("invalid glob pattern %q", p),
				Code:    ErrInvalidGlob,
			})
		}
	}
	return errs
}

func invalidCondition(field, name string) ValidationError {
	return ValidationError{
		Field:   field,
		Message: fmt.Sprintf("condition name %q must be letters, digits or underscores", name),
		Code:    ErrInvalidCondition,
	}
}
