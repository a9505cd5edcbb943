package pattern

import (
	"errors"
	"fmt"
)

// RuleError reports a rule that cannot be compiled.
// It is returned when the engine is built, before any text is scanned.
type RuleError struct {
	Key  string
	Kind Kind
	Err  error
}

// Error implements the error interface.
func (e *RuleError) Error() string {
	return fmt.Sprintf("invalid %s rule %q: %v", e.Kind, e.Key, e.Err)
}

// Unwrap returns the underlying regex error.
func (e *RuleError) Unwrap() error {
	return e.Err
}

// InternalErrorCode categorizes internal consistency failures.
type InternalErrorCode string

const (
	// ErrCodeNoGroup indicates a match in which no rule group participated.
	ErrCodeNoGroup InternalErrorCode = "NO_GROUP"

	// ErrCodeNoProducer indicates a group with no registered producer.
	ErrCodeNoProducer InternalErrorCode = "NO_PRODUCER"
)

// InternalError reports a match the compiled matcher cannot attribute to a
// rule. It indicates a bug in matcher construction, never bad input.
type InternalError struct {
	Code   InternalErrorCode
	Group  string
	Match  string
	Offset int
}

// Error implements the error interface.
func (e *InternalError) Error() string {
	if e.Group != "" {
		return fmt.Sprintf("%s: match %q at %d (group=%s)", e.Code, e.Match, e.Offset, e.Group)
	}
	return fmt.Sprintf("%s: match %q at %d", e.Code, e.Match, e.Offset)
}

// IsRuleError returns true if err is a malformed rule error.
func IsRuleError(err error) bool {
	var re *RuleError
	return errors.As(err, &re)
}

// IsInternalError returns true if err is an internal consistency error.
func IsInternalError(err error) bool {
	var ie *InternalError
	return errors.As(err, &ie)
}
