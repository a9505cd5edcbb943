package conditional

import (
	"errors"
	"fmt"
)

// MismatchedBlockCode distinguishes the two block structure errors.
type MismatchedBlockCode string

const (
	// ErrCodeMissingOpen indicates a closing marker with no open block.
	ErrCodeMissingOpen MismatchedBlockCode = "MISSING_OPEN"

	// ErrCodeMissingClose indicates blocks still open at end of input.
	ErrCodeMissingClose MismatchedBlockCode = "MISSING_CLOSE"
)

// MismatchedBlockError reports unbalanced block markers. Nothing from the
// failed scan is applied: no lines are commented and no definitions are
// committed.
type MismatchedBlockError struct {
	Code     MismatchedBlockCode
	Artifact string

	// Line is the 1-based line of the offending closing marker, or 0 when
	// the input ended with blocks open.
	Line int

	// Depth is the nesting depth at the point of failure.
	Depth int

	// Trace lists every open and close seen before the failure.
	Trace []string
}

// Error implements the error interface.
func (e *MismatchedBlockError) Error() string {
	switch e.Code {
	case ErrCodeMissingOpen:
		return fmt.Sprintf("%s: %s:%d: closing marker with no matching opener", e.Code, e.Artifact, e.Line)
	default:
		return fmt.Sprintf("%s: %s: %d unclosed block(s) at end of input", e.Code, e.Artifact, e.Depth)
	}
}

// IsMismatchedBlockError returns true if err is a block structure error.
// Uses errors.As to handle wrapped errors.
func IsMismatchedBlockError(err error) bool {
	var me *MismatchedBlockError
	return errors.As(err, &me)
}
