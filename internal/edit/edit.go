// Package edit records textual edits against an immutable source string and
// materializes them as rewritten text, composed edit lists, or v3 source maps.
//
// Edits are collected during a read-only scan and applied in one pass; the
// source is never mutated while it is being scanned.
package edit

import (
	"fmt"
	"sort"
	"strings"
)

// Edit replaces source[Start:End] with Text. Offsets are bytes.
// Start == End is an insertion.
type Edit struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Text  string `json:"text"`
}

// Delta is the change in length this edit causes.
func (e Edit) Delta() int {
	return len(e.Text) - (e.End - e.Start)
}

// OverlapError reports two edits that touch the same source bytes.
type OverlapError struct {
	First, Second Edit
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("edit [%d,%d) overlaps edit [%d,%d)",
		e.Second.Start, e.Second.End, e.First.Start, e.First.End)
}

// Buffer accumulates edits against a source string.
type Buffer struct {
	src   string
	edits []Edit
}

// NewBuffer creates an empty buffer over src.
func NewBuffer(src string) *Buffer {
	return &Buffer{src: src}
}

// Source returns the original text.
func (b *Buffer) Source() string {
	return b.src
}

// Overwrite replaces src[start:end] with text.
// Returns an error if the range is out of bounds or overlaps an earlier edit.
func (b *Buffer) Overwrite(start, end int, text string) error {
	if start < 0 || end < start || end > len(b.src) {
		return fmt.Errorf("edit range [%d,%d) out of bounds (len %d)", start, end, len(b.src))
	}
	e := Edit{Start: start, End: end, Text: text}
	for _, prev := range b.edits {
		if overlaps(prev, e) {
			return &OverlapError{First: prev, Second: e}
		}
	}
	b.edits = append(b.edits, e)
	return nil
}

// Insert inserts text before src[pos].
func (b *Buffer) Insert(pos int, text string) error {
	return b.Overwrite(pos, pos, text)
}

// Len returns the number of recorded edits.
func (b *Buffer) Len() int {
	return len(b.edits)
}

// Edits returns the recorded edits sorted by position.
func (b *Buffer) Edits() []Edit {
	out := make([]Edit, len(b.edits))
	copy(out, b.edits)
	sortEdits(out)
	return out
}

// String returns the rewritten text.
func (b *Buffer) String() string {
	out, err := Apply(b.src, b.edits)
	if err != nil {
		// Overwrite already rejected invalid edits.
		panic(err)
	}
	return out
}

// Apply returns src with edits applied. Edits may be in any order but must
// not overlap; insertions at the same offset are applied in input order.
func Apply(src string, edits []Edit) (string, error) {
	sorted := make([]Edit, len(edits))
	copy(sorted, edits)
	sortEdits(sorted)

	var sb strings.Builder
	sb.Grow(len(src))
	pos := 0
	var prev *Edit
	for i := range sorted {
		e := sorted[i]
		if e.Start < 0 || e.End < e.Start || e.End > len(src) {
			return "", fmt.Errorf("edit range [%d,%d) out of bounds (len %d)", e.Start, e.End, len(src))
		}
		if prev != nil && (overlaps(*prev, e) || e.Start < pos) {
			return "", &OverlapError{First: *prev, Second: e}
		}
		sb.WriteString(src[pos:e.Start])
		sb.WriteString(e.Text)
		pos = e.End
		prev = &sorted[i]
	}
	sb.WriteString(src[pos:])
	return sb.String(), nil
}

// overlaps reports whether two edits claim the same source bytes, or an
// insertion falls strictly inside a replaced range.
func overlaps(a, b Edit) bool {
	if a.Start > b.Start {
		a, b = b, a
	}
	if a.Start == a.End || b.Start == b.End {
		return b.Start < a.End && a.Start < b.Start
	}
	return b.Start < a.End
}

func sortEdits(edits []Edit) {
	sort.SliceStable(edits, func(i, j int) bool {
		if edits[i].Start != edits[j].Start {
			return edits[i].Start < edits[j].Start
		}
		// Insertions before replacements that start at the same offset.
		return edits[i].End-edits[i].Start == 0 && edits[j].End-edits[j].Start != 0
	})
}
