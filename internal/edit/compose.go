package edit

import (
	"fmt"
	"sort"
	"strings"
)

// Compose folds two edit stages into one edit list against the original.
//
// first is a list of edits against src; second is a list of edits against
// the text produced by applying first. The returned edits, applied to src,
// produce the same text as applying first and then second. Where edits from
// the two stages touch, they merge into one edit.
func Compose(src string, first, second []Edit) ([]Edit, error) {
	mid, err := Apply(src, first)
	if err != nil {
		return nil, fmt.Errorf("compose: first stage: %w", err)
	}
	if len(first) == 0 {
		out := make([]Edit, len(second))
		copy(out, second)
		sortEdits(out)
		return out, nil
	}

	a := make([]Edit, len(first))
	copy(a, first)
	sortEdits(a)
	b := make([]Edit, len(second))
	copy(b, second)
	sortEdits(b)

	// Project first-stage edits into mid coordinates.
	type span struct {
		start, end int // in mid
		delta      int // first-stage length change; zero for second-stage spans
		second     int // index into b, -1 for first-stage spans
	}
	spans := make([]span, 0, len(a)+len(b))
	shift := 0
	for _, e := range a {
		start := e.Start + shift
		spans = append(spans, span{start: start, end: start + len(e.Text), delta: e.Delta(), second: -1})
		shift += e.Delta()
	}
	for i, e := range b {
		if e.Start < 0 || e.End < e.Start || e.End > len(mid) {
			return nil, fmt.Errorf("compose: edit range [%d,%d) out of bounds (len %d)", e.Start, e.End, len(mid))
		}
		spans = append(spans, span{start: e.Start, end: e.End, second: i})
	}
	sort.SliceStable(spans, func(i, j int) bool { return spans[i].start < spans[j].start })

	var out []Edit
	before := 0 // first-stage delta of spans entirely before the current group
	for i := 0; i < len(spans); {
		groupStart, groupEnd := spans[i].start, spans[i].end
		inside := 0
		var seconds []Edit
		j := i
		for ; j < len(spans) && spans[j].start <= groupEnd; j++ {
			if spans[j].end > groupEnd {
				groupEnd = spans[j].end
			}
			if spans[j].second >= 0 {
				seconds = append(seconds, b[spans[j].second])
			} else {
				inside += spans[j].delta
			}
		}

		text, err := applyWithin(mid, groupStart, groupEnd, seconds)
		if err != nil {
			return nil, err
		}
		out = append(out, Edit{
			Start: groupStart - before,
			End:   groupEnd - before - inside,
			Text:  text,
		})
		before += inside
		i = j
	}
	return out, nil
}

// applyWithin returns mid[start:end] with edits (in mid coordinates) applied.
func applyWithin(mid string, start, end int, edits []Edit) (string, error) {
	var sb strings.Builder
	pos := start
	for _, e := range edits {
		if e.Start < pos {
			return "", fmt.Errorf("compose: overlapping second-stage edit at %d", e.Start)
		}
		sb.WriteString(mid[pos:e.Start])
		sb.WriteString(e.Text)
		pos = e.End
	}
	sb.WriteString(mid[pos:end])
	return sb.String(), nil
}
