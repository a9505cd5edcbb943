package conditional

import (
	"strings"

	"github.com/roach88/preproc/internal/edit"
)

const whitespace = " \t\v\f"

// line is one source line. text excludes the terminator, which is kept in
// term ("\n", "\r\n" or "" for the last line).
type line struct {
	start int
	text  string
	term  string
	out   string
}

// splitLines splits s into lines, keeping each terminator.
func splitLines(s string) []line {
	var lines []line
	start := 0
	for start < len(s) {
		i := strings.IndexByte(s[start:], '\n')
		if i < 0 {
			lines = append(lines, line{start: start, text: s[start:], out: s[start:]})
			break
		}
		text, term := s[start:start+i], "\n"
		if strings.HasSuffix(text, "\r") {
			text, term = text[:len(text)-1], "\r\n"
		}
		lines = append(lines, line{start: start, text: text, term: term, out: text})
		start += i + 1
	}
	return lines
}

// leading returns the leading whitespace of s.
func leading(s string) string {
	return s[:len(s)-len(strings.TrimLeft(s, whitespace))]
}

// commentInline turns a line into a line comment after its own indent.
func commentInline(s string) string {
	ws := leading(s)
	return ws + "// " + s[len(ws):]
}

// spanIndent returns the shared indent of lines[from..to].
//
// The first line sets the baseline; later lines can only lower it. Lines
// without leading whitespace are ignored, so a span whose first line is
// unindented has an empty indent.
func spanIndent(lines []line, from, to int) string {
	indent := ""
	for i := from; i <= to; i++ {
		ws := leading(lines[i].out)
		if ws == "" {
			continue
		}
		if i == from || len(ws) < len(indent) {
			indent = ws
		}
	}
	return indent
}

// commentSpan inserts "//" at the shared indent of every line in
// lines[from..to]. A line indented less than the shared indent has its own
// whitespace replaced by the indent, so no text is lost.
func commentSpan(lines []line, from, to int) {
	indent := spanIndent(lines, from, to)
	for i := from; i <= to; i++ {
		s := lines[i].out
		ws := leading(s)
		if len(ws) >= len(indent) {
			lines[i].out = s[:len(indent)] + "//" + s[len(indent):]
		} else {
			lines[i].out = indent + "//" + s[len(ws):]
		}
	}
}

// lineEdit returns the smallest edit turning before into after. start is
// the offset of the line in the source.
func lineEdit(start int, before, after string) edit.Edit {
	p := 0
	for p < len(before) && p < len(after) && before[p] == after[p] {
		p++
	}
	s := 0
	for s < len(before)-p && s < len(after)-p && before[len(before)-1-s] == after[len(after)-1-s] {
		s++
	}
	return edit.Edit{Start: start + p, End: start + len(before) - s, Text: after[p : len(after)-s]}
}

// rewrite returns the edits for every changed line.
func rewrite(lines []line) []edit.Edit {
	var edits []edit.Edit
	for _, l := range lines {
		if l.out != l.text {
			edits = append(edits, lineEdit(l.start, l.text, l.out))
		}
	}
	return edits
}
