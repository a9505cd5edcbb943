package edit

import (
	"encoding/json"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// SourceMap is a revision 3 source map.
type SourceMap struct {
	Version        int      `json:"version"`
	File           string   `json:"file,omitempty"`
	Sources        []string `json:"sources"`
	SourcesContent []string `json:"sourcesContent"`
	Names          []string `json:"names"`
	Mappings       string   `json:"mappings"`
}

// JSON encodes the map.
func (m *SourceMap) JSON() ([]byte, error) {
	return json.Marshal(m)
}

// segment maps a generated position to an original position.
// Lines are zero-based, columns are UTF-16 code units.
type segment struct {
	genLine, genCol   int
	origLine, origCol int
}

// NewSourceMap builds a map from the text produced by applying edits to src
// back to src. Every unchanged character gets its own segment. Replacement
// text maps to the start of the range it replaced, with one segment where it
// starts and one at each of its line starts.
func NewSourceMap(file, sourceName, src string, edits []Edit) (*SourceMap, error) {
	sorted := make([]Edit, len(edits))
	copy(sorted, edits)
	sortEdits(sorted)
	if _, err := Apply(src, sorted); err != nil {
		return nil, err
	}

	g := &mapGen{src: src, lineStarts: lineStarts(src)}
	pos := 0
	for _, e := range sorted {
		g.copySource(pos, e.Start)
		g.replacement(e.Start, e.Text)
		pos = e.End
	}
	g.copySource(pos, len(src))

	return &SourceMap{
		Version:        3,
		File:           file,
		Sources:        []string{sourceName},
		SourcesContent: []string{src},
		Names:          []string{},
		Mappings:       encodeMappings(g.segments),
	}, nil
}

type mapGen struct {
	src        string
	lineStarts []int
	genLine    int
	genCol     int
	segments   []segment
}

// copySource walks unchanged source text src[from:to], mapping every
// character except line feeds to its own original position.
func (g *mapGen) copySource(from, to int) {
	for i := from; i < to; {
		r, size := utf8.DecodeRuneInString(g.src[i:])
		if r == '\n' {
			g.genLine++
			g.genCol = 0
		} else {
			g.emit(i)
			g.genCol += utf16Len(r)
		}
		i += size
	}
}

// replacement walks inserted text that replaces source starting at origin.
func (g *mapGen) replacement(origin int, text string) {
	if text == "" {
		return
	}
	g.emit(origin)
	for i, r := range text {
		if r == '\n' {
			g.genLine++
			g.genCol = 0
			if i+1 < len(text) {
				g.emit(origin)
			}
			continue
		}
		g.genCol += utf16Len(r)
	}
}

func (g *mapGen) emit(origin int) {
	line, col := g.position(origin)
	seg := segment{genLine: g.genLine, genCol: g.genCol, origLine: line, origCol: col}
	if n := len(g.segments); n > 0 {
		last := g.segments[n-1]
		if last.genLine == seg.genLine && last.genCol == seg.genCol {
			g.segments[n-1] = seg
			return
		}
	}
	g.segments = append(g.segments, seg)
}

// position converts a byte offset in src to a zero-based line and UTF-16 column.
func (g *mapGen) position(offset int) (int, int) {
	line := searchLine(g.lineStarts, offset)
	col := 0
	for _, r := range g.src[g.lineStarts[line]:offset] {
		col += utf16Len(r)
	}
	return line, col
}

func lineStarts(s string) []int {
	starts := []int{0}
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

// searchLine returns the index of the last line start <= offset.
func searchLine(starts []int, offset int) int {
	lo, hi := 0, len(starts)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if starts[mid] <= offset {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo
}

func utf16Len(r rune) int {
	if n := utf16.RuneLen(r); n > 0 {
		return n
	}
	return 1
}

func encodeMappings(segments []segment) string {
	var sb strings.Builder
	line := 0
	prevGenCol, prevOrigLine, prevOrigCol := 0, 0, 0
	first := true
	for _, s := range segments {
		for line < s.genLine {
			sb.WriteByte(';')
			line++
			prevGenCol = 0
			first = true
		}
		if !first {
			sb.WriteByte(',')
		}
		writeVLQ(&sb, s.genCol-prevGenCol)
		writeVLQ(&sb, 0) // single source
		writeVLQ(&sb, s.origLine-prevOrigLine)
		writeVLQ(&sb, s.origCol-prevOrigCol)
		prevGenCol, prevOrigLine, prevOrigCol = s.genCol, s.origLine, s.origCol
		first = false
	}
	return sb.String()
}
