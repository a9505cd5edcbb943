package conditional

import (
	"regexp"
	"strings"
)

// Op is a marker operation.
type Op string

const (
	OpInline Op = "{}"
	OpOpen   Op = "{"
	OpClose  Op = "}"
	OpDefine Op = "<>"
)

// markerRe matches "/*[list]op*/" (list and op in groups 1 and 2) and the
// define shorthand "/*<list>*/" (list in group 3).
var markerRe = regexp.MustCompile(
	`/\*\s*(?:(?:\[\s*(\w+\s*(?:,\s*?\w+)*)\s*\])??\s*(\{\}|\{|\}|<>)|<\s*(\w+\s*(?:,\s*?\w+)*)\s*>)\s*\*/`)

// Marker is one parsed marker comment.
type Marker struct {
	Names []string
	Op    Op
}

// parseMarkers returns every marker on a line, in order.
func parseMarkers(line string) []Marker {
	found := markerRe.FindAllStringSubmatch(line, -1)
	if len(found) == 0 {
		return nil
	}
	out := make([]Marker, len(found))
	for i, m := range found {
		if m[2] == "" {
			out[i] = Marker{Names: splitNames(m[3]), Op: OpDefine}
			continue
		}
		out[i] = Marker{Names: splitNames(m[1]), Op: Op(m[2])}
	}
	return out
}

// splitNames splits a comma separated name list. An empty list yields nil.
func splitNames(list string) []string {
	if strings.TrimSpace(list) == "" {
		return nil
	}
	parts := strings.Split(list, ",")
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			names = append(names, p)
		}
	}
	return names
}

// isInert reports whether a line is already a line comment.
func isInert(line string) bool {
	return strings.HasPrefix(strings.TrimLeft(line, whitespace), "//")
}
