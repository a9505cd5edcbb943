package pattern

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dlclark/regexp2"

	"github.com/roach88/preproc/internal/ir"
)

// Default delimiters act as identifier boundaries. The after delimiter also
// refuses a following dot, so "a.b" never matches inside "a.b.c".
const (
	DefaultBefore = `(?<![_$a-zA-Z0-9\xA0-\uFFFF])`
	DefaultAfter  = `(?![_$a-zA-Z0-9\xA0-\uFFFF])(?!\.)`
)

// assignmentGuard excludes occurrences followed by a plain assignment.
const assignmentGuard = `(?!\s*=[^=])`

// Settings control how literal rules are wrapped.
type Settings struct {
	Delimiters        *ir.Delimiters // nil selects the defaults
	PreventAssignment bool
	ObjectGuards      bool

	// MatchTimeout bounds backtracking per scan. Zero means no limit.
	MatchTimeout time.Duration
}

// GroupInfo describes one compiled rule.
type GroupInfo struct {
	Name string `json:"group"`
	Kind string `json:"kind"`
	Key  string `json:"key"`
}

// Matcher is an immutable compiled rule set.
type Matcher struct {
	re     *regexp2.Regexp
	groups map[string]Rule
	infos  []GroupInfo
}

// Match is one occurrence found by the matcher. Start and End are byte offsets.
type Match struct {
	Start, End int
	Text       string
	Group      string
}

// Compile builds a matcher from rules. Each regex rule is validated on its
// own first so a malformed key is reported as a RuleError naming that key.
// Compile returns (nil, nil) when there are no rules.
func Compile(rules []Rule, s Settings) (*Matcher, error) {
	if s.ObjectGuards {
		rules = ExpandObjectGuards(rules)
	}
	literals, regexes := orderRules(rules)
	if len(literals) == 0 && len(regexes) == 0 {
		return nil, nil
	}

	for _, r := range regexes {
		if _, err := regexp2.Compile(r.Key, regexp2.None); err != nil {
			return nil, &RuleError{Key: r.Key, Kind: KindRegex, Err: err}
		}
	}

	m := &Matcher{groups: make(map[string]Rule, len(literals)+len(regexes))}
	regexAlts := m.register(regexes, func(r Rule) string { return r.Key })
	literalAlts := m.register(literals, func(r Rule) string { return regexp2.Escape(r.Key) })

	before, after := DefaultBefore, DefaultAfter
	if s.Delimiters != nil {
		before, after = s.Delimiters.Before, s.Delimiters.After
	}

	var sides []string
	if len(regexAlts) > 0 {
		sides = append(sides, "(?:"+strings.Join(regexAlts, "|")+")")
	}
	if len(literalAlts) > 0 {
		lookahead := ""
		if s.PreventAssignment {
			lookahead = assignmentGuard
		}
		sides = append(sides, "(?:"+before+"(?:"+strings.Join(literalAlts, "|")+")"+after+lookahead+")")
	}

	re, err := regexp2.Compile(strings.Join(sides, "|"), regexp2.None)
	if err != nil {
		return nil, fmt.Errorf("compile matcher: %w", err)
	}
	if s.MatchTimeout > 0 {
		re.MatchTimeout = s.MatchTimeout
	}
	m.re = re
	return m, nil
}

// register assigns group names to rules of one kind and returns the
// group-wrapped alternatives in order.
func (m *Matcher) register(rules []Rule, source func(Rule) string) []string {
	alts := make([]string, 0, len(rules))
	for idx, r := range rules {
		name := r.Kind.prefix() + strconv.Itoa(idx)
		m.groups[name] = r
		m.infos = append(m.infos, GroupInfo{Name: name, Kind: r.Kind.String(), Key: r.Key})
		alts = append(alts, "(?<"+name+">"+source(r)+")")
	}
	return alts
}

// Source returns the compiled regex source.
func (m *Matcher) Source() string {
	return m.re.String()
}

// Groups lists the compiled rules in alternation order, regex rules first.
func (m *Matcher) Groups() []GroupInfo {
	out := make([]GroupInfo, len(m.infos))
	copy(out, m.infos)
	return out
}

// Rule returns the rule registered under a group name.
func (m *Matcher) Rule(group string) (Rule, bool) {
	r, ok := m.groups[group]
	return r, ok
}

// FindAll returns all non-overlapping matches in text, left to right.
// An empty match advances the scan by one rune.
func (m *Matcher) FindAll(text string) ([]Match, error) {
	runes := []rune(text)
	offsets := runeOffsets(text, len(runes))

	var out []Match
	match, err := m.re.FindRunesMatch(runes)
	for ; match != nil && err == nil; match, err = m.re.FindNextMatch(match) {
		start := offsets[match.Index]
		end := offsets[match.Index+match.Length]
		found := Match{Start: start, End: end, Text: text[start:end]}

		for _, g := range match.Groups() {
			if len(g.Captures) == 0 {
				continue
			}
			if _, ok := m.groups[g.Name]; ok {
				found.Group = g.Name
				break
			}
		}
		if found.Group == "" {
			return nil, &InternalError{Code: ErrCodeNoGroup, Match: found.Text, Offset: start}
		}
		out = append(out, found)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// runeOffsets maps rune index i to the byte offset of that rune in text.
// The extra final entry is len(text).
func runeOffsets(text string, n int) []int {
	offsets := make([]int, 0, n+1)
	for i := range text {
		offsets = append(offsets, i)
	}
	return append(offsets, len(text))
}
