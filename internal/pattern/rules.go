package pattern

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/dlclark/regexp2"

	"github.com/roach88/preproc/internal/ir"
)

// Kind distinguishes literal rules from regex rules.
type Kind int

const (
	// KindLiteral rules match their key text exactly, inside delimiters.
	KindLiteral Kind = iota
	// KindRegex rules use their key as regex source.
	KindRegex
)

// String returns the kind name.
func (k Kind) String() string {
	if k == KindRegex {
		return "regex"
	}
	return "literal"
}

// prefix is the group name prefix for rules of this kind.
func (k Kind) prefix() string {
	if k == KindRegex {
		return "r"
	}
	return "n"
}

// Producer returns the replacement for one match.
// matched is the matched text, key the rule key as configured.
type Producer func(artifactID, matched, key string) string

// Static returns a Producer that always yields value.
func Static(value string) Producer {
	return func(string, string, string) string { return value }
}

// Rule is a single replacement rule.
type Rule struct {
	Key     string
	Kind    Kind
	Produce Producer
}

// Literal returns a literal rule with a static value.
func Literal(key, value string) Rule {
	return Rule{Key: key, Kind: KindLiteral, Produce: Static(value)}
}

// Regex returns a regex rule with a static value.
func Regex(key, value string) Rule {
	return Rule{Key: key, Kind: KindRegex, Produce: Static(value)}
}

// RulesFromConfig converts configured values into rules, literal rules first.
func RulesFromConfig(cfg *ir.Config) []Rule {
	rules := make([]Rule, 0, len(cfg.Values)+len(cfg.RegexValues))
	for _, spec := range cfg.Values {
		rules = append(rules, Literal(spec.Key, spec.Value))
	}
	for _, spec := range cfg.RegexValues {
		rules = append(rules, Regex(spec.Key, spec.Value))
	}
	return rules
}

// dottedKey matches identifier chains such as a.b.c.
var dottedKey = regexp2.MustCompile(
	`^([_$a-zA-Z\xA0-\uFFFF][_$a-zA-Z0-9\xA0-\uFFFF]*)(\.([_$a-zA-Z\xA0-\uFFFF][_$a-zA-Z0-9\xA0-\uFFFF]*))+$`,
	regexp2.None)

// guardForms are the typeof comparisons rewritten for object namespaces.
// %s is replaced by the namespace prefix.
var guardForms = []struct{ key, value string }{
	{"typeof %s ===", `"object" ===`},
	{"typeof %s !==", `"object" !==`},
	{"typeof %s===", `"object"===`},
	{"typeof %s!==", `"object"!==`},
	{"typeof %s ==", `"object" ===`},
	{"typeof %s !=", `"object" !==`},
	{"typeof %s==", `"object"===`},
	{"typeof %s!=", `"object"!==`},
}

// ExpandObjectGuards appends typeof guard rules for every proper prefix of
// each dotted literal key. Keys that already exist are left alone, so an
// explicitly configured guard wins over a synthesized one.
func ExpandObjectGuards(rules []Rule) []Rule {
	seen := make(map[string]bool, len(rules))
	for _, r := range rules {
		if r.Kind == KindLiteral {
			seen[r.Key] = true
		}
	}

	out := append([]Rule(nil), rules...)
	for _, r := range rules {
		if r.Kind != KindLiteral {
			continue
		}
		if ok, _ := dottedKey.MatchString(r.Key); !ok {
			continue
		}
		parts := strings.Split(r.Key, ".")
		for i := 1; i < len(parts); i++ {
			ns := strings.Join(parts[:i], ".")
			for _, form := range guardForms {
				key := strings.Replace(form.key, "%s", ns, 1)
				if seen[key] {
					continue
				}
				seen[key] = true
				out = append(out, Literal(key, form.value))
			}
		}
	}
	return out
}

// orderRules splits rules by kind and sorts each by descending key length.
// Equal lengths keep their configured order.
func orderRules(rules []Rule) (literals, regexes []Rule) {
	for _, r := range rules {
		if r.Kind == KindRegex {
			regexes = append(regexes, r)
		} else {
			literals = append(literals, r)
		}
	}
	byLength := func(rs []Rule) {
		sort.SliceStable(rs, func(i, j int) bool {
			return utf8.RuneCountInString(rs[i].Key) > utf8.RuneCountInString(rs[j].Key)
		})
	}
	byLength(literals)
	byLength(regexes)
	return literals, regexes
}
