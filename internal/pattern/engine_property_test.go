//go:build property
// +build property

package pattern

import (
	"sort"
	"strconv"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/roach88/preproc/internal/ir"
)

// distinct drops empty and repeated identifiers, keeping first occurrences.
func distinct(ids []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// buildText joins words chosen by index from the key pool plus filler words.
func buildText(keys []string, picks []int) string {
	pool := append([]string{"filler", "other_word"}, keys...)
	words := make([]string, len(picks))
	for i, p := range picks {
		words[i] = pool[p%len(pool)]
	}
	return strings.Join(words, " ")
}

func runRules(keys []string, text string) (string, bool) {
	cfg := ir.NewConfig()
	for i, k := range keys {
		cfg.Values = append(cfg.Values, ir.RuleSpec{Key: k, Value: strconv.Itoa(i)})
	}
	e, err := New(cfg, WithSourceMap(false))
	if err != nil {
		return "", false
	}
	res, err := e.Apply(text, "prop.js")
	if err != nil {
		return "", false
	}
	if res == nil {
		return text, true
	}
	return res.Text, true
}

// TestPatternEngineProperties checks substitution laws over generated rule sets.
func TestPatternEngineProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	// Property: non-overlapping literal rules equal per-word replacement.
	properties.Property("whole word replacement", prop.ForAll(
		func(ids []string, picks []int) bool {
			keys := distinct(ids)
			text := buildText(keys, picks)
			got, ok := runRules(keys, text)
			if !ok {
				return false
			}

			index := map[string]int{}
			for i, k := range keys {
				index[k] = i
			}
			words := strings.Split(text, " ")
			for i, w := range words {
				if n, found := index[w]; found {
					words[i] = strconv.Itoa(n)
				}
			}
			return got == strings.Join(words, " ")
		},
		gen.SliceOfN(6, gen.Identifier()),
		gen.SliceOf(gen.IntRange(0, 20)),
	))

	// Property: the result does not depend on rule order.
	properties.Property("order independence", prop.ForAll(
		func(ids []string, picks []int) bool {
			keys := distinct(ids)
			text := buildText(keys, picks)

			// Values follow the key, not its position.
			valued := func(order []string) (string, bool) {
				cfg := ir.NewConfig()
				for _, k := range order {
					cfg.Values = append(cfg.Values, ir.RuleSpec{Key: k, Value: "<" + k + ">"})
				}
				e, err := New(cfg, WithSourceMap(false))
				if err != nil {
					return "", false
				}
				res, err := e.Apply(text, "prop.js")
				if err != nil {
					return "", false
				}
				if res == nil {
					return text, true
				}
				return res.Text, true
			}

			forward, ok1 := valued(keys)
			reversed := append([]string(nil), keys...)
			sort.Sort(sort.Reverse(sort.StringSlice(reversed)))
			backward, ok2 := valued(reversed)
			return ok1 && ok2 && forward == backward
		},
		gen.SliceOfN(6, gen.Identifier()),
		gen.SliceOf(gen.IntRange(0, 20)),
	))

	// Property: a second pass over the output changes nothing.
	properties.Property("idempotence", prop.ForAll(
		func(ids []string, picks []int) bool {
			keys := distinct(ids)
			once, ok := runRules(keys, buildText(keys, picks))
			if !ok {
				return false
			}
			twice, ok := runRules(keys, once)
			return ok && once == twice
		},
		gen.SliceOfN(6, gen.Identifier()),
		gen.SliceOf(gen.IntRange(0, 20)),
	))

	// Property: a dotted key always beats its own prefix.
	properties.Property("longer key precedence", prop.ForAll(
		func(a, b, c string) bool {
			cfg := ir.NewConfig()
			cfg.Values = []ir.RuleSpec{
				{Key: a + "." + b, Value: "X"},
				{Key: a + "." + b + "." + c, Value: "Y"},
			}
			e, err := New(cfg)
			if err != nil {
				return false
			}
			res, err := e.Apply(a+"."+b+"."+c, "prop.js")
			return err == nil && res != nil && res.Text == "Y"
		},
		gen.Identifier(),
		gen.Identifier(),
		gen.Identifier(),
	))

	properties.TestingRun(t)
}
