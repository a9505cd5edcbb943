package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/preproc/internal/ir"
)

func TestCompileNoRules(t *testing.T) {
	m, err := Compile(nil, Settings{})
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestCompileGroupNames(t *testing.T) {
	m, err := Compile([]Rule{
		Literal("a", "1"),
		Literal("abc", "2"),
		Literal("ab", "3"),
		Regex("x+", "4"),
	}, Settings{})
	require.NoError(t, err)

	assert.Equal(t, []GroupInfo{
		{Name: "r0", Kind: "regex", Key: "x+"},
		{Name: "n0", Kind: "literal", Key: "abc"},
		{Name: "n1", Kind: "literal", Key: "ab"},
		{Name: "n2", Kind: "literal", Key: "a"},
	}, m.Groups())

	want := "(?:(?<r0>x+))|(?:" + DefaultBefore + "(?:(?<n0>abc)|(?<n1>ab)|(?<n2>a))" + DefaultAfter + ")"
	assert.Equal(t, want, m.Source())

	r, ok := m.Rule("n1")
	require.True(t, ok)
	assert.Equal(t, "ab", r.Key)
}

func TestCompileEscapesLiterals(t *testing.T) {
	m, err := Compile([]Rule{Literal("a.b", "1")}, Settings{})
	require.NoError(t, err)
	assert.Contains(t, m.Source(), `(?<n0>a\.b)`)
}

func TestCompileLiteralOnlyRegexOnly(t *testing.T) {
	m, err := Compile([]Rule{Regex("x", "1")}, Settings{PreventAssignment: true})
	require.NoError(t, err)
	assert.Equal(t, "(?:(?<r0>x))", m.Source())

	m, err = Compile([]Rule{Literal("x", "1")}, Settings{
		Delimiters:        &ir.Delimiters{Before: `\b`, After: `\b`},
		PreventAssignment: true,
	})
	require.NoError(t, err)
	assert.Equal(t, `(?:\b(?:(?<n0>x))\b(?!\s*=[^=]))`, m.Source())
}

func TestCompileMalformedRegexRule(t *testing.T) {
	_, err := Compile([]Rule{Literal("ok", "1"), Regex("(unclosed", "x")}, Settings{})
	require.Error(t, err)
	assert.True(t, IsRuleError(err))

	var re *RuleError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "(unclosed", re.Key)
	assert.Equal(t, KindRegex, re.Kind)
}

func TestCompileMalformedDelimiter(t *testing.T) {
	_, err := Compile([]Rule{Literal("x", "1")}, Settings{
		Delimiters: &ir.Delimiters{Before: "(", After: ""},
	})
	require.Error(t, err)
	assert.False(t, IsRuleError(err))
}

func TestFindAllByteOffsets(t *testing.T) {
	m, err := Compile([]Rule{Literal("name", "N")}, Settings{})
	require.NoError(t, err)

	matches, err := m.FindAll("\u00e9 name \u00fc name")
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, Match{Start: 3, End: 7, Text: "name", Group: "n0"}, matches[0])
	assert.Equal(t, Match{Start: 11, End: 15, Text: "name", Group: "n0"}, matches[1])
}

func TestFindAllEmptyMatch(t *testing.T) {
	m, err := Compile([]Rule{Regex("^", "// header\n")}, Settings{})
	require.NoError(t, err)

	matches, err := m.FindAll("code")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, 0, matches[0].Start)
	assert.Equal(t, 0, matches[0].End)
	assert.Equal(t, "r0", matches[0].Group)
}
