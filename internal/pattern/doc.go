// Package pattern implements the multi-rule substitution engine.
//
// A rule set of literal keys and regex keys is compiled into one matcher:
//
//	(?:(?<r0>regex0)|(?<r1>regex1)...)|(?:BEFORE(?:(?<n0>lit0)|(?<n1>lit1)...)AFTER LOOKAHEAD)
//
// Every rule owns exactly one named group. Group names are prefixed by kind
// (n for literal, r for regex) and numbered after sorting each kind by
// descending key length, so a longer literal is tried before any shorter
// literal that is its prefix. Literal keys are escaped; regex keys are used
// verbatim and never wrapped in delimiters.
//
// Apply scans the original text once, left to right. Replacement output is
// never rescanned. Each match is resolved to the single participating named
// group, its producer is invoked, and the result is recorded as an edit.
// The edits are applied in one pass; a scan with no matches reports
// "unchanged" with a nil result.
//
// The matcher uses github.com/dlclark/regexp2 because the default delimiters
// and preventAssignment need lookaround. regexp2 reports match positions in
// runes; they are converted to byte offsets before edits are recorded.
package pattern
