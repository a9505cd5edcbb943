package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainConfig  = "preproc/config/v1"
	DomainContent = "preproc/content/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ConfigHash computes the fingerprint of a configuration.
// Two configs with the same rules in the same order hash identically
// regardless of how they were written (CUE or YAML).
func ConfigHash(cfg *Config) (string, error) {
	canonical, err := CanonicalJSON(cfg)
	if err != nil {
		return "", fmt.Errorf("ConfigHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainConfig, canonical), nil
}

// CanonicalJSON returns the RFC 8785 form of a configuration, the bytes
// ConfigHash fingerprints.
func CanonicalJSON(cfg *Config) ([]byte, error) {
	return MarshalCanonical(cfg.canonicalMap())
}

// ContentHash fingerprints transformed output for the journal.
func ContentHash(text string) string {
	return hashWithDomain(DomainContent, []byte(text))
}

// MustConfigHash is like ConfigHash but panics on error.
// Use only in tests or when the config is known to be valid.
func MustConfigHash(cfg *Config) string {
	h, err := ConfigHash(cfg)
	if err != nil {
		panic(err)
	}
	return h
}

// canonicalMap converts the config into plain values for MarshalCanonical.
// Rule lists stay arrays of [key, value] pairs so order is hashed.
func (c *Config) canonicalMap() map[string]any {
	rules := func(specs []RuleSpec) []any {
		out := make([]any, len(specs))
		for i, r := range specs {
			out[i] = []any{r.Key, r.Value}
		}
		return out
	}
	strs := func(ss []string) []any {
		out := make([]any, len(ss))
		for i, s := range ss {
			out[i] = s
		}
		return out
	}

	m := map[string]any{
		"version":           ConfigVersion,
		"values":            rules(c.Values),
		"regexValues":       rules(c.RegexValues),
		"preventAssignment": c.PreventAssignment,
		"objectGuards":      c.ObjectGuards,
		"include":           strs(c.Include),
		"exclude":           strs(c.Exclude),
		"sourceMap":         c.SourceMap,
		"matchTimeoutMs":    c.MatchTimeoutMS,
		"comments": map[string]any{
			"enabled":         c.Comments.Enabled,
			"forRelease":      c.Comments.ForRelease,
			"conditions":      strs(c.Comments.Conditions),
			"conditionStates": conditionStates(c.Comments.ConditionStates),
			"verbose":         c.Comments.Verbose,
		},
	}
	if c.Delimiters != nil {
		m["delimiters"] = []any{c.Delimiters.Before, c.Delimiters.After}
	}
	return m
}

func conditionStates(states map[string]any) map[string]any {
	out := make(map[string]any, len(states))
	for k, v := range states {
		out[k] = v
	}
	return out
}
