package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/preproc/internal/ir"
)

// marshalSpans converts edits to canonical JSON TEXT for storage.
// Each span is stored as {"end":..,"start":..,"text":..}.
func marshalSpans(spans []ir.Span) (string, error) {
	arr := make([]any, len(spans))
	for i, sp := range spans {
		arr[i] = map[string]any{
			"start": sp.Start,
			"end":   sp.End,
			"text":  sp.Text,
		}
	}
	data, err := ir.MarshalCanonical(arr)
	if err != nil {
		return "", fmt.Errorf("marshal spans: %w", err)
	}
	return string(data), nil
}

// unmarshalSpans parses span JSON TEXT.
func unmarshalSpans(data string) ([]ir.Span, error) {
	if data == "" || data == "[]" {
		return []ir.Span{}, nil
	}
	var raw []struct {
		Start int    `json:"start"`
		End   int    `json:"end"`
		Text  string `json:"text"`
	}
	if err := json.Unmarshal([]byte(data), &raw); err != nil {
		return nil, fmt.Errorf("unmarshal spans: %w", err)
	}
	spans := make([]ir.Span, len(raw))
	for i, r := range raw {
		spans[i] = ir.Span{Start: r.Start, End: r.End, Text: r.Text}
	}
	return spans, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
