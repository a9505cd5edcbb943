package compiler

import (
	"fmt"
	"strconv"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/preproc/internal/ir"
)

// topLevelFields lists the fields a configuration may set.
var topLevelFields = map[string]bool{
	"values":            true,
	"regexValues":       true,
	"delimiters":        true,
	"preventAssignment": true,
	"objectGuards":      true,
	"include":           true,
	"exclude":           true,
	"sourceMap":         true,
	"sourcemap":         true,
	"matchTimeoutMs":    true,
	"comments":          true,
}

var commentsFields = map[string]bool{
	"enabled":    true,
	"forRelease": true,
	"conditions": true,
	"verbose":    true,
}

// CompileCUE compiles CUE source text into a Config.
func CompileCUE(src []byte, filename string) (*ir.Config, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	return CompileConfig(v)
}

// CompileConfig parses a CUE value into a Config.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// Keys starting with "__" are reserved identifiers in CUE and must be
// quoted. Rule maps keep declaration order, which decides ties between keys of
// equal length. Scalar values are coerced to strings:
//
//	values: {
//		"process.env.NODE_ENV": "production"
//		"__VERSION__":          3
//		"__DEV__":              false
//	}
func CompileConfig(v cue.Value) (*ir.Config, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	cfg := ir.NewConfig()
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	// Either spelling set to false disables source maps.
	sourceMap, sourcemap := true, true

	for iter.Next() {
		name := iter.Selector().Unquoted()
		fv := iter.Value()
		if !topLevelFields[name] {
			return nil, &CompileError{Field: name, Message: "unknown field", Pos: fv.Pos()}
		}

		switch name {
		case "values":
			cfg.Values, err = cueRules(fv, name)
		case "regexValues":
			cfg.RegexValues, err = cueRules(fv, name)
		case "delimiters":
			cfg.Delimiters, err = cueDelimiters(fv)
		case "preventAssignment":
			cfg.PreventAssignment, err = cueBool(fv, name)
		case "objectGuards":
			cfg.ObjectGuards, err = cueBool(fv, name)
		case "include":
			cfg.Include, err = cueStrings(fv, name)
		case "exclude":
			cfg.Exclude, err = cueStrings(fv, name)
		case "sourceMap":
			sourceMap, err = cueBool(fv, name)
		case "sourcemap":
			sourcemap, err = cueBool(fv, name)
		case "matchTimeoutMs":
			cfg.MatchTimeoutMS, err = cueInt(fv, name)
		case "comments":
			err = cueComments(fv, &cfg.Comments)
		}
		if err != nil {
			return nil, err
		}
	}
	cfg.SourceMap = sourceMap && sourcemap

	return cfg, nil
}

// cueRules reads an ordered key -> scalar map.
func cueRules(v cue.Value, field string) ([]ir.RuleSpec, error) {
	iter, err := v.Fields()
	if err != nil {
		return nil, &CompileError{Field: field, Message: "must be a map of key to value", Pos: v.Pos()}
	}

	var rules []ir.RuleSpec
	for iter.Next() {
		key := iter.Selector().Unquoted()
		value, err := cueScalar(iter.Value(), field+"."+key)
		if err != nil {
			return nil, err
		}
		rules = append(rules, ir.RuleSpec{Key: key, Value: value})
	}
	return rules, nil
}

// cueScalar coerces a string, number or bool to its string form.
func cueScalar(v cue.Value, field string) (string, error) {
	switch v.Kind() {
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return "", formatCUEError(err)
		}
		return s, nil
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return "", formatCUEError(err)
		}
		return strconv.FormatInt(n, 10), nil
	case cue.FloatKind:
		f, err := v.Float64()
		if err != nil {
			return "", formatCUEError(err)
		}
		return formatFloat(f), nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return "", formatCUEError(err)
		}
		return strconv.FormatBool(b), nil
	default:
		return "", &CompileError{
			Field:   field,
			Message: fmt.Sprintf("value must be a string, number or bool, got %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

func cueBool(v cue.Value, field string) (bool, error) {
	b, err := v.Bool()
	if err != nil {
		return false, &CompileError{Field: field, Message: "must be a bool", Pos: v.Pos()}
	}
	return b, nil
}

func cueInt(v cue.Value, field string) (int64, error) {
	n, err := v.Int64()
	if err != nil {
		return 0, &CompileError{Field: field, Message: "must be an int", Pos: v.Pos()}
	}
	return n, nil
}

// cueStrings reads a string or a list of strings.
func cueStrings(v cue.Value, field string) ([]string, error) {
	if s, err := v.String(); err == nil {
		return []string{s}, nil
	}

	list, err := v.List()
	if err != nil {
		return nil, &CompileError{Field: field, Message: "must be a string or a list of strings", Pos: v.Pos()}
	}
	var out []string
	for i := 0; list.Next(); i++ {
		s, err := list.Value().String()
		if err != nil {
			return nil, &CompileError{
				Field:   fmt.Sprintf("%s[%d]", field, i),
				Message: "must be a string",
				Pos:     list.Value().Pos(),
			}
		}
		out = append(out, s)
	}
	return out, nil
}

func cueDelimiters(v cue.Value) (*ir.Delimiters, error) {
	parts, err := cueStrings(v, "delimiters")
	if err != nil || len(parts) != 2 {
		return nil, &CompileError{Field: "delimiters", Message: "must be a list of two strings", Pos: v.Pos()}
	}
	return &ir.Delimiters{Before: parts[0], After: parts[1]}, nil
}

func cueComments(v cue.Value, c *ir.CommentsConfig) error {
	iter, err := v.Fields()
	if err != nil {
		return &CompileError{Field: "comments", Message: "must be a struct", Pos: v.Pos()}
	}

	for iter.Next() {
		name := iter.Selector().Unquoted()
		fv := iter.Value()
		field := "comments." + name
		switch name {
		case "enabled":
			c.Enabled, err = cueBool(fv, field)
		case "forRelease":
			c.ForRelease, err = cueBool(fv, field)
		case "verbose":
			c.Verbose, err = cueBool(fv, field)
		case "conditions":
			err = cueConditions(fv, c)
		default:
			err = &CompileError{Field: field, Message: "unknown field", Pos: fv.Pos()}
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// cueConditions reads either a list of names or a map of name -> state.
func cueConditions(v cue.Value, c *ir.CommentsConfig) error {
	if v.Kind() == cue.ListKind {
		names, err := cueStrings(v, "comments.conditions")
		if err != nil {
			return err
		}
		c.Conditions = names
		return nil
	}

	iter, err := v.Fields()
	if err != nil {
		return &CompileError{
			Field:   "comments.conditions",
			Message: "must be a list of names or a map of name to state",
			Pos:     v.Pos(),
		}
	}
	c.ConditionStates = make(map[string]any)
	for iter.Next() {
		name := iter.Selector().Unquoted()
		state, err := cueState(iter.Value(), "comments.conditions."+name)
		if err != nil {
			return err
		}
		c.ConditionStates[name] = state
	}
	return nil
}

// cueState reads a condition state as string, int64 or bool.
func cueState(v cue.Value, field string) (any, error) {
	switch v.Kind() {
	case cue.StringKind:
		return v.String()
	case cue.IntKind:
		return v.Int64()
	case cue.FloatKind:
		f, err := v.Float64()
		return f != 0, err
	case cue.BoolKind:
		return v.Bool()
	case cue.NullKind:
		return false, nil
	default:
		return nil, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("state must be a string, number or bool, got %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
