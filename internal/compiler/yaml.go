package compiler

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/roach88/preproc/internal/ir"
)

// Standard YAML tags for resolved scalars.
const (
	tagStr   = "!!str"
	tagInt   = "!!int"
	tagFloat = "!!float"
	tagBool  = "!!bool"
	tagNull  = "!!null"
)

// DecodeYAML decodes a YAML configuration document into a Config.
// The node API is used so rule maps keep document order.
func DecodeYAML(data []byte, filename string) (*ir.Config, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &CompileError{File: filename, Field: "yaml", Message: err.Error()}
	}
	if doc.Kind == 0 {
		return ir.NewConfig(), nil
	}
	return DecodeYAMLNode(&doc, filename)
}

// DecodeYAMLNode decodes an already parsed YAML node, such as a config
// embedded in a scenario file.
func DecodeYAMLNode(node *yaml.Node, filename string) (*ir.Config, error) {
	d := &yamlDecoder{file: filename}
	if node.Kind == yaml.DocumentNode {
		if len(node.Content) == 0 {
			return ir.NewConfig(), nil
		}
		node = node.Content[0]
	}
	if node.Kind != yaml.MappingNode {
		return nil, d.errorf(node, "config", "must be a mapping")
	}

	cfg := ir.NewConfig()
	sourceMap, sourcemap := true, true
	var err error
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		name := key.Value
		if !topLevelFields[name] {
			return nil, d.errorf(key, name, "unknown field")
		}

		switch name {
		case "values":
			cfg.Values, err = d.rules(val, name)
		case "regexValues":
			cfg.RegexValues, err = d.rules(val, name)
		case "delimiters":
			cfg.Delimiters, err = d.delimiters(val)
		case "preventAssignment":
			cfg.PreventAssignment, err = d.boolean(val, name)
		case "objectGuards":
			cfg.ObjectGuards, err = d.boolean(val, name)
		case "include":
			cfg.Include, err = d.stringList(val, name)
		case "exclude":
			cfg.Exclude, err = d.stringList(val, name)
		case "sourceMap":
			sourceMap, err = d.boolean(val, name)
		case "sourcemap":
			sourcemap, err = d.boolean(val, name)
		case "matchTimeoutMs":
			cfg.MatchTimeoutMS, err = d.integer(val, name)
		case "comments":
			err = d.comments(val, &cfg.Comments)
		}
		if err != nil {
			return nil, err
		}
	}
	cfg.SourceMap = sourceMap && sourcemap
	return cfg, nil
}

type yamlDecoder struct {
	file string
}

func (d *yamlDecoder) errorf(n *yaml.Node, field, format string, args ...any) *CompileError {
	return &CompileError{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
		File:    d.file,
		Line:    n.Line,
		Column:  n.Column,
	}
}

func (d *yamlDecoder) rules(n *yaml.Node, field string) ([]ir.RuleSpec, error) {
	if n.Kind != yaml.MappingNode {
		return nil, d.errorf(n, field, "must be a map of key to value")
	}
	var rules []ir.RuleSpec
	for i := 0; i+1 < len(n.Content); i += 2 {
		key := n.Content[i].Value
		value, err := d.scalar(n.Content[i+1], field+"."+key)
		if err != nil {
			return nil, err
		}
		rules = append(rules, ir.RuleSpec{Key: key, Value: value})
	}
	return rules, nil
}

// scalar coerces a string, number or bool to its string form. Numbers and
// bools are decoded first so every spelling YAML accepts normalizes the
// same way (0x10 -> "16", True -> "true").
func (d *yamlDecoder) scalar(n *yaml.Node, field string) (string, error) {
	if n.Kind != yaml.ScalarNode {
		return "", d.errorf(n, field, "value must be a string, number or bool")
	}
	switch n.ShortTag() {
	case tagStr:
		return n.Value, nil
	case tagInt:
		i, err := d.integer(n, field)
		return strconv.FormatInt(i, 10), err
	case tagFloat:
		var f float64
		if err := n.Decode(&f); err != nil {
			return "", d.errorf(n, field, "invalid number %q", n.Value)
		}
		return formatFloat(f), nil
	case tagBool:
		b, err := d.boolean(n, field)
		return strconv.FormatBool(b), err
	default:
		return "", d.errorf(n, field, "value must be a string, number or bool, got %s", n.ShortTag())
	}
}

func (d *yamlDecoder) boolean(n *yaml.Node, field string) (bool, error) {
	var b bool
	if n.Kind != yaml.ScalarNode || n.ShortTag() != tagBool || n.Decode(&b) != nil {
		return false, d.errorf(n, field, "must be a bool")
	}
	return b, nil
}

func (d *yamlDecoder) integer(n *yaml.Node, field string) (int64, error) {
	var i int64
	if n.Kind != yaml.ScalarNode || n.ShortTag() != tagInt || n.Decode(&i) != nil {
		return 0, d.errorf(n, field, "must be an int")
	}
	return i, nil
}

// stringList reads a string or a sequence of strings.
func (d *yamlDecoder) stringList(n *yaml.Node, field string) ([]string, error) {
	if n.Kind == yaml.ScalarNode && n.ShortTag() == tagStr {
		return []string{n.Value}, nil
	}
	if n.Kind != yaml.SequenceNode {
		return nil, d.errorf(n, field, "must be a string or a list of strings")
	}
	out := make([]string, 0, len(n.Content))
	for i, item := range n.Content {
		if item.Kind != yaml.ScalarNode || item.ShortTag() != tagStr {
			return nil, d.errorf(item, fmt.Sprintf("%s[%d]", field, i), "must be a string")
		}
		out = append(out, item.Value)
	}
	return out, nil
}

func (d *yamlDecoder) delimiters(n *yaml.Node) (*ir.Delimiters, error) {
	parts, err := d.stringList(n, "delimiters")
	if err != nil || len(parts) != 2 {
		return nil, d.errorf(n, "delimiters", "must be a list of two strings")
	}
	return &ir.Delimiters{Before: parts[0], After: parts[1]}, nil
}

func (d *yamlDecoder) comments(n *yaml.Node, c *ir.CommentsConfig) error {
	if n.Kind != yaml.MappingNode {
		return d.errorf(n, "comments", "must be a mapping")
	}
	var err error
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i], n.Content[i+1]
		field := "comments." + key.Value
		switch key.Value {
		case "enabled":
			c.Enabled, err = d.boolean(val, field)
		case "forRelease":
			c.ForRelease, err = d.boolean(val, field)
		case "verbose":
			c.Verbose, err = d.boolean(val, field)
		case "conditions":
			err = d.conditions(val, c)
		default:
			err = d.errorf(key, field, "unknown field")
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (d *yamlDecoder) conditions(n *yaml.Node, c *ir.CommentsConfig) error {
	if n.Kind == yaml.SequenceNode {
		names, err := d.stringList(n, "comments.conditions")
		if err != nil {
			return err
		}
		c.Conditions = names
		return nil
	}
	if n.Kind != yaml.MappingNode {
		return d.errorf(n, "comments.conditions", "must be a list of names or a map of name to state")
	}

	c.ConditionStates = make(map[string]any)
	for i := 0; i+1 < len(n.Content); i += 2 {
		name := n.Content[i].Value
		state, err := d.state(n.Content[i+1], "comments.conditions."+name)
		if err != nil {
			return err
		}
		c.ConditionStates[name] = state
	}
	return nil
}

// state reads a condition state as string, int64 or bool.
func (d *yamlDecoder) state(n *yaml.Node, field string) (any, error) {
	if n.Kind != yaml.ScalarNode {
		return nil, d.errorf(n, field, "state must be a string, number or bool")
	}
	switch n.ShortTag() {
	case tagStr:
		return n.Value, nil
	case tagInt:
		return d.integer(n, field)
	case tagFloat:
		var f float64
		if err := n.Decode(&f); err != nil {
			return nil, d.errorf(n, field, "invalid number %q", n.Value)
		}
		return f != 0, nil
	case tagBool:
		return d.boolean(n, field)
	case tagNull:
		return false, nil
	default:
		return nil, d.errorf(n, field, "state must be a string, number or bool, got %s", n.ShortTag())
	}
}
