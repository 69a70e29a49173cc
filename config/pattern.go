package config

import (
	"errors"
	"fmt"

	yaml "gopkg.in/yaml.v3"

	"pxtorem/transform"
)

// PatternConfig is a selector or file pattern as written in configuration:
// either a plain string (substring match) or a mapping with "regexp" and
// optional "flags", or with "script" holding JavaScript predicate source.
type PatternConfig struct {
	Literal string
	Regexp  string
	Flags   string
	Script  string
}

func (pc *PatternConfig) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*pc = PatternConfig{Literal: value.Value}
		return nil
	case yaml.MappingNode:
	default:
		return fmt.Errorf("line %d: pattern must be a string or a mapping", value.Line)
	}

	var res PatternConfig
	for i := 0; i+1 < len(value.Content); i += 2 {
		k, v := value.Content[i], value.Content[i+1]
		if v.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: pattern field %q must be a string", v.Line, k.Value)
		}
		switch k.Value {
		case "regexp":
			res.Regexp = v.Value
		case "flags":
			res.Flags = v.Value
		case PatternScriptFieldName:
			res.Script = v.Value
		default:
			return fmt.Errorf("line %d: field %s not found in pattern", k.Line, k.Value)
		}
	}
	switch {
	case len(res.Regexp) > 0 && len(res.Script) > 0:
		return fmt.Errorf("line %d: pattern cannot have both regexp and script", value.Line)
	case len(res.Regexp) == 0 && len(res.Script) == 0:
		return fmt.Errorf("line %d: pattern must have either regexp or script", value.Line)
	case len(res.Script) > 0 && len(res.Flags) > 0:
		return fmt.Errorf("line %d: flags are only allowed with regexp", value.Line)
	}
	*pc = res
	return nil
}

func (pc PatternConfig) MarshalYAML() (any, error) {
	switch {
	case len(pc.Script) > 0:
		return map[string]string{PatternScriptFieldName: pc.Script}, nil
	case len(pc.Regexp) > 0:
		m := map[string]string{"regexp": pc.Regexp}
		if len(pc.Flags) > 0 {
			m["flags"] = pc.Flags
		}
		return m, nil
	default:
		return pc.Literal, nil
	}
}

// Pattern converts configuration entry to matcher used by transformer.
func (pc PatternConfig) Pattern() (transform.Pattern, error) {
	switch {
	case len(pc.Script) > 0:
		return transform.ScriptPattern(pc.Script)
	case len(pc.Regexp) > 0:
		return transform.Regexp(pc.Regexp, pc.Flags), nil
	case len(pc.Literal) > 0:
		return transform.Literal(pc.Literal), nil
	default:
		return transform.Pattern{}, errors.New("empty pattern")
	}
}
