package transform

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/tidwall/jsonc"
	"go.uber.org/multierr"

	"pxtorem/script"
)

const (
	DefaultRootValue     = 16
	DefaultUnitPrecision = 5
	DefaultSourceUnit    = "px"
	DefaultTargetUnit    = "rem"
)

// DefaultPropList is property list used when none is specified.
var DefaultPropList = []string{"font", "font-size", "line-height", "letter-spacing"}

// Options controls conversion.
type Options struct {
	// RootValue is divisor for every conversion. Ignored when RootValueFunc
	// is set.
	RootValue float64
	// RootValueFunc computes root value from stylesheet source identifier.
	// It is called once per stylesheet.
	RootValueFunc func(source string) (float64, error)
	// UnitPrecision is number of decimal places in results.
	UnitPrecision int
	// PropList selects properties to convert, see PropertyMatcher.
	PropList []string
	// SelectorBlackList excludes rules by selector.
	SelectorBlackList []Pattern
	// Replace rewrites declaration in place when true, otherwise adds
	// converted copy right after the original.
	Replace bool
	// MediaQuery enables conversion of @media parameters.
	MediaQuery bool
	// MinPixelValue is smallest magnitude converted.
	MinPixelValue float64
	// Exclude skips entire stylesheet when its source identifier matches.
	Exclude *Pattern
	// SourceUnit and TargetUnit default to "px" and "rem".
	SourceUnit string
	TargetUnit string
}

// DefaultOptions returns options with every field at its default.
func DefaultOptions() Options {
	return Options{
		RootValue:     DefaultRootValue,
		UnitPrecision: DefaultUnitPrecision,
		PropList:      append([]string(nil), DefaultPropList...),
		Replace:       true,
		SourceUnit:    DefaultSourceUnit,
		TargetUnit:    DefaultTargetUnit,
	}
}

// Validate checks options for values conversion cannot work with.
func (o *Options) Validate() error {
	var errs error
	if o.RootValueFunc == nil && (!(o.RootValue > 0) || math.IsInf(o.RootValue, 0)) {
		errs = multierr.Append(errs, fmt.Errorf("%w: %v", ErrInvalidRootValue, o.RootValue))
	}
	if o.UnitPrecision < 0 || o.UnitPrecision > 20 {
		errs = multierr.Append(errs, fmt.Errorf("%w: unitPrecision must be between 0 and 20, got %d", ErrInvalidOption, o.UnitPrecision))
	}
	if math.IsNaN(o.MinPixelValue) {
		errs = multierr.Append(errs, fmt.Errorf("%w: minPixelValue is not a number", ErrInvalidOption))
	}
	return errs
}

var legacyOptions = []struct{ from, to string }{
	{"root_value", "rootValue"},
	{"unit_precision", "unitPrecision"},
	{"selector_black_list", "selectorBlackList"},
	{"prop_white_list", "propList"},
	{"propWhiteList", "propList"},
	{"media_query", "mediaQuery"},
	{"min_pixel_value", "minPixelValue"},
	{"source_unit", "sourceUnit"},
	{"target_unit", "targetUnit"},
	{"unit", "sourceUnit"},
}

// NormalizeLegacy returns copy of raw options with legacy names mapped onto
// current ones. When both legacy and current name are present current one
// wins. Input map is not modified.
func NormalizeLegacy(raw map[string]any) map[string]any {
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		out[k] = v
	}

	if _, ok := out["propList"]; !ok {
		if isEmptyList(out["prop_white_list"]) || isEmptyList(out["propWhiteList"]) {
			out["propList"] = []any{"*"}
		}
	}

	for _, l := range legacyOptions {
		v, ok := out[l.from]
		if !ok {
			continue
		}
		delete(out, l.from)
		if _, exists := out[l.to]; !exists {
			out[l.to] = v
		}
	}
	return out
}

func isEmptyList(v any) bool {
	switch l := v.(type) {
	case []any:
		return len(l) == 0
	case []string:
		return len(l) == 0
	}
	return false
}

// Decode builds options from loosely typed map, as produced by JSON or YAML
// decoders. Anything other than a map yields defaults. Unknown keys are
// ignored, values of wrong type are reported.
func Decode(raw any) (Options, error) {
	opts := DefaultOptions()

	m, ok := raw.(map[string]any)
	if !ok {
		return opts, nil
	}
	m = NormalizeLegacy(m)

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var errs error
	for _, key := range keys {
		if err := decodeOption(&opts, key, m[key]); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%w %q: %w", ErrInvalidOption, key, err))
		}
	}
	if errs != nil {
		return opts, errs
	}
	return opts, opts.Validate()
}

func decodeOption(opts *Options, key string, v any) (err error) {
	switch key {
	case "rootValue":
		switch rv := v.(type) {
		case func(string) (float64, error):
			opts.RootValueFunc = rv
		case map[string]any:
			src, ok := rv["script"].(string)
			if !ok {
				return fmt.Errorf("object form requires \"script\" field")
			}
			f, err := script.Compile(src)
			if err != nil {
				return err
			}
			opts.RootValueFunc = f.Number
		default:
			opts.RootValue, err = toFloat(v)
		}
	case "unitPrecision":
		var f float64
		if f, err = toFloat(v); err == nil {
			if f != math.Trunc(f) {
				return fmt.Errorf("expected integer, got %v", v)
			}
			opts.UnitPrecision = int(f)
		}
	case "propList":
		opts.PropList, err = toStrings(v)
	case "selectorBlackList":
		opts.SelectorBlackList, err = toPatterns(v)
	case "replace":
		opts.Replace, err = toBool(v)
	case "mediaQuery":
		opts.MediaQuery, err = toBool(v)
	case "minPixelValue":
		opts.MinPixelValue, err = toFloat(v)
	case "exclude":
		if v == nil {
			opts.Exclude = nil
			return nil
		}
		var p Pattern
		if p, err = toPattern(v); err == nil {
			opts.Exclude = &p
		}
	case "sourceUnit":
		opts.SourceUnit, err = toUnit(v)
	case "targetUnit":
		opts.TargetUnit, err = toUnit(v)
	}
	return err
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	}
	return 0, fmt.Errorf("expected number, got %T", v)
}

func toBool(v any) (bool, error) {
	if b, ok := v.(bool); ok {
		return b, nil
	}
	return false, fmt.Errorf("expected boolean, got %T", v)
}

func toUnit(v any) (string, error) {
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("expected non empty string, got %v", v)
	}
	return s, nil
}

func toStrings(v any) ([]string, error) {
	switch l := v.(type) {
	case []string:
		return append([]string(nil), l...), nil
	case []any:
		out := make([]string, 0, len(l))
		for i, e := range l {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("entry %d: expected string, got %T", i, e)
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, fmt.Errorf("expected list of strings, got %T", v)
}

func toPatterns(v any) ([]Pattern, error) {
	var list []any
	switch l := v.(type) {
	case []Pattern:
		return append([]Pattern(nil), l...), nil
	case []string:
		for _, s := range l {
			list = append(list, s)
		}
	case []any:
		list = l
	default:
		return nil, fmt.Errorf("expected list, got %T", v)
	}

	out := make([]Pattern, 0, len(list))
	for i, e := range list {
		p, err := toPattern(e)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		out = append(out, p)
	}
	return out, nil
}

// toPattern accepts string (literal), {"regexp": expr, "flags": flags},
// {"script": src}, Pattern or predicate function.
func toPattern(v any) (Pattern, error) {
	switch p := v.(type) {
	case string:
		return Literal(p), nil
	case Pattern:
		return p, nil
	case func(string) (bool, error):
		return Predicate(p), nil
	case func(string) bool:
		return Predicate(func(s string) (bool, error) { return p(s), nil }), nil
	case map[string]any:
		if expr, ok := p["regexp"].(string); ok {
			flags, _ := p["flags"].(string)
			return Regexp(expr, flags), nil
		}
		if src, ok := p["script"].(string); ok {
			return ScriptPattern(src)
		}
		return Pattern{}, fmt.Errorf("object form requires \"regexp\" or \"script\" field")
	}
	return Pattern{}, fmt.Errorf("unsupported pattern type %T", v)
}

// LoadOptionsFile reads options from JSON file which may have comments and
// trailing commas (.pxtoremrc style).
func LoadOptionsFile(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("unable to read options file: %w", err)
	}
	return ParseOptions(data)
}

// ParseOptions decodes options from JSON with comments.
func ParseOptions(data []byte) (Options, error) {
	var raw any
	dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return Options{}, fmt.Errorf("unable to decode options: %w", err)
	}
	return Decode(raw)
}
