package transform

import (
	"fmt"
	"strings"
	"sync"

	"github.com/dlclark/regexp2"

	"pxtorem/script"
)

type patternKind int

const (
	patternLiteral patternKind = iota
	patternRegexp
	patternPredicate
)

// Pattern matches selectors and stylesheet identifiers. It is either a
// literal (substring match), a regular expression in JavaScript dialect or
// a predicate function. Regular expressions are compiled on first use, so
// invalid expression surfaces as ErrPattern when stylesheet is processed.
type Pattern struct {
	kind  patternKind
	text  string
	flags string

	compiled func() (*regexp2.Regexp, error)
	pred     func(string) (bool, error)
}

// Literal returns pattern matching any string containing s.
func Literal(s string) Pattern {
	return Pattern{kind: patternLiteral, text: s}
}

// Regexp returns pattern matching strings against JavaScript style regular
// expression. Supported flags are "i", "m" and "s", while "g", "u" and "y"
// are accepted and ignored.
func Regexp(expr, flags string) Pattern {
	p := Pattern{kind: patternRegexp, text: expr, flags: flags}
	p.compiled = sync.OnceValues(func() (*regexp2.Regexp, error) {
		opts, err := regexpOptions(flags)
		if err != nil {
			return nil, err
		}
		return regexp2.Compile(expr, opts)
	})
	return p
}

// Predicate returns pattern delegating to fn.
func Predicate(fn func(string) (bool, error)) Pattern {
	return Pattern{kind: patternPredicate, pred: fn}
}

// ScriptPattern compiles JavaScript function source into predicate pattern.
func ScriptPattern(src string) (Pattern, error) {
	f, err := script.Compile(src)
	if err != nil {
		return Pattern{}, fmt.Errorf("%w: %w", ErrPattern, err)
	}
	p := Predicate(f.Bool)
	p.text = f.String()
	return p, nil
}

func regexpOptions(flags string) (regexp2.RegexOptions, error) {
	var opts regexp2.RegexOptions = regexp2.ECMAScript
	for _, f := range flags {
		switch f {
		case 'i':
			opts |= regexp2.IgnoreCase
		case 'm':
			opts |= regexp2.Multiline
		case 's':
			// dot-all is not available in ECMAScript mode
			opts = opts&^regexp2.ECMAScript | regexp2.Singleline
		case 'g', 'u', 'y':
		default:
			return 0, fmt.Errorf("unknown regular expression flag %q", f)
		}
	}
	return opts, nil
}

// Match reports whether s matches the pattern.
func (p Pattern) Match(s string) (bool, error) {
	switch p.kind {
	case patternRegexp:
		re, err := p.compiled()
		if err != nil {
			return false, fmt.Errorf("%w: /%s/%s: %w", ErrPattern, p.text, p.flags, err)
		}
		ok, err := re.MatchString(s)
		if err != nil {
			return false, fmt.Errorf("%w: /%s/%s: %w", ErrPattern, p.text, p.flags, err)
		}
		return ok, nil
	case patternPredicate:
		if p.pred == nil {
			return false, nil
		}
		ok, err := p.pred(s)
		if err != nil {
			return false, fmt.Errorf("%w: %w", ErrPattern, err)
		}
		return ok, nil
	default:
		return strings.Contains(s, p.text), nil
	}
}

// String returns readable form of the pattern for logging.
func (p Pattern) String() string {
	switch p.kind {
	case patternRegexp:
		return "/" + p.text + "/" + p.flags
	case patternPredicate:
		if p.text != "" {
			return p.text
		}
		return "<func>"
	default:
		return p.text
	}
}

// SelectorFilter decides whether rule is excluded from conversion by its
// selector.
type SelectorFilter struct {
	patterns []Pattern
}

// NewSelectorFilter returns filter for the blacklist patterns.
func NewSelectorFilter(patterns []Pattern) *SelectorFilter {
	return &SelectorFilter{patterns: patterns}
}

// Empty reports whether filter has no patterns.
func (f *SelectorFilter) Empty() bool {
	return len(f.patterns) == 0
}

// Blacklisted reports whether selector matches any of the patterns,
// predicates are called with the selector. Declarations not owned by a
// rule have no selector (ok is false) and are never blacklisted.
func (f *SelectorFilter) Blacklisted(selector string, ok bool) (bool, error) {
	if !ok {
		return false, nil
	}
	for _, p := range f.patterns {
		matched, err := p.Match(selector)
		if err != nil {
			return false, err
		}
		if matched {
			return true, nil
		}
	}
	return false, nil
}
