package transform

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// ReplacerOptions describes single conversion.
type ReplacerOptions struct {
	RootValue     float64
	UnitPrecision int
	MinPixelValue float64
	SourceUnit    string
	TargetUnit    string
}

// Replacer rewrites source unit lengths in a value string. Quoted strings,
// url(...) and var(...) segments are copied verbatim, as is any length
// with magnitude below MinPixelValue.
type Replacer struct {
	opts ReplacerOptions
	re   *regexp.Regexp
}

// NewReplacer prepares scanner for the source unit. Unit match is case
// sensitive, so "15PX" is left alone when unit is "px".
func NewReplacer(opts ReplacerOptions) *Replacer {
	if opts.SourceUnit == "" {
		opts.SourceUnit = DefaultSourceUnit
	}
	if opts.TargetUnit == "" {
		opts.TargetUnit = DefaultTargetUnit
	}
	return &Replacer{
		opts: opts,
		re:   regexp.MustCompile(`"[^"]+"|'[^']+'|url\([^)]+\)|var\([^)]+\)|(\d*\.?\d+)` + regexp.QuoteMeta(opts.SourceUnit)),
	}
}

// WithRootValue returns replacer sharing the scanner but using different
// root value.
func (r *Replacer) WithRootValue(root float64) *Replacer {
	n := *r
	n.opts.RootValue = root
	return &n
}

// Replace returns text with every eligible length converted.
func (r *Replacer) Replace(text string) string {
	matches := r.re.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text
	}

	var sb strings.Builder
	sb.Grow(len(text))
	last := 0
	for _, m := range matches {
		sb.WriteString(text[last:m[0]])
		last = m[1]
		if m[2] < 0 {
			// quoted, url() or var() segment
			sb.WriteString(text[m[0]:m[1]])
			continue
		}
		sb.WriteString(r.convert(text[m[0]:m[1]], text[m[2]:m[3]]))
	}
	sb.WriteString(text[last:])
	return sb.String()
}

func (r *Replacer) convert(token, number string) string {
	px, err := strconv.ParseFloat(number, 64)
	if err != nil || px < r.opts.MinPixelValue {
		return token
	}
	v := toFixed(px/r.opts.RootValue, r.opts.UnitPrecision)
	if v == 0 {
		return "0"
	}
	return strconv.FormatFloat(v, 'f', -1, 64) + r.opts.TargetUnit
}

// toFixed rounds half up at the given number of decimal places after first
// truncating one extra digit, so 0.9375 becomes 0.94 at precision 2 and
// 0.33333 becomes 0.33.
func toFixed(n float64, precision int) float64 {
	multiplier := math.Pow(10, float64(precision+1))
	whole := math.Floor(n * multiplier)
	return math.Round(whole/10) * 10 / multiplier
}
