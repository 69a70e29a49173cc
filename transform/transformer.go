package transform

import (
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"pxtorem/css"
)

// Stats reports what Process did to a stylesheet.
type Stats struct {
	// Excluded is set when stylesheet matched Exclude and was not touched.
	Excluded bool
	// RootValue actually used for this stylesheet.
	RootValue float64
	// Converted counts declarations rewritten in place.
	Converted int
	// Inserted counts converted copies added after originals.
	Inserted int
	// Duplicates counts declarations skipped because converted value
	// already present in the same block.
	Duplicates int
	// Blacklisted counts blocks skipped by selector.
	Blacklisted int
	// MediaQueries counts rewritten @media parameters.
	MediaQueries int
}

// Changed reports whether stylesheet was modified.
func (s Stats) Changed() bool {
	return s.Converted+s.Inserted+s.MediaQueries > 0
}

// Add accumulates counters of another run.
func (s *Stats) Add(o Stats) {
	s.Converted += o.Converted
	s.Inserted += o.Inserted
	s.Duplicates += o.Duplicates
	s.Blacklisted += o.Blacklisted
	s.MediaQueries += o.MediaQueries
}

// Transformer applies conversion to stylesheets. It does not change after
// New and is safe for concurrent use on different stylesheets.
type Transformer struct {
	opts      Options
	props     *PropertyMatcher
	selectors *SelectorFilter
	replacer  *Replacer
	parser    *css.Parser
	log       *zap.Logger
}

// New validates options and prepares matchers. Zero RootValue, SourceUnit
// and TargetUnit are replaced by defaults.
func New(opts Options, log *zap.Logger) (*Transformer, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.RootValue == 0 {
		opts.RootValue = DefaultRootValue
	}
	if opts.SourceUnit == "" {
		opts.SourceUnit = DefaultSourceUnit
	}
	if opts.TargetUnit == "" {
		opts.TargetUnit = DefaultTargetUnit
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	t := &Transformer{
		opts:      opts,
		props:     NewPropertyMatcher(opts.PropList),
		selectors: NewSelectorFilter(opts.SelectorBlackList),
		replacer: NewReplacer(ReplacerOptions{
			RootValue:     opts.RootValue,
			UnitPrecision: opts.UnitPrecision,
			MinPixelValue: opts.MinPixelValue,
			SourceUnit:    opts.SourceUnit,
			TargetUnit:    opts.TargetUnit,
		}),
		parser: css.NewParser(log),
		log:    log.Named("pxtorem"),
	}
	t.log.Debug("Transformer created",
		zap.Float64("root", opts.RootValue),
		zap.Bool("root_func", opts.RootValueFunc != nil),
		zap.Int("precision", opts.UnitPrecision),
		zap.Strings("props", opts.PropList),
		zap.Int("blacklist", len(opts.SelectorBlackList)),
		zap.Bool("replace", opts.Replace),
		zap.Bool("media", opts.MediaQuery),
		zap.Float64("min", opts.MinPixelValue),
		zap.String("units", opts.SourceUnit+"->"+opts.TargetUnit),
	)
	return t, nil
}

// Options returns effective options.
func (t *Transformer) Options() Options {
	return t.opts
}

// Process converts stylesheet in place. On error stylesheet is left
// unchanged.
func (t *Transformer) Process(sheet *css.Stylesheet) (Stats, error) {
	var stats Stats

	if t.opts.Exclude != nil {
		if sheet.Source == "" {
			return stats, fmt.Errorf("exclude: %w", ErrMissingSource)
		}
		excluded, err := t.opts.Exclude.Match(sheet.Source)
		if err != nil {
			return stats, fmt.Errorf("exclude: %w", err)
		}
		if excluded {
			t.log.Debug("Stylesheet excluded", zap.String("source", sheet.Source), zap.Stringer("pattern", t.opts.Exclude))
			stats.Excluded = true
			return stats, nil
		}
	}

	root, err := t.rootValue(sheet.Source)
	if err != nil {
		return stats, err
	}
	stats.RootValue = root
	replacer := t.replacer.WithRootValue(root)

	// Evaluate everything that can fail before touching the tree.
	skip, err := t.blacklisted(sheet)
	if err != nil {
		return stats, err
	}

	for b := range sheet.Blocks() {
		if skip[b.Declarations] {
			stats.Blacklisted++
			continue
		}
		t.processBlock(b.Declarations, replacer, &stats)
	}

	if t.opts.MediaQuery {
		t.processMediaQueries(sheet, replacer, &stats)
	}

	t.log.Debug("Stylesheet processed",
		zap.String("source", sheet.Source),
		zap.Float64("root", root),
		zap.Int("converted", stats.Converted),
		zap.Int("inserted", stats.Inserted),
		zap.Int("duplicates", stats.Duplicates),
		zap.Int("media", stats.MediaQueries),
	)
	return stats, nil
}

// processMediaQueries converts params of every @media rule, nested ones
// included.
func (t *Transformer) processMediaQueries(sheet *css.Stylesheet, replacer *Replacer, stats *Stats) {
	for at := range sheet.AtRules() {
		if !strings.EqualFold(at.Name, "media") || !strings.Contains(at.Params, t.opts.SourceUnit) {
			continue
		}
		params := replacer.Replace(at.Params)
		if params != at.Params {
			at.Params = params
			stats.MediaQueries++
		}
	}
}

func (t *Transformer) rootValue(source string) (float64, error) {
	if t.opts.RootValueFunc == nil {
		return t.opts.RootValue, nil
	}
	if source == "" {
		return 0, fmt.Errorf("root value: %w", ErrMissingSource)
	}
	root, err := t.opts.RootValueFunc(source)
	if err != nil {
		return 0, fmt.Errorf("root value for %s: %w", source, err)
	}
	if !(root > 0) || math.IsInf(root, 0) {
		return 0, fmt.Errorf("root value for %s: %w: %v", source, ErrInvalidRootValue, root)
	}
	return root, nil
}

// blacklisted returns blocks to skip. Only blocks having at least one
// candidate declaration are checked.
func (t *Transformer) blacklisted(sheet *css.Stylesheet) (map[*css.Declarations]bool, error) {
	if t.selectors.Empty() {
		return nil, nil
	}
	skip := make(map[*css.Declarations]bool)
	for b := range sheet.Blocks() {
		if !t.hasCandidates(*b.Declarations) {
			continue
		}
		sel, ok := b.Selector()
		bl, err := t.selectors.Blacklisted(sel, ok)
		if err != nil {
			return nil, fmt.Errorf("selector %q: %w", sel, err)
		}
		if bl {
			skip[b.Declarations] = true
		}
	}
	return skip, nil
}

func (t *Transformer) candidate(d *css.Declaration) bool {
	return d.IsProperty() && strings.Contains(d.Value, t.opts.SourceUnit) && t.props.Match(d.Property)
}

func (t *Transformer) hasCandidates(decls css.Declarations) bool {
	for _, d := range decls {
		if t.candidate(d) {
			return true
		}
	}
	return false
}

func (t *Transformer) processBlock(decls *css.Declarations, replacer *Replacer, stats *Stats) {
	for i := 0; i < len(*decls); i++ {
		d := (*decls)[i]
		if !t.candidate(d) {
			continue
		}
		value := replacer.Replace(d.Value)
		if value == d.Value {
			// nothing convertible, e.g. px inside a string
			continue
		}
		if decls.Contains(d.Property, value) {
			stats.Duplicates++
			continue
		}
		if t.opts.Replace {
			d.Value = value
			stats.Converted++
			continue
		}
		decls.InsertAfter(i, d.Clone(value))
		// inserted copy is already converted
		i++
		stats.Inserted++
	}
}

// Parse parses stylesheet text using transformer's logger.
func (t *Transformer) Parse(data []byte, source string) *css.Stylesheet {
	return t.parser.Parse(data, source)
}

// ProcessCSS parses and converts stylesheet text. Returned stylesheet is
// ready to be serialized in desired style.
func (t *Transformer) ProcessCSS(data []byte, source string) (*css.Stylesheet, Stats, error) {
	sheet := t.parser.Parse(data, source)
	for _, w := range sheet.Warnings {
		t.log.Warn("CSS parse warning", zap.String("source", source), zap.String("warning", w))
	}
	stats, err := t.Process(sheet)
	if err != nil {
		return nil, stats, err
	}
	return sheet, stats, nil
}
