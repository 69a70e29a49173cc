package css

import (
	"iter"
	"slices"
)

// Declaration is a single "property: value" pair. Other content of a
// declaration block keeps its place in the list as an entry with empty
// Property: a comment or a nested rule or at-rule.
type Declaration struct {
	Property string // Property name as written (custom properties keep their case)
	Value    string // Value text, whitespace collapsed, including any !important
	Comment  *string
	Nested   *Item
}

// IsProperty reports whether entry is an actual declaration.
func (d *Declaration) IsProperty() bool {
	return d.Comment == nil && d.Nested == nil
}

// Clone returns a copy of the declaration carrying a new value.
func (d *Declaration) Clone(value string) *Declaration {
	return &Declaration{Property: d.Property, Value: value}
}

// Declarations is an ordered list of declarations owned by a rule or by a
// declaration-bearing at-rule (@font-face, @page).
type Declarations []*Declaration

// Contains reports whether any declaration has exactly this property and value.
func (ds Declarations) Contains(property, value string) bool {
	return slices.ContainsFunc(ds, func(d *Declaration) bool {
		return d.IsProperty() && d.Property == property && d.Value == value
	})
}

// Get returns the last declaration for the property (the one that wins in
// the cascade).
func (ds Declarations) Get(property string) (*Declaration, bool) {
	for i := len(ds) - 1; i >= 0; i-- {
		if ds[i].IsProperty() && ds[i].Property == property {
			return ds[i], true
		}
	}
	return nil, false
}

// InsertAfter inserts decl immediately after position i.
func (ds *Declarations) InsertAfter(i int, decl *Declaration) {
	*ds = slices.Insert(*ds, i+1, decl)
}

// Rule is a qualified rule: selector list plus declaration block. Nested
// rules stay inside the block (see Declaration).
type Rule struct {
	Selector     string // Selector list as written, groups joined with ", "
	Declarations Declarations
}

// AtRule is an @-rule. Statement at-rules (@import, @charset) have no block.
// Block at-rules hold either nested items (@media, @supports) or
// declarations (@font-face, @page); unknown blocks are kept verbatim in Raw.
type AtRule struct {
	Name         string // Lower case name without the leading '@'
	Params       string // Prelude text (e.g. media query)
	Block        bool
	Declarations Declarations
	Items        []Item
	Raw          string
}

// Item is a single node of a stylesheet or of an at-rule block.
// Exactly one of Rule, AtRule or Comment is non-nil.
type Item struct {
	Rule    *Rule
	AtRule  *AtRule
	Comment *string
}

// Stylesheet represents a parsed CSS stylesheet.
type Stylesheet struct {
	Source   string   // Identifier of the stylesheet, usually its path
	Items    []Item   // All top-level items in source order
	Warnings []string // Problems found while parsing
	// Incomplete is set when parser had to skip content, the tree cannot
	// be written back without losing it.
	Incomplete bool
}

// Block is a declaration list together with its owner, as seen while
// walking a stylesheet.
type Block struct {
	Rule         *Rule   // nil for declarations owned by an at-rule
	AtRule       *AtRule // set when the owner is an at-rule
	Declarations *Declarations
}

// Selector returns the owner's selector. ok is false when the owner has no
// selector (at-rule blocks).
func (b Block) Selector() (selector string, ok bool) {
	if b.Rule == nil {
		return "", false
	}
	return b.Rule.Selector, true
}

// Blocks yields every declaration list of the stylesheet in document order,
// descending into nested at-rules.
func (s *Stylesheet) Blocks() iter.Seq[Block] {
	return func(yield func(Block) bool) {
		walkBlocks(s.Items, yield)
	}
}

func walkBlocks(items []Item, yield func(Block) bool) bool {
	for _, item := range items {
		switch {
		case item.Rule != nil:
			if !yield(Block{Rule: item.Rule, Declarations: &item.Rule.Declarations}) {
				return false
			}
			// block may have been changed by the consumer, nested entries
			// are collected afterwards
			if !walkBlocks(nestedItems(item.Rule.Declarations), yield) {
				return false
			}
		case item.AtRule != nil:
			if len(item.AtRule.Declarations) > 0 {
				if !yield(Block{AtRule: item.AtRule, Declarations: &item.AtRule.Declarations}) {
					return false
				}
			}
			if !walkBlocks(nestedItems(item.AtRule.Declarations), yield) {
				return false
			}
			if !walkBlocks(item.AtRule.Items, yield) {
				return false
			}
		}
	}
	return true
}

func nestedItems(ds Declarations) []Item {
	var items []Item
	for _, d := range ds {
		if d.Nested != nil {
			items = append(items, *d.Nested)
		}
	}
	return items
}

// AtRules yields every at-rule of the stylesheet in document order,
// including nested ones.
func (s *Stylesheet) AtRules() iter.Seq[*AtRule] {
	return func(yield func(*AtRule) bool) {
		walkAtRules(s.Items, yield)
	}
}

func walkAtRules(items []Item, yield func(*AtRule) bool) bool {
	for _, item := range items {
		switch {
		case item.Rule != nil:
			if !walkAtRules(nestedItems(item.Rule.Declarations), yield) {
				return false
			}
		case item.AtRule != nil:
			if !yield(item.AtRule) {
				return false
			}
			if !walkAtRules(nestedItems(item.AtRule.Declarations), yield) {
				return false
			}
			if !walkAtRules(item.AtRule.Items, yield) {
				return false
			}
		}
	}
	return true
}

// RulesBySelector returns all rules (at any depth) with the given selector.
func (s *Stylesheet) RulesBySelector(selector string) []*Rule {
	var matches []*Rule
	for b := range s.Blocks() {
		if b.Rule != nil && b.Rule.Selector == selector {
			matches = append(matches, b.Rule)
		}
	}
	return matches
}

// Imports returns all @import preludes from the stylesheet in source order.
func (s *Stylesheet) Imports() []string {
	var imports []string
	for _, item := range s.Items {
		if item.AtRule != nil && item.AtRule.Name == "import" {
			imports = append(imports, importURL(item.AtRule.Params))
		}
	}
	return imports
}
