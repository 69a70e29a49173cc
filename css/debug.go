package css

import (
	"pxtorem/utils/debug"
)

type treeWriter struct {
	*debug.TreeWriter
}

// Dump returns a readable tree of the parsed stylesheet for manual
// inspection (debug report).
func (s *Stylesheet) Dump() string {
	if s == nil {
		return "<nil Stylesheet>"
	}
	tw := treeWriter{debug.NewTreeWriter()}
	tw.Line(0, "Stylesheet source=%q items=%d incomplete=%t", s.Source, len(s.Items), s.Incomplete)
	for _, w := range s.Warnings {
		tw.Text(1, "Warning", w)
	}
	for i, item := range s.Items {
		tw.item(1, i, item)
	}
	return tw.String()
}

func (tw treeWriter) item(depth, i int, item Item) {
	switch {
	case item.Comment != nil:
		tw.Text(depth, "Comment", *item.Comment)
	case item.Rule != nil:
		tw.Line(depth, "Rule[%d] selector=%q", i, item.Rule.Selector)
		tw.declarations(depth+1, item.Rule.Declarations)
	case item.AtRule != nil:
		a := item.AtRule
		tw.Line(depth, "AtRule[%d] name=%q block=%t", i, a.Name, a.Block)
		if a.Params != "" {
			tw.Text(depth+1, "params", a.Params)
		}
		tw.declarations(depth+1, a.Declarations)
		for j, nested := range a.Items {
			tw.item(depth+1, j, nested)
		}
		if a.Raw != "" {
			tw.Text(depth+1, "raw", a.Raw)
		}
	}
}

func (tw treeWriter) declarations(depth int, ds Declarations) {
	for i, d := range ds {
		switch {
		case d.Comment != nil:
			tw.Text(depth, "Comment", *d.Comment)
		case d.Nested != nil:
			tw.item(depth, i, *d.Nested)
		default:
			tw.Text(depth, d.Property, d.Value)
		}
	}
}
