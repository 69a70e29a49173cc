// Package debug renders parsed stylesheets as indented text for debug
// reports.
package debug

import (
	"fmt"
	"strconv"
	"strings"
)

// TreeWriter accumulates an outline of stylesheet items, one node per
// line and two spaces per nesting level. Use NewTreeWriter to get one.
type TreeWriter struct {
	sb *strings.Builder
}

func NewTreeWriter() *TreeWriter {
	return &TreeWriter{sb: new(strings.Builder)}
}

// String returns the outline written so far.
func (tw TreeWriter) String() string {
	return tw.sb.String()
}

// Line writes a formatted node at given depth.
func (tw TreeWriter) Line(depth int, format string, args ...any) {
	tw.sb.WriteString(strings.Repeat("  ", depth))
	fmt.Fprintf(tw.sb, format, args...)
	tw.sb.WriteByte('\n')
}

// Text writes a "label: value" node, declarations and at-rule preludes are
// written this way. Value is quoted so stray whitespace shows.
func (tw TreeWriter) Text(depth int, label, value string) {
	tw.Line(depth, "%s: %s", label, quoteValue(value))
}

func quoteValue(v string) string {
	if v == "" {
		return v
	}
	return strconv.Quote(v)
}
