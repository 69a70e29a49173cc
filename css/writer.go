package css

import (
	"fmt"
	"io"
	"strings"
)

// Style selects the serialization layout.
type Style int

const (
	Pretty  Style = iota // One declaration per line, nested blocks indented
	Compact              // Everything on one line: "a { b: c; } d { e: f; }"
)

// ParseStyle converts style name to Style, unknown names are reported as error.
func ParseStyle(name string) (Style, error) {
	switch strings.ToLower(name) {
	case "", "pretty":
		return Pretty, nil
	case "compact":
		return Compact, nil
	default:
		return Pretty, fmt.Errorf("unknown output style: %s", name)
	}
}

// String returns the style name.
func (st Style) String() string {
	if st == Compact {
		return "compact"
	}
	return "pretty"
}

// MarshalText implements encoding.TextMarshaler.
func (st Style) MarshalText() ([]byte, error) {
	return []byte(st.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (st *Style) UnmarshalText(text []byte) error {
	v, err := ParseStyle(string(text))
	if err != nil {
		return err
	}
	*st = v
	return nil
}

// WriteTo writes the stylesheet to w in source order using Pretty layout,
// implementing io.WriterTo.
func (s *Stylesheet) WriteTo(w io.Writer) (int64, error) {
	return s.Write(w, Pretty)
}

// Write writes the stylesheet to w in source order using requested layout.
func (s *Stylesheet) Write(w io.Writer, style Style) (int64, error) {
	sw := &writer{w: w, style: style}
	sw.items(s.Items, 0)
	return sw.total, sw.err
}

// String returns the CSS text of the stylesheet.
func (s *Stylesheet) String() string {
	var sb strings.Builder
	s.Write(&sb, Pretty) //nolint:errcheck
	return sb.String()
}

// Format returns the CSS text of the stylesheet in requested layout.
func (s *Stylesheet) Format(style Style) string {
	var sb strings.Builder
	s.Write(&sb, style) //nolint:errcheck
	return sb.String()
}

// writer keeps running byte count and first error so the layout code does
// not have to check every write.
type writer struct {
	w     io.Writer
	style Style
	total int64
	err   error
}

func (sw *writer) printf(format string, args ...any) {
	if sw.err != nil {
		return
	}
	n, err := fmt.Fprintf(sw.w, format, args...)
	sw.total += int64(n)
	sw.err = err
}

func (sw *writer) indent(depth int) {
	if sw.style == Compact {
		return
	}
	sw.printf("%s", strings.Repeat("  ", depth))
}

func (sw *writer) items(items []Item, depth int) {
	for i, item := range items {
		if i > 0 {
			switch {
			case sw.style == Compact:
				sw.printf(" ")
			case depth == 0:
				// blank line between top-level items
				sw.printf("\n")
			}
		}
		switch {
		case item.Comment != nil:
			sw.indent(depth)
			sw.printf("%s", *item.Comment)
			sw.newline()
		case item.AtRule != nil:
			sw.atRule(item.AtRule, depth)
		case item.Rule != nil:
			sw.rule(item.Rule, depth)
		}
	}
}

func (sw *writer) newline() {
	if sw.style == Pretty {
		sw.printf("\n")
	}
}

func (sw *writer) rule(r *Rule, depth int) {
	sw.indent(depth)
	sw.printf("%s {", r.Selector)
	sw.newline()
	sw.declarations(r.Declarations, depth+1)
	sw.closeBlock(depth)
}

func (sw *writer) declarations(ds Declarations, depth int) {
	for _, d := range ds {
		if sw.style == Compact {
			sw.printf(" ")
		}
		switch {
		case d.Comment != nil:
			sw.indent(depth)
			sw.printf("%s", *d.Comment)
			sw.newline()
		case d.Nested != nil:
			sw.items([]Item{*d.Nested}, depth)
		case sw.style == Compact:
			sw.printf("%s: %s;", d.Property, d.Value)
		default:
			sw.indent(depth)
			sw.printf("%s: %s;\n", d.Property, d.Value)
		}
	}
}

func (sw *writer) closeBlock(depth int) {
	if sw.style == Compact {
		sw.printf(" }")
		return
	}
	sw.indent(depth)
	sw.printf("}\n")
}

func (sw *writer) atRule(a *AtRule, depth int) {
	sw.indent(depth)
	sw.printf("@%s", a.Name)
	if a.Params != "" {
		sw.printf(" %s", a.Params)
	}
	if !a.Block {
		sw.printf(";")
		sw.newline()
		return
	}
	sw.printf(" {")
	sw.newline()
	sw.declarations(a.Declarations, depth+1)
	if len(a.Items) > 0 {
		if sw.style == Compact {
			sw.printf(" ")
		}
		sw.items(a.Items, depth+1)
	}
	if a.Raw != "" {
		if sw.style == Compact {
			sw.printf(" %s", a.Raw)
		} else {
			sw.indent(depth + 1)
			sw.printf("%s\n", a.Raw)
		}
	}
	sw.closeBlock(depth)
}
