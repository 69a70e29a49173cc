package debug

import (
	"testing"
)

func TestTreeWriter_Line(t *testing.T) {
	tests := []struct {
		name   string
		depth  int
		format string
		args   []any
		want   string
	}{
		{name: "no depth", depth: 0, format: "Stylesheet", want: "Stylesheet\n"},
		{name: "depth 1", depth: 1, format: "Rule", want: "  Rule\n"},
		{name: "depth 2 with formatting", depth: 2, format: "Declaration[%d]", args: []any{3}, want: "    Declaration[3]\n"},
		{name: "multiple args", depth: 0, format: "%s=%q", args: []any{"selector", "a, b"}, want: "selector=\"a, b\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tw := NewTreeWriter()
			tw.Line(tt.depth, tt.format, tt.args...)
			if got := tw.String(); got != tt.want {
				t.Errorf("Line() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTreeWriter_Text(t *testing.T) {
	tests := []struct {
		name  string
		depth int
		label string
		value string
		want  string
	}{
		{name: "empty value", depth: 0, label: "params", value: "", want: "params: \n"},
		{name: "value", depth: 1, label: "value", value: "1rem solid", want: "  value: \"1rem solid\"\n"},
		{name: "value with quotes", depth: 0, label: "content", value: `"16px"`, want: "content: \"\\\"16px\\\"\"\n"},
		{name: "value with newline", depth: 2, label: "raw", value: "a\nb", want: "    raw: \"a\\nb\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tw := NewTreeWriter()
			tw.Text(tt.depth, tt.label, tt.value)
			if got := tw.String(); got != tt.want {
				t.Errorf("Text() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestQuoteValue(t *testing.T) {
	tests := map[string]string{
		"":             "",
		"16px":         `"16px"`,
		"col1\tcol2":   `"col1\tcol2"`,
		`path\to\file`: `"path\\to\\file"`,
	}
	for in, want := range tests {
		if got := quoteValue(in); got != want {
			t.Errorf("quoteValue(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTreeWriter_Tree(t *testing.T) {
	tw := NewTreeWriter()
	tw.Line(0, "Stylesheet")
	tw.Line(1, "Rule selector=%q", "p")
	tw.Text(2, "font-size", "1rem")
	tw.Line(1, "AtRule name=%q", "media")
	tw.Text(2, "params", "")

	want := "Stylesheet\n  Rule selector=\"p\"\n    font-size: \"1rem\"\n  AtRule name=\"media\"\n    params: \n"
	if got := tw.String(); got != want {
		t.Errorf("tree:\ngot:\n%s\nwant:\n%s", got, want)
	}
}
