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
		{name: "top", depth: 0, format: "Device %q", args: []any{"mobile"}, want: "Device \"mobile\"\n"},
		{name: "nested", depth: 2, format: "Used [%d:%d)", args: []any{0, 13}, want: "    Used [0:13)\n"},
		{name: "no args", depth: 1, format: "No coverage", want: "  No coverage\n"},
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

func TestTreeWriter_TextBlock(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		value string
		want  string
	}{
		{name: "empty", value: "", want: "url: \n"},
		{name: "quoted", value: ".a{color:red}\n", want: "url: \".a{color:red}\\n\"\n"},
		{name: "under limit", limit: 20, value: ".a{color:red}", want: "url: \".a{color:red}\"\n"},
		{name: "cut", limit: 4, value: ".a{color:red}", want: "url: \".a{c\"...(+9 bytes)\n"},
		{name: "cut at rune start", limit: 3, value: "aéé", want: "url: \"aé\"...(+2 bytes)\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tw := NewTreeWriter().WithLimit(tt.limit)
			tw.TextBlock(0, "url", tt.value)
			if got := tw.String(); got != tt.want {
				t.Errorf("TextBlock() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTreeWriter_Tree(t *testing.T) {
	tw := NewTreeWriter()
	tw.Line(0, "Sheet %q", "a.css")
	tw.Line(1, "Rule %q", ".a")
	tw.TextBlock(2, "comment", "x")
	tw.Line(1, "Rule %q", ".b")

	want := "Sheet \"a.css\"\n  Rule \".a\"\n    comment: \"x\"\n  Rule \".b\"\n"
	if got := tw.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
