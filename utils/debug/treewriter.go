// Package debug has helpers producing readable dumps for debug report.
package debug

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

const indent = "  "

// TreeWriter accumulates indented lines. Text values longer than limit are
// cut, zero limit means no cutting.
type TreeWriter struct {
	w     *strings.Builder
	limit int
}

func NewTreeWriter() *TreeWriter {
	return &TreeWriter{w: &strings.Builder{}}
}

// WithLimit sets maximum number of bytes of text value to be dumped.
func (tw *TreeWriter) WithLimit(limit int) *TreeWriter {
	tw.limit = max(limit, 0)
	return tw
}

func (tw *TreeWriter) String() string {
	return tw.w.String()
}

func (tw *TreeWriter) Line(depth int, format string, args ...any) {
	tw.w.WriteString(strings.Repeat(indent, depth))
	fmt.Fprintf(tw.w, format, args...)
	tw.w.WriteByte('\n')
}

// TextBlock writes quoted value under label, empty value is written as is.
func (tw *TreeWriter) TextBlock(depth int, label, value string) {
	tw.w.WriteString(strings.Repeat(indent, depth))
	tw.w.WriteString(label)
	tw.w.WriteString(": ")
	tw.w.WriteString(tw.encodeText(value))
	tw.w.WriteByte('\n')
}

func (tw *TreeWriter) encodeText(raw string) string {
	if raw == "" {
		return raw
	}
	if tw.limit == 0 || len(raw) <= tw.limit {
		return strconv.Quote(raw)
	}
	cut := tw.limit
	// do not split multibyte sequence
	for cut > 0 && !utf8.RuneStart(raw[cut]) {
		cut--
	}
	return strconv.Quote(raw[:cut]) + fmt.Sprintf("...(+%d bytes)", len(raw)-cut)
}
