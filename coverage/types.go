// Package coverage records style usage reported by the renderer and folds it
// into non-overlapping byte ranges per stylesheet.
package coverage

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// Range is a half-open [Start, End) byte range into StyleResource.Text.
type Range struct {
	Start int
	End   int
}

// Len returns number of bytes covered by the range.
func (r Range) Len() int {
	return r.End - r.Start
}

// Valid reports whether range is non-empty and does not start before text.
func (r Range) Valid() bool {
	return r.Start >= 0 && r.End > r.Start
}

// Intersects reports whether range shares at least one byte with [start, end).
func (r Range) Intersects(start, end int) bool {
	return r.Start < end && start < r.End
}

func (r Range) String() string {
	return fmt.Sprintf("[%d,%d)", r.Start, r.End)
}

// StyleResource identifies one stylesheet as seen by the renderer.
type StyleResource struct {
	SourceURL string
	FileName  string
	Inline    bool
	Text      string
}

// NewStyleResource names resource after the last path segment of its URL.
// Inline and nameless stylesheets get synthetic names, ordinal is 1-based
// position of the stylesheet among nameless ones of the same capture.
func NewStyleResource(sourceURL, text string, inline bool, ordinal int) StyleResource {
	res := StyleResource{SourceURL: sourceURL, Inline: inline, Text: text}
	if !inline {
		res.FileName = ResolveFileName(sourceURL)
	}
	if res.FileName == "" {
		res.FileName = InlineName(ordinal)
	}
	return res
}

// Key identifies resource for merging: the same text loaded by different
// passes or pages has the same key.
func (r StyleResource) Key() string {
	if r.Inline || ResolveFileName(r.SourceURL) == "" {
		return r.SourceURL + "#" + r.FileName
	}
	return r.SourceURL
}

// ResolveFileName returns last path segment of the URL without query and
// fragment or empty string when there is none.
func ResolveFileName(sourceURL string) string {
	var p string
	if u, err := url.Parse(sourceURL); err == nil {
		p = u.Path
	} else {
		p, _, _ = strings.Cut(sourceURL, "?")
		p, _, _ = strings.Cut(p, "#")
	}
	if p == "" || strings.HasSuffix(p, "/") {
		return ""
	}
	name := path.Base(p)
	if name == "." || name == "/" {
		return ""
	}
	return name
}

// InlineName returns synthetic file name for n-th nameless stylesheet.
func InlineName(n int) string {
	if n <= 1 {
		return "inline.css"
	}
	return fmt.Sprintf("inline-%d.css", n)
}

// Report is the raw usage of one resource captured during a single render
// pass of a page under a device profile.
type Report struct {
	Resource StyleResource
	Device   string
	PageURL  string
	Ranges   []Range
}
