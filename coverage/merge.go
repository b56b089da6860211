package coverage

import (
	"slices"
	"strings"
)

// UsageSet is the coalesced usage of a single resource: sorted, pairwise
// non-overlapping, non-touching ranges.
type UsageSet struct {
	Resource StyleResource
	Used     []Range
}

// Merge collects ranges of all reports for the resource and coalesces them.
// Reports of other resources or with different text are ignored. Ranges are
// clamped to the resource text, invalid ones are dropped.
func Merge(resource StyleResource, reports ...Report) UsageSet {
	var all []Range
	for _, rep := range reports {
		if rep.Resource.Key() != resource.Key() || rep.Resource.Text != resource.Text {
			continue
		}
		for _, r := range rep.Ranges {
			r.End = min(r.End, len(resource.Text))
			if r.Valid() {
				all = append(all, r)
			}
		}
	}
	return UsageSet{Resource: resource, Used: Coalesce(all)}
}

// Coalesce sorts ranges by start and joins overlapping or touching ones.
// Input slice is not modified.
func Coalesce(ranges []Range) []Range {
	if len(ranges) == 0 {
		return nil
	}
	sorted := slices.Clone(ranges)
	slices.SortFunc(sorted, func(a, b Range) int {
		if a.Start != b.Start {
			return a.Start - b.Start
		}
		return a.End - b.End
	})

	out := make([]Range, 0, len(sorted))
	cur := sorted[0]
	for _, r := range sorted[1:] {
		if r.Start <= cur.End {
			cur.End = max(cur.End, r.End)
			continue
		}
		out = append(out, cur)
		cur = r
	}
	return append(out, cur)
}

// Empty reports whether resource was loaded but nothing in it matched.
func (u UsageSet) Empty() bool {
	return len(u.Used) == 0
}

// Unused returns gaps between used ranges and the full text span.
func (u UsageSet) Unused() []Range {
	var (
		gaps   []Range
		cursor int
	)
	for _, r := range u.Used {
		if r.Start > cursor {
			gaps = append(gaps, Range{Start: cursor, End: r.Start})
		}
		cursor = r.End
	}
	if cursor < len(u.Resource.Text) {
		gaps = append(gaps, Range{Start: cursor, End: len(u.Resource.Text)})
	}
	return gaps
}

// UsedBytes returns total size of used ranges.
func (u UsageSet) UsedBytes() int {
	var n int
	for _, r := range u.Used {
		n += r.Len()
	}
	return n
}

// UsedText returns used slices of the text separated by new lines.
func (u UsageSet) UsedText() string {
	parts := make([]string, 0, len(u.Used))
	for _, r := range u.Used {
		parts = append(parts, u.Resource.Text[r.Start:r.End])
	}
	return strings.Join(parts, "\n")
}

// UnusedText returns text with all used ranges removed.
func (u UsageSet) UnusedText() string {
	var sb strings.Builder
	for _, r := range u.Unused() {
		sb.WriteString(u.Resource.Text[r.Start:r.End])
	}
	return sb.String()
}
