package coverage

import (
	"sort"

	"github.com/maruel/natural"

	"critcss/utils/debug"
)

// String returns readable dump of the usage set for debug report.
func (u UsageSet) String() string {
	tw := debug.NewTreeWriter()
	u.dump(tw, 0)
	return tw.String()
}

func (u UsageSet) dump(tw *debug.TreeWriter, depth int) {
	tw.Line(depth, "Resource %q inline[%t] size[%d] used[%d]", u.Resource.FileName, u.Resource.Inline, len(u.Resource.Text), u.UsedBytes())
	tw.TextBlock(depth+1, "url", u.Resource.SourceURL)
	if u.Empty() {
		tw.Line(depth+1, "No coverage")
	}
	for _, r := range u.Used {
		tw.Line(depth+1, "Used %s", r)
	}
	for _, r := range u.Unused() {
		tw.Line(depth+1, "Unused %s", r)
	}
}

// String returns readable dump of everything recorded, devices in natural
// order.
func (r *Recorder) String() string {
	tw := debug.NewTreeWriter()
	devices := r.Devices()
	sort.Sort(natural.StringSlice(devices))
	for _, device := range devices {
		sets := r.ByDevice(device)
		tw.Line(0, "Device %q resources[%d]", device, len(sets))
		for _, u := range sets {
			u.dump(tw, 1)
		}
	}
	return tw.String()
}
