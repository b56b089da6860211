package coverage

import (
	"slices"

	"go.uber.org/zap"
)

// Recorder folds reports of many render passes and pages. Resources are kept
// in discovery order, which is the order output is produced in.
type Recorder struct {
	log       *zap.Logger
	order     []string
	resources map[string]*tracked
	devices   []string
}

type tracked struct {
	resource StyleResource
	reports  []Report
}

func NewRecorder(log *zap.Logger) *Recorder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Recorder{
		log:       log.Named("recorder"),
		resources: make(map[string]*tracked),
	}
}

// Add records reports. Report for already known resource with different text
// is skipped since its ranges index different bytes.
func (r *Recorder) Add(reports ...Report) {
	for _, rep := range reports {
		if !slices.Contains(r.devices, rep.Device) {
			r.devices = append(r.devices, rep.Device)
		}

		key := rep.Resource.Key()
		t, ok := r.resources[key]
		if !ok {
			t = &tracked{resource: rep.Resource}
			r.resources[key] = t
			r.order = append(r.order, key)
		} else if t.resource.Text != rep.Resource.Text {
			r.log.Warn("Stylesheet text changed between captures, ignoring coverage",
				zap.String("resource", rep.Resource.FileName), zap.String("url", rep.Resource.SourceURL),
				zap.String("page", rep.PageURL), zap.String("device", rep.Device))
			continue
		}
		t.reports = append(t.reports, rep)
	}
}

// Devices returns devices in order they were first reported.
func (r *Recorder) Devices() []string {
	return slices.Clone(r.devices)
}

// ByDevice returns usage of every resource seen by device, merged across pages.
func (r *Recorder) ByDevice(device string) []UsageSet {
	var sets []UsageSet
	for _, key := range r.order {
		t := r.resources[key]
		var reports []Report
		for _, rep := range t.reports {
			if rep.Device == device {
				reports = append(reports, rep)
			}
		}
		if len(reports) == 0 {
			continue
		}
		sets = append(sets, Merge(t.resource, reports...))
	}
	return sets
}

// All returns usage of every resource merged across all devices and pages.
func (r *Recorder) All() []UsageSet {
	sets := make([]UsageSet, 0, len(r.order))
	for _, key := range r.order {
		t := r.resources[key]
		sets = append(sets, Merge(t.resource, t.reports...))
	}
	return sets
}

// Len returns number of distinct resources recorded.
func (r *Recorder) Len() int {
	return len(r.order)
}
