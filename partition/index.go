// Package partition splits critical path results into per device critical
// and per resource non-critical fragments, suppressing fragments already
// emitted during the run.
package partition

import (
	"sort"
	"sync"

	"github.com/maruel/natural"

	"critcss/utils/debug"
)

// Index remembers fingerprints of emitted fragments for the lifetime of a
// run. Critical fingerprints are tracked per device, non-critical ones per
// device and resource. Entries are never removed.
type Index struct {
	mu          sync.Mutex
	critical    map[string]map[string]struct{}
	nonCritical map[resourceKey]map[string]struct{}
}

type resourceKey struct {
	device   string
	resource string
}

func NewIndex() *Index {
	return &Index{
		critical:    make(map[string]map[string]struct{}),
		nonCritical: make(map[resourceKey]map[string]struct{}),
	}
}

// Critical registers fingerprint for device, returns false if it was
// already there.
func (x *Index) Critical(device, fingerprint string) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	return register(x.critical, device, fingerprint)
}

// NonCritical registers fingerprint for resource under device, returns false
// if it was already there.
func (x *Index) NonCritical(device, resource, fingerprint string) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	return register(x.nonCritical, resourceKey{device: device, resource: resource}, fingerprint)
}

func register[K comparable](m map[K]map[string]struct{}, key K, fingerprint string) bool {
	seen, ok := m[key]
	if !ok {
		seen = make(map[string]struct{})
		m[key] = seen
	}
	if _, ok := seen[fingerprint]; ok {
		return false
	}
	seen[fingerprint] = struct{}{}
	return true
}

// String returns readable summary of the index for debug report.
func (x *Index) String() string {
	x.mu.Lock()
	defer x.mu.Unlock()

	tw := debug.NewTreeWriter()
	known := make(map[string]bool, len(x.critical))
	for d := range x.critical {
		known[d] = true
	}
	for k := range x.nonCritical {
		known[k.device] = true
	}
	devices := make([]string, 0, len(known))
	for d := range known {
		devices = append(devices, d)
	}
	sort.Sort(natural.StringSlice(devices))

	for _, d := range devices {
		tw.Line(0, "Device %q critical[%d]", d, len(x.critical[d]))
		var resources []string
		for k := range x.nonCritical {
			if k.device == d {
				resources = append(resources, k.resource)
			}
		}
		sort.Sort(natural.StringSlice(resources))
		for _, r := range resources {
			tw.Line(1, "Resource %q non-critical[%d]", r, len(x.nonCritical[resourceKey{device: d, resource: r}]))
		}
	}
	return tw.String()
}
