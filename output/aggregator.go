// Package output lays produced stylesheets out on disk grouped by device and
// originating resource.
package output

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gosimple/slug"
	"go.uber.org/zap"

	"critcss/config"
)

// Kind of produced stylesheet.
type Kind int

const (
	KindCritical Kind = iota
	KindNonCritical
	KindUsed
	KindUnused
)

func (k Kind) String() string {
	switch k {
	case KindCritical:
		return "critical"
	case KindNonCritical:
		return "non-critical"
	case KindUsed:
		return "used"
	case KindUnused:
		return "unused"
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

const criticalName = "critical.css"

// Artifact is a piece of produced stylesheet. Artifacts of the same device,
// kind and resource are concatenated in the order they were added. Critical
// artifacts of a device all go to a single file regardless of resource.
type Artifact struct {
	Device      string
	ResourceKey string
	// FileName is resource name the file is named after.
	FileName string
	Kind     Kind
	Text     string
}

// WriteError is returned when output could not be persisted.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("unable to write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

type fileKey struct {
	device   string
	kind     Kind
	resource string
}

type file struct {
	key  fileKey
	name string
	text strings.Builder
}

// Aggregator buffers artifacts and writes them out.
type Aggregator struct {
	// Transliterate makes file names ASCII only.
	Transliterate bool

	log   *zap.Logger
	order []*file
	files map[fileKey]*file
	// names already taken in device/kind directory
	taken map[fileKey]map[string]string
}

func NewAggregator(log *zap.Logger) *Aggregator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Aggregator{
		log:   log.Named("output"),
		files: make(map[fileKey]*file),
		taken: make(map[fileKey]map[string]string),
	}
}

// Add buffers artifact. Adding empty text still makes file to be written.
func (a *Aggregator) Add(art Artifact) {
	key := fileKey{device: art.Device, kind: art.Kind, resource: art.ResourceKey}
	if art.Kind == KindCritical {
		key.resource = ""
	}
	f, ok := a.files[key]
	if !ok {
		f = &file{key: key, name: a.name(key, art.FileName)}
		a.files[key] = f
		a.order = append(a.order, f)
	}
	f.text.WriteString(art.Text)
}

// name assigns file name unique within device/kind directory. Different
// resources with the same name get numeric suffix.
func (a *Aggregator) name(key fileKey, fileName string) string {
	if key.kind == KindCritical {
		return criticalName
	}

	ext := filepath.Ext(fileName)
	base := strings.TrimSuffix(fileName, ext)
	if a.Transliterate {
		base = slug.Make(base)
	}
	if ext == "" {
		ext = ".css"
	}
	name := config.CleanFileName(base + ext)

	dir := fileKey{device: key.device, kind: key.kind}
	taken, ok := a.taken[dir]
	if !ok {
		taken = make(map[string]string)
		a.taken[dir] = taken
	}
	candidate := name
	for n := 2; ; n++ {
		owner, used := taken[candidate]
		if !used || owner == key.resource {
			break
		}
		candidate = strings.TrimSuffix(name, ext) + "-" + strconv.Itoa(n) + ext
	}
	if candidate != name {
		a.log.Debug("Resource file name collision", zap.String("resource", key.resource), zap.String("name", name), zap.String("renamed", candidate))
	}
	taken[candidate] = key.resource
	return candidate
}

// path returns path of the file relative to output root.
func (f *file) path() string {
	device := config.CleanFileName(f.key.device)
	if f.key.kind == KindCritical {
		return filepath.Join(device, f.name)
	}
	return filepath.Join(device, f.key.kind.String(), f.name)
}

// Flush writes all buffered files under root and returns their paths in the
// order artifacts were first added. Directories are created as necessary.
func (a *Aggregator) Flush(root string) ([]string, error) {
	paths := make([]string, 0, len(a.order))
	for _, f := range a.order {
		path := filepath.Join(root, f.path())
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return paths, &WriteError{Path: filepath.Dir(path), Err: err}
		}
		if err := os.WriteFile(path, []byte(f.text.String()), 0644); err != nil {
			return paths, &WriteError{Path: path, Err: err}
		}
		a.log.Debug("Stylesheet written", zap.String("path", path), zap.Stringer("kind", f.key.kind), zap.Int("size", f.text.Len()))
		paths = append(paths, path)
	}
	return paths, nil
}

// Len returns number of files buffered.
func (a *Aggregator) Len() int {
	return len(a.order)
}
