package partition

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"critcss/css"
)

// Source tells where fragments came from, used to annotate output.
type Source struct {
	FileName string
	PageURL  string
}

// Partitioner emits fragments of critical path results which were not
// emitted before for the same device (critical) or for the same device and
// resource (non-critical).
type Partitioner struct {
	index *Index
	log   *zap.Logger
}

func NewPartitioner(index *Index, log *zap.Logger) *Partitioner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Partitioner{index: index, log: log.Named("partition")}
}

// Critical returns new fragments of text for device annotated with resource
// and page or empty string when there is nothing new.
func (p *Partitioner) Critical(device string, src Source, text string) string {
	fresh := p.fresh(text, func(fp string) bool {
		return p.index.Critical(device, fp)
	})
	p.log.Debug("Critical fragments", zap.String("device", device), zap.String("resource", src.FileName),
		zap.String("page", src.PageURL), zap.Int("new", len(fresh)))
	if len(fresh) == 0 {
		return ""
	}
	return fmt.Sprintf("/* From %s on %s */\n%s\n", src.FileName, src.PageURL, strings.Join(fresh, "\n\n"))
}

// NonCritical returns new fragments of text for resource under device
// annotated with page or empty string when there is nothing new.
func (p *Partitioner) NonCritical(device, resource string, src Source, text string) string {
	fresh := p.fresh(text, func(fp string) bool {
		return p.index.NonCritical(device, resource, fp)
	})
	p.log.Debug("Non-critical fragments", zap.String("device", device), zap.String("resource", src.FileName),
		zap.String("page", src.PageURL), zap.Int("new", len(fresh)))
	if len(fresh) == 0 {
		return ""
	}
	return fmt.Sprintf("/* From %s */\n%s\n", src.PageURL, strings.Join(fresh, "\n\n"))
}

// fresh splits text into top-level fragments and keeps those register
// accepts. Fragments are their own fingerprints.
func (p *Partitioner) fresh(text string, register func(fp string) bool) []string {
	var out []string
	for _, frag := range css.SplitRules(text) {
		if register(frag) {
			out = append(out, frag)
		}
	}
	return out
}
