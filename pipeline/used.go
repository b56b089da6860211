package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"critcss/output"
)

// Used writes used part of stylesheets matching filter, merged across all
// profiles, into single timestamped file in dst and returns its path.
func (p *Pipeline) Used(ctx context.Context, page string, filter Filter, dst string) (string, error) {
	if err := filter.Validate(); err != nil {
		return "", err
	}
	rec, err := p.record(ctx, []string{page})
	if err != nil {
		return "", err
	}

	var (
		parts     []string
		matched   int
		available []string
	)
	for _, u := range rec.All() {
		if !filter.Match(u.Resource) {
			available = append(available, u.Resource.SourceURL)
			continue
		}
		matched++
		if u.Empty() {
			p.log.Warn("No used CSS found", zap.String("resource", u.Resource.FileName), zap.String("page", page))
			continue
		}
		if text := p.reconstruct(u); text != "" {
			parts = append(parts, text)
		}
	}
	if matched == 0 {
		p.log.Warn("Stylesheet not found on page", zap.String("filter", string(filter)), zap.String("page", page), zap.Strings("available", available))
	}

	name, err := expandUsedName(p.cfg.Output.UsedName, filter, p.now())
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dst, 0755); err != nil {
		return "", &output.WriteError{Path: dst, Err: err}
	}
	path := filepath.Join(dst, name)
	text := strings.Join(parts, "\n\n")
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return "", &output.WriteError{Path: path, Err: err}
	}
	p.log.Info("Used CSS saved", zap.String("file", path), zap.Int("stylesheets", matched), zap.Int("size", len(text)))
	p.rpt.Store("output/"+name, path)
	return path, nil
}
