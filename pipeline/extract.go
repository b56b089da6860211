package pipeline

import (
	"context"

	"go.uber.org/zap"

	"critcss/output"
)

// Extract writes used and unused parts of every stylesheet per device under
// dst and returns written paths. Stylesheets without coverage produce empty
// used file and unused file equal to the whole text.
func (p *Pipeline) Extract(ctx context.Context, pages []string, dst string) ([]string, error) {
	rec, err := p.record(ctx, pages)
	if err != nil {
		return nil, err
	}

	agg := output.NewAggregator(p.log)
	agg.Transliterate = p.cfg.Output.Transliterate
	for _, device := range rec.Devices() {
		for _, u := range rec.ByDevice(device) {
			used := u.UsedText()
			if p.cfg.Output.ReconstructExtract {
				used = p.reconstruct(u)
			}
			if u.Empty() {
				p.log.Info("Stylesheet has no coverage", zap.String("device", device), zap.String("resource", u.Resource.FileName))
			}
			art := output.Artifact{Device: device, ResourceKey: u.Resource.Key(), FileName: u.Resource.FileName}

			art.Kind, art.Text = output.KindUsed, used
			agg.Add(art)
			art.Kind, art.Text = output.KindUnused, u.UnusedText()
			agg.Add(art)
		}
	}

	paths, err := agg.Flush(dst)
	if err != nil {
		return paths, err
	}
	p.log.Info("Used and unused CSS saved", zap.String("destination", dst), zap.Int("files", len(paths)))
	if err := p.rpt.StoreCopy("output", dst); err != nil {
		p.log.Warn("Unable to store output in report", zap.Error(err))
	}
	return paths, nil
}
