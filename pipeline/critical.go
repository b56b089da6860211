package pipeline

import (
	"context"

	"go.uber.org/zap"

	"critcss/critical"
	"critcss/output"
	"critcss/partition"
	"critcss/render"
)

// Critical produces merged critical stylesheet per device and per resource
// non-critical stylesheets under dst and returns written paths. When sheets
// is not empty it replaces stylesheets discovered on pages.
func (p *Pipeline) Critical(ctx context.Context, pages, sheets []string, dst string) ([]string, error) {
	gen := critical.NewGenerator(p.ctrl, p.parser, p.fetcher, p.log)
	if len(sheets) > 0 {
		gen.WithStylesheets(sheets)
	}
	index := partition.NewIndex()
	part := partition.NewPartitioner(index, p.log)
	agg := output.NewAggregator(p.log)
	agg.Transliterate = p.cfg.Output.Transliterate

	// critical file exists for every device even if nothing was produced
	for _, profile := range p.profiles {
		agg.Add(output.Artifact{Device: profile.Name, Kind: output.KindCritical})
	}

	err := p.forEachPass(ctx, pages, func(ctx context.Context, page string, profile render.Profile) error {
		results, err := gen.Generate(ctx, page, profile)
		if err != nil {
			return err
		}
		for _, r := range results {
			art := output.Artifact{Device: r.Device, ResourceKey: r.Resource.Key(), FileName: r.Resource.FileName}
			src := partition.Source{FileName: r.Resource.FileName, PageURL: r.PageURL}
			if r.Err == nil {
				art.Kind, art.Text = output.KindCritical, part.Critical(r.Device, src, r.Critical)
				agg.Add(art)
			}
			art.Kind, art.Text = output.KindNonCritical, ""
			if r.Err == nil {
				art.Text = part.NonCritical(r.Device, r.Resource.Key(), src, r.NonCritical)
			}
			agg.Add(art)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	p.rpt.StoreDump("dedup.txt", index)

	paths, err := agg.Flush(dst)
	if err != nil {
		return paths, err
	}
	p.log.Info("Critical CSS saved", zap.String("destination", dst), zap.Int("files", len(paths)))
	if err := p.rpt.StoreCopy("output", dst); err != nil {
		p.log.Warn("Unable to store output in report", zap.Error(err))
	}
	return paths, nil
}
