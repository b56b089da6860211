package pipeline

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"critcss/coverage"
	"critcss/render"
)

// Capture renders every page under every profile and saves coverage into
// store under runID.
func (p *Pipeline) Capture(ctx context.Context, pages []string, store *coverage.Store, runID string) error {
	if p.store != nil {
		return errors.New("capture cannot replay stored coverage")
	}
	var count int
	err := p.forEachPass(ctx, pages, func(ctx context.Context, page string, profile render.Profile) error {
		reports, err := p.sample(ctx, page, profile)
		if err != nil {
			return err
		}
		if err := store.Save(runID, reports); err != nil {
			return fatal{err}
		}
		count += len(reports)
		return nil
	})
	if err != nil {
		return err
	}
	p.log.Info("Coverage captured", zap.String("capture", runID), zap.Int("pages", len(pages)), zap.Int("reports", count))
	return nil
}
