// Package pipeline sequences render passes, coverage merging, reconstruction
// and partitioning into the program commands.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"critcss/config"
	"critcss/coverage"
	"critcss/critical"
	"critcss/css"
	"critcss/render"
)

// Pipeline processes pages one render pass at a time. Not to be used
// concurrently.
type Pipeline struct {
	cfg     *config.Config
	rpt     *config.Report
	fetcher critical.Fetcher
	log     *zap.Logger

	profiles []render.Profile
	ctrl     *render.Controller
	parser   *css.Parser

	// when set coverage is read from capture store instead of rendering
	store *coverage.Store
	runID string

	now func() time.Time
}

func New(cfg *config.Config, rpt *config.Report, launcher render.Launcher, fetcher critical.Fetcher, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{
		cfg:      cfg,
		rpt:      rpt,
		fetcher:  fetcher,
		log:      log,
		profiles: Profiles(&cfg.Render),
		ctrl:     render.NewController(launcher, Options(&cfg.Render), log),
		parser:   css.NewParser(log).WithMinify(cfg.Output.Minify),
		now:      time.Now,
	}
}

// WithReplay makes pipeline take coverage captured during run from store.
func (p *Pipeline) WithReplay(store *coverage.Store, runID string) *Pipeline {
	p.store, p.runID = store, runID
	return p
}

// Profiles converts configured viewports.
func Profiles(conf *config.RenderConfig) []render.Profile {
	profiles := make([]render.Profile, 0, len(conf.Viewports))
	for _, vp := range conf.Viewports {
		profiles = append(profiles, render.Profile{
			Name:      vp.Name,
			Width:     vp.Width,
			Height:    vp.Height,
			Mobile:    vp.Mobile,
			UserAgent: vp.UserAgent,
		})
	}
	return profiles
}

// Options converts configured render settings.
func Options(conf *config.RenderConfig) render.Options {
	return render.Options{
		Wait: render.WaitOptions{
			Condition:  render.WaitCondition(conf.Wait),
			Timeout:    conf.Timeout,
			IdleWindow: conf.IdleWindow,
		},
		Scroll: conf.Scroll,
		Settle: conf.Settle,
	}
}

// sample returns coverage of page under profile, either rendered or replayed.
func (p *Pipeline) sample(ctx context.Context, page string, profile render.Profile) ([]coverage.Report, error) {
	if p.store == nil {
		return p.ctrl.Capture(ctx, page, profile)
	}
	return p.store.Load(p.runID, page, profile.Name)
}

// forEachPass calls fn for every page under every profile, pages first.
// Failed passes are logged and skipped. Error is returned when ctx is done,
// when the very first session could not be established or when the only page
// could not be processed under any profile.
func (p *Pipeline) forEachPass(ctx context.Context, pages []string, fn func(ctx context.Context, page string, profile render.Profile) error) error {
	attempted := false
	for _, page := range pages {
		var (
			lastErr error
			passed  int
		)
		for _, profile := range p.profiles {
			if err := ctx.Err(); err != nil {
				return err
			}
			err := p.unit(page, profile, func() error {
				return fn(ctx, page, profile)
			})
			if err == nil {
				passed++
				attempted = true
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var (
				se *render.SessionError
				fe fatal
			)
			if errors.As(err, &se) && !attempted {
				return err
			}
			if errors.As(err, &fe) {
				return fe.error
			}
			attempted = true
			lastErr = err
			p.log.Error("Unable to process page, skipping", zap.String("page", page), zap.String("device", profile.Name), zap.Error(err))
		}
		if passed == 0 && len(pages) == 1 && lastErr != nil {
			return fmt.Errorf("unable to process the only page requested: %w", lastErr)
		}
	}
	return nil
}

// fatal marks pass error which stops processing.
type fatal struct {
	error
}

func (f fatal) Unwrap() error {
	return f.error
}

// unit runs single pass recovering from panics.
func (p *Pipeline) unit(page string, profile render.Profile, fn func() error) (rerr error) {
	p.log.Debug("Pass starting", zap.String("page", page), zap.String("device", profile.Name))
	defer func(start time.Time) {
		if r := recover(); r != nil {
			p.log.Error("Pass ended with panic",
				zap.Any("panic", r), zap.String("page", page), zap.String("device", profile.Name),
				zap.Duration("elapsed", time.Since(start)), zap.ByteString("stack", debug.Stack()))
			rerr = fmt.Errorf("pass panic: %v", r)
		} else {
			p.log.Debug("Pass completed", zap.String("page", page), zap.String("device", profile.Name), zap.Duration("elapsed", time.Since(start)))
		}
	}(time.Now())
	return fn()
}

// record samples every page under every profile.
func (p *Pipeline) record(ctx context.Context, pages []string) (*coverage.Recorder, error) {
	rec := coverage.NewRecorder(p.log)
	err := p.forEachPass(ctx, pages, func(ctx context.Context, page string, profile render.Profile) error {
		reports, err := p.sample(ctx, page, profile)
		if err != nil {
			return err
		}
		rec.Add(reports...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	p.rpt.StoreDump("coverage.txt", rec)
	return rec, nil
}

// reconstruct formats used part of the resource, unparsable resources
// degrade to empty text.
func (p *Pipeline) reconstruct(u coverage.UsageSet) string {
	if u.Empty() {
		return ""
	}
	text, err := p.parser.Reconstruct(u.Resource.FileName, u.Resource.Text, u.Used)
	if err != nil {
		p.log.Warn("Unable to reconstruct stylesheet, output will be empty",
			zap.String("resource", u.Resource.FileName), zap.String("url", u.Resource.SourceURL), zap.Error(err))
		return ""
	}
	return text
}
