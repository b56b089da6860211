package render

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"critcss/coverage"
)

// Options control how page is brought to the sampled state.
type Options struct {
	Wait   WaitOptions
	Scroll bool
	Settle time.Duration
}

// Controller runs render passes one at a time, each in its own session.
type Controller struct {
	launcher Launcher
	opts     Options
	log      *zap.Logger
}

func NewController(launcher Launcher, opts Options, log *zap.Logger) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{launcher: launcher, opts: opts, log: log.Named("render")}
}

// Capture renders page under profile and returns usage of every stylesheet
// the page loaded. Reports are returned in stylesheet discovery order.
func (c *Controller) Capture(ctx context.Context, pageURL string, profile Profile) ([]coverage.Report, error) {
	var reports []coverage.Report
	err := c.run(ctx, pageURL, profile, visitCapture, func(ctx context.Context, s Session) (err error) {
		reports, err = collect(ctx, s, pageURL, profile)
		return err
	})
	if err != nil {
		return nil, err
	}
	c.log.Debug("Coverage captured", zap.String("page", pageURL), zap.String("device", profile.Name), zap.Int("stylesheets", len(reports)))
	return reports, nil
}

// Inspect renders page under profile without scrolling and calls fn with
// the live session and usage of every stylesheet the page loaded.
func (c *Controller) Inspect(ctx context.Context, pageURL string, profile Profile, fn func(ctx context.Context, s Session, reports []coverage.Report) error) error {
	return c.run(ctx, pageURL, profile, visitInspect, func(ctx context.Context, s Session) error {
		reports, err := collect(ctx, s, pageURL, profile)
		if err != nil {
			return err
		}
		return fn(ctx, s, reports)
	})
}

func collect(ctx context.Context, s Session, pageURL string, profile Profile) ([]coverage.Report, error) {
	reports, err := s.StopCoverage(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to collect coverage of %s as %s: %w", pageURL, profile.Name, err)
	}
	for i := range reports {
		reports[i].Device = profile.Name
		reports[i].PageURL = pageURL
	}
	return reports, nil
}

type visitMode int

const (
	visitCapture visitMode = iota
	visitInspect
)

func (c *Controller) run(ctx context.Context, pageURL string, profile Profile, mode visitMode, fn func(ctx context.Context, s Session) error) (err error) {
	start := time.Now()

	s, err := c.launcher.Launch(ctx)
	if err != nil {
		var se *SessionError
		if errors.As(err, &se) {
			return err
		}
		return &SessionError{Err: err}
	}
	defer func() {
		if cerr := s.Close(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("unable to close rendering session: %w", cerr))
		}
		c.log.Debug("Render pass done", zap.String("page", pageURL), zap.String("device", profile.Name), zap.Duration("elapsed", time.Since(start)), zap.Error(err))
	}()

	if err := s.SetViewport(ctx, profile); err != nil {
		return &SessionError{Err: fmt.Errorf("unable to apply profile %s: %w", profile, err)}
	}
	if err := s.StartCoverage(ctx); err != nil {
		return &SessionError{Err: fmt.Errorf("unable to start coverage: %w", err)}
	}
	if err := s.Navigate(ctx, pageURL, c.opts.Wait); err != nil {
		return &NavigationError{URL: pageURL, Device: profile.Name, Err: err}
	}
	// inspected pages stay at the initial viewport
	if c.opts.Scroll && mode == visitCapture {
		if err := s.ScrollToBottom(ctx); err != nil {
			c.log.Warn("Unable to scroll page", zap.String("page", pageURL), zap.String("device", profile.Name), zap.Error(err))
		}
	}
	if err := sleep(ctx, c.opts.Settle); err != nil {
		return err
	}
	return fn(ctx, s)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
