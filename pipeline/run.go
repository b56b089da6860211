package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"time"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"critcss/coverage"
	"critcss/critical"
	"critcss/render"
	"critcss/state"
)

// RunUsed is "used" command action.
func RunUsed(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	env := state.EnvFromContext(ctx)
	log := env.CommandLog("used")

	pages, dst, err := arguments(cmd, env)
	if err != nil {
		return err
	}
	if len(pages) > 1 {
		log.Warn("Malformed command line, too many pages", zap.Strings("ignoring", pages[1:]))
	}

	p, done, err := prepare(cmd, env, log)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, done())
	}()

	log.Info("Processing starting", zap.String("page", pages[0]), zap.String("filter", cmd.String("css")), zap.String("destination", dst))
	defer func(start time.Time) {
		log.Info("Processing completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	_, err = p.Used(ctx, pages[0], Filter(cmd.String("css")), dst)
	return err
}

// RunExtract is "extract" command action.
func RunExtract(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	env := state.EnvFromContext(ctx)
	log := env.CommandLog("extract")

	pages, dst, err := arguments(cmd, env)
	if err != nil {
		return err
	}
	p, done, err := prepare(cmd, env, log)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, done())
	}()

	log.Info("Processing starting", zap.Strings("pages", pages), zap.String("destination", dst))
	defer func(start time.Time) {
		log.Info("Processing completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	_, err = p.Extract(ctx, pages, dst)
	return err
}

// RunCritical is "critical" command action.
func RunCritical(ctx context.Context, cmd *cli.Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	env := state.EnvFromContext(ctx)
	log := env.CommandLog("critical")

	pages, dst, err := arguments(cmd, env)
	if err != nil {
		return err
	}
	sheets := cmd.StringSlice("css")
	if len(sheets) == 0 {
		sheets = env.Cfg.Stylesheets
	}

	p := New(env.Cfg, env.Rpt, launcher(env, log), fetcher(env), log)

	log.Info("Processing starting", zap.Strings("pages", pages), zap.Strings("stylesheets", sheets), zap.String("destination", dst))
	defer func(start time.Time) {
		log.Info("Processing completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	_, err = p.Critical(ctx, pages, sheets, dst)
	return err
}

// RunCapture is "capture" command action.
func RunCapture(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	env := state.EnvFromContext(ctx)
	log := env.CommandLog("capture")

	pages, _, err := arguments(cmd, env)
	if err != nil {
		return err
	}
	db := cmd.String("to")
	if db == "" {
		return errors.New("no capture store has been specified")
	}
	store, err := coverage.OpenStore(db, log)
	if err != nil {
		return err
	}
	defer func() {
		if er := store.Close(); er != nil {
			err = multierr.Append(err, fmt.Errorf("unable to close capture store: %w", er))
		}
	}()

	log.Info("Processing starting", zap.Strings("pages", pages), zap.String("store", db))
	defer func(start time.Time) {
		log.Info("Processing completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	p := New(env.Cfg, env.Rpt, launcher(env, log), nil, log)
	return p.Capture(ctx, pages, store, env.RunID)
}

// arguments splits command arguments into page URLs and optional trailing
// destination. Configured pages and output directory are used when absent.
func arguments(cmd *cli.Command, env *state.LocalEnv) (pages []string, dst string, err error) {
	args := cmd.Args().Slice()
	if n := len(args); n > 0 && !isPageURL(args[n-1]) {
		dst, args = args[n-1], args[:n-1]
	}
	for _, a := range args {
		if !isPageURL(a) {
			return nil, "", fmt.Errorf("not a page URL: %q", a)
		}
		pages = append(pages, a)
	}
	if len(pages) == 0 {
		pages = env.Cfg.Pages
	}
	if len(pages) == 0 {
		return nil, "", errors.New("no pages have been specified")
	}

	if dst == "" {
		dst = env.Cfg.Output.Directory
	}
	if dst, err = filepath.Abs(dst); err != nil {
		return nil, "", err
	}
	return pages, dst, nil
}

func isPageURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https" || u.Scheme == "file") && (u.Host != "" || u.Scheme == "file")
}

// prepare creates pipeline for commands able to replay coverage from capture
// store. Returned function releases the store.
func prepare(cmd *cli.Command, env *state.LocalEnv, log *zap.Logger) (*Pipeline, func() error, error) {
	p := New(env.Cfg, env.Rpt, launcher(env, log), nil, log)

	db := cmd.String("from")
	if db == "" {
		return p, func() error { return nil }, nil
	}
	store, err := coverage.OpenStore(db, log)
	if err != nil {
		return nil, nil, err
	}
	runID := cmd.String("run")
	if runID == "" {
		if runID, err = store.LatestRun(); err != nil {
			store.Close()
			return nil, nil, fmt.Errorf("unable to replay coverage from %s: %w", db, err)
		}
	}
	log.Info("Replaying captured coverage", zap.String("store", db), zap.String("replay", runID))
	return p.WithReplay(store, runID), func() error {
		if err := store.Close(); err != nil {
			return fmt.Errorf("unable to close capture store: %w", err)
		}
		return nil
	}, nil
}

func launcher(env *state.LocalEnv, log *zap.Logger) render.Launcher {
	conf := &env.Cfg.Render
	l := render.NewChromeLauncher(conf.ExecPath, conf.Headless, log)
	if conf.Auth.User != "" {
		l.WithBasicAuth(conf.Auth.User, conf.Auth.Password.Reveal())
	}
	return l
}

func fetcher(env *state.LocalEnv) critical.Fetcher {
	conf := &env.Cfg.Render
	f := critical.NewHTTPFetcher(conf.Timeout)
	f.User, f.Password = conf.Auth.User, conf.Auth.Password.Reveal()
	return f
}
