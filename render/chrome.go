package render

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/css"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"critcss/coverage"
)

const idlePoll = 50 * time.Millisecond

// ChromeLauncher starts headless Chrome (or Chromium) instance per session.
type ChromeLauncher struct {
	ExecPath string
	Headless bool
	User     string
	Password string

	log *zap.Logger
}

func NewChromeLauncher(execPath string, headless bool, log *zap.Logger) *ChromeLauncher {
	if log == nil {
		log = zap.NewNop()
	}
	return &ChromeLauncher{ExecPath: execPath, Headless: headless, log: log.Named("chrome")}
}

// WithBasicAuth makes every request of launched sessions carry credentials.
func (l *ChromeLauncher) WithBasicAuth(user, password string) *ChromeLauncher {
	l.User, l.Password = user, password
	return l
}

func (l *ChromeLauncher) Launch(ctx context.Context) (Session, error) {
	opts := chromedp.DefaultExecAllocatorOptions[:]
	if l.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(l.ExecPath))
	}
	if !l.Headless {
		opts = append(opts, chromedp.Flag("headless", false))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(l.log.Sugar().Debugf),
		chromedp.WithErrorf(l.log.Sugar().Debugf))

	s := &chromeSession{
		ctx: tabCtx,
		cancel: func() {
			cancelTab()
			cancelAlloc()
		},
		inflight: make(map[network.RequestID]struct{}),
		log:      l.log,
	}
	chromedp.ListenTarget(tabCtx, s.onEvent)

	actions := []chromedp.Action{network.Enable(), dom.Enable(), css.Enable()}
	if l.User != "" {
		token := base64.StdEncoding.EncodeToString([]byte(l.User + ":" + l.Password))
		actions = append(actions, network.SetExtraHTTPHeaders(network.Headers{"Authorization": "Basic " + token}))
	}
	if err := chromedp.Run(tabCtx, actions...); err != nil {
		s.cancel()
		return nil, &SessionError{Err: err}
	}
	return s, nil
}

type chromeSession struct {
	ctx    context.Context
	cancel context.CancelFunc
	log    *zap.Logger

	mu           sync.Mutex
	url          string
	sheets       []*css.StyleSheetHeader
	inflight     map[network.RequestID]struct{}
	lastActivity time.Time
}

// onEvent is called on chromedp event loop and must not block.
func (s *chromeSession) onEvent(ev any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch e := ev.(type) {
	case *css.EventStyleSheetAdded:
		if e.Header != nil && e.Header.Origin == css.StyleSheetOriginRegular {
			s.sheets = append(s.sheets, e.Header)
		}
	case *network.EventRequestWillBeSent:
		s.inflight[e.RequestID] = struct{}{}
		s.lastActivity = time.Now()
	case *network.EventLoadingFinished:
		delete(s.inflight, e.RequestID)
		s.lastActivity = time.Now()
	case *network.EventLoadingFailed:
		delete(s.inflight, e.RequestID)
		s.lastActivity = time.Now()
	}
}

// bind returns context of the tab which is also canceled with ctx and
// optionally bounded by timeout.
func (s *chromeSession) bind(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	var (
		tctx   context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		tctx, cancel = context.WithTimeout(s.ctx, timeout)
	} else {
		tctx, cancel = context.WithCancel(s.ctx)
	}
	stop := context.AfterFunc(ctx, cancel)
	return tctx, func() {
		stop()
		cancel()
	}
}

func (s *chromeSession) SetViewport(ctx context.Context, p Profile) error {
	tctx, cancel := s.bind(ctx, 0)
	defer cancel()

	var opts []chromedp.EmulateViewportOption
	if p.Mobile {
		opts = append(opts, chromedp.EmulateMobile, chromedp.EmulateTouch)
	}
	actions := []chromedp.Action{chromedp.EmulateViewport(int64(p.Width), int64(p.Height), opts...)}
	if p.UserAgent != "" {
		actions = append(actions, emulation.SetUserAgentOverride(p.UserAgent))
	}
	return chromedp.Run(tctx, actions...)
}

func (s *chromeSession) StartCoverage(ctx context.Context) error {
	tctx, cancel := s.bind(ctx, 0)
	defer cancel()
	return chromedp.Run(tctx, css.StartRuleUsageTracking())
}

func (s *chromeSession) Navigate(ctx context.Context, pageURL string, wait WaitOptions) error {
	tctx, cancel := s.bind(ctx, wait.Timeout)
	defer cancel()

	s.mu.Lock()
	s.url = pageURL
	s.mu.Unlock()

	if err := chromedp.Run(tctx, chromedp.Navigate(pageURL)); err != nil {
		return err
	}
	if wait.Condition == WaitNetworkIdle {
		return s.waitIdle(tctx, wait.IdleWindow)
	}
	return nil
}

// waitIdle returns once there were no requests in flight for window.
func (s *chromeSession) waitIdle(ctx context.Context, window time.Duration) error {
	t := time.NewTicker(idlePoll)
	defer t.Stop()
	for {
		s.mu.Lock()
		idle := len(s.inflight) == 0 && time.Since(s.lastActivity) >= window
		s.mu.Unlock()
		if idle {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("network did not become idle: %w", ctx.Err())
		case <-t.C:
		}
	}
}

func (s *chromeSession) ScrollToBottom(ctx context.Context) error {
	tctx, cancel := s.bind(ctx, 0)
	defer cancel()
	return chromedp.Run(tctx, chromedp.Evaluate(`window.scrollTo(0, document.body ? document.body.scrollHeight : 0)`, nil))
}

func (s *chromeSession) StopCoverage(ctx context.Context) ([]coverage.Report, error) {
	tctx, cancel := s.bind(ctx, 0)
	defer cancel()

	var usage []*css.RuleUsage
	err := chromedp.Run(tctx, chromedp.ActionFunc(func(ctx context.Context) (err error) {
		usage, err = css.StopRuleUsageTracking().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, err
	}

	used := make(map[css.StyleSheetID][]*css.RuleUsage)
	for _, u := range usage {
		if u.Used {
			used[u.StyleSheetID] = append(used[u.StyleSheetID], u)
		}
	}

	s.mu.Lock()
	sheets, pageURL := s.sheets, s.url
	s.mu.Unlock()

	var (
		reports  []coverage.Report
		nameless int
	)
	for _, h := range sheets {
		var text string
		err := chromedp.Run(tctx, chromedp.ActionFunc(func(ctx context.Context) (err error) {
			text, err = css.GetStyleSheetText(h.StyleSheetID).Do(ctx)
			return err
		}))
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			s.log.Debug("Stylesheet is gone, skipping", zap.String("url", h.SourceURL), zap.Error(err))
			continue
		}

		sourceURL := h.SourceURL
		if sourceURL == "" {
			sourceURL = pageURL
		}
		inline := h.IsInline || h.IsConstructed
		if inline || coverage.ResolveFileName(sourceURL) == "" {
			nameless++
		}

		offsets := newUTF16Index(text)
		rep := coverage.Report{Resource: coverage.NewStyleResource(sourceURL, text, inline, nameless)}
		for _, u := range used[h.StyleSheetID] {
			rep.Ranges = append(rep.Ranges, coverage.Range{
				Start: offsets.byteOffset(int(u.StartOffset)),
				End:   offsets.byteOffset(int(u.EndOffset)),
			})
		}
		reports = append(reports, rep)
	}
	return reports, nil
}

func (s *chromeSession) DocumentHTML(ctx context.Context) (string, error) {
	tctx, cancel := s.bind(ctx, 0)
	defer cancel()

	var doc string
	err := chromedp.Run(tctx, chromedp.Evaluate(`document.documentElement ? document.documentElement.outerHTML : ""`, &doc))
	return doc, err
}

const aboveFoldScript = `(() => {
	const selectors = %s;
	const height = window.innerHeight;
	return selectors.map((sel) => {
		let nodes;
		try {
			nodes = document.querySelectorAll(sel);
		} catch (e) {
			return false;
		}
		for (const el of nodes) {
			const r = el.getBoundingClientRect();
			if (r.top < height && r.bottom >= 0 && (r.width > 0 || r.height > 0)) {
				return true;
			}
		}
		return false;
	});
})()`

func (s *chromeSession) AboveFold(ctx context.Context, selectors []string) ([]bool, error) {
	if len(selectors) == 0 {
		return nil, nil
	}
	tctx, cancel := s.bind(ctx, 0)
	defer cancel()

	arg, err := json.Marshal(selectors)
	if err != nil {
		return nil, err
	}
	var res []bool
	if err := chromedp.Run(tctx, chromedp.Evaluate(fmt.Sprintf(aboveFoldScript, arg), &res)); err != nil {
		return nil, err
	}
	if len(res) != len(selectors) {
		return nil, fmt.Errorf("unexpected number of results: %d, expected %d", len(res), len(selectors))
	}
	return res, nil
}

func (s *chromeSession) Close() error {
	err := chromedp.Cancel(s.ctx)
	s.cancel()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
