// Package rendertest provides in-memory rendering sessions for tests.
package rendertest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"critcss/coverage"
	"critcss/render"
)

// Sheet is stylesheet served by fake page.
type Sheet struct {
	URL    string
	Inline bool
	Text   string
	// Ranges used under any device unless ByDevice has entry for it.
	Ranges   []coverage.Range
	ByDevice map[string][]coverage.Range
}

// Page is fake document.
type Page struct {
	HTML   string
	Sheets []Sheet
	// Visible lists selectors matching elements in the initial viewport,
	// per device when ByDevice has entry for it.
	Visible         []string
	VisibleByDevice map[string][]string
	NavErr          error
}

// Launcher serves pages from memory and keeps track of sessions.
type Launcher struct {
	Pages     map[string]*Page
	LaunchErr error
	CloseErr  error

	mu       sync.Mutex
	launched int
	open     int
	events   []string
}

func NewLauncher(pages map[string]*Page) *Launcher {
	return &Launcher{Pages: pages}
}

func (l *Launcher) Launch(_ context.Context) (render.Session, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.LaunchErr != nil {
		return nil, l.LaunchErr
	}
	l.launched++
	l.open++
	return &session{l: l}, nil
}

// Launched returns number of sessions started.
func (l *Launcher) Launched() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.launched
}

// Open returns number of sessions not closed yet.
func (l *Launcher) Open() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.open
}

// Events returns calls made on sessions in order.
func (l *Launcher) Events() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

func (l *Launcher) record(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, fmt.Sprintf(format, args...))
}

type session struct {
	l        *Launcher
	profile  render.Profile
	page     *Page
	url      string
	tracking bool
	closed   bool
}

func (s *session) SetViewport(_ context.Context, p render.Profile) error {
	s.profile = p
	s.l.record("viewport %s", p.Name)
	return nil
}

func (s *session) StartCoverage(_ context.Context) error {
	s.tracking = true
	s.l.record("start")
	return nil
}

func (s *session) Navigate(ctx context.Context, pageURL string, _ render.WaitOptions) error {
	s.l.record("navigate %s", pageURL)
	if err := ctx.Err(); err != nil {
		return err
	}
	page, ok := s.l.Pages[pageURL]
	if !ok {
		return errors.New("net::ERR_NAME_NOT_RESOLVED")
	}
	if page.NavErr != nil {
		return page.NavErr
	}
	s.page, s.url = page, pageURL
	return nil
}

func (s *session) ScrollToBottom(_ context.Context) error {
	s.l.record("scroll")
	return nil
}

func (s *session) StopCoverage(_ context.Context) ([]coverage.Report, error) {
	s.l.record("stop")
	if !s.tracking {
		return nil, errors.New("coverage was not started")
	}
	s.tracking = false

	var (
		reports  []coverage.Report
		nameless int
	)
	for _, sh := range s.page.Sheets {
		src := sh.URL
		if src == "" {
			src = s.url
		}
		if sh.Inline || coverage.ResolveFileName(src) == "" {
			nameless++
		}
		ranges := sh.Ranges
		if r, ok := sh.ByDevice[s.profile.Name]; ok {
			ranges = r
		}
		reports = append(reports, coverage.Report{
			Resource: coverage.NewStyleResource(src, sh.Text, sh.Inline, nameless),
			Ranges:   append([]coverage.Range(nil), ranges...),
		})
	}
	return reports, nil
}

func (s *session) DocumentHTML(_ context.Context) (string, error) {
	return s.page.HTML, nil
}

func (s *session) AboveFold(_ context.Context, selectors []string) ([]bool, error) {
	s.l.record("abovefold %d", len(selectors))
	visible := s.page.Visible
	if v, ok := s.page.VisibleByDevice[s.profile.Name]; ok {
		visible = v
	}
	res := make([]bool, len(selectors))
	for i, sel := range selectors {
		for _, v := range visible {
			if v == sel {
				res[i] = true
				break
			}
		}
	}
	return res, nil
}

func (s *session) Close() error {
	s.l.mu.Lock()
	defer s.l.mu.Unlock()
	if s.closed {
		return errors.New("session closed twice")
	}
	s.closed = true
	s.l.open--
	s.l.events = append(s.l.events, "close")
	return s.l.CloseErr
}
