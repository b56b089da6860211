// Package render drives rendering sessions: applies device profile, navigates
// to a page, waits for it to settle and samples stylesheet usage.
package render

import (
	"context"
	"fmt"
	"time"

	"critcss/coverage"
)

// Profile is a viewport/device the page is rendered under.
type Profile struct {
	Name      string
	Width     int
	Height    int
	Mobile    bool
	UserAgent string
}

func (p Profile) String() string {
	return fmt.Sprintf("%s (%dx%d mobile[%t])", p.Name, p.Width, p.Height, p.Mobile)
}

// WaitCondition tells when navigation is considered complete.
type WaitCondition string

const (
	// WaitLoad waits for the load event only.
	WaitLoad WaitCondition = "load"
	// WaitNetworkIdle additionally waits until there were no requests in
	// flight for IdleWindow.
	WaitNetworkIdle WaitCondition = "networkidle"
)

// WaitOptions bound navigation. Zero Timeout means wait indefinitely.
type WaitOptions struct {
	Condition  WaitCondition
	Timeout    time.Duration
	IdleWindow time.Duration
}

// Session is a single rendering engine tab. Sessions are not reused between
// render passes.
type Session interface {
	SetViewport(ctx context.Context, profile Profile) error
	StartCoverage(ctx context.Context) error
	Navigate(ctx context.Context, pageURL string, wait WaitOptions) error
	ScrollToBottom(ctx context.Context) error
	// StopCoverage returns usage of every stylesheet loaded since coverage
	// was started. Device and PageURL of reports are not set.
	StopCoverage(ctx context.Context) ([]coverage.Report, error)
	// DocumentHTML returns serialized current DOM.
	DocumentHTML(ctx context.Context) (string, error)
	// AboveFold reports for every selector whether any element it matches
	// is rendered within the initial viewport.
	AboveFold(ctx context.Context, selectors []string) ([]bool, error)
	Close() error
}

// Launcher starts rendering sessions.
type Launcher interface {
	Launch(ctx context.Context) (Session, error)
}

// NavigationError is returned when page did not reach wait condition.
type NavigationError struct {
	URL    string
	Device string
	Err    error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("unable to load page %s as %s: %v", e.URL, e.Device, e.Err)
}

func (e *NavigationError) Unwrap() error {
	return e.Err
}

// SessionError is returned when rendering session could not be established.
type SessionError struct {
	Err error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("unable to start rendering session: %v", e.Err)
}

func (e *SessionError) Unwrap() error {
	return e.Err
}
