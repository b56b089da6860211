package critical

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/encoding/ianaindex"
)

const maxStylesheetSize = 32 << 20

// Fetcher retrieves stylesheets the rendered page did not load by itself.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// HTTPFetcher downloads stylesheets, optionally with basic authentication.
type HTTPFetcher struct {
	Client    *http.Client
	User      string
	Password  string
	UserAgent string
	// MaxSize limits stylesheet size, larger ones are refused
	MaxSize int64
}

func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{Client: &http.Client{Timeout: timeout}, MaxSize: maxStylesheetSize}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("bad stylesheet url %q: %w", url, err)
	}
	req.Header.Set("Accept", "text/css,*/*;q=0.1")
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}
	if f.User != "" {
		req.SetBasicAuth(f.User, f.Password)
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("unable to fetch stylesheet %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unable to fetch stylesheet %s: %s", url, resp.Status)
	}
	limit := f.MaxSize
	if limit <= 0 {
		limit = maxStylesheetSize
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return "", fmt.Errorf("unable to read stylesheet %s: %w", url, err)
	}
	if int64(len(data)) > limit {
		return "", fmt.Errorf("stylesheet %s is larger than %d bytes", url, limit)
	}
	return decode(data, resp.Header.Get("Content-Type"))
}

var charsetRule = regexp.MustCompile(`^@charset\s+"([^"]+)"\s*;`)

// decode converts stylesheet to UTF-8. Encoding comes from content type or
// leading @charset rule, UTF-8 is assumed when neither is present.
func decode(data []byte, contentType string) (string, error) {
	var label string
	if _, params, err := mime.ParseMediaType(contentType); err == nil {
		label = params["charset"]
	}
	if label == "" {
		if m := charsetRule.FindSubmatch(data); m != nil {
			label = string(m[1])
		}
	}
	label = strings.ToLower(strings.TrimSpace(label))
	if label == "" || label == "utf-8" || label == "utf8" {
		return string(data), nil
	}

	enc, err := ianaindex.IANA.Encoding(label)
	if err != nil || enc == nil {
		return "", fmt.Errorf("unsupported stylesheet charset %q", label)
	}
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("unable to decode stylesheet from %s: %w", label, err)
	}
	return string(out), nil
}
