package pipeline

import (
	"bytes"
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	sprig "github.com/go-task/slim-sprig/v3"
	"github.com/gosimple/slug"

	"critcss/config"
	"critcss/coverage"
)

// Filter selects stylesheets by name. Patterns with glob meta characters are
// matched against file name and URL path, anything else is a substring of
// the URL. Empty filter selects everything.
type Filter string

// Validate checks glob syntax.
func (f Filter) Validate() error {
	if f.glob() && !doublestar.ValidatePattern(string(f)) {
		return fmt.Errorf("bad stylesheet filter pattern %q", string(f))
	}
	return nil
}

func (f Filter) glob() bool {
	return strings.ContainsAny(string(f), "*?[{")
}

func (f Filter) Match(res coverage.StyleResource) bool {
	if f == "" {
		return true
	}
	if !f.glob() {
		return strings.Contains(res.SourceURL, string(f)) || res.FileName == string(f)
	}
	if ok, _ := doublestar.Match(string(f), res.FileName); ok {
		return true
	}
	p := res.SourceURL
	if u, err := url.Parse(res.SourceURL); err == nil {
		p = u.Path
	}
	ok, _ := doublestar.Match(strings.TrimPrefix(string(f), "/"), strings.TrimPrefix(path.Clean(p), "/"))
	return ok
}

// NameValues are available to output name template.
type NameValues struct {
	Context string
	// Filter is file system friendly form of the stylesheet filter.
	Filter string
	// Stamp is unix time in milliseconds.
	Stamp string
}

func expandUsedName(field string, filter Filter, now time.Time) (string, error) {
	tmpl, err := template.New(string(config.UsedNameTemplateFieldName)).Funcs(sprig.FuncMap()).Parse(field)
	if err != nil {
		return "", fmt.Errorf("unable to parse template field %s: %w", config.UsedNameTemplateFieldName, err)
	}

	values := NameValues{
		Context: string(config.UsedNameTemplateFieldName),
		Filter:  slug.Make(string(filter)),
		Stamp:   strconv.FormatInt(now.UnixMilli(), 10),
	}
	if values.Filter == "" {
		values.Filter = "all"
	}

	buf := new(bytes.Buffer)
	if err := tmpl.Execute(buf, values); err != nil {
		return "", err
	}
	name := config.CleanFileName(strings.TrimSpace(buf.String()))
	if path.Ext(name) == "" {
		name += ".css"
	}
	return name, nil
}
