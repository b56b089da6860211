// Package critical splits stylesheets of a rendered page into the part needed
// to paint initial viewport and the rest of them.
package critical

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"critcss/coverage"
	"critcss/css"
	"critcss/render"
)

// Result is critical path split of one stylesheet for page rendered under
// device. Err is set when stylesheet could not be processed, both texts are
// empty then.
type Result struct {
	Resource    coverage.StyleResource
	Device      string
	PageURL     string
	Critical    string
	NonCritical string
	Err         error
}

// Generator produces critical path results using one inspection session per
// page and device.
type Generator struct {
	ctrl    *render.Controller
	parser  *css.Parser
	fetcher Fetcher
	sheets  []string
	log     *zap.Logger
}

func NewGenerator(ctrl *render.Controller, parser *css.Parser, fetcher Fetcher, log *zap.Logger) *Generator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Generator{ctrl: ctrl, parser: parser, fetcher: fetcher, log: log.Named("critical")}
}

// WithStylesheets replaces discovery of linked stylesheets with explicit
// list. Relative URLs are resolved against the page.
func (g *Generator) WithStylesheets(urls []string) *Generator {
	g.sheets = append([]string(nil), urls...)
	return g
}

// Generate renders page under profile and returns one result per targeted
// stylesheet in discovery (or listed) order.
func (g *Generator) Generate(ctx context.Context, pageURL string, profile render.Profile) ([]Result, error) {
	var results []Result
	err := g.ctrl.Inspect(ctx, pageURL, profile, func(ctx context.Context, s render.Session, reports []coverage.Report) error {
		resources, err := g.targets(ctx, s, pageURL, reports)
		if err != nil {
			return err
		}
		results, err = g.split(ctx, s, resources, pageURL, profile.Name)
		return err
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// targets returns stylesheets to split. Sheets the page did not load are
// downloaded.
func (g *Generator) targets(ctx context.Context, s render.Session, pageURL string, reports []coverage.Report) ([]coverage.StyleResource, error) {
	urls := g.sheets
	if len(urls) == 0 {
		doc, err := s.DocumentHTML(ctx)
		if err != nil {
			return nil, fmt.Errorf("unable to get document of %s: %w", pageURL, err)
		}
		if urls, err = render.StylesheetLinks(pageURL, strings.NewReader(doc)); err != nil {
			return nil, err
		}
		if len(urls) == 0 {
			g.log.Warn("Page does not link any stylesheets", zap.String("page", pageURL))
		}
	} else {
		urls = resolve(pageURL, urls)
	}

	loaded := make(map[string]coverage.StyleResource, len(reports))
	for _, rep := range reports {
		if !rep.Resource.Inline {
			loaded[rep.Resource.SourceURL] = rep.Resource
		}
	}

	resources := make([]coverage.StyleResource, 0, len(urls))
	for _, u := range urls {
		if res, ok := loaded[u]; ok {
			resources = append(resources, res)
			continue
		}
		if g.fetcher == nil {
			g.log.Warn("Stylesheet was not loaded by page", zap.String("stylesheet", u), zap.String("page", pageURL))
			continue
		}
		text, err := g.fetcher.Fetch(ctx, u)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			g.log.Warn("Unable to get stylesheet, skipping", zap.String("stylesheet", u), zap.String("page", pageURL), zap.Error(err))
			continue
		}
		g.log.Debug("Stylesheet fetched", zap.String("stylesheet", u), zap.Int("size", len(text)))
		resources = append(resources, coverage.NewStyleResource(u, text, false, len(resources)+1))
	}
	return resources, nil
}

type parsed struct {
	res   coverage.StyleResource
	sheet *css.Sheet
	err   error
	// indexes into selector list for every style rule
	rules map[*css.Node][]int
}

// split asks session which selectors of all targeted stylesheets match
// elements in the initial viewport and separates rules accordingly.
func (g *Generator) split(ctx context.Context, s render.Session, resources []coverage.StyleResource, pageURL, device string) ([]Result, error) {
	var (
		selectors []string
		known     = make(map[string]int)
		sheets    = make([]parsed, 0, len(resources))
	)
	for _, res := range resources {
		p := parsed{res: res}
		p.sheet, p.err = g.parser.Parse(res.FileName, res.Text)
		if p.err == nil {
			p.rules = make(map[*css.Node][]int)
			for _, rule := range css.StyleRules(p.sheet.Nodes) {
				for _, sel := range css.Selectors(rule.Selector) {
					m := Matchable(sel)
					if m == "" {
						continue
					}
					i, ok := known[m]
					if !ok {
						i = len(selectors)
						known[m] = i
						selectors = append(selectors, m)
					}
					p.rules[rule] = append(p.rules[rule], i)
				}
			}
		}
		sheets = append(sheets, p)
	}

	var visible []bool
	if len(selectors) > 0 {
		var err error
		if visible, err = s.AboveFold(ctx, selectors); err != nil {
			return nil, fmt.Errorf("unable to evaluate selectors on %s as %s: %w", pageURL, device, err)
		}
		if len(visible) != len(selectors) {
			return nil, fmt.Errorf("unexpected number of selector results on %s as %s: %d instead of %d", pageURL, device, len(visible), len(selectors))
		}
	}

	results := make([]Result, 0, len(sheets))
	for _, p := range sheets {
		r := Result{Resource: p.res, Device: device, PageURL: pageURL, Err: p.err}
		if p.err != nil {
			var pe *css.ParseError
			if !errors.As(p.err, &pe) {
				return nil, p.err
			}
			g.log.Warn("Unable to parse stylesheet, output will be empty",
				zap.String("resource", p.res.FileName), zap.String("page", pageURL), zap.String("device", device), zap.Error(p.err))
			results = append(results, r)
			continue
		}
		critical, rest := css.Split(p.sheet.Nodes, func(rule *css.Node) bool {
			for _, i := range p.rules[rule] {
				if visible[i] {
					return true
				}
			}
			return false
		})
		r.Critical = g.parser.Format(critical)
		r.NonCritical = g.parser.Format(rest)
		g.log.Debug("Critical path split",
			zap.String("resource", p.res.FileName), zap.String("page", pageURL), zap.String("device", device),
			zap.Int("critical", len(r.Critical)), zap.Int("non-critical", len(r.NonCritical)))
		results = append(results, r)
	}
	return results, nil
}

func resolve(pageURL string, urls []string) []string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return urls
	}
	out := make([]string, 0, len(urls))
	for _, s := range urls {
		if u, err := base.Parse(strings.TrimSpace(s)); err == nil {
			u.Fragment = ""
			s = u.String()
		}
		out = append(out, s)
	}
	return out
}
