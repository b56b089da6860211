package critical_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"critcss/coverage"
	"critcss/critical"
	"critcss/css"
	"critcss/render"
	"critcss/render/rendertest"
)

var (
	mobile  = render.Profile{Name: "mobile", Width: 375, Height: 812, Mobile: true}
	desktop = render.Profile{Name: "desktop", Width: 1280, Height: 800}
)

type memFetcher map[string]string

func (m memFetcher) Fetch(_ context.Context, url string) (string, error) {
	if text, ok := m[url]; ok {
		return text, nil
	}
	return "", errors.New("404 Not Found")
}

const baseCSS = ".hero{color:red}.footer{color:blue}@media screen{.hero:hover{margin:0}.footer{margin:1px}}@font-face{font-family:X;src:url(x.woff)}"

func testPages() map[string]*rendertest.Page {
	return map[string]*rendertest.Page{
		"https://example.com/": {
			HTML: `<html><head>
<link rel="stylesheet" href="/css/base.css">
<link rel="stylesheet" href="/css/print.css" media="print">
<style>body{margin:0}</style>
</head><body></body></html>`,
			Sheets: []rendertest.Sheet{
				{URL: "https://example.com/css/base.css", Text: baseCSS},
				{Inline: true, Text: "body{margin:0}"},
			},
			Visible:         []string{".hero"},
			VisibleByDevice: map[string][]string{"desktop": {".hero", ".footer"}},
		},
	}
}

func newGenerator(t *testing.T, l *rendertest.Launcher, f critical.Fetcher) *critical.Generator {
	t.Helper()
	log := zaptest.NewLogger(t)
	return critical.NewGenerator(render.NewController(l, render.Options{Scroll: true}, log), css.NewParser(log), f, log)
}

func TestGenerator_Generate(t *testing.T) {
	l := rendertest.NewLauncher(testPages())
	g := newGenerator(t, l, memFetcher{"https://example.com/css/print.css": "@media print{.hero{display:none}}"})

	results, err := g.Generate(context.Background(), "https://example.com/", mobile)
	require.NoError(t, err)
	require.Len(t, results, 2)

	base := results[0]
	require.NoError(t, base.Err)
	assert.Equal(t, "base.css", base.Resource.FileName)
	assert.Equal(t, "mobile", base.Device)
	assert.Equal(t, "https://example.com/", base.PageURL)
	assert.Equal(t, ".hero {\n  color: red;\n}\n\n@media screen {\n  .hero:hover {\n    margin: 0;\n  }\n}", base.Critical)
	assert.Equal(t, ".footer {\n  color: blue;\n}\n\n@media screen {\n  .footer {\n    margin: 1px;\n  }\n}\n\n@font-face {\n  font-family: X;\n  src: url(x.woff);\n}", base.NonCritical)

	// not loaded by the page, downloaded
	printSheet := results[1]
	require.NoError(t, printSheet.Err)
	assert.Equal(t, "print.css", printSheet.Resource.FileName)
	assert.Equal(t, "@media print {\n  .hero {\n    display: none;\n  }\n}", printSheet.Critical)
	assert.Empty(t, printSheet.NonCritical)

	// single inspection session, page is not scrolled
	assert.Equal(t, []string{"viewport mobile", "start", "navigate https://example.com/", "stop", "abovefold 2", "close"}, l.Events())
	assert.Equal(t, 0, l.Open())
}

func TestGenerator_PerDevice(t *testing.T) {
	l := rendertest.NewLauncher(testPages())
	g := newGenerator(t, l, nil)

	results, err := g.Generate(context.Background(), "https://example.com/", desktop)
	require.NoError(t, err)
	// print.css is skipped without fetcher
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Critical, ".footer {\n  color: blue;\n}")
	assert.Equal(t, "@font-face {\n  font-family: X;\n  src: url(x.woff);\n}", results[0].NonCritical)
}

func TestGenerator_ExplicitStylesheets(t *testing.T) {
	l := rendertest.NewLauncher(testPages())
	g := newGenerator(t, l, memFetcher{"https://cdn.example.com/extra.css": ".hero{padding:0}.other{padding:1px}"}).
		WithStylesheets([]string{"https://cdn.example.com/extra.css", "/css/base.css", "/css/missing.css"})

	results, err := g.Generate(context.Background(), "https://example.com/", mobile)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "https://cdn.example.com/extra.css", results[0].Resource.SourceURL)
	assert.Equal(t, ".hero {\n  padding: 0;\n}", results[0].Critical)
	assert.Equal(t, ".other {\n  padding: 1px;\n}", results[0].NonCritical)
	assert.Equal(t, "https://example.com/css/base.css", results[1].Resource.SourceURL)
}

func TestGenerator_ParseErrorDegrades(t *testing.T) {
	pages := testPages()
	pages["https://example.com/"].Sheets = append(pages["https://example.com/"].Sheets,
		rendertest.Sheet{URL: "https://example.com/css/broken.css", Text: "%PDF-1.4 binary"})
	pages["https://example.com/"].HTML = `<link rel="stylesheet" href="/css/broken.css"><link rel="stylesheet" href="/css/base.css">`

	l := rendertest.NewLauncher(pages)
	g := newGenerator(t, l, nil)

	results, err := g.Generate(context.Background(), "https://example.com/", mobile)
	require.NoError(t, err)
	require.Len(t, results, 2)

	var pe *css.ParseError
	require.ErrorAs(t, results[0].Err, &pe)
	assert.Empty(t, results[0].Critical)
	assert.Empty(t, results[0].NonCritical)

	assert.NoError(t, results[1].Err)
	assert.NotEmpty(t, results[1].Critical)
}

func TestGenerator_NavigationError(t *testing.T) {
	l := rendertest.NewLauncher(testPages())
	g := newGenerator(t, l, nil)

	results, err := g.Generate(context.Background(), "https://example.com/nowhere", mobile)
	assert.Nil(t, results)
	var ne *render.NavigationError
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, "mobile", ne.Device)
	assert.Equal(t, 0, l.Open())
}

func TestGenerator_NoCoverageStillSplits(t *testing.T) {
	pages := testPages()
	pages["https://example.com/"].Sheets[0].Ranges = []coverage.Range{}
	l := rendertest.NewLauncher(pages)

	results, err := newGenerator(t, l, nil).Generate(context.Background(), "https://example.com/", mobile)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Critical, ".hero")
}
