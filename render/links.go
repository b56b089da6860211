package render

import (
	"fmt"
	"io"
	"net/url"
	"slices"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

var stylesheetLink = cascadia.MustCompile(`link[rel][href]`)

// StylesheetLinks parses HTML document and returns absolute URLs of linked
// stylesheets, duplicates removed.
func StylesheetLinks(pageURL string, r io.Reader) ([]string, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("bad page url %q: %w", pageURL, err)
	}
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("unable to parse document of %s: %w", pageURL, err)
	}

	if b := cascadia.Query(doc, cascadia.MustCompile(`base[href]`)); b != nil {
		if u, err := base.Parse(attr(b, "href")); err == nil {
			base = u
		}
	}

	var links []string
	for _, n := range cascadia.QueryAll(doc, stylesheetLink) {
		if !isStylesheet(attr(n, "rel")) {
			continue
		}
		href := strings.TrimSpace(attr(n, "href"))
		if href == "" {
			continue
		}
		u, err := base.Parse(href)
		if err != nil {
			continue
		}
		u.Fragment = ""
		if s := u.String(); !slices.Contains(links, s) {
			links = append(links, s)
		}
	}
	return links, nil
}

// isStylesheet reports whether rel attribute lists "stylesheet" and not as
// alternate one.
func isStylesheet(rel string) bool {
	var sheet, alternate bool
	for _, t := range strings.Fields(strings.ToLower(rel)) {
		switch t {
		case "stylesheet":
			sheet = true
		case "alternate":
			alternate = true
		}
	}
	return sheet && !alternate
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}
