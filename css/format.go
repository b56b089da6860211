package css

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"critcss/coverage"
)

// layout controls whitespace of serialized nodes.
type layout struct {
	indent string // per nesting level
	open   string // between selector or at-rule head and block
	colon  string // between property and value
	inner  string // between nodes inside block
	outer  string // between top-level nodes
	nl     string // after block opening and before its closing
}

var (
	pretty  = layout{indent: "  ", open: " {", colon: ": ", inner: "\n", outer: "\n\n", nl: "\n"}
	compact = layout{open: "{", colon: ":"}
)

// Format serializes nodes. Rules without valid declarations and at-rule
// blocks with nothing left inside are dropped, at-rule statements are kept
// as "@name params;". Comments are skipped. Minifying parser emits no
// whitespace between nodes.
func (p *Parser) Format(nodes []*Node) string {
	l := pretty
	if p.minify {
		l = compact
	}
	return p.formatList(nodes, 0, l, l.outer)
}

func (p *Parser) formatList(nodes []*Node, depth int, l layout, sep string) string {
	parts := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if s := p.formatNode(n, depth, l); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, sep)
}

func (p *Parser) formatNode(n *Node, depth int, l layout) string {
	indent := strings.Repeat(l.indent, depth)

	switch n.Kind {
	case KindRule:
		body := p.formatList(n.Children, depth+1, l, l.inner)
		if body == "" {
			p.log.Debug("Dropping rule without declarations", zap.String("selector", n.Selector))
			return ""
		}
		return indent + n.Selector + l.open + l.nl + body + l.nl + indent + "}"

	case KindAtRule:
		head := indent + "@" + n.Name
		if n.Params != "" {
			head += " " + n.Params
		}
		if !n.Block {
			return head + ";"
		}
		body := p.formatList(n.Children, depth+1, l, l.inner)
		if body == "" {
			p.log.Debug("Dropping empty at-rule block", zap.String("rule", n.Name), zap.String("params", n.Params))
			return ""
		}
		return head + l.open + l.nl + body + l.nl + indent + "}"

	case KindDeclaration:
		if !ValidDeclaration(n) {
			p.log.Debug("Dropping invalid declaration", zap.String("property", n.Property), zap.String("value", n.Value))
			return ""
		}
		return indent + n.Property + l.colon + n.Value + ";"
	}

	p.log.Debug("Skipping node", zap.Stringer("kind", n.Kind), zap.Int("offset", n.Start))
	return ""
}

// ValidDeclaration reports whether declaration has both property and value.
// "undefined" is what script-generated styles leave for missing values.
func ValidDeclaration(n *Node) bool {
	return n.Property != "" && n.Value != "" && n.Value != "undefined" && n.Property != "undefined"
}

// Retain returns copy of the sheet nodes whose source intersects one of the
// ranges. Containers are kept only when some of their children are.
func (s *Sheet) Retain(ranges []coverage.Range) []*Node {
	return retain(s.Nodes, coverage.Coalesce(ranges))
}

func retain(nodes []*Node, ranges []coverage.Range) []*Node {
	var out []*Node
	for _, n := range nodes {
		if n.Kind == KindComment || !intersectsAny(n, ranges) {
			continue
		}
		c := *n
		if n.Container() {
			if c.Children = retain(n.Children, ranges); len(c.Children) == 0 {
				continue
			}
		}
		out = append(out, &c)
	}
	return out
}

// intersectsAny expects ranges to be sorted and disjoint.
func intersectsAny(n *Node, ranges []coverage.Range) bool {
	i := sort.Search(len(ranges), func(i int) bool { return ranges[i].End > n.Start })
	return i < len(ranges) && ranges[i].Intersects(n.Start, n.End)
}

// Reconstruct parses text and serializes the parts of it covered by ranges.
func (p *Parser) Reconstruct(source, text string, ranges []coverage.Range) (string, error) {
	sheet, err := p.Parse(source, text)
	if err != nil {
		return "", err
	}
	return p.Format(sheet.Retain(ranges)), nil
}
