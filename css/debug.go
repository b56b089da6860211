package css

import (
	"critcss/utils/debug"
)

// String returns readable dump of the parsed tree for debug report.
func (s *Sheet) String() string {
	tw := debug.NewTreeWriter().WithLimit(120)
	tw.Line(0, "Sheet %q size[%d] nodes[%d] warnings[%d]", s.Source, len(s.Text), len(s.Nodes), len(s.Warnings))
	Walk(s.Nodes, func(n *Node, depth int) bool {
		switch n.Kind {
		case KindRule:
			tw.Line(depth+1, "Rule %q %d-%d", n.Selector, n.Start, n.End)
		case KindAtRule:
			tw.Line(depth+1, "AtRule @%s %q block[%t] %d-%d", n.Name, n.Params, n.Block, n.Start, n.End)
		case KindDeclaration:
			tw.Line(depth+1, "Declaration %s: %s %d-%d", n.Property, n.Value, n.Start, n.End)
		default:
			tw.TextBlock(depth+1, n.Kind.String(), n.Text)
		}
		return true
	})
	for _, w := range s.Warnings {
		tw.TextBlock(1, "warning", w)
	}
	return tw.String()
}
