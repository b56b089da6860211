package css

import (
	"strings"
)

// at-rules whose blocks hold rules applying under a condition
var conditionalBlocks = map[string]bool{
	"media":     true,
	"supports":  true,
	"layer":     true,
	"container": true,
	"document":  true,
}

// SplitRules splits text into top-level statements: each rule or block ends
// with its closing brace, each at-rule statement with semicolon. Strings and
// comments are skipped over. Fragments are trimmed, blank ones dropped.
func SplitRules(text string) []string {
	var (
		out   []string
		depth int
		from  int
	)
	emit := func(to int) {
		if s := strings.TrimSpace(text[from:to]); s != "" {
			out = append(out, s)
		}
		from = to
	}

	for i := 0; i < len(text); i++ {
		switch c := text[i]; c {
		case '"', '\'':
			i = skipString(text, i)
		case '/':
			if strings.HasPrefix(text[i:], "/*") {
				if j := strings.Index(text[i+2:], "*/"); j >= 0 {
					i += j + 3
				} else {
					i = len(text)
				}
			}
		case '{':
			depth++
		case '}':
			if depth > 0 {
				depth--
			}
			if depth == 0 {
				emit(i + 1)
			}
		case ';':
			if depth == 0 {
				emit(i + 1)
			}
		}
	}
	if from < len(text) {
		emit(len(text))
	}
	return out
}

// skipString returns index of the closing quote of string starting at i.
func skipString(text string, i int) int {
	quote := text[i]
	for i++; i < len(text); i++ {
		switch text[i] {
		case '\\':
			i++
		case quote, '\n':
			return i
		}
	}
	return len(text)
}

// Selectors splits selector list on top-level commas.
func Selectors(selector string) []string {
	var (
		out   []string
		depth int
		from  int
	)
	add := func(to int) {
		if s := strings.TrimSpace(selector[from:to]); s != "" {
			out = append(out, s)
		}
		from = to + 1
	}
	for i := 0; i < len(selector); i++ {
		switch selector[i] {
		case '"', '\'':
			i = skipString(selector, i)
		case '(', '[':
			depth++
		case ')', ']':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				add(i)
			}
		}
	}
	if from <= len(selector) {
		add(len(selector))
	}
	return out
}

// Split partitions nodes by predicate evaluated on style rules. Conditional
// at-rule blocks are split recursively, the parts of each keep a copy of the
// enclosing block. "@charset" goes with matched nodes, every other at-rule
// with the rest. Comments are dropped.
func Split(nodes []*Node, match func(rule *Node) bool) (matched, rest []*Node) {
	for _, n := range nodes {
		switch {
		case n.Kind == KindRule:
			if match(n) {
				matched = append(matched, n)
			} else {
				rest = append(rest, n)
			}
		case n.Kind == KindAtRule && n.Block && conditionalBlocks[unprefixed(n.Name)]:
			in, out := Split(n.Children, match)
			if len(in) > 0 {
				c := *n
				c.Children = in
				matched = append(matched, &c)
			}
			if len(out) > 0 {
				c := *n
				c.Children = out
				rest = append(rest, &c)
			}
		case n.Kind == KindAtRule && n.Name == "charset":
			matched = append(matched, n)
		case n.Kind == KindComment:
		default:
			rest = append(rest, n)
		}
	}
	return matched, rest
}

// StyleRules returns style rules of nodes including those nested in
// conditional at-rule blocks.
func StyleRules(nodes []*Node) []*Node {
	var rules []*Node
	Walk(nodes, func(n *Node, _ int) bool {
		switch {
		case n.Kind == KindRule:
			rules = append(rules, n)
		case n.Kind == KindAtRule && n.Block:
			return conditionalBlocks[unprefixed(n.Name)]
		}
		return false
	})
	return rules
}
