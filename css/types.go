// Package css parses stylesheets into a span-annotated node tree, filters the
// tree by retained byte ranges and serializes it back into canonical text.
package css

import (
	"fmt"
)

// Kind is a CSS node variant.
type Kind int

const (
	KindRule Kind = iota
	KindAtRule
	KindDeclaration
	KindComment
)

func (k Kind) String() string {
	switch k {
	case KindRule:
		return "rule"
	case KindAtRule:
		return "at-rule"
	case KindDeclaration:
		return "declaration"
	case KindComment:
		return "comment"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Node is a single element of parsed stylesheet. Start and End are half-open
// byte offsets of the node source in the parsed text.
type Node struct {
	Kind Kind

	// KindRule
	Selector string
	// KindAtRule: name without "@", lowercased. Block is set when at-rule
	// had a body, even an empty one.
	Name   string
	Params string
	Block  bool
	// KindDeclaration
	Property string
	Value    string
	// KindComment
	Text string

	Children []*Node

	Start int
	End   int
}

// Container reports whether node may hold children.
func (n *Node) Container() bool {
	return n.Kind == KindRule || n.Kind == KindAtRule && n.Block
}

// Clone returns deep copy of the node.
func (n *Node) Clone() *Node {
	c := *n
	c.Children = cloneNodes(n.Children)
	return &c
}

func cloneNodes(nodes []*Node) []*Node {
	if nodes == nil {
		return nil
	}
	out := make([]*Node, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Clone())
	}
	return out
}

// Sheet is parsed stylesheet.
type Sheet struct {
	Source   string
	Text     string
	Nodes    []*Node
	Warnings []string
}

// Walk calls fn for every node in document order, descending into children
// when fn returns true.
func Walk(nodes []*Node, fn func(n *Node, depth int) bool) {
	walk(nodes, 0, fn)
}

func walk(nodes []*Node, depth int, fn func(n *Node, depth int) bool) {
	for _, n := range nodes {
		if fn(n, depth) {
			walk(n.Children, depth+1, fn)
		}
	}
}

// ParseError is returned when text could not be tokenized at all.
type ParseError struct {
	Source string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unable to parse stylesheet %q: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
