// Package tree provides shared utilities for working with course trees.
package tree

import (
	"strings"

	"github.com/tide-ide/tide/pkg/models"
)

// FindByPath resolves a path in a course tree (recursive).
func FindByPath(root *models.Node, path string) *models.Node {
	if root == nil {
		return nil
	}
	if root.Path == path {
		return root
	}
	for _, child := range root.Children {
		if found := FindByPath(child, path); found != nil {
			return found
		}
	}
	return nil
}

// FindInForest resolves a path across several root nodes.
func FindInForest(roots []*models.Node, path string) *models.Node {
	for _, r := range roots {
		if found := FindByPath(r, path); found != nil {
			return found
		}
	}
	return nil
}

// CountNodes counts all nodes in a tree.
func CountNodes(root *models.Node) int {
	if root == nil {
		return 0
	}
	count := 1
	for _, child := range root.Children {
		count += CountNodes(child)
	}
	return count
}

// CountForest counts all nodes below a list of roots.
func CountForest(roots []*models.Node) int {
	n := 0
	for _, r := range roots {
		n += CountNodes(r)
	}
	return n
}

// Files returns every file node below root in depth-first order.
func Files(root *models.Node) []*models.Node {
	var out []*models.Node
	Walk(root, func(n *models.Node) {
		if !n.IsDir() {
			out = append(out, n)
		}
	})
	return out
}

// Walk visits root and all of its descendants, parents before children.
func Walk(root *models.Node, fn func(*models.Node)) {
	if root == nil {
		return
	}
	fn(root)
	for _, child := range root.Children {
		Walk(child, fn)
	}
}

// Render draws a forest like the unix tree command, keeping child order.
// children lists a node's children and label formats its line. branch,
// when non-nil, decorates the connector drawn in front of each child.
func Render[T any](roots []T, children func(T) []T, label func(T) string, branch func(string) string) string {
	if branch == nil {
		branch = func(s string) string { return s }
	}
	var b strings.Builder
	for _, r := range roots {
		b.WriteString(label(r))
		b.WriteString("\n")
		renderChildren(&b, children(r), "", children, label, branch)
	}
	return b.String()
}

func renderChildren[T any](b *strings.Builder, nodes []T, prefix string, children func(T) []T, label func(T) string, branch func(string) string) {
	for i, child := range nodes {
		connector, next := "├── ", "│   "
		if i == len(nodes)-1 {
			connector, next = "└── ", "    "
		}
		b.WriteString(branch(prefix + connector))
		b.WriteString(label(child))
		b.WriteString("\n")
		renderChildren(b, children(child), prefix+next, children, label, branch)
	}
}

// Shape returns a comparable outline of a forest: one line per node with
// depth, kind, label and path. Two rebuilds of an unchanged directory
// produce the same shape.
func Shape(roots []*models.Node) []string {
	var out []string
	var visit func(n *models.Node, depth int)
	visit = func(n *models.Node, depth int) {
		out = append(out, strings.Repeat(" ", depth)+string(n.Kind)+" "+n.Label+" "+n.Path)
		for _, c := range n.Children {
			visit(c, depth+1)
		}
	}
	for _, r := range roots {
		visit(r, 0)
	}
	return out
}
