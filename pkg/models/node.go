// Package models contains the data types shared by the tree builder, the
// metadata store and the HTTP/CLI surfaces.
package models

// NodeKind distinguishes files from directories in the course tree.
type NodeKind string

const (
	KindFile NodeKind = "file"
	KindDir  NodeKind = "dir"
)

// Collapsible mirrors the expand state a tree widget should use for a node.
type Collapsible string

const (
	CollapsibleNone     Collapsible = "none"
	CollapsibleExpanded Collapsible = "expanded"
)

// Node is one file or directory of the in-memory course tree.
// Path is absolute and identifies the node within a tree.
type Node struct {
	Label    string   `json:"label" yaml:"label"`
	Path     string   `json:"path" yaml:"path"`
	Kind     NodeKind `json:"kind" yaml:"kind"`
	Children []*Node  `json:"children,omitempty" yaml:"children,omitempty"`
}

// NewDir creates a directory node.
func NewDir(label, path string) *Node {
	return &Node{Label: label, Path: path, Kind: KindDir}
}

// NewFile creates a file node.
func NewFile(label, path string) *Node {
	return &Node{Label: label, Path: path, Kind: KindFile}
}

// IsDir reports whether the node is a directory.
func (n *Node) IsDir() bool {
	return n != nil && n.Kind == KindDir
}

// AddChild appends child to a directory node. Files never get children.
func (n *Node) AddChild(child *Node) {
	if !n.IsDir() {
		return
	}
	n.Children = append(n.Children, child)
}

// Collapsible derives the expand state from the node kind.
func (n *Node) Collapsible() Collapsible {
	if n.IsDir() {
		return CollapsibleExpanded
	}
	return CollapsibleNone
}
