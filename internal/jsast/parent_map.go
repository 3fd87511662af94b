package jsast

import (
	sitter "github.com/tree-sitter/go-tree-sitter"
)

// ParentMap is a derived index from node identity to the node's parent,
// filled during a single top-down walk. It never owns the nodes.
type ParentMap map[uintptr]*sitter.Node

// NewParentMap creates an empty parent index
func NewParentMap() ParentMap {
	return make(ParentMap)
}

// Set records parent as the parent of node. A nil parent is ignored.
func (pm ParentMap) Set(node, parent *sitter.Node) {
	if node == nil || parent == nil {
		return
	}
	pm[node.Id()] = parent
}

// Parent returns the recorded parent of node, or nil
func (pm ParentMap) Parent(node *sitter.Node) *sitter.Node {
	if node == nil {
		return nil
	}
	return pm[node.Id()]
}

// Ancestor walks upward from node (exclusive) and returns the first
// ancestor whose kind is one of kinds.
func (pm ParentMap) Ancestor(node *sitter.Node, kinds ...string) *sitter.Node {
	for cur := pm.Parent(node); cur != nil; cur = pm.Parent(cur) {
		if hasKind(cur, kinds) {
			return cur
		}
	}
	return nil
}
