package parser

import (
	sitter "github.com/tree-sitter/go-tree-sitter"
)

// NodeHandler processes a node for a pattern pass.
// Returns true if the walker should not descend into the node's children.
type NodeHandler func(ctx *WalkContext, node *sitter.Node) bool

// WalkContext carries shared state for handlers of one walk.
type WalkContext struct {
	Source *Source
}

// Dispatcher walks the syntax tree and dispatches node handlers by kind.
type Dispatcher struct {
	handlers map[string]NodeHandler
}

func NewDispatcher(handlers map[string]NodeHandler) *Dispatcher {
	return &Dispatcher{handlers: handlers}
}

func (d *Dispatcher) Walk(ctx *WalkContext, node *sitter.Node) {
	if node == nil {
		return
	}

	stop := false
	if handler, ok := d.handlers[node.Kind()]; ok {
		stop = handler(ctx, node)
	}
	if stop {
		return
	}
	for i := uint(0); i < node.NamedChildCount(); i++ {
		d.Walk(ctx, node.NamedChild(i))
	}
}

// Walk visits node and its named descendants in pre-order. The visitor
// returns false to skip a node's children.
func Walk(node *sitter.Node, visit func(*sitter.Node) bool) {
	if node == nil {
		return
	}
	if !visit(node) {
		return
	}
	for i := uint(0); i < node.NamedChildCount(); i++ {
		Walk(node.NamedChild(i), visit)
	}
}

// FindAll collects every named descendant (including node) of the given kind.
func FindAll(node *sitter.Node, kind string) []*sitter.Node {
	var out []*sitter.Node
	Walk(node, func(n *sitter.Node) bool {
		if n.Kind() == kind {
			out = append(out, n)
		}
		return true
	})
	return out
}
