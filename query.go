package depot

import (
	"github.com/TheBitDrifter/mask"
)

type Operation int

const (
	OpAnd Operation = iota
	OpOr
	OpNot
)

type compositeNode struct {
	op         Operation
	children   []QueryNode
	components []Component
}

type query struct {
	root QueryNode
}

func newQuery() Query {
	return &query{}
}

func newCompositeNode(op Operation, components []Component) *compositeNode {
	return &compositeNode{
		op:         op,
		children:   make([]QueryNode, 0),
		components: components,
	}
}

// nodeMask builds the mask of the node's components as registered in store. Components the
// store has never seen cannot be in any archetype; missing reports whether there were any.
func (n *compositeNode) nodeMask(store *Store) (m mask.Mask, missing bool) {
	for _, comp := range n.components {
		id, ok := store.components.IDOf(comp.GoType())
		if !ok {
			missing = true
			continue
		}
		m.Mark(uint32(id))
	}
	return m, missing
}

func (n *compositeNode) Evaluate(archetype *Archetype, store *Store) bool {
	nodeMask, missing := n.nodeMask(store)
	archeMask := archetype.Mask()

	switch n.op {
	case OpAnd:
		if missing || !archeMask.ContainsAll(nodeMask) {
			return false
		}
		for _, child := range n.children {
			if !child.Evaluate(archetype, store) {
				return false
			}
		}
		return true

	case OpOr:
		if len(n.components) > 0 && archeMask.ContainsAny(nodeMask) {
			return true
		}
		for _, child := range n.children {
			if child.Evaluate(archetype, store) {
				return true
			}
		}
		return false

	case OpNot:
		for _, child := range n.children {
			if child.Evaluate(archetype, store) {
				return false
			}
		}
		return archeMask.ContainsNone(nodeMask)
	}
	return false
}

func (q *query) And(items ...any) QueryNode {
	return q.node(OpAnd, items)
}

func (q *query) Or(items ...any) QueryNode {
	return q.node(OpOr, items)
}

func (q *query) Not(items ...any) QueryNode {
	return q.node(OpNot, items)
}

// node builds a child node; the first node built becomes the query's root.
func (q *query) node(op Operation, items []any) QueryNode {
	components, children := q.processItems(items...)
	node := newCompositeNode(op, components)
	node.children = children
	if q.root == nil {
		q.root = node
	}
	return node
}

func (q *query) processItems(items ...any) ([]Component, []QueryNode) {
	components := make([]Component, 0)
	children := make([]QueryNode, 0)

	for _, item := range items {
		switch v := item.(type) {
		case Component:
			components = append(components, v)
		case []Component:
			components = append(components, v...)
		case QueryNode:
			children = append(children, v)
		}
	}

	return components, children
}

func (q *query) Evaluate(archetype *Archetype, store *Store) bool {
	if q.root == nil {
		return false
	}
	return q.root.Evaluate(archetype, store)
}

// MatchingArchetypes returns every archetype of store that node matches and that has entities.
func MatchingArchetypes(node QueryNode, store *Store) []*Archetype {
	var matched []*Archetype
	for arch := range store.archetypes.All() {
		if arch.Len() > 0 && node.Evaluate(arch, store) {
			matched = append(matched, arch)
		}
	}
	return matched
}
