// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-perf.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package perf provides node.go: the call-graph tree node.
//
// Named Node (not "Level", unlike cc-backend's metricstore.Level) since
// there is no separate domain concept it would collide with here. The
// tree-shape and locking discipline are grounded directly on
// pkg/metricstore/level.go: an RWMutex per node, double-checked locking on
// child creation, insertion-order preserved alongside the lookup map.
package perf

import (
	"sync"
	"sync/atomic"
)

// nodeKey identifies a child within its parent's children map. hash alone
// is the key for TREE and FLAT nodes; seq distinguishes TIMELINE children,
// which are never reused (spec.md §4.3: "composite key (hash, ++sequence)").
type nodeKey struct {
	hash uint64
	seq  uint64
}

// Node is one entry in a per-thread call-graph (spec.md §3 "Node"). Parent
// links are plain pointers, never owning: the tree is owned top-down by its
// Graph, so a Node never needs to be reference-counted or freed explicitly
// (spec.md §9 "Back-references without cycles").
type Node struct {
	mu sync.RWMutex

	hash   uint64
	seq    uint64 // non-zero only for TIMELINE nodes; part of the child key
	label  string
	depth  int
	parent *Node

	children   map[nodeKey]*Node
	childOrder []nodeKey // insertion order, for stable reporting

	data Component

	onStack   atomic.Int64 // count of live handles currently referencing this node
	transient atomic.Bool  // has been merged out at least once, may re-enter
	flat      bool
}

func newNode(hash uint64, label string, depth int, parent *Node, data Component, flat bool) *Node {
	return &Node{
		hash:   hash,
		label:  label,
		depth:  depth,
		parent: parent,
		data:   data,
		flat:   flat,
	}
}

// key returns the nodeKey n was created under, so a caller stitching n's
// subtree into another tree (aggregate.go) can reproduce an identical child
// key rather than collapsing distinct TIMELINE siblings together.
func (n *Node) key() nodeKey { return nodeKey{hash: n.hash, seq: n.seq} }

// Hash returns the node's stable label hash.
func (n *Node) Hash() uint64 { return n.hash }

// Label returns the human-readable label associated with this node's hash.
func (n *Node) Label() string { return n.label }

// Depth returns the node's depth; the thread root is depth 0.
func (n *Node) Depth() int { return n.depth }

// Parent returns the node's parent, or nil for a thread root.
func (n *Node) Parent() *Node { return n.parent }

// Data returns the Component aggregate stored at this node.
func (n *Node) Data() Component { return n.data }

// Laps returns the number of completed start/stop cycles recorded at this node.
func (n *Node) Laps() int64 { return n.data.Laps() }

// IsOnStack reports whether at least one scoped handle currently
// references this node (spec.md §3 "is_on_stack").
func (n *Node) IsOnStack() bool { return n.onStack.Load() > 0 }

// IsTransient reports whether this node's data has already been merged out
// at least once (spec.md §3 "is_transient").
func (n *Node) IsTransient() bool { return n.transient.Load() }

// Children returns the node's children in insertion order. The returned
// slice is a snapshot; mutating it does not affect the tree.
func (n *Node) Children() []*Node {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]*Node, 0, len(n.childOrder))
	for _, k := range n.childOrder {
		out = append(out, n.children[k])
	}
	return out
}

// findOrCreateChild looks up key in n's children, creating it with
// newComponent() if absent. Follows the double-checked-locking shape of
// Level.findLevelOrCreate: RLock fast path, Lock + re-check slow path.
func (n *Node) findOrCreateChild(key nodeKey, label string, flat bool, newComponent func() Component) *Node {
	n.mu.RLock()
	if child, ok := n.children[key]; ok {
		n.mu.RUnlock()
		return child
	}
	n.mu.RUnlock()

	n.mu.Lock()
	defer n.mu.Unlock()
	if child, ok := n.children[key]; ok {
		return child
	}

	depth := n.depth + 1
	if flat {
		depth = 1
	}
	child := newNode(key.hash, label, depth, n, newComponent(), flat)
	child.seq = key.seq
	if n.children == nil {
		n.children = make(map[nodeKey]*Node)
	}
	n.children[key] = child
	n.childOrder = append(n.childOrder, key)
	return child
}

func (n *Node) findChild(key nodeKey) (*Node, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	c, ok := n.children[key]
	return c, ok
}

// walk performs a pre-order depth-first traversal, invoking f on every
// node including n itself (the canonical traversal order for reporting,
// spec.md §4.7).
func (n *Node) walk(f func(*Node)) {
	f(n)
	for _, c := range n.Children() {
		c.walk(f)
	}
}
