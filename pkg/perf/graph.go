// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-perf.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package perf provides graph.go: the per-thread call-graph store
// (spec.md §4.3).
//
// One Graph belongs to exactly one goroutine ("thread" in spec terms); its
// data structures are never shared with another Graph (spec.md §5: "the
// store is never shared"). The cursor/token design below replaces the
// "naive stack depth" pop spec.md §4.3 explicitly warns against: Insert
// returns a Token carrying the cursor value that was current *before* the
// insertion, and Pop restores exactly that value. This makes FLAT and
// TIMELINE insertions (which may not move the cursor to a child of the
// previous cursor) and depth-overflow no-ops all correct by construction.
// The cursor never depends on a stack depth; the list of open tokens kept
// alongside it serves only stack_clearing at finalization.
package perf

import (
	"sync"
	"sync/atomic"

	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
)

// Token is returned by Insert and consumed by Pop. It is opaque to callers;
// Handle is the only intended consumer outside this package.
type Token struct {
	priorCursor *Node
	node        *Node
	skipped     bool
}

// Graph is a per-thread call-graph store.
type Graph struct {
	settings *Settings
	newData  func() Component

	mu     sync.Mutex // protects cursor and stack
	root   *Node
	cursor *Node

	// stack tracks currently-open (Insert'd, not yet Pop'd) tokens in
	// program order, so Finalize can honor stack_clearing (spec.md §4.6)
	// by closing them out in LIFO order without the caller's cooperation.
	stack []Token

	localSeq atomic.Uint64

	// ThreadID/Bookmark identify this Graph for cross-thread stitching at
	// finalization (spec.md §4.5); see thread.go.
	ThreadID string
	Bookmark Bookmark
}

// NewGraph creates an empty Graph rooted at a fresh depth-0 Node. newData
// constructs the Component instance for every node this Graph creates (a
// Graph always produces nodes of one Component kind; to record several
// kinds per region, the application runs one Graph per kind and merges
// their reports, or supplies a newData that returns a custom Component
// composing several samples into one; none of the built-in components do).
func NewGraph(settings *Settings, newData func() Component) *Graph {
	if settings == nil {
		settings = Keys
	}
	root := newNode(0, "", 0, nil, newData(), false)
	g := &Graph{settings: settings, newData: newData, root: root, cursor: root}
	return g
}

// Root returns the Graph's depth-0 node.
func (g *Graph) Root() *Node { return g.root }

// Cursor returns the node the next Insert will attach relative to.
func (g *Graph) Cursor() *Node {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cursor
}

// Enable toggles this store. When disabled, Insert and Pop are no-ops and
// no nodes are created (spec.md §4.3 "enable(bool)"). This forwards to the
// shared Settings, matching spec.md §6's "writes into Settings, observed at
// insert time".
func (g *Graph) Enable(v bool) { g.settings.SetEnabled(v) }

// Enabled reports the current enable/disable state.
func (g *Graph) Enabled() bool { return g.settings.Enabled() }

// SetMaxDepth rejects further insertions at depth > n (spec.md §4.3
// "set_max_depth(n)"). n == NoDepthLimit removes the limit.
func (g *Graph) SetMaxDepth(n int) { g.settings.SetMaxDepth(n) }

// MaxDepth returns the currently configured depth clamp.
func (g *Graph) MaxDepth() int { return g.settings.MaxDepth() }

// Insert navigates from the current cursor according to mode, creating a
// node if necessary, and returns both the resulting node and a Token that
// must later be passed to Pop. See spec.md §4.3 for the per-mode semantics.
func (g *Graph) Insert(hash uint64, label string, mode ScopeMode) (*Node, Token) {
	if !g.settings.Enabled() {
		return nil, Token{skipped: true}
	}

	g.mu.Lock()
	prior := g.cursor
	g.mu.Unlock()

	maxDepth := g.settings.MaxDepth()
	nextDepth := prior.depth + 1
	if mode == FlatMode {
		nextDepth = 1
	}
	if maxDepth != NoDepthLimit && nextDepth > maxDepth {
		// DepthExceeded: insertion is skipped, cursor is NOT advanced, and
		// the paired Pop must likewise be a no-op (spec.md §4.3, §7.3).
		return nil, Token{priorCursor: prior, skipped: true}
	}

	var node *Node
	switch mode {
	case TreeMode:
		node = prior.findOrCreateChild(nodeKey{hash: hash}, label, false, g.newData)
	case FlatMode:
		node = g.root.findOrCreateChild(nodeKey{hash: hash}, label, true, g.newData)
	case TimelineMode:
		seq := g.localSeq.Add(1)
		node = prior.findOrCreateChild(nodeKey{hash: hash, seq: seq}, label, false, g.newData)
	default:
		cclog.Warnf("perf: unknown scope mode %v, treating as TreeMode", mode)
		node = prior.findOrCreateChild(nodeKey{hash: hash}, label, false, g.newData)
	}

	node.onStack.Add(1)

	tok := Token{priorCursor: prior, node: node}
	g.mu.Lock()
	g.cursor = node
	g.stack = append(g.stack, tok)
	g.mu.Unlock()

	return node, tok
}

// Pop restores the cursor to the value it held immediately before the
// matching Insert, and releases this reference to the node. A Token from a
// skipped (depth-exceeded or disabled) Insert makes Pop a true no-op, per
// spec.md §4.3's "a pop with no matching insert ... must be a no-op".
func (g *Graph) Pop(tok Token) {
	if tok.skipped {
		return
	}

	if tok.node != nil {
		tok.node.onStack.Add(-1)
	}

	g.mu.Lock()
	g.cursor = tok.priorCursor
	for i := len(g.stack) - 1; i >= 0; i-- {
		if g.stack[i].node == tok.node {
			g.stack = append(g.stack[:i], g.stack[i+1:]...)
			break
		}
	}
	g.mu.Unlock()
}

// closeOutstanding force-closes every still-open Insert on this Graph in
// LIFO order, calling Stop on each node's Component and restoring the
// cursor, then returns the number of handles it closed. Used by Finalize
// when Settings.StackClearing() is true (spec.md §4.6).
func (g *Graph) closeOutstanding() int {
	g.mu.Lock()
	open := make([]Token, len(g.stack))
	copy(open, g.stack)
	g.mu.Unlock()

	for i := len(open) - 1; i >= 0; i-- {
		tok := open[i]
		if tok.node != nil {
			tok.node.data.Stop()
		}
		g.Pop(tok)
	}
	return len(open)
}

// Walk performs a pre-order depth-first traversal over the whole tree,
// rooted at g.Root(), the canonical order used for reporting (spec.md §4.7).
func (g *Graph) Walk(f func(*Node)) {
	g.root.walk(f)
}

// NodeCount returns the total number of nodes in the tree, including the root.
func (g *Graph) NodeCount() int {
	n := 0
	g.Walk(func(*Node) { n++ })
	return n
}
