// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-perf.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package perf provides handle.go: the scoped measurement handle
// (spec.md §4.4).
//
// Go has no destructors, so the RAII discipline spec.md §9 asks for is
// realized the way the DataDog tracer realizes span.Finish() (see
// other_examples/.../ddtrace-tracer-span.go): a constructor that performs
// the side effect immediately and a single Stop method meant to be called
// via defer, which is unwind-safe because deferred calls run during a panic.
package perf

import cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"

// Handle is the scoped measurement bracket returned by NewHandle (or the
// package-level Measure/Timer convenience wrappers in api.go). The
// idiomatic call-site shape is:
//
//	h := perf.Measure("work")
//	defer h.Stop()
//
// Stop takes effect once; calling it again is a silent no-op
// (there is no paired Start to undo twice).
type Handle struct {
	graph   *Graph
	node    *Node
	token   Token
	stopped bool
	noop    bool
}

// NewHandle starts a new scoped measurement under g's current cursor. hash
// is looked up (or registered) for label via reg. If instrumentation is
// globally disabled, NewHandle still returns a valid, harmless Handle whose
// Stop is a no-op (spec.md §4.4 "must tolerate being constructed while
// instrumentation is globally disabled").
func NewHandle(g *Graph, reg *Registry, label string, mode ScopeMode) *Handle {
	hash, err := reg.HashFor(label)
	if err != nil {
		cclog.Warnf("perf: NewHandle(%q) rejected: %s", label, err.Error())
		return &Handle{noop: true}
	}

	node, tok := g.Insert(hash, label, mode)
	if node == nil {
		// Disabled store or depth-exceeded: sentinel no-op handle.
		return &Handle{graph: g, token: tok, noop: true}
	}

	node.data.Start()
	return &Handle{graph: g, node: node, token: tok}
}

// Stop ends the measurement: stops the node's Component, folds the result
// into it (Stop already mutates the Component's running aggregate in
// place), and pops the call-graph cursor back to where it was before this
// Handle was constructed. Guaranteed safe to call from a deferred position
// on every exit path, including one unwinding from a panic.
func (h *Handle) Stop() {
	if h == nil || h.stopped {
		return
	}
	h.stopped = true
	if h.noop {
		return
	}
	h.node.data.Stop()
	h.graph.Pop(h.token)
}

// Node returns the call-graph node this handle measured, or nil for a
// no-op handle (disabled instrumentation or depth-exceeded insertion).
func (h *Handle) Node() *Node {
	if h == nil || h.noop {
		return nil
	}
	return h.node
}
