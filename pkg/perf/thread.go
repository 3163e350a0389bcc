// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-perf.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package perf provides thread.go: thread binding (spec.md §4.5).
//
// Go has no stable goroutine-local storage, so "thread" is realized as an
// explicit string id the caller supplies (a worker-pool slot name, a job
// id, anything stable for the lifetime of that goroutine) rather than
// discovered via runtime introspection. This mirrors cc-backend's
// singleton-registry pattern (metricstore.MemoryStore keyed access) applied
// to a map of per-thread Graphs instead of a single store.
package perf

import (
	"sync"

	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
)

// Bookmark records where a worker's call-graph should be stitched back
// into its parent's tree at finalization time (spec.md §4.5, "Bookmark" in
// the glossary): the parent thread id and the hash-path of the parent's
// cursor at the moment the worker was spawned.
//
// Bookmark is a relation, not an ownership reference: if the parent node
// named by HashPath has been cleared before merge, the aggregator falls
// back to stitching at the root (spec.md §5 "Reference discipline").
type Bookmark struct {
	ParentThreadID string
	HashPath       []uint64
}

// IsRoot reports whether this bookmark points at the parent's thread root
// (a worker that spawned before the parent had taken any measurement, or
// one spawned before Init() — spec.md §8 "A worker that spawns before
// init() still records correctly; bookmark is the root").
func (b Bookmark) IsRoot() bool { return len(b.HashPath) == 0 }

// hashPath walks from cursor up to the root, returning the
// hash sequence from root to cursor (root-first).
func hashPath(cursor *Node) []uint64 {
	var rev []uint64
	for n := cursor; n != nil && n.parent != nil; n = n.parent {
		rev = append(rev, n.hash)
	}
	path := make([]uint64, len(rev))
	for i, h := range rev {
		path[len(rev)-1-i] = h
	}
	return path
}

// CaptureBookmark records parentGraph's current position, to be handed to
// a worker at spawn time (spec.md §4.5 "the parent thread is expected to
// hand the worker a bookmark").
func CaptureBookmark(parentThreadID string, parentGraph *Graph) Bookmark {
	return Bookmark{
		ParentThreadID: parentThreadID,
		HashPath:       hashPath(parentGraph.Cursor()),
	}
}

// ThreadRegistry associates thread ids with their Graph, lazily creating
// graphs on first use (spec.md §4.5 "Each OS thread obtains its own
// call-graph on first use").
type ThreadRegistry struct {
	mu       sync.Mutex
	graphs   map[string]*Graph
	order    []string // insertion order, as returned by Graphs()
	settings *Settings
	newData  func() Component
}

// NewThreadRegistry constructs an empty registry. newData is passed through
// to every Graph it creates.
func NewThreadRegistry(settings *Settings, newData func() Component) *ThreadRegistry {
	if settings == nil {
		settings = Keys
	}
	return &ThreadRegistry{
		graphs:   make(map[string]*Graph),
		settings: settings,
		newData:  newData,
	}
}

// GraphFor returns threadID's Graph, creating a fresh root-bookmarked one
// if this is the first time threadID has been seen.
func (tr *ThreadRegistry) GraphFor(threadID string) *Graph {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if g, ok := tr.graphs[threadID]; ok {
		return g
	}
	g := NewGraph(tr.settings, tr.newData)
	g.ThreadID = threadID
	tr.graphs[threadID] = g
	tr.order = append(tr.order, threadID)
	return g
}

// SpawnWorker registers workerThreadID with a bookmark captured from
// parentThreadID's current Graph, then returns the worker's Graph. Call
// this from the parent goroutine immediately before starting the worker
// goroutine, and have the worker call GraphFor(workerThreadID) to retrieve
// the same Graph from within itself.
func (tr *ThreadRegistry) SpawnWorker(parentThreadID, workerThreadID string) *Graph {
	parent := tr.GraphFor(parentThreadID)
	bm := CaptureBookmark(parentThreadID, parent)

	tr.mu.Lock()
	defer tr.mu.Unlock()
	g, ok := tr.graphs[workerThreadID]
	if !ok {
		g = NewGraph(tr.settings, tr.newData)
		g.ThreadID = workerThreadID
		tr.graphs[workerThreadID] = g
		tr.order = append(tr.order, workerThreadID)
	}
	g.Bookmark = bm
	return g
}

// Graphs returns every registered Graph in registration order (sorted by
// nothing but insertion — finalization further sorts by tid, spec.md §5
// "Merge order across workers during finalization is deterministic ...
// sort by tid").
func (tr *ThreadRegistry) Graphs() []*Graph {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	out := make([]*Graph, 0, len(tr.order))
	for _, id := range tr.order {
		out = append(out, tr.graphs[id])
	}
	return out
}

// Roots returns the current root node of every registered thread, keyed by
// thread id. This is the view report.JSON/report.Text need once Finalize
// has run with collapse_threads=false and every thread is reported as its
// own rank rather than folded into one master tree (spec.md §6
// "collapse_threads").
func (tr *ThreadRegistry) Roots() map[string]*Node {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	out := make(map[string]*Node, len(tr.graphs))
	for id, g := range tr.graphs {
		out[id] = g.Root()
	}
	return out
}

// Delete removes threadID's Graph from the registry, e.g. after it has
// been merged at finalization. It is not an error to delete an unknown id.
func (tr *ThreadRegistry) Delete(threadID string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if _, ok := tr.graphs[threadID]; !ok {
		return
	}
	delete(tr.graphs, threadID)
	for i, id := range tr.order {
		if id == threadID {
			tr.order = append(tr.order[:i], tr.order[i+1:]...)
			break
		}
	}
}

// Clear drops every registered thread/graph, preserving neither data nor
// bookmarks. Used by the package-level Clear() (spec.md §6).
func (tr *ThreadRegistry) Clear() {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.graphs = make(map[string]*Graph)
	tr.order = nil
	cclog.Debugf("perf: thread registry cleared")
}
