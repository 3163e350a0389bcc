// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-perf.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package perf provides aggregate.go: cross-thread finalization (spec.md
// §4.6).
//
// A worker's Graph is private for its whole lifetime (spec.md §5: "the
// store is never shared"); finalization is the one point where its tree is
// read by another goroutine, and only after the worker is done producing
// into it. The shape below mirrors metricstore's buffer-to-disk checkpoint
// pass (pkg/metricstore/buffer.go Checkpoint): walk a tree once, fold data
// into a destination, then hand the source back for disposal.
package perf

import (
	"sort"

	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
)

// Finalizer drains a ThreadRegistry into one master Graph (spec.md §4.6
// "A single master tree receives every worker's contribution").
type Finalizer struct {
	master   *Graph
	threads  *ThreadRegistry
	settings *Settings
}

// NewFinalizer builds a Finalizer that merges threads into master according
// to settings (Keys if nil).
func NewFinalizer(master *Graph, threads *ThreadRegistry, settings *Settings) *Finalizer {
	if settings == nil {
		settings = Keys
	}
	return &Finalizer{master: master, threads: threads, settings: settings}
}

// Finalize processes every registered Graph other than the master, in
// tid-sorted order (spec.md §5 "Merge order across workers during
// finalization is deterministic ... sort by tid").
//
// When CollapseThreads is set, each worker's tree is folded into the master
// tree, guided by its bookmark, and then dropped from the registry; the
// return value is the number of workers merged (spec.md §6
// "collapse_threads: if true, aggregator merges workers into master").
// A second Finalize call then merges nothing further, since every worker it
// would have touched is already gone from the registry — a correct no-op
// rather than a double-merge.
//
// When CollapseThreads is unset (the default), workers are left exactly as
// recorded: Finalize neither merges nor removes them, so every thread can
// still be reported under its own rank section via Threads().Roots() (spec.md
// §6 "if false, workers are reported under their own rank section"). The
// return value is then the number of worker threads left standing.
func (fz *Finalizer) Finalize() int {
	graphs := fz.threads.Graphs()
	sort.Slice(graphs, func(i, j int) bool { return graphs[i].ThreadID < graphs[j].ThreadID })

	n := 0
	for _, g := range graphs {
		if g == fz.master {
			continue
		}
		if !fz.settings.CollapseThreads() {
			n++
			continue
		}
		fz.mergeGraph(g)
		fz.threads.Delete(g.ThreadID)
		n++
	}
	return n
}

// mergeGraph folds one worker Graph into the master tree and, if
// StackClearing is set, force-closes any handles the worker left open first
// (spec.md §4.6: "finalize first applies stack_clearing, then merges").
func (fz *Finalizer) mergeGraph(worker *Graph) {
	if fz.settings.StackClearing() {
		if n := worker.closeOutstanding(); n > 0 {
			cclog.Warnf("perf: finalize closed %d outstanding handle(s) on thread %q", n, worker.ThreadID)
		}
	}

	attach := fz.resolveAttachPoint(worker)
	for _, child := range worker.Root().Children() {
		fz.mergeSubtree(attach, child)
	}
}

// resolveAttachPoint locates the master-tree node a worker's root should be
// stitched under: the bookmark's hash path is walked as far as it resolves.
// Any missing segment (the bookmarked parent was cleared before finalize)
// falls back to the root, per thread.go's documented reference discipline
// (spec.md §5).
func (fz *Finalizer) resolveAttachPoint(worker *Graph) *Node {
	if worker.Bookmark.IsRoot() {
		return fz.master.Root()
	}

	cur := fz.master.Root()
	for _, h := range worker.Bookmark.HashPath {
		next, ok := cur.findChild(nodeKey{hash: h})
		if !ok {
			cclog.Warnf("perf: bookmark path for thread %q missing at hash %#x, stitching at root", worker.ThreadID, h)
			return fz.master.Root()
		}
		cur = next
	}
	return cur
}

// mergeSubtree folds src (and everything beneath it) into dst, creating a
// matching child of dst when none exists yet, recursively. src's own node
// is marked transient once its data has been folded in (spec.md §3
// "is_transient": has been merged out at least once).
func (fz *Finalizer) mergeSubtree(dst *Node, src *Node) {
	child, ok := dst.findChild(src.key())
	if !ok {
		child = dst.findOrCreateChild(src.key(), src.Label(), src.flat, src.data.Clone)
	}

	child.data.Merge(src.data)
	src.transient.Store(true)

	for _, grandchild := range src.Children() {
		fz.mergeSubtree(child, grandchild)
	}
}
