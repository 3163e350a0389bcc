// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-perf.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package perf

import (
	"testing"

	"github.com/ClusterCockpit/cc-lib/v2/schema"
)

func newTestFinalizeFixture(settings *Settings) (*ThreadRegistry, *Registry) {
	if settings == nil {
		settings = NewDefaultSettings()
	}
	tr := NewThreadRegistry(settings, func() Component { return NewCounterComponent(func() schema.Float { return 0 }) })
	return tr, NewRegistry()
}

func TestFinalizeMergesWorkerUnderBookmarkedParent(t *testing.T) {
	s := NewDefaultSettings()
	s.LoadJSON([]byte(`{"collapse_threads": true}`))
	tr, reg := newTestFinalizeFixture(s)
	master := tr.GraphFor("main")

	regionHash, _ := reg.HashFor("region")
	_, regionTok := master.Insert(regionHash, "region", TreeMode)

	worker := tr.SpawnWorker("main", "worker-1")
	master.Pop(regionTok)

	workHash, _ := reg.HashFor("work")
	node, tok := worker.Insert(workHash, "work", TreeMode)
	node.data.Start()
	node.data.Stop()
	worker.Pop(tok)

	fz := NewFinalizer(master, tr, tr.settings)
	merged := fz.Finalize()
	if merged != 1 {
		t.Fatalf("Finalize() merged %d graphs, want 1", merged)
	}

	regionNode, ok := master.Root().findChild(nodeKey{hash: regionHash})
	if !ok {
		t.Fatal("master tree should still contain the region node recorded before the worker spawned")
	}
	workNode, ok := regionNode.findChild(nodeKey{hash: workHash})
	if !ok {
		t.Fatal("worker's \"work\" node should have been stitched under region, per its bookmark")
	}
	if got, want := workNode.Laps(), int64(1); got != want {
		t.Fatalf("merged work node Laps() = %d, want %d", got, want)
	}
}

func TestFinalizeCollapseThreadsFalseLeavesWorkersSeparate(t *testing.T) {
	s := NewDefaultSettings() // collapse_threads defaults to false
	tr, reg := newTestFinalizeFixture(s)
	master := tr.GraphFor("main")

	regionHash, _ := reg.HashFor("region")
	_, regionTok := master.Insert(regionHash, "region", TreeMode)
	worker := tr.SpawnWorker("main", "worker-1")
	master.Pop(regionTok)

	workHash, _ := reg.HashFor("work")
	node, tok := worker.Insert(workHash, "work", TreeMode)
	node.data.Start()
	node.data.Stop()
	worker.Pop(tok)

	fz := NewFinalizer(master, tr, s)
	left := fz.Finalize()
	if left != 1 {
		t.Fatalf("Finalize() left %d worker(s) standing, want 1", left)
	}

	if _, ok := master.Root().findChild(nodeKey{hash: workHash}); ok {
		t.Fatal("collapse_threads=false must not fold the worker's tree into master")
	}
	regionNode, _ := master.Root().findChild(nodeKey{hash: regionHash})
	if _, ok := regionNode.findChild(nodeKey{hash: workHash}); ok {
		t.Fatal("collapse_threads=false must not stitch the worker under its bookmarked region either")
	}

	roots := tr.Roots()
	workerRoot, ok := roots["worker-1"]
	if !ok {
		t.Fatal("worker-1 should still be registered as its own rank after Finalize")
	}
	if _, ok := workerRoot.findChild(nodeKey{hash: workHash}); !ok {
		t.Fatal("worker-1's own tree should still contain its \"work\" node, unmerged")
	}
	if node.IsTransient() {
		t.Fatal("an unmerged worker's node should not be marked transient")
	}
}

func TestFinalizeMissingBookmarkTargetFallsBackToRoot(t *testing.T) {
	tr, reg := newTestFinalizeFixture(nil)
	master := tr.GraphFor("main")

	regionHash, _ := reg.HashFor("region")
	_, regionTok := master.Insert(regionHash, "region", TreeMode)
	worker := tr.SpawnWorker("main", "worker-1")
	master.Pop(regionTok)

	// The bookmarked region never existed at merge time (a fresh master
	// with no such child simulates it having been cleared/never recorded).
	fresh := NewGraph(tr.settings, func() Component { return NewCounterComponent(func() schema.Float { return 0 }) })
	fresh.ThreadID = "main"

	workHash, _ := reg.HashFor("work")
	_, tok := worker.Insert(workHash, "work", TreeMode)
	worker.Pop(tok)

	fz := NewFinalizer(fresh, tr, tr.settings)
	fz.mergeGraph(worker)

	if _, ok := fresh.Root().findChild(nodeKey{hash: workHash}); !ok {
		t.Fatal("a bookmark path that cannot be resolved should fall back to stitching at root")
	}
}

func TestFinalizeMarksSourceNodeTransient(t *testing.T) {
	s := NewDefaultSettings()
	s.LoadJSON([]byte(`{"collapse_threads": true}`))
	tr, reg := newTestFinalizeFixture(s)
	master := tr.GraphFor("main")
	worker := tr.SpawnWorker("main", "worker-1")

	workHash, _ := reg.HashFor("work")
	node, tok := worker.Insert(workHash, "work", TreeMode)
	worker.Pop(tok)

	if node.IsTransient() {
		t.Fatal("a node should not be transient before it has been merged")
	}

	fz := NewFinalizer(master, tr, tr.settings)
	fz.Finalize()

	if !node.IsTransient() {
		t.Fatal("the worker's source node should be marked transient once its data is folded into master")
	}
}

func TestFinalizeStackClearingClosesOpenHandles(t *testing.T) {
	s := NewDefaultSettings()
	s.LoadJSON([]byte(`{"stack_clearing": true, "collapse_threads": true}`))
	tr, reg := newTestFinalizeFixture(s)
	master := tr.GraphFor("main")
	worker := tr.SpawnWorker("main", "worker-1")

	workHash, _ := reg.HashFor("leaked")
	node, _ := worker.Insert(workHash, "leaked", TreeMode)
	node.data.Start() // never stopped, never popped

	fz := NewFinalizer(master, tr, s)
	fz.Finalize()

	mergedNode, ok := master.Root().findChild(nodeKey{hash: workHash})
	if !ok {
		t.Fatal("leaked node should still have been merged into master")
	}
	if got, want := mergedNode.Laps(), int64(1); got != want {
		t.Fatalf("stack_clearing should force a final lap before merge: Laps() = %d, want %d", got, want)
	}
}

func TestFinalizeWithoutStackClearingLeavesOpenLapUncounted(t *testing.T) {
	s := NewDefaultSettings() // stack_clearing defaults to false
	s.LoadJSON([]byte(`{"collapse_threads": true}`))
	tr, reg := newTestFinalizeFixture(s)
	master := tr.GraphFor("main")
	worker := tr.SpawnWorker("main", "worker-1")

	workHash, _ := reg.HashFor("leaked")
	node, _ := worker.Insert(workHash, "leaked", TreeMode)
	node.data.Start()

	fz := NewFinalizer(master, tr, tr.settings)
	fz.Finalize()

	mergedNode, ok := master.Root().findChild(nodeKey{hash: workHash})
	if !ok {
		t.Fatal("node should still be merged even when left open")
	}
	if got, want := mergedNode.Laps(), int64(0); got != want {
		t.Fatalf("without stack_clearing, an open handle should not contribute a lap: Laps() = %d, want %d", got, want)
	}
}

func TestFinalizeIsDeterministicAcrossThreadOrder(t *testing.T) {
	s := NewDefaultSettings()
	s.LoadJSON([]byte(`{"collapse_threads": true}`))
	tr, reg := newTestFinalizeFixture(s)
	master := tr.GraphFor("main")
	workHash, _ := reg.HashFor("work")

	// Register workers out of lexical order; Finalize sorts by ThreadID.
	for _, id := range []string{"worker-3", "worker-1", "worker-2"} {
		w := tr.SpawnWorker("main", id)
		_, tok := w.Insert(workHash, "work", TreeMode)
		w.Pop(tok)
	}

	fz := NewFinalizer(master, tr, tr.settings)
	fz.Finalize()

	workNode, ok := master.Root().findChild(nodeKey{hash: workHash})
	if !ok {
		t.Fatal("work node should exist after merging all three workers")
	}
	if got, want := workNode.Laps(), int64(0); got != want {
		// No Start/Stop was issued above, only Insert/Pop, so laps stay 0;
		// this asserts the merge still ran for every worker without panicking
		// on ordering, which the node's mere existence already confirms.
		t.Fatalf("Laps() = %d, want %d", got, want)
	}
}

func TestFinalizeIsIdempotentOnSecondCall(t *testing.T) {
	s := NewDefaultSettings()
	s.LoadJSON([]byte(`{"collapse_threads": true}`))
	tr, reg := newTestFinalizeFixture(s)
	master := tr.GraphFor("main")
	worker := tr.SpawnWorker("main", "worker-1")

	h, _ := reg.HashFor("work")
	_, tok := worker.Insert(h, "work", TreeMode)
	worker.Pop(tok)

	fz := NewFinalizer(master, tr, tr.settings)
	if merged := fz.Finalize(); merged != 1 {
		t.Fatalf("first Finalize() merged %d, want 1", merged)
	}
	if merged := fz.Finalize(); merged != 0 {
		t.Fatalf("second Finalize() merged %d, want 0 (idempotent no-op)", merged)
	}
}
