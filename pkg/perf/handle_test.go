// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-perf.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package perf

import "testing"

func TestHandleStopRecordsOneLap(t *testing.T) {
	g, reg := newTestGraph()
	h := NewHandle(g, reg, "work", TreeMode)
	h.Stop()

	if got := h.Node(); got == nil || got.Laps() != 1 {
		t.Fatalf("after Stop, node = %+v, want a node with Laps() == 1", got)
	}
}

func TestHandleStopIsIdempotent(t *testing.T) {
	g, reg := newTestGraph()
	h := NewHandle(g, reg, "work", TreeMode)
	h.Stop()
	h.Stop() // must not double-count or panic

	if got, want := h.Node().Laps(), int64(1); got != want {
		t.Fatalf("Laps() after a double Stop = %d, want %d", got, want)
	}
}

func TestHandleStopOnNilHandleIsSafe(t *testing.T) {
	var h *Handle
	h.Stop() // must not panic
}

func TestHandleIsNoopWhenGraphDisabled(t *testing.T) {
	g, reg := newTestGraph()
	g.Enable(false)

	h := NewHandle(g, reg, "work", TreeMode)
	if got := h.Node(); got != nil {
		t.Fatal("NewHandle on a disabled graph should report Node() == nil")
	}
	h.Stop() // must be safe even though noop
}

func TestHandleIsNoopPastMaxDepth(t *testing.T) {
	g, reg := newTestGraph()
	g.SetMaxDepth(0)

	h := NewHandle(g, reg, "work", TreeMode)
	if got := h.Node(); got != nil {
		t.Fatal("NewHandle beyond max_depth should report Node() == nil")
	}
	h.Stop()
}

func TestHandleRejectsEmptyLabel(t *testing.T) {
	g, reg := newTestGraph()
	h := NewHandle(g, reg, "   ", TreeMode)
	if got := h.Node(); got != nil {
		t.Fatal("NewHandle with an empty/whitespace label should be rejected into a no-op handle")
	}
	h.Stop()
}

func TestHandlePanicUnwindStillPops(t *testing.T) {
	g, reg := newTestGraph()
	outer := NewHandle(g, reg, "outer", TreeMode)
	defer func() {
		recover()
		outer.Stop()
		if g.Cursor() != g.Root() {
			t.Fatal("cursor should be restored to root after the deferred Stop chain runs")
		}
	}()

	func() {
		inner := NewHandle(g, reg, "inner", TreeMode)
		defer inner.Stop()
		panic("boom")
	}()
}

func TestHandleWallClockComponentAccumulatesElapsed(t *testing.T) {
	s := NewDefaultSettings()
	g := NewGraph(s, func() Component { return NewWallClockComponent() })
	reg := NewRegistry()

	h := NewHandle(g, reg, "work", TreeMode)
	h.Stop()

	if got := h.Node().Data().(*WallClockComponent).Laps(); got != 1 {
		t.Fatalf("Laps() = %d, want 1", got)
	}
	if got := h.Node().Data().Accumulated(); got < 0 {
		t.Fatalf("Accumulated() = %v, want >= 0", got)
	}
}
