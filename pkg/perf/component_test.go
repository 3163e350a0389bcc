// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-perf.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package perf

import (
	"math"
	"testing"

	"github.com/ClusterCockpit/cc-lib/v2/schema"
)

// fakeClock lets tests drive WallClockComponent-shaped components through a
// deterministic sequence of "now" samples instead of real time.Sleep calls.
type fakeClock struct {
	samples []schema.Float
	i       int
}

func (c *fakeClock) next() schema.Float {
	v := c.samples[c.i]
	c.i++
	return v
}

func newFakeCounter(samples ...schema.Float) *CounterComponent {
	clk := &fakeClock{samples: samples}
	return NewCounterComponent(clk.next)
}

func TestCounterComponentAccumulatesAcrossLaps(t *testing.T) {
	// Three laps of deltas 2, 3, 4 (readings climb monotonically).
	c := newFakeCounter(0, 2, 2, 5, 5, 9)
	for i := 0; i < 3; i++ {
		c.Start()
		c.Stop()
	}

	if got, want := c.Laps(), int64(3); got != want {
		t.Fatalf("Laps() = %d, want %d", got, want)
	}
	if got, want := c.Accumulated(), schema.Float(9); got != want {
		t.Fatalf("Accumulated() = %v, want %v", got, want)
	}
	if got, want := c.Min(), schema.Float(2); got != want {
		t.Fatalf("Min() = %v, want %v", got, want)
	}
	if got, want := c.Max(), schema.Float(4); got != want {
		t.Fatalf("Max() = %v, want %v", got, want)
	}
}

func TestComponentStdDevMatchesPopulationFormula(t *testing.T) {
	// deltas: 2, 4, 4, 4, 5, 5, 7, 9 -> mean 5, population stddev 2.
	c := newFakeCounter(
		0, 2,
		2, 6,
		6, 10,
		10, 14,
		14, 19,
		19, 24,
		24, 31,
		31, 40,
	)
	for i := 0; i < 8; i++ {
		c.Start()
		c.Stop()
	}

	want := 2.0
	if got := float64(c.StdDev()); math.Abs(got-want) > 1e-9 {
		t.Fatalf("StdDev() = %v, want %v", got, want)
	}
}

func TestComponentStdDevZeroBeforeAnyLap(t *testing.T) {
	c := NewCounterComponent(func() schema.Float { return 0 })
	if got := c.StdDev(); got != 0 {
		t.Fatalf("StdDev() on a fresh component = %v, want 0", got)
	}
}

func TestComponentDoubleStartIsIgnored(t *testing.T) {
	c := newFakeCounter(0, 10, 10)
	c.Start()
	c.Start() // ignored; baseline from the first Start is kept
	c.Stop()

	if got, want := c.Accumulated(), schema.Float(10); got != want {
		t.Fatalf("Accumulated() = %v, want %v (second Start should be a no-op)", got, want)
	}
	if got, want := c.Laps(), int64(1); got != want {
		t.Fatalf("Laps() = %d, want %d", got, want)
	}
}

func TestComponentStopWithoutStartIsIgnored(t *testing.T) {
	c := NewCounterComponent(func() schema.Float { return 5 })
	c.Stop() // never started; must not panic or record a lap
	if got, want := c.Laps(), int64(0); got != want {
		t.Fatalf("Laps() = %d, want %d", got, want)
	}
}

func TestComponentMergeCombinesRunningState(t *testing.T) {
	a := newFakeCounter(0, 10, 10, 20) // laps: 10, 10
	a.Start()
	a.Stop()
	a.Start()
	a.Stop()

	b := newFakeCounter(0, 5) // laps: 5
	b.Start()
	b.Stop()

	a.Merge(b)

	if got, want := a.Laps(), int64(3); got != want {
		t.Fatalf("Laps() after merge = %d, want %d", got, want)
	}
	if got, want := a.Accumulated(), schema.Float(25); got != want {
		t.Fatalf("Accumulated() after merge = %v, want %v", got, want)
	}
	if got, want := a.Min(), schema.Float(5); got != want {
		t.Fatalf("Min() after merge = %v, want %v", got, want)
	}
	if got, want := a.Max(), schema.Float(10); got != want {
		t.Fatalf("Max() after merge = %v, want %v", got, want)
	}
}

func TestMemoryComponentUnitIsKB(t *testing.T) {
	// rssBytes() divides gopsutil's byte reading by 1024 to match the
	// component's declared "KB" unit; without a live process sample this
	// just asserts the declared unit. The division itself is not exercised
	// here; report_test.go's scaledValue cases cover the later KB->MB step.
	c := NewMemoryComponent()
	if got, want := c.Unit(), "KB"; got != want {
		t.Fatalf("Unit() = %q, want %q", got, want)
	}
}

func TestCloneProducesIndependentZeroedComponent(t *testing.T) {
	c := newFakeCounter(0, 10)
	c.Start()
	c.Stop()

	clone := c.Clone()
	if clone.Laps() != 0 {
		t.Fatalf("Clone() Laps() = %d, want 0", clone.Laps())
	}
	if clone.Accumulated() != 0 {
		t.Fatalf("Clone() Accumulated() = %v, want 0", clone.Accumulated())
	}
}
