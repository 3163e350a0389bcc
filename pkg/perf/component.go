// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-perf.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package perf provides component.go: the Component measurement primitive
// (spec.md §4.1).
//
// Values are carried as github.com/ClusterCockpit/cc-lib/v2/schema.Float,
// the same NaN-safe float wrapper cc-backend's metric buffers use, so a
// Component's Record() round-trips through report.JSON identically to how
// metricstore serializes a metric sample.
package perf

import (
	"math"
	"os"
	"sync"
	"time"

	"github.com/ClusterCockpit/cc-lib/v2/schema"
	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
	"github.com/shirou/gopsutil/v3/process"
)

// Category groups components for reporting/formatting purposes
// (spec.md §4.1 "Components declare a unit and category").
type Category int

const (
	CategoryTiming Category = iota
	CategoryMemory
	CategoryPercent
	CategoryOther
)

func (c Category) String() string {
	switch c {
	case CategoryTiming:
		return "timing"
	case CategoryMemory:
		return "memory"
	case CategoryPercent:
		return "percent"
	default:
		return "other"
	}
}

// Component is the measurement primitive. Concrete variants (wall clock,
// CPU time, memory, counter) implement it; user-defined components are
// reachable through the same surface without modifying core code (spec.md §9
// "Component polymorphism").
type Component interface {
	// Start captures a baseline. A start on an already-running component
	// is a logic error: the prior baseline is kept and the call is a no-op.
	Start()
	// Stop computes the delta since Start, folds it into the running
	// aggregate, and increments the lap count.
	Stop()
	// Record returns the most recent sample (the 'value' field).
	Record() schema.Float
	// Merge folds another Component of the same concrete type into this
	// one: accum and laps are summed, min/max of 'value' are tracked.
	Merge(other Component)

	Current() schema.Float
	Accumulated() schema.Float
	Min() schema.Float
	Max() schema.Float
	StdDev() schema.Float
	Laps() int64

	Category() Category
	Unit() string

	// Clone returns a fresh, zeroed component of the same concrete type,
	// used when a new Node is created so every node gets its own Component
	// instance rather than sharing state.
	Clone() Component
}

// base implements the bookkeeping shared by every concrete Component:
// running/baseline tracking, accum/min/max/laps, and the "redundant start
// is dropped" logic-error policy (spec.md §4.1 Failure).
type base struct {
	mu        sync.Mutex
	running   bool
	baseline  schema.Float
	value     schema.Float
	accum     schema.Float
	sumSq     schema.Float // sum of value^2 across laps, for StdDev
	min       schema.Float
	max       schema.Float
	laps      int64
	hasMinMax bool
}

func (b *base) startWith(now func() schema.Float) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running {
		cclog.Warnf("perf: Start() called on an already-running component, ignoring")
		return
	}
	b.running = true
	b.baseline = now()
}

func (b *base) stopWith(now func() schema.Float) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.running {
		cclog.Warnf("perf: Stop() called on a component that was never started, ignoring")
		return
	}
	delta := now() - b.baseline
	b.running = false
	b.value = delta
	b.accum += delta
	b.sumSq += delta * delta
	b.laps++
	b.trackMinMaxLocked(delta)
}

func (b *base) trackMinMaxLocked(v schema.Float) {
	if !b.hasMinMax {
		b.min, b.max = v, v
		b.hasMinMax = true
		return
	}
	if v < b.min {
		b.min = v
	}
	if v > b.max {
		b.max = v
	}
}

func (b *base) mergeFrom(o *base) {
	b.mu.Lock()
	o.mu.Lock()
	defer b.mu.Unlock()
	defer o.mu.Unlock()

	b.accum += o.accum
	b.sumSq += o.sumSq
	b.laps += o.laps
	if o.hasMinMax {
		if !b.hasMinMax {
			b.min, b.max = o.min, o.max
			b.hasMinMax = true
		} else {
			if o.min < b.min {
				b.min = o.min
			}
			if o.max > b.max {
				b.max = o.max
			}
		}
	}
}

func (b *base) record() schema.Float { b.mu.Lock(); defer b.mu.Unlock(); return b.value }
func (b *base) current() schema.Float { b.mu.Lock(); defer b.mu.Unlock(); return b.value }
func (b *base) accumulated() schema.Float { b.mu.Lock(); defer b.mu.Unlock(); return b.accum }
func (b *base) minVal() schema.Float { b.mu.Lock(); defer b.mu.Unlock(); return b.min }
func (b *base) maxVal() schema.Float { b.mu.Lock(); defer b.mu.Unlock(); return b.max }
func (b *base) laps_() int64 { b.mu.Lock(); defer b.mu.Unlock(); return b.laps }

// stdDev returns the population standard deviation of 'value' across every
// lap folded into this component (own laps plus anything Merge'd in),
// computed from the running sum-of-squares rather than retained samples
// (spec.md §4.6 "recomputed from the aggregated laps and the running sums
// maintained by Component").
func (b *base) stdDev() schema.Float {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.laps == 0 {
		return 0
	}
	n := schema.Float(b.laps)
	mean := b.accum / n
	variance := b.sumSq/n - mean*mean
	if variance < 0 {
		variance = 0
	}
	return schema.Float(math.Sqrt(float64(variance)))
}

// WallClockComponent measures elapsed wall-clock time between Start and Stop.
type WallClockComponent struct{ base }

func NewWallClockComponent() *WallClockComponent { return &WallClockComponent{} }

func (c *WallClockComponent) Start() { c.startWith(nowSeconds) }
func (c *WallClockComponent) Stop()  { c.stopWith(nowSeconds) }
func (c *WallClockComponent) Record() schema.Float      { return c.record() }
func (c *WallClockComponent) Current() schema.Float     { return c.current() }
func (c *WallClockComponent) Accumulated() schema.Float { return c.accumulated() }
func (c *WallClockComponent) Min() schema.Float         { return c.minVal() }
func (c *WallClockComponent) Max() schema.Float         { return c.maxVal() }
func (c *WallClockComponent) StdDev() schema.Float      { return c.stdDev() }
func (c *WallClockComponent) Laps() int64               { return c.laps_() }
func (c *WallClockComponent) Category() Category        { return CategoryTiming }
func (c *WallClockComponent) Unit() string               { return "sec" }
func (c *WallClockComponent) Merge(o Component) {
	if other, ok := o.(*WallClockComponent); ok {
		c.mergeFrom(&other.base)
	}
}
func (c *WallClockComponent) Clone() Component { return NewWallClockComponent() }

func nowSeconds() schema.Float {
	return schema.Float(float64(time.Now().UnixNano()) / 1e9)
}

// CPUTimeComponent measures process CPU time consumed between Start and
// Stop, sampled via gopsutil/v3/process the way an external profiling
// back-end would (spec.md treats concrete back-ends as a pluggable Component
// capability).
type CPUTimeComponent struct {
	base
	proc *process.Process
}

func NewCPUTimeComponent() *CPUTimeComponent {
	c := &CPUTimeComponent{}
	if p, err := process.NewProcess(int32(currentPID())); err == nil {
		c.proc = p
	} else {
		cclog.Warnf("perf: CPUTimeComponent could not attach to current process: %s", err.Error())
	}
	return c
}

func (c *CPUTimeComponent) cpuSeconds() schema.Float {
	if c.proc == nil {
		return 0
	}
	times, err := c.proc.Times()
	if err != nil {
		return 0
	}
	return schema.Float(times.User + times.System)
}

func (c *CPUTimeComponent) Start() { c.startWith(c.cpuSeconds) }
func (c *CPUTimeComponent) Stop()  { c.stopWith(c.cpuSeconds) }
func (c *CPUTimeComponent) Record() schema.Float      { return c.record() }
func (c *CPUTimeComponent) Current() schema.Float     { return c.current() }
func (c *CPUTimeComponent) Accumulated() schema.Float { return c.accumulated() }
func (c *CPUTimeComponent) Min() schema.Float         { return c.minVal() }
func (c *CPUTimeComponent) Max() schema.Float         { return c.maxVal() }
func (c *CPUTimeComponent) StdDev() schema.Float      { return c.stdDev() }
func (c *CPUTimeComponent) Laps() int64               { return c.laps_() }
func (c *CPUTimeComponent) Category() Category        { return CategoryTiming }
func (c *CPUTimeComponent) Unit() string              { return "sec" }
func (c *CPUTimeComponent) Merge(o Component) {
	if other, ok := o.(*CPUTimeComponent); ok {
		c.mergeFrom(&other.base)
	}
}
func (c *CPUTimeComponent) Clone() Component { return NewCPUTimeComponent() }

// MemoryComponent measures the change in process resident set size between
// Start and Stop, also via gopsutil/v3/process.
type MemoryComponent struct {
	base
	proc *process.Process
}

func NewMemoryComponent() *MemoryComponent {
	c := &MemoryComponent{}
	if p, err := process.NewProcess(int32(currentPID())); err == nil {
		c.proc = p
	} else {
		cclog.Warnf("perf: MemoryComponent could not attach to current process: %s", err.Error())
	}
	return c
}

func (c *MemoryComponent) rssBytes() schema.Float {
	if c.proc == nil {
		return 0
	}
	info, err := c.proc.MemoryInfo()
	if err != nil || info == nil {
		return 0
	}
	return schema.Float(info.RSS) / 1024
}

func (c *MemoryComponent) Start() { c.startWith(c.rssBytes) }
func (c *MemoryComponent) Stop()  { c.stopWith(c.rssBytes) }
func (c *MemoryComponent) Record() schema.Float      { return c.record() }
func (c *MemoryComponent) Current() schema.Float     { return c.current() }
func (c *MemoryComponent) Accumulated() schema.Float { return c.accumulated() }
func (c *MemoryComponent) Min() schema.Float         { return c.minVal() }
func (c *MemoryComponent) Max() schema.Float         { return c.maxVal() }
func (c *MemoryComponent) StdDev() schema.Float      { return c.stdDev() }
func (c *MemoryComponent) Laps() int64               { return c.laps_() }
func (c *MemoryComponent) Category() Category        { return CategoryMemory }
func (c *MemoryComponent) Unit() string              { return "KB" }
func (c *MemoryComponent) Merge(o Component) {
	if other, ok := o.(*MemoryComponent); ok {
		c.mergeFrom(&other.base)
	}
}
func (c *MemoryComponent) Clone() Component { return NewMemoryComponent() }

// CounterComponent is a generic monotonic-counter component, standing in
// for a hardware performance counter (e.g. a PAPI event) in deployments
// without access to one. Sample() must be supplied by the caller since the
// concrete counter source is an external collaborator (spec.md §1).
type CounterComponent struct {
	base
	Sample func() schema.Float
}

func NewCounterComponent(sample func() schema.Float) *CounterComponent {
	return &CounterComponent{Sample: sample}
}

func (c *CounterComponent) read() schema.Float {
	if c.Sample == nil {
		return 0
	}
	return c.Sample()
}

func (c *CounterComponent) Start() { c.startWith(c.read) }
func (c *CounterComponent) Stop()  { c.stopWith(c.read) }
func (c *CounterComponent) Record() schema.Float      { return c.record() }
func (c *CounterComponent) Current() schema.Float     { return c.current() }
func (c *CounterComponent) Accumulated() schema.Float { return c.accumulated() }
func (c *CounterComponent) Min() schema.Float         { return c.minVal() }
func (c *CounterComponent) Max() schema.Float         { return c.maxVal() }
func (c *CounterComponent) StdDev() schema.Float      { return c.stdDev() }
func (c *CounterComponent) Laps() int64               { return c.laps_() }
func (c *CounterComponent) Category() Category        { return CategoryOther }
func (c *CounterComponent) Unit() string              { return "count" }
func (c *CounterComponent) Merge(o Component) {
	if other, ok := o.(*CounterComponent); ok {
		c.mergeFrom(&other.base)
	}
}
func (c *CounterComponent) Clone() Component { return NewCounterComponent(c.Sample) }

func currentPID() int {
	return os.Getpid()
}
