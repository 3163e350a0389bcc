// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-perf.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package perf provides api.go: the package-level convenience surface
// (spec.md §6).
//
// cc-backend exposes metricstore through a process-wide MemoryStore
// singleton (metricstore.GetMemoryStore()); this file follows the same
// shape for the common case of a single embedding application that does not
// want to thread a Graph and Registry through every call site. Anything
// that needs isolation (tests, multiple independent instrumented
// subsystems in one binary) constructs its own Registry/ThreadRegistry/Graph
// directly instead of using these package functions.
package perf

import (
	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
)

// mainThreadID is the implicit thread identity package-level Measure calls
// use. Applications with multiple goroutines that want their own subtrees
// call GraphFor/SpawnWorker with an explicit id and use the Graph-level API
// directly (handle.go, graph.go) instead of this file's functions.
const mainThreadID = "main"

var (
	programName string
	programArgs []string

	threads = NewThreadRegistry(Keys, func() Component { return NewWallClockComponent() })
)

// Init records the embedding program's identity (argv feeds
// report.FormatFilename's %m digest) and ensures the main thread's Graph
// exists. It does not read any configuration file itself (spec.md §6:
// config loading is the embedding application's job; call Keys.LoadJSON
// with the parsed bytes beforehand if needed).
func Init(name string, argv []string) {
	programName = name
	programArgs = append([]string(nil), argv...)
	threads.GraphFor(mainThreadID)
	cclog.Debugf("perf: initialized as %q with %d argv entries", name, len(argv))
}

// ProgramName returns the name passed to Init, or "" if Init has not run.
func ProgramName() string { return programName }

// ProgramArgs returns a copy of the argv slice passed to Init.
func ProgramArgs() []string { return append([]string(nil), programArgs...) }

// Master returns the main thread's Graph, the destination Finalize merges
// every other registered thread into.
func Master() *Graph { return threads.GraphFor(mainThreadID) }

// Threads returns the process-wide ThreadRegistry backing the package-level
// API, for callers that need SpawnWorker/GraphFor/Graphs directly.
func Threads() *ThreadRegistry { return threads }

// DefaultRegistry returns the process-wide label/hash Registry the
// package-level Measure/Timer functions look labels up in.
func DefaultRegistry() *Registry { return defaultRegistry }

// SpawnWorker registers workerThreadID as a child of parentThreadID, capturing
// a bookmark from the parent's current position for later stitching, and
// returns the worker's Graph. Call this from the parent goroutine before
// starting the worker; have the worker itself call GraphFor(workerThreadID)
// (or MeasureOn with the same id) to resume using that Graph.
func SpawnWorker(parentThreadID, workerThreadID string) *Graph {
	return threads.SpawnWorker(parentThreadID, workerThreadID)
}

// GraphFor returns threadID's Graph, lazily creating one rooted fresh if
// this is the first time threadID has been seen.
func GraphFor(threadID string) *Graph { return threads.GraphFor(threadID) }

// Measure starts a scoped measurement on the main thread under the
// currently configured default scope mode (spec.md §6 "flat_profile" /
// "timeline_profile" select the default; absent either, TREE).
func Measure(label string) *Handle {
	return MeasureOn(mainThreadID, label, Keys.DefaultScope())
}

// Timer is Measure with TreeMode forced regardless of the configured
// default scope, for call sites that specifically want call-graph
// accumulation (spec.md §4.4's canonical example).
func Timer(label string) *Handle {
	return MeasureOn(mainThreadID, label, TreeMode)
}

// MeasureOn is Measure for an explicit thread id and scope mode, the full
// generality the package-level convenience wrappers above shortcut.
func MeasureOn(threadID, label string, mode ScopeMode) *Handle {
	g := threads.GraphFor(threadID)
	return NewHandle(g, defaultRegistry, label, mode)
}

// Enable toggles instrumentation process-wide.
func Enable(v bool) { Keys.SetEnabled(v) }

// IsEnabled reports whether instrumentation is currently active.
func IsEnabled() bool { return Keys.Enabled() }

// SetMaxDepth clamps call-graph depth process-wide. NoDepthLimit disables
// the clamp.
func SetMaxDepth(n int) { Keys.SetMaxDepth(n) }

// GetMaxDepth returns the currently configured depth clamp.
func GetMaxDepth() int { return Keys.MaxDepth() }

// Finalize runs a Finalizer over the process-wide ThreadRegistry with the
// main thread's Graph as master, per Keys' stack_clearing/collapse_threads
// settings. With collapse_threads set, each worker is merged into the main
// thread's Graph and then dropped from the registry, so a subsequent Finalize
// call merges nothing; without it, workers are left in place. The return
// value is the number of workers merged, or left standing, respectively.
func Finalize() int {
	fz := NewFinalizer(Master(), threads, Keys)
	return fz.Finalize()
}

// Ranks returns the root node of every thread currently registered, keyed
// by thread id, for reporting each as its own rank section (spec.md §6
// "collapse_threads"). After a Finalize with collapse_threads=true this
// holds only "main" (every worker having been merged in and dropped); with
// collapse_threads=false (the default) it holds "main" plus every worker
// thread exactly as recorded, untouched by Finalize.
func Ranks() map[string]*Node {
	return threads.Roots()
}

// Clear drops every thread's call-graph data, including the master's,
// giving the process a fresh empty tree to measure into. The label/hash
// registry is left intact: hash assignments are process-lifetime stable by
// design (spec.md §3 "Hash"), and clearing them would silently break any
// handle constructed before the Clear call.
func Clear() {
	threads.Clear()
	threads.GraphFor(mainThreadID)
	cclog.Debugf("perf: package-level state cleared")
}
