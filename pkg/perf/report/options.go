// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-perf.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package report renders a finalized call-graph (spec.md §4.7), grounded on
// pkg/metricstore/query.go's read-side traversal and pkg/units' formatting
// conventions.
package report

import "github.com/ClusterCockpit/cc-perf/pkg/perf"

// Options controls how a report is formatted. FromSettings copies the
// relevant fields out of a *perf.Settings so report callers don't need to
// duplicate precision/width/unit bookkeeping.
type Options struct {
	Precision  int
	Width      int
	Scientific bool

	TimingUnit string // "sec", "ms", "us", "ns"
	MemoryUnit string // "KB", "MB", "GB"

	// IncludeCollisions annotates a node's label with every colliding label
	// sharing its hash, when reg is non-nil and the hash has collisions
	// (spec.md §7.5).
	IncludeCollisions bool
	Registry          *perf.Registry
}

// DefaultOptions builds Options from perf.Keys' current values.
func DefaultOptions() Options {
	return FromSettings(perf.Keys)
}

// FromSettings builds Options from a live Settings instance.
func FromSettings(s *perf.Settings) Options {
	return Options{
		Precision:  s.Precision,
		Width:      s.Width,
		Scientific: s.Scientific,
		TimingUnit: s.TimingUnit,
		MemoryUnit: s.MemoryUnit,
	}
}
