// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-perf.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package perf provides config.go: the Settings surface.
//
// Settings is deliberately small and read-mostly, the way MetricStoreConfig
// is in cc-backend's metricstore package: a package-level Keys variable
// holding defaults, updated field by field by the caller's configuration via
// LoadJSON. The core never parses a config file itself — that belongs
// to the embedding application (spec's "deliberately out of scope").
package perf

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
)

const (
	// NoDepthLimit is the sentinel max_depth value meaning "unlimited".
	NoDepthLimit = -1
	// DefaultMaxThreadBookmarks bounds how many bookmarks a worker keeps
	// for re-stitching into the master tree at finalization.
	DefaultMaxThreadBookmarks = 64
)

// ScopeMode is the tri-state policy controlling how repeated labels attach
// to the call-graph (spec.md §3 "Scope mode").
type ScopeMode int

const (
	// TreeMode reuses the node at (parent, label) on re-entry, accumulating laps.
	TreeMode ScopeMode = iota
	// FlatMode always attaches at depth 1, regardless of nesting.
	FlatMode
	// TimelineMode always creates a fresh node, never reused.
	TimelineMode
)

func (m ScopeMode) String() string {
	switch m {
	case TreeMode:
		return "tree"
	case FlatMode:
		return "flat"
	case TimelineMode:
		return "timeline"
	default:
		return "unknown"
	}
}

// Settings is the enumerated, read-mostly configuration surface described
// in spec.md §6. Flags that are read on the hot insert() path (Enabled,
// MaxDepth) are mirrored into atomics so readers never take a lock; string
// and struct fields are protected by a plain mutex since they change rarely
// (settings updates, not per-measurement).
type Settings struct {
	mu sync.Mutex

	enabled   atomic.Bool
	maxDepth  atomic.Int64
	collapseThreads   atomic.Bool
	collapseProcesses atomic.Bool
	stackClearing     atomic.Bool

	flatProfile     bool
	timelineProfile bool

	maxThreadBookmarks int

	Precision  int
	Width      int
	Scientific bool

	TimingUnit string // "sec", "ms", "us", "ns"
	MemoryUnit string // "KB", "MB", "GB"

	OutputPath   string
	OutputPrefix string
}

// settingsJSON mirrors Settings for (un)marshaling; Settings itself holds
// unexported atomics so it cannot be decoded directly.
type settingsJSON struct {
	Enabled             *bool   `json:"enabled"`
	MaxDepth            *int    `json:"max_depth"`
	FlatProfile         *bool   `json:"flat_profile"`
	TimelineProfile     *bool   `json:"timeline_profile"`
	CollapseThreads     *bool   `json:"collapse_threads"`
	CollapseProcesses   *bool   `json:"collapse_processes"`
	MaxThreadBookmarks  *int    `json:"max_thread_bookmarks"`
	Precision           *int    `json:"precision"`
	Width               *int    `json:"width"`
	Scientific          *bool   `json:"scientific"`
	TimingUnits         *string `json:"timing_units"`
	MemoryUnits         *string `json:"memory_units"`
	StackClearing       *bool   `json:"stack_clearing"`
	OutputPath          *string `json:"output_path"`
	OutputPrefix        *string `json:"output_prefix"`
}

// NewDefaultSettings returns the Settings instance cc-perf starts with
// before any application configuration is applied.
func NewDefaultSettings() *Settings {
	s := &Settings{
		flatProfile:        false,
		timelineProfile:    false,
		maxThreadBookmarks: DefaultMaxThreadBookmarks,
		Precision:          6,
		Width:              12,
		TimingUnit:         "sec",
		MemoryUnit:         "KB",
		OutputPath:         "./cc-perf-output/",
		OutputPrefix:       "cc-perf",
	}
	s.enabled.Store(true)
	s.maxDepth.Store(NoDepthLimit)
	return s
}

// Keys is the process-wide default Settings instance, analogous to
// metricstore.Keys. The embedding application applies its own configuration
// to it with LoadJSON; Init() (see api.go) does not touch it.
var Keys = NewDefaultSettings()

// LoadJSON overwrites s's fields from raw JSON, falling back to the
// previous value (and logging a ConfigurationError) for any field that
// fails validation. Unknown keys are ignored.
func (s *Settings) LoadJSON(raw []byte) error {
	var in settingsJSON
	if err := json.Unmarshal(raw, &in); err != nil {
		cclog.Warnf("perf: invalid settings JSON, keeping previous values: %s", err.Error())
		return wrapErr(KindConfiguration, "LoadJSON", "malformed settings JSON", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if in.Enabled != nil {
		s.enabled.Store(*in.Enabled)
	}
	if in.MaxDepth != nil {
		if *in.MaxDepth < 0 && *in.MaxDepth != NoDepthLimit {
			cclog.Warnf("perf: ignoring invalid max_depth %d", *in.MaxDepth)
		} else {
			s.maxDepth.Store(int64(*in.MaxDepth))
		}
	}
	if in.FlatProfile != nil {
		s.flatProfile = *in.FlatProfile
	}
	if in.TimelineProfile != nil {
		s.timelineProfile = *in.TimelineProfile
	}
	if in.CollapseThreads != nil {
		s.collapseThreads.Store(*in.CollapseThreads)
	}
	if in.CollapseProcesses != nil {
		s.collapseProcesses.Store(*in.CollapseProcesses)
	}
	if in.MaxThreadBookmarks != nil {
		if *in.MaxThreadBookmarks <= 0 {
			cclog.Warnf("perf: ignoring invalid max_thread_bookmarks %d", *in.MaxThreadBookmarks)
		} else {
			s.maxThreadBookmarks = *in.MaxThreadBookmarks
		}
	}
	if in.Precision != nil {
		s.Precision = *in.Precision
	}
	if in.Width != nil {
		s.Width = *in.Width
	}
	if in.Scientific != nil {
		s.Scientific = *in.Scientific
	}
	if in.TimingUnits != nil {
		s.TimingUnit = *in.TimingUnits
	}
	if in.MemoryUnits != nil {
		s.MemoryUnit = *in.MemoryUnits
	}
	if in.StackClearing != nil {
		s.stackClearing.Store(*in.StackClearing)
	}
	if in.OutputPath != nil {
		s.OutputPath = *in.OutputPath
	}
	if in.OutputPrefix != nil {
		s.OutputPrefix = *in.OutputPrefix
	}
	return nil
}

func (s *Settings) Enabled() bool  { return s.enabled.Load() }
func (s *Settings) SetEnabled(v bool) { s.enabled.Store(v) }

func (s *Settings) MaxDepth() int { return int(s.maxDepth.Load()) }
func (s *Settings) SetMaxDepth(n int) { s.maxDepth.Store(int64(n)) }

func (s *Settings) CollapseThreads() bool { return s.collapseThreads.Load() }
func (s *Settings) StackClearing() bool   { return s.stackClearing.Load() }

// DefaultScope returns the scope mode implied by FlatProfile/TimelineProfile,
// falling back to TreeMode (spec.md §6: flat_profile/timeline_profile select
// the default scope).
func (s *Settings) DefaultScope() ScopeMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.timelineProfile:
		return TimelineMode
	case s.flatProfile:
		return FlatMode
	default:
		return TreeMode
	}
}

func (s *Settings) MaxThreadBookmarks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxThreadBookmarks
}
