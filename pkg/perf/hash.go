// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-perf.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package perf provides hash.go: the label -> hash64 registry.
//
// Grounded on pkg/metricstore/level.go's map-keyed lookup pattern, but the
// mapping itself is maintained by a dedicated Registry rather than living
// inside the tree: labels must hash identically across threads and across
// Graph instances (spec.md §3 "Hash"), so one process-wide table is shared,
// guarded the way the spec describes: "idempotent and thread-safe under a
// single writer mutex; lookups are lock-free after publication."
package perf

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
)

// Registry maps labels to stable 64-bit identifiers and back.
//
// Reads (HashFor on an already-seen label) hit an atomic snapshot without
// taking the mutex; writes (a brand new label) take the mutex, insert into
// both maps, then republish the snapshot. This is the same "rare write,
// frequent read" shape as cc-backend's Level.findLevelOrCreate double-checked
// locking, adapted to a flat map instead of a tree.
type Registry struct {
	mu   sync.Mutex
	fwd  atomic.Pointer[map[string]uint64]   // label -> hash, published snapshot
	back map[uint64][]string                 // hash -> all labels that produced it (collisions)
}

// NewRegistry returns an empty, ready-to-use Registry.
func NewRegistry() *Registry {
	r := &Registry{back: make(map[uint64][]string)}
	empty := make(map[string]uint64)
	r.fwd.Store(&empty)
	return r
}

// normalize trims surrounding whitespace so "foo", " foo", and "foo " hash
// identically (spec.md §8 boundary behavior). It does not otherwise alter
// the label.
func normalize(label string) string {
	return strings.TrimSpace(label)
}

// HashFor returns the stable 64-bit identifier for label, inserting it into
// the registry if this is the first time it has been seen anywhere in the
// process. Empty labels (after trimming) are rejected.
func (r *Registry) HashFor(label string) (uint64, error) {
	norm := normalize(label)
	if norm == "" {
		return 0, newErr(KindLogic, "HashFor", "empty label rejected")
	}

	if m := r.fwd.Load(); m != nil {
		if h, ok := (*m)[norm]; ok {
			return h, nil
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Re-check: another goroutine may have published it while we waited.
	cur := *r.fwd.Load()
	if h, ok := cur[norm]; ok {
		return h, nil
	}

	h := xxhash.Sum64String(norm)
	if existing, ok := r.back[h]; ok {
		// Hash collision: two distinct labels produced the identical hash.
		// Both are retained; the first-inserted label remains primary.
		cclog.Warnf("perf: hash collision on %#x between %q and %q", h, existing[0], norm)
		r.back[h] = append(existing, norm)
	} else {
		r.back[h] = []string{norm}
	}

	next := make(map[string]uint64, len(cur)+1)
	for k, v := range cur {
		next[k] = v
	}
	next[norm] = h
	r.fwd.Store(&next)

	return h, nil
}

// LabelFor returns the primary (first-inserted) label for hash, and whether
// that hash is known to the registry at all.
func (r *Registry) LabelFor(hash uint64) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	labels, ok := r.back[hash]
	if !ok || len(labels) == 0 {
		return "", false
	}
	return labels[0], true
}

// Collisions returns the full set of labels registered under hash, for
// callers that want to annotate a report entry the way spec.md §7.5 requires.
func (r *Registry) Collisions(hash uint64) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	labels := r.back[hash]
	out := make([]string, len(labels))
	copy(out, labels)
	return out
}

// defaultRegistry is the process-wide registry used by the package-level
// convenience API (api.go). Applications that want full isolation (e.g.
// unit tests) construct their own Registry and Graph pair instead.
var defaultRegistry = NewRegistry()
