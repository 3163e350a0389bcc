// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-perf.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/ClusterCockpit/cc-perf/pkg/perf"
)

func buildFixtureGraph(t *testing.T) (*perf.Graph, *perf.Registry) {
	t.Helper()
	settings := perf.NewDefaultSettings()
	g := perf.NewGraph(settings, func() perf.Component { return perf.NewWallClockComponent() })
	reg := perf.NewRegistry()

	outerHash, err := reg.HashFor("outer")
	if err != nil {
		t.Fatalf("HashFor: %v", err)
	}
	innerHash, err := reg.HashFor("inner")
	if err != nil {
		t.Fatalf("HashFor: %v", err)
	}

	outerNode, outerTok := g.Insert(outerHash, "outer", perf.TreeMode)
	outerNode.Data().Start()
	innerNode, innerTok := g.Insert(innerHash, "inner", perf.TreeMode)
	innerNode.Data().Start()
	innerNode.Data().Stop()
	g.Pop(innerTok)
	outerNode.Data().Stop()
	g.Pop(outerTok)

	return g, reg
}

func TestTextRendersEveryNodeIndentedByDepth(t *testing.T) {
	g, _ := buildFixtureGraph(t)

	var buf bytes.Buffer
	if err := Text(&buf, g.Root(), DefaultOptions(), 0); err != nil {
		t.Fatalf("Text: %v", err)
	}

	out := buf.String()
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("Text produced %d lines, want 3 (root, outer, inner): %q", len(lines), out)
	}
	if !strings.Contains(lines[1], "outer") {
		t.Fatalf("line 1 = %q, want it to mention \"outer\"", lines[1])
	}
	if !strings.HasPrefix(lines[2], "    ") {
		t.Fatalf("inner line not indented two levels: %q", lines[2])
	}
}

func TestTextFiltersBelowMinValue(t *testing.T) {
	g, _ := buildFixtureGraph(t)

	var buf bytes.Buffer
	// A minValue far above anything this fixture could accumulate in real
	// time prunes every non-root node from the output.
	if err := Text(&buf, g.Root(), DefaultOptions(), 1e9); err != nil {
		t.Fatalf("Text: %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 1 {
		t.Fatalf("Text with a very high minValue produced %d lines, want 1 (root only): %q", len(lines), buf.String())
	}
}

func TestJSONRoundTripsShapeAndFields(t *testing.T) {
	g, reg := buildFixtureGraph(t)

	opts := DefaultOptions()
	opts.Registry = reg

	var buf bytes.Buffer
	ranks := map[string]*perf.Node{"rank0": g.Root()}
	if err := JSON(&buf, ranks, opts); err != nil {
		t.Fatalf("JSON: %v", err)
	}

	var doc struct {
		Ranks []struct {
			TID   string `json:"tid"`
			Graph []struct {
				Label    string `json:"label"`
				Laps     int64  `json:"laps"`
				Unit     string `json:"unit"`
				Children []struct {
					Label    string          `json:"label"`
					Children []map[string]any `json:"children"`
				} `json:"children"`
			} `json:"graph"`
		} `json:"ranks"`
	}
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("JSON output did not parse: %v\n%s", err, buf.String())
	}

	if len(doc.Ranks) != 1 || doc.Ranks[0].TID != "rank0" {
		t.Fatalf("Ranks = %+v, want one entry with tid \"rank0\"", doc.Ranks)
	}
	if len(doc.Ranks[0].Graph) != 1 {
		t.Fatalf("Graph = %+v, want a single root entry", doc.Ranks[0].Graph)
	}
	root := doc.Ranks[0].Graph[0]
	if len(root.Children) != 1 || root.Children[0].Label != "outer" {
		t.Fatalf("root.Children = %+v, want a single \"outer\" child", root.Children)
	}
	if len(root.Children[0].Children) != 1 {
		t.Fatalf("outer.Children = %+v, want a single \"inner\" child", root.Children[0].Children)
	}
}

func TestLabelForLeavesNonCollidingLabelUnannotated(t *testing.T) {
	settings := perf.NewDefaultSettings()
	g := perf.NewGraph(settings, func() perf.Component { return perf.NewWallClockComponent() })
	reg := perf.NewRegistry()

	h, _ := reg.HashFor("alpha")
	node, tok := g.Insert(h, "alpha", perf.TreeMode)
	g.Pop(tok)

	opts := DefaultOptions()
	opts.IncludeCollisions = true
	opts.Registry = reg

	// With only one label ever registered under h, no collision annotation
	// should appear.
	if got := labelFor(node, opts); got != "alpha" {
		t.Fatalf("labelFor() = %q, want %q (no collisions yet)", got, "alpha")
	}
}

func TestScaledValueFallsBackToDefaultUnitOnUnknownSetting(t *testing.T) {
	opts := DefaultOptions()
	opts.TimingUnit = "fortnights" // not a recognized timing unit

	_, unit := scaledValue(1, perf.CategoryTiming, opts)
	if unit != "sec" {
		t.Fatalf("scaledValue fell back to unit %q, want %q", unit, "sec")
	}
}

func TestScaledValueConvertsTimingUnits(t *testing.T) {
	opts := DefaultOptions()
	opts.TimingUnit = "ms"

	v, unit := scaledValue(1.5, perf.CategoryTiming, opts)
	if unit != "ms" || v != 1500 {
		t.Fatalf("scaledValue(1.5s, ms) = (%v, %q), want (1500, \"ms\")", v, unit)
	}
}

func TestScaledValueConvertsMemoryUnits(t *testing.T) {
	opts := DefaultOptions()
	opts.MemoryUnit = "MB"

	v, unit := scaledValue(2048, perf.CategoryMemory, opts)
	if unit != "MB" || v != 2 {
		t.Fatalf("scaledValue(2048KB, MB) = (%v, %q), want (2, \"MB\")", v, unit)
	}
}

func TestFormatNumberPadsToWidth(t *testing.T) {
	opts := DefaultOptions()
	opts.Width = 10
	opts.Precision = 2

	s := formatNumber(1.5, opts)
	if len(s) != 10 {
		t.Fatalf("formatNumber width = %d, want 10 (%q)", len(s), s)
	}
}
