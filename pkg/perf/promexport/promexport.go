// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-perf.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package promexport is an additive Prometheus exporter for a finalized
// call-graph (SPEC_FULL.md §6): a second Reporter alongside pkg/perf/report,
// not a replacement for it. Grounded on mdzesseis-log_capturer_go's
// internal/metrics package for the GaugeVec/CounterVec shape, adapted into a
// single dynamic prometheus.Collector since cc-perf's label set (one series
// per hash-path, discovered only at scrape time) can't be declared as a
// fixed set of package-level GaugeVec variables the way a log pipeline's
// known metric names can.
package promexport

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ClusterCockpit/cc-perf/pkg/perf"
)

// Collector walks a *perf.Graph on every Prometheus scrape and emits one
// accumulated-value gauge and one laps counter per node, labeled by hash,
// label and depth. Register it with prometheus.MustRegister (or a custom
// Registry) the way NewMetricsServer registers its static metrics.
type Collector struct {
	graph *perf.Graph

	accumDesc *prometheus.Desc
	lapsDesc  *prometheus.Desc
}

// NewCollector builds a Collector over graph. graph is read fresh on every
// Collect call, so exporting is safe only once the graph has quiesced
// (post-Finalize), matching spec.md §5's "workers must have quiesced ...
// before being merged" discipline extended to the export step.
func NewCollector(graph *perf.Graph) *Collector {
	labels := []string{"hash", "label", "depth", "unit"}
	return &Collector{
		graph: graph,
		accumDesc: prometheus.NewDesc(
			"cc_perf_node_accumulated",
			"Accumulated component value at a call-graph node.",
			labels, nil,
		),
		lapsDesc: prometheus.NewDesc(
			"cc_perf_node_laps_total",
			"Number of completed start/stop cycles at a call-graph node.",
			labels, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.accumDesc
	ch <- c.lapsDesc
}

// Collect implements prometheus.Collector, walking the graph in the same
// pre-order traversal the text/JSON reporters use.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.graph.Walk(func(n *perf.Node) {
		if n.Depth() == 0 {
			return // root carries no measurement of its own
		}
		data := n.Data()
		hash := strconv.FormatUint(n.Hash(), 16)
		depth := strconv.Itoa(n.Depth())

		ch <- prometheus.MustNewConstMetric(
			c.accumDesc, prometheus.GaugeValue,
			float64(data.Accumulated()), hash, n.Label(), depth, data.Unit(),
		)
		ch <- prometheus.MustNewConstMetric(
			c.lapsDesc, prometheus.CounterValue,
			float64(n.Laps()), hash, n.Label(), depth, data.Unit(),
		)
	})
}
