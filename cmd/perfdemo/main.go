// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-perf.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command perfdemo drives pkg/perf against a recursive Fibonacci workload,
// running it on a configurable number of worker goroutines the way a real
// application would spawn goroutines per job/request, then finalizes and
// prints a report.
// Its flag/signal/gops wiring follows cmd/cc-backend/main.go.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"

	"github.com/google/gops/agent"

	"github.com/ClusterCockpit/cc-perf/pkg/log"
	"github.com/ClusterCockpit/cc-perf/pkg/perf"
	"github.com/ClusterCockpit/cc-perf/pkg/perf/report"
)

func main() {
	var (
		flagGops            bool
		flagDepth           int
		flagWorkers         int
		flagScope           string
		flagOutputPath      string
		flagMaxDepth        int
		flagLogLevel        string
		flagCollapseThreads bool
	)
	flag.BoolVar(&flagGops, "gops", false, "Listen via github.com/google/gops/agent (for debugging)")
	flag.IntVar(&flagDepth, "n", 20, "Fibonacci depth to compute")
	flag.IntVar(&flagWorkers, "workers", 4, "number of worker goroutines, each computing fib(n)")
	flag.StringVar(&flagScope, "scope", "tree", "default scope mode: tree, flat, or timeline")
	flag.StringVar(&flagOutputPath, "o", "", "write the JSON report here instead of stdout text; %p/%r/%j/%m placeholders expand per rank (report.FormatFilename)")
	flag.IntVar(&flagMaxDepth, "max-depth", perf.NoDepthLimit, "call-graph depth clamp")
	flag.StringVar(&flagLogLevel, "log-level", "info", "application log level: debug, info, notice, warn, err, crit")
	flag.BoolVar(&flagCollapseThreads, "collapse-threads", true, "merge worker call-graphs into the master rank at finalize; false reports each thread as its own rank")
	flag.Parse()

	log.SetLogLevel(flagLogLevel)

	if flagGops {
		if err := agent.Listen(agent.Options{}); err != nil {
			log.Fatalf("gops/agent.Listen failed: %s", err.Error())
		}
	}

	perf.Init("perfdemo", os.Args[1:])
	perf.SetMaxDepth(flagMaxDepth)
	if flagCollapseThreads {
		perf.Keys.LoadJSON([]byte(`{"collapse_threads": true}`))
	}
	switch flagScope {
	case "tree":
	case "flat":
		perf.Keys.LoadJSON([]byte(`{"flat_profile": true}`))
	case "timeline":
		perf.Keys.LoadJSON([]byte(`{"timeline_profile": true}`))
	default:
		log.Fatalf("unknown -scope %q", flagScope)
	}

	stopSignal := perf.InstallSignalFlush(func(master *perf.Graph) {
		report.Text(os.Stdout, master.Root(), report.DefaultOptions(), 0)
	}, os.Interrupt, syscall.SIGTERM)
	defer stopSignal()

	runWorkers(flagWorkers, flagDepth)

	n := perf.Finalize()
	if flagCollapseThreads {
		log.Infof("finalize merged %d worker thread(s) into the master rank", n)
	} else {
		log.Infof("finalize left %d worker thread(s) unmerged", n)
	}

	opts := report.FromSettings(perf.Keys)
	opts.IncludeCollisions = true
	opts.Registry = perf.DefaultRegistry()

	ranks := perf.Ranks()
	rankIDs := make([]string, 0, len(ranks))
	for id := range ranks {
		rankIDs = append(rankIDs, id)
	}
	sort.Strings(rankIDs)

	if flagOutputPath != "" {
		for _, id := range rankIDs {
			path := report.FormatFilename(flagOutputPath, perf.ProgramArgs(), id)
			f, err := os.Create(path)
			if err != nil {
				log.Fatalf("creating %q: %s", path, err.Error())
			}
			err = report.JSON(f, map[string]*perf.Node{id: ranks[id]}, opts)
			f.Close()
			if err != nil {
				log.Fatalf("writing JSON report for rank %q: %s", id, err.Error())
			}
			log.Infof("wrote JSON report for rank %q to %s", id, path)
		}
		return
	}

	for _, id := range rankIDs {
		fmt.Fprintf(os.Stdout, "=== rank %s ===\n", id)
		if err := report.Text(os.Stdout, ranks[id], opts, 0); err != nil {
			log.Fatalf("writing text report for rank %q: %s", id, err.Error())
		}
	}
}

// runWorkers runs the full fib(depth) computation on each of `workers`
// goroutines, each with its own call-graph bookmarked
// back to the main thread (spec.md §4.5), joined before Finalize runs
// (spec.md §5: "workers must have quiesced before being merged").
func runWorkers(workers, depth int) {
	if workers < 1 {
		workers = 1
	}
	h := perf.Timer("main")
	defer h.Stop()

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		workerID := fmt.Sprintf("worker-%d", i)
		g := perf.SpawnWorker("main", workerID)
		wg.Add(1)
		go func(g *perf.Graph, id string) {
			defer wg.Done()
			reg := perf.DefaultRegistry()
			hdl := perf.NewHandle(g, reg, "fib", perf.Keys.DefaultScope())
			fib(g, reg, depth)
			hdl.Stop()
		}(g, workerID)
	}
	wg.Wait()
}

// fib computes the nth Fibonacci number recursively, measuring every call
// under a shared "fib" label. Because each call nests inside its caller,
// TreeMode builds one "fib" node per recursion depth (calls at the same
// depth accumulate laps there), FlatMode accumulates every call at a single
// depth-1 node, and TimelineMode produces one node per call.
func fib(g *perf.Graph, reg *perf.Registry, n int) int {
	h := perf.NewHandle(g, reg, "fib", perf.Keys.DefaultScope())
	defer h.Stop()

	if n < 2 {
		return n
	}
	return fib(g, reg, n-1) + fib(g, reg, n-2)
}
