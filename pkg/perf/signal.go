// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-perf.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package perf provides signal.go: best-effort signal-triggered flush
// (SPEC_FULL.md §7), grounded on cc-backend's cmd/cc-backend/main.go signal
// handling around server shutdown.
package perf

import (
	"os"
	"os/signal"

	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
)

// InstallSignalFlush starts a goroutine that, on receipt of any of sigs,
// runs Finalize and invokes onFlush with the merged master Graph, then stops
// relaying sigs and re-raises the received signal so the process's default
// handling of it takes over (this function never calls os.Exit itself).
// A typical embedding application passes
// os.Interrupt and syscall.SIGTERM so an instrumented long-running service
// still emits a report when Ctrl-C'd or container-stopped. Returns a stop
// function that removes the signal handler.
func InstallSignalFlush(onFlush func(*Graph), sigs ...os.Signal) func() {
	if len(sigs) == 0 {
		sigs = []os.Signal{os.Interrupt}
	}
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sigs...)
	done := make(chan struct{})

	go func() {
		select {
		case sig := <-ch:
			cclog.Infof("perf: received %s, finalizing before exit", sig)
			Finalize()
			if onFlush != nil {
				onFlush(Master())
			}
			signal.Stop(ch)
			if p, err := os.FindProcess(os.Getpid()); err == nil {
				if err := p.Signal(sig); err != nil {
					cclog.Warnf("perf: re-raising %s failed: %s", sig, err.Error())
				}
			}
		case <-done:
		}
	}()

	return func() {
		signal.Stop(ch)
		close(done)
	}
}
