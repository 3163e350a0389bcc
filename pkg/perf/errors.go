// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-perf.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package perf

import "fmt"

// Kind classifies a PerfError the way the reference design separates
// configuration mistakes from logic errors from fatal conditions.
type Kind int

const (
	// KindConfiguration means a Settings value was invalid; the caller's
	// value is rejected and the previous/default value is kept.
	KindConfiguration Kind = iota
	// KindLogic means a usage mistake such as a double start or a pop
	// without a matching insert. Never fatal, always recoverable.
	KindLogic
	// KindDepthExceeded is not really an error: it marks an insertion that
	// was silently suppressed because max_depth was reached.
	KindDepthExceeded
	// KindIO means a report destination (file) could not be opened.
	KindIO
	// KindHashCollision means two distinct labels hashed to the same
	// 64-bit identifier.
	KindHashCollision
	// KindFatal is reserved for unrecoverable conditions during merge
	// (e.g. memory exhaustion); Finalize returns without writing partial
	// output when this occurs.
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindLogic:
		return "logic"
	case KindDepthExceeded:
		return "depth-exceeded"
	case KindIO:
		return "io"
	case KindHashCollision:
		return "hash-collision"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// PerfError is the single error type returned or logged by this package.
// User-facing calls never panic or propagate errors upward by themselves
// (per the propagation policy); PerfError values are either logged via
// cclog or, for the handful of calls that do return an error
// (Settings.LoadJSON, Registry.HashFor), returned to the caller.
type PerfError struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *PerfError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[PERF]> %s: %s: %s: %v", e.Kind, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("[PERF]> %s: %s: %s", e.Kind, e.Op, e.Message)
}

func (e *PerfError) Unwrap() error {
	return e.Err
}

func newErr(k Kind, op, msg string) *PerfError {
	return &PerfError{Kind: k, Op: op, Message: msg}
}

func wrapErr(k Kind, op, msg string, err error) *PerfError {
	return &PerfError{Kind: k, Op: op, Message: msg, Err: err}
}
