// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package microbench

import (
	"github.com/benbjohnson/clock"
)

// Func is a unit of work. The same argument is passed to every call.
// A non-nil error aborts the current sample.
type Func func(arg any) error

// Workload is a callable plus the argument passed to each invocation.
//
// A Workload with a nil Fn is unresolvable; Run rejects it with a
// *ConfigurationError before any timing occurs.
type Workload struct {
	// Name identifies the workload in results, logs and metrics.
	Name string

	// Fn is invoked Iterations times per sample.
	Fn Func

	// Arg is passed unchanged to every call of Fn.
	Arg any
}

// Resolvable reports whether the workload can be invoked.
func (w Workload) Resolvable() bool { return w.Fn != nil }

// noop is the calibration workload.
func noop(any) error { return nil }

// Stopwatch times a fixed number of consecutive workload calls.
//
// Thread Safety: A Stopwatch holds no mutable state; concurrent timing is
// safe but produces meaningless measurements.
type Stopwatch struct {
	clock clock.Clock
}

// NewStopwatch creates a stopwatch reading the given clock.
//
// Inputs:
//   - c: Time source. If nil, the wall clock is used.
//
// Outputs:
//   - *Stopwatch: Never nil.
func NewStopwatch(c clock.Clock) *Stopwatch {
	if c == nil {
		c = clock.New()
	}
	return &Stopwatch{clock: c}
}

// Time runs fn(arg) iterations times and returns the elapsed seconds.
//
// Description:
//
//	The loop does nothing but call the workload and check its error, so
//	the per-call harness cost is the same for real workloads and for the
//	no-op used in calibration. Panics raised by the workload are not
//	recovered.
//
// Inputs:
//   - fn: Workload function. Must not be nil.
//   - arg: Argument passed to every call.
//   - iterations: Number of calls. Must be positive.
//
// Outputs:
//   - float64: Elapsed wall-clock seconds for the whole loop.
//   - int: Index of the failing iteration, or -1 on success.
//   - error: The workload's error, unwrapped.
func (s *Stopwatch) Time(fn Func, arg any, iterations int) (float64, int, error) {
	start := s.clock.Now()
	for i := 0; i < iterations; i++ {
		if err := fn(arg); err != nil {
			return 0, i, err
		}
	}
	return s.clock.Since(start).Seconds(), -1, nil
}
