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
	"context"
	"errors"
	"sync"
)

// OffsetCache holds calibrated internal offsets keyed by iteration count.
//
// Description:
//
//	One cache may be shared by many runners so that a driver benchmarking
//	a list of workloads calibrates once per iteration count. Entries are
//	replaced only by an explicit Store (a successful calibration) or
//	removed by Invalidate.
//
// Thread Safety: Safe for concurrent use via read-write mutex.
type OffsetCache struct {
	mu      sync.RWMutex
	offsets map[int]float64
}

// NewOffsetCache creates an empty cache.
func NewOffsetCache() *OffsetCache {
	return &OffsetCache{offsets: make(map[int]float64)}
}

// Lookup returns the offset for the iteration count, if calibrated.
func (c *OffsetCache) Lookup(iterations int) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.offsets[iterations]
	return v, ok
}

// Store records a calibrated offset.
func (c *OffsetCache) Store(iterations int, offset float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offsets[iterations] = offset
}

// Invalidate drops the offset for the iteration count.
func (c *OffsetCache) Invalidate(iterations int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.offsets, iterations)
}

// calibrator measures the harness's own per-sample overhead.
//
// Description:
//
//	A true no-op workload is pushed through the same attempt loop as real
//	benchmarks, with the same argument and iteration count, a dedicated
//	sample size and a stricter coefficient of variation target. The
//	resulting raw mean is the internal offset.
type calibrator struct {
	runner *Runner
}

// calibrate runs the no-op benchmark and stores the offset on success.
//
// Outputs:
//   - float64: The calibrated internal offset in seconds per sample.
//   - error: *CalibrationError if the no-op run did not converge. The
//     cache is left untouched in that case.
func (c *calibrator) calibrate(ctx context.Context) (float64, error) {
	r := c.runner
	if r == nil {
		return 0, &CalibrationError{Err: errors.New("calibrator has no runner")}
	}
	cfg := r.cfg
	cfg.SampleSize = cfg.CalibrationSampleSize
	cfg.TargetCoV = cfg.calibrationTarget()
	cfg.ManualOffset = 0

	stub := Workload{Name: r.workload.Name, Fn: noop, Arg: r.workload.Arg}

	res, err := r.attempts(ctx, stub, cfg, 0, true)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return 0, err
		}
		return 0, &CalibrationError{Iterations: cfg.Iterations, Err: err}
	}

	r.offsets.Store(cfg.Iterations, res.RawMean)
	r.logger.Debug("internal offset calibrated",
		"workload", r.workload.Name,
		"iterations", cfg.Iterations,
		"offset_seconds", res.RawMean,
		"attempts", res.Attempts,
	)
	return res.RawMean, nil
}
