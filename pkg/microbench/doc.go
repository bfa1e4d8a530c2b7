// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package microbench measures the per-call cost of small functions.
//
// # Overview
//
// A benchmark run repeatedly times a workload called Iterations times per
// sample, collects SampleSize samples, and accepts the run once the
// coefficient of variation of those samples is at or below TargetCoV.
// Otherwise it discards the samples and tries again, up to MaxTries
// attempts.
//
// # State Machine
//
//	Idle ──► Sampling ──► Evaluating ──┬──► Accepted
//	            ▲                      ├──► Retrying ──┐
//	            │                      └──► Exhausted  │
//	            └──────────────────────────────────────┘
//
// # Offsets
//
// The harness itself costs time. Before the first run for a given
// iteration count, a no-op workload is pushed through the same loop with
// a larger sample size and a stricter target. Its mean is the internal
// offset and is subtracted from every raw mean:
//
//	InternallyAdjustedMean = RawMean - InternalOffset
//	FullyAdjustedMean      = InternallyAdjustedMean - ManualOffset
//
// Offsets are cached per iteration count in an OffsetCache that may be
// shared across runners.
//
// # Statistics
//
// Statistics.Stdev holds the population variance (mean squared deviation,
// divided by N), and CoefficientOfVariation is that value divided by the
// mean. The field names are kept for compatibility with existing reports;
// thresholds are tuned against this definition.
//
// # Usage
//
//	cache := microbench.NewOffsetCache()
//	r, err := microbench.New(w, microbench.DefaultConfig(),
//	    microbench.WithOffsetCache(cache),
//	    microbench.WithLogger(logger),
//	)
//	if err != nil {
//	    return err
//	}
//	res, err := r.Run(ctx)
//	var conv *microbench.ConvergenceError
//	if errors.As(err, &conv) {
//	    // res is the exhausted snapshot
//	}
package microbench
