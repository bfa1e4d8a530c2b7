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
	"fmt"
	"math"
	"time"
)

// -----------------------------------------------------------------------------
// Results
// -----------------------------------------------------------------------------

// Outcome is the terminal state a ResultSet was produced in.
type Outcome int

const (
	// OutcomeAccepted means the coefficient of variation met the target.
	OutcomeAccepted Outcome = iota + 1

	// OutcomeExhausted means MaxTries attempts were consumed without meeting it.
	OutcomeExhausted
)

// String returns the string representation of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeAccepted:
		return "accepted"
	case OutcomeExhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// ResultSet is an immutable snapshot of one benchmark run.
//
// Description:
//
//	Produced once per terminal transition of the runner. All means are in
//	seconds per sample (Iterations calls). FullyAdjustedMean may be
//	negative when the workload is cheaper than the residual calibration
//	noise; that is reported, not treated as an error.
//
//	Invariants:
//	  InternallyAdjustedMean == RawMean - InternalOffset
//	  FullyAdjustedMean      == InternallyAdjustedMean - ManualOffset
//
// Thread Safety: Safe for concurrent read access. The value is never
// mutated after creation; Samples returns a copy.
type ResultSet struct {
	Workload   string
	Outcome    Outcome
	Attempts   int
	Iterations int
	SampleSize int

	InternalOffset float64
	ManualOffset   float64

	RawMean                float64
	Stdev                  float64
	CoefficientOfVariation float64

	InternallyAdjustedMean float64
	FullyAdjustedMean      float64

	// CompletedAt is when the terminal transition happened.
	CompletedAt time.Time

	samples []float64
}

// newResultSet builds a snapshot from the final attempt's statistics.
func newResultSet(w string, outcome Outcome, attempt int, cfg Config, internalOffset float64, stats Statistics, samples []float64, at time.Time) ResultSet {
	internallyAdjusted := stats.RawMean - internalOffset
	kept := make([]float64, len(samples))
	copy(kept, samples)

	return ResultSet{
		Workload:               w,
		Outcome:                outcome,
		Attempts:               attempt,
		Iterations:             cfg.Iterations,
		SampleSize:             len(samples),
		InternalOffset:         internalOffset,
		ManualOffset:           cfg.ManualOffset,
		RawMean:                stats.RawMean,
		Stdev:                  stats.Stdev,
		CoefficientOfVariation: stats.CoefficientOfVariation,
		InternallyAdjustedMean: internallyAdjusted,
		FullyAdjustedMean:      internallyAdjusted - cfg.ManualOffset,
		CompletedAt:            at,
		samples:                kept,
	}
}

// Accepted reports whether the run converged.
func (r ResultSet) Accepted() bool { return r.Outcome == OutcomeAccepted }

// Samples returns a copy of the final attempt's samples in seconds.
func (r ResultSet) Samples() []float64 {
	out := make([]float64, len(r.samples))
	copy(out, r.samples)
	return out
}

// PerCall returns FullyAdjustedMean divided by Iterations as a duration.
func (r ResultSet) PerCall() time.Duration {
	if r.Iterations <= 0 {
		return 0
	}
	return time.Duration(math.Round(r.FullyAdjustedMean / float64(r.Iterations) * float64(time.Second)))
}

// Statistics returns the statistics the snapshot was built from.
func (r ResultSet) Statistics() Statistics {
	return Statistics{
		N:                      r.SampleSize,
		RawMean:                r.RawMean,
		Stdev:                  r.Stdev,
		CoefficientOfVariation: r.CoefficientOfVariation,
	}
}
