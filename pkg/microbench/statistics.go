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
	"math"
	"sort"
)

// -----------------------------------------------------------------------------
// Statistics Functions
// -----------------------------------------------------------------------------

// Statistics summarises one attempt's sample set.
//
// Description:
//
//	Stdev holds the population variance of the samples (mean of squared
//	deviations, divisor N). It is used as a stability signal, not as an
//	unbiased estimator, and CoefficientOfVariation is Stdev / RawMean.
//
// Thread Safety: Safe for concurrent read access after creation.
type Statistics struct {
	// N is the number of samples.
	N int

	// RawMean is the arithmetic mean in seconds.
	RawMean float64

	// Stdev is the population variance of the samples.
	Stdev float64

	// CoefficientOfVariation is Stdev / RawMean. See ComputeStatistics for
	// the zero-mean policy.
	CoefficientOfVariation float64
}

// Indeterminate reports whether the coefficient of variation could not be
// defined because the mean is zero while the samples still vary.
func (s Statistics) Indeterminate() bool {
	return math.IsInf(s.CoefficientOfVariation, 1)
}

// ComputeStatistics computes mean, variance and coefficient of variation.
//
// Description:
//
//	Sums are taken over a sorted copy of the input so that any permutation
//	of the same samples yields bit-identical results.
//
//	Zero-mean policy: when RawMean is exactly zero and every sample is
//	zero, the coefficient of variation is 0 (perfectly stable). When
//	RawMean is zero but the samples vary, it is +Inf, which never
//	satisfies a finite target.
//
// Inputs:
//   - samples: Elapsed seconds per sample. Must not be empty.
//
// Outputs:
//   - Statistics: Computed statistics.
//   - error: ErrNoSamples if samples is empty.
//
// Thread Safety: This function is stateless and safe for concurrent use.
//
// Example:
//
//	stats, err := ComputeStatistics([]float64{0.010, 0.011, 0.009})
//	if err != nil {
//	    return err
//	}
//	fmt.Printf("cov=%.4f\n", stats.CoefficientOfVariation)
func ComputeStatistics(samples []float64) (Statistics, error) {
	if len(samples) == 0 {
		return Statistics{}, ErrNoSamples
	}

	sorted := make([]float64, len(samples))
	copy(sorted, samples)
	sort.Float64s(sorted)

	n := float64(len(sorted))

	var sum float64
	for _, s := range sorted {
		sum += s
	}
	mean := sum / n

	var sumSquaredDiff float64
	for _, s := range sorted {
		diff := s - mean
		sumSquaredDiff += diff * diff
	}
	variance := sumSquaredDiff / n

	return Statistics{
		N:                      len(sorted),
		RawMean:                mean,
		Stdev:                  variance,
		CoefficientOfVariation: coefficientOfVariation(mean, variance),
	}, nil
}

// coefficientOfVariation applies the zero-mean policy documented on
// ComputeStatistics.
func coefficientOfVariation(mean, stdev float64) float64 {
	if mean == 0 {
		if stdev == 0 {
			return 0
		}
		return math.Inf(1)
	}
	return stdev / mean
}
