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
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeStatistics(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		_, err := ComputeStatistics(nil)
		assert.ErrorIs(t, err, ErrNoSamples)
	})

	t.Run("identical samples", func(t *testing.T) {
		stats, err := ComputeStatistics([]float64{2, 2, 2, 2})
		require.NoError(t, err)
		assert.Equal(t, 4, stats.N)
		assert.Equal(t, 2.0, stats.RawMean)
		assert.Equal(t, 0.0, stats.Stdev)
		assert.Equal(t, 0.0, stats.CoefficientOfVariation)
	})

	t.Run("population variance", func(t *testing.T) {
		// mean 2, squared deviations 1+0+1, divided by N=3
		stats, err := ComputeStatistics([]float64{1, 2, 3})
		require.NoError(t, err)
		assert.InDelta(t, 2.0, stats.RawMean, 1e-12)
		assert.InDelta(t, 2.0/3.0, stats.Stdev, 1e-12)
		assert.InDelta(t, (2.0/3.0)/2.0, stats.CoefficientOfVariation, 1e-12)
		assert.False(t, stats.Indeterminate())
	})

	t.Run("single sample", func(t *testing.T) {
		stats, err := ComputeStatistics([]float64{0.5})
		require.NoError(t, err)
		assert.Equal(t, 0.5, stats.RawMean)
		assert.Equal(t, 0.0, stats.Stdev)
		assert.Equal(t, 0.0, stats.CoefficientOfVariation)
	})

	t.Run("all zero", func(t *testing.T) {
		stats, err := ComputeStatistics([]float64{0, 0, 0})
		require.NoError(t, err)
		assert.Equal(t, 0.0, stats.CoefficientOfVariation)
		assert.False(t, stats.Indeterminate())
	})

	t.Run("zero mean with spread", func(t *testing.T) {
		stats, err := ComputeStatistics([]float64{-1, 1})
		require.NoError(t, err)
		assert.Equal(t, 0.0, stats.RawMean)
		assert.Equal(t, 1.0, stats.Stdev)
		assert.True(t, math.IsInf(stats.CoefficientOfVariation, 1))
		assert.True(t, stats.Indeterminate())
	})

	t.Run("does not reorder input", func(t *testing.T) {
		in := []float64{3, 1, 2}
		_, err := ComputeStatistics(in)
		require.NoError(t, err)
		assert.Equal(t, []float64{3, 1, 2}, in)
	})
}

func TestComputeStatistics_PermutationInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	samples := make([]float64, 50)
	for i := range samples {
		samples[i] = 1e-3 + rng.Float64()*1e-4
	}

	want, err := ComputeStatistics(samples)
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		shuffled := make([]float64, len(samples))
		copy(shuffled, samples)
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})

		got, err := ComputeStatistics(shuffled)
		require.NoError(t, err)
		assert.Equal(t, want, got, "permutation %d", i)
	}
}

func TestComputeStatistics_NonNegative(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 100; i++ {
		samples := make([]float64, 1+rng.Intn(40))
		for j := range samples {
			samples[j] = rng.Float64()
		}
		stats, err := ComputeStatistics(samples)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, stats.Stdev, 0.0)
		assert.GreaterOrEqual(t, stats.CoefficientOfVariation, 0.0)
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg := DefaultConfig()
		require.NoError(t, cfg.Validate())
		assert.Equal(t, 100000, cfg.Iterations)
		assert.Equal(t, 30, cfg.SampleSize)
		assert.Equal(t, 5, cfg.MaxTries)
		assert.Equal(t, 0.01, cfg.TargetCoV)
		assert.Equal(t, 100, cfg.CalibrationSampleSize)
		assert.Equal(t, 0.005, cfg.CalibrationTargetCoV)
	})

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero iterations", func(c *Config) { c.Iterations = 0 }},
		{"negative sample size", func(c *Config) { c.SampleSize = -1 }},
		{"zero tries", func(c *Config) { c.MaxTries = 0 }},
		{"zero target", func(c *Config) { c.TargetCoV = 0 }},
		{"nan target", func(c *Config) { c.TargetCoV = math.NaN() }},
		{"infinite target", func(c *Config) { c.TargetCoV = math.Inf(1) }},
		{"nan manual offset", func(c *Config) { c.ManualOffset = math.NaN() }},
		{"zero calibration samples", func(c *Config) { c.CalibrationSampleSize = 0 }},
		{"negative calibration target", func(c *Config) { c.CalibrationTargetCoV = -0.1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}

	t.Run("negative manual offset allowed", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.ManualOffset = -0.25
		assert.NoError(t, cfg.Validate())
	})
}

func TestConfig_CalibrationTarget(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 0.005, cfg.calibrationTarget())

	cfg.TargetCoV = 0.001
	assert.Equal(t, 0.001, cfg.calibrationTarget())
}
