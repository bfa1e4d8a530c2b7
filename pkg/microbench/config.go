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
	"errors"
	"fmt"
	"math"
)

// -----------------------------------------------------------------------------
// Configuration
// -----------------------------------------------------------------------------

// Config holds the sampling parameters for one benchmark instance.
//
// Description:
//
//	Iterations is fixed for the lifetime of a Runner: the internal offset
//	is only valid for the iteration count it was measured with. Use
//	DefaultConfig() and override fields as needed.
//
// Thread Safety: Safe for concurrent read access after initialization.
type Config struct {
	// Iterations is the number of consecutive workload calls per sample.
	// Default: 100000
	Iterations int

	// SampleSize is the number of samples collected per attempt.
	// Default: 30
	SampleSize int

	// MaxTries bounds the number of attempts.
	// Default: 5
	MaxTries int

	// TargetCoV is the acceptance threshold for the coefficient of variation.
	// Default: 0.01
	TargetCoV float64

	// ManualOffset is subtracted after the internal offset.
	// Default: 0
	ManualOffset float64

	// CalibrationSampleSize is the sample size of the no-op calibration run.
	// Default: 100
	CalibrationSampleSize int

	// CalibrationTargetCoV is the threshold for the calibration run. The
	// effective threshold is never looser than TargetCoV.
	// Default: 0.005
	CalibrationTargetCoV float64
}

// DefaultConfig returns a configuration with default values.
//
// Outputs:
//   - Config: Configuration with default values.
//
// Example:
//
//	cfg := microbench.DefaultConfig()
//	cfg.Iterations = 1000
//	cfg.TargetCoV = 0.02
func DefaultConfig() Config {
	return Config{
		Iterations:            100000,
		SampleSize:            30,
		MaxTries:              5,
		TargetCoV:             0.01,
		ManualOffset:          0,
		CalibrationSampleSize: 100,
		CalibrationTargetCoV:  0.005,
	}
}

// Validate checks that the configuration is valid.
//
// Outputs:
//   - error: Non-nil if any field is invalid. Wraps ErrInvalidConfig and
//     joins one error per offending field.
func (c Config) Validate() error {
	var errs []error
	if c.Iterations <= 0 {
		errs = append(errs, errors.New("iterations must be positive"))
	}
	if c.SampleSize <= 0 {
		errs = append(errs, errors.New("sample size must be positive"))
	}
	if c.MaxTries <= 0 {
		errs = append(errs, errors.New("max tries must be positive"))
	}
	if !(c.TargetCoV > 0) || math.IsInf(c.TargetCoV, 0) {
		errs = append(errs, fmt.Errorf("target coefficient of variation must be positive and finite, got %v", c.TargetCoV))
	}
	if math.IsNaN(c.ManualOffset) || math.IsInf(c.ManualOffset, 0) {
		errs = append(errs, fmt.Errorf("manual offset must be finite, got %v", c.ManualOffset))
	}
	if c.CalibrationSampleSize <= 0 {
		errs = append(errs, errors.New("calibration sample size must be positive"))
	}
	if !(c.CalibrationTargetCoV > 0) || math.IsInf(c.CalibrationTargetCoV, 0) {
		errs = append(errs, fmt.Errorf("calibration target coefficient of variation must be positive and finite, got %v", c.CalibrationTargetCoV))
	}
	if len(errs) > 0 {
		return errors.Join(append([]error{ErrInvalidConfig}, errs...)...)
	}
	return nil
}

// calibrationTarget is the threshold used for the no-op calibration run.
func (c Config) calibrationTarget() float64 {
	return math.Min(c.CalibrationTargetCoV, c.TargetCoV)
}
