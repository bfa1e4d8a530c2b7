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
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrNoSamples indicates that statistics were requested over zero samples.
	ErrNoSamples = errors.New("no samples collected")

	// ErrInvalidConfig indicates an invalid benchmark configuration.
	ErrInvalidConfig = errors.New("invalid benchmark configuration")

	// ErrConfiguration indicates the workload could not be resolved before sampling.
	ErrConfiguration = errors.New("workload not resolvable")

	// ErrWorkloadFailed indicates the timed workload returned an error.
	ErrWorkloadFailed = errors.New("workload execution failed")

	// ErrNotConverged indicates the coefficient of variation never met the target.
	ErrNotConverged = errors.New("benchmark did not converge")

	// ErrCalibrationFailed indicates the internal offset could not be measured.
	ErrCalibrationFailed = errors.New("internal offset calibration failed")

	// ErrNoResult is returned by LastResult before any run has terminated.
	ErrNoResult = errors.New("no benchmark result available")
)

// ConfigurationError reports a workload that cannot be invoked.
//
// Description:
//
//	Returned by Run before any sample is taken. The benchmark is never
//	retried; the caller must fix the workload reference.
type ConfigurationError struct {
	// Workload is the name of the unresolvable workload.
	Workload string

	// Err is the underlying cause, if any (e.g. a registry miss).
	Err error
}

// Error implements error.
func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %q: %v", ErrConfiguration, e.Workload, e.Err)
	}
	return fmt.Sprintf("%s: %q", ErrConfiguration, e.Workload)
}

// Unwrap returns the underlying cause.
func (e *ConfigurationError) Unwrap() error { return e.Err }

// Is matches ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// WorkloadError wraps an error returned by the workload during a sample.
type WorkloadError struct {
	Workload string

	// Attempt is the attempt during which the workload failed (1-based).
	Attempt int

	// Iteration is the zero-based iteration within the sample that failed.
	Iteration int

	Err error
}

// Error implements error.
func (e *WorkloadError) Error() string {
	return fmt.Sprintf("%s: %q attempt %d iteration %d: %v",
		ErrWorkloadFailed, e.Workload, e.Attempt, e.Iteration, e.Err)
}

// Unwrap returns the workload's own error.
func (e *WorkloadError) Unwrap() error { return e.Err }

// Is matches ErrWorkloadFailed.
func (e *WorkloadError) Is(target error) bool { return target == ErrWorkloadFailed }

// ConvergenceError reports that MaxTries attempts were consumed without the
// coefficient of variation reaching the target.
//
// Description:
//
//	Result carries the statistics of the last attempt for diagnostics. Its
//	Outcome is OutcomeExhausted; callers must not treat its means as a
//	reliable measurement.
type ConvergenceError struct {
	Result ResultSet

	// Target is the coefficient of variation the run was held to.
	Target float64
}

// Error implements error.
func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("%s: %q after %d attempts (cov %.6g > target %.6g)",
		ErrNotConverged, e.Result.Workload, e.Result.Attempts,
		e.Result.CoefficientOfVariation, e.Target)
}

// Is matches ErrNotConverged.
func (e *ConvergenceError) Is(target error) bool { return target == ErrNotConverged }

// CalibrationError reports a failed internal offset measurement.
//
// No internally adjusted result is produced when calibration fails.
type CalibrationError struct {
	Iterations int
	Err        error
}

// Error implements error.
func (e *CalibrationError) Error() string {
	return fmt.Sprintf("%s at %d iterations: %v", ErrCalibrationFailed, e.Iterations, e.Err)
}

// Unwrap returns the underlying convergence or workload error.
func (e *CalibrationError) Unwrap() error { return e.Err }

// Is matches ErrCalibrationFailed.
func (e *CalibrationError) Is(target error) bool { return target == ErrCalibrationFailed }
