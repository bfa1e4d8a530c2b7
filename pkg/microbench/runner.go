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
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/benbjohnson/clock"
)

// Option configures a Runner.
type Option func(*Runner)

// WithClock sets the time source. Tests use clock.NewMock().
func WithClock(c clock.Clock) Option {
	return func(r *Runner) {
		if c != nil {
			r.clock = c
		}
	}
}

// WithLogger sets the logger for transition and calibration events.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithOffsetCache shares a calibration cache between runners.
func WithOffsetCache(c *OffsetCache) Option {
	return func(r *Runner) {
		if c != nil {
			r.offsets = c
		}
	}
}

// WithObserver adds an observer notified of every transition.
func WithObserver(o Observer) Option {
	return func(r *Runner) {
		if o != nil {
			r.observers = append(r.observers, o)
		}
	}
}

// Runner executes one workload under one configuration.
//
// Description:
//
//	A Runner holds configuration and a reference to the calibration cache.
//	Each Run produces a fresh ResultSet; the runner only keeps a pointer
//	to the most recent snapshot for LastResult.
//
// Thread Safety: Run and Calibrate must not be called concurrently with
// each other or with another runner on the same CPU; timings taken under
// contention are invalid. LastResult is safe for concurrent use.
type Runner struct {
	workload  Workload
	cfg       Config
	clock     clock.Clock
	stopwatch *Stopwatch
	logger    *slog.Logger
	offsets   *OffsetCache
	observers []Observer

	last atomic.Pointer[ResultSet]
}

// New configures a runner.
//
// Description:
//
//	The configuration is copied; Iterations can therefore not change
//	between calibration and measurement. The workload is not checked
//	here: an unresolvable workload surfaces as *ConfigurationError from
//	Run, before any sample is taken.
//
// Inputs:
//   - w: The workload to benchmark.
//   - cfg: Sampling parameters. Must pass Validate.
//   - opts: Optional clock, logger, cache and observers.
//
// Outputs:
//   - *Runner: The configured runner. Nil on error.
//   - error: Wraps ErrInvalidConfig if cfg is invalid.
//
// Example:
//
//	r, err := microbench.New(microbench.Workload{
//	    Name: "strings_fields",
//	    Fn:   func(arg any) error { _ = strings.Fields(arg.(string)); return nil },
//	    Arg:  "a b c",
//	}, microbench.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	res, err := r.Run(ctx)
func New(w Workload, cfg Config, opts ...Option) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := &Runner{
		workload: w,
		cfg:      cfg,
		clock:    clock.New(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.offsets == nil {
		r.offsets = NewOffsetCache()
	}
	r.stopwatch = NewStopwatch(r.clock)
	r.logger = r.logger.With("workload", w.Name)
	return r, nil
}

// Config returns a copy of the runner's configuration.
func (r *Runner) Config() Config { return r.cfg }

// InternalOffset returns the cached offset for this runner's iteration count.
func (r *Runner) InternalOffset() (float64, bool) {
	return r.offsets.Lookup(r.cfg.Iterations)
}

// Calibrate measures and caches the internal offset.
//
// Description:
//
//	Always recomputes, even if an offset is cached. Calling it twice with
//	unchanged Iterations yields the same offset within measurement noise.
//
// Outputs:
//   - float64: The internal offset in seconds per sample.
//   - error: *ConfigurationError if the workload is unresolvable,
//     *CalibrationError if the no-op run did not converge.
func (r *Runner) Calibrate(ctx context.Context) (float64, error) {
	if !r.workload.Resolvable() {
		return 0, &ConfigurationError{Workload: r.workload.Name}
	}
	c := &calibrator{runner: r}
	return c.calibrate(ctx)
}

// Run benchmarks the workload until the coefficient of variation is
// acceptable or MaxTries attempts are exhausted.
//
// Description:
//
//	Calibrates first if no offset is cached for the iteration count.
//	Every attempt is a full, fresh resample.
//
// Outputs:
//   - ResultSet: The accepted snapshot; on *ConvergenceError the
//     exhausted snapshot (also available via the error). Zero otherwise.
//   - error: nil when accepted, otherwise one of *ConfigurationError,
//     *CalibrationError, *WorkloadError, *ConvergenceError or a context
//     error.
func (r *Runner) Run(ctx context.Context) (ResultSet, error) {
	if !r.workload.Resolvable() {
		return ResultSet{}, &ConfigurationError{Workload: r.workload.Name}
	}

	offset, ok := r.offsets.Lookup(r.cfg.Iterations)
	if !ok {
		var err error
		if offset, err = r.Calibrate(ctx); err != nil {
			return ResultSet{}, err
		}
	}

	res, err := r.attempts(ctx, r.workload, r.cfg, offset, false)
	if res.Outcome != 0 {
		r.last.Store(&res)
	}
	return res, err
}

// LastResult returns the snapshot of the most recent terminal transition.
//
// Outputs:
//   - ResultSet: The last accepted or exhausted result.
//   - error: ErrNoResult if no run has reached a terminal state.
func (r *Runner) LastResult() (ResultSet, error) {
	p := r.last.Load()
	if p == nil {
		return ResultSet{}, ErrNoResult
	}
	return *p, nil
}

// attempts is the bounded attempt loop shared by Run and calibration.
func (r *Runner) attempts(ctx context.Context, w Workload, cfg Config, offset float64, calibration bool) (ResultSet, error) {
	samples := make([]float64, cfg.SampleSize)
	state := StateIdle

	for attempt := 1; ; attempt++ {
		state = r.transition(ctx, w, calibration, state, StateSampling, attempt, nil)

		for i := range samples {
			if err := ctx.Err(); err != nil {
				return ResultSet{}, err
			}
			elapsed, iter, err := r.stopwatch.Time(w.Fn, w.Arg, cfg.Iterations)
			if err != nil {
				return ResultSet{}, &WorkloadError{
					Workload:  w.Name,
					Attempt:   attempt,
					Iteration: iter,
					Err:       err,
				}
			}
			samples[i] = elapsed
		}

		state = r.transition(ctx, w, calibration, state, StateEvaluating, attempt, nil)

		stats, err := ComputeStatistics(samples)
		if err != nil {
			return ResultSet{}, fmt.Errorf("attempt %d: %w", attempt, err)
		}

		switch {
		case stats.CoefficientOfVariation <= cfg.TargetCoV:
			r.transition(ctx, w, calibration, state, StateAccepted, attempt, &stats)
			return newResultSet(w.Name, OutcomeAccepted, attempt, cfg, offset, stats, samples, r.clock.Now()), nil

		case attempt < cfg.MaxTries:
			state = r.transition(ctx, w, calibration, state, StateRetrying, attempt, &stats)

		default:
			r.transition(ctx, w, calibration, state, StateExhausted, attempt, &stats)
			res := newResultSet(w.Name, OutcomeExhausted, attempt, cfg, offset, stats, samples, r.clock.Now())
			return res, &ConvergenceError{Result: res, Target: cfg.TargetCoV}
		}
	}
}

// transition logs and publishes a state change and returns the new state.
func (r *Runner) transition(ctx context.Context, w Workload, calibration bool, from, to State, attempt int, stats *Statistics) State {
	t := Transition{
		Workload:    w.Name,
		Calibration: calibration,
		From:        from,
		To:          to,
		Attempt:     attempt,
		Stats:       stats,
	}

	if stats != nil {
		r.logger.Debug("benchmark transition",
			"from", from.String(),
			"to", to.String(),
			"attempt", attempt,
			"calibration", calibration,
			"raw_mean", stats.RawMean,
			"cov", stats.CoefficientOfVariation,
		)
	} else {
		r.logger.Debug("benchmark transition",
			"from", from.String(),
			"to", to.String(),
			"attempt", attempt,
			"calibration", calibration,
		)
	}

	for _, o := range r.observers {
		o.OnTransition(ctx, t)
	}
	return to
}
