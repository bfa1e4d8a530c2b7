// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/microbench/cmd/microbench/internal/affinity"
	"github.com/AleutianAI/microbench/pkg/config"
	"github.com/AleutianAI/microbench/pkg/microbench"
	"github.com/AleutianAI/microbench/pkg/report"
	"github.com/AleutianAI/microbench/pkg/telemetry"
	"github.com/AleutianAI/microbench/pkg/validation"
	"github.com/AleutianAI/microbench/pkg/workload"
)

// runOptions are the run command's flags. Zero numeric values keep the
// configured value.
type runOptions struct {
	iterations      int
	samples         int
	tries           int
	cov             float64
	manualOffset    float64
	arg             string
	baseline        string
	csvPath         string
	jsonPath        string
	noStore         bool
	influx          bool
	recalibrateEach bool
	pinCPU          int
	quiet           bool
}

var runOpts = runOptions{pinCPU: -1}

var (
	// errCasesFailed is returned when at least one case did not produce a result.
	errCasesFailed = errors.New("one or more workloads failed")

	// errBaseline is returned when the baseline case cannot serve as a
	// manual offset.
	errBaseline = errors.New("baseline unusable")
)

func runRun(cmd *cobra.Command, args []string) error {
	bench := app.cfg.Benchmark
	flags := cmd.Flags()
	if flags.Changed("iterations") {
		bench.Iterations = runOpts.iterations
	}
	if flags.Changed("samples") {
		bench.SampleSize = runOpts.samples
	}
	if flags.Changed("tries") {
		bench.MaxTries = runOpts.tries
	}
	if flags.Changed("cov") {
		bench.TargetCoV = runOpts.cov
	}
	if flags.Changed("manual-offset") {
		bench.ManualOffset = runOpts.manualOffset
	}
	if flags.Changed("recalibrate-each") {
		bench.RecalibrateEach = runOpts.recalibrateEach
	}
	if flags.Changed("pin-cpu") {
		bench.PinCPU = runOpts.pinCPU
	}

	return runBenchmarks(cmd.Context(), app, bench, args, runOpts)
}

// runBenchmarks runs every selected case in order and reports each row.
//
// Description:
//
//	Unknown workload names are reported as unresolvable rows rather than
//	aborting the run. One offset cache is shared by every case unless
//	RecalibrateEach is set, in which case each group gets its own. The run
//	stops early only when ctx is cancelled.
//
//	With opts.baseline set, the baseline case runs first and is reported
//	like any other row. Its fully adjusted mean becomes the manual offset
//	of every case after it.
//
// Outputs:
//   - error: errCasesFailed if any row failed, errBaseline if the baseline
//     was ambiguous or not accepted, ctx.Err() if cancelled, or a
//     setup/reporting error.
func runBenchmarks(ctx context.Context, e *env, bench config.BenchmarkConfig, names []string, opts runOptions) error {
	cfg := bench.Runner()
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := e.logger.Slog()

	if bench.PinCPU >= 0 {
		unpin, err := affinity.Pin(bench.PinCPU)
		if err != nil {
			return fmt.Errorf("pin cpu: %w", err)
		}
		defer unpin()
		logger.Info("pinned benchmarking thread", "cpu", bench.PinCPU)
	}

	sink, err := telemetry.NewSink(e.telemetry.SinkConfig())
	if err != nil {
		return err
	}
	defer sink.Close()

	reporters, closeReporters, err := buildReporters(ctx, e, cfg, opts)
	if err != nil {
		return err
	}

	plans := planCases(e.registry, names, opts.arg)
	cache := microbench.NewOffsetCache()
	lastGroup := ""
	failed := 0

	if opts.baseline != "" {
		offset, err := runBaseline(ctx, e, cfg, cache, sink, reporters, opts.baseline)
		if err != nil {
			return errors.Join(err, closeReporters())
		}
		cfg.ManualOffset = offset
		logger.Info("baseline applied", "baseline", opts.baseline, "manual_offset", offset)
	}

	var runErr error
	for _, p := range plans {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		if bench.RecalibrateEach && p.group != lastGroup {
			cache = microbench.NewOffsetCache()
		}
		lastGroup = p.group

		row := runCase(ctx, e, cfg, cache, sink, p)
		if errors.Is(row.Err, context.Canceled) || errors.Is(row.Err, context.DeadlineExceeded) {
			runErr = row.Err
			break
		}
		if row.Status() != "accepted" {
			failed++
		}
		if err := reporters.Report(row); err != nil {
			runErr = fmt.Errorf("report %s/%s: %w", row.Group, row.Argument, err)
			break
		}
	}

	closeErr := closeReporters()
	if runErr != nil {
		return errors.Join(runErr, closeErr)
	}
	if closeErr != nil {
		return closeErr
	}
	if failed > 0 {
		logger.Warn("run finished with failures", "failed", failed, "total", len(plans))
		return errCasesFailed
	}
	return nil
}

// casePlan is a case to run, or the error that prevents running it.
type casePlan struct {
	group    string
	argument string
	workload microbench.Workload
	err      error
}

func planCases(reg *workload.Registry, names []string, arg string) []casePlan {
	if len(names) == 0 {
		names = reg.List()
	}

	var plans []casePlan
	for _, raw := range names {
		name, err := validation.SanitizeWorkloadName(raw)
		if err != nil {
			plans = append(plans, casePlan{group: raw, argument: "-", err: &microbench.ConfigurationError{Workload: raw, Err: err}})
			continue
		}
		if arg != "" {
			w, err := reg.Bind(name, arg)
			plans = append(plans, casePlan{group: name, argument: arg, workload: w, err: err})
			continue
		}
		cases, err := reg.Cases(name)
		if err != nil {
			plans = append(plans, casePlan{group: name, argument: "-", err: err})
			continue
		}
		for _, c := range cases {
			plans = append(plans, casePlan{group: c.Group, argument: c.Argument.Label, workload: c.Workload})
		}
	}
	return plans
}

// runBaseline runs the single case named by spec ("workload" or
// "workload/argument") without a manual offset and returns its fully
// adjusted mean.
func runBaseline(ctx context.Context, e *env, cfg microbench.Config, cache *microbench.OffsetCache,
	sink *telemetry.Sink, reporters report.Reporter, spec string) (float64, error) {
	name, label, _ := strings.Cut(spec, "/")
	plans := planCases(e.registry, []string{name}, label)
	if len(plans) != 1 {
		return 0, fmt.Errorf("%w: %s has %d arguments, pick one with %s/<argument>", errBaseline, spec, len(plans), name)
	}

	cfg.ManualOffset = 0
	row := runCase(ctx, e, cfg, cache, sink, plans[0])
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := reporters.Report(row); err != nil {
		return 0, fmt.Errorf("report baseline: %w", err)
	}
	if row.Status() != "accepted" {
		return 0, fmt.Errorf("%w: %s is %s: %v", errBaseline, spec, row.Status(), row.Err)
	}
	return row.Result.FullyAdjustedMean, nil
}

func runCase(ctx context.Context, e *env, cfg microbench.Config, cache *microbench.OffsetCache, sink *telemetry.Sink, p casePlan) report.Row {
	ctx, span := sink.StartCaseSpan(ctx, p.group, p.argument)
	defer span.End()

	row := report.Row{Group: p.group, Argument: p.argument}
	defer func() {
		if err := sink.RecordRow(ctx, row); err != nil {
			e.logger.Slog().Debug("telemetry record failed", "error", err)
		}
	}()

	if p.err != nil {
		row.Err = p.err
		return row
	}

	logger := e.logger.Slog().With("argument", p.argument)
	r, err := microbench.New(p.workload, cfg,
		microbench.WithClock(e.clock),
		microbench.WithLogger(logger),
		microbench.WithOffsetCache(cache),
		microbench.WithObserver(sink),
	)
	if err != nil {
		row.Err = err
		return row
	}

	row.Result, row.Err = r.Run(ctx)
	logCase(logger, p, row)
	return row
}

func logCase(logger *slog.Logger, p casePlan, row report.Row) {
	res := row.Result
	switch row.Status() {
	case "accepted":
		logger.Info("benchmark accepted",
			"workload", p.group,
			"per_call", res.PerCall().String(),
			"cov", res.CoefficientOfVariation,
			"attempts", res.Attempts)
	case "exhausted":
		logger.Warn("benchmark did not converge",
			"workload", p.group,
			"cov", res.CoefficientOfVariation,
			"attempts", res.Attempts)
	default:
		logger.Error("benchmark failed", "workload", p.group, "error", row.Err)
	}
}

// buildReporters assembles the console, file and history reporters.
func buildReporters(ctx context.Context, e *env, cfg microbench.Config, opts runOptions) (report.Multi, func() error, error) {
	var reporters report.Multi
	var closers []func() error

	fail := func(err error) (report.Multi, func() error, error) {
		_ = reporters.Close()
		for _, c := range closers {
			_ = c()
		}
		return nil, nil, err
	}

	if !opts.quiet {
		reporters = append(reporters, report.NewConsoleReporter(e.stdout))
	}
	if opts.csvPath != "" {
		w, err := openOutput(opts.csvPath, e.stdout)
		if err != nil {
			return fail(err)
		}
		reporters = append(reporters, report.NewCSVReporter(w))
	}
	if opts.jsonPath != "" {
		w, err := openOutput(opts.jsonPath, e.stdout)
		if err != nil {
			return fail(err)
		}
		reporters = append(reporters, report.NewJSONReporter(w))
	}

	runID := uuid.NewString()
	if e.cfg.Storage.Enabled && !opts.noStore {
		db, results, err := e.openStore()
		if err != nil {
			e.logger.Slog().Warn("history disabled", "error", err)
		} else {
			rec := results.NewRecorder(ctx, cfg, e.clock)
			reporters = append(reporters, rec)
			closers = append(closers, db.Close)
			runID = rec.ID()
			e.logger.Slog().Debug("recording run", "run_id", runID)
		}
	}

	if e.cfg.Influx.Enabled || opts.influx {
		influx, err := report.NewInfluxReporter(ctx, e.cfg.Influx, runID)
		if err != nil {
			return fail(err)
		}
		reporters = append(reporters, bestEffort{Reporter: influx, logger: e.logger.Slog(), name: "influx"})
	}

	closeAll := func() error {
		errs := []error{reporters.Close()}
		for _, c := range closers {
			errs = append(errs, c())
		}
		return errors.Join(errs...)
	}
	return reporters, closeAll, nil
}

// bestEffort logs report failures instead of aborting the run.
type bestEffort struct {
	report.Reporter
	logger *slog.Logger
	name   string
}

func (b bestEffort) Report(row report.Row) error {
	if err := b.Reporter.Report(row); err != nil {
		b.logger.Warn("report failed", "reporter", b.name, "group", row.Group, "argument", row.Argument, "error", err)
	}
	return nil
}

// nopCloser keeps Close from closing the shared stdout.
type nopCloser struct{ io.Writer }

func openOutput(path string, stdout io.Writer) (io.Writer, error) {
	if path == "-" {
		return nopCloser{stdout}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	return f, nil
}
