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
	"fmt"
	"math"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/microbench/pkg/config"
	"github.com/AleutianAI/microbench/pkg/microbench"
	"github.com/AleutianAI/microbench/pkg/workload"
)

type calibrateOptions struct {
	iterations int
	samples    int
}

var calibrateOpts calibrateOptions

func runCalibrate(cmd *cobra.Command, args []string) error {
	bench := app.cfg.Benchmark
	if cmd.Flags().Changed("iterations") {
		bench.Iterations = calibrateOpts.iterations
	}
	if cmd.Flags().Changed("samples") {
		bench.CalibrationSampleSize = calibrateOpts.samples
	}
	return calibrate(cmd.Context(), app, bench)
}

// calibrate measures and prints the internal offset for bench.Iterations.
func calibrate(ctx context.Context, e *env, bench config.BenchmarkConfig) error {
	w, err := e.registry.Bind(workload.NameNoop, "")
	if err != nil {
		return err
	}
	r, err := microbench.New(w, bench.Runner(),
		microbench.WithClock(e.clock),
		microbench.WithLogger(e.logger.Slog()),
	)
	if err != nil {
		return err
	}

	offset, err := r.Calibrate(ctx)
	if err != nil {
		return err
	}

	perCall := time.Duration(math.Round(offset / float64(bench.Iterations) * float64(time.Second)))
	_, err = fmt.Fprintf(e.stdout, "internal offset: %.9gs per sample of %d calls (%s/op)\n",
		offset, bench.Iterations, perCall)
	return err
}
