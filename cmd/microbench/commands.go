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
	"os"

	"github.com/benbjohnson/clock"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/microbench/pkg/config"
	"github.com/AleutianAI/microbench/pkg/logging"
	"github.com/AleutianAI/microbench/pkg/store"
	"github.com/AleutianAI/microbench/pkg/telemetry"
	"github.com/AleutianAI/microbench/pkg/workload"
)

// env is everything a subcommand needs once the config is loaded.
type env struct {
	cfg      config.MicrobenchConfig
	logger   *logging.Logger
	registry *workload.Registry
	clock    clock.Clock
	stdout   io.Writer

	// telemetry is nil in tests; sinks then use the global providers.
	telemetry *telemetry.Providers
}

// openStore opens the result store when history is enabled.
func (e *env) openStore() (*store.DB, *store.ResultStore, error) {
	dbCfg := e.cfg.Storage.DB
	dbCfg.Logger = e.logger.Slog().With("component", "badger")
	db, err := store.OpenDB(dbCfg)
	if err != nil {
		return nil, nil, err
	}
	results, err := store.NewResultStore(db)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return db, results, nil
}

func (e *env) close(ctx context.Context) error {
	var errs []error
	errs = append(errs, e.telemetry.Shutdown(ctx))
	errs = append(errs, e.logger.Close())
	return errors.Join(errs...)
}

var (
	// Global flags
	configPath string
	logLevel   string
	jsonLogs   bool

	app *env

	rootCmd = &cobra.Command{
		Use:   "microbench",
		Short: "Measure the per-call cost of small functions",
		Long: `microbench times a workload in batches of iterations, repeats the
batch until the samples agree to a target coefficient of variation, and
subtracts the measured cost of the timing harness itself.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setup,
	}

	runCmd = &cobra.Command{
		Use:   "run [workload...]",
		Short: "Benchmark workloads (all when none are named)",
		RunE:  runRun,
	}

	calibrateCmd = &cobra.Command{
		Use:   "calibrate",
		Short: "Measure the timing harness offset for the configured iteration count",
		Args:  cobra.NoArgs,
		RunE:  runCalibrate,
	}

	listCmd = &cobra.Command{
		Use:   "list",
		Short: "List the registered workloads and their arguments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listWorkloads(app.stdout, app.registry)
		},
	}

	historyCmd = &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show stored runs, or one run in full",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runHistory,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve stored runs and metrics over HTTP",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Path to microbench.yaml (default ~/.microbench/microbench.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Log level: debug, info, warn, error (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "Write logs to stderr as JSON")

	rootCmd.AddCommand(runCmd)
	runCmd.Flags().IntVar(&runOpts.iterations, "iterations", 0, "Workload calls per sample")
	runCmd.Flags().IntVar(&runOpts.samples, "samples", 0, "Samples per attempt")
	runCmd.Flags().IntVar(&runOpts.tries, "tries", 0, "Maximum attempts per workload")
	runCmd.Flags().Float64Var(&runOpts.cov, "cov", 0, "Target coefficient of variation")
	runCmd.Flags().Float64Var(&runOpts.manualOffset, "manual-offset", 0, "Seconds subtracted from every sample mean after the internal offset")
	runCmd.Flags().StringVar(&runOpts.arg, "arg", "", "Only run the argument with this label")
	runCmd.Flags().StringVar(&runOpts.baseline, "baseline", "", "Run this workload[/argument] first and use its fully adjusted mean as the manual offset")
	runCmd.Flags().StringVar(&runOpts.csvPath, "csv", "", "Write every row as CSV to this file (- for stdout)")
	runCmd.Flags().StringVar(&runOpts.jsonPath, "json", "", "Write every row as JSON lines to this file (- for stdout)")
	runCmd.Flags().BoolVar(&runOpts.noStore, "no-store", false, "Do not save this run to the history")
	runCmd.Flags().BoolVar(&runOpts.influx, "influx", false, "Also write results to the configured InfluxDB bucket")
	runCmd.Flags().BoolVar(&runOpts.recalibrateEach, "recalibrate-each", false, "Measure a fresh internal offset for every workload")
	runCmd.Flags().IntVar(&runOpts.pinCPU, "pin-cpu", -1, "Pin the benchmarking thread to this CPU (-1 disables)")
	runCmd.Flags().BoolVarP(&runOpts.quiet, "quiet", "q", false, "Suppress the console report")
	runCmd.MarkFlagsMutuallyExclusive("baseline", "manual-offset")

	rootCmd.AddCommand(calibrateCmd)
	calibrateCmd.Flags().IntVar(&calibrateOpts.iterations, "iterations", 0, "Calls per calibration sample")
	calibrateCmd.Flags().IntVar(&calibrateOpts.samples, "samples", 0, "Calibration sample size")

	rootCmd.AddCommand(listCmd)

	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVar(&historyOpts.limit, "limit", 20, "Number of runs to list (0 for all)")
	historyCmd.Flags().BoolVar(&historyOpts.json, "json", false, "Print JSON instead of a table")

	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides config)")
}

// setup loads the config, builds the logger and starts telemetry.
func setup(cmd *cobra.Command, args []string) error {
	cfg, created, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logCfg := cfg.Logging.LoggerConfig()
	if logLevel != "" {
		level, err := logging.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		logCfg.Level = level
	}
	if jsonLogs {
		logCfg.JSON = true
	}
	logger := logging.New(logCfg)
	if created {
		logger.Slog().Info("created default configuration", "path", configPathOrDefault())
	}

	providers, err := telemetry.Init(cmd.Context(), cfg.Telemetry)
	if err != nil {
		logger.Close()
		return fmt.Errorf("initialize telemetry: %w", err)
	}

	app = &env{
		cfg:      cfg,
		logger:   logger,
		registry: workload.NewBuiltinRegistry(),
		clock:    clock.New(),
		stdout:   os.Stdout,

		telemetry: providers,
	}
	return nil
}

func configPathOrDefault() string {
	if configPath != "" {
		return configPath
	}
	p, _ := config.DefaultPath()
	return p
}
