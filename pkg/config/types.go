// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads microbench.yaml.
package config

import (
	"time"

	"github.com/AleutianAI/microbench/pkg/logging"
	"github.com/AleutianAI/microbench/pkg/microbench"
	"github.com/AleutianAI/microbench/pkg/report"
	"github.com/AleutianAI/microbench/pkg/store"
	"github.com/AleutianAI/microbench/pkg/telemetry"
)

// CurrentConfigVersion is written to new config files. Files with a
// different major version are rejected.
const CurrentConfigVersion = "v1.0.0"

// MicrobenchConfig is the root of microbench.yaml.
type MicrobenchConfig struct {
	Meta      MetaConfig          `yaml:"meta"`
	Benchmark BenchmarkConfig     `yaml:"benchmark"`
	Logging   LoggingConfig       `yaml:"logging"`
	Telemetry telemetry.Config    `yaml:"telemetry"`
	Storage   StorageConfig       `yaml:"storage"`
	Influx    report.InfluxConfig `yaml:"influx"`
	Server    ServerConfig        `yaml:"server"`
}

// MetaConfig records the file format version.
type MetaConfig struct {
	Version string `yaml:"version"`
}

// BenchmarkConfig holds the runner parameters.
type BenchmarkConfig struct {
	Iterations            int     `yaml:"iterations" validate:"gt=0"`
	SampleSize            int     `yaml:"sample_size" validate:"gt=0"`
	MaxTries              int     `yaml:"max_tries" validate:"gt=0"`
	TargetCoV             float64 `yaml:"target_cov" validate:"gt=0"`
	ManualOffset          float64 `yaml:"manual_offset"`
	CalibrationSampleSize int     `yaml:"calibration_sample_size" validate:"gt=0"`
	CalibrationTargetCoV  float64 `yaml:"calibration_target_cov" validate:"gt=0"`

	// RecalibrateEach measures a fresh internal offset for every workload
	// group instead of sharing one across the run.
	RecalibrateEach bool `yaml:"recalibrate_each"`

	// PinCPU locks the benchmarking thread to a CPU. -1 disables pinning.
	PinCPU int `yaml:"pin_cpu" validate:"gte=-1"`
}

// LoggingConfig configures pkg/logging.
type LoggingConfig struct {
	Level   string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	JSON    bool   `yaml:"json"`
	NoColor bool   `yaml:"no_color"`
	LogDir  string `yaml:"log_dir"`
}

// StorageConfig enables the result history.
type StorageConfig struct {
	Enabled bool         `yaml:"enabled"`
	DB      store.Config `yaml:"db"`
}

// ServerConfig configures the serve command.
type ServerConfig struct {
	Addr            string        `yaml:"addr" validate:"required,hostname_port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gt=0"`

	// RateLimit is the sustained requests per second; 0 disables limiting.
	RateLimit float64 `yaml:"rate_limit" validate:"gte=0"`
	RateBurst int     `yaml:"rate_burst" validate:"gte=0"`
}

// DefaultConfig returns the configuration written on first run.
func DefaultConfig() MicrobenchConfig {
	bench := microbench.DefaultConfig()
	return MicrobenchConfig{
		Meta: MetaConfig{Version: CurrentConfigVersion},
		Benchmark: BenchmarkConfig{
			Iterations:            bench.Iterations,
			SampleSize:            bench.SampleSize,
			MaxTries:              bench.MaxTries,
			TargetCoV:             bench.TargetCoV,
			ManualOffset:          bench.ManualOffset,
			CalibrationSampleSize: bench.CalibrationSampleSize,
			CalibrationTargetCoV:  bench.CalibrationTargetCoV,
			PinCPU:                -1,
		},
		Logging: LoggingConfig{Level: "info"},
		Telemetry: telemetry.Config{
			ServiceName:    "microbench",
			ServiceVersion: "dev",
			TraceExporter:  "none",
			MetricExporter: "none",
			OTLPEndpoint:   "localhost:4317",
			OTLPInsecure:   true,
		},
		Storage: StorageConfig{
			Enabled: true,
			DB:      store.DefaultConfig(),
		},
		Influx: report.InfluxConfig{
			URL:    "http://localhost:8086",
			Org:    "microbench",
			Bucket: "microbench",
		},
		Server: ServerConfig{
			Addr:            "127.0.0.1:8089",
			ShutdownTimeout: 10 * time.Second,
			RateLimit:       20,
			RateBurst:       40,
		},
	}
}

// Runner converts the benchmark section for microbench.New.
func (b BenchmarkConfig) Runner() microbench.Config {
	return microbench.Config{
		Iterations:            b.Iterations,
		SampleSize:            b.SampleSize,
		MaxTries:              b.MaxTries,
		TargetCoV:             b.TargetCoV,
		ManualOffset:          b.ManualOffset,
		CalibrationSampleSize: b.CalibrationSampleSize,
		CalibrationTargetCoV:  b.CalibrationTargetCoV,
	}
}

// LoggerConfig converts the logging section. An unparseable level falls
// back to info, which Validate rules out for loaded files.
func (l LoggingConfig) LoggerConfig() logging.Config {
	level, _ := logging.ParseLevel(l.Level)
	return logging.Config{
		Level:   level,
		JSON:    l.JSON,
		NoColor: l.NoColor,
		LogDir:  l.LogDir,
	}
}
