// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package report

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// InfluxMeasurement is the measurement every point is written to.
const InfluxMeasurement = "microbench_results"

// InfluxConfig locates the bucket results are written to.
type InfluxConfig struct {
	URL    string `yaml:"url" json:"url" validate:"required_if=Enabled true"`
	Token  string `yaml:"token" json:"-"`
	Org    string `yaml:"org" json:"org" validate:"required_if=Enabled true"`
	Bucket string `yaml:"bucket" json:"bucket" validate:"required_if=Enabled true"`

	// Enabled turns the reporter on for every run.
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// InfluxReporter writes one point per converged row to InfluxDB.
//
// Description:
//
//	Rows without a result (unresolvable, calibration or workload
//	failures) are skipped. Tags are group, argument, status and run_id;
//	the coefficient of variation is omitted when it is not finite.
//
// Thread Safety: Safe for concurrent use.
type InfluxReporter struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	ctx      context.Context
	runID    string
	now      func() time.Time

	mu     sync.Mutex
	closed bool
}

// NewInfluxReporter connects lazily; the first write reports connection errors.
func NewInfluxReporter(ctx context.Context, cfg InfluxConfig, runID string) (*InfluxReporter, error) {
	if cfg.URL == "" || cfg.Org == "" || cfg.Bucket == "" {
		return nil, errors.New("influx url, org and bucket are required")
	}
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &InfluxReporter{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		ctx:      ctx,
		runID:    runID,
		now:      time.Now,
	}, nil
}

// Point converts a row. The second result is false for rows without a result.
func (r *InfluxReporter) Point(row Row) (*write.Point, bool) {
	res := row.Result
	if res.Outcome == 0 {
		return nil, false
	}
	at := res.CompletedAt
	if at.IsZero() {
		at = r.now()
	}

	p := influxdb2.NewPointWithMeasurement(InfluxMeasurement).
		AddTag("group", row.Group).
		AddTag("argument", row.Argument).
		AddTag("status", row.Status()).
		AddField("attempts", res.Attempts).
		AddField("iterations", res.Iterations).
		AddField("sample_size", res.SampleSize).
		AddField("raw_mean", res.RawMean).
		AddField("internal_offset", res.InternalOffset).
		AddField("fully_adjusted_mean", res.FullyAdjustedMean).
		AddField("per_call_ns", res.PerCall().Nanoseconds()).
		SetTime(at)
	if r.runID != "" {
		p.AddTag("run_id", r.runID)
	}
	if cov := res.CoefficientOfVariation; !math.IsInf(cov, 0) && !math.IsNaN(cov) {
		p.AddField("cov", cov)
	}
	return p, true
}

// Report writes the row's point.
func (r *InfluxReporter) Report(row Row) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrReporterClosed
	}
	p, ok := r.Point(row)
	if !ok {
		return nil
	}
	return r.writeAPI.WritePoint(r.ctx, p)
}

// Close releases the client.
func (r *InfluxReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	r.client.Close()
	return nil
}
