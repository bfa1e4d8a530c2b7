// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package report writes benchmark results as CSV, JSON lines and styled
// console tables, and aggregates per-group means.
package report

import (
	"errors"
	"fmt"
	"sync"

	"github.com/AleutianAI/microbench/pkg/microbench"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrReporterClosed indicates a write after Close.
	ErrReporterClosed = errors.New("reporter is closed")
)

// -----------------------------------------------------------------------------
// Types
// -----------------------------------------------------------------------------

// Row is one reported benchmark outcome with its grouping columns.
type Row struct {
	// Group is the workload name the row is averaged under.
	Group string

	// Argument is the label of the argument the workload ran with.
	Argument string

	// Result is the snapshot. Zero unless the run reached a terminal state.
	Result microbench.ResultSet

	// Err is the run error, if any.
	Err error
}

// Status classifies the row for display.
func (r Row) Status() string {
	switch {
	case r.Err == nil && r.Result.Accepted():
		return "accepted"
	case errors.Is(r.Err, microbench.ErrNotConverged):
		return "exhausted"
	case errors.Is(r.Err, microbench.ErrConfiguration):
		return "unresolvable"
	case errors.Is(r.Err, microbench.ErrCalibrationFailed):
		return "calibration_failed"
	case errors.Is(r.Err, microbench.ErrWorkloadFailed):
		return "workload_failed"
	case r.Err != nil:
		return "error"
	default:
		return r.Result.Outcome.String()
	}
}

// Reporter receives rows as they complete.
type Reporter interface {
	Report(row Row) error
	Close() error
}

// -----------------------------------------------------------------------------
// Multi
// -----------------------------------------------------------------------------

// Multi fans rows out to several reporters.
type Multi []Reporter

// Report writes the row to every reporter and joins their errors.
func (m Multi) Report(row Row) error {
	var errs []error
	for _, r := range m {
		if err := r.Report(row); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every reporter and joins their errors.
func (m Multi) Close() error {
	var errs []error
	for _, r := range m {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// -----------------------------------------------------------------------------
// Group means
// -----------------------------------------------------------------------------

// GroupMean is the average fully adjusted mean of one group.
type GroupMean struct {
	Group string

	// Mean is in seconds per sample.
	Mean float64

	// Count is the number of accepted rows averaged.
	Count int

	// Skipped counts rows that did not produce an accepted result.
	Skipped int
}

// String formats the mean for logs.
func (g GroupMean) String() string {
	return fmt.Sprintf("%s: %.6g s (n=%d, skipped=%d)", g.Group, g.Mean, g.Count, g.Skipped)
}

// GroupMeans accumulates per-group averages of FullyAdjustedMean.
//
// Description:
//
//	Only accepted results contribute. Groups are returned in the order
//	they were first seen.
//
// Thread Safety: Safe for concurrent use.
type GroupMeans struct {
	mu     sync.Mutex
	order  []string
	groups map[string]*GroupMean
	sums   map[string]float64
}

// NewGroupMeans creates an empty accumulator.
func NewGroupMeans() *GroupMeans {
	return &GroupMeans{
		groups: make(map[string]*GroupMean),
		sums:   make(map[string]float64),
	}
}

// Report adds the row to its group.
func (g *GroupMeans) Report(row Row) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	gm, ok := g.groups[row.Group]
	if !ok {
		gm = &GroupMean{Group: row.Group}
		g.groups[row.Group] = gm
		g.order = append(g.order, row.Group)
	}

	if row.Err != nil || !row.Result.Accepted() {
		gm.Skipped++
		return nil
	}
	g.sums[row.Group] += row.Result.FullyAdjustedMean
	gm.Count++
	gm.Mean = g.sums[row.Group] / float64(gm.Count)
	return nil
}

// Close is a no-op.
func (g *GroupMeans) Close() error { return nil }

// Means returns a copy of the per-group averages.
func (g *GroupMeans) Means() []GroupMean {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]GroupMean, 0, len(g.order))
	for _, name := range g.order {
		out = append(out, *g.groups[name])
	}
	return out
}
