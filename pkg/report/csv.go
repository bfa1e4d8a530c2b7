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
	"encoding/csv"
	"io"
	"strconv"
	"sync"
	"time"
)

// CSVHeader lists the columns written by CSVReporter.
var CSVHeader = []string{
	"group",
	"argument",
	"status",
	"attempts",
	"iterations",
	"sample_size",
	"internal_offset",
	"manual_offset",
	"raw_mean",
	"stdev",
	"cov",
	"internally_adjusted_mean",
	"fully_adjusted_mean",
	"completed_at",
	"error",
}

// CSVReporter writes one row per result.
//
// Thread Safety: Safe for concurrent use.
type CSVReporter struct {
	mu          sync.Mutex
	w           *csv.Writer
	closer      io.Closer
	wroteHeader bool
	closed      bool
}

// NewCSVReporter writes CSV to w. If w is an io.Closer, Close closes it.
func NewCSVReporter(w io.Writer) *CSVReporter {
	r := &CSVReporter{w: csv.NewWriter(w)}
	if c, ok := w.(io.Closer); ok {
		r.closer = c
	}
	return r
}

// Report writes the row, preceded by the header on first use.
func (r *CSVReporter) Report(row Row) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrReporterClosed
	}
	if !r.wroteHeader {
		if err := r.w.Write(CSVHeader); err != nil {
			return err
		}
		r.wroteHeader = true
	}

	res := row.Result
	completed := ""
	if !res.CompletedAt.IsZero() {
		completed = res.CompletedAt.UTC().Format(time.RFC3339Nano)
	}
	errText := ""
	if row.Err != nil {
		errText = row.Err.Error()
	}

	if err := r.w.Write([]string{
		row.Group,
		row.Argument,
		row.Status(),
		strconv.Itoa(res.Attempts),
		strconv.Itoa(res.Iterations),
		strconv.Itoa(res.SampleSize),
		formatFloat(res.InternalOffset),
		formatFloat(res.ManualOffset),
		formatFloat(res.RawMean),
		formatFloat(res.Stdev),
		formatFloat(res.CoefficientOfVariation),
		formatFloat(res.InternallyAdjustedMean),
		formatFloat(res.FullyAdjustedMean),
		completed,
		errText,
	}); err != nil {
		return err
	}
	r.w.Flush()
	return r.w.Error()
}

// Close flushes and closes the underlying writer.
func (r *CSVReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	r.w.Flush()
	if err := r.w.Error(); err != nil {
		return err
	}
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
