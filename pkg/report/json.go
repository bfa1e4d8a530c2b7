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
	"encoding/json"
	"io"
	"math"
	"sync"
	"time"

	"github.com/AleutianAI/microbench/pkg/microbench"
)

// Record is the serialized form of a row, shared by the JSON reporter,
// the result store and the HTTP API.
type Record struct {
	Group                  string    `json:"group"`
	Argument               string    `json:"argument"`
	Status                 string    `json:"status"`
	Attempts               int       `json:"attempts"`
	Iterations             int       `json:"iterations"`
	SampleSize             int       `json:"sample_size"`
	InternalOffset         float64   `json:"internal_offset"`
	ManualOffset           float64   `json:"manual_offset"`
	RawMean                float64   `json:"raw_mean"`
	Stdev                  float64   `json:"stdev"`
	CoefficientOfVariation *float64  `json:"cov"`
	InternallyAdjustedMean float64   `json:"internally_adjusted_mean"`
	FullyAdjustedMean      float64   `json:"fully_adjusted_mean"`
	PerCallNanos           int64     `json:"per_call_ns"`
	Samples                []float64 `json:"samples,omitempty"`
	CompletedAt            time.Time `json:"completed_at,omitzero"`
	Error                  string    `json:"error,omitempty"`
}

// NewRecord converts a row. An infinite coefficient of variation is
// encoded as null.
func NewRecord(row Row) Record {
	res := row.Result
	rec := Record{
		Group:                  row.Group,
		Argument:               row.Argument,
		Status:                 row.Status(),
		Attempts:               res.Attempts,
		Iterations:             res.Iterations,
		SampleSize:             res.SampleSize,
		InternalOffset:         res.InternalOffset,
		ManualOffset:           res.ManualOffset,
		RawMean:                res.RawMean,
		Stdev:                  res.Stdev,
		InternallyAdjustedMean: res.InternallyAdjustedMean,
		FullyAdjustedMean:      res.FullyAdjustedMean,
		PerCallNanos:           res.PerCall().Nanoseconds(),
		Samples:                res.Samples(),
		CompletedAt:            res.CompletedAt,
	}
	if cov := res.CoefficientOfVariation; !math.IsInf(cov, 0) && !math.IsNaN(cov) {
		rec.CoefficientOfVariation = &cov
	}
	if row.Err != nil {
		rec.Error = row.Err.Error()
	}
	return rec
}

// Outcome maps the status back to a result outcome. Zero for failures.
func (r Record) Outcome() microbench.Outcome {
	switch r.Status {
	case "accepted":
		return microbench.OutcomeAccepted
	case "exhausted":
		return microbench.OutcomeExhausted
	default:
		return 0
	}
}

// JSONReporter writes one JSON object per line.
//
// Thread Safety: Safe for concurrent use.
type JSONReporter struct {
	mu     sync.Mutex
	enc    *json.Encoder
	closer io.Closer
	closed bool
}

// NewJSONReporter writes JSON lines to w. If w is an io.Closer, Close closes it.
func NewJSONReporter(w io.Writer) *JSONReporter {
	r := &JSONReporter{enc: json.NewEncoder(w)}
	if c, ok := w.(io.Closer); ok {
		r.closer = c
	}
	return r
}

// Report encodes the row.
func (r *JSONReporter) Report(row Row) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrReporterClosed
	}
	return r.enc.Encode(NewRecord(row))
}

// Close closes the underlying writer.
func (r *JSONReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}
