// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/AleutianAI/microbench/pkg/microbench"
	"github.com/AleutianAI/microbench/pkg/report"
)

type harness struct {
	sink   *Sink
	spans  *tracetest.SpanRecorder
	reader *sdkmetric.ManualReader
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		_ = mp.Shutdown(context.Background())
	})

	cfg := DefaultSinkConfig()
	cfg.TracerProvider = tp
	cfg.MeterProvider = mp

	sink, err := NewSink(cfg)
	require.NoError(t, err)
	return &harness{sink: sink, spans: spans, reader: reader}
}

func (h *harness) metrics(t *testing.T) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, h.reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumOf(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestNewSink(t *testing.T) {
	t.Run("rejects nil config", func(t *testing.T) {
		_, err := NewSink(nil)
		assert.ErrorIs(t, err, ErrInvalidSinkConfig)
	})

	t.Run("uses global providers by default", func(t *testing.T) {
		sink, err := NewSink(DefaultSinkConfig())
		require.NoError(t, err)
		require.NoError(t, sink.Close())
	})
}

func TestSink_RunWithObserver(t *testing.T) {
	h := newHarness(t)

	mock := clock.NewMock()
	w := microbench.Workload{Name: "steady", Fn: func(any) error {
		mock.Add(time.Millisecond)
		return nil
	}}
	cfg := microbench.Config{
		Iterations:            1,
		SampleSize:            3,
		MaxTries:              2,
		TargetCoV:             0.01,
		CalibrationSampleSize: 3,
		CalibrationTargetCoV:  0.005,
	}
	r, err := microbench.New(w, cfg, microbench.WithClock(mock), microbench.WithObserver(h.sink))
	require.NoError(t, err)

	ctx, span := h.sink.StartCaseSpan(context.Background(), "steady", "-")
	res, err := r.Run(ctx)
	require.NoError(t, err)
	require.NoError(t, h.sink.RecordRow(ctx, report.Row{Group: "steady", Argument: "-", Result: res}))
	span.End()

	ended := h.spans.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "microbench.run", ended[0].Name())
	assert.Equal(t, codes.Ok, ended[0].Status().Code)

	var names []string
	for _, e := range ended[0].Events() {
		names = append(names, e.Name)
	}
	// calibration then measurement, each sampling, evaluating, accepted
	assert.Equal(t, []string{
		"microbench.sampling", "microbench.evaluating", "microbench.accepted",
		"microbench.sampling", "microbench.evaluating", "microbench.accepted",
	}, names)

	m := h.metrics(t)
	assert.Equal(t, int64(6), sumOf(t, m["microbench.transitions"]))
	assert.Equal(t, int64(1), sumOf(t, m["microbench.results"]))
	assert.Contains(t, m, "microbench.mean.raw")
	assert.Contains(t, m, "microbench.per_call")
	assert.Contains(t, m, "microbench.internal_offset")
	assert.NotContains(t, m, "microbench.failures")
}

func TestSink_RecordRow_Failure(t *testing.T) {
	h := newHarness(t)

	ctx, span := h.sink.StartCaseSpan(context.Background(), "missing", "-")
	row := report.Row{
		Group:    "missing",
		Argument: "-",
		Err:      &microbench.ConfigurationError{Workload: "missing"},
	}
	require.NoError(t, h.sink.RecordRow(ctx, row))
	span.End()

	ended := h.spans.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Equal(t, "unresolvable", ended[0].Status().Description)

	m := h.metrics(t)
	assert.Equal(t, int64(1), sumOf(t, m["microbench.failures"]))
	assert.NotContains(t, m, "microbench.results")
}

func TestSink_RecordRowExhausted(t *testing.T) {
	h := newHarness(t)

	res := microbench.ResultSet{
		Workload:   "x",
		Outcome:    microbench.OutcomeExhausted,
		Attempts:   5,
		Iterations: 10,
	}
	require.NoError(t, h.sink.RecordRow(context.Background(), report.Row{
		Group: "x", Argument: "a", Result: res,
		Err: &microbench.ConvergenceError{Result: res, Target: 0.01},
	}))

	m := h.metrics(t)
	assert.Equal(t, int64(1), sumOf(t, m["microbench.results"]))
}

func TestSink_Closed(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.sink.Close())
	require.NoError(t, h.sink.Close())

	err := h.sink.RecordRow(context.Background(), report.Row{})
	assert.True(t, errors.Is(err, ErrSinkClosed))

	// observers never fail the run
	h.sink.OnTransition(context.Background(), microbench.Transition{To: microbench.StateSampling})
	assert.NotContains(t, h.metrics(t), "microbench.transitions")
}

func TestSink_NilContext(t *testing.T) {
	h := newHarness(t)
	//nolint:staticcheck
	assert.ErrorIs(t, h.sink.RecordRow(nil, report.Row{}), ErrNilContext)
}

func TestSink_TracingDisabled(t *testing.T) {
	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	defer tp.Shutdown(context.Background())

	cfg := DefaultSinkConfig()
	cfg.TracerProvider = tp
	cfg.TraceEnabled = false
	cfg.MetricsEnabled = false

	sink, err := NewSink(cfg)
	require.NoError(t, err)

	ctx, span := sink.StartCaseSpan(context.Background(), "x", "y")
	sink.OnTransition(ctx, microbench.Transition{To: microbench.StateAccepted})
	require.NoError(t, sink.RecordRow(ctx, report.Row{Group: "x"}))
	span.End()

	assert.Empty(t, spans.Ended())
}
