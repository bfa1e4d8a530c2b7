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
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/microbench/pkg/microbench"
	"github.com/AleutianAI/microbench/pkg/report"
)

const instrumentationName = "github.com/AleutianAI/microbench/pkg/telemetry"

// -----------------------------------------------------------------------------
// Configuration
// -----------------------------------------------------------------------------

// SinkConfig configures the OpenTelemetry sink.
//
// Thread Safety: Immutable after creation; safe for concurrent read access.
type SinkConfig struct {
	// ServiceVersion is recorded as the instrumentation version.
	ServiceVersion string

	// TracerProvider is the tracer provider to use.
	// If nil, uses the global tracer provider.
	TracerProvider trace.TracerProvider

	// MeterProvider is the meter provider to use.
	// If nil, uses the global meter provider.
	MeterProvider metric.MeterProvider

	// TraceEnabled enables spans and span events.
	// Default: true.
	TraceEnabled bool

	// MetricsEnabled enables metric recording.
	// Default: true.
	MetricsEnabled bool
}

// DefaultSinkConfig returns a configuration with tracing and metrics enabled
// on the global providers.
func DefaultSinkConfig() *SinkConfig {
	return &SinkConfig{
		ServiceVersion: "1.0.0",
		TraceEnabled:   true,
		MetricsEnabled: true,
	}
}

// -----------------------------------------------------------------------------
// Sink
// -----------------------------------------------------------------------------

// Sink exports benchmark telemetry via OpenTelemetry.
//
// Description:
//
//	Sink records one span per benchmarked case (StartCaseSpan), span events
//	for every runner transition (it is a microbench.Observer) and metrics
//	for each row passed to RecordRow.
//
// Thread Safety: Safe for concurrent use.
//
// Example:
//
//	sink, err := telemetry.NewSink(telemetry.DefaultSinkConfig())
//	if err != nil {
//	    return fmt.Errorf("create sink: %w", err)
//	}
//	defer sink.Close()
//
//	r, _ := microbench.New(w, cfg, microbench.WithObserver(sink))
//	ctx, span := sink.StartCaseSpan(ctx, "reflect_type", "int")
//	res, err := r.Run(ctx)
//	sink.RecordRow(ctx, report.Row{Group: "reflect_type", Argument: "int", Result: res, Err: err})
//	span.End()
type Sink struct {
	config *SinkConfig
	tracer trace.Tracer
	meter  metric.Meter

	rawMean      metric.Float64Histogram
	adjustedMean metric.Float64Histogram
	perCall      metric.Float64Histogram
	cov          metric.Float64Histogram
	attempts     metric.Int64Histogram
	offset       metric.Float64Gauge
	results      metric.Int64Counter
	failures     metric.Int64Counter
	transitions  metric.Int64Counter

	mu     sync.RWMutex
	closed bool
}

// NewSink creates a new sink.
//
// Inputs:
//   - config: Sink configuration. Must not be nil.
//
// Outputs:
//   - *Sink: The created sink. Never nil on success.
//   - error: Non-nil if config is nil or instrument creation fails.
func NewSink(config *SinkConfig) (*Sink, error) {
	if config == nil {
		return nil, ErrInvalidSinkConfig
	}
	cfg := *config

	tp := cfg.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	mp := cfg.MeterProvider
	if mp == nil {
		mp = otel.GetMeterProvider()
	}

	s := &Sink{
		config: &cfg,
		tracer: tp.Tracer(instrumentationName, trace.WithInstrumentationVersion(cfg.ServiceVersion)),
		meter:  mp.Meter(instrumentationName, metric.WithInstrumentationVersion(cfg.ServiceVersion)),
	}

	if cfg.MetricsEnabled {
		if err := s.initializeMetrics(); err != nil {
			return nil, errors.Join(ErrInvalidSinkConfig, err)
		}
	}
	return s, nil
}

// initializeMetrics creates all metric instruments.
func (s *Sink) initializeMetrics() error {
	var err error

	if s.rawMean, err = s.meter.Float64Histogram(
		"microbench.mean.raw",
		metric.WithDescription("Raw mean seconds per sample"),
		metric.WithUnit("s"),
	); err != nil {
		return err
	}

	if s.adjustedMean, err = s.meter.Float64Histogram(
		"microbench.mean.adjusted",
		metric.WithDescription("Fully adjusted mean seconds per sample"),
		metric.WithUnit("s"),
	); err != nil {
		return err
	}

	if s.perCall, err = s.meter.Float64Histogram(
		"microbench.per_call",
		metric.WithDescription("Fully adjusted seconds per workload call"),
		metric.WithUnit("s"),
	); err != nil {
		return err
	}

	if s.cov, err = s.meter.Float64Histogram(
		"microbench.cov",
		metric.WithDescription("Coefficient of variation of the final attempt"),
		metric.WithUnit("1"),
	); err != nil {
		return err
	}

	if s.attempts, err = s.meter.Int64Histogram(
		"microbench.attempts",
		metric.WithDescription("Attempts consumed per run"),
		metric.WithUnit("{attempt}"),
	); err != nil {
		return err
	}

	if s.offset, err = s.meter.Float64Gauge(
		"microbench.internal_offset",
		metric.WithDescription("Calibrated internal offset in seconds per sample"),
		metric.WithUnit("s"),
	); err != nil {
		return err
	}

	if s.results, err = s.meter.Int64Counter(
		"microbench.results",
		metric.WithDescription("Runs that reached a terminal state"),
		metric.WithUnit("{run}"),
	); err != nil {
		return err
	}

	if s.failures, err = s.meter.Int64Counter(
		"microbench.failures",
		metric.WithDescription("Runs that failed before a terminal state"),
		metric.WithUnit("{run}"),
	); err != nil {
		return err
	}

	s.transitions, err = s.meter.Int64Counter(
		"microbench.transitions",
		metric.WithDescription("Runner state transitions"),
		metric.WithUnit("{transition}"),
	)
	return err
}

func (s *Sink) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// RecordRow records metrics for one reported row and annotates the span
// in ctx.
//
// Outputs:
//   - error: ErrNilContext or ErrSinkClosed.
//
// Thread Safety: Safe for concurrent use.
func (s *Sink) RecordRow(ctx context.Context, row report.Row) error {
	if ctx == nil {
		return ErrNilContext
	}
	if s.isClosed() {
		return ErrSinkClosed
	}

	status := row.Status()
	attrs := []attribute.KeyValue{
		attribute.String("workload", row.Group),
		attribute.String("argument", row.Argument),
	}
	res := row.Result

	if s.config.TraceEnabled {
		span := trace.SpanFromContext(ctx)
		span.SetAttributes(append(attrs,
			attribute.String("status", status),
			attribute.Int("attempts", res.Attempts),
			attribute.Float64("raw_mean_seconds", res.RawMean),
			attribute.Float64("fully_adjusted_mean_seconds", res.FullyAdjustedMean),
			attribute.Float64("internal_offset_seconds", res.InternalOffset),
		)...)
		switch {
		case row.Err != nil:
			span.RecordError(row.Err)
			span.SetStatus(codes.Error, status)
		default:
			span.SetStatus(codes.Ok, "")
		}
	}

	if !s.config.MetricsEnabled {
		return nil
	}

	if res.Outcome == 0 {
		s.failures.Add(ctx, 1, metric.WithAttributes(append(attrs, attribute.String("status", status))...))
		return nil
	}

	set := metric.WithAttributes(attrs...)
	s.results.Add(ctx, 1, metric.WithAttributes(append(attrs, attribute.String("outcome", res.Outcome.String()))...))
	s.rawMean.Record(ctx, res.RawMean, set)
	s.adjustedMean.Record(ctx, res.FullyAdjustedMean, set)
	s.perCall.Record(ctx, res.PerCall().Seconds(), set)
	if !res.Statistics().Indeterminate() {
		s.cov.Record(ctx, res.CoefficientOfVariation, set)
	}
	s.attempts.Record(ctx, int64(res.Attempts), set)
	s.offset.Record(ctx, res.InternalOffset, metric.WithAttributes(attribute.Int("iterations", res.Iterations)))
	return nil
}

// OnTransition implements microbench.Observer.
//
// Adds a span event to the span in ctx and counts the transition.
func (s *Sink) OnTransition(ctx context.Context, t microbench.Transition) {
	if ctx == nil || s.isClosed() {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("from", t.From.String()),
		attribute.String("to", t.To.String()),
		attribute.Bool("calibration", t.Calibration),
	}

	if s.config.TraceEnabled {
		eventAttrs := append([]attribute.KeyValue{attribute.Int("attempt", t.Attempt)}, attrs...)
		if t.Stats != nil {
			eventAttrs = append(eventAttrs,
				attribute.Float64("raw_mean", t.Stats.RawMean),
				attribute.Float64("cov", t.Stats.CoefficientOfVariation),
			)
		}
		trace.SpanFromContext(ctx).AddEvent("microbench."+t.To.String(), trace.WithAttributes(eventAttrs...))
	}

	if s.config.MetricsEnabled {
		s.transitions.Add(ctx, 1, metric.WithAttributes(
			append(attrs, attribute.String("workload", t.Workload))...))
	}
}

// StartCaseSpan starts the span one benchmarked case runs under. The
// caller must end it.
func (s *Sink) StartCaseSpan(ctx context.Context, group, argument string) (context.Context, trace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !s.config.TraceEnabled {
		return ctx, trace.SpanFromContext(ctx)
	}
	return s.tracer.Start(ctx, "microbench.run",
		trace.WithAttributes(
			attribute.String("workload", group),
			attribute.String("argument", argument),
		),
	)
}

// Close marks the sink closed. Providers are not shut down.
//
// Thread Safety: Safe for concurrent use. Idempotent.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

var _ microbench.Observer = (*Sink)(nil)
