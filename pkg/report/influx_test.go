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
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/microbench/pkg/microbench"
)

type influxStub struct {
	mu     sync.Mutex
	bodies []string
	query  string
	status int
}

func newInfluxStub(t *testing.T, status int) (*influxStub, *httptest.Server) {
	t.Helper()
	stub := &influxStub{status: status}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		stub.mu.Lock()
		stub.bodies = append(stub.bodies, string(body))
		stub.query = r.URL.RawQuery
		stub.mu.Unlock()
		w.WriteHeader(stub.status)
	}))
	t.Cleanup(srv.Close)
	return stub, srv
}

func TestInfluxReporter_WritesConvergedRows(t *testing.T) {
	stub, srv := newInfluxStub(t, http.StatusNoContent)

	rep, err := NewInfluxReporter(context.Background(), InfluxConfig{
		URL: srv.URL, Token: "t", Org: "bench", Bucket: "results",
	}, "run-1")
	require.NoError(t, err)

	require.NoError(t, rep.Report(acceptedRow("noop", "-", 0.5)))
	require.NoError(t, rep.Report(Row{
		Group: "missing", Argument: "-",
		Err: &microbench.ConfigurationError{Workload: "missing"},
	}))
	require.NoError(t, rep.Close())
	require.NoError(t, rep.Close())
	assert.ErrorIs(t, rep.Report(acceptedRow("noop", "-", 1)), ErrReporterClosed)

	stub.mu.Lock()
	defer stub.mu.Unlock()
	require.Len(t, stub.bodies, 1)
	line := stub.bodies[0]
	assert.True(t, strings.HasPrefix(line, InfluxMeasurement+","))
	assert.Contains(t, line, "group=noop")
	assert.Contains(t, line, "run_id=run-1")
	assert.Contains(t, line, "status=accepted")
	assert.Contains(t, line, "attempts=1i")
	assert.Contains(t, line, "fully_adjusted_mean=0.5")
	assert.Contains(t, line, "cov=0.004")
	assert.Contains(t, stub.query, "bucket=results")
	assert.Contains(t, stub.query, "org=bench")
}

func TestInfluxReporter_Point(t *testing.T) {
	rep, err := NewInfluxReporter(context.Background(), InfluxConfig{
		URL: "http://localhost:1", Org: "o", Bucket: "b",
	}, "")
	require.NoError(t, err)
	defer rep.Close()

	row := exhaustedRow("x", "y")
	row.Result.CoefficientOfVariation = math.Inf(1)
	p, ok := rep.Point(row)
	require.True(t, ok)

	var fields []string
	for _, f := range p.FieldList() {
		fields = append(fields, f.Key)
	}
	assert.NotContains(t, fields, "cov")
	assert.Contains(t, fields, "per_call_ns")
	for _, tag := range p.TagList() {
		assert.NotEqual(t, "run_id", tag.Key)
	}
	assert.False(t, p.Time().IsZero())
}

func TestInfluxReporter_ServerError(t *testing.T) {
	_, srv := newInfluxStub(t, http.StatusUnauthorized)

	rep, err := NewInfluxReporter(context.Background(), InfluxConfig{
		URL: srv.URL, Org: "o", Bucket: "b",
	}, "r")
	require.NoError(t, err)
	defer rep.Close()

	assert.Error(t, rep.Report(acceptedRow("noop", "-", 0.5)))
}

func TestNewInfluxReporter_RequiresLocation(t *testing.T) {
	_, err := NewInfluxReporter(context.Background(), InfluxConfig{URL: "http://x"}, "")
	assert.Error(t, err)
}
