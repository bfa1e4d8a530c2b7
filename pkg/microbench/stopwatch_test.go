// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package microbench

import (
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStopwatch_Time(t *testing.T) {
	t.Run("measures elapsed seconds", func(t *testing.T) {
		mock := clock.NewMock()
		sw := NewStopwatch(mock)

		calls := 0
		fn := func(arg any) error {
			calls++
			mock.Add(arg.(time.Duration))
			return nil
		}

		elapsed, iter, err := sw.Time(fn, 10*time.Millisecond, 5)
		require.NoError(t, err)
		assert.Equal(t, -1, iter)
		assert.Equal(t, 5, calls)
		assert.InDelta(t, 0.05, elapsed, 1e-12)
	})

	t.Run("passes the same argument every call", func(t *testing.T) {
		sw := NewStopwatch(clock.NewMock())
		arg := &struct{ n int }{}

		_, _, err := sw.Time(func(a any) error {
			if a != arg {
				return errors.New("argument changed")
			}
			a.(*struct{ n int }).n++
			return nil
		}, arg, 3)
		require.NoError(t, err)
		assert.Equal(t, 3, arg.n)
	})

	t.Run("stops at first failing iteration", func(t *testing.T) {
		sw := NewStopwatch(clock.NewMock())
		boom := errors.New("boom")

		calls := 0
		_, iter, err := sw.Time(func(any) error {
			calls++
			if calls == 3 {
				return boom
			}
			return nil
		}, nil, 10)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 2, iter)
		assert.Equal(t, 3, calls)
	})

	t.Run("nil clock uses wall clock", func(t *testing.T) {
		sw := NewStopwatch(nil)
		elapsed, _, err := sw.Time(noop, nil, 10)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, elapsed, 0.0)
	})
}

func TestWorkload_Resolvable(t *testing.T) {
	assert.False(t, Workload{Name: "missing"}.Resolvable())
	assert.True(t, Workload{Name: "noop", Fn: noop}.Resolvable())
}
