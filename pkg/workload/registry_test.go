// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package workload

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/microbench/pkg/microbench"
)

func nop(any) error { return nil }

func TestRegistry_Register(t *testing.T) {
	t.Run("successful registration", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register(&Definition{Name: "a", Fn: nop}))
		assert.Equal(t, 1, r.Count())
	})

	t.Run("nil definition", func(t *testing.T) {
		r := NewRegistry()
		assert.ErrorIs(t, r.Register(nil), ErrNilDefinition)
		assert.ErrorIs(t, r.Register(&Definition{Name: "nofn"}), ErrNilDefinition)
	})

	t.Run("duplicate registration", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register(&Definition{Name: "dup", Fn: nop}))
		assert.ErrorIs(t, r.Register(&Definition{Name: "dup", Fn: nop}), ErrAlreadyRegistered)
	})

	t.Run("invalid names", func(t *testing.T) {
		r := NewRegistry()
		assert.ErrorIs(t, r.Register(&Definition{Name: "Bad-Name", Fn: nop}), ErrInvalidName)
		assert.ErrorIs(t, r.Register(&Definition{
			Name: "ok",
			Fn:   nop,
			Args: []Argument{{Label: "line\nbreak"}},
		}), ErrInvalidName)
		assert.Equal(t, 0, r.Count())
	})

	t.Run("must register panics on duplicate", func(t *testing.T) {
		r := NewRegistry()
		r.MustRegister(&Definition{Name: "x", Fn: nop})
		assert.Panics(t, func() { r.MustRegister(&Definition{Name: "x", Fn: nop}) })
		assert.Panics(t, func() { r.MustRegister(nil) })
	})
}

func TestRegistry_Unregister(t *testing.T) {
	r := NewRegistry()
	var events []bool
	r.AddHook(func(name string, _ *Definition, registered bool) {
		assert.Equal(t, "a", name)
		events = append(events, registered)
	})

	require.NoError(t, r.Register(&Definition{Name: "a", Fn: nop}))
	require.NoError(t, r.Unregister("a"))
	assert.ErrorIs(t, r.Unregister("a"), ErrNotFound)
	assert.Equal(t, []bool{true, false}, events)
}

func TestRegistry_List(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(&Definition{Name: "b", Fn: nop})
	r.MustRegister(&Definition{Name: "a", Fn: nop})
	assert.Equal(t, []string{"a", "b"}, r.List())
}

func TestRegistry_Cases(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(&Definition{
		Name: "multi",
		Fn:   nop,
		Args: []Argument{{Label: "one", Value: 1}, {Label: "two", Value: 2}},
	})
	r.MustRegister(&Definition{Name: "bare", Fn: nop})

	t.Run("all in sorted order", func(t *testing.T) {
		cases, err := r.Cases()
		require.NoError(t, err)
		require.Len(t, cases, 3)
		assert.Equal(t, "bare", cases[0].Group)
		assert.Nil(t, cases[0].Workload.Arg)
		assert.Equal(t, "multi", cases[1].Group)
		assert.Equal(t, 1, cases[1].Workload.Arg)
		assert.Equal(t, "two", cases[2].Argument.Label)
	})

	t.Run("selected order", func(t *testing.T) {
		cases, err := r.Cases("multi", "bare")
		require.NoError(t, err)
		require.Len(t, cases, 3)
		assert.Equal(t, "multi", cases[0].Group)
		assert.Equal(t, "bare", cases[2].Group)
		for _, c := range cases {
			assert.True(t, c.Workload.Resolvable())
		}
	})

	t.Run("unknown name", func(t *testing.T) {
		_, err := r.Cases("multi", "missing")
		assert.ErrorIs(t, err, microbench.ErrConfiguration)
		assert.ErrorIs(t, err, ErrNotFound)

		var ce *microbench.ConfigurationError
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, "missing", ce.Workload)
	})
}

func TestRegistry_Bind(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(&Definition{
		Name: "multi",
		Fn:   nop,
		Args: []Argument{{Label: "one", Value: 1}, {Label: "two", Value: 2}},
	})

	w, err := r.Bind("multi", "")
	require.NoError(t, err)
	assert.Equal(t, 1, w.Arg)

	w, err = r.Bind("multi", "two")
	require.NoError(t, err)
	assert.Equal(t, "multi", w.Name)
	assert.Equal(t, 2, w.Arg)

	_, err = r.Bind("multi", "three")
	assert.ErrorIs(t, err, ErrNoArgument)
	assert.ErrorIs(t, err, microbench.ErrConfiguration)

	_, err = r.Bind("nope", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBuiltins(t *testing.T) {
	r := NewBuiltinRegistry()
	assert.Equal(t, []string{
		NameConstruct, NameMethodValue, NameNewLiteral, NameNoop,
		NameReflectConstruct, NameReflectFunc, NameReflectImplements,
		NameMethodByName, NameReflectMethodCall, NameReflectNew,
		NameStructFields, NameReflectType, NameReflectValue, NameTypeAssert,
	}, r.List())

	cases, err := r.Cases()
	require.NoError(t, err)

	for _, c := range cases {
		t.Run(c.Group+"/"+c.Argument.Label, func(t *testing.T) {
			require.True(t, c.Workload.Resolvable())
			assert.NoError(t, c.Workload.Fn(c.Workload.Arg))
		})
	}
}

func TestBuiltins_RejectBadArguments(t *testing.T) {
	assert.Error(t, reflectType(nil))
	assert.Error(t, reflectValue(nil))
	assert.Error(t, reflectFunc(42))
	assert.Error(t, methodByName("x"))
	assert.Error(t, methodByName(methodTarget{Receiver: 1, Method: "Missing"}))
	assert.Error(t, structFields(7))
}

func TestStructFields_SkipsUnexported(t *testing.T) {
	require.NoError(t, structFields(sampleRecord{}))
	// id + name + tags + created_at
	assert.Equal(t, 20, sink)

	type hidden struct {
		Visible int `json:"visible"`
		hidden  int
	}
	require.NoError(t, structFields(&hidden{hidden: 1}))
	assert.Equal(t, len("visible"), sink)
}
