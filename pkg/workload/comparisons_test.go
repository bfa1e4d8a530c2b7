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
	"bytes"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func labels(def *Definition) []string {
	out := make([]string, 0, len(def.Args))
	for _, a := range def.Args {
		out = append(out, a.Label)
	}
	return out
}

func TestComparisons_PairsShareArguments(t *testing.T) {
	r := NewBuiltinRegistry()
	pairs := [][2]string{
		{NameNewLiteral, NameReflectNew},
		{NameTypeAssert, NameReflectImplements},
		{NameMethodValue, NameReflectMethodCall},
		{NameConstruct, NameReflectConstruct},
	}
	for _, p := range pairs {
		t.Run(p[0]+"/"+p[1], func(t *testing.T) {
			direct, ok := r.Get(p[0])
			require.True(t, ok)
			viaReflect, ok := r.Get(p[1])
			require.True(t, ok)
			require.NotEmpty(t, direct.Args)
			assert.Equal(t, labels(direct), labels(viaReflect))
		})
	}
}

// Both sides of a pair must compute the same thing, or the comparison
// measures different work.
func TestComparisons_SidesAgree(t *testing.T) {
	t.Run("allocation", func(t *testing.T) {
		for _, a := range instanceArgs() {
			require.NoError(t, newLiteral(a.Value))
			direct := sink
			require.NoError(t, reflectNew(a.Value))
			assert.Equal(t, reflect.TypeOf(direct), reflect.TypeOf(sink), a.Label)
			assert.Equal(t, reflect.Pointer, reflect.TypeOf(sink).Kind(), a.Label)
		}
	})

	t.Run("interface check", func(t *testing.T) {
		for _, a := range objectArgs() {
			require.NoError(t, typeAssert(a.Value))
			direct := sink
			require.NoError(t, reflectImplements(a.Value))
			assert.Equal(t, direct, sink, a.Label)
		}
		require.NoError(t, typeAssert(new(bytes.Buffer)))
		assert.Equal(t, true, sink)
	})

	t.Run("method call", func(t *testing.T) {
		for _, a := range callArgs() {
			require.NoError(t, methodValue(a.Value))
			direct := sink
			require.NoError(t, reflectMethodCall(a.Value))
			assert.Equal(t, direct, sink, a.Label)
		}
	})

	t.Run("constructor", func(t *testing.T) {
		for _, a := range constructorArgs() {
			require.NoError(t, construct(a.Value))
			direct := sink
			require.NoError(t, reflectConstruct(a.Value))
			assert.Equal(t, direct, sink, a.Label)
		}
	})
}

func TestConstructorArgs_NoArgsAndOneArg(t *testing.T) {
	args := constructorArgs()
	require.GreaterOrEqual(t, len(args), 2)
	assert.Equal(t, "noargs", args[0].Label)
	assert.Empty(t, args[0].Value.(constructor).In)
	assert.Equal(t, "onearg", args[1].Label)
	assert.Len(t, args[1].Value.(constructor).In, 1)

	require.NoError(t, reflectConstruct(args[1].Value))
	rec, ok := sink.(*sampleRecord)
	require.True(t, ok)
	assert.Equal(t, "bench", rec.Name)
}

func TestComparisons_RejectBadArguments(t *testing.T) {
	assert.Error(t, newLiteral(42))
	assert.Error(t, reflectNew(instance{}))
	assert.Error(t, typeAssert(nil))
	assert.Error(t, reflectImplements(nil))
	assert.Error(t, methodValue("x"))
	assert.Error(t, reflectMethodCall(methodCall{Receiver: 1, Method: "Missing"}))
	assert.Error(t, reflectMethodCall(methodCall{Receiver: new(bytes.Buffer), Method: "Len",
		In: []reflect.Value{reflect.ValueOf(1)}}))
	assert.Error(t, construct(constructor{}))
	assert.Error(t, reflectConstruct(constructor{Fn: 42}))
	assert.Error(t, reflectConstruct(constructor{Fn: newNamedSampleRecord}))
}
