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
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
)

// sink keeps reflection results observable so calls are not elided.
var sink any

// Built-in workload names.
const (
	NameNoop         = "noop"
	NameReflectType  = "reflect_type"
	NameReflectValue = "reflect_value"
	NameReflectFunc  = "reflect_func"
	NameMethodByName = "reflect_method"
	NameStructFields = "reflect_struct_fields"
)

type sampleRecord struct {
	ID        int       `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	Tags      []string  `json:"tags,omitempty" yaml:"tags,omitempty"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// methodTarget pairs a receiver with the method name looked up on it.
type methodTarget struct {
	Receiver any
	Method   string
}

// NewBuiltinRegistry returns a registry holding the built-in workloads.
//
// Description:
//
//	The built-ins measure the cost of common reflection entry points over
//	a fixed list of receivers, one case per receiver. noop is included as
//	a control: its fully adjusted mean should be close to zero. The
//	comparison pairs set a direct construct against its reflection
//	equivalent.
func NewBuiltinRegistry() *Registry {
	r := NewRegistry()
	for _, def := range append(builtins(), comparisons()...) {
		r.MustRegister(def)
	}
	return r
}

func builtins() []*Definition {
	return []*Definition{
		{
			Name:        NameNoop,
			Description: "Empty function; control for the internal offset",
			Fn:          func(any) error { return nil },
		},
		{
			Name:        NameReflectType,
			Description: "reflect.TypeOf plus kind, name and method count",
			Fn:          reflectType,
			Args:        typeArgs(),
		},
		{
			Name:        NameReflectValue,
			Description: "reflect.ValueOf of an object, dereferenced, with field or element count",
			Fn:          reflectValue,
			Args:        objectArgs(),
		},
		{
			Name:        NameReflectFunc,
			Description: "Function signature inspection via reflect.Type.In/Out",
			Fn:          reflectFunc,
			Args:        funcArgs(),
		},
		{
			Name:        NameMethodByName,
			Description: "reflect.Value.MethodByName lookup",
			Fn:          methodByName,
			Args:        methodArgs(),
		},
		{
			Name:        NameStructFields,
			Description: "Walk struct fields and parse their json tag",
			Fn:          structFields,
			Args:        structArgs(),
		},
	}
}

func reflectType(arg any) error {
	t := reflect.TypeOf(arg)
	if t == nil {
		return errors.New("nil type")
	}
	sink = fmt.Sprint(t.Kind(), t.Name(), t.NumMethod())
	return nil
}

func reflectValue(arg any) error {
	v := reflect.Indirect(reflect.ValueOf(arg))
	switch v.Kind() {
	case reflect.Struct:
		sink = v.NumField()
	case reflect.Slice, reflect.Array, reflect.Map, reflect.String, reflect.Chan:
		sink = v.Len()
	case reflect.Invalid:
		return errors.New("invalid value")
	default:
		sink = v.Interface()
	}
	return nil
}

func reflectFunc(arg any) error {
	t := reflect.TypeOf(arg)
	if t == nil || t.Kind() != reflect.Func {
		return fmt.Errorf("not a function: %T", arg)
	}
	n := 0
	for i := 0; i < t.NumIn(); i++ {
		n += len(t.In(i).String())
	}
	for i := 0; i < t.NumOut(); i++ {
		n += len(t.Out(i).String())
	}
	sink = n
	return nil
}

func methodByName(arg any) error {
	mt, ok := arg.(methodTarget)
	if !ok {
		return fmt.Errorf("unexpected argument %T", arg)
	}
	m := reflect.ValueOf(mt.Receiver).MethodByName(mt.Method)
	if !m.IsValid() {
		return fmt.Errorf("method %s not found on %T", mt.Method, mt.Receiver)
	}
	sink = m.Type()
	return nil
}

func structFields(arg any) error {
	t := reflect.TypeOf(arg)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return fmt.Errorf("not a struct: %s", t)
	}
	names := 0
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		tag, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		names += len(tag)
	}
	sink = names
	return nil
}

// -----------------------------------------------------------------------------
// Argument lists
// -----------------------------------------------------------------------------

func typeArgs() []Argument {
	return []Argument{
		{Label: "int", Value: 42},
		{Label: "string", Value: "hello"},
		{Label: "[]byte", Value: []byte("hello")},
		{Label: "map[string]int", Value: map[string]int{"a": 1}},
		{Label: "time.Time", Value: time.Time{}},
		{Label: "*bytes.Buffer", Value: new(bytes.Buffer)},
		{Label: "*http.Request", Value: new(http.Request)},
		{Label: "error", Value: errors.New("x")},
	}
}

func objectArgs() []Argument {
	return []Argument{
		{Label: "struct{}", Value: struct{}{}},
		{Label: "time.Time", Value: time.Now()},
		{Label: "*bytes.Buffer", Value: bytes.NewBufferString("hello")},
		{Label: "*strings.Builder", Value: new(strings.Builder)},
		{Label: "*bufio.Reader", Value: bufio.NewReader(strings.NewReader("x"))},
		{Label: "*sync.Mutex", Value: new(sync.Mutex)},
		{Label: "*regexp.Regexp", Value: regexp.MustCompile(`^a+b$`)},
		{Label: "*http.Request", Value: new(http.Request)},
		{Label: "[]int", Value: []int{1, 2, 3}},
	}
}

func funcArgs() []Argument {
	return []Argument{
		{Label: "strings.Split", Value: strings.Split},
		{Label: "strings.Contains", Value: strings.Contains},
		{Label: "regexp.MatchString", Value: regexp.MatchString},
		{Label: "sort.Ints", Value: sort.Ints},
		{Label: "time.Now", Value: time.Now},
		{Label: "fmt.Sprintf", Value: fmt.Sprintf},
	}
}

func methodArgs() []Argument {
	return []Argument{
		{Label: "*bytes.Buffer.WriteString", Value: methodTarget{new(bytes.Buffer), "WriteString"}},
		{Label: "*strings.Builder.Len", Value: methodTarget{new(strings.Builder), "Len"}},
		{Label: "time.Time.Format", Value: methodTarget{time.Time{}, "Format"}},
		{Label: "*regexp.Regexp.MatchString", Value: methodTarget{regexp.MustCompile(`a`), "MatchString"}},
		{Label: "*sync.Mutex.Lock", Value: methodTarget{new(sync.Mutex), "Lock"}},
	}
}

func structArgs() []Argument {
	return []Argument{
		{Label: "workload.sampleRecord", Value: sampleRecord{}},
		{Label: "http.Request", Value: http.Request{}},
		{Label: "time.Time", Value: time.Time{}},
		{Label: "bytes.Buffer", Value: bytes.Buffer{}},
	}
}
