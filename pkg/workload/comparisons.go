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
	"errors"
	"fmt"
	"io"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"time"
)

// Comparison workloads come in pairs: a direct Go construct and its
// reflection equivalent, benchmarked over the same argument labels so the
// rows line up. Run them with a baseline to subtract a shared setup cost.
const (
	NameNewLiteral        = "new_literal"
	NameReflectNew        = "reflect_new"
	NameTypeAssert        = "type_assert"
	NameReflectImplements = "reflect_implements"
	NameMethodValue       = "method_value"
	NameReflectMethodCall = "reflect_method_call"
	NameConstruct         = "construct"
	NameReflectConstruct  = "reflect_construct"
)

var readerType = reflect.TypeFor[io.Reader]()

// instance is a type plus the direct way to allocate one.
type instance struct {
	Type    reflect.Type
	Literal func() any
}

func instanceOf[T any]() Argument {
	t := reflect.TypeFor[T]()
	return Argument{
		Label: t.String(),
		Value: instance{Type: t, Literal: func() any { return new(T) }},
	}
}

// methodCall is a bound method reachable both directly and by name.
type methodCall struct {
	Receiver any
	Method   string
	In       []reflect.Value
	Direct   func() any
}

// constructor is a constructor function with its arguments, callable
// directly or through reflect.Value.Call.
type constructor struct {
	Fn     any
	In     []reflect.Value
	Direct func() any
}

func newSampleRecord() *sampleRecord {
	return &sampleRecord{CreatedAt: time.Unix(0, 0)}
}

func newNamedSampleRecord(name string) *sampleRecord {
	return &sampleRecord{Name: name, CreatedAt: time.Unix(0, 0)}
}

func comparisons() []*Definition {
	return []*Definition{
		{
			Name:        NameNewLiteral,
			Description: "Allocate a zero value with new(T)",
			Fn:          newLiteral,
			Args:        instanceArgs(),
		},
		{
			Name:        NameReflectNew,
			Description: "Allocate a zero value with reflect.New",
			Fn:          reflectNew,
			Args:        instanceArgs(),
		},
		{
			Name:        NameTypeAssert,
			Description: "Interface check with a type assertion to io.Reader",
			Fn:          typeAssert,
			Args:        objectArgs(),
		},
		{
			Name:        NameReflectImplements,
			Description: "Interface check with reflect.Type.Implements(io.Reader)",
			Fn:          reflectImplements,
			Args:        objectArgs(),
		},
		{
			Name:        NameMethodValue,
			Description: "Call a method through a bound method value",
			Fn:          methodValue,
			Args:        callArgs(),
		},
		{
			Name:        NameReflectMethodCall,
			Description: "Look a method up with MethodByName and call it",
			Fn:          reflectMethodCall,
			Args:        callArgs(),
		},
		{
			Name:        NameConstruct,
			Description: "Call a constructor directly",
			Fn:          construct,
			Args:        constructorArgs(),
		},
		{
			Name:        NameReflectConstruct,
			Description: "Call a constructor through reflect.Value.Call",
			Fn:          reflectConstruct,
			Args:        constructorArgs(),
		},
	}
}

func newLiteral(arg any) error {
	in, ok := arg.(instance)
	if !ok || in.Literal == nil {
		return fmt.Errorf("unexpected argument %T", arg)
	}
	sink = in.Literal()
	return nil
}

func reflectNew(arg any) error {
	in, ok := arg.(instance)
	if !ok || in.Type == nil {
		return fmt.Errorf("unexpected argument %T", arg)
	}
	sink = reflect.New(in.Type).Interface()
	return nil
}

func typeAssert(arg any) error {
	if arg == nil {
		return errors.New("nil argument")
	}
	_, ok := arg.(io.Reader)
	sink = ok
	return nil
}

func reflectImplements(arg any) error {
	t := reflect.TypeOf(arg)
	if t == nil {
		return errors.New("nil type")
	}
	sink = t.Implements(readerType)
	return nil
}

func methodValue(arg any) error {
	mc, ok := arg.(methodCall)
	if !ok || mc.Direct == nil {
		return fmt.Errorf("unexpected argument %T", arg)
	}
	sink = mc.Direct()
	return nil
}

func reflectMethodCall(arg any) error {
	mc, ok := arg.(methodCall)
	if !ok {
		return fmt.Errorf("unexpected argument %T", arg)
	}
	m := reflect.ValueOf(mc.Receiver).MethodByName(mc.Method)
	if !m.IsValid() {
		return fmt.Errorf("method %s not found on %T", mc.Method, mc.Receiver)
	}
	if m.Type().NumIn() != len(mc.In) {
		return fmt.Errorf("method %s takes %d arguments, got %d", mc.Method, m.Type().NumIn(), len(mc.In))
	}
	out := m.Call(mc.In)
	if len(out) > 0 {
		sink = out[0].Interface()
	}
	return nil
}

func construct(arg any) error {
	c, ok := arg.(constructor)
	if !ok || c.Direct == nil {
		return fmt.Errorf("unexpected argument %T", arg)
	}
	sink = c.Direct()
	return nil
}

func reflectConstruct(arg any) error {
	c, ok := arg.(constructor)
	if !ok {
		return fmt.Errorf("unexpected argument %T", arg)
	}
	fn := reflect.ValueOf(c.Fn)
	if fn.Kind() != reflect.Func {
		return fmt.Errorf("not a function: %T", c.Fn)
	}
	if fn.Type().NumIn() != len(c.In) || fn.Type().NumOut() == 0 {
		return fmt.Errorf("constructor %s does not fit %d arguments", fn.Type(), len(c.In))
	}
	sink = fn.Call(c.In)[0].Interface()
	return nil
}

// -----------------------------------------------------------------------------
// Argument lists
// -----------------------------------------------------------------------------

func instanceArgs() []Argument {
	return []Argument{
		instanceOf[sampleRecord](),
		instanceOf[bytes.Buffer](),
		instanceOf[strings.Builder](),
		instanceOf[sync.Mutex](),
		instanceOf[time.Time](),
	}
}

func callArgs() []Argument {
	b := new(strings.Builder)
	b.WriteString("hello")
	buf := bytes.NewBufferString("hello")
	re := regexp.MustCompile(`^a+b$`)
	var zero time.Time

	return []Argument{
		{Label: "*strings.Builder.Len", Value: methodCall{
			Receiver: b, Method: "Len",
			Direct: func() any { return b.Len() },
		}},
		{Label: "*bytes.Buffer.Len", Value: methodCall{
			Receiver: buf, Method: "Len",
			Direct: func() any { return buf.Len() },
		}},
		{Label: "time.Time.IsZero", Value: methodCall{
			Receiver: zero, Method: "IsZero",
			Direct: func() any { return zero.IsZero() },
		}},
		{Label: "*regexp.Regexp.MatchString", Value: methodCall{
			Receiver: re, Method: "MatchString",
			In:     []reflect.Value{reflect.ValueOf("aab")},
			Direct: func() any { return re.MatchString("aab") },
		}},
	}
}

// constructorArgs covers a no-argument and a one-argument constructor of
// a local type, then the same shapes from the standard library.
func constructorArgs() []Argument {
	return []Argument{
		{Label: "noargs", Value: constructor{
			Fn:     newSampleRecord,
			Direct: func() any { return newSampleRecord() },
		}},
		{Label: "onearg", Value: constructor{
			Fn:     newNamedSampleRecord,
			In:     []reflect.Value{reflect.ValueOf("bench")},
			Direct: func() any { return newNamedSampleRecord("bench") },
		}},
		{Label: "bytes.NewBufferString", Value: constructor{
			Fn:     bytes.NewBufferString,
			In:     []reflect.Value{reflect.ValueOf("hello")},
			Direct: func() any { return bytes.NewBufferString("hello") },
		}},
		{Label: "errors.New", Value: constructor{
			Fn:     errors.New,
			In:     []reflect.Value{reflect.ValueOf("x")},
			Direct: func() any { return errors.New("x") },
		}},
	}
}
