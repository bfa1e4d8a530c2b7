// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package workload names benchmarkable functions and the argument lists
// they are benchmarked over.
package workload

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/AleutianAI/microbench/pkg/microbench"
	"github.com/AleutianAI/microbench/pkg/validation"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrNotFound indicates no definition is registered under the name.
	ErrNotFound = errors.New("workload not found")

	// ErrAlreadyRegistered indicates the name is already taken.
	ErrAlreadyRegistered = errors.New("workload already registered")

	// ErrNilDefinition indicates a nil definition or function.
	ErrNilDefinition = errors.New("workload definition is nil")

	// ErrNoArgument indicates the argument label is not defined for the workload.
	ErrNoArgument = errors.New("argument not defined for workload")

	// ErrInvalidName indicates a name or argument label that fails validation.
	ErrInvalidName = errors.New("invalid workload definition")
)

// -----------------------------------------------------------------------------
// Types
// -----------------------------------------------------------------------------

// Argument is one labelled value a workload is benchmarked with.
type Argument struct {
	// Label identifies the argument in reports (e.g. a type name).
	Label string

	// Value is passed unchanged to every call.
	Value any
}

// Definition is a named function plus the arguments it is benchmarked over.
type Definition struct {
	Name        string
	Description string
	Fn          microbench.Func

	// Args lists the argument values. A definition without arguments is
	// benchmarked once with a nil argument.
	Args []Argument
}

// Case is one (workload, argument) pair ready to run.
type Case struct {
	// Group is the workload name; results are averaged per group.
	Group    string
	Argument Argument
	Workload microbench.Workload
}

// Cases expands the definition into one case per argument.
func (d *Definition) Cases() []Case {
	args := d.Args
	if len(args) == 0 {
		args = []Argument{{Label: "-"}}
	}

	cases := make([]Case, 0, len(args))
	for _, a := range args {
		cases = append(cases, Case{
			Group:    d.Name,
			Argument: a,
			Workload: microbench.Workload{Name: d.Name, Fn: d.Fn, Arg: a.Value},
		})
	}
	return cases
}

// -----------------------------------------------------------------------------
// Registry
// -----------------------------------------------------------------------------

// Registry holds workload definitions by name.
//
// Description:
//
//	The Registry is the lookup table the CLI resolves workload names
//	against. A name that is not registered resolves to a
//	*microbench.ConfigurationError, so no timing happens for it.
//
// Thread Safety: Safe for concurrent use via read-write mutex.
type Registry struct {
	mu    sync.RWMutex
	defs  map[string]*Definition
	hooks []RegistrationHook
}

// RegistrationHook is called when a definition is registered or unregistered.
type RegistrationHook func(name string, def *Definition, registered bool)

// NewRegistry creates a new empty registry.
//
// Outputs:
//   - *Registry: The new registry. Never nil.
func NewRegistry() *Registry {
	return &Registry{
		defs:  make(map[string]*Definition),
		hooks: make([]RegistrationHook, 0),
	}
}

// Register adds a definition to the registry.
//
// Inputs:
//   - def: The definition to register. Must not be nil and must have a Fn.
//
// Outputs:
//   - error: nil on success, ErrNilDefinition if def or def.Fn is nil,
//     ErrInvalidName if the name or an argument label is malformed,
//     ErrAlreadyRegistered if the name is already taken.
//
// Thread Safety: Safe for concurrent use.
func (r *Registry) Register(def *Definition) error {
	if def == nil || def.Fn == nil {
		return ErrNilDefinition
	}
	if err := validation.ValidateWorkloadName(def.Name); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidName, err)
	}
	for _, a := range def.Args {
		if err := validation.ValidateArgumentLabel(a.Label); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidName, def.Name, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.defs[def.Name]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, def.Name)
	}
	r.defs[def.Name] = def

	for _, hook := range r.hooks {
		hook(def.Name, def, true)
	}
	return nil
}

// MustRegister registers a definition and panics on error.
//
// Should only be used during startup.
func (r *Registry) MustRegister(def *Definition) {
	if err := r.Register(def); err != nil {
		name := "<nil>"
		if def != nil {
			name = def.Name
		}
		panic(fmt.Sprintf("workload: failed to register %s: %v", name, err))
	}
}

// Unregister removes a definition.
//
// Outputs:
//   - error: nil on success, ErrNotFound if not registered.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	def, exists := r.defs[name]
	if !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	delete(r.defs, name)

	for _, hook := range r.hooks {
		hook(name, def, false)
	}
	return nil
}

// Get retrieves a definition by name.
func (r *Registry) Get(name string) (*Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.defs[name]
	return def, ok
}

// List returns all registered names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered definitions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.defs)
}

// AddHook adds a registration hook.
func (r *Registry) AddHook(hook RegistrationHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, hook)
}

// Cases expands the named workloads into runnable cases, in the given order.
//
// Description:
//
//	An empty names slice selects every registered workload in sorted
//	order. The first unknown name aborts expansion.
//
// Outputs:
//   - []Case: One case per (workload, argument).
//   - error: *microbench.ConfigurationError wrapping ErrNotFound.
func (r *Registry) Cases(names ...string) ([]Case, error) {
	if len(names) == 0 {
		names = r.List()
	}

	var cases []Case
	for _, name := range names {
		def, ok := r.Get(name)
		if !ok {
			return nil, &microbench.ConfigurationError{Workload: name, Err: ErrNotFound}
		}
		cases = append(cases, def.Cases()...)
	}
	return cases, nil
}

// Bind resolves a single workload with the argument carrying label.
//
// Inputs:
//   - name: The workload name.
//   - label: Argument label; empty selects the first argument.
//
// Outputs:
//   - microbench.Workload: Ready for microbench.New.
//   - error: *microbench.ConfigurationError wrapping ErrNotFound or
//     ErrNoArgument.
func (r *Registry) Bind(name, label string) (microbench.Workload, error) {
	def, ok := r.Get(name)
	if !ok {
		return microbench.Workload{}, &microbench.ConfigurationError{Workload: name, Err: ErrNotFound}
	}

	cases := def.Cases()
	if label == "" {
		return cases[0].Workload, nil
	}
	for _, c := range cases {
		if c.Argument.Label == label {
			return c.Workload, nil
		}
	}
	return microbench.Workload{}, &microbench.ConfigurationError{
		Workload: name,
		Err:      fmt.Errorf("%w: %s", ErrNoArgument, label),
	}
}
