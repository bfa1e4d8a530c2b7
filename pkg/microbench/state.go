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
	"context"
	"fmt"
)

// State is a runner state.
//
//	Idle → Sampling → Evaluating → {Accepted, Retrying, Exhausted}
//	Retrying → Sampling
type State int

const (
	StateIdle State = iota
	StateSampling
	StateEvaluating
	StateAccepted
	StateRetrying
	StateExhausted
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSampling:
		return "sampling"
	case StateEvaluating:
		return "evaluating"
	case StateAccepted:
		return "accepted"
	case StateRetrying:
		return "retrying"
	case StateExhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transition follows.
func (s State) Terminal() bool {
	return s == StateAccepted || s == StateExhausted
}

// Transition describes one state change of a run.
type Transition struct {
	Workload string

	// Calibration is true for transitions of the no-op offset run.
	Calibration bool

	From    State
	To      State
	Attempt int

	// Stats is set when leaving StateEvaluating.
	Stats *Statistics
}

// Observer receives every transition of a run.
//
// Observers are called synchronously on the runner's goroutine, outside
// the timed loop. They must not retain Stats beyond the call.
type Observer interface {
	OnTransition(ctx context.Context, t Transition)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, t Transition)

// OnTransition calls f.
func (f ObserverFunc) OnTransition(ctx context.Context, t Transition) { f(ctx, t) }
