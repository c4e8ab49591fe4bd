// Copyright 2017 Istio Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package tuner holds the pluggable decision engine contract (SPEC_FULL.md
// §4.3, component C6) and its two concrete implementations, Random and
// Retry. Modeled as a plain Go interface (Tune) held behind a value, the
// idiomatic rendering of the original's boxed trait object
// (SPEC_FULL.md §9 "Dynamic tuner dispatch").
package tuner // import "github.com/sile/hone/internal/tuner"

import (
	"github.com/sile/hone/internal/obs"
	"github.com/sile/hone/internal/param"
	"github.com/sile/hone/internal/value"
)

// Tune is the polymorphic tuner contract.
type Tune interface {
	// Ask chooses a value for the named parameter of obs, given its
	// definition def. Must fail with an InvalidInput-kind error if def's
	// type is unsupported.
	Ask(o *obs.Observation, name string, def param.Param) (param.Value, error)
	// Tell records a finished observation.
	Tell(o *obs.Observation) error
	// NextAction returns the next scheduled step. ok is false to mean
	// "no scheduled step — create a new trial" (the Go rendering of the
	// original's Option<Action>::None, SPEC_FULL.md §4.3).
	NextAction() (action Action, ok bool)
}

// ActionKind discriminates the Action sum type.
type ActionKind int

const (
	ResumeTrial ActionKind = iota
	FinishTrial
	WaitObservations
	QuitOptimization
)

// Action is the tuner's next scheduled step. TrialID is only meaningful
// for ResumeTrial/FinishTrial.
type Action struct {
	Kind    ActionKind
	TrialID value.TrialID
}
