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

package tuner

import (
	"math"
	"math/rand" //nolint:gosec // baseline tuner, not crypto secure
	"time"

	"github.com/sile/hone/internal/herr"
	"github.com/sile/hone/internal/obs"
	"github.com/sile/hone/internal/param"
)

// Random is the baseline tuner (SPEC_FULL.md §4.3): every trial is a
// single observation, finished as soon as it is told. It owns its own
// seeded generator — no process-wide RNG state (§9 "Global RNG").
type Random struct {
	rng   *rand.Rand
	queue []Action
}

// NewRandom constructs a Random tuner. If seed is nil, a seed is drawn
// from the runtime clock.
func NewRandom(seed *int64) *Random {
	s := time.Now().UnixNano()
	if seed != nil {
		s = *seed
	}
	return &Random{rng: rand.New(rand.NewSource(s))} //nolint:gosec // baseline tuner
}

// Ask implements Tune.
func (r *Random) Ask(_ *obs.Observation, _ string, def param.Param) (param.Value, error) {
	switch def.Type {
	case param.Categorical, param.Ordinal:
		choice := def.Choices[r.rng.Intn(len(def.Choices))]
		return param.StringValue(choice), nil
	case param.Continuous:
		return param.NumValue(r.sampleContinuous(def)), nil
	case param.Discrete:
		return param.NumValue(r.sampleDiscrete(def)), nil
	case param.Normal:
		v := float64(def.Mean) + float64(def.StdDev)*r.rng.NormFloat64()
		return param.NumValue(v), nil
	case param.Fidelity:
		return param.NumValue(def.Range.Max), nil
	default:
		return param.Value{}, herr.Invalidf("random tuner: unsupported parameter type %v", def.Type)
	}
}

func (r *Random) sampleContinuous(def param.Param) float64 {
	if def.Ln {
		lo, hi := math.Log(def.Range.Min), math.Log(def.Range.Max)
		return math.Exp(lo + r.rng.Float64()*(hi-lo))
	}
	return def.Range.Min + r.rng.Float64()*def.Range.Width()
}

func (r *Random) sampleDiscrete(def param.Param) float64 {
	count := int(math.Floor(def.Range.Width()/def.Step)) + 1
	k := r.rng.Intn(count)
	return def.Range.Min + def.Step*float64(k)
}

// Tell implements Tune: enqueue FinishTrial for the told observation's
// trial, since every Random trial is single-observation.
func (r *Random) Tell(o *obs.Observation) error {
	r.queue = append(r.queue, Action{Kind: FinishTrial, TrialID: o.TrialID})
	return nil
}

// NextAction implements Tune.
func (r *Random) NextAction() (Action, bool) {
	if len(r.queue) == 0 {
		return Action{}, false
	}
	a := r.queue[0]
	r.queue = r.queue[1:]
	return a, true
}
