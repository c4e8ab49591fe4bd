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

// Package param holds the parameter type sum (SPEC_FULL.md §3) and the
// values asked against them. Grounded on original_source/src/hp.rs's
// HpDistribution enum (Flag/Choice/Range/Normal with warp/unwarp) and
// original_source/src/domain.rs's ParamType/ParamValue, rendered as a Go
// discriminated struct (Type enum + optional fields) since Go has no sum
// types — the same approach the teacher uses for its own JSON-tagged
// request structs in jrpc.
package param // import "github.com/sile/hone/internal/param"

import (
	"encoding/json"
	"math"
	"strconv"

	"github.com/sile/hone/internal/herr"
	"github.com/sile/hone/internal/value"
)

// Type discriminates the kind of a Param.
type Type int

const (
	Categorical Type = iota
	Ordinal
	Continuous
	Discrete
	Normal
	Fidelity
)

func (t Type) String() string {
	switch t {
	case Categorical:
		return "categorical"
	case Ordinal:
		return "ordinal"
	case Continuous:
		return "continuous"
	case Discrete:
		return "discrete"
	case Normal:
		return "normal"
	case Fidelity:
		return "fidelity"
	default:
		return "unknown"
	}
}

func (t Type) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *Type) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "categorical":
		*t = Categorical
	case "ordinal":
		*t = Ordinal
	case "continuous":
		*t = Continuous
	case "discrete":
		*t = Discrete
	case "normal":
		*t = Normal
	case "fidelity":
		*t = Fidelity
	default:
		return herr.Invalidf("unknown parameter type %q", s)
	}
	return nil
}

// Param is a single parameter definition. Only the fields relevant to Type
// are populated; JSON output always includes Type plus that subset.
type Param struct {
	Type Type `json:"type"`

	// Categorical / Ordinal
	Choices value.NonEmptyStrings `json:"choices,omitempty"`

	// Continuous / Discrete / Fidelity
	Range value.Range `json:"range,omitempty"`
	Ln    bool        `json:"ln,omitempty"`
	Step  float64     `json:"step,omitempty"`
	// HasStep distinguishes Discrete/Fidelity with an explicit step from
	// one with none (Fidelity alone may omit it).
	HasStep bool `json:"has_step,omitempty"`

	// Normal
	Mean   value.Finite      `json:"mean,omitempty"`
	StdDev value.NonNegative `json:"stddev,omitempty"`
}

// NewCategorical builds a Categorical parameter.
func NewCategorical(choices []string) (Param, error) {
	c, err := value.NewNonEmptyStrings(choices)
	if err != nil {
		return Param{}, err
	}
	return Param{Type: Categorical, Choices: c}, nil
}

// NewOrdinal builds an Ordinal parameter (choices is significant-order).
func NewOrdinal(choices []string) (Param, error) {
	c, err := value.NewNonEmptyStrings(choices)
	if err != nil {
		return Param{}, err
	}
	return Param{Type: Ordinal, Choices: c}, nil
}

// NewContinuous builds a Continuous parameter; ln requires min > 0.
func NewContinuous(minV, maxV float64, ln bool) (Param, error) {
	r, err := value.NewRange(minV, maxV)
	if err != nil {
		return Param{}, err
	}
	if ln && r.Min <= 0 {
		return Param{}, herr.Invalidf("continuous parameter with ln=true requires min>0, got min=%v", r.Min)
	}
	return Param{Type: Continuous, Range: r, Ln: ln}, nil
}

// NewDiscrete builds a Discrete parameter; the effective max is snapped
// down to min + floor(width/step)*step. step must be > 0.
func NewDiscrete(minV, maxV, step float64) (Param, error) {
	r, err := value.NewRange(minV, maxV)
	if err != nil {
		return Param{}, err
	}
	if step <= 0 {
		return Param{}, herr.Invalidf("discrete parameter step must be > 0, got %v", step)
	}
	r.Max = snap(r.Min, r.Max, step)
	return Param{Type: Discrete, Range: r, Step: step, HasStep: true}, nil
}

// NewNormal builds a Normal parameter.
func NewNormal(mean, stddev float64) (Param, error) {
	m, err := value.NewFinite(mean)
	if err != nil {
		return Param{}, err
	}
	s, err := value.NewNonNegative(stddev)
	if err != nil {
		return Param{}, err
	}
	return Param{Type: Normal, Mean: m, StdDev: s}, nil
}

// NewFidelity builds a Fidelity parameter. step is optional: pass 0 and
// hasStep=false for "behaves like Continuous for snapping purposes".
func NewFidelity(minV, maxV, step float64, hasStep bool) (Param, error) {
	r, err := value.NewRange(minV, maxV)
	if err != nil {
		return Param{}, err
	}
	if hasStep {
		if step <= 0 {
			return Param{}, herr.Invalidf("fidelity parameter step must be > 0, got %v", step)
		}
		r.Max = snap(r.Min, r.Max, step)
	}
	return Param{Type: Fidelity, Range: r, Step: step, HasStep: hasStep}, nil
}

// snap computes min + floor((max-min)/step)*step, rounded to 15
// significant digits so binary rounding noise (3*0.3 is
// 0.8999999999999999) does not leak into the snapped bound.
func snap(minV, maxV, step float64) float64 {
	width := maxV - minV
	v := minV + math.Floor(width/step)*step
	v, _ = strconv.ParseFloat(strconv.FormatFloat(v, 'g', 15, 64), 64)
	return v
}

// AtMax reports whether v equals this parameter's range maximum, used by
// Observation.IsMaxFidelity. Only meaningful for Fidelity parameters.
func (p Param) AtMax(v float64) bool {
	return v == p.Range.Max
}

// Value is a parameter value: either a string (Categorical/Ordinal) or a
// finite float64 (numeric types). Exactly one of Str/Num is meaningful,
// selected by the owning Instance's Type.
type Value struct {
	Str string  `json:"str,omitempty"`
	Num float64 `json:"num,omitempty"`
}

// StringValue wraps a string value.
func StringValue(s string) Value { return Value{Str: s} }

// NumValue wraps a numeric value.
func NumValue(f float64) Value { return Value{Num: f} }

// Instance pairs a Param's Type with a concrete Value so the event log is
// self-describing about what produced the value (SPEC_FULL.md §3).
type Instance struct {
	Type  Type  `json:"type"`
	Value Value `json:"value"`
}
