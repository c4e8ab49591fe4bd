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

// Package metric holds the metric type sum and comparison rule
// (SPEC_FULL.md §3), grounded on original_source/src/domain.rs's
// ObjectiveType (Minimize/Maximize) extended per spec.md with the two
// non-competing report-only kinds, Record and Judge.
package metric // import "github.com/sile/hone/internal/metric"

import (
	"encoding/json"

	"github.com/sile/hone/internal/herr"
	"github.com/sile/hone/internal/value"
)

// Type discriminates how a metric participates in tuning and "show best".
type Type int

const (
	Minimize Type = iota
	Maximize
	Record
	Judge
)

func (t Type) String() string {
	switch t {
	case Minimize:
		return "minimize"
	case Maximize:
		return "maximize"
	case Record:
		return "record"
	case Judge:
		return "judge"
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
	case "minimize":
		*t = Minimize
	case "maximize":
		*t = Maximize
	case "record":
		*t = Record
	case "judge":
		*t = Judge
	default:
		return herr.Invalidf("unknown metric type %q", s)
	}
	return nil
}

// Instance pairs a metric Type with its reported value.
type Instance struct {
	Type  Type         `json:"type"`
	Value value.Finite `json:"value"`
}

// NewInstance validates and wraps v.
func NewInstance(t Type, v float64) (Instance, error) {
	fin, err := value.NewFinite(v)
	if err != nil {
		return Instance{}, err
	}
	return Instance{Type: t, Value: fin}, nil
}

// IsBetterThan reports whether a is a better outcome than b under t.
// Record and Judge metrics never compete: always false, per spec.md §9's
// open-question resolution.
func (t Type) IsBetterThan(a, b float64) bool {
	switch t {
	case Minimize:
		return a < b
	case Maximize:
		return a > b
	case Record, Judge:
		return false
	default:
		return false
	}
}
