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

// Package value holds the small bounded value types shared by the rest
// of hone: finite and non-negative floats, inclusive numeric ranges,
// non-empty string lists, the monotone Trial/Observation identifiers,
// elapsed-seconds, and the tempdir Scope enum. Every constructor here
// validates eagerly so a value, once constructed, can be trusted by its
// holder without re-checking.
package value // import "github.com/sile/hone/internal/value"

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/sile/hone/internal/herr"
)

// Finite is a float64 known not to be NaN or +/-Inf.
type Finite float64

// NewFinite validates f and wraps it.
func NewFinite(f float64) (Finite, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, herr.Invalidf("value must be finite, got %v", f)
	}
	return Finite(f), nil
}

// NonNegative is a finite float64 known to be >= 0.
type NonNegative float64

// NewNonNegative validates f and wraps it.
func NewNonNegative(f float64) (NonNegative, error) {
	fin, err := NewFinite(f)
	if err != nil {
		return 0, err
	}
	if fin < 0 {
		return 0, herr.Invalidf("value must be non-negative, got %v", f)
	}
	return NonNegative(fin), nil
}

// Range is an inclusive [Min, Max] numeric range with finite, ordered bounds.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// NewRange validates min <= max and that both bounds (and the width) are finite.
func NewRange(minV, maxV float64) (Range, error) {
	if _, err := NewFinite(minV); err != nil {
		return Range{}, fmt.Errorf("range min: %w", err)
	}
	if _, err := NewFinite(maxV); err != nil {
		return Range{}, fmt.Errorf("range max: %w", err)
	}
	if minV > maxV {
		return Range{}, herr.Invalidf("range min %v must be <= max %v", minV, maxV)
	}
	width := maxV - minV
	if math.IsInf(width, 0) {
		return Range{}, herr.Invalidf("range width (max-min) must be finite, got min=%v max=%v", minV, maxV)
	}
	return Range{Min: minV, Max: maxV}, nil
}

// Width returns Max - Min.
func (r Range) Width() float64 {
	return r.Max - r.Min
}

// Contains reports whether v is within [Min, Max] inclusive.
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// NonEmptyStrings is a []string known to hold at least one element.
type NonEmptyStrings []string

// NewNonEmptyStrings validates choices is non-empty and wraps it (a copy is kept).
func NewNonEmptyStrings(choices []string) (NonEmptyStrings, error) {
	if len(choices) == 0 {
		return nil, herr.Invalidf("choices list must not be empty")
	}
	out := make([]string, len(choices))
	copy(out, choices)
	return NonEmptyStrings(out), nil
}

// TrialID uniquely identifies a trial within one supervisor lifetime.
type TrialID uint64

// ObservationID uniquely identifies an observation within one supervisor lifetime.
type ObservationID uint64

// Counter is a monotone, non-shared id allocator: FetchAndIncrement returns
// the current value then advances. It is only ever touched from the
// supervisor's single goroutine, so it needs no locking (see SPEC_FULL.md §5).
type Counter uint64

// FetchAndIncrement returns the current value and advances the counter.
func (c *Counter) FetchAndIncrement() uint64 {
	v := uint64(*c)
	*c++
	return v
}

// NextTrialID allocates the next TrialID from c.
func (c *Counter) NextTrialID() TrialID {
	return TrialID(c.FetchAndIncrement())
}

// NextObservationID allocates the next ObservationID from c.
func (c *Counter) NextObservationID() ObservationID {
	return ObservationID(c.FetchAndIncrement())
}

// Elapsed is seconds since the current study's start instant, adjusted by
// any resumed offset (see SPEC_FULL.md §4.7). Serialized as a JSON number.
type Elapsed float64

// Scope selects which tempdir key space (and RPC mktemp target) a request
// refers to.
type Scope int

const (
	// ScopeObservation keys a tempdir by ObservationID.
	ScopeObservation Scope = iota
	// ScopeTrial keys a tempdir by TrialID.
	ScopeTrial
	// ScopeStudy keys the single study-wide tempdir.
	ScopeStudy
)

func (s Scope) String() string {
	switch s {
	case ScopeObservation:
		return "observation"
	case ScopeTrial:
		return "trial"
	case ScopeStudy:
		return "study"
	default:
		return fmt.Sprintf("Scope(%d)", int(s))
	}
}

// MarshalJSON renders the scope as its lowercase name.
func (s Scope) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON parses the scope from its lowercase name.
func (s *Scope) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	switch str {
	case "observation":
		*s = ScopeObservation
	case "trial":
		*s = ScopeTrial
	case "study":
		*s = ScopeStudy
	default:
		return herr.Invalidf("unknown scope %q", str)
	}
	return nil
}
