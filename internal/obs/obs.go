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

// Package obs holds the in-memory Observation and Trial records
// (SPEC_FULL.md §3, component C3): a trial is an identity plus its
// multiset of observations; an observation links one execution of the
// user command to the parameters it was asked and the metrics it
// reported.
package obs // import "github.com/sile/hone/internal/obs"

import (
	"sort"

	"github.com/sile/hone/internal/metric"
	"github.com/sile/hone/internal/param"
	"github.com/sile/hone/internal/value"
)

// Observation is one execution of the user command with a concrete
// parameter assignment and collected metrics. Params and Metrics are
// stored as maps but always serialized/iterated in lexicographic key
// order (SortedParamNames/SortedMetricNames) for deterministic output.
type Observation struct {
	ID         value.ObservationID         `json:"id"`
	TrialID    value.TrialID               `json:"trial_id"`
	Params     map[string]param.Instance   `json:"params"`
	ParamDefs  map[string]param.Param      `json:"-"`
	Metrics    map[string]metric.Instance  `json:"metrics"`
	ExitStatus *int                        `json:"exit_status"`
}

// New creates an empty Observation owned by trial, with no params/metrics
// and no exit status (not yet finished).
func New(id value.ObservationID, trial value.TrialID) *Observation {
	return &Observation{
		ID:        id,
		TrialID:   trial,
		Params:    make(map[string]param.Instance),
		ParamDefs: make(map[string]param.Param),
		Metrics:   make(map[string]metric.Instance),
	}
}

// SortedParamNames returns param names in lexicographic order.
func (o *Observation) SortedParamNames() []string {
	names := make([]string, 0, len(o.Params))
	for n := range o.Params {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// SortedMetricNames returns metric names in lexicographic order.
func (o *Observation) SortedMetricNames() []string {
	names := make([]string, 0, len(o.Metrics))
	for n := range o.Metrics {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// IsSucceeded reports whether the observation finished with exit code 0.
func (o *Observation) IsSucceeded() bool {
	return o.ExitStatus != nil && *o.ExitStatus == 0
}

// IsMaxFidelity reports whether the observation succeeded and every
// Fidelity-typed parameter it was asked holds its range maximum.
func (o *Observation) IsMaxFidelity() bool {
	if !o.IsSucceeded() {
		return false
	}
	for name, inst := range o.Params {
		if inst.Type != param.Fidelity {
			continue
		}
		def, ok := o.ParamDefs[name]
		if !ok || !def.AtMax(inst.Value.Num) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of o (used by the retry tuner to snapshot a
// failed observation's params before merging in a later success).
func (o *Observation) Clone() *Observation {
	c := New(o.ID, o.TrialID)
	for k, v := range o.Params {
		c.Params[k] = v
	}
	for k, v := range o.ParamDefs {
		c.ParamDefs[k] = v
	}
	for k, v := range o.Metrics {
		c.Metrics[k] = v
	}
	if o.ExitStatus != nil {
		v := *o.ExitStatus
		c.ExitStatus = &v
	}
	return c
}

// Trial is an identity only; its state is the multiset of observations
// referencing it by TrialID (held externally, e.g. by the supervisor or
// the retry tuner).
type Trial struct {
	ID value.TrialID `json:"trial_id"`
}
