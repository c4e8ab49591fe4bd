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
	"github.com/sile/hone/internal/herr"
	"github.com/sile/hone/internal/obs"
	"github.com/sile/hone/internal/param"
)

// retryState tracks one trial's first failed observation and how many
// times it has been retried so far.
type retryState struct {
	failed *obs.Observation
	count  int
}

// Retry decorates an inner tuner, re-running failed observations up to
// MaxRetries times with identical parameters (SPEC_FULL.md §4.3). Per
// §9's resolved open question, a successful retry is merged into the
// originally-failed observation, preserving its id.
type Retry struct {
	inner      Tune
	maxRetries int
	pending    map[uint64]*retryState // keyed by TrialID
	queue      []Action
}

// NewRetry wraps inner, retrying each failed trial up to maxRetries times
// (maxRetries must be >= 1).
func NewRetry(inner Tune, maxRetries int) (*Retry, error) {
	if maxRetries < 1 {
		return nil, herr.Invalidf("retry tuner requires max_retries >= 1, got %d", maxRetries)
	}
	return &Retry{inner: inner, maxRetries: maxRetries, pending: make(map[uint64]*retryState)}, nil
}

// Ask implements Tune: if this trial has a recorded failed observation,
// reuse its previously-asked value for name; fail if name was never asked
// before (a retry must ask for identical parameters). Otherwise delegate
// to the inner tuner.
func (r *Retry) Ask(o *obs.Observation, name string, def param.Param) (param.Value, error) {
	st, ok := r.pending[uint64(o.TrialID)]
	if !ok {
		return r.inner.Ask(o, name, def)
	}
	inst, ok := st.failed.Params[name]
	if !ok {
		return param.Value{}, herr.Invalidf("retry tuner: trial %d retried with new parameter %q not present in the failed attempt", o.TrialID, name)
	}
	return inst.Value, nil
}

// Tell implements Tune. A succeeding observation is merged into the
// stored failed observation (preserving its original id and params) and
// forwarded to the inner tuner; a failing observation is either queued
// for ResumeTrial or, once maxRetries is exhausted, forwarded to the
// inner tuner as-is.
func (r *Retry) Tell(o *obs.Observation) error {
	key := uint64(o.TrialID)
	st, wasFailing := r.pending[key]

	if o.IsSucceeded() {
		if wasFailing {
			merged := st.failed.Clone()
			for k, v := range o.Metrics {
				merged.Metrics[k] = v
			}
			merged.ExitStatus = o.ExitStatus
			delete(r.pending, key)
			return r.inner.Tell(merged)
		}
		return r.inner.Tell(o)
	}

	// Failed. The original failed observation is kept (not overwritten by
	// later retries): on exhaustion the inner tuner is told about the
	// first failure, matching spec.md's retry-exhaustion scenario.
	if !wasFailing {
		st = &retryState{failed: o.Clone()}
		r.pending[key] = st
	}
	if st.count < r.maxRetries {
		st.count++
		r.queue = append(r.queue, Action{Kind: ResumeTrial, TrialID: o.TrialID})
		return nil
	}
	delete(r.pending, key)
	return r.inner.Tell(st.failed)
}

// NextAction implements Tune: this tuner's own queue drains first, then
// the inner tuner's.
func (r *Retry) NextAction() (Action, bool) {
	if len(r.queue) > 0 {
		a := r.queue[0]
		r.queue = r.queue[1:]
		return a, true
	}
	return r.inner.NextAction()
}
