// Copyright 2022 Fortio Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package best computes `hone show best`'s result: per study, the best
// (by metric.Type.IsBetterThan) observation for each metric name
// (spec.md §6.1). Record and Judge metrics never win (spec.md §9's
// resolved open question). Also tallies a stats.Histogram per metric
// name across every observation that reported it, so the CLI can print a
// percentile summary the way `fortio report` prints latency percentiles.
package best // import "github.com/sile/hone/internal/best"

import (
	"errors"
	"io"
	"sort"

	"fortio.org/log"

	"github.com/sile/hone/internal/eventlog"
	"github.com/sile/hone/internal/metric"
	"github.com/sile/hone/internal/obs"
	"github.com/sile/hone/internal/studyspec"
	"github.com/sile/hone/stats"
)

// Result holds the computed best observation per metric name, and a
// value histogram per metric name, for one study.
type Result struct {
	Spec         studyspec.StudySpec
	BestByMetric map[string]*obs.Observation
	Histograms   map[string]*stats.Histogram
}

// Compute reads events from src (in lenient mode: malformed lines are
// skipped with a warning rather than aborting, per spec.md §4.1's "used
// only by show best" lenient mode) and returns one Result per study
// encountered, in the order their StudyDefined events appeared.
func Compute(src io.Reader) ([]*Result, error) {
	r := eventlog.NewLenientReader(src)
	var results []*Result
	var cur *Result

	for {
		e, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			log.Warnf("show best: skipping malformed line: %v", err)
			continue
		}
		switch e.Kind {
		case eventlog.KindStudyDefined:
			cur = &Result{
				Spec:         *e.Spec,
				BestByMetric: make(map[string]*obs.Observation),
				Histograms:   make(map[string]*stats.Histogram),
			}
			results = append(results, cur)
		case eventlog.KindObservationFinished:
			if cur != nil {
				cur.absorb(e.Observation)
			}
		}
	}
	return results, nil
}

// absorb folds one finished observation's metrics into the running best
// and histograms.
func (res *Result) absorb(o *obs.Observation) {
	for name, inst := range o.Metrics {
		h, ok := res.Histograms[name]
		if !ok {
			h = stats.NewHistogram(0, 1)
			res.Histograms[name] = h
		}
		h.Record(float64(inst.Value))

		if inst.Type == metric.Record || inst.Type == metric.Judge {
			continue
		}
		best, ok := res.BestByMetric[name]
		if !ok {
			res.BestByMetric[name] = o
			continue
		}
		bestVal := float64(best.Metrics[name].Value)
		if inst.Type.IsBetterThan(float64(inst.Value), bestVal) {
			res.BestByMetric[name] = o
		}
	}
}

// SortedMetricNames returns the metric names that competed (Record/Judge
// excluded), lexicographically.
func (res *Result) SortedMetricNames() []string {
	names := make([]string, 0, len(res.BestByMetric))
	for n := range res.BestByMetric {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
