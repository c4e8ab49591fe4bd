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

// Package studyspec holds the immutable description of a study
// (SPEC_FULL.md §3): its identity, free-form attrs (hostname, version,
// user-supplied --attr k=v per SPEC_FULL.md §3.1), the tuner
// configuration, and the worker command to run. Once a study starts,
// its StudySpec never changes.
package studyspec // import "github.com/sile/hone/internal/studyspec"

import (
	"os"
	"sort"

	"github.com/google/uuid"
	"github.com/sile/hone/version"
)

// Command is the worker command to spawn for every observation.
type Command struct {
	Path string   `json:"path"`
	Args []string `json:"args"`
}

// TunerKind names a concrete Tune implementation, as carried in TunerSpec.
type TunerKind string

const (
	TunerRandom TunerKind = "random"
	TunerRetry  TunerKind = "retry"
)

// TunerSpec describes which tuner to construct and its parameters. Retry
// wraps an inner kind (always Random in this implementation, per
// SPEC_FULL.md's "only the Tune contract must accept" advanced tuners).
type TunerSpec struct {
	Kind    TunerKind `json:"kind"`
	Seed    *int64    `json:"seed,omitempty"`
	Retries int       `json:"retries,omitempty"`
}

// StudySpec is the immutable description of one study.
type StudySpec struct {
	Name    string            `json:"name"`
	ID      string            `json:"id"`
	Attrs   map[string]string `json:"attrs"`
	Tuner   TunerSpec         `json:"tuner"`
	Command Command           `json:"command"`
}

// New builds a StudySpec, allocating a fresh UUID and seeding Attrs with
// hone_version and hostname (SPEC_FULL.md §3.1).
func New(name string, tuner TunerSpec, command Command, extraAttrs map[string]string) StudySpec {
	attrs := make(map[string]string, len(extraAttrs)+2)
	attrs["hone_version"] = version.Short()
	if host, err := os.Hostname(); err == nil {
		attrs["hostname"] = host
	}
	for k, v := range extraAttrs {
		attrs[k] = v
	}
	return StudySpec{
		Name:    name,
		ID:      uuid.New().String(),
		Attrs:   attrs,
		Tuner:   tuner,
		Command: command,
	}
}

// SortedAttrNames returns attr keys in lexicographic order, for
// deterministic display.
func (s StudySpec) SortedAttrNames() []string {
	names := make([]string, 0, len(s.Attrs))
	for k := range s.Attrs {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
