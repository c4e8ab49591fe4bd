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

// Package tempdir is the scoped temporary-directory manager (SPEC_FULL.md
// §4.2, component C5): three key spaces (study/trial/observation), with
// idempotent creation within a scope and guaranteed (best-effort, logged)
// recursive removal on release. No third-party library in the retrieval
// pack wraps directory lifetimes, so this is built directly on
// os.MkdirTemp/os.RemoveAll (see DESIGN.md); live keys are tracked with a
// plain map[T]string (id to directory path) in place of the unwired
// fortio.org/sets dependency (see SPEC_FULL.md §1.2).
package tempdir // import "github.com/sile/hone/internal/tempdir"

import (
	"fmt"
	"os"

	"fortio.org/log"

	"github.com/sile/hone/internal/herr"
	"github.com/sile/hone/internal/value"
)

// Manager owns all live temporary directories for one study.
type Manager struct {
	base         string
	study        string
	studyCreated bool
	trials       map[value.TrialID]string
	observations map[value.ObservationID]string
}

// NewManager creates a Manager that allocates directories under base
// (the platform default temp dir if base is empty).
func NewManager(base string) *Manager {
	return &Manager{
		base:         base,
		trials:       make(map[value.TrialID]string),
		observations: make(map[value.ObservationID]string),
	}
}

// Study returns the study-scoped directory, creating it on first call
// (idempotent).
func (m *Manager) Study() (string, error) {
	if m.studyCreated {
		return m.study, nil
	}
	dir, err := os.MkdirTemp(m.base, "hone-study-*")
	if err != nil {
		return "", herr.Wrap(herr.IoError, err, "creating study tempdir")
	}
	m.study = dir
	m.studyCreated = true
	return dir, nil
}

// Trial returns the tempdir for trial id, creating it under parent (or
// the study dir if parent is empty) on first call for that id.
func (m *Manager) Trial(id value.TrialID, parent string) (string, error) {
	if dir, ok := m.trials[id]; ok {
		return dir, nil
	}
	if parent == "" {
		var err error
		parent, err = m.Study()
		if err != nil {
			return "", err
		}
	}
	dir, err := os.MkdirTemp(parent, fmt.Sprintf("trial-%d-*", id))
	if err != nil {
		return "", herr.Wrap(herr.IoError, err, "creating trial %d tempdir", id)
	}
	m.trials[id] = dir
	return dir, nil
}

// Observation returns the tempdir for observation id, creating it under
// parent (or the study dir if parent is empty) on first call for that id.
func (m *Manager) Observation(id value.ObservationID, parent string) (string, error) {
	if dir, ok := m.observations[id]; ok {
		return dir, nil
	}
	if parent == "" {
		var err error
		parent, err = m.Study()
		if err != nil {
			return "", err
		}
	}
	dir, err := os.MkdirTemp(parent, fmt.Sprintf("obs-%d-*", id))
	if err != nil {
		return "", herr.Wrap(herr.IoError, err, "creating observation %d tempdir", id)
	}
	m.observations[id] = dir
	return dir, nil
}

// RemoveTrial releases trial id's tempdir, if any. Idempotent: removing a
// never-created or already-removed trial is a no-op. Removal failures are
// logged but never returned (SPEC_FULL.md §4.2: "failures are logged but
// do not propagate").
func (m *Manager) RemoveTrial(id value.TrialID) {
	dir, ok := m.trials[id]
	if !ok {
		return
	}
	delete(m.trials, id)
	if err := os.RemoveAll(dir); err != nil {
		log.Warnf("removing trial %d tempdir %s: %v", id, dir, err)
	}
}

// RemoveObservation releases observation id's tempdir, if any.
func (m *Manager) RemoveObservation(id value.ObservationID) {
	dir, ok := m.observations[id]
	if !ok {
		return
	}
	delete(m.observations, id)
	if err := os.RemoveAll(dir); err != nil {
		log.Warnf("removing observation %d tempdir %s: %v", id, dir, err)
	}
}

// RemoveStudy releases the study-scoped directory, if created. Called at
// study end to clean up everything still under it (any leftover trial or
// observation directories nested beneath are removed as part of the
// recursive study removal).
func (m *Manager) RemoveStudy() {
	if !m.studyCreated {
		return
	}
	dir := m.study
	m.studyCreated = false
	m.trials = make(map[value.TrialID]string)
	m.observations = make(map[value.ObservationID]string)
	if err := os.RemoveAll(dir); err != nil {
		log.Warnf("removing study tempdir %s: %v", dir, err)
	}
}

// Create dispatches on scope to the matching method, given the
// observation's own id, its trial id, and an optional explicit parent
// directory (SPEC_FULL.md §4.4's mktemp RPC: scope selects the key
// space, parent overrides the default nesting).
func (m *Manager) Create(scope value.Scope, obsID value.ObservationID, trialID value.TrialID, parent string) (string, error) {
	switch scope {
	case value.ScopeStudy:
		return m.Study()
	case value.ScopeTrial:
		return m.Trial(trialID, parent)
	case value.ScopeObservation:
		return m.Observation(obsID, parent)
	default:
		return "", herr.Invalidf("unknown tempdir scope %v", scope)
	}
}
