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

// Package eventlog is the append-only newline-delimited JSON journal of
// study, trial, and observation lifecycle events (SPEC_FULL.md §4.1,
// component C4). It is both hone's output format and its resume source.
// Wire marshaling reuses the teacher's jrpc.Serialize/Deserialize helpers
// the same way jrpcServer used to for HTTP bodies.
package eventlog // import "github.com/sile/hone/internal/eventlog"

import (
	"bufio"
	"encoding/json"
	"io"
	"os"

	"fortio.org/log"

	"github.com/sile/hone/internal/herr"
	"github.com/sile/hone/internal/obs"
	"github.com/sile/hone/internal/studyspec"
	"github.com/sile/hone/internal/value"
	"github.com/sile/hone/jrpc"
)

// Kind discriminates the outer event variant.
type Kind string

const (
	KindStudyStarted        Kind = "study_started"
	KindStudyDefined        Kind = "study_defined"
	KindTrialStarted        Kind = "trial_started"
	KindTrialFinished       Kind = "trial_finished"
	KindObservationStarted  Kind = "observation_started"
	KindObservationFinished Kind = "observation_finished"
)

// Event is the envelope written to (and read from) the log. Only the
// field(s) relevant to Kind are populated.
type Event struct {
	Kind Kind `json:"kind"`

	Spec *studyspec.StudySpec `json:"spec,omitempty"`

	TrialID *value.TrialID `json:"trial_id,omitempty"`

	ObservationID *value.ObservationID `json:"observation_id,omitempty"`
	// ObservationTrialID is only populated on ObservationStarted, since
	// ObservationFinished carries the full Observation (which already has
	// a TrialID field).
	ObservationTrialID *value.TrialID `json:"observation_trial_id,omitempty"`
	Elapsed            *value.Elapsed `json:"elapsed,omitempty"`

	Observation *obs.Observation `json:"observation,omitempty"`
}

// StudyStarted builds the event marking the wall-clock origin.
func StudyStarted() Event { return Event{Kind: KindStudyStarted} }

// StudyDefined builds the event carrying the immutable study spec.
func StudyDefined(spec studyspec.StudySpec) Event {
	return Event{Kind: KindStudyDefined, Spec: &spec}
}

// TrialStarted builds the event marking a trial's first observation.
func TrialStarted(id value.TrialID) Event {
	return Event{Kind: KindTrialStarted, TrialID: &id}
}

// TrialFinished builds the event marking a trial as complete.
func TrialFinished(id value.TrialID) Event {
	return Event{Kind: KindTrialFinished, TrialID: &id}
}

// ObservationStarted builds the event marking an observation's start, with
// the elapsed wall-clock time since study start (already offset-adjusted
// by the caller on resume).
func ObservationStarted(obsID value.ObservationID, trialID value.TrialID, elapsed value.Elapsed) Event {
	return Event{
		Kind:               KindObservationStarted,
		ObservationID:      &obsID,
		ObservationTrialID: &trialID,
		Elapsed:            &elapsed,
	}
}

// ObservationFinished builds the event carrying the full final observation
// record (invariant 3: subsequent tools need no other source).
func ObservationFinished(o obs.Observation, elapsed value.Elapsed) Event {
	return Event{Kind: KindObservationFinished, Observation: &o, Elapsed: &elapsed}
}

// Writer appends events to an underlying io.Writer, flushing (and, when
// the writer is an *os.File backed by a regular file, fsync-ing) after
// every record. Per
// SPEC_FULL.md §4.1/§7, a write failure here is fatal to the supervisor:
// the log is the system's only durable output.
type Writer struct {
	w       *bufio.Writer
	flusher interface{ Sync() error }
}

// NewWriter wraps w. If w is an *os.File backed by a regular file, Write
// additionally fsyncs after each record; pipes and terminals (such as a
// piped stdout) are only flushed, since fsync fails on them.
func NewWriter(w io.Writer) *Writer {
	wr := &Writer{w: bufio.NewWriter(w)}
	if f, ok := w.(*os.File); ok {
		if st, err := f.Stat(); err == nil && st.Mode().IsRegular() {
			wr.flusher = f
		}
	}
	return wr
}

// Write serializes e, appends a trailing LF, flushes, and (if backed by a
// file) fsyncs, returning a Fatal-kind error on any failure.
func (wr *Writer) Write(e Event) error {
	buf, err := jrpc.Serialize(e)
	if err != nil {
		return herr.Wrap(herr.Fatal, err, "serializing event %s", e.Kind)
	}
	if _, err := wr.w.Write(buf); err != nil {
		return herr.Wrap(herr.Fatal, err, "writing event %s", e.Kind)
	}
	if err := wr.w.WriteByte('\n'); err != nil {
		return herr.Wrap(herr.Fatal, err, "writing newline after event %s", e.Kind)
	}
	if err := wr.w.Flush(); err != nil {
		return herr.Wrap(herr.Fatal, err, "flushing event %s", e.Kind)
	}
	if wr.flusher != nil {
		if err := wr.flusher.Sync(); err != nil {
			return herr.Wrap(herr.Fatal, err, "fsyncing event %s", e.Kind)
		}
	}
	return nil
}

// Reader decodes one JSON event per line.
type Reader struct {
	sc      *bufio.Scanner
	lenient bool
}

// NewReader wraps r for strict decoding: malformed lines return an error
// from Read.
func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	return &Reader{sc: sc}
}

// NewLenientReader wraps r for `show best`'s lenient mode: malformed
// lines are reported via Read's error return but do not stop iteration —
// the caller calls Read again to continue past the bad line.
func NewLenientReader(r io.Reader) *Reader {
	rr := NewReader(r)
	rr.lenient = true
	return rr
}

// Read decodes the next event. io.EOF signals a clean end of stream. In
// lenient mode, a malformed line returns (Event{}, parseErr) but the
// Reader remains usable for a subsequent Read call; in strict mode the
// same error is returned but callers are expected to abort (the resume
// loader does so per SPEC_FULL.md §7).
func (r *Reader) Read() (Event, error) {
	if !r.sc.Scan() {
		if err := r.sc.Err(); err != nil {
			return Event{}, herr.Wrap(herr.IoError, err, "reading event log")
		}
		return Event{}, io.EOF
	}
	line := r.sc.Bytes()
	var e Event
	if err := json.Unmarshal(line, &e); err != nil {
		if r.lenient {
			log.Warnf("malformed event log line skipped: %v", err)
		}
		return Event{}, herr.Wrap(herr.InvalidInput, err, "parsing event log line %q", string(line))
	}
	return e, nil
}

// Lenient reports whether r was constructed with NewLenientReader.
func (r *Reader) Lenient() bool {
	return r.lenient
}
