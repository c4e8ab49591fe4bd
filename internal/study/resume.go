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

package study

import (
	"io"

	"github.com/sile/hone/internal/eventlog"
	"github.com/sile/hone/internal/herr"
	"github.com/sile/hone/internal/obs"
	"github.com/sile/hone/internal/tuner"
	"github.com/sile/hone/internal/value"
)

// Resume replays a prior event log into the live log, remapping trial and
// observation ids so the resumed study's timeline is strictly monotonic
// and its ids never overlap with the new run's (SPEC_FULL.md §4.7). It
// aborts on the first malformed or out-of-order event — the log is
// authoritative and a corrupt prefix must not silently truncate history
// (SPEC_FULL.md §7).
func (s *Supervisor) Resume(r *eventlog.Reader, t tuner.Tune) error {
	trialMap := make(map[value.TrialID]value.TrialID)
	obsMap := make(map[value.ObservationID]value.ObservationID)
	var lastElapsed value.Elapsed
	skipping := true
	sawStudy := false

	for {
		e, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return herr.Wrap(herr.Fatal, err, "resume: reading prior event log")
		}

		switch e.Kind {
		case eventlog.KindStudyStarted:
			// A log may carry more than one study (several StudyStarted
			// sections in one --load file): fold the previous section's
			// elapsed time and start its id maps fresh before replaying the
			// next one.
			if sawStudy {
				s.elapsedOffset += float64(lastElapsed)
			}
			sawStudy = true
			lastElapsed = 0
			trialMap = make(map[value.TrialID]value.TrialID)
			obsMap = make(map[value.ObservationID]value.ObservationID)
			skipping = true
			continue
		case eventlog.KindStudyDefined:
			skipping = false
			continue
		}
		if skipping {
			continue
		}

		switch e.Kind {
		case eventlog.KindTrialStarted:
			newID := s.trialIDs.NextTrialID()
			trialMap[*e.TrialID] = newID
			if err := s.log.Write(eventlog.TrialStarted(newID)); err != nil {
				return herr.Wrap(herr.Fatal, err, "resume: writing TrialStarted")
			}
		case eventlog.KindObservationStarted:
			newTrial, ok := trialMap[*e.ObservationTrialID]
			if !ok {
				return herr.Protocolf("resume: observation references unknown trial %d", *e.ObservationTrialID)
			}
			newObs := s.obsIDs.NextObservationID()
			obsMap[*e.ObservationID] = newObs
			lastElapsed = *e.Elapsed
			translated := s.elapsedOffset + float64(*e.Elapsed)
			if err := s.log.Write(eventlog.ObservationStarted(newObs, newTrial, value.Elapsed(translated))); err != nil {
				return herr.Wrap(herr.Fatal, err, "resume: writing ObservationStarted")
			}
		case eventlog.KindObservationFinished:
			translatedObs, err := translateObservation(*e.Observation, trialMap, obsMap)
			if err != nil {
				return err
			}
			lastElapsed = *e.Elapsed
			if err := t.Tell(translatedObs); err != nil {
				return herr.Wrap(herr.Fatal, err, "resume: tuner.Tell during replay")
			}
			translatedElapsed := value.Elapsed(s.elapsedOffset + float64(*e.Elapsed))
			if err := s.log.Write(eventlog.ObservationFinished(*translatedObs, translatedElapsed)); err != nil {
				return herr.Wrap(herr.Fatal, err, "resume: writing ObservationFinished")
			}
			s.finishedCount++
		case eventlog.KindTrialFinished:
			newID, ok := trialMap[*e.TrialID]
			if !ok {
				return herr.Protocolf("resume: TrialFinished references unknown trial %d", *e.TrialID)
			}
			if err := s.log.Write(eventlog.TrialFinished(newID)); err != nil {
				return herr.Wrap(herr.Fatal, err, "resume: writing TrialFinished")
			}
		}
	}

	s.elapsedOffset += float64(lastElapsed)
	return nil
}

// translateObservation remaps obs.id and obs.trial_id through the id
// maps built up during replay, returning a copy so the original event's
// record is left untouched.
func translateObservation(o obs.Observation, trialMap map[value.TrialID]value.TrialID, obsMap map[value.ObservationID]value.ObservationID) (*obs.Observation, error) {
	newTrial, ok := trialMap[o.TrialID]
	if !ok {
		return nil, herr.Protocolf("resume: ObservationFinished references unknown trial %d", o.TrialID)
	}
	newObsID, ok := obsMap[o.ID]
	if !ok {
		return nil, herr.Protocolf("resume: ObservationFinished references unknown observation %d", o.ID)
	}
	translated := o.Clone()
	translated.ID = newObsID
	translated.TrialID = newTrial
	return translated, nil
}
