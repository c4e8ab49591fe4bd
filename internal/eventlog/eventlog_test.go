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

package eventlog

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"fortio.org/assert"

	"github.com/sile/hone/internal/obs"
	"github.com/sile/hone/internal/studyspec"
	"github.com/sile/hone/internal/value"
)

func TestWriteReadRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	events := []Event{
		StudyStarted(),
		StudyDefined(studyspec.New("s", studyspec.TunerSpec{Kind: studyspec.TunerRandom}, studyspec.Command{Path: "echo"}, nil)),
		TrialStarted(0),
		ObservationStarted(0, 0, value.Elapsed(0.5)),
		ObservationFinished(*obs.New(0, 0), value.Elapsed(1.5)),
		TrialFinished(0),
	}
	for _, e := range events {
		assert.NoError(t, w.Write(e))
	}

	r := NewReader(&buf)
	for i, want := range events {
		got, err := r.Read()
		assert.NoError(t, err)
		assert.Equal(t, want.Kind, got.Kind, "event %d kind", i)
	}
	_, err := r.Read()
	assert.True(t, err == io.EOF, "expect EOF at end of stream")
}

func TestLenientReaderSkipsBadLines(t *testing.T) {
	r := NewLenientReader(strings.NewReader("not json\n" + `{"kind":"trial_started","trial_id":1}` + "\n"))
	assert.True(t, r.Lenient(), "reader must report lenient")
	_, err := r.Read()
	assert.Error(t, err, "first line is malformed")
	got, err := r.Read()
	assert.NoError(t, err)
	assert.Equal(t, KindTrialStarted, got.Kind)
}

func TestElapsedToleratesIntegerEncoding(t *testing.T) {
	r := NewReader(strings.NewReader(`{"kind":"observation_started","observation_id":0,"observation_trial_id":0,"elapsed":3}` + "\n"))
	got, err := r.Read()
	assert.NoError(t, err)
	assert.Equal(t, value.Elapsed(3), *got.Elapsed)
}
