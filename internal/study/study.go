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

// Package study is the top-level event loop composing the event log,
// tempdir manager, tuner, RPC channel, and command runner (SPEC_FULL.md
// §4.6, component C9): it drives the tuner, starts/finishes observations,
// fields RPC messages, detects worker exits, finalizes observations,
// enforces worker-pool size, and honors the repeat bound and Quit
// termination.
package study // import "github.com/sile/hone/internal/study"

import (
	"time"

	"fortio.org/dflag"
	"fortio.org/log"

	"github.com/sile/hone/internal/eventlog"
	"github.com/sile/hone/internal/herr"
	"github.com/sile/hone/internal/metric"
	"github.com/sile/hone/internal/obs"
	"github.com/sile/hone/internal/param"
	"github.com/sile/hone/internal/rpc"
	"github.com/sile/hone/internal/runner"
	"github.com/sile/hone/internal/studyspec"
	"github.com/sile/hone/internal/tempdir"
	"github.com/sile/hone/internal/tuner"
	"github.com/sile/hone/internal/value"
	"github.com/sile/hone/stats"
)

// running is one in-flight observation: its record plus the process
// driving it.
type running struct {
	obs  *obs.Observation
	proc *runner.Runner
}

// Supervisor is the single-threaded loop owning all mutable study state.
// Per SPEC_FULL.md §5, it is the only goroutine that touches Tuner,
// tempdirs, the running set, and the id counters.
type Supervisor struct {
	Spec    studyspec.StudySpec
	Repeat  int
	Workers *dflag.DynInt64Value

	tuner   tuner.Tune
	tempdir *tempdir.Manager
	log     *eventlog.Writer
	server  *rpc.Server

	trialIDs value.Counter
	obsIDs   value.Counter
	running  map[value.ObservationID]*running

	terminating   bool
	finishedCount int
	start         time.Time
	elapsedOffset float64
	durations     *stats.Histogram
}

// NewSupervisor wires up a Supervisor ready to Run. workers is the
// worker-pool size, already registered by the caller as a dynamic flag
// (SPEC_FULL.md §1.1) so it can be resized live without restarting the
// study. NewSupervisor itself never touches a *flag.FlagSet: registering
// here too, on the same set the caller already used for "workers", would
// panic with "flag redefined" — the caller owns the one registration.
func NewSupervisor(
	spec studyspec.StudySpec,
	repeat int,
	workers *dflag.DynInt64Value,
	t tuner.Tune,
	logWriter *eventlog.Writer,
	tempdirBase string,
) (*Supervisor, error) {
	server, err := rpc.NewServer()
	if err != nil {
		return nil, herr.Wrap(herr.Fatal, err, "starting rpc server")
	}
	return &Supervisor{
		Spec:      spec,
		Repeat:    repeat,
		Workers:   workers,
		tuner:     t,
		tempdir:   tempdir.NewManager(tempdirBase),
		log:       logWriter,
		server:    server,
		running:   make(map[value.ObservationID]*running),
		durations: stats.NewHistogram(0, 0.05),
	}, nil
}

// ServerAddr returns the loopback address workers should dial, suitable
// for the HONE_SERVER_ADDR environment variable.
func (s *Supervisor) ServerAddr() string {
	return s.server.Addr.String()
}

// Run drives the main loop until repeat finished observations are
// reached or the tuner returns QuitOptimization, then releases all
// resources. paramDefs supplies the full parameter definition for any
// name the worker asks about that the tuner itself doesn't already know
// (the tuner's Ask only receives the def the caller passes in, so the
// supervisor needs a lookup from name to Param — this is provided by the
// caller because parameter definitions are a property of the worker
// command, not of hone's core).
func (s *Supervisor) Run(paramDefs map[string]param.Param) error {
	s.start = time.Now()
	for !s.doneCondition() {
		progressed := false

		progressed = s.schedule(paramDefs) || progressed
		progressed = s.drainRPC() || progressed
		progressed = s.reap() || progressed

		if !progressed {
			time.Sleep(time.Millisecond)
		}
	}
	for _, r := range s.running {
		_ = r.proc.Kill()
	}
	s.tempdir.RemoveStudy()
	if err := s.server.Close(); err != nil {
		log.LogVf("closing rpc server: %v", err)
	}
	s.durations.Log("hone_observation_durations", []float64{50, 90, 99})
	return nil
}

func (s *Supervisor) doneCondition() bool {
	if s.terminating && len(s.running) == 0 {
		return true
	}
	return s.finishedCount >= s.Repeat
}

// schedule implements main-loop step 1 (SPEC_FULL.md §4.6): while the
// running set is under the worker-pool size, finished plus running
// observations are under the repeat bound, and the study isn't
// terminating, consult the tuner for the next action.
func (s *Supervisor) schedule(paramDefs map[string]param.Param) bool {
	progressed := false
	for int64(len(s.running)) < s.Workers.Get() && s.finishedCount+len(s.running) < s.Repeat && !s.terminating {
		action, ok := s.tuner.NextAction()
		if !ok {
			s.startTrial(value.TrialID(0), true, paramDefs)
			progressed = true
			continue
		}
		switch action.Kind {
		case tuner.ResumeTrial:
			s.startTrial(action.TrialID, false, paramDefs)
			progressed = true
		case tuner.FinishTrial:
			s.tempdir.RemoveTrial(action.TrialID)
			if err := s.log.Write(eventlog.TrialFinished(action.TrialID)); err != nil {
				log.Fatalf("writing TrialFinished: %v", err)
			}
			progressed = true
		case tuner.WaitObservations:
			return progressed
		case tuner.QuitOptimization:
			s.terminating = true
			for _, r := range s.running {
				_ = r.proc.Kill()
			}
			return true
		}
	}
	return progressed
}

// startTrial begins a new observation. If newTrial is true, a fresh trial
// id is allocated and TrialStarted is logged first.
func (s *Supervisor) startTrial(trialID value.TrialID, newTrial bool, paramDefs map[string]param.Param) {
	if newTrial {
		trialID = s.trialIDs.NextTrialID()
		if err := s.log.Write(eventlog.TrialStarted(trialID)); err != nil {
			log.Fatalf("writing TrialStarted: %v", err)
		}
	}
	obsID := s.obsIDs.NextObservationID()
	elapsed := value.Elapsed(s.elapsedOffset + time.Since(s.start).Seconds())
	if err := s.log.Write(eventlog.ObservationStarted(obsID, trialID, elapsed)); err != nil {
		log.Fatalf("writing ObservationStarted: %v", err)
	}

	o := obs.New(obsID, trialID)
	for name, def := range paramDefs {
		o.ParamDefs[name] = def
	}
	proc, err := runner.Start(s.Spec.Command, s.ServerAddr(), s.Spec.ID, trialID, obsID)
	if err != nil {
		log.Errf("starting worker for observation %d: %v", obsID, err)
		failed := -1
		o.ExitStatus = &failed
		s.finishObservation(o, elapsed)
		return
	}
	s.running[obsID] = &running{obs: o, proc: proc}
}

// drainRPC implements main-loop step 2: dispatch every currently queued
// RPC message, non-blocking.
func (s *Supervisor) drainRPC() bool {
	progressed := false
	for {
		select {
		case msg := <-s.server.Inbound:
			s.dispatch(msg)
			progressed = true
		default:
			return progressed
		}
	}
}

func (s *Supervisor) dispatch(msg rpc.Message) {
	switch msg.Req.Proc {
	case rpc.ProcAsk:
		msg.Reply <- s.handleAsk(msg.Req.Ask)
	case rpc.ProcTell:
		msg.Reply <- s.handleTell(msg.Req.Tell)
	case rpc.ProcMktemp:
		msg.Reply <- s.handleMktemp(msg.Req.Mktemp)
	default:
		msg.Reply <- rpc.ErrReply("unknown procedure", herr.Protocolf("unknown rpc procedure %q", msg.Req.Proc))
	}
}

func (s *Supervisor) handleAsk(req *rpc.AskRequest) rpc.Reply {
	r, ok := s.running[req.ObservationID]
	if !ok {
		return rpc.ErrReply("ask", herr.Protocolf("unknown observation %d", req.ObservationID))
	}
	if inst, ok := r.obs.Params[req.ParamName]; ok {
		return rpc.OKReply(inst.Value)
	}
	v, err := s.tuner.Ask(r.obs, req.ParamName, req.Def)
	if err != nil {
		return rpc.ErrReply("ask", err)
	}
	r.obs.Params[req.ParamName] = param.Instance{Type: req.Def.Type, Value: v}
	r.obs.ParamDefs[req.ParamName] = req.Def
	return rpc.OKReply(v)
}

func (s *Supervisor) handleTell(req *rpc.TellRequest) rpc.Reply {
	r, ok := s.running[req.ObservationID]
	if !ok {
		return rpc.ErrReply("tell", herr.Protocolf("unknown observation %d", req.ObservationID))
	}
	inst, err := metric.NewInstance(req.MetricType, req.MetricValue)
	if err != nil {
		return rpc.ErrReply("tell", err)
	}
	r.obs.Metrics[req.MetricName] = inst
	return rpc.OKReply(struct{}{})
}

func (s *Supervisor) handleMktemp(req *rpc.MktempRequest) rpc.Reply {
	r, ok := s.running[req.ObservationID]
	if !ok {
		return rpc.ErrReply("mktemp", herr.Protocolf("unknown observation %d", req.ObservationID))
	}
	path, err := s.tempdir.Create(req.Scope, req.ObservationID, r.obs.TrialID, req.Parent)
	if err != nil {
		return rpc.ErrReply("mktemp", err)
	}
	return rpc.OKReply(path)
}

// reap implements main-loop step 3: finalize any worker that has exited.
func (s *Supervisor) reap() bool {
	progressed := false
	for obsID, r := range s.running {
		if !r.proc.IsExited() {
			continue
		}
		progressed = true
		r.obs.ExitStatus = r.proc.ExitStatus()
		delete(s.running, obsID)
		elapsed := value.Elapsed(s.elapsedOffset + time.Since(s.start).Seconds())
		s.finishObservation(r.obs, elapsed)
	}
	return progressed
}

// finishObservation tells the tuner, writes ObservationFinished, releases
// the observation's tempdir, and updates the duration histogram.
func (s *Supervisor) finishObservation(o *obs.Observation, elapsed value.Elapsed) {
	if err := s.tuner.Tell(o); err != nil {
		log.Warnf("tuner.Tell for observation %d: %v", o.ID, err)
	}
	if err := s.log.Write(eventlog.ObservationFinished(*o, elapsed)); err != nil {
		log.Fatalf("writing ObservationFinished: %v", err)
	}
	s.tempdir.RemoveObservation(o.ID)
	s.durations.Record(float64(elapsed))
	s.finishedCount++
}
