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

// Package runner spawns one worker subprocess per observation and exposes
// a non-blocking way to learn it has exited (SPEC_FULL.md §4.5, component
// C8). os/exec has no native try_wait, so the standard idiom — one
// goroutine blocked in cmd.Wait(), signaling a buffered done channel — is
// used instead, mirroring the only non-blocking-completion pattern the
// retrieval pack exercises (the command runner in
// other_examples/69371552_erigontech-rpc-tests__internal-runner-runner.go.go,
// which also attaches stdout/stderr straight to the parent's and waits on
// cmd.Wait() from a dedicated goroutine).
package runner // import "github.com/sile/hone/internal/runner"

import (
	"os"
	"os/exec"
	"strconv"

	"fortio.org/log"

	"github.com/sile/hone/internal/herr"
	"github.com/sile/hone/internal/studyspec"
	"github.com/sile/hone/internal/value"
)

// Env names the environment variables injected into every worker
// (SPEC_FULL.md §6).
const (
	EnvServerAddr    = "HONE_SERVER_ADDR"
	EnvStudyID       = "HONE_STUDY_ID"
	EnvTrialID       = "HONE_TRIAL_ID"
	EnvObservationID = "HONE_OBSERVATION_ID"
)

// Runner owns one spawned worker subprocess and reports its exit status
// without blocking the caller.
type Runner struct {
	cmd        *exec.Cmd
	done       chan struct{}
	exitStatus *int // nil until exited; nil after exit too iff signaled
	waitErr    error
}

// Start spawns command.Path/Args for the given identifiers, with
// HONE_SERVER_ADDR/HONE_STUDY_ID/HONE_TRIAL_ID/HONE_OBSERVATION_ID added
// to the environment, stdin attached to /dev/null, and stdout/stderr
// inherited from the parent process.
func Start(
	command studyspec.Command,
	serverAddr string,
	studyID string,
	trialID value.TrialID,
	obsID value.ObservationID,
) (*Runner, error) {
	cmd := exec.Command(command.Path, command.Args...)
	cmd.Env = append(os.Environ(),
		EnvServerAddr+"="+serverAddr,
		EnvStudyID+"="+studyID,
		EnvTrialID+"="+trialIDString(trialID),
		EnvObservationID+"="+obsIDString(obsID),
	)
	devNull, err := os.Open(os.DevNull)
	if err != nil {
		return nil, herr.Wrap(herr.ChildError, err, "opening %s", os.DevNull)
	}
	cmd.Stdin = devNull
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		devNull.Close()
		return nil, herr.Wrap(herr.ChildError, err, "starting worker command %q", command.Path)
	}

	r := &Runner{cmd: cmd, done: make(chan struct{})}
	go func() {
		r.waitErr = cmd.Wait()
		devNull.Close()
		close(r.done)
	}()
	return r, nil
}

// IsExited reports whether the worker has exited, non-blocking. On the
// first call after exit, it also records the exit status (nil if the
// process was killed by a signal rather than exiting normally).
func (r *Runner) IsExited() bool {
	select {
	case <-r.done:
		if r.exitStatus == nil {
			code := exitCode(r.cmd, r.waitErr)
			r.exitStatus = code
		}
		return true
	default:
		return false
	}
}

// ExitStatus returns the recorded exit status. Only meaningful once
// IsExited reports true; nil means the process was killed by a signal.
func (r *Runner) ExitStatus() *int {
	return r.exitStatus
}

// Kill requests termination of the worker process.
func (r *Runner) Kill() error {
	if err := r.cmd.Process.Kill(); err != nil {
		log.LogVf("killing worker pid %d: %v", r.cmd.Process.Pid, err)
		return err
	}
	return nil
}

func exitCode(cmd *exec.Cmd, waitErr error) *int {
	if waitErr == nil {
		code := cmd.ProcessState.ExitCode()
		return &code
	}
	if exitErr, ok := waitErr.(*exec.ExitError); ok {
		if exitErr.ProcessState.ExitCode() >= 0 {
			code := exitErr.ProcessState.ExitCode()
			return &code
		}
		// Negative ExitCode means terminated by signal.
		return nil
	}
	log.Warnf("worker wait error: %v", waitErr)
	return nil
}

func trialIDString(id value.TrialID) string {
	return strconv.FormatUint(uint64(id), 10)
}

func obsIDString(id value.ObservationID) string {
	return strconv.FormatUint(uint64(id), 10)
}
