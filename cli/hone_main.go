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

// Package cli is hone's command dispatcher, in the style of
// cli/fortio_main.go: flags are declared at package scope, HoneMain()
// hands usage/argument/flag parsing to fortio.org/cli and
// fortio.org/scli, then switches on cli.Command. Only `run` and `show
// best` are implemented (SPEC_FULL.md §6.1); every other command name
// falls through to cli.ErrUsage.
package cli // import "github.com/sile/hone/cli"

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	fcli "fortio.org/cli"
	"fortio.org/dflag"
	"fortio.org/log"
	"fortio.org/scli"

	"github.com/sile/hone/config"
	"github.com/sile/hone/internal/best"
	"github.com/sile/hone/internal/eventlog"
	"github.com/sile/hone/internal/param"
	"github.com/sile/hone/internal/study"
	"github.com/sile/hone/internal/studyspec"
	"github.com/sile/hone/internal/tuner"
	"github.com/sile/hone/stats"
	"github.com/sile/hone/version"
)

// -- Support for repeated -load PATH flags, same pattern as fortio's -P/-M.
type pathFlagList []string

func (f *pathFlagList) String() string { return "" }

func (f *pathFlagList) Set(value string) error {
	*f = append(*f, value)
	return nil
}

// -- Support for repeated -attr key=value flags.
type attrFlagList map[string]string

func (f attrFlagList) String() string { return "" }

func (f attrFlagList) Set(value string) error {
	k, v, ok := strings.Cut(value, "=")
	if !ok {
		return fmt.Errorf("invalid -attr %q, want key=value", value)
	}
	f[k] = v
	return nil
}

// -- configFlag adapts a config.Config[int64] (the teacher's default-value
// wrapper, see config/config.go) to the flag.Value interface so study
// defaults stay settable the same way dflag-backed flags are.
type configFlag struct {
	cfg config.Config[int64]
}

func (c configFlag) String() string {
	if c.cfg == nil {
		return "0"
	}
	return strconv.FormatInt(c.cfg.Get(), 10)
}

func (c configFlag) Set(s string) error { return c.cfg.Set(s) }

var (
	// workersFlag is the one "workers" registration: a dynamic flag so the
	// pool can be resized live (SPEC_FULL.md §1.1), registered exactly
	// once here, before flags are parsed, so NewSupervisor never needs
	// (and must never attempt) to register it again under the same name.
	workersFlag = dflag.DynInt64(flag.CommandLine, "workers", 1, "number of worker subprocesses to run concurrently").
			WithValidator(dflag.ValidateDynInt64Range(1, 1<<20))
	tunerFlag    = flag.String("tuner", "random", "tuner algorithm: `random` or `retry`")
	seedFlag     = flag.Int64("seed", 0, "rng seed for the random tuner (default: time based)")
	repeatConfig = config.New(int64(1), "number of observations to complete before stopping")
	retryConfig  = config.New(int64(3), "max retries per trial when -tuner=retry")

	loadFlags pathFlagList
	attrFlags = make(attrFlagList)
)

// helpArgsString is hone's args/usage banner, the rendering of
// cli/fortio_main.go's helpArgsString for this command set.
func helpArgsString() string {
	return "run [flags] command [args...]\n" +
		"where command is the worker program hone will spawn repeatedly, or\n" +
		"show best\n" +
		"which reads a prior event log from stdin and prints the best\n" +
		"observation found so far for each competing metric."
}

// HoneMain is hone's entry point, called from cmd/hone/main.go.
func HoneMain() {
	flag.Var(&loadFlags, "load", "`path` to a prior event log to resume from (repeatable, applied in order)")
	flag.Var(attrFlags, "attr", "additional study attribute `key=value` (repeatable)")
	flag.Var(configFlag{repeatConfig}, "repeat", repeatConfig.Usage())
	flag.Var(configFlag{retryConfig}, "retries", retryConfig.Usage())

	if fcli.ProgramName == "" {
		fcli.ProgramName = "Hone"
	}
	fcli.ArgsHelp = helpArgsString()
	fcli.CommandBeforeFlags = true
	fcli.MinArgs = 0
	fcli.MaxArgs = -1
	scli.ServerMain() // parses flags/args, will Exit on usage errors.

	switch fcli.Command {
	case "run":
		honeRun()
	case "show":
		honeShow()
	default:
		fcli.ErrUsage("Error: unknown command %q", fcli.Command)
	}
}

func isFlagPassed(name string) bool {
	found := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

func newTuner() (tuner.Tune, studyspec.TunerSpec) {
	var seed *int64
	if isFlagPassed("seed") {
		s := *seedFlag
		seed = &s
	}
	switch *tunerFlag {
	case "random":
		return tuner.NewRandom(seed), studyspec.TunerSpec{Kind: studyspec.TunerRandom, Seed: seed}
	case "retry":
		retries := int(retryConfig.Get())
		r, err := tuner.NewRetry(tuner.NewRandom(seed), retries)
		if err != nil {
			fcli.ErrUsage("Error: %v", err)
		}
		return r, studyspec.TunerSpec{Kind: studyspec.TunerRetry, Seed: seed, Retries: retries}
	default:
		fcli.ErrUsage("Error: unknown -tuner %q, want random or retry", *tunerFlag)
		return nil, studyspec.TunerSpec{} // unreachable, ErrUsage exits
	}
}

// honeRun implements `hone run`: it spawns the command given as the
// remaining positional arguments, driving it to completion through a
// Supervisor, streaming the event log to stdout.
func honeRun() {
	args := flag.Args()
	if len(args) == 0 {
		fcli.ErrUsage("Error: hone run needs a worker command")
	}
	command := studyspec.Command{Path: args[0], Args: args[1:]}

	t, tunerSpec := newTuner()
	spec := studyspec.New(command.Path, tunerSpec, command, attrFlags)

	writer := eventlog.NewWriter(os.Stdout)
	sup, err := study.NewSupervisor(spec, int(repeatConfig.Get()), workersFlag, t, writer, "")
	if err != nil {
		log.Fatalf("starting supervisor: %v", err)
	}
	if err := writer.Write(eventlog.StudyStarted()); err != nil {
		log.Fatalf("writing study_started: %v", err)
	}

	for _, path := range loadFlags {
		if err := resumeFrom(sup, t, path); err != nil {
			log.Fatalf("resuming from %s: %v", path, err)
		}
	}

	if err := writer.Write(eventlog.StudyDefined(spec)); err != nil {
		log.Fatalf("writing study_defined: %v", err)
	}

	log.Infof("hone %s starting study %s (%s), command %v", version.Short(), spec.Name, spec.ID, args)
	if err := sup.Run(map[string]param.Param{}); err != nil {
		log.Fatalf("running study: %v", err)
	}
}

func resumeFrom(sup *study.Supervisor, t tuner.Tune, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return sup.Resume(eventlog.NewReader(f), t)
}

// honeShow implements `hone show best`: it reads ndjson from stdin and
// prints, per study and per competing metric, the best observation found
// plus a percentile summary of every metric's values.
func honeShow() {
	args := flag.Args()
	if len(args) != 1 || args[0] != "best" {
		fcli.ErrUsage("Error: hone show only supports the `best` subcommand")
	}

	results, err := best.Compute(os.Stdin)
	if err != nil {
		log.Fatalf("computing best: %v", err)
	}
	for _, res := range results {
		fmt.Printf("study %s (%s):\n", res.Spec.Name, res.Spec.ID)
		for _, name := range res.SortedMetricNames() {
			o := res.BestByMetric[name]
			fmt.Printf("  %s: best=%g trial=%d observation=%d\n",
				name, float64(o.Metrics[name].Value), o.TrialID, o.ID)
		}
		for _, name := range sortedHistogramNames(res.Histograms) {
			res.Histograms[name].Log(name, []float64{50, 90, 99})
		}
	}
}

func sortedHistogramNames(h map[string]*stats.Histogram) []string {
	names := make([]string, 0, len(h))
	for n := range h {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
