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

// hone is a hyperparameter-optimization study supervisor: it drives worker
// subprocesses over a loopback RPC channel, picks parameter values through
// a pluggable tuner, and records every trial and observation to an
// append-only event log.
package main

import (
	"os"

	"github.com/sile/hone/cli"
)

func main() {
	os.Exit(Main())
}

// Main runs hone's CLI and returns its exit code, split out from main() so
// fortio.org/testscript can drive it in-process (same pattern as
// cli_test.go's "fortio": Main entry).
func Main() int {
	cli.HoneMain()
	return 0
}
