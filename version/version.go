// Copyright 2017 Fortio Authors
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

// Package version holds hone's version and build information, sourced
// from the binary's embedded module info via [fortio.org/version].
package version // import "github.com/sile/hone/version"

import (
	"fortio.org/version"
)

var (
	// The following are (re)computed in init().
	shortVersion = "dev"
	longVersion  = "unknown long"
	fullVersion  = "unknown full"
)

// Short returns the 3 digit short hone version string Major.Minor.Patch,
// matching the git tag (without the leading v) or "dev" when not built
// from a tag / not `go install`-ed from a tagged version. Recorded as the
// "hone_version" study attribute (see internal/studyspec) so every event log
// is self-describing about what produced it.
func Short() string {
	return shortVersion
}

// Long returns the long version and build information.
// Format is "X.Y.X hash go-version processor os".
func Long() string {
	return longVersion
}

// Full returns the Long version plus all the runtime BuildInfo, ie
// all the dependent modules, versions and hashes as well. The CLI does
// not call it; its startup log line uses Short.
func Full() string {
	return fullVersion
}

func init() { //nolint:gochecknoinits // burning in the build-time version needs an init
	shortVersion, longVersion, fullVersion = version.FromBuildInfoPath("github.com/sile/hone")
}
