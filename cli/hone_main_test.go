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

package cli

import (
	"testing"

	"fortio.org/assert"

	"github.com/sile/hone/config"
)

func TestAttrFlagListSet(t *testing.T) {
	f := make(attrFlagList)
	assert.NoError(t, f.Set("owner=alice"))
	assert.NoError(t, f.Set("team=infra"))
	assert.Equal(t, "alice", f["owner"])
	assert.Equal(t, "infra", f["team"])
}

func TestAttrFlagListRejectsMissingEquals(t *testing.T) {
	f := make(attrFlagList)
	assert.Error(t, f.Set("no-equals-sign"))
}

func TestPathFlagListAppends(t *testing.T) {
	var f pathFlagList
	assert.NoError(t, f.Set("a.ndjson"))
	assert.NoError(t, f.Set("b.ndjson"))
	assert.Equal(t, 2, len(f))
	assert.Equal(t, "a.ndjson", f[0])
	assert.Equal(t, "b.ndjson", f[1])
}

func TestConfigFlagRoundTrip(t *testing.T) {
	cfg := config.New(int64(5), "test default")
	cf := configFlag{cfg}
	assert.Equal(t, "5", cf.String())
	assert.NoError(t, cf.Set("9"))
	assert.Equal(t, int64(9), cfg.Get())
	assert.Equal(t, "9", cf.String())
}

func TestIsFlagPassedDefaultsFalse(t *testing.T) {
	assert.True(t, !isFlagPassed("no-such-flag-was-ever-set"), "unset flags must report false")
}

func TestSortedHistogramNames(t *testing.T) {
	names := sortedHistogramNames(nil)
	assert.Equal(t, 0, len(names))
}
