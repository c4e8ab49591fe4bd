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

// Package rpc is the loopback request/response transport (SPEC_FULL.md
// §4.4, component C7) exposing three procedures — ask, tell, mktemp — to
// worker subprocesses. Each inbound call is enqueued as a typed Message
// with a one-shot reply channel; the supervisor is the only consumer of
// the Server's Inbound channel (SPEC_FULL.md §5's message-passing resolution of
// the supervisor/RPC cyclic reference).
package rpc // import "github.com/sile/hone/internal/rpc"

import (
	"encoding/json"

	"github.com/sile/hone/internal/metric"
	"github.com/sile/hone/internal/param"
	"github.com/sile/hone/internal/value"
	"github.com/sile/hone/jrpc"
)

// Proc names one of the three procedures a Request invokes.
type Proc string

const (
	ProcAsk    Proc = "ask"
	ProcTell   Proc = "tell"
	ProcMktemp Proc = "mktemp"
)

// AskRequest asks for a value of the named parameter, as defined by Def,
// within the scope of ObservationID. Def is the full parameter
// definition — the wire rendering of spec.md's "param_type" field, since
// a bare type name isn't enough to sample from (a Continuous parameter
// needs its range, a Categorical one its choices, and so on).
type AskRequest struct {
	ObservationID value.ObservationID `json:"observation_id"`
	ParamName     string              `json:"param_name"`
	Def           param.Param         `json:"param_type"`
}

// TellRequest reports a metric value for ObservationID.
type TellRequest struct {
	ObservationID value.ObservationID `json:"observation_id"`
	MetricName    string              `json:"metric_name"`
	MetricType    metric.Type         `json:"metric_type"`
	MetricValue   float64             `json:"metric_value"`
}

// MktempRequest requests a scoped temporary directory. Parent, if set,
// overrides the default nesting; Scope selects the key space.
type MktempRequest struct {
	ObservationID value.ObservationID `json:"observation_id"`
	Parent        string              `json:"parent,omitempty"`
	Scope         value.Scope         `json:"scope"`
}

// Request is the single wire envelope for all three procedures; exactly
// one of Ask/Tell/Mktemp is populated, selected by Proc.
type Request struct {
	Proc   Proc           `json:"proc"`
	Ask    *AskRequest    `json:"ask,omitempty"`
	Tell   *TellRequest   `json:"tell,omitempty"`
	Mktemp *MktempRequest `json:"mktemp,omitempty"`
}

// Reply is the wire envelope for a procedure's response: on success,
// Result holds the JSON-encoded procedure-specific payload (a ParamValue
// for ask, an empty object for tell, a path string for mktemp); on
// failure, jrpc.ServerReply's Error/Message/Exception are populated and
// Result is absent.
type Reply struct {
	jrpc.ServerReply
	Result json.RawMessage `json:"result,omitempty"`
}

// OKReply builds a successful Reply carrying result.
func OKReply(result interface{}) Reply {
	buf, err := jrpc.Serialize(result)
	if err != nil {
		return ErrReply("serializing result", err)
	}
	return Reply{Result: buf}
}

// ErrReply builds a failed Reply.
func ErrReply(message string, err error) Reply {
	return Reply{ServerReply: *jrpc.NewErrorReply(message, err)}
}

// Message is what a connection handler enqueues onto the supervisor's
// single inbound channel: one decoded Request plus a one-shot channel the
// supervisor must send exactly one Reply to.
type Message struct {
	Req   Request
	Reply chan<- Reply
}
