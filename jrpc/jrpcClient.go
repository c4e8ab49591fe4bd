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

// Package jrpc is a small, transport agnostic JSON marshaling helper.
// It used to also carry the HTTP transport for fortio's REST APIs; the
// channel used by the study supervisor is a raw length-prefixed TCP
// socket (see internal/rpc) so only the generic (de)serialization and
// error-reply envelope remain here.
package jrpc // import "github.com/sile/hone/jrpc"

import (
	"encoding/json"
	"fmt"
)

// ServerReply is used to reply errors but can also be the base for Ok replies.
type ServerReply struct {
	Error     bool   `json:"error,omitempty"` // Success if false/omitted, Error/Failure when true
	Message   string `json:"message,omitempty"`
	Exception string `json:"exception,omitempty"`
}

// NewErrorReply creates a new error reply with the message and err error.
func NewErrorReply(message string, err error) *ServerReply {
	res := ServerReply{Error: true, Message: message}
	if err != nil {
		res.Exception = err.Error()
	}
	return &res
}

// Serialize marshals obj to json.
func Serialize(obj interface{}) ([]byte, error) {
	return json.Marshal(obj)
}

// Deserialize unmarshals bytes into a new Q, returning the (zero valued on
// error) result and the unmarshal error if any.
func Deserialize[Q any](bytes []byte) (*Q, error) {
	var result Q
	err := json.Unmarshal(bytes, &result)
	return &result, err
}

// EscapeBytes returns printable string. Same as %q format without the
// surrounding/extra "".
func EscapeBytes(buf []byte) string {
	e := fmt.Sprintf("%q", buf)
	return e[1 : len(e)-1]
}

// DebugSummary returns a string with the size and escaped first max/2 and
// last max/2 bytes of a buffer (or the whole escaped buffer if small enough).
func DebugSummary(buf []byte, maxLen int) string {
	l := len(buf)
	if l <= maxLen+3 { // no point in shortening to add ... if we could return those 3
		return EscapeBytes(buf)
	}
	maxLen /= 2
	return fmt.Sprintf("%d: %s...%s", l, EscapeBytes(buf[:maxLen]), EscapeBytes(buf[l-maxLen:]))
}
