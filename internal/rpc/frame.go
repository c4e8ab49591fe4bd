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

package rpc

import (
	"io"
	"strconv"

	"github.com/sile/hone/fnet"
	"github.com/sile/hone/internal/herr"
)

// maxPreambleLen bounds the ASCII decimal length-prefix line: comfortably
// more than enough digits for any realistic frame size.
const maxPreambleLen = 20

// maxFrameLen guards against a runaway length prefix turning a protocol
// desync into an out-of-memory allocation.
const maxFrameLen = 64 * 1024 * 1024

// writeFrame writes one frame: the ASCII decimal byte length of body,
// a newline, then body itself. The length is text (not binary) so the
// same fnet.SmallReadUntil preamble reader used for fortio's other
// protocols reads it back.
func writeFrame(w io.Writer, body []byte) error {
	prefix := strconv.Itoa(len(body)) + "\n"
	if _, err := io.WriteString(w, prefix); err != nil {
		return herr.Wrap(herr.IoError, err, "writing frame length prefix")
	}
	if _, err := w.Write(body); err != nil {
		return herr.Wrap(herr.IoError, err, "writing frame body")
	}
	return nil
}

// readFrame reads one frame written by writeFrame. The length prefix is
// read one byte at a time via fnet.SmallReadUntil (cheap: it's at most a
// handful of digits); the body is then read in one io.ReadFull, since a
// JSON body may legitimately contain literal newlines and can't safely be
// framed the same way.
func readFrame(r interface {
	Read([]byte) (int, error)
},
) ([]byte, error) {
	lenBytes, found, err := fnet.SmallReadUntil(r, '\n', maxPreambleLen)
	if err != nil {
		return nil, herr.Wrap(herr.IoError, err, "reading frame length prefix")
	}
	if !found {
		return nil, herr.Invalidf("frame length prefix exceeds %d bytes without a newline", maxPreambleLen)
	}
	n, err := strconv.Atoi(string(lenBytes))
	if err != nil {
		return nil, herr.Wrap(herr.ProtocolError, err, "parsing frame length prefix %q", string(lenBytes))
	}
	if n < 0 || n > maxFrameLen {
		return nil, herr.Invalidf("frame length %d out of bounds", n)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, herr.Wrap(herr.IoError, err, "reading frame body")
	}
	return body, nil
}
