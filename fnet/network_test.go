// Copyright 2017 Istio Authors
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

package fnet

import (
	"bytes"
	"testing"

	"fortio.org/log"
)

func TestNormalizePort(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		output string
	}{
		{"port number only", "8080", ":8080"},
		{"IPv4 host:port", "10.10.10.1:8080", "10.10.10.1:8080"},
		{"IPv6 [host]:port", "[2001:db1::1]:8080", "[2001:db1::1]:8080"},
	}

	for _, tc := range tests {
		port := NormalizePort(tc.input)
		if port != tc.output {
			t.Errorf("Test case %s failed to normalize port %s\n\texpected: %s\n\t  actual: %s",
				tc.name, tc.input, tc.output, port)
		}
	}
}

func TestListen(t *testing.T) {
	l, a := Listen("test listen", "0")
	if l == nil || a == nil {
		t.Fatalf("Unexpected nil in Listen() %v %v", l, a)
	}
	if GetPort(a) == "0" {
		t.Errorf("Unexpected 0 port after listen %+v", a)
	}
	_ = l.Close()
}

func TestListenFailure(t *testing.T) {
	l1, a1 := Listen("test listen1", "0")
	defer l1.Close()
	if GetPort(a1) == "0" {
		t.Errorf("Unexpected 0 port after listen %+v", a1)
	}
	l, a := Listen("this should fail", GetPort(a1))
	if l != nil || a != nil {
		t.Errorf("listen that should error got %v %v instead of nil", l, a)
	}
}

func TestListenLoopback(t *testing.T) {
	l, a := ListenLoopback("rpc channel")
	if l == nil || a == nil {
		t.Fatalf("Unexpected nil from ListenLoopback %v %v", l, a)
	}
	defer l.Close()
	if GetPort(a) == "0" {
		t.Errorf("Unexpected 0 port after ListenLoopback %+v", a)
	}
}

func TestSmallReadUntil(t *testing.T) {
	r := bytes.NewReader([]byte("1234\nrest"))
	got, found, err := SmallReadUntil(r, '\n', 16)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !found {
		t.Fatalf("expected to find the stop byte")
	}
	if string(got) != "1234" {
		t.Errorf("got %q, want %q", got, "1234")
	}
}

func TestSmallReadUntilTooLong(t *testing.T) {
	r := bytes.NewReader([]byte("12345678"))
	_, found, err := SmallReadUntil(r, '\n', 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found {
		t.Errorf("should not have found the stop byte within the max length")
	}
}

func init() {
	log.SetLogLevel(log.Debug)
}
