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
	"errors"
	"io"
	"net"

	"fortio.org/log"

	"github.com/sile/hone/fnet"
	"github.com/sile/hone/jrpc"
)

// Server accepts loopback connections from worker subprocesses and turns
// each inbound frame into a Message enqueued onto Inbound. It never
// touches supervisor state itself (SPEC_FULL.md §5).
type Server struct {
	listener net.Listener
	Addr     net.Addr
	Inbound  chan Message
}

// NewServer binds an ephemeral loopback listener and starts accepting
// connections in the background. Call Close to stop.
func NewServer() (*Server, error) {
	listener, addr := fnet.ListenLoopback("hone-rpc")
	if listener == nil {
		return nil, errors.New("failed to start rpc listener")
	}
	s := &Server{listener: listener, Addr: addr, Inbound: make(chan Message, 64)}
	go s.acceptLoop()
	return s, nil
}

// Close stops accepting new connections.
func (s *Server) Close() error {
	return s.listener.Close()
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				log.Warnf("rpc accept error: %v", err)
			}
			return
		}
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	for {
		body, err := readFrame(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.LogVf("rpc connection %s closed: %v", conn.RemoteAddr(), err)
			}
			return
		}
		req, err := jrpc.Deserialize[Request](body)
		if err != nil {
			s.replyError(conn, "decoding request", err)
			continue
		}
		replyCh := make(chan Reply, 1)
		s.Inbound <- Message{Req: *req, Reply: replyCh}
		reply := <-replyCh
		if err := s.writeReply(conn, reply); err != nil {
			log.Warnf("rpc writing reply to %s: %v", conn.RemoteAddr(), err)
			return
		}
	}
}

func (s *Server) replyError(conn net.Conn, message string, err error) {
	if werr := s.writeReply(conn, ErrReply(message, err)); werr != nil {
		log.Warnf("rpc writing error reply: %v", werr)
	}
}

func (s *Server) writeReply(conn net.Conn, reply Reply) error {
	buf, err := jrpc.Serialize(reply)
	if err != nil {
		return err
	}
	return writeFrame(conn, buf)
}
