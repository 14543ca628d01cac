// Copyright 2024 The mactux Authors.
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

// Package session implements the per-channel request dispatcher: the
// Registering -> Dispatching -> Interrupting -> Terminated state machine
// and the handler table translating every wire.Request variant into
// calls against the task/vfs/vfd subsystems. Grounded on spec's own
// description of the protocol (original_source's ipc/session.rs and
// ipc/methods.rs, where the real dispatch table would live, weren't part
// of the retrieved source slice — only ipc/mod.rs's RegChannel handshake
// wrapper and ipc/interruptible.rs were).
package session

import (
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sisungo/mactux-server/internal/interruptible"
	"github.com/sisungo/mactux-server/internal/task"
	"github.com/sisungo/mactux-server/internal/wire"
)

var log = logrus.WithField("subsystem", "session")

// State is one of the session's four lifecycle states.
type State int

const (
	// Registering is entered immediately after handshake: the session
	// resolves its owning task.Process from the channel's peer PID,
	// bootstrapping a fresh one on first contact.
	Registering State = iota
	// Dispatching is the steady state: read a Request, dispatch it,
	// write a Response, repeat.
	Dispatching
	// Interrupting is entered for the duration of a CallInterruptible
	// request; the channel's readable side is repurposed as the
	// cancellation signal and no ordinary request is read from it.
	Interrupting
	// Terminated means the channel closed or hit a protocol error.
	Terminated
)

// Conn is the channel a Session drives: bidirectional, with the
// SetReadDeadline hook internal/interruptible needs to force-unblock a
// pending cancellation-byte read once a poll has an answer.
type Conn interface {
	io.Reader
	io.Writer
	SetReadDeadline(t time.Time) error
}

// ProcessFactory bootstraps a task.Process for a channel whose peer PID
// has never been seen before. Supplied by cmd/mactuxd, which owns the
// root mount namespace and work directory every fresh process should
// start from.
type ProcessFactory func() (*task.Process, error)

// Session is one guest process's live channel.
type Session struct {
	conn     Conn
	registry *task.Registry
	newProc  ProcessFactory
	peerPID  int32

	state State
	proc  *task.Process
}

// New constructs a Session in the Registering state. Handshake must
// already have completed on conn (internal/listener's job).
func New(conn Conn, registry *task.Registry, newProc ProcessFactory, peerPID int32) *Session {
	return &Session{conn: conn, registry: registry, newProc: newProc, peerPID: peerPID, state: Registering}
}

// State reports the session's current lifecycle state.
func (s *Session) State() State { return s.state }

// register resolves s.proc for peerPID, bootstrapping a fresh Process on
// first contact (e.g. the guest's very first thread, which precedes any
// AfterFork notification since nothing has forked it from within this
// server's view). Subsequent threads of the same host process reuse the
// same Process via AfterFork having already registered it.
func (s *Session) register() error {
	if p, ok := s.registry.Lookup(s.peerPID); ok {
		s.proc = p
		s.state = Dispatching
		return nil
	}
	p, err := s.newProc()
	if err != nil {
		return err
	}
	s.registry.Register(s.peerPID, p)
	s.proc = p
	s.state = Dispatching
	return nil
}

// Run drives the session until the channel closes or a protocol error
// occurs. It never returns an error for an orderly close (io.EOF); any
// other error indicates a protocol violation per spec's §7(b).
func (s *Session) Run() error {
	if s.state == Registering {
		if err := s.register(); err != nil {
			s.state = Terminated
			return err
		}
	}

	for s.state == Dispatching {
		payload, err := wire.ReadFrame(s.conn)
		if err != nil {
			s.state = Terminated
			if err == io.EOF {
				return nil
			}
			return err
		}
		req, err := wire.DecodeRequest(payload)
		if err != nil {
			s.state = Terminated
			return err
		}

		var resp wire.Response
		if ir, ok := req.(wire.ReqCallInterruptible); ok {
			s.state = Interrupting
			outcome := interruptible.Run(noCtx{}, s.conn, s.proc.Vfd, ir.Inner)
			s.state = Dispatching
			if outcome.Cancelled {
				continue
			}
			resp = outcome.Response
		} else {
			resp = s.dispatch(req)
		}

		if err := wire.WriteFrame(s.conn, wire.EncodeResponse(resp)); err != nil {
			s.state = Terminated
			return err
		}
	}
	return nil
}

// noCtx is a context.Context that's never cancelled, used because
// Session.Run has no caller-supplied context of its own (one goroutine
// per channel for the session's whole lifetime, per spec's concurrency
// model) and interruptible.Run's signature takes one for API symmetry
// with errgroup.WithContext rather than this server actually needing
// propagated cancellation on this path.
type noCtx struct{}

func (noCtx) Deadline() (time.Time, bool)    { return time.Time{}, false }
func (noCtx) Done() <-chan struct{}          { return nil }
func (noCtx) Err() error                     { return nil }
func (noCtx) Value(any) any                  { return nil }
