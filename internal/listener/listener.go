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

// Package listener accepts rtenv connections on the server's Unix
// domain socket, performs the handshake, resolves the connecting peer's
// host PID, and hands the channel off to a session. Grounded on
// original_source/mactux_server/src/ipc/listener.rs (stale-socket
// unlink + accept loop) and servers/mactux_server/src/ipc/mod.rs's
// RegChannel (handshake-then-spawn, peer_pid via peer_cred).
package listener

import (
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/sisungo/mactux-server/internal/wire"
)

var log = logrus.WithField("subsystem", "listener")

// Handler is invoked once per accepted, handshaken connection, in its own
// goroutine. peerPID is the connecting process's host PID as resolved
// via LOCAL_PEERPID; a connection whose peer PID cannot be resolved is
// dropped before Handler is called.
type Handler func(conn net.Conn, peerPID int32)

// Listener wraps the server's Unix domain socket.
type Listener struct {
	path string
	ln   *net.UnixListener
}

// New binds addr, first removing any stale socket file left behind by a
// previous, uncleanly terminated server.
func New(addr string) (*Listener, error) {
	_ = removeStale(addr)
	raddr, err := net.ResolveUnixAddr("unix", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve socket address: %w", err)
	}
	ln, err := net.ListenUnix("unix", raddr)
	if err != nil {
		return nil, fmt.Errorf("bind socket: %w", err)
	}
	return &Listener{path: addr, ln: ln}, nil
}

func removeStale(addr string) error {
	conn, err := net.Dial("unix", addr)
	if err == nil {
		conn.Close()
		return errors.New("another server instance is already listening")
	}
	if err := os.Remove(addr); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Close stops accepting new connections.
func (l *Listener) Close() error { return l.ln.Close() }

// Serve accepts connections until the listener is closed, handshaking
// each one and dispatching to handle in its own goroutine. A connection
// that fails handshake or peer-PID resolution is dropped with a warning,
// matching the Rust listener's "continue on accept/handshake failure"
// loop body.
func (l *Listener) Serve(handle Handler) error {
	for {
		conn, err := l.ln.AcceptUnix()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.WithError(err).Warn("accept failed")
			continue
		}
		go l.serveOne(conn, handle)
	}
}

func (l *Listener) serveOne(conn *net.UnixConn, handle Handler) {
	if err := wire.ReadHandshakeRequest(conn); err != nil {
		log.WithError(err).Warn("handshake failed")
		conn.Close()
		return
	}
	if err := wire.WriteHandshakeResponse(conn); err != nil {
		log.WithError(err).Warn("failed to send handshake response")
		conn.Close()
		return
	}
	peerPID, err := peerPID(conn)
	if err != nil {
		log.WithError(err).Warn("failed to resolve peer pid")
		conn.Close()
		return
	}
	handle(conn, peerPID)
}

// peerPID resolves the PID of the process on the other end of a Unix
// domain socket via the LOCAL_PEERPID socket option, the macOS
// counterpart of Linux's SO_PEERCRED.
func peerPID(conn *net.UnixConn) (int32, error) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return 0, err
	}
	var pid int
	var sockErr error
	err = raw.Control(func(fd uintptr) {
		pid, sockErr = unix.GetsockoptInt(int(fd), unix.SOL_LOCAL, unix.LOCAL_PEERPID)
	})
	if err != nil {
		return 0, err
	}
	if sockErr != nil {
		return 0, sockErr
	}
	return int32(pid), nil
}
