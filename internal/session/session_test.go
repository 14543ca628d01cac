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

package session

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sisungo/mactux-server/internal/pollutil"
	"github.com/sisungo/mactux-server/internal/task"
	"github.com/sisungo/mactux-server/internal/vfs"
	"github.com/sisungo/mactux-server/internal/wire"
)

func newTestFactory(t *testing.T) ProcessFactory {
	t.Helper()
	return func() (*task.Process, error) {
		mnt := vfs.New()
		mnt.Mount("/", fakeMountable{})
		netNS, err := task.NewNetNamespace(t.TempDir())
		if err != nil {
			return nil, err
		}
		return task.NewRootProcess(mnt, netNS), nil
	}
}

// roundTrip writes req as a frame on conn and decodes the single
// response frame that comes back.
func roundTrip(t *testing.T, conn net.Conn, req wire.Request) wire.Response {
	t.Helper()
	require.NoError(t, wire.WriteFrame(conn, wire.EncodeRequest(req)))
	payload, err := wire.ReadFrame(conn)
	require.NoError(t, err)
	resp, err := wire.DecodeResponse(payload)
	require.NoError(t, err)
	return resp
}

func TestSessionRegistersOnFirstContact(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	registry := task.NewRegistry()
	sess := New(server, registry, newTestFactory(t), 7)
	require.Equal(t, Registering, sess.State())

	done := make(chan error, 1)
	go func() { done <- sess.Run() }()

	resp := roundTrip(t, client, wire.ReqEventFd{InitVal: 0})
	_, ok := resp.(wire.RespVfd)
	require.True(t, ok)

	_, ok = registry.Lookup(7)
	require.True(t, ok)

	client.Close()
	require.NoError(t, <-done)
	require.Equal(t, Terminated, sess.State())
}

func TestSessionReusesExistingProcessForKnownPeer(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	registry := task.NewRegistry()
	mnt := vfs.New()
	mnt.Mount("/", fakeMountable{})
	netNS, err := task.NewNetNamespace(t.TempDir())
	require.NoError(t, err)
	existing := task.NewRootProcess(mnt, netNS)
	existing.SetThreadName(9, []byte("preexisting"))
	registry.Register(9, existing)

	sess := New(server, registry, newTestFactory(t), 9)
	done := make(chan error, 1)
	go func() { done <- sess.Run() }()

	resp := roundTrip(t, client, wire.ReqGetThreadName{})
	bytesResp, ok := resp.(wire.RespBytes)
	require.True(t, ok)
	require.Equal(t, "preexisting", string(bytesResp.Data))

	client.Close()
	require.NoError(t, <-done)
}

func TestSessionCallInterruptibleCancel(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	registry := task.NewRegistry()
	sess := New(server, registry, newTestFactory(t), 11)
	done := make(chan error, 1)
	go func() { done <- sess.Run() }()

	created := roundTrip(t, client, wire.ReqEventFd{InitVal: 0})
	handle := created.(wire.RespVfd).Vfd

	require.NoError(t, wire.WriteFrame(client, wire.EncodeRequest(wire.ReqCallInterruptible{
		Inner: wire.IReqVirtualFdPoll{Fds: []wire.PollFd{{Vfd: handle, Interest: uint16(pollutil.In)}}},
	})))
	time.Sleep(10 * time.Millisecond)
	_, err := client.Write([]byte{0})
	require.NoError(t, err)

	// A cancelled interruptible call is answered with an empty readiness
	// set; the very next request the guest sends then gets its own reply,
	// proving the session returned cleanly to Dispatching instead of
	// wedging.
	payload, err := wire.ReadFrame(client)
	require.NoError(t, err)
	cancelled, err := wire.DecodeResponse(payload)
	require.NoError(t, err)
	require.Equal(t, wire.RespPoll{Vfd: 0, Events: 0}, cancelled)

	resp := roundTrip(t, client, wire.ReqGetThreadName{})
	bytesResp, ok := resp.(wire.RespBytes)
	require.True(t, ok)
	require.Empty(t, bytesResp.Data)

	client.Close()
	require.NoError(t, <-done)
}

func TestSessionVirtualFdPollDeliversReadyEvent(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	registry := task.NewRegistry()
	sess := New(server, registry, newTestFactory(t), 13)
	done := make(chan error, 1)
	go func() { done <- sess.Run() }()

	// A freshly created eventfd is always writable (EventFd's readiness
	// includes Out unconditionally), so polling for Out resolves without
	// any further guest-side activity.
	created := roundTrip(t, client, wire.ReqEventFd{InitVal: 0})
	handle := created.(wire.RespVfd).Vfd

	resp := roundTrip(t, client, wire.ReqCallInterruptible{
		Inner: wire.IReqVirtualFdPoll{Fds: []wire.PollFd{{Vfd: handle, Interest: uint16(pollutil.Out)}}},
	})
	poll, ok := resp.(wire.RespPoll)
	require.True(t, ok)
	require.Equal(t, handle, poll.Vfd)

	client.Close()
	require.NoError(t, <-done)
}
