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

package interruptible

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sisungo/mactux-server/internal/abi"
	"github.com/sisungo/mactux-server/internal/lxerror"
	"github.com/sisungo/mactux-server/internal/pollutil"
	"github.com/sisungo/mactux-server/internal/vfd"
	"github.com/sisungo/mactux-server/internal/wire"
)

// pollable is a minimal Stream+Poll object backed by a readiness Watch,
// standing in for a real Vfd object (eventfd, socket, pipe) in tests.
type pollable struct {
	vfd.BaseStream
	readiness *pollutil.Watch[pollutil.Events]
}

func newPollable() *pollable {
	return &pollable{readiness: pollutil.NewWatch(pollutil.Events(0))}
}

func (p *pollable) PollToken(interest pollutil.Events) (*pollutil.Token, error) {
	return pollutil.NewToken(0, interest, p.readiness), nil
}

type fakeTable struct {
	entries map[uint64]*vfd.Entry
}

func (f *fakeTable) Get(handle uint64) (*vfd.Entry, bool) {
	e, ok := f.entries[handle]
	return e, ok
}

func TestRunVirtualFdPollReturnsReadyVfd(t *testing.T) {
	obj := newPollable()
	entry := vfd.NewEntry(obj, abi.ORdOnly)
	table := &fakeTable{entries: map[uint64]*vfd.Entry{5: entry}}

	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		time.Sleep(10 * time.Millisecond)
		obj.readiness.Update(func(cur *pollutil.Events) { *cur = pollutil.In })
	}()

	outcome := Run(context.Background(), server, table, wire.IReqVirtualFdPoll{
		Fds: []wire.PollFd{{Vfd: 5, Interest: uint16(pollutil.In)}},
	})

	require.False(t, outcome.Cancelled)
	poll, ok := outcome.Response.(wire.RespPoll)
	require.True(t, ok)
	require.Equal(t, uint64(5), poll.Vfd)
}

func TestRunVirtualFdPollTimesOutWithEmptyReadiness(t *testing.T) {
	obj := newPollable()
	entry := vfd.NewEntry(obj, abi.ORdOnly)
	table := &fakeTable{entries: map[uint64]*vfd.Entry{1: entry}}

	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	timeout := 20 * time.Millisecond
	outcome := Run(context.Background(), server, table, wire.IReqVirtualFdPoll{
		Fds:     []wire.PollFd{{Vfd: 1, Interest: uint16(pollutil.In)}},
		Timeout: &timeout,
	})

	require.False(t, outcome.Cancelled)
	poll, ok := outcome.Response.(wire.RespPoll)
	require.True(t, ok)
	require.Equal(t, uint16(0), poll.Events)
}

func TestRunVirtualFdPollCancelledByByteReportsEmptyReadiness(t *testing.T) {
	obj := newPollable()
	entry := vfd.NewEntry(obj, abi.ORdOnly)
	table := &fakeTable{entries: map[uint64]*vfd.Entry{1: entry}}

	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		time.Sleep(10 * time.Millisecond)
		_, _ = client.Write([]byte{0})
	}()

	outcome := Run(context.Background(), server, table, wire.IReqVirtualFdPoll{
		Fds: []wire.PollFd{{Vfd: 1, Interest: uint16(pollutil.In)}},
	})

	require.False(t, outcome.Cancelled)
	poll, ok := outcome.Response.(wire.RespPoll)
	require.True(t, ok)
	require.Equal(t, uint64(0), poll.Vfd)
	require.Equal(t, uint16(0), poll.Events)
}

func TestRunVirtualFdPollChannelClosedIsCancelledWithNoResponse(t *testing.T) {
	obj := newPollable()
	entry := vfd.NewEntry(obj, abi.ORdOnly)
	table := &fakeTable{entries: map[uint64]*vfd.Entry{1: entry}}

	client, server := net.Pipe()
	defer server.Close()

	go func() {
		time.Sleep(10 * time.Millisecond)
		client.Close()
	}()

	outcome := Run(context.Background(), server, table, wire.IReqVirtualFdPoll{
		Fds: []wire.PollFd{{Vfd: 1, Interest: uint16(pollutil.In)}},
	})

	require.True(t, outcome.Cancelled)
	require.Nil(t, outcome.Response)
}

func TestRunVirtualFdPollUnknownVfdIsEBADF(t *testing.T) {
	table := &fakeTable{entries: map[uint64]*vfd.Entry{}}
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	outcome := Run(context.Background(), server, table, wire.IReqVirtualFdPoll{
		Fds: []wire.PollFd{{Vfd: 99, Interest: uint16(pollutil.In)}},
	})
	require.Equal(t, wire.RespError{Err: lxerror.EBADF}, outcome.Response)
}
