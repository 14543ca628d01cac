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

package listener_test

import (
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sisungo/mactux-server/internal/ipcclient"
	"github.com/sisungo/mactux-server/internal/listener"
	"github.com/sisungo/mactux-server/internal/session"
	"github.com/sisungo/mactux-server/internal/task"
	"github.com/sisungo/mactux-server/internal/vfs"
	"github.com/sisungo/mactux-server/internal/wire"
)

func newFactory(t *testing.T) session.ProcessFactory {
	t.Helper()
	return func() (*task.Process, error) {
		netNS, err := task.NewNetNamespace(t.TempDir())
		if err != nil {
			return nil, err
		}
		return task.NewRootProcess(vfs.New(), netNS), nil
	}
}

func TestListenerHandshakeAndRoundTrip(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "mactux.sock")

	ln, err := listener.New(sockPath)
	require.NoError(t, err)
	defer ln.Close()

	registry := task.NewRegistry()
	go func() {
		_ = ln.Serve(func(conn net.Conn, peerPID int32) {
			sess := session.New(conn, registry, newFactory(t), peerPID)
			_ = sess.Run()
		})
	}()

	client, err := ipcclient.Dial(sockPath)
	require.NoError(t, err)
	defer client.Close()
	require.Equal(t, wire.ServerVersion, client.Version)

	resp, err := client.Call(wire.ReqEventFd{InitVal: 5})
	require.NoError(t, err)
	_, ok := resp.(wire.RespVfd)
	require.True(t, ok)
}

func TestListenerRemovesStaleSocketFile(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "mactux.sock")

	f, err := os.Create(sockPath)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	ln, err := listener.New(sockPath)
	require.NoError(t, err)
	defer ln.Close()
}

func TestListenerRefusesWhenAlreadyListening(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "mactux.sock")

	first, err := listener.New(sockPath)
	require.NoError(t, err)
	defer first.Close()

	_, err = listener.New(sockPath)
	require.Error(t, err)
}
