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

package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sisungo/mactux-server/internal/abi"
	"github.com/sisungo/mactux-server/internal/kernfs"
	"github.com/sisungo/mactux-server/internal/workdir"
)

func newTestWorkDir(t *testing.T) *workdir.WorkDir {
	t.Helper()
	wd, err := workdir.Open(t.TempDir())
	require.NoError(t, err)
	return wd
}

func TestRootProcessMountsStandardTree(t *testing.T) {
	proc, err := rootProcess(newTestWorkDir(t))
	require.NoError(t, err)

	opened, err := proc.Mnt.ResolveOpen("/dev/null", abi.ORdOnly)
	require.NoError(t, err)
	require.Equal(t, kernfs.AtNative, opened.Kind)
	require.Equal(t, "/dev/null", opened.Path)

	opened, err = proc.Mnt.ResolveOpen("/proc/meminfo", abi.ORdOnly)
	require.NoError(t, err)
	require.Equal(t, kernfs.AtServer, opened.Kind)
	buf := make([]byte, 4096)
	n, err := opened.Entry.Read(buf)
	require.NoError(t, err)
	require.Contains(t, string(buf[:n]), "MemTotal")
}

func TestRootProcessProcMountsReportsAllFilesystems(t *testing.T) {
	proc, err := rootProcess(newTestWorkDir(t))
	require.NoError(t, err)

	opened, err := proc.Mnt.ResolveOpen("/proc/mounts", abi.ORdOnly)
	require.NoError(t, err)
	buf := make([]byte, 4096)
	n, err := opened.Entry.Read(buf)
	require.NoError(t, err)

	out := string(buf[:n])
	for _, fsType := range []string{"hostfs", "devtmpfs", "sysfs", "proc"} {
		require.True(t, strings.Contains(out, fsType), "expected %q in mounts listing: %s", fsType, out)
	}
}

func TestRootProcessChildStartsWithEmptyVfdTable(t *testing.T) {
	proc, err := rootProcess(newTestWorkDir(t))
	require.NoError(t, err)

	child := proc.Child()
	require.Equal(t, 0, child.Vfd.Len())
	require.Same(t, proc.Mnt, child.Mnt)
}
