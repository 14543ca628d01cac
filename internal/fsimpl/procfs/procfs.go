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

// Package procfs implements the synthetic filesystem mounted at /proc:
// a KernFS directory of producer files reporting host memory, uptime and
// mount-table figures. Grounded on
// original_source/mactux_server/src/filesystem/procfs/{mod,sysinfo}.rs.
package procfs

import (
	"fmt"
	"strings"

	"github.com/sisungo/mactux-server/internal/abi"
	"github.com/sisungo/mactux-server/internal/hostinfo"
	"github.com/sisungo/mactux-server/internal/kernfs"
	"github.com/sisungo/mactux-server/internal/lxerror"
)

// MountLister supplies the live mount table for the mounts producer file;
// satisfied by *vfs.MountNamespace without procfs importing vfs, which
// would otherwise cycle back through fsimpl at mount-construction time.
type MountLister interface {
	Mounts() []MountInfo
}

// MountInfo mirrors vfs.MountInfo's shape so procfs doesn't import vfs.
type MountInfo struct {
	Source     string
	MountPoint string
	FsType     string
}

// Mount is the /proc Mountable, backed by a KernFS of producer files.
type Mount struct {
	root *kernfs.KernFS
}

// New builds the standard /proc top-level files: meminfo, uptime,
// loadavg, cpuinfo, cmdline, mounts, stat.
func New(mounts MountLister) *Mount {
	root := kernfs.New()
	root.Insert("meminfo", kernfs.RegularFile(kernfs.FnFile(meminfo)))
	root.Insert("uptime", kernfs.RegularFile(kernfs.FnFile(uptime)))
	root.Insert("loadavg", kernfs.RegularFile(kernfs.FnFile(loadavg)))
	root.Insert("cpuinfo", kernfs.RegularFile(kernfs.FnFile(cpuinfo)))
	root.Insert("cmdline", kernfs.RegularFile(kernfs.FnFile(cmdline)))
	root.Insert("mounts", kernfs.RegularFile(kernfs.FnFile(mountsFn(mounts))))
	root.Insert("stat", kernfs.RegularFile(kernfs.FnFile(stat)))
	return &Mount{root: root}
}

func meminfo() ([]byte, error) {
	mi, err := hostinfo.AcquireMemInfo()
	if err != nil {
		return nil, lxerror.FromHostError(err)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "MemTotal: %d kB\n", mi.TotalRAM/1024)
	fmt.Fprintf(&b, "MemFree: %d kB\n", mi.FreeRAM/1024)
	fmt.Fprintf(&b, "MemAvailable: %d kB\n", mi.AvailRAM/1024)
	fmt.Fprintf(&b, "Active: %d kB\n", mi.Active/1024)
	fmt.Fprintf(&b, "Inactive: %d kB\n", mi.Inactive/1024)
	fmt.Fprintf(&b, "SwapTotal: %d kB\n", mi.TotalSwap/1024)
	fmt.Fprintf(&b, "SwapFree: %d kB\n", mi.FreeSwap/1024)
	return []byte(b.String()), nil
}

func uptime() ([]byte, error) {
	secs, err := hostinfo.Uptime()
	if err != nil {
		return nil, lxerror.FromHostError(err)
	}
	return []byte(fmt.Sprintf("%d 0", secs)), nil
}

// loadavg and cpuinfo are unimplemented in the original this was
// supplemented from; kept as explicit EINVAL rather than synthesized.
func loadavg() ([]byte, error) { return nil, lxerror.EINVAL }
func cpuinfo() ([]byte, error) { return nil, lxerror.EINVAL }

func cmdline() ([]byte, error) { return []byte{}, nil }

func mountsFn(mounts MountLister) func() ([]byte, error) {
	return func() ([]byte, error) {
		var b strings.Builder
		for _, m := range mounts.Mounts() {
			fmt.Fprintf(&b, "%s %s %s defaults 0 0\n", m.Source, m.MountPoint, m.FsType)
		}
		return []byte(b.String()), nil
	}
}

func stat() ([]byte, error) {
	return []byte("cpu 0 0 0 0 0 0 0\n"), nil
}

func (m *Mount) Open(rest string, flags abi.OpenFlags) (kernfs.NewlyOpen, error) {
	entry, ok := m.root.Lookup(rest)
	if !ok {
		return kernfs.NewlyOpen{}, lxerror.ENOENT
	}
	f, ok := entry.AsFile()
	if !ok {
		return kernfs.NewlyOpen{}, lxerror.EISDIR
	}
	return f.Open(flags)
}

func (m *Mount) Stat(rest string) (abi.Statx, error) {
	if _, ok := m.root.Lookup(rest); !ok {
		return abi.Statx{}, lxerror.ENOENT
	}
	const sIfregReadOnly = 0o100444
	return abi.Statx{Mode: sIfregReadOnly}, nil
}

func (m *Mount) Readlink(string) (string, bool)    { return "", false }
func (m *Mount) Unlink(string) error                { return lxerror.EPERM }
func (m *Mount) Mkdir(string, abi.FileMode) error   { return lxerror.EPERM }
func (m *Mount) Rmdir(string) error                 { return lxerror.EPERM }

func (m *Mount) ReadDir(rest string) ([]string, error) {
	if rest != "" {
		return nil, lxerror.ENOENT
	}
	return m.root.Names(), nil
}
