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

// Package hostfs implements the Mountable backing the bulk of the guest
// filesystem namespace: ordinary files persisted under the work
// directory's rootfs tree (workdir's on-disk layout, spec.md §6). Every
// regular-file open resolves to an AtNative NewlyOpen so rtenv performs
// the real host open() itself; this server only answers path-level
// metadata and directory-structure operations.
//
// The retrieved original_source slice doesn't carry whatever Rust module
// mounted the rootfs root (only devtmpfs.rs/procfs/sysfs were captured),
// so this package's shape is inferred from the NewlyOpen/AtNative split
// documented in spec.md's glossary and from devtmpfs's Mountable method
// set, applied to a plain host directory instead of a device table.
package hostfs

import (
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/sisungo/mactux-server/internal/abi"
	"github.com/sisungo/mactux-server/internal/device"
	"github.com/sisungo/mactux-server/internal/kernfs"
	"github.com/sisungo/mactux-server/internal/lxerror"
)

// Mount is a host directory passed through as a virtual path subtree.
type Mount struct {
	root string
}

// New returns a Mount rooted at the given host directory, as returned by
// workdir.WorkDir.Rootfs().
func New(root string) *Mount {
	return &Mount{root: root}
}

// hostPath joins rest (already cleaned, no leading slash) onto the
// mount's root, rejecting attempts to escape it via "..". filepath.Join
// already cleans ".." components textually, so escape is only possible
// if rest climbs above root entirely; guard against that explicitly.
func (m *Mount) hostPath(rest string) (string, error) {
	joined := filepath.Join(m.root, rest)
	if joined != m.root && !strings.HasPrefix(joined, m.root+string(filepath.Separator)) {
		return "", lxerror.EACCES
	}
	return joined, nil
}

// Open never performs the host open() itself — it only resolves rest to
// an absolute native path; creation, truncation and the rest of O_*
// semantics are rtenv's to apply against that path.
func (m *Mount) Open(rest string, _ abi.OpenFlags) (kernfs.NewlyOpen, error) {
	p, err := m.hostPath(rest)
	if err != nil {
		return kernfs.NewlyOpen{}, err
	}
	return kernfs.NewlyOpen{Kind: kernfs.AtNative, Path: p}, nil
}

func (m *Mount) Stat(rest string) (abi.Statx, error) {
	p, err := m.hostPath(rest)
	if err != nil {
		return abi.Statx{}, err
	}
	var st unix.Stat_t
	if err := unix.Stat(p, &st); err != nil {
		return abi.Statx{}, lxerror.FromHostError(err)
	}
	return abi.Statx{
		Mode:      uint16(st.Mode),
		Nlink:     uint32(st.Nlink),
		UID:       st.Uid,
		GID:       st.Gid,
		Ino:       st.Ino,
		Size:      uint64(st.Size),
		Blocks:    uint64(st.Blocks),
		Blksize:   uint32(st.Blksize),
		// st.Dev/st.Rdev are host dev_t values, not Linux-encoded;
		// decoding them through device.Number's Linux bit layout is an
		// approximation good enough for regular files (guests mostly
		// care that Dev is stable and non-zero), not a faithful
		// major/minor remap.
		DevMajor:  uint32(device.Number(st.Dev).Major()),
		DevMinor:  uint32(device.Number(st.Dev).Minor()),
		RdevMajor: uint32(device.Number(st.Rdev).Major()),
		RdevMinor: uint32(device.Number(st.Rdev).Minor()),
		Atime:     int64(st.Atimespec.Sec),
		Mtime:     int64(st.Mtimespec.Sec),
		Ctime:     int64(st.Ctimespec.Sec),
	}, nil
}

func (m *Mount) Readlink(rest string) (string, bool) {
	p, err := m.hostPath(rest)
	if err != nil {
		return "", false
	}
	target, err := os.Readlink(p)
	if err != nil {
		return "", false
	}
	return target, true
}

func (m *Mount) Unlink(rest string) error {
	p, err := m.hostPath(rest)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		return lxerror.FromHostError(err)
	}
	return nil
}

func (m *Mount) Mkdir(rest string, mode abi.FileMode) error {
	p, err := m.hostPath(rest)
	if err != nil {
		return err
	}
	if err := os.Mkdir(p, os.FileMode(mode&0o777)); err != nil {
		return lxerror.FromHostError(err)
	}
	return nil
}

func (m *Mount) Rmdir(rest string) error {
	p, err := m.hostPath(rest)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		return lxerror.FromHostError(err)
	}
	return nil
}

func (m *Mount) ReadDir(rest string) ([]string, error) {
	p, err := m.hostPath(rest)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(p)
	if err != nil {
		return nil, lxerror.FromHostError(err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

// Symlink, Rename, Link and Mknod are not part of the Mountable
// interface; internal/vfs reaches them through its optional linker
// capability by type assertion. Each goes through the same root-escape
// guard (hostPath) as the Mountable methods.

func (m *Mount) Symlink(target, linkRest string) error {
	p, err := m.hostPath(linkRest)
	if err != nil {
		return err
	}
	if err := os.Symlink(target, p); err != nil {
		return lxerror.FromHostError(err)
	}
	return nil
}

func (m *Mount) Rename(fromRest, toRest string) error {
	from, err := m.hostPath(fromRest)
	if err != nil {
		return err
	}
	to, err := m.hostPath(toRest)
	if err != nil {
		return err
	}
	if err := os.Rename(from, to); err != nil {
		return lxerror.FromHostError(err)
	}
	return nil
}

func (m *Mount) Link(fromRest, toRest string) error {
	from, err := m.hostPath(fromRest)
	if err != nil {
		return err
	}
	to, err := m.hostPath(toRest)
	if err != nil {
		return err
	}
	if err := os.Link(from, to); err != nil {
		return lxerror.FromHostError(err)
	}
	return nil
}

func (m *Mount) Mknod(rest string, mode abi.FileMode, dev device.Number) error {
	p, err := m.hostPath(rest)
	if err != nil {
		return err
	}
	if err := unix.Mknod(p, uint32(mode), int(dev)); err != nil {
		return lxerror.FromHostError(err)
	}
	return nil
}
