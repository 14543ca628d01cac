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

// Package vfs implements the mount namespace and the longest-prefix path
// resolution algorithm that dispatches a virtual path to the Mountable
// responsible for it.
package vfs

import (
	"path"
	"strings"
	"sync"

	"github.com/google/btree"

	"github.com/sisungo/mactux-server/internal/abi"
	"github.com/sisungo/mactux-server/internal/kernfs"
	"github.com/sisungo/mactux-server/internal/lxerror"
)

// maxSymlinkHops bounds symlink-following recursion during resolution.
const maxSymlinkHops = 40

// Mountable is anything that can be mounted at a point in the namespace
// and answer path-relative operations under it.
type Mountable interface {
	// Open resolves rest (relative to this mount's root, no leading
	// slash) to a NewlyOpen. Symlinks are not reported through Open:
	// resolution consults Readlink before calling Open and follows a
	// link itself.
	Open(rest string, flags abi.OpenFlags) (kernfs.NewlyOpen, error)
	Stat(rest string) (abi.Statx, error)
	Readlink(rest string) (string, bool)
	Unlink(rest string) error
	Mkdir(rest string, mode abi.FileMode) error
	Rmdir(rest string) error
	ReadDir(rest string) ([]string, error)
}

type mountEntry struct {
	path   string
	m      Mountable
	source string
	fsType string
}

func lessMountEntry(a, b mountEntry) bool { return a.path < b.path }

// MountInfo is a snapshot of one mountpoint, as listed by procfs's mounts
// producer file.
type MountInfo struct {
	Source     string
	MountPoint string
	FsType     string
}

// MountNamespace is a read-write-locked, btree-ordered set of mountpoints
// supporting longest-prefix-first resolution.
type MountNamespace struct {
	mu   sync.RWMutex
	tree *btree.BTreeG[mountEntry]
}

// New returns an empty mount namespace.
func New() *MountNamespace {
	return &MountNamespace{tree: btree.NewG(32, lessMountEntry)}
}

// Mount installs m at the given absolute, clean path.
func (ns *MountNamespace) Mount(at string, m Mountable) {
	ns.MountWithInfo(at, m, at, "kernfs")
}

// MountWithInfo installs m at the given path, recording the source device
// name and filesystem type shown by procfs's mounts producer file.
func (ns *MountNamespace) MountWithInfo(at string, m Mountable, source, fsType string) {
	at = normalize(at)
	ns.mu.Lock()
	defer ns.mu.Unlock()
	ns.tree.ReplaceOrInsert(mountEntry{path: at, m: m, source: source, fsType: fsType})
}

// Mounts returns a snapshot of every mountpoint in the namespace, ordered
// by path, for procfs's mounts producer file.
func (ns *MountNamespace) Mounts() []MountInfo {
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	out := make([]MountInfo, 0, ns.tree.Len())
	ns.tree.Ascend(func(e mountEntry) bool {
		out = append(out, MountInfo{Source: e.source, MountPoint: e.path, FsType: e.fsType})
		return true
	})
	return out
}

// Unmount removes whatever is mounted exactly at the given path.
func (ns *MountNamespace) Unmount(at string) bool {
	at = normalize(at)
	ns.mu.Lock()
	defer ns.mu.Unlock()
	_, ok := ns.tree.Delete(mountEntry{path: at})
	return ok
}

// Clone returns a copy-on-write snapshot of ns, used by unshare(2)/clone(2)
// with CLONE_NEWNS: the new namespace starts with the same mountpoints but
// diverges independently afterward.
func (ns *MountNamespace) Clone() *MountNamespace {
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	return &MountNamespace{tree: ns.tree.Clone()}
}

// lookup finds the mountpoint whose path is the longest prefix of p,
// returning the Mountable and the remaining suffix relative to it.
func (ns *MountNamespace) lookup(p string) (Mountable, string, bool) {
	ns.mu.RLock()
	defer ns.mu.RUnlock()

	var found mountEntry
	var ok bool
	ns.tree.DescendLessOrEqual(mountEntry{path: p}, func(e mountEntry) bool {
		if isPrefix(e.path, p) {
			found, ok = e, true
			return false
		}
		return true
	})
	if !ok {
		return nil, "", false
	}
	rest := strings.TrimPrefix(p, found.path)
	rest = strings.TrimPrefix(rest, "/")
	return found.m, rest, true
}

func isPrefix(mountPoint, p string) bool {
	if mountPoint == "/" {
		return true
	}
	if p == mountPoint {
		return true
	}
	return strings.HasPrefix(p, mountPoint+"/")
}

// normalize resolves "." and ".." components textually and ensures the
// result is absolute and clean, per resolution step 1.
func normalize(p string) string {
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

// ResolveOpen runs the full resolution algorithm for an open(2): split,
// find longest-prefix mount, delegate, and follow symlinks up to
// maxSymlinkHops times.
func (ns *MountNamespace) ResolveOpen(p string, flags abi.OpenFlags) (kernfs.NewlyOpen, error) {
	cur := normalize(p)
	for hop := 0; ; hop++ {
		if hop >= maxSymlinkHops {
			return kernfs.NewlyOpen{}, lxerror.ELOOP
		}
		m, rest, ok := ns.lookup(cur)
		if !ok {
			return kernfs.NewlyOpen{}, lxerror.ENOENT
		}
		if target, isLink := m.Readlink(rest); isLink && !flags.Has(abi.ODirectory) {
			cur = resolveSymlinkTarget(cur, target)
			continue
		}
		return m.Open(rest, flags)
	}
}

// resolveSymlinkTarget joins a symlink target against the path being
// resolved: an absolute target replaces it outright, a relative one is
// joined against the symlink's containing directory.
func resolveSymlinkTarget(resolving, target string) string {
	if strings.HasPrefix(target, "/") {
		return normalize(target)
	}
	return normalize(path.Join(path.Dir(resolving), target))
}

// ResolveStat runs resolution for a stat(2)-class call: it follows
// symlinks the same way ResolveOpen does, since callers that want
// lstat semantics should check Readlink directly instead.
func (ns *MountNamespace) ResolveStat(p string) (abi.Statx, error) {
	cur := normalize(p)
	for hop := 0; ; hop++ {
		if hop >= maxSymlinkHops {
			return abi.Statx{}, lxerror.ELOOP
		}
		m, rest, ok := ns.lookup(cur)
		if !ok {
			return abi.Statx{}, lxerror.ENOENT
		}
		if target, isLink := m.Readlink(rest); isLink {
			cur = resolveSymlinkTarget(cur, target)
			continue
		}
		return m.Stat(rest)
	}
}

// ResolveUnlink delegates an unlink(2) to the owning Mountable without
// following a terminal symlink (unlink removes the link itself).
func (ns *MountNamespace) ResolveUnlink(p string) error {
	m, rest, ok := ns.lookup(normalize(p))
	if !ok {
		return lxerror.ENOENT
	}
	return m.Unlink(rest)
}

// ResolveMkdir delegates mkdir(2) to the owning Mountable.
func (ns *MountNamespace) ResolveMkdir(p string, mode abi.FileMode) error {
	m, rest, ok := ns.lookup(normalize(p))
	if !ok {
		return lxerror.ENOENT
	}
	return m.Mkdir(rest, mode)
}

// ResolveRmdir delegates rmdir(2) to the owning Mountable.
func (ns *MountNamespace) ResolveRmdir(p string) error {
	m, rest, ok := ns.lookup(normalize(p))
	if !ok {
		return lxerror.ENOENT
	}
	return m.Rmdir(rest)
}

// ResolveReadDir delegates getdents-class listing to the owning Mountable.
func (ns *MountNamespace) ResolveReadDir(p string) ([]string, error) {
	m, rest, ok := ns.lookup(normalize(p))
	if !ok {
		return nil, lxerror.ENOENT
	}
	return m.ReadDir(rest)
}

// ResolveReadlink delegates readlink(2) to the owning Mountable without
// following the terminal symlink (readlink reports the link's own
// target, not where it points).
func (ns *MountNamespace) ResolveReadlink(p string) (string, error) {
	m, rest, ok := ns.lookup(normalize(p))
	if !ok {
		return "", lxerror.ENOENT
	}
	target, isLink := m.Readlink(rest)
	if !isLink {
		return "", lxerror.EINVAL
	}
	return target, nil
}

// linker is the optional capability a Mountable exposes for the
// link-family operations (symlink/rename/link/mknod) that most synthetic
// filesystems don't support; only hostfs implements it today.
type linker interface {
	Symlink(target, linkRest string) error
	Rename(fromRest, toRest string) error
	Link(fromRest, toRest string) error
	Mknod(rest string, mode abi.FileMode, dev DeviceNumber) error
}

// DeviceNumber is re-declared here (rather than imported from internal/
// device) purely to give this file's linker interface a name without
// adding a second import solely for one parameter type; it is identical
// in representation to device.Number and every caller already has one.
type DeviceNumber = abi.DeviceNumber

// ResolveSymlink creates linkPath as a symlink to target, delegating to
// whichever Mountable owns linkPath's namespace.
func (ns *MountNamespace) ResolveSymlink(target, linkPath string) error {
	m, rest, ok := ns.lookup(normalize(linkPath))
	if !ok {
		return lxerror.ENOENT
	}
	lk, ok := m.(linker)
	if !ok {
		return lxerror.EPERM
	}
	return lk.Symlink(target, rest)
}

// ResolveRename renames from to to; both must resolve under the same
// Mountable, matching EXDEV semantics for cross-mount renames.
func (ns *MountNamespace) ResolveRename(from, to string) error {
	mFrom, restFrom, ok := ns.lookup(normalize(from))
	if !ok {
		return lxerror.ENOENT
	}
	mTo, restTo, ok := ns.lookup(normalize(to))
	if !ok {
		return lxerror.ENOENT
	}
	if mFrom != mTo {
		return lxerror.EXDEV
	}
	lk, ok := mFrom.(linker)
	if !ok {
		return lxerror.EPERM
	}
	return lk.Rename(restFrom, restTo)
}

// ResolveLink creates a hard link at to pointing to from's inode.
func (ns *MountNamespace) ResolveLink(from, to string) error {
	mFrom, restFrom, ok := ns.lookup(normalize(from))
	if !ok {
		return lxerror.ENOENT
	}
	mTo, restTo, ok := ns.lookup(normalize(to))
	if !ok {
		return lxerror.ENOENT
	}
	if mFrom != mTo {
		return lxerror.EXDEV
	}
	lk, ok := mFrom.(linker)
	if !ok {
		return lxerror.EPERM
	}
	return lk.Link(restFrom, restTo)
}

// ResolveMknod creates a device special file at p.
func (ns *MountNamespace) ResolveMknod(p string, mode abi.FileMode, dev DeviceNumber) error {
	m, rest, ok := ns.lookup(normalize(p))
	if !ok {
		return lxerror.ENOENT
	}
	lk, ok := m.(linker)
	if !ok {
		return lxerror.EPERM
	}
	return lk.Mknod(rest, mode, dev)
}
