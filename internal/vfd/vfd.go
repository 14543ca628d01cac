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

// Package vfd implements the server-owned virtual file descriptor table:
// the handle objects backing open/socket/pipe/eventfd/accept, and the
// per-process table that maps the guest's cookie FD to them.
package vfd

import (
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/sisungo/mactux-server/internal/abi"
	"github.com/sisungo/mactux-server/internal/lxerror"
	"github.com/sisungo/mactux-server/internal/pollutil"
)

// Stream is the mandatory capability every Vfd-backing object implements.
// Default behavior for every method is EOPNOTSUPP; concrete objects
// override what they support.
type Stream interface {
	Read(buf []byte, off int64) (int, error)
	Write(buf []byte, off int64) (int, error)
	Seek(whence abi.Whence, off int64) (int64, error)
}

// BaseStream embeds into concrete objects to supply the EOPNOTSUPP
// defaults for whichever of Read/Write/Seek they don't implement.
type BaseStream struct{}

func (BaseStream) Read([]byte, int64) (int, error)        { return 0, lxerror.EOPNOTSUPP }
func (BaseStream) Write([]byte, int64) (int, error)       { return 0, lxerror.EOPNOTSUPP }
func (BaseStream) Seek(abi.Whence, int64) (int64, error) { return 0, lxerror.EOPNOTSUPP }

// CtrlOutput is the result of a VfdIoctl request.
type CtrlOutput struct {
	Status int32
	Blob   []byte
}

// AvailCtrl describes whether a given ioctl command is recognized and how
// large its argument buffer should be, answering VfdIoctlQuery.
type AvailCtrl struct {
	Supported bool
	ArgLen    uint32
}

// Ioctl is an optional capability for device-like Vfd objects.
type Ioctl interface {
	IoctlQuery(cmd abi.IoctlCmd) AvailCtrl
	DoIoctl(cmd abi.IoctlCmd, data []byte) (CtrlOutput, error)
}

// Poll is an optional capability letting a Vfd object participate in
// interruptible polling; it returns a Token backed by the object's
// internal readiness Watch.
type Poll interface {
	PollToken(interest pollutil.Events) (*pollutil.Token, error)
}

// Device is an optional capability: if MacOSDevice returns a non-empty
// path, opening this Vfd resolves to a host open() of that path instead
// of server-mediated I/O.
type Device interface {
	MacOSDevice() (string, bool)
}

// Statter is an optional capability for Vfd objects that know their own
// metadata (DirStream's entry count). Objects that don't implement it get Entry.Stat's zeroed
// default.
type Statter interface {
	Stat() (abi.Statx, error)
}

// Truncator is an optional capability for Vfd objects that support
// ftruncate(2); most server-mediated objects (eventfds, directory
// streams, device streams) have no notion of a resizable length and
// don't implement it.
type Truncator interface {
	Truncate(size uint64) error
}

// Chowner is an optional capability for Vfd objects that track an
// owning uid/gid; none of the currently server-mediated objects do.
type Chowner interface {
	Chown(uid, gid uint32) error
}

// Object is any concrete Vfd backing type; it must implement Stream and
// may additionally implement Ioctl, Poll, Device, and Statter.
type Object interface {
	Stream
}

var nextID atomic.Uint64

// Entry is one live handle in a VfdTable: a shared backing object, the
// open flags it was created with, and a per-handle seek cursor for
// objects that don't track their own offset.
type Entry struct {
	ID     uint64
	Object Object
	Flags  abi.OpenFlags

	// OrigPath is the virtual path this entry was opened from, if known
	// (set by whoever installs the entry into a Table from a
	// kernfs.NewlyOpen). Answers VfdOrigPath for server-mediated
	// entries; native-resolved files never populate a table entry at
	// all, so they never need this.
	OrigPath string

	mu     sync.Mutex
	cursor int64
	refs   atomic.Int32
}

// NewEntry allocates a fresh Entry wrapping obj with the given open
// flags. The entry starts with one reference.
func NewEntry(obj Object, flags abi.OpenFlags) *Entry {
	e := &Entry{ID: nextID.Add(1), Object: obj, Flags: flags}
	e.refs.Store(1)
	return e
}

// Retain increments the entry's reference count; called when a dup or
// fork shares this entry across another table slot.
func (e *Entry) Retain() { e.refs.Add(1) }

// Release decrements the reference count and reports whether it reached
// zero, meaning the caller was the last owner and should tear the object
// down.
func (e *Entry) Release() bool { return e.refs.Add(-1) == 0 }

// Read performs a positioned read using the entry's own cursor, advancing
// it by the number of bytes returned.
func (e *Entry) Read(buf []byte) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	n, err := e.Object.Read(buf, e.cursor)
	e.cursor += int64(n)
	return n, err
}

// Write performs a positioned write using the entry's own cursor,
// advancing it by the number of bytes written. O_APPEND objects are
// expected to ignore the supplied offset and always append; this is the
// concrete object's responsibility, matching the Rust source's Stream
// contract.
func (e *Entry) Write(buf []byte) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	n, err := e.Object.Write(buf, e.cursor)
	e.cursor += int64(n)
	return n, err
}

// Pread/Pwrite perform an I/O operation at an explicit offset without
// touching the entry's cursor.
func (e *Entry) Pread(buf []byte, off int64) (int, error) {
	return e.Object.Read(buf, off)
}

func (e *Entry) Pwrite(buf []byte, off int64) (int, error) {
	return e.Object.Write(buf, off)
}

// SeekTo updates the entry's cursor per lseek(2) semantics and returns
// the new absolute position.
func (e *Entry) SeekTo(whence abi.Whence, off int64) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch whence {
	case abi.SeekCur:
		off += e.cursor
	case abi.SeekSet:
		// off already absolute
	case abi.SeekEnd:
		pos, err := e.Object.Seek(abi.SeekEnd, off)
		if err != nil {
			return 0, err
		}
		e.cursor = pos
		return pos, nil
	default:
		return 0, lxerror.EINVAL
	}
	pos, err := e.Object.Seek(abi.SeekSet, off)
	if err != nil {
		return 0, err
	}
	e.cursor = pos
	return pos, nil
}

// AsIoctl, AsPoll, AsDevice are the capability-narrowing helpers callers
// use instead of repeating a type assertion everywhere.
func (e *Entry) AsIoctl() (Ioctl, bool)   { c, ok := e.Object.(Ioctl); return c, ok }
func (e *Entry) AsPoll() (Poll, bool)     { c, ok := e.Object.(Poll); return c, ok }
func (e *Entry) AsDevice() (Device, bool) { c, ok := e.Object.(Device); return c, ok }

// Stat answers a fstat(2)-class call against this handle. Objects
// implementing Statter are asked directly; everything else gets a
// minimal regular-file default (mode 0644, one link), since most
// server-mediated objects (eventfds, device streams) carry no richer
// metadata to report.
func (e *Entry) Stat() (abi.Statx, error) {
	if s, ok := e.Object.(Statter); ok {
		return s.Stat()
	}
	return abi.Statx{Mode: 0o100644, Nlink: 1}, nil
}

// Truncate resizes the entry's backing object, or reports EOPNOTSUPP if
// it doesn't implement Truncator.
func (e *Entry) Truncate(size uint64) error {
	if t, ok := e.Object.(Truncator); ok {
		return t.Truncate(size)
	}
	return lxerror.EOPNOTSUPP
}

// Chown reassigns the entry's backing object's owner, or reports
// EOPNOTSUPP if it doesn't implement Chowner.
func (e *Entry) Chown(uid, gid uint32) error {
	if c, ok := e.Object.(Chowner); ok {
		return c.Chown(uid, gid)
	}
	return lxerror.EOPNOTSUPP
}

// ResolvedHostPath reports the host path a NewlyOpen resolution to
// AtNative should use for this entry, if its backing object is a Device
// with a macOS counterpart.
func ResolvedHostPath(obj Object) (string, bool) {
	dev, ok := obj.(Device)
	if !ok {
		return "", false
	}
	p, ok := dev.MacOSDevice()
	if !ok || p == "" {
		return "", false
	}
	return filepath.Clean(p), true
}
