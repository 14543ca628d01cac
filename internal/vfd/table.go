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

package vfd

import (
	"sync"

	"github.com/sisungo/mactux-server/internal/abi"
	"github.com/sisungo/mactux-server/internal/lxerror"
)

// Table is a per-process mapping from the server-issued Vfd handle to its
// Entry. It is shared by every thread of a process under a single-writer
// (RWMutex) discipline.
type Table struct {
	mu      sync.RWMutex
	entries map[uint64]*Entry
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{entries: make(map[uint64]*Entry)}
}

// Insert installs a new entry and returns its handle.
func (t *Table) Insert(obj Object, flags abi.OpenFlags) uint64 {
	e := NewEntry(obj, flags)
	t.mu.Lock()
	t.entries[e.ID] = e
	t.mu.Unlock()
	return e.ID
}

// InsertEntry adopts an already-constructed entry (as returned by a
// Mountable's Open, whose kernfs.NewlyOpen carries its own freshly
// allocated Entry) into the table under its own ID.
func (t *Table) InsertEntry(e *Entry) uint64 {
	t.mu.Lock()
	t.entries[e.ID] = e
	t.mu.Unlock()
	return e.ID
}

// Get looks up an entry by handle.
func (t *Table) Get(handle uint64) (*Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[handle]
	return e, ok
}

// MustGet looks up an entry, translating a miss into EBADF.
func (t *Table) MustGet(handle uint64) (*Entry, error) {
	e, ok := t.Get(handle)
	if !ok {
		return nil, lxerror.EBADF
	}
	return e, nil
}

// Dup installs a second table slot sharing the same backing object as
// handle, incrementing its reference count. Returns the new handle.
func (t *Table) Dup(handle uint64) (uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[handle]
	if !ok {
		return 0, lxerror.EBADF
	}
	e.Retain()
	dup := &Entry{ID: e.ID, Object: e.Object, Flags: e.Flags &^ abi.OCloexec}
	dup.refs.Store(1)
	newID := nextID.Add(1)
	dup.ID = newID
	t.entries[newID] = dup
	return newID, nil
}

// SetCloexec flips the O_CLOEXEC bit on an entry's recorded flags (used by
// fcntl(F_SETFD, FD_CLOEXEC)). It does not affect the sharing of the
// underlying object.
func (t *Table) SetCloexec(handle uint64, cloexec bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[handle]
	if !ok {
		return lxerror.EBADF
	}
	if cloexec {
		e.Flags |= abi.OCloexec
	} else {
		e.Flags &^= abi.OCloexec
	}
	return nil
}

// SetFlags replaces an entry's recorded open flags wholesale, used by
// fcntl(F_SETFL). Callers are expected to preserve bits the guest didn't
// intend to change (e.g. O_CLOEXEC, which Linux keeps off F_SETFL's
// writable set) before calling this.
func (t *Table) SetFlags(handle uint64, flags abi.OpenFlags) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[handle]
	if !ok {
		return lxerror.EBADF
	}
	e.Flags = flags
	return nil
}

// Close removes handle from the table and, if this was the last reference
// to the backing object, releases it. Releasing is a bookkeeping-only
// step here; objects that hold OS resources (pipes, sockets) must close
// them in response via their own finalization, which is out of this
// table's scope.
func (t *Table) Close(handle uint64) error {
	t.mu.Lock()
	e, ok := t.entries[handle]
	if !ok {
		t.mu.Unlock()
		return lxerror.EBADF
	}
	delete(t.entries, handle)
	t.mu.Unlock()
	e.Release()
	return nil
}

// Fork duplicates the table for a child process: every live entry is
// shared (reference-counted), matching the spec's "duplicate the mapping
// with shared references to underlying objects."
func (t *Table) Fork() *Table {
	t.mu.RLock()
	defer t.mu.RUnlock()
	child := NewTable()
	for handle, e := range t.entries {
		e.Retain()
		child.entries[handle] = e
	}
	return child
}

// OnExec drops every entry whose open flags include O_CLOEXEC, per
// exec(2) semantics. Surviving entries keep their handle numbers.
func (t *Table) OnExec() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for handle, e := range t.entries {
		if e.Flags.Has(abi.OCloexec) {
			delete(t.entries, handle)
			e.Release()
		}
	}
}

// Handles returns every live handle, for getdents-style enumeration of
// /proc/<pid>/fd.
func (t *Table) Handles() []uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]uint64, 0, len(t.entries))
	for h := range t.entries {
		out = append(out, h)
	}
	return out
}

// Len reports the number of live entries.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}
