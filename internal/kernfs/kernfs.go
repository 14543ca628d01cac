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

// Package kernfs implements the in-memory, producer-function backed
// directory tree used by procfs and sysfs (devtmpfs uses only its
// NewlyOpen result type). Grounded on the
// DirEntry/KernFsFile/fn_file shape used throughout
// original_source/mactux_server/src/filesystem/{devtmpfs,procfs/mod}.rs,
// whose kernfs module itself wasn't part of the retrieved source — the
// directory/table shape below is reconstructed from how those two files
// use it.
package kernfs

import (
	"sort"
	"sync"

	"github.com/sisungo/mactux-server/internal/abi"
	"github.com/sisungo/mactux-server/internal/lxerror"
	"github.com/sisungo/mactux-server/internal/vfd"
)

// NewlyOpenKind distinguishes the two ways opening a File can resolve.
type NewlyOpenKind int

const (
	// AtNative means the caller should perform a host open() of Path.
	AtNative NewlyOpenKind = iota
	// AtServer means the open is already server-mediated; Entry holds
	// the live Vfd entry to install in the caller's table.
	AtServer
)

// NewlyOpen is the outcome of resolving a virtual path to something
// openable.
type NewlyOpen struct {
	Kind  NewlyOpenKind
	Path  string
	Entry *vfd.Entry
}

// File is a regular-file entry in a KernFS directory: something that can
// be opened into a NewlyOpen.
type File interface {
	Open(flags abi.OpenFlags) (NewlyOpen, error)
}

// DirEntry is the tagged union of what a KernFS directory slot can hold.
type DirEntry struct {
	file    File
	dir     *KernFS
	symlink string
	kind    dirEntryKind
}

type dirEntryKind int

const (
	kindRegular dirEntryKind = iota
	kindDirectory
	kindSymlink
)

// RegularFile wraps f as a DirEntry.
func RegularFile(f File) DirEntry { return DirEntry{file: f, kind: kindRegular} }

// Directory wraps a nested KernFS as a DirEntry.
func Directory(d *KernFS) DirEntry { return DirEntry{dir: d, kind: kindDirectory} }

// Symlink wraps a target path as a DirEntry.
func Symlink(target string) DirEntry { return DirEntry{symlink: target, kind: kindSymlink} }

// IsDir reports whether this entry is a Directory.
func (d DirEntry) IsDir() bool { return d.kind == kindDirectory }

// IsSymlink reports whether this entry is a Symlink, returning its target.
func (d DirEntry) IsSymlink() (string, bool) { return d.symlink, d.kind == kindSymlink }

// AsDir returns the nested KernFS, if this entry is a Directory.
func (d DirEntry) AsDir() (*KernFS, bool) { return d.dir, d.kind == kindDirectory }

// AsFile returns the File, if this entry is a RegularFile.
func (d DirEntry) AsFile() (File, bool) { return d.file, d.kind == kindRegular }

// KernFS is a read-write-locked mapping from name to DirEntry.
type KernFS struct {
	mu    sync.RWMutex
	table map[string]DirEntry
}

// New returns an empty KernFS directory.
func New() *KernFS {
	return &KernFS{table: make(map[string]DirEntry)}
}

// Insert installs entry at name, overwriting any prior entry there.
func (k *KernFS) Insert(name string, entry DirEntry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.table[name] = entry
}

// Remove deletes the entry at name, if any.
func (k *KernFS) Remove(name string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.table, name)
}

// Lookup returns the entry at name.
func (k *KernFS) Lookup(name string) (DirEntry, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	e, ok := k.table[name]
	return e, ok
}

// Names returns the directory's entry names in sorted order, for
// deterministic listing (e.g. procfs's own directory reads).
func (k *KernFS) Names() []string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	names := make([]string, 0, len(k.table))
	for n := range k.table {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// producerFile is the producer-function File: a zero-arg function
// returning the file's full contents, materialized fresh on every open.
// Grounded on fn_file in procfs/mod.rs.
type producerFile struct {
	produce func() ([]byte, error)
}

// FnFile wraps a zero-argument byte-producing function as a File whose
// Open materializes the bytes into an in-memory, read-only Stream.
func FnFile(produce func() ([]byte, error)) File {
	return producerFile{produce: produce}
}

func (p producerFile) Open(flags abi.OpenFlags) (NewlyOpen, error) {
	if flags.Has(abi.OWrOnly) || flags.Has(abi.ORdWr) {
		return NewlyOpen{}, lxerror.EACCES
	}
	data, err := p.produce()
	if err != nil {
		return NewlyOpen{}, err
	}
	return NewlyOpen{Kind: AtServer, Entry: vfd.NewEntry(newByteStream(data), flags)}, nil
}

// byteStream serves successive slices of an immutable in-memory buffer,
// the Stream half of a materialized producerFile.
type byteStream struct {
	vfd.BaseStream
	data []byte
}

func newByteStream(data []byte) *byteStream { return &byteStream{data: data} }

func (b *byteStream) Read(buf []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(b.data)) {
		return 0, nil
	}
	n := copy(buf, b.data[off:])
	return n, nil
}

func (b *byteStream) Seek(whence abi.Whence, off int64) (int64, error) {
	switch whence {
	case abi.SeekSet:
		return off, nil
	case abi.SeekEnd:
		return int64(len(b.data)) + off, nil
	default:
		return 0, lxerror.EINVAL
	}
}
