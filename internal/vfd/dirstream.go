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

import "github.com/sisungo/mactux-server/internal/abi"

// DirStream backs a Vfd opened with O_DIRECTORY: a snapshot of the
// directory's entry names taken at open time, consumed one Dirent64 at a
// time by successive VfdGetdent requests. Neither devtmpfs, procfs nor
// sysfs model directories as Files in their own right (their Mountable's
// ReadDir answers a whole listing in one call); this wraps that listing
// as the stateful, cursor-advancing object the VfdGetdent wire request
// expects, since nothing in the retrieved original_source exposes a
// directory Vfd's own Rust type to ground this on.
type DirStream struct {
	BaseStream
	names  []string
	cursor int
}

// NewDirStream snapshots names as a fresh directory stream.
func NewDirStream(names []string) *DirStream {
	return &DirStream{names: append([]string(nil), names...)}
}

// Stat reports a directory mode and the remaining entry count as Size.
func (d *DirStream) Stat() (abi.Statx, error) {
	return abi.Statx{Mode: 0o040755, Nlink: 2, Size: uint64(len(d.names) - d.cursor)}, nil
}

// Next returns the next entry, or ok=false once the stream is exhausted.
func (d *DirStream) Next() (abi.Dirent64, bool) {
	if d.cursor >= len(d.names) {
		return abi.Dirent64{}, false
	}
	name := d.names[d.cursor]
	off := int64(d.cursor) + 1
	d.cursor++
	return abi.Dirent64{Ino: uint64(off), Off: off, Type: 0, Name: name}, true
}
