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

// Package sysfs implements the synthetic filesystem mounted at /sys. It
// is an intentionally empty placeholder, matching
// original_source/mactux_server/src/filesystem/sysfs/mod.rs.
package sysfs

import (
	"github.com/sisungo/mactux-server/internal/abi"
	"github.com/sisungo/mactux-server/internal/kernfs"
	"github.com/sisungo/mactux-server/internal/lxerror"
)

// Mount is the empty /sys Mountable.
type Mount struct {
	root *kernfs.KernFS
}

// New returns an empty /sys.
func New() *Mount {
	return &Mount{root: kernfs.New()}
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

func (m *Mount) Stat(string) (abi.Statx, error)     { return abi.Statx{}, lxerror.ENOENT }
func (m *Mount) Readlink(string) (string, bool)     { return "", false }
func (m *Mount) Unlink(string) error                { return lxerror.EPERM }
func (m *Mount) Mkdir(string, abi.FileMode) error   { return lxerror.EPERM }
func (m *Mount) Rmdir(string) error                 { return lxerror.EPERM }
func (m *Mount) ReadDir(rest string) ([]string, error) {
	if rest != "" {
		return nil, lxerror.ENOENT
	}
	return nil, nil
}
