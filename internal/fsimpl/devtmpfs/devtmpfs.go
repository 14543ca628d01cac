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

// Package devtmpfs implements the synthetic filesystem mounted at /dev,
// populating the well-known device nodes from the device table. Grounded
// on original_source/mactux_server/src/filesystem/devtmpfs.rs.
package devtmpfs

import (
	"github.com/sisungo/mactux-server/internal/abi"
	"github.com/sisungo/mactux-server/internal/device"
	"github.com/sisungo/mactux-server/internal/devtable"
	"github.com/sisungo/mactux-server/internal/kernfs"
	"github.com/sisungo/mactux-server/internal/lxerror"
	"github.com/sisungo/mactux-server/internal/vfd"
)

// Mount is the /dev Mountable. Every name resolves to a fixed device
// number looked up in a devtable.Table supplied at construction.
type Mount struct {
	devs  *devtable.Table
	nodes map[string]device.Number
}

// New builds the standard /dev layout: null, zero, full, random,
// urandom, tty, console. devs must already have RegisterAuxMem/RegisterTerm
// applied.
func New(devs *devtable.Table) *Mount {
	return &Mount{
		devs: devs,
		nodes: map[string]device.Number{
			"null":    device.New(1, 3),
			"zero":    device.New(1, 5),
			"full":    device.New(1, 7),
			"random":  device.New(1, 8),
			"urandom": device.New(1, 9),
			"tty":     device.New(5, 0),
			"console": device.New(5, 1),
		},
	}
}

func (m *Mount) Open(rest string, flags abi.OpenFlags) (kernfs.NewlyOpen, error) {
	n, ok := m.nodes[rest]
	if !ok {
		return kernfs.NewlyOpen{}, lxerror.ENOENT
	}
	obj, ok := m.devs.Open(n)
	if !ok {
		return kernfs.NewlyOpen{}, lxerror.ENOENT
	}
	if dev, ok := obj.(interface{ MacOSDevice() (string, bool) }); ok {
		if path, ok := dev.MacOSDevice(); ok {
			return kernfs.NewlyOpen{Kind: kernfs.AtNative, Path: path}, nil
		}
	}
	return kernfs.NewlyOpen{Kind: kernfs.AtServer, Entry: vfd.NewEntry(obj, flags)}, nil
}

func (m *Mount) Stat(rest string) (abi.Statx, error) {
	if _, ok := m.nodes[rest]; !ok {
		return abi.Statx{}, lxerror.ENOENT
	}
	return abi.Statx{Mode: uint16(abi.MakeDevFileMode(0o666))}, nil
}

func (m *Mount) Readlink(string) (string, bool) { return "", false }
func (m *Mount) Unlink(string) error             { return lxerror.EPERM }
func (m *Mount) Mkdir(string, abi.FileMode) error { return lxerror.EPERM }
func (m *Mount) Rmdir(string) error               { return lxerror.EPERM }

func (m *Mount) ReadDir(rest string) ([]string, error) {
	if rest != "" {
		return nil, lxerror.ENOENT
	}
	names := make([]string, 0, len(m.nodes))
	for n := range m.nodes {
		names = append(names, n)
	}
	return names, nil
}
