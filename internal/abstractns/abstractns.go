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

// Package abstractns implements the abstract Unix-socket namespace: a
// directory of <escaped-name>.map files pointing at numeric ids, and
// <id>.sock files holding the real host sockets. Grounded on
// original_source/servers/mactux_server/src/network/abs.rs.
package abstractns

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"

	"github.com/gofrs/flock"

	"github.com/sisungo/mactux-server/internal/lxerror"
)

// Namespace is one abstract-socket directory, identified by a host path.
type Namespace struct {
	path   string
	nextID atomic.Uint64
}

// New creates (replacing any stale contents) the namespace directory at
// path.
func New(path string) (*Namespace, error) {
	_ = os.RemoveAll(path)
	if err := os.Mkdir(path, 0o700); err != nil {
		return nil, err
	}
	ns := &Namespace{path: path}
	ns.nextID.Store(1)
	return ns, nil
}

// CreateNamed allocates a fresh id for name and durably records the
// mapping, guarded by an advisory flock so two racing binds of the same
// name can't corrupt the .map file.
func (n *Namespace) CreateNamed(name []byte) (uint64, error) {
	id := n.nextID.Add(1) - 1
	mapFile := n.mapPath(name)

	lock := flock.New(mapFile + ".lock")
	if err := lock.Lock(); err != nil {
		return 0, lxerror.FromHostError(err)
	}
	defer lock.Unlock()

	if err := os.WriteFile(mapFile, []byte(strconv.FormatUint(id, 10)), 0o600); err != nil {
		return 0, lxerror.FromHostError(err)
	}
	return id, nil
}

// SockByID returns the host socket path for a numeric id.
func (n *Namespace) SockByID(id uint64) string {
	return filepath.Join(n.path, fmt.Sprintf("%d.sock", id))
}

// IDByName resolves a previously bound name to its numeric id.
func (n *Namespace) IDByName(name []byte) (uint64, error) {
	data, err := os.ReadFile(n.mapPath(name))
	if err != nil {
		return 0, lxerror.ENOENT
	}
	id, err := strconv.ParseUint(string(data), 10, 64)
	if err != nil {
		return 0, lxerror.EIO
	}
	return id, nil
}

// SockByName resolves a bound name straight to its host socket path.
func (n *Namespace) SockByName(name []byte) (string, error) {
	id, err := n.IDByName(name)
	if err != nil {
		return "", err
	}
	return n.SockByID(id), nil
}

func (n *Namespace) mapPath(name []byte) string {
	return filepath.Join(n.path, EscapeName(name)+".map")
}

// EscapeName maps an abstract socket name's arbitrary bytes onto a safe
// host filename: '+' becomes "++", '/' becomes "+s", '@' becomes "+@",
// and any non-ASCII byte becomes "@<decimal>@". Every other ASCII byte
// passes through unchanged. This is the spec's fixed escaping rule, not
// abs.rs's own escape_abstract_name (which duplicates the literal
// character after emitting its escape prefix for '+'/'/'/'@').
func EscapeName(name []byte) string {
	out := make([]byte, 0, len(name))
	for _, b := range name {
		switch {
		case b == '+':
			out = append(out, '+', '+')
		case b == '/':
			out = append(out, '+', 's')
		case b == '@':
			out = append(out, '+', '@')
		case b < 0x80:
			out = append(out, b)
		default:
			out = append(out, []byte(fmt.Sprintf("@%d@", b))...)
		}
	}
	return string(out)
}
