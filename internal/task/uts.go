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

package task

import (
	"sync"

	"golang.org/x/sys/unix"

	"github.com/sisungo/mactux-server/internal/lxerror"
)

// UtsNamespace answers uname(2)'s nodename/domainname pair and, for a
// namespace that allows it, lets sethostname(2)/setdomainname(2) rebind
// them.
type UtsNamespace interface {
	Nodename() []byte
	Domainname() []byte
	SetNodename(new []byte) error
	SetDomainname(new []byte) error
}

// InitUts is the root UTS namespace: read-only, sourced from the host's
// own uname(2). Grounded on mactux_server/src/uts.rs's InitUts.
type InitUts struct{}

func (InitUts) Nodename() []byte {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return nil
	}
	return cstr(uts.Nodename[:])
}

func (i InitUts) Domainname() []byte { return i.Nodename() }

func (InitUts) SetNodename([]byte) error   { return lxerror.EPERM }
func (InitUts) SetDomainname([]byte) error { return lxerror.EPERM }

// cstr truncates a fixed-size NUL-terminated char array (int8 on some
// platforms, byte on others) at its first zero byte.
func cstr[T byte | int8](b []T) []byte {
	out := make([]byte, 0, len(b))
	for _, c := range b {
		if c == 0 {
			break
		}
		out = append(out, byte(c))
	}
	return out
}

// CustomUts is a mutable UTS namespace created by unshare(2) with
// CLONE_NEWUTS, seeded from a parent namespace's current values.
// Grounded on uts.rs's CustomUts.
type CustomUts struct {
	mu         sync.RWMutex
	nodename   []byte
	domainname []byte
}

// NewCustomUts seeds a CustomUts from seed's current values.
func NewCustomUts(seed UtsNamespace) *CustomUts {
	return &CustomUts{nodename: append([]byte(nil), seed.Nodename()...), domainname: append([]byte(nil), seed.Domainname()...)}
}

func (u *CustomUts) Nodename() []byte {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return append([]byte(nil), u.nodename...)
}

func (u *CustomUts) Domainname() []byte {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return append([]byte(nil), u.domainname...)
}

func (u *CustomUts) SetNodename(new []byte) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.nodename = append([]byte(nil), new...)
	return nil
}

func (u *CustomUts) SetDomainname(new []byte) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.domainname = append([]byte(nil), new...)
	return nil
}
