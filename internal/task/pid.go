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

	"github.com/sisungo/mactux-server/internal/lxerror"
)

// Thread/PID numbering bounds: PIDs at or above TidMin denote a thread
// rather than a process (or the thread that is a process's main thread).
const (
	TidMin int32 = 0x40000000
	TidMax int32 = 0x7fffffff
)

// PidNamespace maps internal (host-assigned) PIDs onto the PIDs a guest
// sees, and back.
type PidNamespace interface {
	HostToGuest(host int32) (int32, error)
	GuestToHost(guest int32) (int32, error)
}

// IdentityPidNamespace is the root namespace: guest PIDs equal host PIDs.
type IdentityPidNamespace struct{}

func (IdentityPidNamespace) HostToGuest(host int32) (int32, error) { return host, nil }
func (IdentityPidNamespace) GuestToHost(guest int32) (int32, error) { return guest, nil }

// RenumberingPidNamespace is created by unshare(2) with CLONE_NEWPID: it
// assigns guest-visible PIDs sequentially as host PIDs are first seen,
// the way a nested PID namespace's init process only ever sees its own
// numbering.
type RenumberingPidNamespace struct {
	mu        sync.Mutex
	hostToG   map[int32]int32
	guestToH  map[int32]int32
	nextGuest int32
}

// NewRenumberingPidNamespace returns a namespace whose first observed
// process is guest PID 1.
func NewRenumberingPidNamespace() *RenumberingPidNamespace {
	return &RenumberingPidNamespace{
		hostToG:   make(map[int32]int32),
		guestToH:  make(map[int32]int32),
		nextGuest: 1,
	}
}

func (n *RenumberingPidNamespace) HostToGuest(host int32) (int32, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if g, ok := n.hostToG[host]; ok {
		return g, nil
	}
	g := n.nextGuest
	n.nextGuest++
	n.hostToG[host] = g
	n.guestToH[g] = host
	return g, nil
}

func (n *RenumberingPidNamespace) GuestToHost(guest int32) (int32, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	h, ok := n.guestToH[guest]
	if !ok {
		return 0, lxerror.ESRCH
	}
	return h, nil
}
