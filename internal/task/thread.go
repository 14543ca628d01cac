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

// Thread is one guest thread's identity: the host TID it was created
// against and the Process whose namespaces/VFD table it shares.
//
// The Rust source reaches the calling thread's identity through
// thread-local storage (Thread::current()); Go has no equivalent without
// resorting to goroutine-id scraping, which this codebase deliberately
// avoids. Request handlers in internal/session receive no *Thread: a
// channel belongs to one guest process, so the session works from that
// Process and the channel's peer PID. Server() below returns the
// server's own thread once InitServerThread has installed it.
type Thread struct {
	Tid     int32
	process *Process
}

// Process returns the Process this thread belongs to.
func (t *Thread) Process() *Process { return t.process }

var (
	serverOnce   sync.Once
	serverThread *Thread
)

// InitServerThread installs the server's own pseudo-thread-1 that
// Server returns. Safe to call only once; later calls are no-ops.
func InitServerThread(p *Process) {
	serverOnce.Do(func() {
		serverThread = &Thread{Tid: 1, process: p}
	})
}

// Server returns the server's own pseudo-thread-1, or nil if
// InitServerThread has not been called.
func Server() *Thread { return serverThread }

// Registry tracks live Processes keyed by host PID, supporting the
// AfterFork/AfterExec notification handlers. Grounded on process.rs's
// after_fork plus spec.md §4.7's "look up the parent by the calling
// channel's peer PID" rule.
type Registry struct {
	mu    sync.RWMutex
	byPID map[int32]*Process
}

// NewRegistry returns an empty process registry.
func NewRegistry() *Registry {
	return &Registry{byPID: make(map[int32]*Process)}
}

// Register associates hostPID with p, e.g. for the server's own root
// process or a freshly-accepted first connection.
func (r *Registry) Register(hostPID int32, p *Process) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byPID[hostPID] = p
}

// Lookup returns the Process registered for hostPID.
func (r *Registry) Lookup(hostPID int32) (*Process, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byPID[hostPID]
	return p, ok
}

// Unregister drops hostPID's entry. The session does not call it when a
// channel closes, so entries stay registered for the server's lifetime.
func (r *Registry) Unregister(hostPID int32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byPID, hostPID)
}

// AfterFork looks up the process owning parentHostPID, clones it per
// Process.Child, and registers the clone against childHostPID.
func (r *Registry) AfterFork(parentHostPID, childHostPID int32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	parent, ok := r.byPID[parentHostPID]
	if !ok {
		return lxerror.ESRCH
	}
	r.byPID[childHostPID] = parent.Child()
	return nil
}

// AfterExec drops hostPID's close-on-exec VFD table entries in place.
func (r *Registry) AfterExec(hostPID int32) error {
	r.mu.RLock()
	p, ok := r.byPID[hostPID]
	r.mu.RUnlock()
	if !ok {
		return lxerror.ESRCH
	}
	p.OnExec()
	return nil
}
