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

// Package task implements the process/thread model: namespaces shared
// across a process's threads, the per-process VFD table, and the
// fork/exec transition between them. Grounded on
// original_source/{mactux_server,servers/mactux_server}/src/task/process.rs.
package task

import (
	"sync"

	"github.com/sisungo/mactux-server/internal/vfd"
	"github.com/sisungo/mactux-server/internal/vfs"
)

// Process aggregates the namespaces and VFD table shared by every thread
// of a guest process.
type Process struct {
	mu  sync.RWMutex
	Mnt *vfs.MountNamespace
	Uts UtsNamespace
	Pid PidNamespace
	Net *NetNamespace
	Vfd *vfd.Table

	namesMu     sync.RWMutex
	threadNames map[int32][]byte
}

// NewRootProcess builds the server's own "process 1": the root mount
// namespace, InitUts, IdentityPidNamespace, and a fresh NetNamespace.
func NewRootProcess(mnt *vfs.MountNamespace, net *NetNamespace) *Process {
	return &Process{
		Mnt: mnt,
		Uts: InitUts{},
		Pid: IdentityPidNamespace{},
		Net: net,
		Vfd: vfd.NewTable(),
	}
}

// Child produces the Process state for a fork(2): shared namespace
// handles, a forked (copy-on-write at the handle level) VFD table.
// Grounded on process.rs's _child.
func (p *Process) Child() *Process {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return &Process{
		Mnt: p.Mnt,
		Uts: p.Uts,
		Pid: p.Pid,
		Net: p.Net,
		Vfd: p.Vfd.Fork(),
	}
}

// OnExec drops close-on-exec VFD table entries, matching process.rs's
// on_exec/exec.
func (p *Process) OnExec() {
	p.Vfd.OnExec()
}

// SetMnt replaces the process's mount namespace, e.g. after
// unshare(CLONE_NEWNS).
func (p *Process) SetMnt(mnt *vfs.MountNamespace) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Mnt = mnt
}

// SetUts replaces the process's UTS namespace, e.g. after
// unshare(CLONE_NEWUTS).
func (p *Process) SetUts(uts UtsNamespace) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Uts = uts
}

// ThreadName returns the name previously set for tid via SetThreadName,
// or nil if none was ever set. Grounded on spec's GetThreadName/
// SetThreadName request pair (prctl(PR_GET/SET_NAME) on the guest side);
// no per-thread name storage existed in the retrieved original_source,
// so this is a from-scratch supplement keyed on the calling channel's
// peer PID, which internal/session uses in place of a real per-thread
// identity since the wire protocol carries one channel per process, not
// per thread.
func (p *Process) ThreadName(tid int32) []byte {
	p.namesMu.RLock()
	defer p.namesMu.RUnlock()
	return p.threadNames[tid]
}

// SetThreadName records name against tid.
func (p *Process) SetThreadName(tid int32, name []byte) {
	p.namesMu.Lock()
	defer p.namesMu.Unlock()
	if p.threadNames == nil {
		p.threadNames = make(map[int32][]byte)
	}
	p.threadNames[tid] = append([]byte(nil), name...)
}

// MountNamespace returns the process's current mount namespace.
func (p *Process) MountNamespace() *vfs.MountNamespace {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.Mnt
}

// UtsNamespaceOf returns the process's current UTS namespace.
func (p *Process) UtsNamespaceOf() UtsNamespace {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.Uts
}
