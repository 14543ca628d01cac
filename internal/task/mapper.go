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

// PidMapper translates between the host's (Apple) PID space and the
// Linux PID space exposed to the guest. It is a single global, guarded
// by a package-level RWMutex, matching structures::mapper's
// process-wide LazyLock<RwLock<Box<dyn PidMapper>>>.
type PidMapper interface {
	AppleToLinux(apple int32) (int32, error)
	LinuxToApple(linux int32) (int32, error)
}

// FailMapper rejects every translation with EOPNOTSUPP. It is the
// package default, matching mapper.rs's own FailMapper default — a
// server that never calls SetPidMapper has deliberately opted out of
// PID translation rather than silently falling back to identity.
type FailMapper struct{}

func (FailMapper) AppleToLinux(int32) (int32, error) { return 0, lxerror.EOPNOTSUPP }
func (FailMapper) LinuxToApple(int32) (int32, error) { return 0, lxerror.EOPNOTSUPP }

// IdentityMapper passes PIDs through unchanged; this is what a
// non-namespaced single-host server wires at startup.
type IdentityMapper struct{}

func (IdentityMapper) AppleToLinux(apple int32) (int32, error) { return apple, nil }
func (IdentityMapper) LinuxToApple(linux int32) (int32, error) { return linux, nil }

var (
	pidMapperMu sync.RWMutex
	pidMapper   PidMapper = FailMapper{}
)

// WithPidMapper runs fn against the current global PidMapper under a
// read lock.
func WithPidMapper[T any](fn func(PidMapper) T) T {
	pidMapperMu.RLock()
	defer pidMapperMu.RUnlock()
	return fn(pidMapper)
}

// SetPidMapper replaces the global PidMapper.
func SetPidMapper(m PidMapper) {
	pidMapperMu.Lock()
	defer pidMapperMu.Unlock()
	pidMapper = m
}
