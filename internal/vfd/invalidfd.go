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

// InvalidFd is the backing object for a guest fd that was allocated but
// never bound to anything real, e.g. the placeholder left behind by a
// failed open() so the fd slot stays occupied for cookie stability.
// Every operation fails with EOPNOTSUPP. Grounded on original_source's
// servers/mactux_server/src/filesystem/invalidfd.rs.
type InvalidFd struct {
	BaseStream
}

// NewInvalidFd wraps InvalidFd in a fresh Entry under the given flags,
// mirroring invalidfd.rs's open().
func NewInvalidFd(flags abi.OpenFlags) *Entry {
	return NewEntry(InvalidFd{}, flags)
}
