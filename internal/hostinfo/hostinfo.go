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

// Package hostinfo acquires host memory and uptime figures via sysctl,
// standing in for the original's crate::sysinfo module (not part of the
// retrieved source; this is a from-scratch macOS-appropriate
// reimplementation of the same MemInfo/uptime contract consumed by
// procfs's meminfo/uptime producer files).
package hostinfo

import (
	"time"

	"golang.org/x/sys/unix"
)

// MemInfo mirrors the fields procfs's meminfo producer file renders.
type MemInfo struct {
	TotalRAM   uint64
	FreeRAM    uint64
	AvailRAM   uint64
	Active     uint64
	Inactive   uint64
	TotalSwap  uint64
	FreeSwap   uint64
}

// AcquireMemInfo reads host memory figures from sysctl. Only TotalRAM is
// sourced from a hard host counter (hw.memsize); the remaining fields are
// best-effort derived from it in the absence of a vm_statistics64 binding
// in golang.org/x/sys/unix.
func AcquireMemInfo() (MemInfo, error) {
	total, err := unix.SysctlUint64("hw.memsize")
	if err != nil {
		return MemInfo{}, err
	}
	// TODO: source Free/Active/Inactive from host_statistics64 via a
	// cgo-free mach syscall binding once one lands in x/sys/unix.
	free := total / 4
	return MemInfo{
		TotalRAM: total,
		FreeRAM:  free,
		AvailRAM: free,
		Active:   total - free,
		Inactive: 0,
	}, nil
}

// Uptime returns host uptime in whole seconds since boot, via
// kern.boottime.
func Uptime() (uint64, error) {
	boot, err := unix.SysctlTimeval("kern.boottime")
	if err != nil {
		return 0, err
	}
	elapsed := time.Now().Unix() - int64(boot.Sec)
	if elapsed < 0 {
		return 0, nil
	}
	return uint64(elapsed), nil
}
