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

// Package abi defines the small, closed-set Linux ABI types threaded
// through IPC requests and responses: open/access flags, file modes,
// ioctl/fcntl commands, stat structures and the sysinfo/uts payloads.
package abi

import "github.com/sisungo/mactux-server/internal/device"

// OpenFlags mirrors Linux's open(2) flag bits that this server cares
// about.
type OpenFlags uint32

const (
	ORdOnly   OpenFlags = 0x0000
	OWrOnly   OpenFlags = 0x0001
	ORdWr     OpenFlags = 0x0002
	OCreat    OpenFlags = 0x0040
	OExcl     OpenFlags = 0x0080
	OTrunc    OpenFlags = 0x0200
	OAppend   OpenFlags = 0x0400
	ONonblock OpenFlags = 0x0800
	ODirectory OpenFlags = 0x10000
	OCloexec  OpenFlags = 0x80000
)

func (f OpenFlags) Has(bit OpenFlags) bool { return f&bit == bit }

// AccessFlags mirrors access(2)'s mode argument.
type AccessFlags uint32

const (
	FOk AccessFlags = 0
	XOk AccessFlags = 1
	WOk AccessFlags = 2
	ROk AccessFlags = 4
)

// FileMode mirrors st_mode's permission and type bits.
type FileMode uint32

// Whence mirrors lseek(2)'s whence argument.
type Whence uint32

const (
	SeekSet Whence = 0
	SeekCur Whence = 1
	SeekEnd Whence = 2
)

// IoctlCmd is an opaque ioctl request code.
type IoctlCmd uint32

// FcntlCmd mirrors fcntl(2) commands this server implements.
type FcntlCmd uint32

const (
	FGetFd  FcntlCmd = 1
	FSetFd  FcntlCmd = 2
	FGetFl  FcntlCmd = 3
	FSetFl  FcntlCmd = 4
	FGetLk  FcntlCmd = 5
	FSetLk  FcntlCmd = 6
	FSetLkw FcntlCmd = 7
)

// UmountFlags mirrors umount2(2) flags.
type UmountFlags uint32

// OpenHow mirrors openat2(2)'s "how" argument: the flags plus the mode
// bits used when O_CREAT is set.
type OpenHow struct {
	Flags OpenFlags
	Mode  FileMode
}

// EventFdFlags mirrors eventfd2(2) flags.
type EventFdFlags uint32

const (
	EfdSemaphore EventFdFlags = 0x1
	EfdCloexec   EventFdFlags = 0x80000
	EfdNonblock  EventFdFlags = 0x800
)

// LogLevel mirrors the kernel log-level prefix used by syslog(2)'s write
// action.
type LogLevel uint32

const (
	KernEmerg LogLevel = iota
	KernAlert
	KernCrit
	KernErr
	KernWarning
	KernNotice
	KernInfo
	KernDebug
)

// Statx is the subset of struct statx this server populates.
type Statx struct {
	Mask    uint32
	Mode    uint16
	Nlink   uint32
	UID     uint32
	GID     uint32
	Ino     uint64
	Size    uint64
	Blocks  uint64
	Blksize uint32
	RdevMajor uint32
	RdevMinor uint32
	DevMajor  uint32
	DevMinor  uint32
	Atime   int64
	Mtime   int64
	Ctime   int64
}

// Dirent64 is one entry produced by VfdGetdent.
type Dirent64 struct {
	Ino    uint64
	Off    int64
	Type   uint8
	Name   string
}

// SysInfo is the payload of the sysinfo(2) syscall.
type SysInfo struct {
	Uptime    int64
	Loads     [3]uint64
	TotalRAM  uint64
	FreeRAM   uint64
	SharedRAM uint64
	BufferRAM uint64
	TotalSwap uint64
	FreeSwap  uint64
	Procs     uint16
	TotalHigh uint64
	FreeHigh  uint64
	MemUnit   uint32
}

// NetworkNames is the (nodename, domainname) pair exchanged for
// get/set-hostname IPC requests.
type NetworkNames struct {
	NodeName   []byte
	DomainName []byte
}

// MakeDevFileMode composes a character-device mode bit with the given
// permission bits, matching Linux's S_IFCHR.
func MakeDevFileMode(perm FileMode) FileMode {
	const sIfChr = 0o020000
	return FileMode(sIfChr) | perm
}

// DeviceNumber is a convenience re-export so callers that already import abi
// don't need a second import solely for device numbers in Statx-adjacent
// code.
type DeviceNumber = device.Number
