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

// Package lxerror defines the Linux errno-compatible error code carried
// across the mactux wire protocol.
package lxerror

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// LxError is a 32-bit code matching Linux errno values. Negated, it is the
// wire-level failure status of a Response.
type LxError uint32

// Well-known codes. Values match Linux's asm-generic/errno-base.h and
// errno.h; only the subset this server ever returns is declared.
const (
	EPERM       LxError = 1
	ENOENT      LxError = 2
	ESRCH       LxError = 3
	EINTR       LxError = 4
	EIO         LxError = 5
	ENXIO       LxError = 6
	E2BIG       LxError = 7
	EBADF       LxError = 9
	EAGAIN      LxError = 11
	ENOMEM      LxError = 12
	EACCES      LxError = 13
	EFAULT      LxError = 14
	EBUSY       LxError = 16
	EEXIST      LxError = 17
	EXDEV       LxError = 18
	ENODEV      LxError = 19
	ENOTDIR     LxError = 20
	EISDIR      LxError = 21
	EINVAL      LxError = 22
	ENFILE      LxError = 23
	EMFILE      LxError = 24
	ENOTTY      LxError = 25
	EFBIG       LxError = 27
	ENOSPC      LxError = 28
	ESPIPE      LxError = 29
	EROFS       LxError = 30
	EMLINK      LxError = 31
	EPIPE       LxError = 32
	ENAMETOOLONG LxError = 36
	ENOSYS      LxError = 38
	ENOTEMPTY   LxError = 39
	ELOOP       LxError = 40
	ENOTSOCK    LxError = 88
	EOPNOTSUPP  LxError = 95
	EADDRINUSE  LxError = 98
	ECONNREFUSED LxError = 111
)

func (e LxError) Error() string {
	if s, ok := names[e]; ok {
		return s
	}
	return fmt.Sprintf("errno %d", uint32(e))
}

// Negated returns the wire-level failure status: -errno as an int32.
func (e LxError) Negated() int32 {
	return -int32(e)
}

var names = map[LxError]string{
	EPERM:        "operation not permitted",
	ENOENT:       "no such file or directory",
	ESRCH:        "no such process",
	EINTR:        "interrupted system call",
	EIO:          "input/output error",
	ENXIO:        "no such device or address",
	E2BIG:        "argument list too long",
	EBADF:        "bad file descriptor",
	EAGAIN:       "resource temporarily unavailable",
	ENOMEM:       "cannot allocate memory",
	EACCES:       "permission denied",
	EFAULT:       "bad address",
	EBUSY:        "device or resource busy",
	EEXIST:       "file exists",
	EXDEV:        "invalid cross-device link",
	ENODEV:       "no such device",
	ENOTDIR:      "not a directory",
	EISDIR:       "is a directory",
	EINVAL:       "invalid argument",
	ENFILE:       "too many open files in system",
	EMFILE:       "too many open files",
	ENOTTY:       "inappropriate ioctl for device",
	EFBIG:        "file too large",
	ENOSPC:       "no space left on device",
	ESPIPE:       "illegal seek",
	EROFS:        "read-only file system",
	EMLINK:       "too many links",
	EPIPE:        "broken pipe",
	ENAMETOOLONG: "file name too long",
	ENOSYS:       "function not implemented",
	ENOTEMPTY:    "directory not empty",
	ELOOP:        "too many levels of symbolic links",
	ENOTSOCK:     "socket operation on non-socket",
	EOPNOTSUPP:   "operation not supported",
	EADDRINUSE:   "address already in use",
	ECONNREFUSED: "connection refused",
}

// FromHostError translates a host syscall error (reported via the unix
// package, possibly wrapped in an *os.PathError/*os.SyscallError by the
// os package) into an LxError. Errors with no Linux equivalent map to
// EIO.
func FromHostError(err error) LxError {
	if err == nil {
		return 0
	}
	var errno unix.Errno
	if !errors.As(err, &errno) {
		return EIO
	}
	if le, ok := hostToLinux[errno]; ok {
		return le
	}
	return EIO
}

// hostToLinux maps the host's unix.Errno values onto LxError. On Linux
// hosts these match 1:1; on a divergent host kernel (e.g. XNU) most of the
// low-numbered codes still agree, which is why this table is an identity
// map augmented with any ABI quirks the host exposes.
var hostToLinux = map[unix.Errno]LxError{
	unix.EPERM:        EPERM,
	unix.ENOENT:       ENOENT,
	unix.ESRCH:        ESRCH,
	unix.EINTR:        EINTR,
	unix.EIO:          EIO,
	unix.ENXIO:        ENXIO,
	unix.E2BIG:        E2BIG,
	unix.EBADF:        EBADF,
	unix.EAGAIN:       EAGAIN,
	unix.ENOMEM:       ENOMEM,
	unix.EACCES:       EACCES,
	unix.EFAULT:       EFAULT,
	unix.EBUSY:        EBUSY,
	unix.EEXIST:       EEXIST,
	unix.EXDEV:        EXDEV,
	unix.ENODEV:       ENODEV,
	unix.ENOTDIR:      ENOTDIR,
	unix.EISDIR:       EISDIR,
	unix.EINVAL:       EINVAL,
	unix.ENFILE:       ENFILE,
	unix.EMFILE:       EMFILE,
	unix.ENOTTY:       ENOTTY,
	unix.EFBIG:        EFBIG,
	unix.ENOSPC:       ENOSPC,
	unix.ESPIPE:       ESPIPE,
	unix.EROFS:        EROFS,
	unix.EMLINK:       EMLINK,
	unix.EPIPE:        EPIPE,
	unix.ENAMETOOLONG: ENAMETOOLONG,
	unix.ENOSYS:       ENOSYS,
	unix.ENOTEMPTY:    ENOTEMPTY,
	unix.ELOOP:        ELOOP,
	unix.ENOTSOCK:     ENOTSOCK,
	unix.EOPNOTSUPP:   EOPNOTSUPP,
	unix.EADDRINUSE:   EADDRINUSE,
	unix.ECONNREFUSED: ECONNREFUSED,
}
