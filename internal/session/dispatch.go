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

package session

import (
	"github.com/sisungo/mactux-server/internal/abi"
	"github.com/sisungo/mactux-server/internal/hostinfo"
	"github.com/sisungo/mactux-server/internal/kernfs"
	"github.com/sisungo/mactux-server/internal/lxerror"
	"github.com/sisungo/mactux-server/internal/vfd"
	"github.com/sisungo/mactux-server/internal/wire"
)

// dispatch translates one uninterruptible wire.Request into a
// wire.Response, against the session's owning Process.
func (s *Session) dispatch(req wire.Request) wire.Response {
	proc := s.proc
	switch r := req.(type) {
	case wire.ReqSetMountNamespace, wire.ReqSetPidNamespace, wire.ReqSetUtsNamespace:
		// No request variant ever allocates the NsID these name; no
		// unshare(2)-class request exists in the protocol for a guest
		// to create one of these namespaces in the first place. Until
		// one is added, these stay unreachable in practice and report
		// "not supported" rather than silently doing nothing.
		return wire.FromError(lxerror.EOPNOTSUPP)

	case wire.ReqUmount:
		if !proc.MountNamespace().Unmount(string(r.Path)) {
			return wire.FromError(lxerror.EINVAL)
		}
		return wire.RespNothing{}

	case wire.ReqOpen:
		return s.dispatchOpen(r)

	case wire.ReqAccess:
		_, err := proc.MountNamespace().ResolveStat(string(r.Path))
		return wire.FromError(err)

	case wire.ReqUnlink:
		return wire.FromError(proc.MountNamespace().ResolveUnlink(string(r.Path)))

	case wire.ReqRmdir:
		return wire.FromError(proc.MountNamespace().ResolveRmdir(string(r.Path)))

	case wire.ReqSymlink:
		return wire.FromError(proc.MountNamespace().ResolveSymlink(string(r.Target), string(r.LinkPath)))

	case wire.ReqRename:
		return wire.FromError(proc.MountNamespace().ResolveRename(string(r.From), string(r.To)))

	case wire.ReqLink:
		return wire.FromError(proc.MountNamespace().ResolveLink(string(r.From), string(r.To)))

	case wire.ReqMkdir:
		return wire.FromError(proc.MountNamespace().ResolveMkdir(string(r.Path), r.Mode))

	case wire.ReqMknod:
		return wire.FromError(proc.MountNamespace().ResolveMknod(string(r.Path), r.Mode, r.Device))

	case wire.ReqGetSockPath:
		return s.dispatchGetSockPath(r)

	case wire.ReqVfdRead:
		return s.dispatchVfdRead(r)
	case wire.ReqVfdPread:
		return s.dispatchVfdPread(r)
	case wire.ReqVfdWrite:
		return s.dispatchVfdWrite(r)
	case wire.ReqVfdPwrite:
		return s.dispatchVfdPwrite(r)
	case wire.ReqVfdSeek:
		return s.dispatchVfdSeek(r)
	case wire.ReqVfdIoctlQuery:
		return s.dispatchVfdIoctlQuery(r)
	case wire.ReqVfdIoctl:
		return s.dispatchVfdIoctl(r)
	case wire.ReqVfdFcntl:
		return s.dispatchVfdFcntl(r)
	case wire.ReqVfdGetdent:
		return s.dispatchVfdGetdent(r)
	case wire.ReqVfdStat:
		return s.dispatchVfdStat(r)
	case wire.ReqVfdTruncate:
		return s.dispatchVfdTruncate(r)
	case wire.ReqVfdChown:
		return s.dispatchVfdChown(r)
	case wire.ReqVfdDup:
		return s.dispatchVfdDup(r)
	case wire.ReqVfdClose:
		return s.dispatchVfdClose(r)
	case wire.ReqVfdOrigPath:
		return s.dispatchVfdOrigPath(r)
	case wire.ReqVfdSync:
		return s.dispatchVfdSync(r)
	case wire.ReqVfdReadlink:
		return s.dispatchVfdReadlink(r)

	case wire.ReqEventFd:
		handle := proc.Vfd.Insert(vfd.NewEventFd(r.InitVal, abi.EventFdFlags(r.Flags)), 0)
		return wire.RespVfd{Vfd: handle}

	case wire.ReqGetNetworkNames:
		uts := proc.UtsNamespaceOf()
		return wire.RespNetworkNames{Names: abi.NetworkNames{NodeName: uts.Nodename(), DomainName: uts.Domainname()}}

	case wire.ReqSetNetworkNames:
		uts := proc.UtsNamespaceOf()
		if err := uts.SetNodename(r.Names.NodeName); err != nil {
			return wire.FromError(err)
		}
		return wire.FromError(uts.SetDomainname(r.Names.DomainName))

	case wire.ReqSysInfo:
		return s.dispatchSysInfo()

	case wire.ReqWriteSyslog:
		logSyslog(r.Level, r.Message)
		return wire.RespNothing{}

	case wire.ReqAfterFork:
		return wire.FromError(s.registry.AfterFork(s.peerPID, r.ApplePID))

	case wire.ReqAfterExec:
		return wire.FromError(s.registry.AfterExec(s.peerPID))

	case wire.ReqGetThreadName:
		return wire.RespBytes{Data: proc.ThreadName(s.peerPID)}

	case wire.ReqSetThreadName:
		proc.SetThreadName(s.peerPID, r.Name)
		return wire.RespNothing{}

	default:
		return wire.FromError(lxerror.ENOSYS)
	}
}

func (s *Session) dispatchOpen(r wire.ReqOpen) wire.Response {
	path := string(r.Path)
	if r.How.Flags.Has(abi.ODirectory) {
		names, err := s.proc.MountNamespace().ResolveReadDir(path)
		if err != nil {
			return wire.FromError(err)
		}
		handle := s.proc.Vfd.Insert(vfd.NewDirStream(names), r.How.Flags)
		return wire.RespVfd{Vfd: handle}
	}

	opened, err := s.proc.MountNamespace().ResolveOpen(path, r.How.Flags)
	if err != nil {
		return wire.FromError(err)
	}
	switch opened.Kind {
	case kernfs.AtNative:
		return wire.RespNativePath{Path: []byte(opened.Path)}
	case kernfs.AtServer:
		opened.Entry.OrigPath = path
		handle := s.proc.Vfd.InsertEntry(opened.Entry)
		return wire.RespVfd{Vfd: handle}
	default:
		return wire.FromError(lxerror.EIO)
	}
}

func (s *Session) dispatchGetSockPath(r wire.ReqGetSockPath) wire.Response {
	ns := s.proc.Net.Abs
	if r.Listen {
		id, err := ns.CreateNamed(r.Name)
		if err != nil {
			return wire.FromError(err)
		}
		return wire.RespNativePath{Path: []byte(ns.SockByID(id))}
	}
	p, err := ns.SockByName(r.Name)
	if err != nil {
		return wire.FromError(err)
	}
	return wire.RespNativePath{Path: []byte(p)}
}

func (s *Session) dispatchVfdRead(r wire.ReqVfdRead) wire.Response {
	entry, err := s.proc.Vfd.MustGet(r.Vfd)
	if err != nil {
		return wire.FromError(err)
	}
	buf := make([]byte, r.Count)
	n, err := entry.Read(buf)
	if err != nil {
		return wire.FromError(err)
	}
	return wire.RespBytes{Data: buf[:n]}
}

func (s *Session) dispatchVfdPread(r wire.ReqVfdPread) wire.Response {
	entry, err := s.proc.Vfd.MustGet(r.Vfd)
	if err != nil {
		return wire.FromError(err)
	}
	buf := make([]byte, r.Count)
	n, err := entry.Pread(buf, r.Off)
	if err != nil {
		return wire.FromError(err)
	}
	return wire.RespBytes{Data: buf[:n]}
}

func (s *Session) dispatchVfdWrite(r wire.ReqVfdWrite) wire.Response {
	entry, err := s.proc.Vfd.MustGet(r.Vfd)
	if err != nil {
		return wire.FromError(err)
	}
	n, err := entry.Write(r.Data)
	if err != nil {
		return wire.FromError(err)
	}
	return wire.RespLength{Length: uint64(n)}
}

func (s *Session) dispatchVfdPwrite(r wire.ReqVfdPwrite) wire.Response {
	entry, err := s.proc.Vfd.MustGet(r.Vfd)
	if err != nil {
		return wire.FromError(err)
	}
	n, err := entry.Pwrite(r.Data, r.Off)
	if err != nil {
		return wire.FromError(err)
	}
	return wire.RespLength{Length: uint64(n)}
}

func (s *Session) dispatchVfdSeek(r wire.ReqVfdSeek) wire.Response {
	entry, err := s.proc.Vfd.MustGet(r.Vfd)
	if err != nil {
		return wire.FromError(err)
	}
	pos, err := entry.SeekTo(r.Whence, r.Off)
	if err != nil {
		return wire.FromError(err)
	}
	return wire.RespOffset{Offset: pos}
}

func (s *Session) dispatchVfdIoctlQuery(r wire.ReqVfdIoctlQuery) wire.Response {
	entry, err := s.proc.Vfd.MustGet(r.Vfd)
	if err != nil {
		return wire.FromError(err)
	}
	ctrl, ok := entry.AsIoctl()
	if !ok {
		return wire.RespVfdAvailCtrl{Avail: vfd.AvailCtrl{Supported: false}}
	}
	return wire.RespVfdAvailCtrl{Avail: ctrl.IoctlQuery(r.Cmd)}
}

func (s *Session) dispatchVfdIoctl(r wire.ReqVfdIoctl) wire.Response {
	entry, err := s.proc.Vfd.MustGet(r.Vfd)
	if err != nil {
		return wire.FromError(err)
	}
	ctrl, ok := entry.AsIoctl()
	if !ok {
		return wire.FromError(lxerror.ENOTTY)
	}
	out, err := ctrl.DoIoctl(r.Cmd, r.Data)
	if err != nil {
		return wire.FromError(err)
	}
	return wire.RespCtrlOutput{Output: out}
}

// flUnlck is Linux's F_UNLCK. F_GETLK's reply blob carries struct
// flock's wire-relevant fields: type, whence, start, len, pid. Advisory locking itself isn't modeled (no
// byte-range lock table exists anywhere in this server), so F_GETLK
// always reports the range as unlocked and F_SETLK/F_SETLKW always
// succeed; a real lock table is future work, not a silent correctness
// bug, since nothing in this codebase ever contends on one today.
const flUnlck = 2

func (s *Session) dispatchVfdFcntl(r wire.ReqVfdFcntl) wire.Response {
	entry, err := s.proc.Vfd.MustGet(r.Vfd)
	if err != nil {
		return wire.FromError(err)
	}
	switch r.Cmd {
	case abi.FGetFd:
		var v uint32
		if entry.Flags.Has(abi.OCloexec) {
			v = 1
		}
		return wire.RespLength{Length: uint64(v)}
	case abi.FSetFd:
		cloexec := len(r.Data) > 0 && r.Data[0] != 0
		if err := s.proc.Vfd.SetCloexec(r.Vfd, cloexec); err != nil {
			return wire.FromError(err)
		}
		return wire.RespNothing{}
	case abi.FGetFl:
		return wire.RespLength{Length: uint64(entry.Flags)}
	case abi.FSetFl:
		d := wire.NewDecoder(r.Data)
		flags, err := d.Uint32()
		if err != nil {
			return wire.FromError(lxerror.EINVAL)
		}
		if err := s.proc.Vfd.SetFlags(r.Vfd, abi.OpenFlags(flags)); err != nil {
			return wire.FromError(err)
		}
		return wire.RespNothing{}
	case abi.FGetLk:
		e := wire.NewEncoder()
		e.Uint16(flUnlck)
		e.Uint16(0)
		e.Int64(0)
		e.Int64(0)
		e.Int32(0)
		return wire.RespCtrlOutput{Output: vfd.CtrlOutput{Status: 0, Blob: e.Bytes()}}
	case abi.FSetLk, abi.FSetLkw:
		return wire.RespNothing{}
	default:
		return wire.FromError(lxerror.EINVAL)
	}
}

func (s *Session) dispatchVfdGetdent(r wire.ReqVfdGetdent) wire.Response {
	entry, err := s.proc.Vfd.MustGet(r.Vfd)
	if err != nil {
		return wire.FromError(err)
	}
	stream, ok := entry.Object.(*vfd.DirStream)
	if !ok {
		return wire.FromError(lxerror.ENOTDIR)
	}
	dirent, ok := stream.Next()
	if !ok {
		return wire.RespDirent64{Dirent: abi.Dirent64{}}
	}
	return wire.RespDirent64{Dirent: dirent}
}

func (s *Session) dispatchVfdStat(r wire.ReqVfdStat) wire.Response {
	entry, err := s.proc.Vfd.MustGet(r.Vfd)
	if err != nil {
		return wire.FromError(err)
	}
	st, err := entry.Stat()
	if err != nil {
		return wire.FromError(err)
	}
	return wire.RespStat{Stat: st}
}

func (s *Session) dispatchVfdTruncate(r wire.ReqVfdTruncate) wire.Response {
	entry, err := s.proc.Vfd.MustGet(r.Vfd)
	if err != nil {
		return wire.FromError(err)
	}
	return wire.FromError(entry.Truncate(r.Size))
}

func (s *Session) dispatchVfdChown(r wire.ReqVfdChown) wire.Response {
	entry, err := s.proc.Vfd.MustGet(r.Vfd)
	if err != nil {
		return wire.FromError(err)
	}
	return wire.FromError(entry.Chown(r.UID, r.GID))
}

func (s *Session) dispatchVfdDup(r wire.ReqVfdDup) wire.Response {
	handle, err := s.proc.Vfd.Dup(r.Vfd)
	if err != nil {
		return wire.FromError(err)
	}
	return wire.RespVfd{Vfd: handle}
}

func (s *Session) dispatchVfdClose(r wire.ReqVfdClose) wire.Response {
	return wire.FromError(s.proc.Vfd.Close(r.Vfd))
}

func (s *Session) dispatchVfdOrigPath(r wire.ReqVfdOrigPath) wire.Response {
	entry, err := s.proc.Vfd.MustGet(r.Vfd)
	if err != nil {
		return wire.FromError(err)
	}
	if entry.OrigPath == "" {
		return wire.FromError(lxerror.ENOENT)
	}
	return wire.RespLxPath{Path: []byte(entry.OrigPath)}
}

func (s *Session) dispatchVfdReadlink(r wire.ReqVfdReadlink) wire.Response {
	entry, err := s.proc.Vfd.MustGet(r.Vfd)
	if err != nil {
		return wire.FromError(err)
	}
	if entry.OrigPath == "" {
		return wire.FromError(lxerror.ENOENT)
	}
	target, err := s.proc.MountNamespace().ResolveReadlink(entry.OrigPath)
	if err != nil {
		return wire.FromError(err)
	}
	return wire.RespLxPath{Path: []byte(target)}
}

func (s *Session) dispatchVfdSync(r wire.ReqVfdSync) wire.Response {
	if _, err := s.proc.Vfd.MustGet(r.Vfd); err != nil {
		return wire.FromError(err)
	}
	// Every currently server-mediated object (eventfds, directory
	// streams, device streams) is either unbuffered or has no durable
	// backing to flush; fsync on one of these is a correct no-op.
	return wire.RespNothing{}
}

func (s *Session) dispatchSysInfo() wire.Response {
	mem, err := hostinfo.AcquireMemInfo()
	if err != nil {
		return wire.FromError(lxerror.FromHostError(err))
	}
	uptime, err := hostinfo.Uptime()
	if err != nil {
		return wire.FromError(lxerror.FromHostError(err))
	}
	return wire.RespSysInfo{Info: abi.SysInfo{
		Uptime:   int64(uptime),
		TotalRAM: mem.TotalRAM,
		FreeRAM:  mem.FreeRAM,
		MemUnit:  1,
	}}
}

func logSyslog(level abi.LogLevel, msg []byte) {
	entry := log.WithField("guest_level", level)
	switch {
	case level <= abi.KernErr:
		entry.Error(string(msg))
	case level <= abi.KernWarning:
		entry.Warn(string(msg))
	default:
		entry.Info(string(msg))
	}
}
