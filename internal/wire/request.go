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

package wire

import (
	"time"

	"github.com/sisungo/mactux-server/internal/abi"
)

// Request is the closed set of uninterruptible request variants a
// session can dispatch, plus CallInterruptible. Grounded on
// crates/mactux_ipc/src/request.rs's Request/InterruptibleRequest enums.
type Request interface {
	requestTag() byte
}

const (
	tagSetMountNamespace byte = iota
	tagSetPidNamespace
	tagSetUtsNamespace
	tagUmount
	tagOpen
	tagAccess
	tagUnlink
	tagRmdir
	tagSymlink
	tagRename
	tagLink
	tagMkdir
	tagMknod
	tagGetSockPath
	tagVfdRead
	tagVfdPread
	tagVfdWrite
	tagVfdPwrite
	tagVfdSeek
	tagVfdIoctlQuery
	tagVfdIoctl
	tagVfdFcntl
	tagVfdGetdent
	tagVfdStat
	tagVfdTruncate
	tagVfdChown
	tagVfdDup
	tagVfdClose
	tagVfdOrigPath
	tagVfdSync
	tagVfdReadlink
	tagEventFd
	tagGetNetworkNames
	tagSetNetworkNames
	tagSysInfo
	tagWriteSyslog
	tagAfterFork
	tagAfterExec
	tagGetThreadName
	tagSetThreadName
	tagCallInterruptible
)

type (
	ReqSetMountNamespace struct{ NsID uint64 }
	ReqSetPidNamespace   struct{ NsID uint64 }
	ReqSetUtsNamespace   struct{ NsID uint64 }
	ReqUmount            struct {
		Path  []byte
		Flags abi.UmountFlags
	}
	ReqOpen struct {
		Path []byte
		How  abi.OpenHow
	}
	ReqAccess struct {
		Path []byte
		Mode abi.AccessFlags
	}
	ReqUnlink  struct{ Path []byte }
	ReqRmdir   struct{ Path []byte }
	ReqSymlink struct{ Target, LinkPath []byte }
	ReqRename  struct{ From, To []byte }
	ReqLink    struct{ From, To []byte }
	ReqMkdir   struct {
		Path []byte
		Mode abi.FileMode
	}
	ReqMknod struct {
		Path   []byte
		Mode   abi.FileMode
		Device abi.DeviceNumber
	}
	ReqGetSockPath struct {
		Name   []byte
		Listen bool
	}
	ReqVfdRead  struct{ Vfd uint64; Count uint64 }
	ReqVfdPread struct {
		Vfd   uint64
		Off   int64
		Count uint64
	}
	ReqVfdWrite  struct{ Vfd uint64; Data []byte }
	ReqVfdPwrite struct {
		Vfd  uint64
		Off  int64
		Data []byte
	}
	ReqVfdSeek struct {
		Vfd    uint64
		Whence abi.Whence
		Off    int64
	}
	ReqVfdIoctlQuery struct {
		Vfd uint64
		Cmd abi.IoctlCmd
	}
	ReqVfdIoctl struct {
		Vfd  uint64
		Cmd  abi.IoctlCmd
		Data []byte
	}
	ReqVfdFcntl struct {
		Vfd  uint64
		Cmd  abi.FcntlCmd
		Data []byte
	}
	ReqVfdGetdent   struct{ Vfd uint64 }
	ReqVfdStat      struct{ Vfd uint64 }
	ReqVfdTruncate  struct{ Vfd, Size uint64 }
	ReqVfdChown     struct {
		Vfd      uint64
		UID, GID uint32
	}
	ReqVfdDup       struct{ Vfd uint64 }
	ReqVfdClose     struct{ Vfd uint64 }
	ReqVfdOrigPath  struct{ Vfd uint64 }
	ReqVfdSync      struct{ Vfd uint64 }
	ReqVfdReadlink  struct{ Vfd uint64 }
	ReqEventFd      struct {
		InitVal uint64
		Flags   uint32
	}
	ReqGetNetworkNames struct{}
	ReqSetNetworkNames struct{ Names abi.NetworkNames }
	ReqSysInfo         struct{}
	ReqWriteSyslog     struct {
		Level   abi.LogLevel
		Message []byte
	}
	ReqAfterFork      struct{ ApplePID int32 }
	ReqAfterExec      struct{}
	ReqGetThreadName  struct{}
	ReqSetThreadName  struct{ Name []byte }
	ReqCallInterruptible struct{ Inner InterruptibleRequest }
)

func (ReqSetMountNamespace) requestTag() byte { return tagSetMountNamespace }
func (ReqSetPidNamespace) requestTag() byte   { return tagSetPidNamespace }
func (ReqSetUtsNamespace) requestTag() byte   { return tagSetUtsNamespace }
func (ReqUmount) requestTag() byte            { return tagUmount }
func (ReqOpen) requestTag() byte              { return tagOpen }
func (ReqAccess) requestTag() byte            { return tagAccess }
func (ReqUnlink) requestTag() byte            { return tagUnlink }
func (ReqRmdir) requestTag() byte             { return tagRmdir }
func (ReqSymlink) requestTag() byte           { return tagSymlink }
func (ReqRename) requestTag() byte            { return tagRename }
func (ReqLink) requestTag() byte              { return tagLink }
func (ReqMkdir) requestTag() byte             { return tagMkdir }
func (ReqMknod) requestTag() byte             { return tagMknod }
func (ReqGetSockPath) requestTag() byte       { return tagGetSockPath }
func (ReqVfdRead) requestTag() byte           { return tagVfdRead }
func (ReqVfdPread) requestTag() byte          { return tagVfdPread }
func (ReqVfdWrite) requestTag() byte          { return tagVfdWrite }
func (ReqVfdPwrite) requestTag() byte         { return tagVfdPwrite }
func (ReqVfdSeek) requestTag() byte           { return tagVfdSeek }
func (ReqVfdIoctlQuery) requestTag() byte     { return tagVfdIoctlQuery }
func (ReqVfdIoctl) requestTag() byte          { return tagVfdIoctl }
func (ReqVfdFcntl) requestTag() byte          { return tagVfdFcntl }
func (ReqVfdGetdent) requestTag() byte        { return tagVfdGetdent }
func (ReqVfdStat) requestTag() byte           { return tagVfdStat }
func (ReqVfdTruncate) requestTag() byte       { return tagVfdTruncate }
func (ReqVfdChown) requestTag() byte          { return tagVfdChown }
func (ReqVfdDup) requestTag() byte            { return tagVfdDup }
func (ReqVfdClose) requestTag() byte          { return tagVfdClose }
func (ReqVfdOrigPath) requestTag() byte       { return tagVfdOrigPath }
func (ReqVfdSync) requestTag() byte           { return tagVfdSync }
func (ReqVfdReadlink) requestTag() byte       { return tagVfdReadlink }
func (ReqEventFd) requestTag() byte           { return tagEventFd }
func (ReqGetNetworkNames) requestTag() byte   { return tagGetNetworkNames }
func (ReqSetNetworkNames) requestTag() byte   { return tagSetNetworkNames }
func (ReqSysInfo) requestTag() byte           { return tagSysInfo }
func (ReqWriteSyslog) requestTag() byte       { return tagWriteSyslog }
func (ReqAfterFork) requestTag() byte         { return tagAfterFork }
func (ReqAfterExec) requestTag() byte         { return tagAfterExec }
func (ReqGetThreadName) requestTag() byte     { return tagGetThreadName }
func (ReqSetThreadName) requestTag() byte     { return tagSetThreadName }
func (ReqCallInterruptible) requestTag() byte { return tagCallInterruptible }

// InterruptibleRequest is the closed set of requests dispatched through
// CallInterruptible's scoped two-worker section (§4.8).
type InterruptibleRequest interface {
	interruptibleTag() byte
}

const tagVirtualFdPoll byte = 0

// PollFd pairs a Vfd with the poll events the caller is interested in.
type PollFd struct {
	Vfd      uint64
	Interest uint16
}

// IReqVirtualFdPoll is the sole interruptible request variant: a
// multi-Vfd poll with an optional timeout.
type IReqVirtualFdPoll struct {
	Fds     []PollFd
	Timeout *time.Duration
}

func (IReqVirtualFdPoll) interruptibleTag() byte { return tagVirtualFdPoll }

// EncodeRequest serializes r as a tag byte followed by its fields.
func EncodeRequest(r Request) []byte {
	e := NewEncoder()
	e.Byte(r.requestTag())
	switch v := r.(type) {
	case ReqSetMountNamespace:
		e.Uint64(v.NsID)
	case ReqSetPidNamespace:
		e.Uint64(v.NsID)
	case ReqSetUtsNamespace:
		e.Uint64(v.NsID)
	case ReqUmount:
		e.Blob(v.Path)
		e.Uint32(uint32(v.Flags))
	case ReqOpen:
		e.Blob(v.Path)
		e.Uint32(uint32(v.How.Flags))
		e.Uint32(uint32(v.How.Mode))
	case ReqAccess:
		e.Blob(v.Path)
		e.Uint32(uint32(v.Mode))
	case ReqUnlink:
		e.Blob(v.Path)
	case ReqRmdir:
		e.Blob(v.Path)
	case ReqSymlink:
		e.Blob(v.Target)
		e.Blob(v.LinkPath)
	case ReqRename:
		e.Blob(v.From)
		e.Blob(v.To)
	case ReqLink:
		e.Blob(v.From)
		e.Blob(v.To)
	case ReqMkdir:
		e.Blob(v.Path)
		e.Uint32(uint32(v.Mode))
	case ReqMknod:
		e.Blob(v.Path)
		e.Uint32(uint32(v.Mode))
		e.Uint64(uint64(v.Device))
	case ReqGetSockPath:
		e.Blob(v.Name)
		e.Bool(v.Listen)
	case ReqVfdRead:
		e.Uint64(v.Vfd)
		e.Uint64(v.Count)
	case ReqVfdPread:
		e.Uint64(v.Vfd)
		e.Int64(v.Off)
		e.Uint64(v.Count)
	case ReqVfdWrite:
		e.Uint64(v.Vfd)
		e.Blob(v.Data)
	case ReqVfdPwrite:
		e.Uint64(v.Vfd)
		e.Int64(v.Off)
		e.Blob(v.Data)
	case ReqVfdSeek:
		e.Uint64(v.Vfd)
		e.Uint32(uint32(v.Whence))
		e.Int64(v.Off)
	case ReqVfdIoctlQuery:
		e.Uint64(v.Vfd)
		e.Uint32(uint32(v.Cmd))
	case ReqVfdIoctl:
		e.Uint64(v.Vfd)
		e.Uint32(uint32(v.Cmd))
		e.Blob(v.Data)
	case ReqVfdFcntl:
		e.Uint64(v.Vfd)
		e.Uint32(uint32(v.Cmd))
		e.Blob(v.Data)
	case ReqVfdGetdent:
		e.Uint64(v.Vfd)
	case ReqVfdStat:
		e.Uint64(v.Vfd)
	case ReqVfdTruncate:
		e.Uint64(v.Vfd)
		e.Uint64(v.Size)
	case ReqVfdChown:
		e.Uint64(v.Vfd)
		e.Uint32(v.UID)
		e.Uint32(v.GID)
	case ReqVfdDup:
		e.Uint64(v.Vfd)
	case ReqVfdClose:
		e.Uint64(v.Vfd)
	case ReqVfdOrigPath:
		e.Uint64(v.Vfd)
	case ReqVfdSync:
		e.Uint64(v.Vfd)
	case ReqVfdReadlink:
		e.Uint64(v.Vfd)
	case ReqEventFd:
		e.Uint64(v.InitVal)
		e.Uint32(v.Flags)
	case ReqGetNetworkNames:
	case ReqSetNetworkNames:
		e.Blob(v.Names.NodeName)
		e.Blob(v.Names.DomainName)
	case ReqSysInfo:
	case ReqWriteSyslog:
		e.Uint32(uint32(v.Level))
		e.Blob(v.Message)
	case ReqAfterFork:
		e.Int32(v.ApplePID)
	case ReqAfterExec:
	case ReqGetThreadName:
	case ReqSetThreadName:
		e.Blob(v.Name)
	case ReqCallInterruptible:
		encodeInterruptibleRequest(e, v.Inner)
	}
	return e.Bytes()
}

func encodeInterruptibleRequest(e *Encoder, r InterruptibleRequest) {
	e.Byte(r.interruptibleTag())
	switch v := r.(type) {
	case IReqVirtualFdPoll:
		e.Uint64(uint64(len(v.Fds)))
		for _, fd := range v.Fds {
			e.Uint64(fd.Vfd)
			e.Uint16(fd.Interest)
		}
		e.Duration(v.Timeout)
	}
}

func decodeInterruptibleRequest(d *Decoder) (InterruptibleRequest, error) {
	tag, err := d.Byte()
	if err != nil {
		return nil, err
	}
	switch tag {
	case tagVirtualFdPoll:
		n, err := d.Uint64()
		if err != nil {
			return nil, err
		}
		fds := make([]PollFd, 0, n)
		for i := uint64(0); i < n; i++ {
			vfd, err := d.Uint64()
			if err != nil {
				return nil, err
			}
			interest, err := d.Uint16()
			if err != nil {
				return nil, err
			}
			fds = append(fds, PollFd{Vfd: vfd, Interest: interest})
		}
		timeout, err := d.Duration()
		if err != nil {
			return nil, err
		}
		return IReqVirtualFdPoll{Fds: fds, Timeout: timeout}, nil
	default:
		return nil, ErrMalformed
	}
}

// DecodeRequest parses a tag byte followed by its fields out of data.
func DecodeRequest(data []byte) (Request, error) {
	d := NewDecoder(data)
	tag, err := d.Byte()
	if err != nil {
		return nil, err
	}
	switch tag {
	case tagSetMountNamespace:
		v, err := d.Uint64()
		return ReqSetMountNamespace{NsID: v}, err
	case tagSetPidNamespace:
		v, err := d.Uint64()
		return ReqSetPidNamespace{NsID: v}, err
	case tagSetUtsNamespace:
		v, err := d.Uint64()
		return ReqSetUtsNamespace{NsID: v}, err
	case tagUmount:
		path, err := d.Blob()
		if err != nil {
			return nil, err
		}
		flags, err := d.Uint32()
		return ReqUmount{Path: path, Flags: abi.UmountFlags(flags)}, err
	case tagOpen:
		path, err := d.Blob()
		if err != nil {
			return nil, err
		}
		flags, err := d.Uint32()
		if err != nil {
			return nil, err
		}
		mode, err := d.Uint32()
		return ReqOpen{Path: path, How: abi.OpenHow{Flags: abi.OpenFlags(flags), Mode: abi.FileMode(mode)}}, err
	case tagAccess:
		path, err := d.Blob()
		if err != nil {
			return nil, err
		}
		mode, err := d.Uint32()
		return ReqAccess{Path: path, Mode: abi.AccessFlags(mode)}, err
	case tagUnlink:
		path, err := d.Blob()
		return ReqUnlink{Path: path}, err
	case tagRmdir:
		path, err := d.Blob()
		return ReqRmdir{Path: path}, err
	case tagSymlink:
		target, err := d.Blob()
		if err != nil {
			return nil, err
		}
		link, err := d.Blob()
		return ReqSymlink{Target: target, LinkPath: link}, err
	case tagRename:
		from, err := d.Blob()
		if err != nil {
			return nil, err
		}
		to, err := d.Blob()
		return ReqRename{From: from, To: to}, err
	case tagLink:
		from, err := d.Blob()
		if err != nil {
			return nil, err
		}
		to, err := d.Blob()
		return ReqLink{From: from, To: to}, err
	case tagMkdir:
		path, err := d.Blob()
		if err != nil {
			return nil, err
		}
		mode, err := d.Uint32()
		return ReqMkdir{Path: path, Mode: abi.FileMode(mode)}, err
	case tagMknod:
		path, err := d.Blob()
		if err != nil {
			return nil, err
		}
		mode, err := d.Uint32()
		if err != nil {
			return nil, err
		}
		dev, err := d.Uint64()
		return ReqMknod{Path: path, Mode: abi.FileMode(mode), Device: abi.DeviceNumber(dev)}, err
	case tagGetSockPath:
		name, err := d.Blob()
		if err != nil {
			return nil, err
		}
		listen, err := d.Bool()
		return ReqGetSockPath{Name: name, Listen: listen}, err
	case tagVfdRead:
		vfd, err := d.Uint64()
		if err != nil {
			return nil, err
		}
		count, err := d.Uint64()
		return ReqVfdRead{Vfd: vfd, Count: count}, err
	case tagVfdPread:
		vfd, err := d.Uint64()
		if err != nil {
			return nil, err
		}
		off, err := d.Int64()
		if err != nil {
			return nil, err
		}
		count, err := d.Uint64()
		return ReqVfdPread{Vfd: vfd, Off: off, Count: count}, err
	case tagVfdWrite:
		vfd, err := d.Uint64()
		if err != nil {
			return nil, err
		}
		data, err := d.Blob()
		return ReqVfdWrite{Vfd: vfd, Data: data}, err
	case tagVfdPwrite:
		vfd, err := d.Uint64()
		if err != nil {
			return nil, err
		}
		off, err := d.Int64()
		if err != nil {
			return nil, err
		}
		data, err := d.Blob()
		return ReqVfdPwrite{Vfd: vfd, Off: off, Data: data}, err
	case tagVfdSeek:
		vfd, err := d.Uint64()
		if err != nil {
			return nil, err
		}
		whence, err := d.Uint32()
		if err != nil {
			return nil, err
		}
		off, err := d.Int64()
		return ReqVfdSeek{Vfd: vfd, Whence: abi.Whence(whence), Off: off}, err
	case tagVfdIoctlQuery:
		vfd, err := d.Uint64()
		if err != nil {
			return nil, err
		}
		cmd, err := d.Uint32()
		return ReqVfdIoctlQuery{Vfd: vfd, Cmd: abi.IoctlCmd(cmd)}, err
	case tagVfdIoctl:
		vfd, err := d.Uint64()
		if err != nil {
			return nil, err
		}
		cmd, err := d.Uint32()
		if err != nil {
			return nil, err
		}
		data, err := d.Blob()
		return ReqVfdIoctl{Vfd: vfd, Cmd: abi.IoctlCmd(cmd), Data: data}, err
	case tagVfdFcntl:
		vfd, err := d.Uint64()
		if err != nil {
			return nil, err
		}
		cmd, err := d.Uint32()
		if err != nil {
			return nil, err
		}
		data, err := d.Blob()
		return ReqVfdFcntl{Vfd: vfd, Cmd: abi.FcntlCmd(cmd), Data: data}, err
	case tagVfdGetdent:
		vfd, err := d.Uint64()
		return ReqVfdGetdent{Vfd: vfd}, err
	case tagVfdStat:
		vfd, err := d.Uint64()
		return ReqVfdStat{Vfd: vfd}, err
	case tagVfdTruncate:
		vfd, err := d.Uint64()
		if err != nil {
			return nil, err
		}
		size, err := d.Uint64()
		return ReqVfdTruncate{Vfd: vfd, Size: size}, err
	case tagVfdChown:
		vfd, err := d.Uint64()
		if err != nil {
			return nil, err
		}
		uid, err := d.Uint32()
		if err != nil {
			return nil, err
		}
		gid, err := d.Uint32()
		return ReqVfdChown{Vfd: vfd, UID: uid, GID: gid}, err
	case tagVfdDup:
		vfd, err := d.Uint64()
		return ReqVfdDup{Vfd: vfd}, err
	case tagVfdClose:
		vfd, err := d.Uint64()
		return ReqVfdClose{Vfd: vfd}, err
	case tagVfdOrigPath:
		vfd, err := d.Uint64()
		return ReqVfdOrigPath{Vfd: vfd}, err
	case tagVfdSync:
		vfd, err := d.Uint64()
		return ReqVfdSync{Vfd: vfd}, err
	case tagVfdReadlink:
		vfd, err := d.Uint64()
		return ReqVfdReadlink{Vfd: vfd}, err
	case tagEventFd:
		initVal, err := d.Uint64()
		if err != nil {
			return nil, err
		}
		flags, err := d.Uint32()
		return ReqEventFd{InitVal: initVal, Flags: flags}, err
	case tagGetNetworkNames:
		return ReqGetNetworkNames{}, nil
	case tagSetNetworkNames:
		node, err := d.Blob()
		if err != nil {
			return nil, err
		}
		domain, err := d.Blob()
		return ReqSetNetworkNames{Names: abi.NetworkNames{NodeName: node, DomainName: domain}}, err
	case tagSysInfo:
		return ReqSysInfo{}, nil
	case tagWriteSyslog:
		level, err := d.Uint32()
		if err != nil {
			return nil, err
		}
		msg, err := d.Blob()
		return ReqWriteSyslog{Level: abi.LogLevel(level), Message: msg}, err
	case tagAfterFork:
		pid, err := d.Int32()
		return ReqAfterFork{ApplePID: pid}, err
	case tagAfterExec:
		return ReqAfterExec{}, nil
	case tagGetThreadName:
		return ReqGetThreadName{}, nil
	case tagSetThreadName:
		name, err := d.Blob()
		return ReqSetThreadName{Name: name}, err
	case tagCallInterruptible:
		inner, err := decodeInterruptibleRequest(d)
		return ReqCallInterruptible{Inner: inner}, err
	default:
		return nil, ErrMalformed
	}
}
