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
	"github.com/sisungo/mactux-server/internal/abi"
	"github.com/sisungo/mactux-server/internal/lxerror"
	"github.com/sisungo/mactux-server/internal/vfd"
)

// Response is the closed set of reply variants a session sends back for
// a dispatched Request. Grounded on crates/mactux_ipc/src/response.rs's
// Response enum.
type Response interface {
	responseTag() byte
}

const (
	tagNothing byte = iota
	tagNativePath
	tagLxPath
	tagVfd
	tagBytes
	tagLength
	tagOffset
	tagCtrlOutput
	tagVfdAvailCtrl
	tagStat
	tagDirent64
	tagNetworkNames
	tagSysInfo
	tagPoll
	tagError
)

type (
	RespNothing      struct{}
	RespNativePath   struct{ Path []byte }
	RespLxPath       struct{ Path []byte }
	RespVfd          struct{ Vfd uint64 }
	RespBytes        struct{ Data []byte }
	RespLength       struct{ Length uint64 }
	RespOffset       struct{ Offset int64 }
	RespCtrlOutput   struct{ Output vfd.CtrlOutput }
	RespVfdAvailCtrl struct{ Avail vfd.AvailCtrl }
	RespStat         struct{ Stat abi.Statx }
	RespDirent64     struct{ Dirent abi.Dirent64 }
	RespNetworkNames struct{ Names abi.NetworkNames }
	RespSysInfo      struct{ Info abi.SysInfo }
	RespPoll         struct {
		Vfd    uint64
		Events uint16
	}
	RespError struct{ Err lxerror.LxError }
)

func (RespNothing) responseTag() byte      { return tagNothing }
func (RespNativePath) responseTag() byte   { return tagNativePath }
func (RespLxPath) responseTag() byte       { return tagLxPath }
func (RespVfd) responseTag() byte          { return tagVfd }
func (RespBytes) responseTag() byte        { return tagBytes }
func (RespLength) responseTag() byte       { return tagLength }
func (RespOffset) responseTag() byte       { return tagOffset }
func (RespCtrlOutput) responseTag() byte   { return tagCtrlOutput }
func (RespVfdAvailCtrl) responseTag() byte { return tagVfdAvailCtrl }
func (RespStat) responseTag() byte         { return tagStat }
func (RespDirent64) responseTag() byte     { return tagDirent64 }
func (RespNetworkNames) responseTag() byte { return tagNetworkNames }
func (RespSysInfo) responseTag() byte      { return tagSysInfo }
func (RespPoll) responseTag() byte         { return tagPoll }
func (RespError) responseTag() byte        { return tagError }

// FromError wraps err as a Response, mapping nil to RespNothing and any
// non-LxError into EIO rather than silently losing the failure.
func FromError(err error) Response {
	if err == nil {
		return RespNothing{}
	}
	if lx, ok := err.(lxerror.LxError); ok {
		return RespError{Err: lx}
	}
	return RespError{Err: lxerror.EIO}
}

func encodeStatx(e *Encoder, s abi.Statx) {
	e.Uint32(s.Mask)
	e.Uint16(s.Mode)
	e.Uint32(s.Nlink)
	e.Uint32(s.UID)
	e.Uint32(s.GID)
	e.Uint64(s.Ino)
	e.Uint64(s.Size)
	e.Uint64(s.Blocks)
	e.Uint32(s.Blksize)
	e.Uint32(s.RdevMajor)
	e.Uint32(s.RdevMinor)
	e.Uint32(s.DevMajor)
	e.Uint32(s.DevMinor)
	e.Int64(s.Atime)
	e.Int64(s.Mtime)
	e.Int64(s.Ctime)
}

func decodeStatx(d *Decoder) (abi.Statx, error) {
	var s abi.Statx
	var err error
	if s.Mask, err = d.Uint32(); err != nil {
		return s, err
	}
	var mode uint16
	if mode, err = d.Uint16(); err != nil {
		return s, err
	}
	s.Mode = mode
	if s.Nlink, err = d.Uint32(); err != nil {
		return s, err
	}
	if s.UID, err = d.Uint32(); err != nil {
		return s, err
	}
	if s.GID, err = d.Uint32(); err != nil {
		return s, err
	}
	if s.Ino, err = d.Uint64(); err != nil {
		return s, err
	}
	if s.Size, err = d.Uint64(); err != nil {
		return s, err
	}
	if s.Blocks, err = d.Uint64(); err != nil {
		return s, err
	}
	if s.Blksize, err = d.Uint32(); err != nil {
		return s, err
	}
	if s.RdevMajor, err = d.Uint32(); err != nil {
		return s, err
	}
	if s.RdevMinor, err = d.Uint32(); err != nil {
		return s, err
	}
	if s.DevMajor, err = d.Uint32(); err != nil {
		return s, err
	}
	if s.DevMinor, err = d.Uint32(); err != nil {
		return s, err
	}
	if s.Atime, err = d.Int64(); err != nil {
		return s, err
	}
	if s.Mtime, err = d.Int64(); err != nil {
		return s, err
	}
	s.Ctime, err = d.Int64()
	return s, err
}

func encodeSysInfo(e *Encoder, s abi.SysInfo) {
	e.Int64(s.Uptime)
	for _, l := range s.Loads {
		e.Uint64(l)
	}
	e.Uint64(s.TotalRAM)
	e.Uint64(s.FreeRAM)
	e.Uint64(s.SharedRAM)
	e.Uint64(s.BufferRAM)
	e.Uint64(s.TotalSwap)
	e.Uint64(s.FreeSwap)
	e.Uint16(s.Procs)
	e.Uint64(s.TotalHigh)
	e.Uint64(s.FreeHigh)
	e.Uint32(s.MemUnit)
}

func decodeSysInfo(d *Decoder) (abi.SysInfo, error) {
	var s abi.SysInfo
	var err error
	if s.Uptime, err = d.Int64(); err != nil {
		return s, err
	}
	for i := range s.Loads {
		if s.Loads[i], err = d.Uint64(); err != nil {
			return s, err
		}
	}
	if s.TotalRAM, err = d.Uint64(); err != nil {
		return s, err
	}
	if s.FreeRAM, err = d.Uint64(); err != nil {
		return s, err
	}
	if s.SharedRAM, err = d.Uint64(); err != nil {
		return s, err
	}
	if s.BufferRAM, err = d.Uint64(); err != nil {
		return s, err
	}
	if s.TotalSwap, err = d.Uint64(); err != nil {
		return s, err
	}
	if s.FreeSwap, err = d.Uint64(); err != nil {
		return s, err
	}
	if s.Procs, err = d.Uint16(); err != nil {
		return s, err
	}
	if s.TotalHigh, err = d.Uint64(); err != nil {
		return s, err
	}
	if s.FreeHigh, err = d.Uint64(); err != nil {
		return s, err
	}
	s.MemUnit, err = d.Uint32()
	return s, err
}

// EncodeResponse serializes r as a tag byte followed by its fields.
func EncodeResponse(r Response) []byte {
	e := NewEncoder()
	e.Byte(r.responseTag())
	switch v := r.(type) {
	case RespNothing:
	case RespNativePath:
		e.Blob(v.Path)
	case RespLxPath:
		e.Blob(v.Path)
	case RespVfd:
		e.Uint64(v.Vfd)
	case RespBytes:
		e.Blob(v.Data)
	case RespLength:
		e.Uint64(v.Length)
	case RespOffset:
		e.Int64(v.Offset)
	case RespCtrlOutput:
		e.Int32(v.Output.Status)
		e.Blob(v.Output.Blob)
	case RespVfdAvailCtrl:
		e.Bool(v.Avail.Supported)
		e.Uint32(v.Avail.ArgLen)
	case RespStat:
		encodeStatx(e, v.Stat)
	case RespDirent64:
		e.Uint64(v.Dirent.Ino)
		e.Int64(v.Dirent.Off)
		e.Byte(v.Dirent.Type)
		e.String(v.Dirent.Name)
	case RespNetworkNames:
		e.Blob(v.Names.NodeName)
		e.Blob(v.Names.DomainName)
	case RespSysInfo:
		encodeSysInfo(e, v.Info)
	case RespPoll:
		e.Uint64(v.Vfd)
		e.Uint16(v.Events)
	case RespError:
		e.Uint32(uint32(v.Err))
	}
	return e.Bytes()
}

// DecodeResponse parses a tag byte followed by its fields out of data.
func DecodeResponse(data []byte) (Response, error) {
	d := NewDecoder(data)
	tag, err := d.Byte()
	if err != nil {
		return nil, err
	}
	switch tag {
	case tagNothing:
		return RespNothing{}, nil
	case tagNativePath:
		p, err := d.Blob()
		return RespNativePath{Path: p}, err
	case tagLxPath:
		p, err := d.Blob()
		return RespLxPath{Path: p}, err
	case tagVfd:
		v, err := d.Uint64()
		return RespVfd{Vfd: v}, err
	case tagBytes:
		b, err := d.Blob()
		return RespBytes{Data: b}, err
	case tagLength:
		v, err := d.Uint64()
		return RespLength{Length: v}, err
	case tagOffset:
		v, err := d.Int64()
		return RespOffset{Offset: v}, err
	case tagCtrlOutput:
		status, err := d.Int32()
		if err != nil {
			return nil, err
		}
		blob, err := d.Blob()
		return RespCtrlOutput{Output: vfd.CtrlOutput{Status: status, Blob: blob}}, err
	case tagVfdAvailCtrl:
		supported, err := d.Bool()
		if err != nil {
			return nil, err
		}
		argLen, err := d.Uint32()
		return RespVfdAvailCtrl{Avail: vfd.AvailCtrl{Supported: supported, ArgLen: argLen}}, err
	case tagStat:
		s, err := decodeStatx(d)
		return RespStat{Stat: s}, err
	case tagDirent64:
		ino, err := d.Uint64()
		if err != nil {
			return nil, err
		}
		off, err := d.Int64()
		if err != nil {
			return nil, err
		}
		typ, err := d.Byte()
		if err != nil {
			return nil, err
		}
		name, err := d.String()
		return RespDirent64{Dirent: abi.Dirent64{Ino: ino, Off: off, Type: typ, Name: name}}, err
	case tagNetworkNames:
		node, err := d.Blob()
		if err != nil {
			return nil, err
		}
		domain, err := d.Blob()
		return RespNetworkNames{Names: abi.NetworkNames{NodeName: node, DomainName: domain}}, err
	case tagSysInfo:
		info, err := decodeSysInfo(d)
		return RespSysInfo{Info: info}, err
	case tagPoll:
		vfdID, err := d.Uint64()
		if err != nil {
			return nil, err
		}
		events, err := d.Uint16()
		return RespPoll{Vfd: vfdID, Events: events}, err
	case tagError:
		code, err := d.Uint32()
		return RespError{Err: lxerror.LxError(code)}, err
	default:
		return nil, ErrMalformed
	}
}
