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

// Package wire implements the bespoke binary encoding carried over the
// length-prefixed IPC frames: a field-positional tagged-union scheme, no
// protobuf/gRPC, grounded on the wire shape of
// original_source/crates/mactux_ipc/src/{request,response,handshake}.rs
// (there bincode-derived; here hand-written, since the spec defines its
// own schema-driven encoding rather than adopting a schema-description
// language).
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"time"
)

// ErrMalformed is returned when a frame's contents don't decode to a
// valid value of the requested type.
var ErrMalformed = errors.New("wire: malformed frame")

// Encoder accumulates a frame's payload bytes.
type Encoder struct {
	buf bytes.Buffer
}

// NewEncoder returns an empty Encoder.
func NewEncoder() *Encoder { return &Encoder{} }

// Bytes returns the accumulated payload.
func (e *Encoder) Bytes() []byte { return e.buf.Bytes() }

func (e *Encoder) Byte(v byte) { e.buf.WriteByte(v) }

func (e *Encoder) Uint16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	e.buf.Write(b[:])
}

func (e *Encoder) Uint32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	e.buf.Write(b[:])
}

func (e *Encoder) Uint64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	e.buf.Write(b[:])
}

func (e *Encoder) Int32(v int32)  { e.Uint32(uint32(v)) }
func (e *Encoder) Int64(v int64)  { e.Uint64(uint64(v)) }
func (e *Encoder) Bool(v bool) {
	if v {
		e.Byte(1)
	} else {
		e.Byte(0)
	}
}

// Blob writes a u64 length prefix followed by raw bytes, the scheme
// every variable-length field (byte strings, Vecs) uses.
func (e *Encoder) Blob(v []byte) {
	e.Uint64(uint64(len(v)))
	e.buf.Write(v)
}

func (e *Encoder) String(v string) { e.Blob([]byte(v)) }

// Duration encodes an optional duration as a presence byte followed, if
// present, by whole milliseconds.
func (e *Encoder) Duration(v *time.Duration) {
	if v == nil {
		e.Byte(0)
		return
	}
	e.Byte(1)
	e.Uint64(uint64(v.Milliseconds()))
}

// Decoder consumes a frame's payload bytes sequentially.
type Decoder struct {
	data []byte
	pos  int
}

// NewDecoder wraps raw frame bytes for sequential decoding.
func NewDecoder(data []byte) *Decoder { return &Decoder{data: data} }

func (d *Decoder) take(n int) ([]byte, error) {
	if d.pos+n > len(d.data) {
		return nil, ErrMalformed
	}
	b := d.data[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

func (d *Decoder) Byte() (byte, error) {
	b, err := d.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *Decoder) Uint16() (uint16, error) {
	b, err := d.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (d *Decoder) Uint32() (uint32, error) {
	b, err := d.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (d *Decoder) Uint64() (uint64, error) {
	b, err := d.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (d *Decoder) Int32() (int32, error) {
	v, err := d.Uint32()
	return int32(v), err
}

func (d *Decoder) Int64() (int64, error) {
	v, err := d.Uint64()
	return int64(v), err
}

func (d *Decoder) Bool() (bool, error) {
	b, err := d.Byte()
	if err != nil {
		return false, err
	}
	return b != 0, nil
}

func (d *Decoder) Blob() ([]byte, error) {
	n, err := d.Uint64()
	if err != nil {
		return nil, err
	}
	return d.take(int(n))
}

func (d *Decoder) String() (string, error) {
	b, err := d.Blob()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (d *Decoder) Duration() (*time.Duration, error) {
	present, err := d.Byte()
	if err != nil {
		return nil, err
	}
	if present == 0 {
		return nil, nil
	}
	ms, err := d.Uint64()
	if err != nil {
		return nil, err
	}
	dur := time.Duration(ms) * time.Millisecond
	return &dur, nil
}

// Done reports whether every byte of the frame has been consumed.
func (d *Decoder) Done() bool { return d.pos == len(d.data) }

// WriteFrame writes a u64-LE length prefix followed by payload to w.
func WriteFrame(w io.Writer, payload []byte) error {
	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// ReadFrame reads a u64-LE length prefix and the following payload.
func ReadFrame(r io.Reader) ([]byte, error) {
	var lenBuf [8]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint64(lenBuf[:])
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
