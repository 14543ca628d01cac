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

import "io"

// HandshakeRequestMagic and HandshakeResponseMagic are the 8-byte magic
// values exchanged before a channel is admitted into the session state
// machine. Grounded on crates/mactux_ipc/src/handshake.rs.
var (
	HandshakeRequestMagic  = [8]byte{'M', 'A', 'C', 'T', 'U', 'X', 'H', 'Q'}
	HandshakeResponseMagic = [8]byte{'M', 'A', 'C', 'T', 'U', 'X', 'H', 'S'}
)

// ServerVersion is reported in every handshake response.
const ServerVersion = "0.1.0"

// WriteHandshakeRequest sends the fixed 8-byte magic rtenv presents on
// connect.
func WriteHandshakeRequest(w io.Writer) error {
	return WriteFrame(w, HandshakeRequestMagic[:])
}

// ReadHandshakeRequest reads and validates the magic a connecting peer
// must present.
func ReadHandshakeRequest(r io.Reader) error {
	payload, err := ReadFrame(r)
	if err != nil {
		return err
	}
	if len(payload) != 8 || [8]byte(payload) != HandshakeRequestMagic {
		return ErrMalformed
	}
	return nil
}

// WriteHandshakeResponse sends the server's magic plus its version
// string.
func WriteHandshakeResponse(w io.Writer) error {
	e := NewEncoder()
	e.buf.Write(HandshakeResponseMagic[:])
	e.String(ServerVersion)
	return WriteFrame(w, e.Bytes())
}

// ReadHandshakeResponse validates the server's handshake reply.
func ReadHandshakeResponse(r io.Reader) (version string, err error) {
	payload, err := ReadFrame(r)
	if err != nil {
		return "", err
	}
	if len(payload) < 8 || [8]byte(payload[:8]) != HandshakeResponseMagic {
		return "", ErrMalformed
	}
	d := NewDecoder(payload[8:])
	return d.String()
}
