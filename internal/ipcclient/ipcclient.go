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

// Package ipcclient is a minimal stand-in for rtenv's side of the wire
// protocol: dial the server's socket, handshake, and exchange request/
// response frames. rtenv itself lives outside this repository; this
// package exists so end-to-end tests can drive a real listener+session
// pair over an actual Unix domain socket instead of only over net.Pipe.
package ipcclient

import (
	"fmt"
	"net"

	"github.com/sisungo/mactux-server/internal/wire"
)

// Client is a handshaken connection to a mactuxd server.
type Client struct {
	conn    net.Conn
	Version string
}

// Dial connects to addr, a Unix domain socket path, and performs the
// handshake rtenv presents on connect.
func Dial(addr string) (*Client, error) {
	conn, err := net.Dial("unix", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	if err := wire.WriteHandshakeRequest(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send handshake: %w", err)
	}
	version, err := wire.ReadHandshakeResponse(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("read handshake response: %w", err)
	}
	return &Client{conn: conn, Version: version}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error { return c.conn.Close() }

// Call sends req as a frame and waits for the matching response frame.
// It does not implement CallInterruptible's cancellation-byte side
// channel; use Conn for that.
func (c *Client) Call(req wire.Request) (wire.Response, error) {
	if err := wire.WriteFrame(c.conn, wire.EncodeRequest(req)); err != nil {
		return nil, err
	}
	payload, err := wire.ReadFrame(c.conn)
	if err != nil {
		return nil, err
	}
	return wire.DecodeResponse(payload)
}

// Cancel writes a single cancellation byte, used to abort an in-flight
// CallInterruptible request the way rtenv's cancellation side channel
// does.
func (c *Client) Cancel() error {
	_, err := c.conn.Write([]byte{0})
	return err
}

// Conn exposes the underlying connection for tests that need to drive
// the cancellation side channel concurrently with Call.
func (c *Client) Conn() net.Conn { return c.conn }
