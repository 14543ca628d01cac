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

package devtable

import (
	"io"
	"os"

	"github.com/containerd/console"

	"github.com/sisungo/mactux-server/internal/lxerror"
	"github.com/sisungo/mactux-server/internal/vfd"
)

// nullDevice is (1,3): reads return EOF, writes are discarded.
type nullDevice struct{ vfd.BaseStream }

func (nullDevice) Read([]byte, int64) (int, error)  { return 0, nil }
func (nullDevice) Write(buf []byte, _ int64) (int, error) { return len(buf), nil }
func (nullDevice) MacOSDevice() (string, bool)      { return "/dev/null", true }

// zeroDevice is (1,5): reads return zero bytes, writes are discarded.
type zeroDevice struct{ vfd.BaseStream }

func (zeroDevice) Read(buf []byte, _ int64) (int, error) {
	for i := range buf {
		buf[i] = 0
	}
	return len(buf), nil
}
func (zeroDevice) Write(buf []byte, _ int64) (int, error) { return len(buf), nil }
func (zeroDevice) MacOSDevice() (string, bool)            { return "/dev/zero", true }

// fullDevice is (1,7): reads return zero bytes, writes always fail with
// ENOSPC.
type fullDevice struct{ vfd.BaseStream }

func (fullDevice) Read(buf []byte, _ int64) (int, error) {
	for i := range buf {
		buf[i] = 0
	}
	return len(buf), nil
}
func (fullDevice) Write([]byte, int64) (int, error) { return 0, lxerror.ENOSPC }

// randomDevice and urandomDevice are (1,8) and (1,9); both delegate to
// the host's random device via NewlyOpen::AtNative, so the backing
// object here only exists to be resolved, not read directly.
type randomDevice struct{ vfd.BaseStream }

func (randomDevice) MacOSDevice() (string, bool) { return "/dev/random", true }

type urandomDevice struct{ vfd.BaseStream }

func (urandomDevice) MacOSDevice() (string, bool) { return "/dev/urandom", true }

// ttyDevice is (5,0): the controlling terminal. It always resolves to the
// host's /dev/tty; the Stream methods are never invoked because Device
// takes precedence in NewlyOpen resolution (§4.3).
type ttyDevice struct{ vfd.BaseStream }

func (ttyDevice) MacOSDevice() (string, bool) { return "/dev/tty", true }

// consoleDevice is (5,1): when the server's stdin is a terminal, reads
// and writes go through it via containerd/console. Otherwise Read and
// Write fail with EOPNOTSUPP; no pty is allocated and there is no
// fallback to non-terminal stdio.
type consoleDevice struct {
	vfd.BaseStream
	con console.Console
}

func newConsoleDevice() vfd.Object {
	c, err := console.ConsoleFromFile(os.Stdin)
	if err != nil {
		return &consoleDevice{}
	}
	return &consoleDevice{con: c}
}

func (c *consoleDevice) Read(buf []byte, _ int64) (int, error) {
	if c.con == nil {
		return 0, lxerror.EOPNOTSUPP
	}
	n, err := c.con.Read(buf)
	if err == io.EOF {
		return n, nil
	}
	return n, hostErr(err)
}

func (c *consoleDevice) Write(buf []byte, _ int64) (int, error) {
	if c.con == nil {
		return 0, lxerror.EOPNOTSUPP
	}
	n, err := c.con.Write(buf)
	return n, hostErr(err)
}

func hostErr(err error) error {
	if err == nil {
		return nil
	}
	return lxerror.EIO
}

// RegisterAuxMem installs the (1,*) character devices: null, zero, full,
// random, urandom. Grounded on original_source's
// mactux_server/src/device/auxmem.rs.
func RegisterAuxMem(t *Table) {
	t.AddChrFixed(1, 3, func() vfd.Object { return nullDevice{} })
	t.AddChrFixed(1, 5, func() vfd.Object { return zeroDevice{} })
	t.AddChrFixed(1, 7, func() vfd.Object { return fullDevice{} })
	t.AddChrFixed(1, 8, func() vfd.Object { return randomDevice{} })
	t.AddChrFixed(1, 9, func() vfd.Object { return urandomDevice{} })
}

// RegisterTerm installs the (5,*) terminal devices: tty, console.
// Grounded on original_source's mactux_server/src/device/term.rs.
func RegisterTerm(t *Table) {
	t.AddChrFixed(5, 0, func() vfd.Object { return ttyDevice{} })
	t.AddChrFixed(5, 1, newConsoleDevice)
}
