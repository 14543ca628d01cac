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

package vfd

import (
	"encoding/binary"

	"github.com/sisungo/mactux-server/internal/abi"
	"github.com/sisungo/mactux-server/internal/lxerror"
	"github.com/sisungo/mactux-server/internal/pollutil"
)

// EventFd backs an eventfd2(2) Vfd. In EFD_SEMAPHORE mode each read
// consumes exactly one unit and decrements the counter; otherwise a read
// drains the whole counter at once. Grounded on original_source's
// servers/mactux_server/src/filesystem/eventfd.rs.
type EventFd struct {
	BaseStream
	counter   *pollutil.Watch[uint64]
	readiness *pollutil.Watch[pollutil.Events]
	flags     abi.EventFdFlags
}

// NewEventFd creates an EventFd seeded at count.
func NewEventFd(count uint64, flags abi.EventFdFlags) *EventFd {
	e := &EventFd{
		counter: pollutil.NewWatch(count),
		flags:   flags,
	}
	e.readiness = pollutil.NewWatch(e.readinessFor(count))
	return e
}

func (e *EventFd) readinessFor(count uint64) pollutil.Events {
	ev := pollutil.Out
	if count != 0 {
		ev |= pollutil.In
	}
	return ev
}

func (e *EventFd) Read(buf []byte, _ int64) (int, error) {
	if len(buf) != 8 {
		return 0, lxerror.EINVAL
	}
	var val, after uint64
	e.counter.WaitUntil(func(cur *uint64) bool {
		if *cur == 0 {
			return false
		}
		if e.flags&abi.EfdSemaphore != 0 {
			val = 1
			*cur--
		} else {
			val = *cur
			*cur = 0
		}
		after = *cur
		return true
	})
	e.readiness.Update(func(cur *pollutil.Events) { *cur = e.readinessFor(after) })
	binary.NativeEndian.PutUint64(buf, val)
	return 8, nil
}

func (e *EventFd) Write(buf []byte, _ int64) (int, error) {
	if len(buf) != 8 {
		return 0, lxerror.EINVAL
	}
	val := binary.NativeEndian.Uint64(buf)
	var after uint64
	e.counter.Update(func(cur *uint64) {
		*cur += val
		after = *cur
	})
	e.readiness.Update(func(cur *pollutil.Events) { *cur = e.readinessFor(after) })
	return 8, nil
}

// PollToken implements the Poll capability by exposing the readiness
// Watch directly.
func (e *EventFd) PollToken(interest pollutil.Events) (*pollutil.Token, error) {
	return pollutil.NewToken(0, interest, e.readiness), nil
}
