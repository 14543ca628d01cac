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

// Package interruptible runs the one request kind a guest can cancel
// mid-flight: a multi-Vfd poll. It races a worker blocked on the poll
// against a worker blocked reading the session channel for a
// cancellation byte, the same scoped two-worker shape as
// original_source/servers/mactux_server/src/ipc/interruptible.rs's
// impl_helper, expressed with errgroup instead of std::thread::scope.
//
// A cancellation byte still completes the call: it reports an empty
// readiness set (Vfd 0, Events 0) rather than leaving the request
// answerless, so the guest always gets a response frame back for every
// request frame it sent. Only the channel actually closing from under
// the call (EOF) skips the response, since there is nothing left to
// write it to.
//
// Unlike the Rust original, which joins both scoped threads
// unconditionally (and thus only terminates once the shared stream
// either delivers a byte or is closed), this port unblocks the
// cancellation read with a deadline once the work side has an answer,
// since the session's channel is reused for ordinary requests right
// after this call finishes and must not be left permanently consumed by
// a dangling read.
package interruptible

import (
	"context"
	"errors"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sirupsen/logrus"

	"github.com/sisungo/mactux-server/internal/lxerror"
	"github.com/sisungo/mactux-server/internal/pollutil"
	"github.com/sisungo/mactux-server/internal/vfd"
	"github.com/sisungo/mactux-server/internal/wire"
)

var log = logrus.WithField("subsystem", "interruptible")

// VfdResolver looks a Vfd handle up in the calling process's table.
type VfdResolver interface {
	Get(handle uint64) (*vfd.Entry, bool)
}

// CancelChannel is the readable, deadline-capable half of the session
// connection, repurposed during Interrupting state to watch for the
// guest's cancellation byte.
type CancelChannel interface {
	io.Reader
	SetReadDeadline(t time.Time) error
}

// Outcome is the result of an interruptible dispatch: either a Response
// to encode and send, or Cancelled, meaning the guest abandoned the call
// and nothing should be written back.
type Outcome struct {
	Response  wire.Response
	Cancelled bool
}

// Run executes req, racing it against a cancellation byte (or EOF) read
// from ch. table resolves the Vfd handles named in the request.
func Run(ctx context.Context, ch CancelChannel, table VfdResolver, req wire.InterruptibleRequest) Outcome {
	switch r := req.(type) {
	case wire.IReqVirtualFdPoll:
		return runVirtualFdPoll(ctx, ch, table, r)
	default:
		return Outcome{Response: wire.FromError(lxerror.EINVAL)}
	}
}

func runVirtualFdPoll(ctx context.Context, ch CancelChannel, table VfdResolver, req wire.IReqVirtualFdPoll) Outcome {
	set := pollutil.NewSet()
	cancelTok, fireCancel := pollutil.NewStaticToken()
	set.Insert(cancelTok)
	defer cancelTok.Close()

	indexToVfd := make([]uint64, 0, len(req.Fds))
	for _, fd := range req.Fds {
		entry, ok := table.Get(fd.Vfd)
		if !ok {
			return Outcome{Response: wire.FromError(lxerror.EBADF)}
		}
		poller, ok := entry.AsPoll()
		if !ok {
			return Outcome{Response: wire.FromError(lxerror.EOPNOTSUPP)}
		}
		tok, err := poller.PollToken(pollutil.Events(fd.Interest))
		if err != nil {
			return Outcome{Response: wire.FromError(err)}
		}
		defer tok.Close()
		set.Insert(tok)
		indexToVfd = append(indexToVfd, fd.Vfd)
	}

	g, _ := errgroup.WithContext(ctx)
	channelClosed := false
	g.Go(func() error {
		var buf [1]byte
		_, err := ch.Read(buf[:])
		switch {
		case err == nil:
			// The guest wrote a cancellation byte: per S5, this still
			// completes the call, reporting an empty readiness set,
			// rather than leaving it answerless.
			fireCancel(pollutil.All())
		case errors.Is(err, io.EOF):
			// The guest closed its side entirely; there is no channel
			// left to write a response on.
			channelClosed = true
			fireCancel(pollutil.All())
		}
		return nil
	})

	var result wire.Response
	g.Go(func() error {
		idx, tok, ok := set.Poll(req.Timeout)
		_ = ch.SetReadDeadline(time.Now())
		defer ch.SetReadDeadline(time.Time{})
		if !ok || idx == 0 {
			result = wire.RespPoll{Vfd: 0, Events: 0}
			return nil
		}
		result = wire.RespPoll{Vfd: indexToVfd[idx-1], Events: uint16(tok.Interest)}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.WithError(err).Warn("virtual fd poll worker failed")
		return Outcome{Response: wire.FromError(lxerror.EIO)}
	}
	if channelClosed {
		return Outcome{Cancelled: true}
	}
	return Outcome{Response: result}
}
