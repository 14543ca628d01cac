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

// Command mactuxd is the per-user virtual-kernel server: it binds the
// rtenv-facing Unix domain socket, admits one session per connecting
// guest process, and dispatches the wire protocol against the shared
// mount/device/task state built in bootstrap.go.
package main

import (
	"context"
	"flag"
	"net"
	"os"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"

	"github.com/sisungo/mactux-server/internal/listener"
	"github.com/sisungo/mactux-server/internal/session"
	"github.com/sisungo/mactux-server/internal/task"
	"github.com/sisungo/mactux-server/internal/wire"
	"github.com/sisungo/mactux-server/internal/workdir"
)

var log = logrus.WithField("subsystem", "main")

func main() {
	cmdr := subcommands.NewCommander(flag.CommandLine, "mactuxd")
	cmdr.Register(cmdr.HelpCommand(), "")
	cmdr.Register(cmdr.FlagsCommand(), "")
	cmdr.Register(cmdr.CommandsCommand(), "")
	cmdr.Register(&serveCmd{}, "")
	flag.Parse()
	os.Exit(int(cmdr.Execute(context.Background())))
}

type serveCmd struct {
	workDir string
	verbose bool
}

func (*serveCmd) Name() string { return "serve" }

func (*serveCmd) Synopsis() string { return "run the mactux virtual-kernel server" }

func (*serveCmd) Usage() string {
	return "serve [-workdir PATH] [-verbose]\n" +
		"  Bind the IPC socket and dispatch guest requests until terminated.\n"
}

func (c *serveCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.workDir, "workdir", "", "override the work directory (default: $MACTUX_WORK_DIR or ~/.mactux)")
	f.BoolVar(&c.verbose, "verbose", false, "enable debug logging")
}

func (c *serveCmd) Execute(context.Context, *flag.FlagSet, ...interface{}) subcommands.ExitStatus {
	if c.verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	root := c.workDir
	if root == "" {
		var err error
		root, err = workdir.DefaultPath()
		if err != nil {
			log.WithError(err).Error("failed to resolve work directory")
			return subcommands.ExitFailure
		}
	}
	wd, err := workdir.Open(root)
	if err != nil {
		log.WithError(err).Error("failed to open work directory")
		return subcommands.ExitFailure
	}

	proc, err := rootProcess(wd)
	if err != nil {
		log.WithError(err).Error("failed to initialize root process")
		return subcommands.ExitFailure
	}

	registry := task.NewRegistry()
	newProc := func() (*task.Process, error) { return proc.Child(), nil }

	ln, err := listener.New(wd.IPCSocket())
	if err != nil {
		log.WithError(err).Error("failed to bind ipc socket")
		return subcommands.ExitFailure
	}
	defer ln.Close()

	log.WithField("socket", wd.IPCSocket()).Infof("mactuxd %s listening", wire.ServerVersion)

	if err := ln.Serve(func(conn net.Conn, peerPID int32) {
		sess := session.New(conn, registry, newProc, peerPID)
		if err := sess.Run(); err != nil {
			log.WithError(err).WithField("peer_pid", peerPID).Warn("session ended with error")
		}
	}); err != nil {
		log.WithError(err).Error("listener stopped")
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
