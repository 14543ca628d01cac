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

// Package workdir resolves and initializes the server's on-disk work
// directory: rootfs/, mactux.sock, net/<uuid>/ per-namespace abstract
// socket directories, and the init_flag marking first-run setup done.
// Grounded on original_source's mactux_server/src/{config,work_dir}.rs.
package workdir

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/sirupsen/logrus"

	"github.com/sisungo/mactux-server/internal/lxerror"
)

var log = logrus.WithField("subsystem", "workdir")

// EnvOverride is the environment variable that overrides the default
// work directory location.
const EnvOverride = "MACTUX_WORK_DIR"

// WorkDir is the resolved on-disk layout root.
type WorkDir struct {
	root string
}

// DefaultPath resolves $MACTUX_WORK_DIR, falling back to $HOME/.mactux.
func DefaultPath() (string, error) {
	if p := os.Getenv(EnvOverride); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".mactux"), nil
}

// Open resolves and, if necessary, first-time-initializes the work
// directory at root. First-init is guarded by an flock on init_flag.lock
// so two racing server starts don't double-initialize rootfs.
func Open(root string) (*WorkDir, error) {
	w := &WorkDir{root: root}

	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	lock := flock.New(w.InitFlag() + ".lock")
	if err := lock.Lock(); err != nil {
		return nil, lxerror.FromHostError(err)
	}
	defer lock.Unlock()

	if _, err := os.Stat(w.InitFlag()); os.IsNotExist(err) {
		if err := w.forceInit(); err != nil {
			return nil, err
		}
	}

	if err := os.RemoveAll(w.NetDir()); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(w.NetDir(), 0o700); err != nil {
		return nil, err
	}

	return w, nil
}

func (w *WorkDir) forceInit() error {
	log.Infof("initializing work directory %q", w.root)
	if err := os.MkdirAll(w.Rootfs(), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.InitFlag(), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	f.Close()
	log.Info("work directory initialized")
	return nil
}

// Root returns the work directory's own path.
func (w *WorkDir) Root() string { return w.root }

// InitFlag is the sentinel file marking first-run initialization done.
func (w *WorkDir) InitFlag() string { return filepath.Join(w.root, "init_flag") }

// Rootfs is the default guest root filesystem directory.
func (w *WorkDir) Rootfs() string { return filepath.Join(w.root, "rootfs") }

// IPCSocket is the listening Unix socket path.
func (w *WorkDir) IPCSocket() string { return filepath.Join(w.root, "mactux.sock") }

// NetDir is the parent directory of all per-net-namespace abstract
// socket directories.
func (w *WorkDir) NetDir() string { return filepath.Join(w.root, "net") }
