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

package main

import (
	"github.com/sisungo/mactux-server/internal/devtable"
	"github.com/sisungo/mactux-server/internal/fsimpl/devtmpfs"
	"github.com/sisungo/mactux-server/internal/fsimpl/hostfs"
	"github.com/sisungo/mactux-server/internal/fsimpl/procfs"
	"github.com/sisungo/mactux-server/internal/fsimpl/sysfs"
	"github.com/sisungo/mactux-server/internal/task"
	"github.com/sisungo/mactux-server/internal/vfs"
	"github.com/sisungo/mactux-server/internal/workdir"
)

// mountLister adapts a *vfs.MountNamespace to procfs.MountLister: the
// two packages each define their own MountInfo so that procfs doesn't
// depend on vfs (which would cycle back through fsimpl at mount-
// construction time), so a structurally identical type still needs this
// one conversion at the single point production code ties them together.
type mountLister struct{ ns *vfs.MountNamespace }

func (m mountLister) Mounts() []procfs.MountInfo {
	src := m.ns.Mounts()
	out := make([]procfs.MountInfo, len(src))
	for i, mi := range src {
		out[i] = procfs.MountInfo{Source: mi.Source, MountPoint: mi.MountPoint, FsType: mi.FsType}
	}
	return out
}

// rootProcess builds the server's process 1: a mount namespace with
// hostfs at /, devtmpfs at /dev, procfs at /proc and sysfs at /sys, plus
// a fresh net namespace rooted at the work directory's net/ subtree.
// Every later-registering channel becomes a Child of this process,
// inheriting its namespaces and starting with an empty Vfd table, the
// same relationship fork(2) establishes between a guest's init and its
// descendants.
func rootProcess(wd *workdir.WorkDir) (*task.Process, error) {
	devs := devtable.New()
	devtable.RegisterAuxMem(devs)
	devtable.RegisterTerm(devs)

	mnt := vfs.New()
	mnt.MountWithInfo("/", hostfs.New(wd.Rootfs()), wd.Rootfs(), "hostfs")
	mnt.MountWithInfo("/dev", devtmpfs.New(devs), "devtmpfs", "devtmpfs")
	mnt.MountWithInfo("/sys", sysfs.New(), "sysfs", "sysfs")
	mnt.MountWithInfo("/proc", procfs.New(mountLister{ns: mnt}), "proc", "proc")

	netNS, err := task.NewNetNamespace(wd.NetDir())
	if err != nil {
		return nil, err
	}

	return task.NewRootProcess(mnt, netNS), nil
}
