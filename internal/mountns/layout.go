// Copyright 2015 Google Inc. All Rights Reserved.
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

// Package mountns performs the kernel-level mount-namespace setup that
// turns a host-served CntrFs session into a view of an attached
// container: the host's own filesystem at the session root, with the
// container's filesystem grafted in at a fixed path underneath it.
package mountns

import (
	"os"

	"github.com/cntrtool/cntr/cfg"
)

// cntrMountPoint is where the container's root filesystem appears
// inside the synthesized session, relative to the session's own root.
const cntrMountPoint = cfg.MountPointName

// Layout records the two scratch directories an attach session needs:
// mountpoint becomes the session's root once CntrFs is mounted there,
// tempMountpoint briefly holds a recursive bind of the container's root
// until it's moved under mountpoint/cntrMountPoint.
type Layout struct {
	Mountpoint     string
	TempMountpoint string
}

// NewLayout creates both scratch directories under the system temp dir.
func NewLayout() (Layout, error) {
	mountpoint, err := os.MkdirTemp("", "cntrfs")
	if err != nil {
		return Layout{}, err
	}
	tempMountpoint, err := os.MkdirTemp("", "cntrfs-temp")
	if err != nil {
		os.Remove(mountpoint)
		return Layout{}, err
	}
	return Layout{Mountpoint: mountpoint, TempMountpoint: tempMountpoint}, nil
}

// Cleanup removes the scratch directories. Safe to call even if the
// mounts under them were never torn down; that's the caller's job.
func (l Layout) Cleanup() {
	os.Remove(l.Mountpoint)
	os.Remove(l.TempMountpoint)
}
