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

package attach

import (
	"encoding/json"
	"os"
	"runtime"

	"github.com/cntrtool/cntr/internal/capset"
	"github.com/cntrtool/cntr/internal/cntrerr"
	"github.com/cntrtool/cntr/internal/ipc"
	"github.com/cntrtool/cntr/internal/mountns"
	"github.com/cntrtool/cntr/internal/nsutil"
)

// firstInheritedFd is the fd number ExtraFiles[0] lands on in a child
// process; 0, 1 and 2 are always stdin/stdout/stderr.
const firstInheritedFd = 3

// RunChild is the body of the hidden re-exec entrypoint Run spawns. It
// never returns on success: joining namespaces, building the chroot and
// dropping privilege all end in execve of the attached command, so the
// only way out short of that is a returned error.
func RunChild() error {
	raw := os.Getenv(childParamsEnv)
	if raw == "" {
		return cntrerr.E(cntrerr.Internal, nil, "%s missing from environment", childParamsEnv)
	}
	var params childParams
	if err := json.Unmarshal([]byte(raw), &params); err != nil {
		return cntrerr.E(cntrerr.Internal, err, "unmarshal attach child parameters")
	}

	ch := ipc.FromFd(firstInheritedFd)
	defer ch.Close()

	handles := make([]*nsutil.Handle, len(params.NSKinds))
	for i, kind := range params.NSKinds {
		handles[i] = nsutil.FromFd(nsutil.Kind(kind), uintptr(firstInheritedFd+1+i))
	}

	runtime.LockOSThread()

	if err := nsutil.ApplyAll(handles); err != nil {
		return err
	}
	nsutil.CloseAll(handles)

	layout := mountns.Layout{
		Mountpoint:     params.Layout.Mountpoint,
		TempMountpoint: params.Layout.TempMountpoint,
	}
	if err := mountns.JoinAndChroot(layout, params.ContainerRoot, ch); err != nil {
		return err
	}

	if err := dropToIdentity(params.UID, params.GID, params.Groups); err != nil {
		return err
	}
	if err := capset.DropAll(); err != nil {
		return err
	}

	return execCommand(params.Command, params.Arguments)
}
