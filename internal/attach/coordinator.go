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

// Package attach sequences everything a cntr invocation does between
// resolving a container name and handing control to the command the
// caller asked to run inside it: probing the runtime, standing up the
// host-backed session filesystem, forking a child that joins the
// target's namespaces and chroots into that session, and waiting for
// the attached command to exit.
//
// The mount and the chroot cannot happen in the same process: chroot
// replaces a process's filesystem root wholesale, and a FUSE server
// already serving that process's backing files would have every
// in-flight path resolution corrupted out from under it. So the
// coordinator mounts CntrFs over the host root first, then re-execs
// itself as a child that joins the container's namespaces and chroots
// into the mount the coordinator prepared — never into the mount's own
// process. The self-re-exec, rather than a raw fork, is the same
// accommodation every other process-per-namespace tool in this
// ecosystem makes for Go's threaded runtime.
package attach

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"os/user"
	"strconv"
	"syscall"

	"github.com/google/uuid"

	"github.com/cntrtool/cntr/cfg"
	"github.com/cntrtool/cntr/internal/capset"
	"github.com/cntrtool/cntr/internal/cntrerr"
	"github.com/cntrtool/cntr/internal/ipc"
	"github.com/cntrtool/cntr/internal/logger"
	"github.com/cntrtool/cntr/internal/mountns"
	"github.com/cntrtool/cntr/internal/nsutil"
	"github.com/cntrtool/cntr/internal/probe"
)

// Options describes one attach or exec invocation, already merged from
// flags/config by the cmd package.
type Options struct {
	ContainerName  string
	ContainerTypes []cfg.ContainerType
	EffectiveUser  string
	Command        string
	Arguments      []string
}

// defaultShell is what's run when the caller didn't name a command,
// matching a login shell being the natural thing to land in.
const defaultShell = "/bin/sh"

// childParamsEnv carries the JSON-encoded childParams across the
// self-re-exec. Argv is avoided so arbitrarily-shaped commands and
// arguments never have to survive shell-style re-quoting.
const childParamsEnv = "CNTR_ATTACH_CHILD_PARAMS"

// ChildEntrypoint is the hidden cobra subcommand name cmd/child.go
// registers, wired to RunChild; Run re-execs itself with this as argv[1].
const ChildEntrypoint = "__attach_child"

// childParams is everything RunChild needs that it cannot discover on
// its own: the namespaces to join arrive as inherited file descriptors,
// named here in the order they were placed in ExtraFiles, and the
// identity to drop to once the session is built.
type childParams struct {
	ContainerRoot string      `json:"container_root"`
	Layout        layoutParam `json:"layout"`
	NSKinds       []string    `json:"ns_kinds"`
	UID           uint32      `json:"uid"`
	GID           uint32      `json:"gid"`
	Groups        []uint32    `json:"groups"`
	Command       string      `json:"command"`
	Arguments     []string    `json:"arguments"`
}

type layoutParam struct {
	Mountpoint     string `json:"mountpoint"`
	TempMountpoint string `json:"temp_mountpoint"`
}

// Run resolves opts.ContainerName to a running process, stands up the
// session filesystem, and forks+execs a child that joins the container
// and runs the requested command inside it. It exits the process
// directly with the child's own exit code once the child finishes,
// matching the Rust original's "child exit code is cntr's exit code"
// contract; a returned error means the attach never got that far.
func Run(ctx context.Context, opts Options) error {
	sessionID := uuid.NewString()

	if err := capset.Ensure(); err != nil {
		return err
	}

	registry := probe.NewRegistry()
	proc, err := registry.Resolve(ctx, opts.ContainerName, opts.ContainerTypes)
	if err != nil {
		return err
	}
	logger.Infof("[%s] resolved %q to pid %d via %s", sessionID, opts.ContainerName, proc.PID, proc.ContainerType)

	uid, gid, groups, err := resolveIdentity(opts.EffectiveUser, proc.PID)
	if err != nil {
		return err
	}

	layout, err := mountns.NewLayout()
	if err != nil {
		return cntrerr.E(cntrerr.Filesystem, err, "create session scratch directories")
	}

	mounted, err := mountns.MountHost(layout)
	if err != nil {
		layout.Cleanup()
		return err
	}
	go mountns.Serve(mounted)

	joinKinds := make([]nsutil.Kind, 0, len(nsutil.AllKinds)-1)
	for _, k := range nsutil.AllKinds {
		if k == nsutil.Mount {
			continue
		}
		joinKinds = append(joinKinds, k)
	}
	handles, err := nsutil.OpenFor(proc.PID, joinKinds)
	if err != nil {
		mountns.Cleanup(mounted, layout)
		return err
	}
	defer nsutil.CloseAll(handles)

	parentCh, childCh, err := ipc.NewPair()
	if err != nil {
		mountns.Cleanup(mounted, layout)
		return err
	}
	defer parentCh.Close()

	kindNames := make([]string, len(joinKinds))
	for i, k := range joinKinds {
		kindNames[i] = string(k)
	}
	params := childParams{
		ContainerRoot: proc.Root(),
		Layout:        layoutParam{Mountpoint: layout.Mountpoint, TempMountpoint: layout.TempMountpoint},
		NSKinds:       kindNames,
		UID:           uid,
		GID:           gid,
		Groups:        groups,
		Command:       opts.Command,
		Arguments:     opts.Arguments,
	}
	encoded, err := json.Marshal(params)
	if err != nil {
		mountns.Cleanup(mounted, layout)
		return cntrerr.E(cntrerr.Internal, err, "marshal attach child parameters")
	}

	self, err := os.Executable()
	if err != nil {
		mountns.Cleanup(mounted, layout)
		return cntrerr.E(cntrerr.Internal, err, "resolve own executable path")
	}

	extraFiles := make([]*os.File, 0, 1+len(handles))
	extraFiles = append(extraFiles, childCh.File())
	for _, h := range handles {
		extraFiles = append(extraFiles, h.File())
	}

	child := exec.Command(self, ChildEntrypoint)
	child.Stdin, child.Stdout, child.Stderr = os.Stdin, os.Stdout, os.Stderr
	child.ExtraFiles = extraFiles
	child.Env = append(os.Environ(), fmt.Sprintf("%s=%s", childParamsEnv, encoded))
	child.SysProcAttr = &syscall.SysProcAttr{Pdeathsig: syscall.SIGKILL}

	if err := child.Start(); err != nil {
		mountns.Cleanup(mounted, layout)
		return cntrerr.E(cntrerr.Internal, err, "start attach child")
	}
	childCh.Close()

	if _, err := mountns.ReceiveReady(parentCh); err != nil {
		logger.Warnf("attach child did not report readiness: %v", err)
	} else {
		logger.Infof("attached to pid %d, session root at %s", proc.PID, layout.Mountpoint)
	}

	waitErr := child.Wait()
	mountns.Cleanup(mounted, layout)

	if waitErr == nil {
		os.Exit(0)
	}
	if exitErr, ok := waitErr.(*exec.ExitError); ok {
		os.Exit(exitErr.ExitCode())
	}
	logger.Errorf("attach child failed: %v", waitErr)
	os.Exit(1)
	return nil
}

// resolveIdentity looks up the uid/gid/groups cntr should switch to
// before exec'ing the attached command: opts.EffectiveUser when given,
// otherwise the container's own PID 1 identity so files created on the
// host side of the mount are owned the way the container would expect.
func resolveIdentity(effectiveUser string, pid int) (uid, gid uint32, groups []uint32, err error) {
	if effectiveUser == "" {
		return containerIdentity(pid)
	}
	u, lookupErr := user.Lookup(effectiveUser)
	if lookupErr != nil {
		return 0, 0, nil, cntrerr.E(cntrerr.Internal, lookupErr, "look up effective user %q", effectiveUser)
	}
	uidN, _ := strconv.Atoi(u.Uid)
	gidN, _ := strconv.Atoi(u.Gid)
	groupIDs, groupErr := u.GroupIds()
	if groupErr != nil {
		return 0, 0, nil, cntrerr.E(cntrerr.Internal, groupErr, "look up groups for %q", effectiveUser)
	}
	groups = make([]uint32, 0, len(groupIDs))
	for _, g := range groupIDs {
		n, convErr := strconv.Atoi(g)
		if convErr == nil {
			groups = append(groups, uint32(n))
		}
	}
	return uint32(uidN), uint32(gidN), groups, nil
}

func containerIdentity(pid int) (uid, gid uint32, groups []uint32, err error) {
	status, statErr := os.Stat("/proc/" + strconv.Itoa(pid))
	if statErr != nil {
		return 0, 0, nil, cntrerr.E(cntrerr.Probe, statErr, "stat target process")
	}
	st, ok := status.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, 0, nil, cntrerr.E(cntrerr.Internal, nil, "unsupported stat_t layout")
	}
	return st.Uid, st.Gid, nil, nil
}

func dropToIdentity(uid, gid uint32, groups []uint32) error {
	if len(groups) > 0 {
		if err := syscall.Setgroups(intGroupsFrom(groups)); err != nil {
			return cntrerr.E(cntrerr.Permission, err, "setgroups")
		}
	}
	if err := syscall.Setresgid(int(gid), int(gid), int(gid)); err != nil {
		return cntrerr.E(cntrerr.Permission, err, "setresgid")
	}
	if err := syscall.Setresuid(int(uid), int(uid), int(uid)); err != nil {
		return cntrerr.E(cntrerr.Permission, err, "setresuid")
	}
	return nil
}

func intGroupsFrom(groups []uint32) []int {
	out := make([]int, len(groups))
	for i, g := range groups {
		out[i] = int(g)
	}
	return out
}

// ExecInPlace drops every capability the calling process holds and
// execs command, without resolving or joining any container. It backs
// the "exec" subcommand, used when a shell already attached via Run
// wants to launch another command under the same namespaces without
// re-probing a container.
func ExecInPlace(command string, arguments []string) error {
	if err := capset.DropAll(); err != nil {
		return err
	}
	return execCommand(command, arguments)
}

// execCommand replaces the current process image with the requested
// command, matching what a real attach does: there is no cntr process
// left running once the user is inside the container.
func execCommand(command string, arguments []string) error {
	if command == "" {
		command = os.Getenv("SHELL")
	}
	if command == "" {
		command = defaultShell
	}
	path, err := exec.LookPath(command)
	if err != nil {
		path = command
	}
	argv := append([]string{command}, arguments...)
	if err := syscall.Exec(path, argv, os.Environ()); err != nil {
		return cntrerr.E(cntrerr.Internal, err, "exec %s", command)
	}
	return nil
}
