/*
   Copyright The Orbit Kernel Authors.

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

// Package step implements the kernel's pure state-transition function:
// given a KernelState, the caller's pid, a syscall number and its
// arguments, and the current time, it computes the next state, the
// syscall's result, and the commits that describe what changed. Nothing in
// this package reads a clock, rolls dice, or performs I/O — every
// nondeterministic input the kernel ever needs arrives as the now
// parameter, which is why two hosts replaying the same commit log always
// agree.
package step

import (
	"github.com/orbitkernel/kernel/core/kernel/capability"
	"github.com/orbitkernel/kernel/core/kernel/commit"
	"github.com/orbitkernel/kernel/core/kernel/ipc"
	"github.com/orbitkernel/kernel/core/kernel/state"
	"github.com/orbitkernel/kernel/core/kernel/syscall"
	"github.com/orbitkernel/kernel/core/kernel/types"
	"github.com/orbitkernel/kernel/pkg/identifiers"
)

// CreateProcess registers a new process in s and returns the commit
// describing it. This is not part of the guest-facing syscall ABI: a
// process cannot create another process from inside the sandbox, only the
// host supervisor can, which is why this is a separate entry point rather
// than another syscall.Num. The Gateway appends the returned commit
// directly to the CommitLog without a matching SysLog entry, since it is
// not a syscall.
func CreateProcess(s *state.KernelState, name string, now int64) (types.ProcessId, commit.Type, error) {
	if err := identifiers.Validate(name); err != nil {
		return 0, commit.Type{}, err
	}
	pid, err := s.AllocProcessId()
	if err != nil {
		return 0, commit.Type{}, err
	}
	s.Processes[pid] = &state.Process{
		Pid:          pid,
		Name:         name,
		State:        types.ProcessReady,
		CreationTime: now,
	}
	s.Caps.RegisterProcess(pid)
	s.Metrics.ProcessesCreated++
	return pid, commit.Type{Kind: commit.ProcessCreated, Pid: pid, Name: name}, nil
}

// Step is the kernel's sole state-transition function. It mutates s in
// place; the Gateway is responsible for snapshotting s before the call and
// discarding the snapshot if Step panics, so that a bug here can never
// leave s half-mutated (spec.md §4.6).
//
// Every error path returns zero commits: a failed syscall never mutates
// state, by construction of how this function is written, not by an
// after-the-fact check.
func Step(s *state.KernelState, pid types.ProcessId, num syscall.Num, args syscall.Args, now int64) (syscall.Result, []commit.Type) {
	switch num {
	case syscall.DEBUG:
		return stepDebug(args)
	case syscall.EXIT:
		return stepExit(s, pid)
	case syscall.YIELD:
		return stepYield(s, pid)
	case syscall.TIME:
		return stepTime(now)
	case syscall.PS:
		return stepPS(s)
	case syscall.KILL:
		return stepKill(s, pid, args)
	case syscall.CONSOLE_WR:
		return stepConsoleWrite(args)
	case syscall.SEND:
		return stepSend(s, pid, args, now, false)
	case syscall.SEND_CAP:
		return stepSend(s, pid, args, now, true)
	case syscall.CALL:
		return stepCall(s, pid, args, now)
	case syscall.RECV:
		return stepRecv(s, pid, args)
	case syscall.REPLY:
		return stepReply(s, pid, args, now)
	case syscall.CREATE_EP:
		return stepCreateEndpoint(s, pid)
	case syscall.DELETE_EP:
		return stepDeleteEndpoint(s, pid, args)
	case syscall.CAP_GRANT:
		return stepCapGrant(s, pid, args)
	case syscall.CAP_REVOKE, syscall.CAP_DELETE:
		return stepCapRevoke(s, pid, args)
	case syscall.CAP_DERIVE:
		return stepCapDerive(s, pid, args)
	case syscall.CAP_INSPECT:
		return stepCapInspect(s, pid, args)
	case syscall.CAP_LIST:
		return stepCapList(s, pid)
	default:
		return fail(syscall.InvalidArgument, errUnknownSyscall(num))
	}
}

func ok(r syscall.Result, commits ...commit.Type) (syscall.Result, []commit.Type) {
	r.Status = syscall.Ok
	if len(commits) == 0 {
		return r, nil
	}
	return r, commits
}

func fail(status syscall.Status, err error) (syscall.Result, []commit.Type) {
	return syscall.Result{Status: status, Err: err}, nil
}

// statusForError maps a lookup/authorization error from state or capability
// into the syscall.Status taxonomy it belongs to.
func statusForError(err error) syscall.Status {
	switch {
	case err == nil:
		return syscall.Ok
	case isErr(err, state.ErrProcessNotFound):
		return syscall.ProcessNotFound
	case isErr(err, state.ErrEndpointNotFound):
		return syscall.EndpointNotFound
	case isErr(err, state.ErrProcessTerminated):
		return syscall.ProcessTerminated
	case isErr(err, state.ErrOutOfIds):
		return syscall.OutOfIds
	case isErr(err, state.ErrOutOfResources):
		return syscall.OutOfResources
	case isErr(err, capability.ErrNoCapability):
		return syscall.NoCapability
	case isErr(err, capability.ErrWrongObjectType):
		return syscall.WrongObjectType
	case isErr(err, capability.ErrInsufficientPermissions):
		return syscall.InsufficientPermissions
	case isErr(err, ipc.ErrQueueFull):
		return syscall.QueueFull
	case isErr(err, ipc.ErrMessageTooLarge):
		return syscall.MessageTooLarge
	case isErr(err, ipc.ErrTooManyCaps):
		return syscall.TooManyCaps
	default:
		return syscall.InvalidArgument
	}
}

func failErr(err error) (syscall.Result, []commit.Type) {
	return fail(statusForError(err), err)
}
