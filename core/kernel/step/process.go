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

package step

import (
	"github.com/orbitkernel/kernel/core/kernel/commit"
	"github.com/orbitkernel/kernel/core/kernel/state"
	"github.com/orbitkernel/kernel/core/kernel/syscall"
	"github.com/orbitkernel/kernel/core/kernel/types"
)

// stepDebug never touches state: it's a host-visible print with no
// authorization and no commit, echoing back the byte count written.
func stepDebug(args syscall.Args) (syscall.Result, []commit.Type) {
	return ok(syscall.Result{Value: uint64(len(args.Text))})
}

// stepConsoleWrite is DEBUG's sibling for binary payloads destined for the
// host console rather than structured logs.
func stepConsoleWrite(args syscall.Args) (syscall.Result, []commit.Type) {
	return ok(syscall.Result{Value: uint64(len(args.Data))})
}

func stepTime(now int64) (syscall.Result, []commit.Type) {
	return ok(syscall.Result{Value: uint64(now)})
}

func stepYield(s *state.KernelState, pid types.ProcessId) (syscall.Result, []commit.Type) {
	p, err := s.LiveProcess(pid)
	if err != nil {
		return failErr(err)
	}
	// Scheduling state (Ready/Running/Blocked) is not replay-relevant: only
	// the terminal Terminated state is ever recorded in a commit, so a
	// cooperative yield mutates the live process record but emits nothing.
	p.State = types.ProcessReady
	return ok(syscall.Result{})
}

func stepPS(s *state.KernelState) (syscall.Result, []commit.Type) {
	snaps := s.PS()
	out := make([]syscall.ProcessSnapshot, len(snaps))
	for i, sn := range snaps {
		out[i] = syscall.ProcessSnapshot{Pid: sn.Pid, Name: sn.Name, State: sn.State, Created: sn.Created}
	}
	return ok(syscall.Result{Snapshot: out})
}

// stepExit tears down the calling process: every capability it holds is
// drained (cascading to nobody — draining is not revoking, see
// capability.Space.DrainProcess) and the process is marked Terminated.
func stepExit(s *state.KernelState, pid types.ProcessId) (syscall.Result, []commit.Type) {
	return terminate(s, pid)
}

// stepKill requires the caller to hold a Grant-permitted capability naming
// the target process as its object, then applies the same termination
// sequence EXIT applies to itself.
func stepKill(s *state.KernelState, pid types.ProcessId, args syscall.Args) (syscall.Result, []commit.Type) {
	target, err := s.Caps.Check(pid, args.Slot, types.ObjectProcess, types.Permissions{Grant: true})
	if err != nil {
		return failErr(err)
	}
	if target.ObjectID != uint64(args.TargetPid) {
		return failErr(errWrongKillTarget)
	}
	if _, err := s.Process(args.TargetPid); err != nil {
		return failErr(err)
	}
	return terminate(s, args.TargetPid)
}

// terminate drains target's capabilities and marks it Terminated, emitting
// one CapRevoked commit per drained capability followed by a single
// ProcessTerminated commit. A process with no capabilities still emits
// exactly the ProcessTerminated commit.
func terminate(s *state.KernelState, target types.ProcessId) (syscall.Result, []commit.Type) {
	p, err := s.LiveProcess(target)
	if err != nil {
		return failErr(err)
	}

	drained := s.Caps.DrainProcess(target)
	commits := make([]commit.Type, 0, len(drained)+1)
	for _, r := range drained {
		commits = append(commits, commit.Type{
			Kind:        commit.CapRevoked,
			Holder:      r.Holder,
			Slot:        r.Slot,
			ObjectType:  r.ObjectType,
			ObjectID:    r.ObjectID,
			Permissions: r.Permissions,
		})
	}
	p.State = types.ProcessTerminated
	commits = append(commits, commit.Type{Kind: commit.ProcessTerminated, Pid: target})

	return syscall.Result{Status: syscall.Ok}, commits
}
