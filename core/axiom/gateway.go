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

package axiom

import (
	"context"
	"fmt"
	"sync"

	"github.com/containerd/log"
	"github.com/google/uuid"

	"github.com/orbitkernel/kernel/core/kernel/state"
	"github.com/orbitkernel/kernel/core/kernel/step"
	"github.com/orbitkernel/kernel/core/kernel/syscall"
	"github.com/orbitkernel/kernel/core/kernel/types"
)

// Gateway composes the pure step function with the SysLog and CommitLog: it
// is the one place a syscall actually runs. Every call is serialized behind
// mu, since step mutates KernelState in place and two concurrent calls
// racing on the same state would violate the "one syscall at a time" model
// spec.md assumes throughout.
type Gateway struct {
	mu sync.Mutex

	runID   uuid.UUID
	state   *state.KernelState
	sysLog  *SysLog
	commits *CommitLog
}

// NewGateway boots a fresh kernel at genesisTime, stamped with a new run
// identity for correlating this run's logs across a host deployment.
func NewGateway(genesisTime int64) *Gateway {
	return &Gateway{
		runID:   uuid.New(),
		state:   state.New(),
		sysLog:  NewSysLog(),
		commits: NewCommitLog(genesisTime),
	}
}

// RunID identifies this Gateway instance across host-side logs and the
// audit sink, the way a container's id threads through containerd's event
// stream.
func (g *Gateway) RunID() uuid.UUID {
	return g.runID
}

// RestoreGateway rebuilds a Gateway from a CommitLog a host persisted
// across process restarts (see plugins/boltstore): state is reconstructed
// by Replay rather than carried over, and runID is used as the caller
// gives it (cmd/zkctl passes a fresh one per invocation, so it is not
// stable across restarts). The SysLog starts empty; it is a per-process audit
// tape, not state the kernel needs to function.
func RestoreGateway(runID uuid.UUID, commits *CommitLog) *Gateway {
	return &Gateway{
		runID:   runID,
		state:   Replay(commits.Commits()),
		sysLog:  NewSysLog(),
		commits: commits,
	}
}

// CreateProcess registers a new process. It is a host-administrative
// operation, not a guest syscall: no SysLog entry is recorded, but the
// resulting ProcessCreated commit is appended to the CommitLog like any
// other state mutation, atomically with the same snapshot-discard
// discipline Syscall uses.
func (g *Gateway) CreateProcess(ctx context.Context, name string, now int64) (types.ProcessId, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	snapshot := g.state.Clone()
	newPid, commitType, err := g.safeCreateProcess(name, now)
	if err != nil {
		g.state = snapshot
		return 0, err
	}
	g.commits.Append(commitType, now)
	log.G(ctx).WithFields(log.Fields{
		"run_id": g.runID.String(),
		"pid":    newPid.String(),
		"name":   name,
	}).Debug("process created")
	return newPid, nil
}

func (g *Gateway) safeCreateProcess(name string, now int64) (pid types.ProcessId, ct CommitType, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic creating process: %v", r)
		}
	}()
	return step.CreateProcess(g.state, name, now)
}

// Syscall runs one syscall to completion: it records the request in the
// SysLog, invokes step against a snapshot so a panic can be discarded
// without corrupting live state, appends every commit step produced, and
// records the response. Exactly one SysLog request and one SysLog response
// are recorded per call, regardless of outcome (spec.md §5's "every
// syscall produces exactly two events").
func (g *Gateway) Syscall(ctx context.Context, pid types.ProcessId, num syscall.Num, args syscall.Args, now int64) syscall.Result {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.sysLog.AppendRequest(pid, num, args, now)

	result, commits := g.runStep(ctx, pid, num, args, now)

	for _, c := range commits {
		g.commits.Append(c, now)
	}
	g.sysLog.AppendResponse(pid, num, result, now)

	logEntry := log.G(ctx).WithFields(log.Fields{
		"run_id":  g.runID.String(),
		"pid":     pid.String(),
		"syscall": num.String(),
		"status":  result.Status.String(),
	})
	if result.Status == syscall.Ok {
		logEntry.Trace("syscall completed")
	} else {
		logEntry.WithError(result.Err).Debug("syscall failed")
	}

	return result
}

// runStep snapshots state, invokes step, and discards the snapshot in favor
// of the mutated live state only on success. A panic inside step recovers
// here, restoring the snapshot and surfacing Fatal so a bug in one syscall
// can never corrupt the state seen by the next one (spec.md §4.6).
func (g *Gateway) runStep(ctx context.Context, pid types.ProcessId, num syscall.Num, args syscall.Args, now int64) (result syscall.Result, commits []CommitType) {
	snapshot := g.state.Clone()
	defer func() {
		if r := recover(); r != nil {
			g.state = snapshot
			log.G(ctx).WithFields(log.Fields{
				"run_id":  g.runID.String(),
				"pid":     pid.String(),
				"syscall": num.String(),
			}).Errorf("step panicked, state discarded: %v", r)
			result = syscall.Result{Status: syscall.Fatal, Err: fmt.Errorf("step panicked: %v", r)}
			commits = nil
		}
	}()
	result, commits = step.Step(g.state, pid, num, args, now)
	return result, commits
}

// State returns the live KernelState for read-only host introspection
// (e.g. a debugging CLI). Callers must not mutate it outside a Gateway
// call.
func (g *Gateway) State() *state.KernelState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// SysLog returns the accumulated syscall audit tape.
func (g *Gateway) SysLog() *SysLog {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sysLog
}

// CommitLog returns the accumulated hash-chained commit sequence.
func (g *Gateway) CommitLog() *CommitLog {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.commits
}
