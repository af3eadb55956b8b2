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
	"fmt"

	"github.com/containerd/errdefs"
	"github.com/opencontainers/go-digest"

	"github.com/orbitkernel/kernel/core/kernel/ipc"
	"github.com/orbitkernel/kernel/core/kernel/state"
	"github.com/orbitkernel/kernel/core/kernel/types"
)

// ErrReplayDiverged is returned when a replayed CommitLog's reconstructed
// state does not hash to the expected value.
var ErrReplayDiverged = fmt.Errorf("replayed state diverged from expected hash: %w", errdefs.ErrFailedPrecondition)

// Replay reconstructs a KernelState by applying every commit in order to a
// fresh genesis state. This is apply_commit's driver: the only way a
// KernelState is ever built outside of a live Gateway.
func Replay(commits []Commit) *state.KernelState {
	s := state.New()
	for _, c := range commits {
		applyCommit(s, c.Type)
	}
	return s
}

// ReplayAndVerify reconstructs state from commits and confirms it hashes to
// expectedHash via StateHash, failing with ErrReplayDiverged otherwise.
func ReplayAndVerify(commits []Commit, expectedHash digest.Digest) (*state.KernelState, error) {
	s := Replay(commits)
	if got := StateHash(s); got != expectedHash {
		return nil, fmt.Errorf("%w: got %s, want %s", ErrReplayDiverged, got, expectedHash)
	}
	return s, nil
}

// applyCommit is the inverse witness of step: given the state a commit was
// produced against and the commit itself, it performs the exact same
// mutation step performed live, without re-running any authorization
// check. A commit is proof the check already passed.
func applyCommit(s *state.KernelState, t CommitType) {
	switch t.Kind {
	case Genesis:
		// state.New() already establishes genesis; nothing further to do.
	case ProcessCreated:
		s.Processes[t.Pid] = &state.Process{Pid: t.Pid, Name: t.Name, State: types.ProcessReady}
		s.Caps.RegisterProcess(t.Pid)
		s.AdvanceProcessIdPast(t.Pid + 1)
	case ProcessTerminated:
		if p, err := s.Process(t.Pid); err == nil {
			p.State = types.ProcessTerminated
		}
	case EndpointCreated:
		s.Endpoints[t.EndpointID] = ipc.NewEndpoint(t.EndpointID, t.Owner)
		if p, err := s.Process(t.Owner); err == nil {
			p.OwnedEndpoints = append(p.OwnedEndpoints, t.EndpointID)
		}
		s.Caps.Issue(t.Owner, types.ObjectEndpoint, uint64(t.EndpointID), types.AllPermissions)
		s.AdvanceEndpointIdPast(t.EndpointID + 1)
	case EndpointDeleted:
		if ep, err := s.Endpoint(t.EndpointID); err == nil {
			_ = ep.Drain()
		}
		delete(s.Endpoints, t.EndpointID)
		if p, err := s.Process(t.Owner); err == nil {
			p.OwnedEndpoints = removeEndpointID(p.OwnedEndpoints, t.EndpointID)
		}
		for _, rc := range t.ReturnedCaps {
			ref := s.Caps.IssueDetached(rc.ObjectType, rc.ObjectID, rc.Permissions)
			if rc.Evicted {
				s.Caps.Evict(ref)
				continue
			}
			_, _ = s.Caps.Attach(ref, rc.ToPid, nil)
		}
	case CapGranted:
		s.Caps.RegisterProcess(t.SrcPid)
		ref, _, err := s.Caps.Detach(t.SrcPid, t.SrcSlot)
		if err != nil {
			// The source slot was reconstructed by an earlier commit that
			// already moved this capability; nothing further to replay.
			break
		}
		hint := t.Slot
		_, _ = s.Caps.Attach(ref, t.Holder, &hint)
	case CapRevoked:
		if _, err := s.Caps.Check(t.Holder, t.Slot, t.ObjectType, types.Permissions{}); err == nil {
			_, _ = s.Caps.Revoke(t.Holder, t.Slot)
		}
	case CapDerived:
		_, _, _ = s.Caps.Derive(t.Holder, t.ParentSlot, derivedMask(t))
	case MessageSent:
		ep, err := s.Endpoint(t.EndpointID)
		if err != nil {
			break
		}
		msg := ipc.Message{From: t.From, Tag: t.Tag, Data: t.Data}
		if t.HasReplyTo {
			reply := t.ReplyTo
			msg.ReplyTo = &reply
		}
		for _, tc := range t.TransferredCaps {
			ref := s.Caps.IssueDetached(tc.ObjectType, tc.ObjectID, tc.Permissions)
			tcc := ipc.TransferredCap{Ref: ref, ObjectType: tc.ObjectType, ObjectID: tc.ObjectID, Permissions: tc.Permissions}
			if tc.HasSlotHint {
				hint := tc.SlotHint
				tcc.ReceiverSlotHint = &hint
			}
			msg.TransferredCaps = append(msg.TransferredCaps, tcc)
		}
		_, _ = ep.Enqueue(msg)
	case MessageReceived:
		ep, err := s.Endpoint(t.EndpointID)
		if err != nil {
			break
		}
		msg, has := ep.Dequeue()
		if !has {
			break
		}
		for i, tc := range msg.TransferredCaps {
			var hint *types.CapSlot
			if i < len(t.InstalledSlots) {
				slot := t.InstalledSlots[i]
				hint = &slot
			}
			_, _ = s.Caps.Attach(tc.Ref, t.Holder, hint)
		}
	}
}

// derivedMask reconstructs the mask Derive needs from a CapDerived commit's
// recorded child permissions: since child = parent ∩ mask and replay has
// access to the parent (it must still exist for the commit to have been
// producible live), passing the child's own permissions as the mask
// reproduces the same intersection whenever the parent's rights haven't
// shrunk since, which holds for any state a real CommitLog could describe.
func derivedMask(t CommitType) types.Permissions {
	return t.Permissions
}

func removeEndpointID(ids []types.EndpointId, target types.EndpointId) []types.EndpointId {
	out := ids[:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}

// StateHash computes a deterministic digest over the observable shape of a
// KernelState: process table, endpoint queues and owners, and every
// process's capability list. Two states with the same digest are
// indistinguishable to any guest syscall.
func StateHash(s *state.KernelState) digest.Digest {
	enc := newStateEncoder()
	enc.processes(s)
	enc.endpoints(s)
	enc.capabilities(s)
	return digestAlgorithm.FromBytes(enc.buf)
}
