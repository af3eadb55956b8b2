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
	"encoding/binary"

	"github.com/orbitkernel/kernel/core/kernel/capability"
	"github.com/orbitkernel/kernel/core/kernel/commit"
	"github.com/orbitkernel/kernel/core/kernel/ipc"
	"github.com/orbitkernel/kernel/core/kernel/state"
	"github.com/orbitkernel/kernel/core/kernel/syscall"
	"github.com/orbitkernel/kernel/core/kernel/types"
)

func stepCapGrant(s *state.KernelState, pid types.ProcessId, args syscall.Args) (syscall.Result, []commit.Type) {
	dstSlot, granted, err := s.Caps.Grant(pid, args.Slot, args.DstPid, args.SlotHint)
	if err != nil {
		return failErr(err)
	}
	c := commit.Type{
		Kind:        commit.CapGranted,
		SrcPid:      pid,
		SrcSlot:     args.Slot,
		Holder:      args.DstPid,
		Slot:        dstSlot,
		ObjectType:  granted.ObjectType,
		ObjectID:    granted.ObjectID,
		Permissions: granted.Permissions,
	}
	return ok(syscall.Result{Slot: dstSlot}, c)
}

// stepCapRevoke backs both CAP_REVOKE and CAP_DELETE: spec.md §4.3 lists
// DELETE alongside GRANT/DERIVE/REVOKE/INSPECT/LIST as reusing the
// capability engine's revoke operation from §4.1, which defines no separate
// "delete" primitive. The two syscall numbers are therefore the same
// cascading revocation under two names.
func stepCapRevoke(s *state.KernelState, pid types.ProcessId, args syscall.Args) (syscall.Result, []commit.Type) {
	revoked, err := s.Caps.Revoke(pid, args.Slot)
	if err != nil {
		return failErr(err)
	}

	commits := make([]commit.Type, 0, len(revoked))
	for _, r := range revoked {
		commits = append(commits, commit.Type{
			Kind:        commit.CapRevoked,
			Holder:      r.Holder,
			Slot:        r.Slot,
			ObjectType:  r.ObjectType,
			ObjectID:    r.ObjectID,
			Permissions: r.Permissions,
		})
		if notified := notifyCapRevoked(s, r); notified != nil {
			commits = append(commits, *notified)
		}
	}
	return ok(syscall.Result{}, commits...)
}

// notifyCapRevoked delivers a MsgCapRevoked message to a holder's input
// endpoint. Per spec.md §4.1 this is best-effort: a full input queue drops
// the notification silently rather than failing the revocation that
// already succeeded, and a holder with no endpoint of its own simply never
// hears about it. The enqueue mutates that endpoint's queue and SendSeq
// counter, so it must itself be described by a MessageSent commit — the
// same shape a real SEND produces — or replay desyncs from the live state
// the instant a held endpoint is the notification target.
func notifyCapRevoked(s *state.KernelState, r capability.Revoked) *commit.Type {
	epID, ok := s.InputEndpoint(r.Holder)
	if !ok {
		return nil
	}
	ep, err := s.Endpoint(epID)
	if err != nil {
		return nil
	}
	data := make([]byte, 13)
	data[0] = byte(r.ObjectType)
	binary.BigEndian.PutUint32(data[1:5], uint32(r.Slot))
	binary.BigEndian.PutUint64(data[5:13], r.ObjectID)

	sent, err := ep.Enqueue(ipc.Message{From: types.HostPID, Tag: syscall.MsgCapRevoked, Data: data})
	if err != nil {
		return nil
	}
	return &commit.Type{
		Kind:       commit.MessageSent,
		From:       types.HostPID,
		EndpointID: epID,
		Tag:        syscall.MsgCapRevoked,
		Data:       data,
		SendSeq:    sent.SendSeq,
	}
}

func stepCapDerive(s *state.KernelState, pid types.ProcessId, args syscall.Args) (syscall.Result, []commit.Type) {
	slot, derived, err := s.Caps.Derive(pid, args.ParentSlot, args.Mask)
	if err != nil {
		return failErr(err)
	}
	c := commit.Type{
		Kind:        commit.CapDerived,
		Holder:      pid,
		ParentSlot:  args.ParentSlot,
		Slot:        slot,
		ObjectType:  derived.ObjectType,
		ObjectID:    derived.ObjectID,
		Permissions: derived.Permissions,
	}
	return ok(syscall.Result{Slot: slot}, c)
}

func stepCapInspect(s *state.KernelState, pid types.ProcessId, args syscall.Args) (syscall.Result, []commit.Type) {
	info, err := s.Caps.Inspect(pid, args.Slot)
	if err != nil {
		return failErr(err)
	}
	return ok(syscall.Result{CapInfos: []syscall.CapInfoResult{{
		Slot:        info.Slot,
		ObjectType:  info.ObjectType,
		ObjectID:    info.ObjectID,
		Permissions: info.Permissions,
		HasParent:   info.HasParent,
	}}})
}

func stepCapList(s *state.KernelState, pid types.ProcessId) (syscall.Result, []commit.Type) {
	infos := s.Caps.List(pid)
	out := make([]syscall.CapInfoResult, len(infos))
	for i, info := range infos {
		out[i] = syscall.CapInfoResult{
			Slot:        info.Slot,
			ObjectType:  info.ObjectType,
			ObjectID:    info.ObjectID,
			Permissions: info.Permissions,
			HasParent:   info.HasParent,
		}
	}
	return ok(syscall.Result{CapInfos: out})
}
