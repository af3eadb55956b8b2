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
	"github.com/orbitkernel/kernel/core/kernel/ipc"
	"github.com/orbitkernel/kernel/core/kernel/state"
	"github.com/orbitkernel/kernel/core/kernel/syscall"
	"github.com/orbitkernel/kernel/core/kernel/types"
)

// checkEndpointCap resolves args.Slot to a capability that must name
// args.Endpoint as its object, with at least needed permissions.
func checkEndpointCap(s *state.KernelState, pid types.ProcessId, slot types.CapSlot, endpoint types.EndpointId, needed types.Permissions) error {
	target, err := s.Caps.Check(pid, slot, types.ObjectEndpoint, needed)
	if err != nil {
		return err
	}
	if target.ObjectID != uint64(endpoint) {
		return errNotEndpointOwner
	}
	return nil
}

// detachTransfers moves every capability args.Transfers names out of pid's
// space, failing and rolling back anything already detached if any one of
// them cannot be moved. This is the "all or none" half of SEND_CAP's
// transfer guarantee (spec.md §4.2); Enqueue failing after a successful
// detach is the other half, handled by the caller.
func detachTransfers(s *state.KernelState, pid types.ProcessId, transfers []syscall.TransferArg) ([]ipc.TransferredCap, []commit.TransferredCap, error) {
	if len(transfers) > types.MaxCapsPerMessage {
		return nil, nil, errTooManyTransfersWrapped(len(transfers))
	}

	out := make([]ipc.TransferredCap, 0, len(transfers))
	commitCaps := make([]commit.TransferredCap, 0, len(transfers))
	for i, t := range transfers {
		ref, detached, err := s.Caps.Detach(pid, t.SrcSlot)
		if err != nil {
			rollbackDetach(s, pid, transfers[:i], out)
			return nil, nil, err
		}
		out = append(out, ipc.TransferredCap{
			Ref:              ref,
			ObjectType:       detached.ObjectType,
			ObjectID:         detached.ObjectID,
			Permissions:      detached.Permissions,
			ReceiverSlotHint: t.ReceiverSlotHint,
		})
		cc := commit.TransferredCap{ObjectType: detached.ObjectType, ObjectID: detached.ObjectID, Permissions: detached.Permissions}
		if t.ReceiverSlotHint != nil {
			cc.HasSlotHint = true
			cc.SlotHint = *t.ReceiverSlotHint
		}
		commitCaps = append(commitCaps, cc)
	}
	return out, commitCaps, nil
}

func rollbackDetach(s *state.KernelState, pid types.ProcessId, transfers []syscall.TransferArg, detached []ipc.TransferredCap) {
	for i, d := range detached {
		s.Caps.CancelDetach(d.Ref, pid, transfers[i].SrcSlot)
	}
}

// stepSend implements both SEND and SEND_CAP: withCaps selects whether
// args.Transfers is consulted.
func stepSend(s *state.KernelState, pid types.ProcessId, args syscall.Args, now int64, withCaps bool) (syscall.Result, []commit.Type) {
	if err := checkEndpointCap(s, pid, args.Slot, args.Endpoint, types.Permissions{Write: true}); err != nil {
		return failErr(err)
	}
	ep, err := s.Endpoint(args.Endpoint)
	if err != nil {
		return failErr(err)
	}

	var transferred []ipc.TransferredCap
	var commitCaps []commit.TransferredCap
	if withCaps && len(args.Transfers) > 0 {
		detached, detachedCommits, err := detachTransfers(s, pid, args.Transfers)
		if err != nil {
			return failErr(err)
		}
		transferred, commitCaps = detached, detachedCommits
	}

	msg := ipc.Message{From: pid, Tag: args.Tag, Data: args.Data, TransferredCaps: transferred, Timestamp: now}
	sent, err := ep.Enqueue(msg)
	if err != nil {
		rollbackDetach(s, pid, args.Transfers, transferred)
		return failErr(err)
	}

	c := commit.Type{
		Kind:            commit.MessageSent,
		From:            pid,
		EndpointID:      args.Endpoint,
		Tag:             args.Tag,
		Data:            args.Data,
		SendSeq:         sent.SendSeq,
		TransferredCaps: commitCaps,
	}
	return ok(syscall.Result{}, c)
}

// stepCall is SEND followed by the automatic creation of a one-shot reply
// endpoint owned by the caller: having received the call, the callee's
// implicit authorization to use it is proof of receipt, not a capability
// in its own slot table (spec.md §4.2's "implicit reply capability").
func stepCall(s *state.KernelState, pid types.ProcessId, args syscall.Args, now int64) (syscall.Result, []commit.Type) {
	if err := checkEndpointCap(s, pid, args.Slot, args.Endpoint, types.Permissions{Write: true}); err != nil {
		return failErr(err)
	}
	ep, err := s.Endpoint(args.Endpoint)
	if err != nil {
		return failErr(err)
	}
	if err := s.CanCreateEndpoint(pid); err != nil {
		return failErr(err)
	}

	replyID, err := s.AllocEndpointId()
	if err != nil {
		return failErr(err)
	}
	s.Endpoints[replyID] = ipc.NewEndpoint(replyID, pid)
	p, _ := s.Process(pid)
	p.OwnedEndpoints = append(p.OwnedEndpoints, replyID)

	msg := ipc.Message{From: pid, Tag: args.Tag, Data: args.Data, ReplyTo: &replyID, Timestamp: now}
	sent, err := ep.Enqueue(msg)
	if err != nil {
		delete(s.Endpoints, replyID)
		p.OwnedEndpoints = removeEndpoint(p.OwnedEndpoints, replyID)
		return failErr(err)
	}
	replySlot := s.Caps.Issue(pid, types.ObjectEndpoint, uint64(replyID), types.AllPermissions)

	commits := []commit.Type{
		{Kind: commit.EndpointCreated, EndpointID: replyID, Owner: pid},
		{
			Kind:       commit.MessageSent,
			From:       pid,
			EndpointID: args.Endpoint,
			Tag:        args.Tag,
			Data:       args.Data,
			SendSeq:    sent.SendSeq,
			HasReplyTo: true,
			ReplyTo:    replyID,
		},
	}
	return ok(syscall.Result{Slot: replySlot, Endpoint: replyID}, commits...)
}

// stepReply sends on args.ReplyTo using the implicit authorization a
// process gains by having received a CALL naming that endpoint: no
// capability lookup in pid's own space is performed, matching "implicit
// reply cap in message" from spec.md §4.2.
func stepReply(s *state.KernelState, pid types.ProcessId, args syscall.Args, now int64) (syscall.Result, []commit.Type) {
	if args.ReplyTo == nil {
		return failErr(errNoReplyTarget)
	}
	ep, err := s.Endpoint(*args.ReplyTo)
	if err != nil {
		return failErr(err)
	}

	msg := ipc.Message{From: pid, Tag: args.Tag, Data: args.Data, Timestamp: now}
	sent, err := ep.Enqueue(msg)
	if err != nil {
		return failErr(err)
	}

	c := commit.Type{
		Kind:       commit.MessageSent,
		From:       pid,
		EndpointID: *args.ReplyTo,
		Tag:        args.Tag,
		Data:       args.Data,
		SendSeq:    sent.SendSeq,
	}
	return ok(syscall.Result{}, c)
}

// stepRecv dequeues the head message from args.Endpoint, which pid must
// both own and hold a read-permitted capability to. An empty queue is
// WouldBlock, not an error: the caller is expected to retry, not to treat
// this as a fault.
func stepRecv(s *state.KernelState, pid types.ProcessId, args syscall.Args) (syscall.Result, []commit.Type) {
	if err := checkEndpointCap(s, pid, args.Slot, args.Endpoint, types.Permissions{Read: true}); err != nil {
		return failErr(err)
	}
	ep, err := s.Endpoint(args.Endpoint)
	if err != nil {
		return failErr(err)
	}
	if ep.Owner != pid {
		return failErr(errNotEndpointOwner)
	}

	msg, has := ep.Dequeue()
	if !has {
		return fail(syscall.WouldBlock, nil)
	}

	installed := make([]types.CapSlot, 0, len(msg.TransferredCaps))
	for _, tc := range msg.TransferredCaps {
		slot, err := s.Caps.Attach(tc.Ref, pid, tc.ReceiverSlotHint)
		if err != nil {
			continue
		}
		installed = append(installed, slot)
	}

	result := syscall.Result{Message: &syscall.RecvMessage{
		From:          msg.From,
		Tag:           msg.Tag,
		Data:          msg.Data,
		InstalledCaps: installed,
	}}
	if msg.ReplyTo != nil {
		result.Endpoint = *msg.ReplyTo
	}

	c := commit.Type{
		Kind:           commit.MessageReceived,
		Holder:         pid,
		EndpointID:     args.Endpoint,
		SendSeq:        msg.SendSeq,
		InstalledSlots: installed,
	}
	return ok(result, c)
}
