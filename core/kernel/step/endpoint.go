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

// stepCreateEndpoint allocates a new endpoint owned by pid and mints the
// owning capability directly into pid's space. The initial ownership grant
// is not itself a CapGranted commit — CapGranted is reserved for the
// explicit CAP_GRANT syscall moving an existing capability between
// processes — so EndpointCreated is the only commit this emits.
func stepCreateEndpoint(s *state.KernelState, pid types.ProcessId) (syscall.Result, []commit.Type) {
	if err := s.CanCreateEndpoint(pid); err != nil {
		return failErr(err)
	}
	if _, err := s.LiveProcess(pid); err != nil {
		return failErr(err)
	}
	id, err := s.AllocEndpointId()
	if err != nil {
		return failErr(err)
	}

	s.Endpoints[id] = ipc.NewEndpoint(id, pid)
	p, _ := s.Process(pid)
	p.OwnedEndpoints = append(p.OwnedEndpoints, id)
	slot := s.Caps.Issue(pid, types.ObjectEndpoint, uint64(id), types.AllPermissions)

	c := commit.Type{Kind: commit.EndpointCreated, EndpointID: id, Owner: pid}
	return ok(syscall.Result{Slot: slot, Endpoint: id}, c)
}

// stepDeleteEndpoint requires the caller to both own the endpoint and hold
// a Grant-permitted capability naming it. Every message still queued is
// drained; any capability it was carrying is returned to its original
// sender (into the sender's lowest free slot) if that sender is still
// live, otherwise evicted.
func stepDeleteEndpoint(s *state.KernelState, pid types.ProcessId, args syscall.Args) (syscall.Result, []commit.Type) {
	target, err := s.Caps.Check(pid, args.Slot, types.ObjectEndpoint, types.Permissions{Grant: true})
	if err != nil {
		return failErr(err)
	}
	if target.ObjectID != uint64(args.Endpoint) {
		return failErr(errNotEndpointOwner)
	}
	ep, err := s.Endpoint(args.Endpoint)
	if err != nil {
		return failErr(err)
	}
	if ep.Owner != pid {
		return failErr(errNotEndpointOwner)
	}

	drained := ep.Drain()
	var returned []commit.ReturnedCap
	for _, msg := range drained {
		for _, tc := range msg.TransferredCaps {
			returned = append(returned, returnOrEvict(s, msg.From, tc))
		}
	}

	delete(s.Endpoints, args.Endpoint)
	if p, err := s.Process(pid); err == nil {
		p.OwnedEndpoints = removeEndpoint(p.OwnedEndpoints, args.Endpoint)
	}

	c := commit.Type{
		Kind:         commit.EndpointDeleted,
		EndpointID:   args.Endpoint,
		Owner:        pid,
		ReturnedCaps: returned,
	}
	return ok(syscall.Result{}, c)
}

func returnOrEvict(s *state.KernelState, sender types.ProcessId, tc ipc.TransferredCap) commit.ReturnedCap {
	if _, err := s.LiveProcess(sender); err == nil {
		if _, err := s.Caps.Attach(tc.Ref, sender, nil); err == nil {
			return commit.ReturnedCap{
				ToPid:       sender,
				ObjectType:  tc.ObjectType,
				ObjectID:    tc.ObjectID,
				Permissions: tc.Permissions,
			}
		}
	}
	s.Caps.Evict(tc.Ref)
	return commit.ReturnedCap{
		ToPid:       sender,
		Evicted:     true,
		ObjectType:  tc.ObjectType,
		ObjectID:    tc.ObjectID,
		Permissions: tc.Permissions,
	}
}

func removeEndpoint(ids []types.EndpointId, target types.EndpointId) []types.EndpointId {
	out := ids[:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}
