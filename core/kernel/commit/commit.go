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

// Package commit defines CommitType, the tagged variant step emits to
// describe one state mutation. It lives below both step and axiom so that
// step can construct commits without importing the axiom package that logs
// them, and axiom can append them without importing the step package that
// produces them.
package commit

import "github.com/orbitkernel/kernel/core/kernel/types"

// Kind is the closed set of state mutations the kernel can emit.
type Kind uint8

const (
	Genesis Kind = iota
	ProcessCreated
	ProcessTerminated
	EndpointCreated
	EndpointDeleted
	CapGranted
	CapRevoked
	CapDerived
	MessageSent
	MessageReceived
)

// String names a Kind for logs and the canonical encoding.
func (k Kind) String() string {
	switch k {
	case Genesis:
		return "Genesis"
	case ProcessCreated:
		return "ProcessCreated"
	case ProcessTerminated:
		return "ProcessTerminated"
	case EndpointCreated:
		return "EndpointCreated"
	case EndpointDeleted:
		return "EndpointDeleted"
	case CapGranted:
		return "CapGranted"
	case CapRevoked:
		return "CapRevoked"
	case CapDerived:
		return "CapDerived"
	case MessageSent:
		return "MessageSent"
	case MessageReceived:
		return "MessageReceived"
	default:
		return "Unknown"
	}
}

// TransferredCap describes one capability riding along inside a MessageSent
// commit. It carries enough to re-synthesize a floating, undelivered
// capability entry during replay without referencing the live CapRef that
// minted it originally.
type TransferredCap struct {
	ObjectType  types.ObjectType
	ObjectID    uint64
	Permissions types.Permissions
	HasSlotHint bool
	SlotHint    types.CapSlot
}

// ReturnedCap describes the disposition of one in-flight capability that
// was still queued inside an endpoint at DELETE_ENDPOINT time: either
// returned to its original sender, or evicted permanently because the
// sender was no longer live.
type ReturnedCap struct {
	ToPid       types.ProcessId
	Evicted     bool
	ObjectType  types.ObjectType
	ObjectID    uint64
	Permissions types.Permissions
}

// Type is a tagged variant describing one state mutation. Only the fields
// relevant to Kind are meaningful; this mirrors the syscall.Args/Result
// flat-tagged-struct convention rather than an interface hierarchy, so
// that canonical encoding and apply_commit can both switch on a single
// Kind byte.
type Type struct {
	Kind Kind

	Pid            types.ProcessId
	Name           string
	EndpointID     types.EndpointId
	Owner          types.ProcessId
	Holder         types.ProcessId
	Slot           types.CapSlot
	ParentSlot     types.CapSlot
	HasParent      bool
	ObjectType     types.ObjectType
	ObjectID       uint64
	Permissions    types.Permissions
	From           types.ProcessId
	Tag            uint32
	Data           []byte
	SendSeq        uint64
	InstalledSlots []types.CapSlot

	// SrcPid/SrcSlot name the origin of a CAP_GRANT transfer; Holder/Slot
	// name its destination.
	SrcPid  types.ProcessId
	SrcSlot types.CapSlot

	// TransferredCaps rides along on a MessageSent commit produced by
	// SEND_CAP.
	TransferredCaps []TransferredCap

	// ReplyTo is the ephemeral reply endpoint a CALL attaches to its
	// outgoing message, absent for plain SEND/SEND_CAP.
	HasReplyTo bool
	ReplyTo    types.EndpointId

	// ReturnedCaps rides along on an EndpointDeleted commit: the queued
	// messages' transferred capabilities, drained back to their senders
	// (or evicted) when the endpoint is torn down.
	ReturnedCaps []ReturnedCap
}
