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

// Package syscall defines the kernel's stable ABI: the canonical syscall
// numbers from spec.md §6, the argument tuple every syscall is invoked
// with, and the discriminated SyscallResult every syscall returns.
//
// Numbers in this package are load-bearing wire format: changing one is a
// breaking ABI change for every guest built against it.
package syscall

import "github.com/orbitkernel/kernel/core/kernel/types"

// Num is a syscall number. Values in 0x0000-0x7FFF are reserved for the
// kernel ABI (spec.md §6).
type Num uint32

const (
	DEBUG        Num = 0x00
	EXIT         Num = 0x01
	YIELD        Num = 0x02
	TIME         Num = 0x03
	PS           Num = 0x04
	KILL         Num = 0x05
	CONSOLE_WR   Num = 0x06
	SEND         Num = 0x10
	RECV         Num = 0x11
	REPLY        Num = 0x12
	SEND_CAP     Num = 0x13
	CALL         Num = 0x14
	CREATE_EP    Num = 0x30
	DELETE_EP    Num = 0x31
	CAP_GRANT    Num = 0x20
	CAP_REVOKE   Num = 0x21
	CAP_DERIVE   Num = 0x22
	CAP_DELETE   Num = 0x23
	CAP_INSPECT  Num = 0x24
	CAP_LIST     Num = 0x25
)

// String names a syscall number for logs and SysLog payloads.
func (n Num) String() string {
	switch n {
	case DEBUG:
		return "DEBUG"
	case EXIT:
		return "EXIT"
	case YIELD:
		return "YIELD"
	case TIME:
		return "TIME"
	case PS:
		return "PS"
	case KILL:
		return "KILL"
	case CONSOLE_WR:
		return "CONSOLE_WR"
	case SEND:
		return "SEND"
	case RECV:
		return "RECV"
	case REPLY:
		return "REPLY"
	case SEND_CAP:
		return "SEND_CAP"
	case CALL:
		return "CALL"
	case CREATE_EP:
		return "CREATE_EP"
	case DELETE_EP:
		return "DELETE_EP"
	case CAP_GRANT:
		return "CAP_GRANT"
	case CAP_REVOKE:
		return "CAP_REVOKE"
	case CAP_DERIVE:
		return "CAP_DERIVE"
	case CAP_DELETE:
		return "CAP_DELETE"
	case CAP_INSPECT:
		return "CAP_INSPECT"
	case CAP_LIST:
		return "CAP_LIST"
	default:
		return "UNKNOWN"
	}
}

// Kernel notification message tags, from spec.md §6.
const (
	// MsgCapRevoked is enqueued on a holder's input endpoint whenever one
	// of its capabilities is cascaded away by CAP_REVOKE.
	MsgCapRevoked uint32 = 0x3001
)

// TransferArg describes one capability a SEND_CAP syscall asks to move
// along with the message: SrcSlot names it in the sender's own space.
type TransferArg struct {
	SrcSlot          types.CapSlot
	ReceiverSlotHint *types.CapSlot
}

// Args is the argument tuple passed to every syscall. Only the fields
// relevant to Num are read by step; the rest are zero-valued. This mirrors
// the "argument tuple" spec.md describes without requiring a type switch
// over a dozen small structs.
type Args struct {
	// Endpoint-related
	Endpoint types.EndpointId

	// Capability-related
	Slot       types.CapSlot
	ParentSlot types.CapSlot
	Mask       types.Permissions
	DstPid     types.ProcessId
	SlotHint   *types.CapSlot

	// IPC
	Tag       uint32
	Data      []byte
	Transfers []TransferArg
	ReplyTo   *types.EndpointId

	// Process control
	TargetPid types.ProcessId

	// DEBUG passthrough payload; CONSOLE_WR reads Data instead
	Text string
}

// Status is the discriminated outcome of a syscall, spanning the error
// taxonomy of spec.md §7 plus Ok/WouldBlock.
type Status uint8

const (
	Ok Status = iota
	WouldBlock
	NoCapability
	WrongObjectType
	InsufficientPermissions
	QueueFull
	OutOfResources
	OutOfIds
	MessageTooLarge
	TooManyCaps
	ProcessNotFound
	EndpointNotFound
	ProcessTerminated
	InvalidArgument
	Fatal
)

// String names a Status for logs and SysLog payloads.
func (s Status) String() string {
	switch s {
	case Ok:
		return "Ok"
	case WouldBlock:
		return "WouldBlock"
	case NoCapability:
		return "NoCapability"
	case WrongObjectType:
		return "WrongObjectType"
	case InsufficientPermissions:
		return "InsufficientPermissions"
	case QueueFull:
		return "QueueFull"
	case OutOfResources:
		return "OutOfResources"
	case OutOfIds:
		return "OutOfIds"
	case MessageTooLarge:
		return "MessageTooLarge"
	case TooManyCaps:
		return "TooManyCaps"
	case ProcessNotFound:
		return "ProcessNotFound"
	case EndpointNotFound:
		return "EndpointNotFound"
	case ProcessTerminated:
		return "ProcessTerminated"
	case InvalidArgument:
		return "InvalidArgument"
	case Fatal:
		return "Fatal"
	default:
		return "Unknown"
	}
}

// Result is what step returns to the Gateway for every syscall: a Status
// plus whatever result payload that syscall produces. Which typed fields
// are meaningful (one or several, e.g. Slot and Endpoint for CREATE_EP)
// depends on which syscall was issued; this keeps Result a single flat
// struct instead of an interface, matching Args.
type Result struct {
	Status Status
	// Err, when Status != Ok, carries the underlying Go error for host
	// logging. It is never part of the replay-relevant surface: two
	// replays of the same commit log always agree on Status even if error
	// string formatting ever changes.
	Err error

	Slot       types.CapSlot
	Endpoint   types.EndpointId
	Value      uint64
	Message    *RecvMessage
	CapInfos   []CapInfoResult
	Snapshot   []ProcessSnapshot
}

// RecvMessage is the RECV syscall's success payload.
type RecvMessage struct {
	From             types.ProcessId
	Tag              uint32
	Data             []byte
	InstalledCaps    []types.CapSlot
}

// CapInfoResult mirrors capability.Info without importing the capability
// package from the syscall ABI layer, keeping the ABI's dependency surface
// shallow.
type CapInfoResult struct {
	Slot        types.CapSlot
	ObjectType  types.ObjectType
	ObjectID    uint64
	Permissions types.Permissions
	HasParent   bool
}

// ProcessSnapshot mirrors state.Snapshot for the PS syscall's result.
type ProcessSnapshot struct {
	Pid     types.ProcessId
	Name    string
	State   types.ProcessState
	Created int64
}
