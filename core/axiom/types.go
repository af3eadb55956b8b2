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

// Package axiom is the verification layer: the append-only SysLog and
// hash-chained CommitLog, the Gateway that composes them with the kernel's
// step function, and the Replay machinery that re-derives state from a
// commit sequence. Nothing here decides whether a syscall is authorized;
// it only records what step decided and makes that record replayable.
package axiom

import (
	"github.com/opencontainers/go-digest"

	"github.com/orbitkernel/kernel/core/kernel/commit"
	"github.com/orbitkernel/kernel/core/kernel/syscall"
	"github.com/orbitkernel/kernel/core/kernel/types"
)

// CommitKind and CommitType are re-exported from core/kernel/commit so
// that callers of this package never need to import the lower-level
// commit package directly, the way orbital-axiom's Rust crate re-exports
// its types submodule at the crate root.
type (
	CommitKind = commit.Kind
	CommitType = commit.Type
)

const (
	Genesis            = commit.Genesis
	ProcessCreated     = commit.ProcessCreated
	ProcessTerminated  = commit.ProcessTerminated
	EndpointCreated    = commit.EndpointCreated
	EndpointDeleted    = commit.EndpointDeleted
	CapGranted         = commit.CapGranted
	CapRevoked         = commit.CapRevoked
	CapDerived         = commit.CapDerived
	MessageSent        = commit.MessageSent
	MessageReceived    = commit.MessageReceived
)

// SysEventKind distinguishes a syscall's entry from its exit in the
// SysLog.
type SysEventKind uint8

const (
	Request SysEventKind = iota
	Response
)

// String names a SysEventKind.
func (k SysEventKind) String() string {
	if k == Request {
		return "Request"
	}
	return "Response"
}

// SysEvent is one entry in the SysLog: a syscall's request or its
// response, never both.
type SysEvent struct {
	ID        uint64
	Timestamp int64
	Pid       types.ProcessId
	Num       syscall.Num
	Kind      SysEventKind

	// Args is populated on Request events.
	Args syscall.Args
	// Result is populated on Response events.
	Result syscall.Result
}

// digestAlgorithm pins the hash function used throughout the CommitLog's
// chain (spec.md §4.5 / §9 Open Questions): SHA-256 via
// opencontainers/go-digest, the same content-addressing primitive
// containerd uses for blobs and diff ids.
const digestAlgorithm = digest.SHA256
