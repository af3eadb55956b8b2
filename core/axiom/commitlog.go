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
	"encoding/binary"

	"github.com/opencontainers/go-digest"

	"github.com/orbitkernel/kernel/core/kernel/types"
)

// zeroHash is the prev_hash of the genesis commit (seq 0).
var zeroHash digest.Digest

// Commit is one hash-chained entry in the CommitLog.
type Commit struct {
	Seq       uint64
	Timestamp int64
	Type      CommitType
	PrevHash  digest.Digest
	ThisHash  digest.Digest
}

// CommitLog is the append-only, hash-chained sequence of state mutations
// that is the sole input to Replay. Seq 0 is always Genesis with
// PrevHash == zeroHash.
type CommitLog struct {
	commits []Commit
}

// NewCommitLog returns a CommitLog seeded with the genesis commit, stamped
// with genesisTime.
func NewCommitLog(genesisTime int64) *CommitLog {
	l := &CommitLog{}
	l.append(Genesis, CommitType{Kind: Genesis}, genesisTime)
	return l
}

// NewCommitLogFromCommits rebuilds a CommitLog from a sequence a host
// loaded back from durable storage (see plugins/boltstore). The caller is
// responsible for calling VerifyIntegrity before trusting the result; this
// constructor does not re-derive anything, it only re-establishes the
// in-memory structure so Append can continue the chain.
func NewCommitLogFromCommits(commits []Commit) *CommitLog {
	out := make([]Commit, len(commits))
	copy(out, commits)
	return &CommitLog{commits: out}
}

// Append records a new commit of the given type, chained to the previous
// entry's hash, and returns it.
func (l *CommitLog) Append(t CommitType, now int64) Commit {
	return l.append(t.Kind, t, now)
}

func (l *CommitLog) append(kind CommitKind, t CommitType, now int64) Commit {
	seq := uint64(len(l.commits))
	prev := zeroHash
	if seq > 0 {
		prev = l.commits[seq-1].ThisHash
	}
	c := Commit{
		Seq:       seq,
		Timestamp: now,
		Type:      t,
		PrevHash:  prev,
		ThisHash:  hashCommit(prev, seq, t),
	}
	l.commits = append(l.commits, c)
	return c
}

// hashCommit computes this_hash = H(prev_hash ‖ seq ‖ canonical_encoding(type))
// using SHA-256 via opencontainers/go-digest, the hash function pinned in
// SPEC_FULL.md's Open Questions resolution.
func hashCommit(prev digest.Digest, seq uint64, t CommitType) digest.Digest {
	var buf []byte
	buf = append(buf, []byte(prev)...)
	var seqBytes [8]byte
	binary.BigEndian.PutUint64(seqBytes[:], seq)
	buf = append(buf, seqBytes[:]...)
	buf = append(buf, canonicalEncode(t)...)
	return digestAlgorithm.FromBytes(buf)
}

// canonicalEncode produces a deterministic byte layout for a CommitType
// with no implementation-defined fields: a fixed field order per Kind,
// using big-endian fixed-width integers throughout so that two hosts
// encoding the same CommitType always produce identical bytes.
func canonicalEncode(t CommitType) []byte {
	var buf []byte
	buf = append(buf, byte(t.Kind))

	putU64 := func(v uint64) {
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], v)
		buf = append(buf, b[:]...)
	}
	putU32 := func(v uint32) {
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], v)
		buf = append(buf, b[:]...)
	}
	putBool := func(v bool) {
		if v {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	}
	putPerms := func(p types.Permissions) {
		putBool(p.Read)
		putBool(p.Write)
		putBool(p.Grant)
	}
	putBytes := func(b []byte) {
		putU64(uint64(len(b)))
		buf = append(buf, b...)
	}
	putString := func(s string) {
		putBytes([]byte(s))
	}

	switch t.Kind {
	case Genesis:
		// no fields
	case ProcessCreated:
		putU64(uint64(t.Pid))
		putString(t.Name)
	case ProcessTerminated:
		putU64(uint64(t.Pid))
	case EndpointCreated:
		putU64(uint64(t.EndpointID))
		putU64(uint64(t.Owner))
	case EndpointDeleted:
		putU64(uint64(t.EndpointID))
		putU64(uint64(t.Owner))
	case CapGranted:
		putU64(uint64(t.SrcPid))
		putU32(uint32(t.SrcSlot))
		putU64(uint64(t.Holder))
		putU32(uint32(t.Slot))
		buf = append(buf, byte(t.ObjectType))
		putU64(t.ObjectID)
		putPerms(t.Permissions)
	case CapRevoked:
		putU64(uint64(t.Holder))
		putU32(uint32(t.Slot))
		buf = append(buf, byte(t.ObjectType))
		putU64(t.ObjectID)
	case CapDerived:
		putU64(uint64(t.Holder))
		putU32(uint32(t.Slot))
		putU32(uint32(t.ParentSlot))
		buf = append(buf, byte(t.ObjectType))
		putU64(t.ObjectID)
		putPerms(t.Permissions)
	case MessageSent:
		putU64(uint64(t.From))
		putU64(uint64(t.EndpointID))
		putU32(t.Tag)
		putU64(t.SendSeq)
		putBytes(t.Data)
		putBool(t.HasReplyTo)
		putU64(uint64(t.ReplyTo))
		putU64(uint64(len(t.TransferredCaps)))
		for _, tc := range t.TransferredCaps {
			buf = append(buf, byte(tc.ObjectType))
			putU64(tc.ObjectID)
			putPerms(tc.Permissions)
			putBool(tc.HasSlotHint)
			putU32(uint32(tc.SlotHint))
		}
	case MessageReceived:
		putU64(uint64(t.Holder))
		putU64(uint64(t.EndpointID))
		putU64(t.SendSeq)
		putU64(uint64(len(t.InstalledSlots)))
		for _, s := range t.InstalledSlots {
			putU32(uint32(s))
		}
	}
	if t.Kind == EndpointDeleted {
		putU64(uint64(len(t.ReturnedCaps)))
		for _, rc := range t.ReturnedCaps {
			putU64(uint64(rc.ToPid))
			putBool(rc.Evicted)
			buf = append(buf, byte(rc.ObjectType))
			putU64(rc.ObjectID)
			putPerms(rc.Permissions)
		}
	}
	return buf
}

// Commits returns the full commit sequence, in order.
func (l *CommitLog) Commits() []Commit {
	out := make([]Commit, len(l.commits))
	copy(out, l.commits)
	return out
}

// Len reports the number of commits, including the genesis commit.
func (l *CommitLog) Len() int {
	return len(l.commits)
}

// CurrentSeq reports the sequence number of the most recent commit.
func (l *CommitLog) CurrentSeq() uint64 {
	return uint64(len(l.commits) - 1)
}

// VerifyIntegrity walks the chain and confirms every linkage: seq 0 is
// Genesis with PrevHash == zeroHash, and every later entry's PrevHash
// equals its predecessor's ThisHash and rehashes to the recorded ThisHash.
func (l *CommitLog) VerifyIntegrity() bool {
	if len(l.commits) == 0 {
		return false
	}
	if l.commits[0].Seq != 0 || l.commits[0].Type.Kind != Genesis || l.commits[0].PrevHash != zeroHash {
		return false
	}
	for i, c := range l.commits {
		if c.Seq != uint64(i) {
			return false
		}
		prev := zeroHash
		if i > 0 {
			prev = l.commits[i-1].ThisHash
		}
		if c.PrevHash != prev {
			return false
		}
		if c.ThisHash != hashCommit(prev, c.Seq, c.Type) {
			return false
		}
	}
	return true
}

// Clone returns a deep-enough copy of l. The gateway's panic-discard
// snapshot clones only kernel state, not the log.
func (l *CommitLog) Clone() *CommitLog {
	out := &CommitLog{commits: make([]Commit, len(l.commits))}
	copy(out.commits, l.commits)
	return out
}
