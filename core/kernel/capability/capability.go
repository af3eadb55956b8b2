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

// Package capability implements the kernel's single authorization gate:
// unforgeable capability tokens, their derivation, transfer, revocation and
// the axiom_check performed by every syscall that touches a kernel object.
//
// A Capability never exists outside of a Space: there is no way to
// construct one that isn't already installed in some process's slot table,
// which is what makes the token unforgeable from userspace's perspective.
package capability

import (
	"sort"

	"github.com/orbitkernel/kernel/core/kernel/types"
)

// capID is the global, cross-process identity of one capability instance.
// Two slots never share a capID: transfer moves the capID between slots,
// it never duplicates it.
type capID uint64

// entry is the arena-owned record for one capability instance. Entries are
// never moved once minted; slots index into this table, so a transfer only
// ever rewrites which (pid, slot) points at an entry's capID.
type entry struct {
	id          capID
	objectType  types.ObjectType
	objectID    uint64
	permissions types.Permissions
	parent      *capID
	holder      types.ProcessId
	slot        types.CapSlot
	live        bool
	inFlight    bool
}

// CapRef is an opaque, unforgeable reference to a capability instance that
// has been detached from a sender's space (e.g. for IPC transfer) but not
// yet attached to a receiver's. Only Space can mint or consume one, so a
// holder of a CapRef cannot use it to touch a kernel object directly — it
// must first Attach it into some process's slot table.
type CapRef struct{ id capID }

// Capability is a read-only, copyable view of a capability token. It is
// returned by lookups but cannot itself be installed anywhere: only Space's
// mutating methods can do that.
type Capability struct {
	ObjectType  types.ObjectType
	ObjectID    uint64
	Permissions types.Permissions
}

// Info is the read-only metadata returned by Inspect and List. Exposing
// Info instead of Capability lets callers see slot and parentage without
// being able to forge a new token from it.
type Info struct {
	Slot        types.CapSlot
	ObjectType  types.ObjectType
	ObjectID    uint64
	Permissions types.Permissions
	HasParent   bool
}

// Revoked describes one (process, slot) pair whose capability was removed
// by a Revoke call, either the target itself or a transitive descendant.
// The step function uses this to decide who gets a CapRevoked notification
// and what CapRevoked commits to emit.
type Revoked struct {
	Holder      types.ProcessId
	Slot        types.CapSlot
	ObjectType  types.ObjectType
	ObjectID    uint64
	Permissions types.Permissions
}

// Space is the kernel-wide capability arena: KernelState's single owner of
// every capability instance and every process's slot table. See spec.md §9
// ("Cyclic ownership") for why this is an arena-plus-index rather than a
// graph of owning references.
type Space struct {
	entries map[capID]*entry
	nextID  capID
	// slots maps a process to its sparse slot -> capID table.
	slots map[types.ProcessId]map[types.CapSlot]capID
}

// NewSpace returns an empty capability arena.
func NewSpace() *Space {
	return &Space{
		entries: make(map[capID]*entry),
		slots:   make(map[types.ProcessId]map[types.CapSlot]capID),
	}
}

// RegisterProcess allocates an empty slot table for pid. Calling it twice
// for the same pid is a no-op; it never discards an existing table.
func (s *Space) RegisterProcess(pid types.ProcessId) {
	if _, ok := s.slots[pid]; !ok {
		s.slots[pid] = make(map[types.CapSlot]capID)
	}
}

func (s *Space) nextFreeSlot(pid types.ProcessId) types.CapSlot {
	table := s.slots[pid]
	for slot := types.CapSlot(0); ; slot++ {
		if _, occupied := table[slot]; !occupied {
			return slot
		}
	}
}

// Clone returns a deep copy of s: every entry and every process's slot
// table is copied, so mutating the clone never affects s. Used by
// state.KernelState.Clone for the gateway's panic-discard snapshot.
func (s *Space) Clone() *Space {
	out := &Space{
		entries: make(map[capID]*entry, len(s.entries)),
		nextID:  s.nextID,
		slots:   make(map[types.ProcessId]map[types.CapSlot]capID, len(s.slots)),
	}
	for id, e := range s.entries {
		cp := *e
		out.entries[id] = &cp
	}
	for pid, table := range s.slots {
		cpTable := make(map[types.CapSlot]capID, len(table))
		for slot, id := range table {
			cpTable[slot] = id
		}
		out.slots[pid] = cpTable
	}
	return out
}

// Issue mints a brand-new root capability (no parent) directly into pid's
// next free slot. Used when the kernel creates an object on a process's
// behalf (e.g. CREATE_ENDPOINT granting the owner cap).
func (s *Space) Issue(pid types.ProcessId, objType types.ObjectType, objID uint64, perms types.Permissions) types.CapSlot {
	s.RegisterProcess(pid)
	slot := s.nextFreeSlot(pid)
	id := s.nextID
	s.nextID++
	s.entries[id] = &entry{
		id:          id,
		objectType:  objType,
		objectID:    objID,
		permissions: perms,
		holder:      pid,
		slot:        slot,
		live:        true,
	}
	s.slots[pid][slot] = id
	return slot
}

// IssueDetached mints a floating capability that belongs to no process's
// slot table yet, for Replay to re-synthesize a capability that a MessageSent
// commit recorded as in-flight. The caller attaches it with Attach once it
// replays the corresponding MessageReceived, or discards it untouched if the
// message's endpoint is deleted before delivery.
func (s *Space) IssueDetached(objType types.ObjectType, objID uint64, perms types.Permissions) CapRef {
	id := s.nextID
	s.nextID++
	s.entries[id] = &entry{
		id:          id,
		objectType:  objType,
		objectID:    objID,
		permissions: perms,
		live:        true,
		inFlight:    true,
	}
	return CapRef{id: id}
}

func (s *Space) lookup(pid types.ProcessId, slot types.CapSlot) (*entry, error) {
	table, ok := s.slots[pid]
	if !ok {
		return nil, errProcessUnknown(pid)
	}
	id, ok := table[slot]
	if !ok {
		return nil, errSlotEmpty(slot)
	}
	e, ok := s.entries[id]
	if !ok || !e.live {
		return nil, errSlotEmpty(slot)
	}
	return e, nil
}

// Check is axiom_check: the single authorization gate consulted by every
// syscall that touches a kernel object. It verifies the slot is occupied,
// the object type matches, and the held permissions are a superset of
// needed.
func (s *Space) Check(pid types.ProcessId, slot types.CapSlot, objType types.ObjectType, needed types.Permissions) (Capability, error) {
	e, err := s.lookup(pid, slot)
	if err != nil {
		return Capability{}, err
	}
	if e.objectType != objType {
		return Capability{}, errWrongType(slot, objType, e.objectType)
	}
	if !e.permissions.Subset(needed) {
		return Capability{}, errInsufficient(slot, needed, e.permissions)
	}
	return Capability{ObjectType: e.objectType, ObjectID: e.objectID, Permissions: e.permissions}, nil
}

// Derive creates a child capability in pid's own space from parentSlot,
// with permissions = parent.Permissions ∩ mask. The child records its
// parent so Revoke can cascade.
func (s *Space) Derive(pid types.ProcessId, parentSlot types.CapSlot, mask types.Permissions) (types.CapSlot, Capability, error) {
	parent, err := s.lookup(pid, parentSlot)
	if err != nil {
		return 0, Capability{}, err
	}
	childPerms := parent.permissions.Intersect(mask)
	parentID := parent.id

	id := s.nextID
	s.nextID++
	slot := s.nextFreeSlot(pid)
	s.entries[id] = &entry{
		id:          id,
		objectType:  parent.objectType,
		objectID:    parent.objectID,
		permissions: childPerms,
		parent:      &parentID,
		holder:      pid,
		slot:        slot,
		live:        true,
	}
	s.slots[pid][slot] = id
	return slot, Capability{ObjectType: parent.objectType, ObjectID: parent.objectID, Permissions: childPerms}, nil
}

// Grant moves (not copies) the capability at srcSlot in srcPid's space into
// dstPid's space. Requires Grant permission on the source capability. If
// hint names an already-occupied slot in the destination, the next free
// slot is used instead and returned to the caller.
func (s *Space) Grant(srcPid types.ProcessId, srcSlot types.CapSlot, dstPid types.ProcessId, hint *types.CapSlot) (types.CapSlot, Capability, error) {
	src, err := s.lookup(srcPid, srcSlot)
	if err != nil {
		return 0, Capability{}, err
	}
	if !src.permissions.Grant {
		return 0, Capability{}, errNoGrantPermission(srcSlot)
	}

	s.RegisterProcess(dstPid)
	dstTable := s.slots[dstPid]

	dstSlot := s.nextFreeSlot(dstPid)
	if hint != nil {
		if _, occupied := dstTable[*hint]; !occupied {
			dstSlot = *hint
		}
	}

	delete(s.slots[srcPid], srcSlot)
	dstTable[dstSlot] = src.id
	src.holder = dstPid
	src.slot = dstSlot

	return dstSlot, Capability{ObjectType: src.objectType, ObjectID: src.objectID, Permissions: src.permissions}, nil
}

// Revoke removes the capability at (pid, slot) and every transitive
// descendant from every process space that holds one. It is idempotent:
// revoking an already-empty slot returns ErrNoCapability and mutates
// nothing. Self-revocation is permitted. The returned slice is ordered by
// (Holder, Slot) ascending for determinism.
func (s *Space) Revoke(pid types.ProcessId, slot types.CapSlot) ([]Revoked, error) {
	root, err := s.lookup(pid, slot)
	if err != nil {
		return nil, err
	}

	toRemove := s.collectDescendants(root.id)

	revoked := make([]Revoked, 0, len(toRemove))
	for _, id := range toRemove {
		e := s.entries[id]
		if e == nil || !e.live {
			continue
		}
		revoked = append(revoked, Revoked{
			Holder:      e.holder,
			Slot:        e.slot,
			ObjectType:  e.objectType,
			ObjectID:    e.objectID,
			Permissions: e.permissions,
		})
		delete(s.slots[e.holder], e.slot)
		e.live = false
		delete(s.entries, id)
	}

	sort.Slice(revoked, func(i, j int) bool {
		if revoked[i].Holder != revoked[j].Holder {
			return revoked[i].Holder < revoked[j].Holder
		}
		return revoked[i].Slot < revoked[j].Slot
	})

	return revoked, nil
}

// collectDescendants returns root and every entry whose parent chain
// reaches root, in an arbitrary but complete order.
func (s *Space) collectDescendants(root capID) []capID {
	children := make(map[capID][]capID)
	for id, e := range s.entries {
		if e.parent != nil {
			children[*e.parent] = append(children[*e.parent], id)
		}
	}

	var out []capID
	queue := []capID{root}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		out = append(out, id)
		queue = append(queue, children[id]...)
	}
	return out
}

// Inspect returns read-only metadata for (pid, slot) with no way to
// elevate permissions from the result.
func (s *Space) Inspect(pid types.ProcessId, slot types.CapSlot) (Info, error) {
	e, err := s.lookup(pid, slot)
	if err != nil {
		return Info{}, err
	}
	return Info{
		Slot:        e.slot,
		ObjectType:  e.objectType,
		ObjectID:    e.objectID,
		Permissions: e.permissions,
		HasParent:   e.parent != nil,
	}, nil
}

// List returns every live capability in pid's space, sorted by slot.
func (s *Space) List(pid types.ProcessId) []Info {
	table := s.slots[pid]
	out := make([]Info, 0, len(table))
	for slot, id := range table {
		e := s.entries[id]
		if e == nil || !e.live {
			continue
		}
		out = append(out, Info{
			Slot:        slot,
			ObjectType:  e.objectType,
			ObjectID:    e.objectID,
			Permissions: e.permissions,
			HasParent:   e.parent != nil,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slot < out[j].Slot })
	return out
}

// Detach removes the capability at (pid, slot) from pid's space without
// revoking it, returning an opaque CapRef the caller must either Attach to
// some process's space or CancelDetach back to the original holder. Used
// by SEND/SEND_CAP to move a capability into an in-flight message.
func (s *Space) Detach(pid types.ProcessId, slot types.CapSlot) (CapRef, Capability, error) {
	e, err := s.lookup(pid, slot)
	if err != nil {
		return CapRef{}, Capability{}, err
	}
	delete(s.slots[pid], slot)
	e.inFlight = true
	return CapRef{id: e.id}, Capability{ObjectType: e.objectType, ObjectID: e.objectID, Permissions: e.permissions}, nil
}

// Attach installs a previously detached capability into dstPid's space,
// honoring hint if its slot is free, otherwise using the next free slot.
// Used by RECV to install a message's transferred capabilities.
func (s *Space) Attach(ref CapRef, dstPid types.ProcessId, hint *types.CapSlot) (types.CapSlot, error) {
	e, ok := s.entries[ref.id]
	if !ok || !e.live {
		return 0, errSlotEmpty(0)
	}
	s.RegisterProcess(dstPid)
	dstTable := s.slots[dstPid]
	dstSlot := s.nextFreeSlot(dstPid)
	if hint != nil {
		if _, occupied := dstTable[*hint]; !occupied {
			dstSlot = *hint
		}
	}
	dstTable[dstSlot] = e.id
	e.holder = dstPid
	e.slot = dstSlot
	e.inFlight = false
	return dstSlot, nil
}

// CancelDetach reverses a Detach, restoring the capability to its original
// (pid, slot). Used to roll back a SEND that failed after some but not all
// of its transferred capabilities were detached, preserving the "either
// all or none move" guarantee from spec.md §4.2.
func (s *Space) CancelDetach(ref CapRef, pid types.ProcessId, slot types.CapSlot) {
	e, ok := s.entries[ref.id]
	if !ok {
		return
	}
	s.slots[pid][slot] = e.id
	e.holder = pid
	e.slot = slot
	e.inFlight = false
}

// Evict permanently removes an in-flight capability that could not be
// delivered (e.g. DELETE_ENDPOINT draining a queue whose sender is no
// longer live to take it back). Returns the removed capability's metadata, or
// ok=false if ref no longer refers to a live entry.
func (s *Space) Evict(ref CapRef) (Revoked, bool) {
	e, ok := s.entries[ref.id]
	if !ok || !e.live {
		return Revoked{}, false
	}
	e.live = false
	delete(s.entries, ref.id)
	return Revoked{ObjectType: e.objectType, ObjectID: e.objectID, Permissions: e.permissions}, true
}

// DrainProcess removes every capability held by pid, as happens on EXIT.
// It returns one Revoked entry per capability removed, sorted by slot, for
// the caller to turn into CapRevoked commits. Descendants held by *other*
// processes are left untouched: draining a process only empties its own
// table, it is not the same as revoking everything it ever derived.
func (s *Space) DrainProcess(pid types.ProcessId) []Revoked {
	table := s.slots[pid]
	out := make([]Revoked, 0, len(table))
	for slot, id := range table {
		e := s.entries[id]
		if e == nil || !e.live {
			continue
		}
		out = append(out, Revoked{
			Holder:      pid,
			Slot:        slot,
			ObjectType:  e.objectType,
			ObjectID:    e.objectID,
			Permissions: e.permissions,
		})
		e.live = false
		delete(s.entries, id)
	}
	s.slots[pid] = make(map[types.CapSlot]capID)
	sort.Slice(out, func(i, j int) bool { return out[i].Slot < out[j].Slot })
	return out
}
