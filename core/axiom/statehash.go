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
	"sort"

	"github.com/orbitkernel/kernel/core/kernel/state"
	"github.com/orbitkernel/kernel/core/kernel/types"
)

// stateEncoder builds the canonical byte layout StateHash digests. It
// mirrors canonicalEncode's big-endian, length-prefixed conventions so the
// two encoders read the same way to anyone comparing them.
type stateEncoder struct {
	buf []byte
}

func newStateEncoder() *stateEncoder {
	return &stateEncoder{}
}

func (e *stateEncoder) u64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

func (e *stateEncoder) u32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

func (e *stateEncoder) byte1(b byte) {
	e.buf = append(e.buf, b)
}

func (e *stateEncoder) boolean(v bool) {
	if v {
		e.byte1(1)
	} else {
		e.byte1(0)
	}
}

func (e *stateEncoder) perms(p types.Permissions) {
	e.boolean(p.Read)
	e.boolean(p.Write)
	e.boolean(p.Grant)
}

func (e *stateEncoder) bytes(b []byte) {
	e.u64(uint64(len(b)))
	e.buf = append(e.buf, b...)
}

func (e *stateEncoder) str(s string) {
	e.bytes([]byte(s))
}

func (e *stateEncoder) processes(s *state.KernelState) {
	pids := make([]types.ProcessId, 0, len(s.Processes))
	for pid := range s.Processes {
		pids = append(pids, pid)
	}
	sort.Slice(pids, func(i, j int) bool { return pids[i] < pids[j] })

	e.u64(uint64(len(pids)))
	for _, pid := range pids {
		p := s.Processes[pid]
		e.u64(uint64(p.Pid))
		e.str(p.Name)
		e.byte1(byte(p.State))
		ids := append([]types.EndpointId(nil), p.OwnedEndpoints...)
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		e.u64(uint64(len(ids)))
		for _, id := range ids {
			e.u64(uint64(id))
		}
	}
}

func (e *stateEncoder) endpoints(s *state.KernelState) {
	ids := make([]types.EndpointId, 0, len(s.Endpoints))
	for id := range s.Endpoints {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	e.u64(uint64(len(ids)))
	for _, id := range ids {
		ep := s.Endpoints[id]
		e.u64(uint64(ep.ID))
		e.u64(uint64(ep.Owner))
		pending := ep.Pending()
		e.u64(uint64(len(pending)))
		for _, m := range pending {
			e.u64(uint64(m.From))
			e.u32(m.Tag)
			e.bytes(m.Data)
			e.u64(m.SendSeq)
			e.boolean(m.ReplyTo != nil)
			if m.ReplyTo != nil {
				e.u64(uint64(*m.ReplyTo))
			}
			e.u64(uint64(len(m.TransferredCaps)))
			for _, tc := range m.TransferredCaps {
				e.byte1(byte(tc.ObjectType))
				e.u64(tc.ObjectID)
				e.perms(tc.Permissions)
			}
		}
	}
}

func (e *stateEncoder) capabilities(s *state.KernelState) {
	pids := make([]types.ProcessId, 0, len(s.Processes))
	for pid := range s.Processes {
		pids = append(pids, pid)
	}
	sort.Slice(pids, func(i, j int) bool { return pids[i] < pids[j] })

	e.u64(uint64(len(pids)))
	for _, pid := range pids {
		infos := s.Caps.List(pid)
		e.u64(uint64(pid))
		e.u64(uint64(len(infos)))
		for _, info := range infos {
			e.u32(uint32(info.Slot))
			e.byte1(byte(info.ObjectType))
			e.u64(info.ObjectID)
			e.perms(info.Permissions)
			e.boolean(info.HasParent)
		}
	}
}
