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
	"github.com/orbitkernel/kernel/core/kernel/syscall"
	"github.com/orbitkernel/kernel/core/kernel/types"
)

// SysLog is the append-only audit tape of syscall request/response events.
// It is an audit trail, not an index: there is no lookup by content, only
// sequential append and a full read of the recorded prefix.
type SysLog struct {
	events []SysEvent
	nextID uint64
}

// NewSysLog returns an empty SysLog whose first event id will be 0.
func NewSysLog() *SysLog {
	return &SysLog{}
}

// AppendRequest records a syscall's entry and returns the event id
// assigned to it. Event ids are strictly monotone starting from 0.
func (l *SysLog) AppendRequest(pid types.ProcessId, num syscall.Num, args syscall.Args, now int64) uint64 {
	id := l.nextID
	l.nextID++
	l.events = append(l.events, SysEvent{
		ID:        id,
		Timestamp: now,
		Pid:       pid,
		Num:       num,
		Kind:      Request,
		Args:      args,
	})
	return id
}

// AppendResponse records a syscall's exit and returns the event id
// assigned to it.
func (l *SysLog) AppendResponse(pid types.ProcessId, num syscall.Num, result syscall.Result, now int64) uint64 {
	id := l.nextID
	l.nextID++
	l.events = append(l.events, SysEvent{
		ID:        id,
		Timestamp: now,
		Pid:       pid,
		Num:       num,
		Kind:      Response,
		Result:    result,
	})
	return id
}

// Events returns every recorded event, in append order. The slice is a
// copy: callers cannot mutate the log through it.
func (l *SysLog) Events() []SysEvent {
	out := make([]SysEvent, len(l.events))
	copy(out, l.events)
	return out
}

// Len reports the number of recorded events.
func (l *SysLog) Len() int {
	return len(l.events)
}

// Clone returns a deep-enough copy of l. SysEvent contains no further mutable reference state beyond
// slices already treated as copy-on-write by the kernel packages, so a
// slice copy of events suffices.
func (l *SysLog) Clone() *SysLog {
	out := &SysLog{nextID: l.nextID}
	out.events = make([]SysEvent, len(l.events))
	copy(out.events, l.events)
	return out
}
