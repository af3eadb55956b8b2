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

// Package state defines KernelState, the single mutable root of the
// kernel: the process table, the endpoint table, the capability arena, and
// the monotonic id counters. Nothing in this package runs a syscall; the
// step package is the only thing allowed to mutate a KernelState, and
// every mutation is paired with a commit. See spec.md §9.
package state

import (
	"errors"
	"fmt"
	"sort"

	"github.com/containerd/errdefs"

	"github.com/orbitkernel/kernel/core/kernel/capability"
	"github.com/orbitkernel/kernel/core/kernel/ipc"
	"github.com/orbitkernel/kernel/core/kernel/types"
)

// ErrOutOfIds is returned when a 64-bit id counter would need to wrap.
// spec.md §4.3: ids never wrap within a run.
var ErrOutOfIds = errors.New("id space exhausted")

// ErrProcessNotFound, ErrEndpointNotFound and ErrProcessTerminated are the
// state-error class from spec.md §7.
var (
	ErrProcessNotFound   = errors.New("process not found")
	ErrEndpointNotFound  = errors.New("endpoint not found")
	ErrProcessTerminated = errors.New("process terminated")
	ErrOutOfResources     = errors.New("out of resources")
)

func errProcessNotFound(pid types.ProcessId) error {
	return fmt.Errorf("%w: %s: %w", ErrProcessNotFound, pid, errdefs.ErrNotFound)
}

func errEndpointNotFound(id types.EndpointId) error {
	return fmt.Errorf("%w: %s: %w", ErrEndpointNotFound, id, errdefs.ErrNotFound)
}

func errProcessTerminated(pid types.ProcessId) error {
	return fmt.Errorf("%w: %s: %w", ErrProcessTerminated, pid, errdefs.ErrFailedPrecondition)
}

func errOutOfIds(kind string) error {
	return fmt.Errorf("%w: no more %s ids available: %w", ErrOutOfIds, kind, errdefs.ErrResourceExhausted)
}

func errTooManyEndpoints(pid types.ProcessId) error {
	return fmt.Errorf("%w: process %s already owns %d endpoints: %w", ErrOutOfResources, pid, types.MaxEndpointsPerProcess, errdefs.ErrResourceExhausted)
}

func errTooManyProcesses() error {
	return fmt.Errorf("%w: process table full at %d: %w", ErrOutOfResources, types.MaxProcesses, errdefs.ErrResourceExhausted)
}

// Process is the kernel's view of one guest or host process. Its
// capability space is not stored here: it lives in the KernelState-wide
// capability.Space, indexed by Pid, matching the arena-plus-index design
// in spec.md §9.
type Process struct {
	Pid          types.ProcessId
	Name         string
	State        types.ProcessState
	CreationTime int64
	Metrics      types.ProcessMetrics

	// OwnedEndpoints is kept in creation order; index 0 is the process's
	// "input endpoint" used for CapRevoked and other kernel notifications.
	OwnedEndpoints []types.EndpointId
}

// KernelState is the single mutable root. Every reachable mutation is via
// the step package, and every mutation is mirrored by a Commit.
type KernelState struct {
	Processes map[types.ProcessId]*Process
	Endpoints map[types.EndpointId]*ipc.Endpoint
	Caps      *capability.Space
	Metrics   types.SystemMetrics

	nextPid types.ProcessId
	nextEID types.EndpointId
}

// New returns a KernelState with only the host supervisor (types.HostPID)
// registered, holding no endpoints or capabilities, per spec.md §3.
func New() *KernelState {
	s := &KernelState{
		Processes: make(map[types.ProcessId]*Process),
		Endpoints: make(map[types.EndpointId]*ipc.Endpoint),
		Caps:      capability.NewSpace(),
		nextPid:   1, // 0 is reserved for the host supervisor
	}
	s.Processes[types.HostPID] = &Process{
		Pid:   types.HostPID,
		Name:  "host-supervisor",
		State: types.ProcessReady,
	}
	s.Caps.RegisterProcess(types.HostPID)
	return s
}

// Clone returns a deep copy of s, used by the gateway to take a snapshot
// before calling step so that a panic mid-step can be discarded without
// touching the real state (spec.md §4.6's atomicity property).
func (s *KernelState) Clone() *KernelState {
	out := &KernelState{
		Processes: make(map[types.ProcessId]*Process, len(s.Processes)),
		Endpoints: make(map[types.EndpointId]*ipc.Endpoint, len(s.Endpoints)),
		Caps:      s.Caps.Clone(),
		Metrics:   s.Metrics,
		nextPid:   s.nextPid,
		nextEID:   s.nextEID,
	}
	for pid, p := range s.Processes {
		cp := *p
		cp.OwnedEndpoints = append([]types.EndpointId(nil), p.OwnedEndpoints...)
		out.Processes[pid] = &cp
	}
	for id, ep := range s.Endpoints {
		out.Endpoints[id] = ep.Clone()
	}
	return out
}

// AllocProcessId returns the next process id, failing with ErrOutOfIds if
// exhausted or ErrOutOfResources past MaxProcesses.
func (s *KernelState) AllocProcessId() (types.ProcessId, error) {
	if len(s.Processes) >= types.MaxProcesses {
		return 0, errTooManyProcesses()
	}
	if s.nextPid == 0 {
		return 0, errOutOfIds("process")
	}
	id := s.nextPid
	s.nextPid++
	return id, nil
}

// AllocEndpointId returns the next endpoint id, failing with ErrOutOfIds if
// the 64-bit counter would wrap.
func (s *KernelState) AllocEndpointId() (types.EndpointId, error) {
	if s.nextEID == ^types.EndpointId(0) {
		return 0, errOutOfIds("endpoint")
	}
	id := s.nextEID
	s.nextEID++
	return id, nil
}

// AdvanceProcessIdPast raises the process id counter so the next
// AllocProcessId call returns at least upto. Replay uses this to keep a
// reconstructed state's counters consistent with the highest id any commit
// has already named, since a freshly-replayed state.New always starts both
// counters from scratch.
func (s *KernelState) AdvanceProcessIdPast(upto types.ProcessId) {
	if s.nextPid < upto {
		s.nextPid = upto
	}
}

// AdvanceEndpointIdPast is AdvanceProcessIdPast for endpoint ids.
func (s *KernelState) AdvanceEndpointIdPast(upto types.EndpointId) {
	if s.nextEID < upto {
		s.nextEID = upto
	}
}

// Process looks up a live or terminated process.
func (s *KernelState) Process(pid types.ProcessId) (*Process, error) {
	p, ok := s.Processes[pid]
	if !ok {
		return nil, errProcessNotFound(pid)
	}
	return p, nil
}

// LiveProcess looks up a process and additionally requires it not be
// Terminated.
func (s *KernelState) LiveProcess(pid types.ProcessId) (*Process, error) {
	p, err := s.Process(pid)
	if err != nil {
		return nil, err
	}
	if p.State == types.ProcessTerminated {
		return nil, errProcessTerminated(pid)
	}
	return p, nil
}

// Endpoint looks up an endpoint by id.
func (s *KernelState) Endpoint(id types.EndpointId) (*ipc.Endpoint, error) {
	ep, ok := s.Endpoints[id]
	if !ok {
		return nil, errEndpointNotFound(id)
	}
	return ep, nil
}

// CanCreateEndpoint reports whether pid is under its per-process endpoint
// budget.
func (s *KernelState) CanCreateEndpoint(pid types.ProcessId) error {
	p, err := s.Process(pid)
	if err != nil {
		return err
	}
	if len(p.OwnedEndpoints) >= types.MaxEndpointsPerProcess {
		return errTooManyEndpoints(pid)
	}
	return nil
}

// InputEndpoint returns the lowest-numbered endpoint pid owns, used as the
// delivery target for kernel notifications such as CapRevoked. ok is false
// if pid owns no endpoint.
func (s *KernelState) InputEndpoint(pid types.ProcessId) (types.EndpointId, bool) {
	p, err := s.Process(pid)
	if err != nil || len(p.OwnedEndpoints) == 0 {
		return 0, false
	}
	ids := append([]types.EndpointId(nil), p.OwnedEndpoints...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids[0], true
}

// Snapshot returns a deterministic, pid-sorted projection of the process
// table's public fields for the PS syscall. It never mutates state.
type Snapshot struct {
	Pid     types.ProcessId
	Name    string
	State   types.ProcessState
	Created int64
}

// PS returns a sorted snapshot of every process in the table.
func (s *KernelState) PS() []Snapshot {
	out := make([]Snapshot, 0, len(s.Processes))
	for _, p := range s.Processes {
		out = append(out, Snapshot{Pid: p.Pid, Name: p.Name, State: p.State, Created: p.CreationTime})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pid < out[j].Pid })
	return out
}
