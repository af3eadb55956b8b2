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

package state

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/orbitkernel/kernel/core/kernel/types"
)

func TestNewRegistersOnlyHostSupervisor(t *testing.T) {
	s := New()
	require.Len(t, s.PS(), 1)
	require.Equal(t, types.HostPID, s.PS()[0].Pid)
}

func TestAllocProcessIdNeverReuses(t *testing.T) {
	s := New()
	first, err := s.AllocProcessId()
	require.NoError(t, err)
	second, err := s.AllocProcessId()
	require.NoError(t, err)
	require.NotEqual(t, first, second)
	require.Less(t, first, second)
}

func TestLiveProcessRejectsTerminated(t *testing.T) {
	s := New()
	pid, err := s.AllocProcessId()
	require.NoError(t, err)
	s.Processes[pid] = &Process{Pid: pid, State: types.ProcessTerminated}

	_, err = s.LiveProcess(pid)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrProcessTerminated))
}

func TestCanCreateEndpointEnforcesBudget(t *testing.T) {
	s := New()
	pid, err := s.AllocProcessId()
	require.NoError(t, err)
	s.Processes[pid] = &Process{Pid: pid, State: types.ProcessReady}

	for i := 0; i < types.MaxEndpointsPerProcess; i++ {
		s.Processes[pid].OwnedEndpoints = append(s.Processes[pid].OwnedEndpoints, types.EndpointId(i))
	}

	err = s.CanCreateEndpoint(pid)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrOutOfResources))
}

func TestInputEndpointReturnsLowestNumbered(t *testing.T) {
	s := New()
	pid, err := s.AllocProcessId()
	require.NoError(t, err)
	s.Processes[pid] = &Process{Pid: pid, OwnedEndpoints: []types.EndpointId{9, 3, 7}}

	id, ok := s.InputEndpoint(pid)
	require.True(t, ok)
	require.Equal(t, types.EndpointId(3), id)
}

func TestInputEndpointFalseWhenNoneOwned(t *testing.T) {
	s := New()
	pid, err := s.AllocProcessId()
	require.NoError(t, err)
	s.Processes[pid] = &Process{Pid: pid}

	_, ok := s.InputEndpoint(pid)
	require.False(t, ok)
}

func TestCloneIsIndependent(t *testing.T) {
	s := New()
	pid, err := s.AllocProcessId()
	require.NoError(t, err)
	s.Processes[pid] = &Process{Pid: pid, Name: "a"}

	clone := s.Clone()
	clone.Processes[pid].Name = "mutated"

	require.Equal(t, "a", s.Processes[pid].Name)
}

func TestPSIsSortedByPid(t *testing.T) {
	s := New()
	for i := 0; i < 5; i++ {
		pid, err := s.AllocProcessId()
		require.NoError(t, err)
		s.Processes[pid] = &Process{Pid: pid}
	}

	ps := s.PS()
	for i := 1; i < len(ps); i++ {
		require.Less(t, ps[i-1].Pid, ps[i].Pid)
	}
}
