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
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/orbitkernel/kernel/core/kernel/syscall"
	"github.com/orbitkernel/kernel/core/kernel/types"
)

func TestReplayAndVerifySucceedsOnMatchingHash(t *testing.T) {
	gw := NewGateway(100)
	mustCreateProcess(t, gw, "a")

	expected := StateHash(gw.State())
	s, err := ReplayAndVerify(gw.CommitLog().Commits(), expected)
	require.NoError(t, err)
	require.Equal(t, expected, StateHash(s))
}

func TestReplayAndVerifyDetectsDivergence(t *testing.T) {
	gw := NewGateway(100)
	mustCreateProcess(t, gw, "a")

	_, err := ReplayAndVerify(gw.CommitLog().Commits(), "sha256:0000000000000000000000000000000000000000000000000000000000000000")
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrReplayDiverged))
}

func TestReplayOfGenesisOnlyYieldsOnlyHostSupervisor(t *testing.T) {
	l := NewCommitLog(100)
	s := Replay(l.Commits())
	require.Len(t, s.PS(), 1, "only the host supervisor process exists before any ProcessCreated commit")
}

func TestReplayReconstructsEndpointQueueOrder(t *testing.T) {
	gw := NewGateway(100)
	ctx := context.Background()
	a := mustCreateProcess(t, gw, "a")
	b := mustCreateProcess(t, gw, "b")

	createResult := gw.Syscall(ctx, a, syscall.CREATE_EP, syscall.Args{}, 101)
	ep, slot := createResult.Endpoint, createResult.Slot
	grantResult := gw.Syscall(ctx, a, syscall.CAP_GRANT, syscall.Args{Slot: slot, DstPid: b}, 102)

	gw.Syscall(ctx, b, syscall.SEND, syscall.Args{Slot: grantResult.Slot, Endpoint: ep, Tag: 1, Data: []byte("first")}, 103)
	gw.Syscall(ctx, b, syscall.SEND, syscall.Args{Slot: grantResult.Slot, Endpoint: ep, Tag: 2, Data: []byte("second")}, 104)

	replayed := Replay(gw.CommitLog().Commits())
	restoredEp, err := replayed.Endpoint(ep)
	require.NoError(t, err)

	pending := restoredEp.Peek()
	require.Len(t, pending, 2)
	require.Equal(t, uint32(1), pending[0].Tag)
	require.Equal(t, uint32(2), pending[1].Tag)
}

func TestReplayReconstructsCapDerivationChain(t *testing.T) {
	gw := NewGateway(100)
	ctx := context.Background()
	pid := mustCreateProcess(t, gw, "a")

	createResult := gw.Syscall(ctx, pid, syscall.CREATE_EP, syscall.Args{}, 101)
	deriveResult := gw.Syscall(ctx, pid, syscall.CAP_DERIVE, syscall.Args{
		ParentSlot: createResult.Slot,
		Mask:       types.Permissions{Read: true},
	}, 102)
	require.Equal(t, syscall.Ok, deriveResult.Status)

	require.Equal(t, StateHash(gw.State()), StateHash(Replay(gw.CommitLog().Commits())))
}
