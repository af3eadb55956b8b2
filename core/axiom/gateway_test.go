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
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/orbitkernel/kernel/core/kernel/syscall"
	"github.com/orbitkernel/kernel/core/kernel/types"
)

func mustCreateProcess(t *testing.T, gw *Gateway, name string) types.ProcessId {
	t.Helper()
	pid, err := gw.CreateProcess(context.Background(), name, 1)
	require.NoError(t, err)
	return pid
}

func TestCreateProcessAppendsCommitWithoutSysLogEntry(t *testing.T) {
	gw := NewGateway(100)
	before := gw.SysLog().Len()

	pid := mustCreateProcess(t, gw, "alpha")
	require.NotZero(t, pid, "pid 0 is reserved for HostPID")

	require.Equal(t, before, gw.SysLog().Len(), "CreateProcess is host-administrative, not a syscall")
	require.Equal(t, 2, gw.CommitLog().Len(), "genesis + ProcessCreated")
}

func TestSyscallAlwaysProducesOneRequestOneResponse(t *testing.T) {
	gw := NewGateway(100)
	pid := mustCreateProcess(t, gw, "alpha")

	before := gw.SysLog().Len()
	gw.Syscall(context.Background(), pid, syscall.CREATE_EP, syscall.Args{}, 101)
	require.Equal(t, before+2, gw.SysLog().Len())

	// A failing syscall still produces exactly one request and one response.
	before = gw.SysLog().Len()
	gw.Syscall(context.Background(), pid, syscall.CAP_INSPECT, syscall.Args{Slot: 99}, 102)
	require.Equal(t, before+2, gw.SysLog().Len())
}

func TestEndpointCreateSendRecvSequence(t *testing.T) {
	gw := NewGateway(100)
	ctx := context.Background()
	sender := mustCreateProcess(t, gw, "sender")
	receiver := mustCreateProcess(t, gw, "receiver")

	createResult := gw.Syscall(ctx, receiver, syscall.CREATE_EP, syscall.Args{}, 101)
	require.Equal(t, syscall.Ok, createResult.Status)
	ep := createResult.Endpoint
	ownerSlot := createResult.Slot

	// CAP_GRANT moves a capability, so the receiver grants a derived
	// write capability and keeps its owner capability for RECV.
	deriveResult := gw.Syscall(ctx, receiver, syscall.CAP_DERIVE, syscall.Args{
		ParentSlot: ownerSlot,
		Mask:       types.Permissions{Write: true, Grant: true},
	}, 102)
	require.Equal(t, syscall.Ok, deriveResult.Status)

	grantResult := gw.Syscall(ctx, receiver, syscall.CAP_GRANT, syscall.Args{
		Slot:   deriveResult.Slot,
		DstPid: sender,
	}, 102)
	require.Equal(t, syscall.Ok, grantResult.Status)
	senderSlot := grantResult.Slot

	sendResult := gw.Syscall(ctx, sender, syscall.SEND, syscall.Args{
		Slot:     senderSlot,
		Endpoint: ep,
		Tag:      7,
		Data:     []byte("hi"),
	}, 103)
	require.Equal(t, syscall.Ok, sendResult.Status)

	recvResult := gw.Syscall(ctx, receiver, syscall.RECV, syscall.Args{
		Slot:     ownerSlot,
		Endpoint: ep,
	}, 104)
	require.Equal(t, syscall.Ok, recvResult.Status)
	require.NotNil(t, recvResult.Message)
	require.Equal(t, uint32(7), recvResult.Message.Tag)
	require.Equal(t, []byte("hi"), recvResult.Message.Data)
	require.Equal(t, sender, recvResult.Message.From)
}

func TestFiveCommitHashChain(t *testing.T) {
	gw := NewGateway(100)
	ctx := context.Background()

	mustCreateProcess(t, gw, "a")
	mustCreateProcess(t, gw, "b")
	pid := mustCreateProcess(t, gw, "c")
	gw.Syscall(ctx, pid, syscall.CREATE_EP, syscall.Args{}, 101)

	require.Equal(t, 5, gw.CommitLog().Len())
	require.True(t, gw.CommitLog().VerifyIntegrity())
}

func TestRevocationCascade(t *testing.T) {
	gw := NewGateway(100)
	ctx := context.Background()
	owner := mustCreateProcess(t, gw, "owner")
	holder := mustCreateProcess(t, gw, "holder")

	createResult := gw.Syscall(ctx, owner, syscall.CREATE_EP, syscall.Args{}, 101)
	ep := createResult.Endpoint
	ownerSlot := createResult.Slot

	// Grant moves the capability to holder entirely, so it is holder -- now
	// the sole owner of the lineage -- whose later revoke cascades to its
	// own derived child, not owner revoking a slot it no longer holds.
	grantResult := gw.Syscall(ctx, owner, syscall.CAP_GRANT, syscall.Args{
		Slot:   ownerSlot,
		DstPid: holder,
	}, 102)
	holderSlot := grantResult.Slot

	deriveResult := gw.Syscall(ctx, holder, syscall.CAP_DERIVE, syscall.Args{
		ParentSlot: holderSlot,
		Mask:       types.Permissions{Read: true},
	}, 103)
	require.Equal(t, syscall.Ok, deriveResult.Status)

	revokeResult := gw.Syscall(ctx, holder, syscall.CAP_REVOKE, syscall.Args{Slot: holderSlot}, 104)
	require.Equal(t, syscall.Ok, revokeResult.Status)

	inspect := gw.Syscall(ctx, holder, syscall.CAP_INSPECT, syscall.Args{Slot: holderSlot}, 105)
	require.Equal(t, syscall.NoCapability, inspect.Status)

	inspectDerived := gw.Syscall(ctx, holder, syscall.CAP_INSPECT, syscall.Args{Slot: deriveResult.Slot}, 106)
	require.Equal(t, syscall.NoCapability, inspectDerived.Status)

	_ = ep
}

// TestRevokeNotificationIntoOwnedEndpointReplaysDeterministically covers
// the case where revoking a capability notifies a holder that owns an
// input endpoint: the notification enqueue mutates that endpoint's queue
// and SendSeq counter, so the commit stream must describe it or a replay
// desyncs from the live state despite CommitLog.VerifyIntegrity passing.
func TestRevokeNotificationIntoOwnedEndpointReplaysDeterministically(t *testing.T) {
	gw := NewGateway(100)
	ctx := context.Background()
	owner := mustCreateProcess(t, gw, "owner")

	// Created first, so it is owner's lowest-numbered endpoint: the input
	// endpoint notifyCapRevoked delivers to.
	inputEp := gw.Syscall(ctx, owner, syscall.CREATE_EP, syscall.Args{}, 101)
	require.Equal(t, syscall.Ok, inputEp.Status)

	otherEp := gw.Syscall(ctx, owner, syscall.CREATE_EP, syscall.Args{}, 102)
	require.Equal(t, syscall.Ok, otherEp.Status)

	revokeResult := gw.Syscall(ctx, owner, syscall.CAP_REVOKE, syscall.Args{Slot: otherEp.Slot}, 103)
	require.Equal(t, syscall.Ok, revokeResult.Status)

	recv := gw.Syscall(ctx, owner, syscall.RECV, syscall.Args{Slot: inputEp.Slot, Endpoint: inputEp.Endpoint}, 104)
	require.Equal(t, syscall.Ok, recv.Status)
	require.Equal(t, syscall.MsgCapRevoked, recv.Message.Tag)

	require.True(t, gw.CommitLog().VerifyIntegrity())
	require.Equal(t, StateHash(gw.State()), StateHash(Replay(gw.CommitLog().Commits())))
}

func TestReplayDeterminism(t *testing.T) {
	gw := NewGateway(100)
	ctx := context.Background()
	a := mustCreateProcess(t, gw, "a")
	b := mustCreateProcess(t, gw, "b")

	createResult := gw.Syscall(ctx, a, syscall.CREATE_EP, syscall.Args{}, 101)
	ep := createResult.Endpoint
	slot := createResult.Slot

	grantResult := gw.Syscall(ctx, a, syscall.CAP_GRANT, syscall.Args{Slot: slot, DstPid: b}, 102)
	gw.Syscall(ctx, b, syscall.SEND, syscall.Args{Slot: grantResult.Slot, Endpoint: ep, Tag: 1, Data: []byte("x")}, 103)
	gw.Syscall(ctx, a, syscall.RECV, syscall.Args{Slot: slot, Endpoint: ep}, 104)

	liveHash := StateHash(gw.State())
	replayed := Replay(gw.CommitLog().Commits())
	require.Equal(t, liveHash, StateHash(replayed))
}

func TestRestoreGatewayReconstructsState(t *testing.T) {
	gw := NewGateway(100)
	ctx := context.Background()
	pid := mustCreateProcess(t, gw, "a")
	gw.Syscall(ctx, pid, syscall.CREATE_EP, syscall.Args{}, 101)

	restored := RestoreGateway(uuid.New(), gw.CommitLog())
	require.Equal(t, StateHash(gw.State()), StateHash(restored.State()))
	require.Equal(t, 0, restored.SysLog().Len(), "SysLog does not survive a restart")
}

// TestRandomSyscallSequenceNeverDesyncsReplay drives a long randomized
// sequence of syscalls against a live Gateway and checks after every step
// that a from-genesis replay of the commit log produced so far agrees with
// the live state, catching any syscall whose commit doesn't fully describe
// its effect on state.
func TestRandomSyscallSequenceNeverDesyncsReplay(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	gw := NewGateway(100)
	ctx := context.Background()

	var pids []types.ProcessId
	var endpoints []types.EndpointId
	now := int64(100)

	for i := 0; i < 50; i++ {
		now++
		if len(pids) < 2 || rng.Intn(5) == 0 {
			pid, err := gw.CreateProcess(ctx, randomName(rng, i), now)
			require.NoError(t, err)
			pids = append(pids, pid)
			continue
		}

		pid := pids[rng.Intn(len(pids))]
		switch rng.Intn(6) {
		case 0:
			r := gw.Syscall(ctx, pid, syscall.CREATE_EP, syscall.Args{}, now)
			if r.Status == syscall.Ok {
				endpoints = append(endpoints, r.Endpoint)
			}
		case 1:
			if len(endpoints) == 0 {
				continue
			}
			ep := endpoints[rng.Intn(len(endpoints))]
			gw.Syscall(ctx, pid, syscall.SEND, syscall.Args{
				Slot:     types.CapSlot(rng.Intn(4)),
				Endpoint: ep,
				Tag:      uint32(rng.Intn(10)),
				Data:     []byte{byte(rng.Intn(256))},
			}, now)
		case 2:
			if len(endpoints) == 0 {
				continue
			}
			ep := endpoints[rng.Intn(len(endpoints))]
			gw.Syscall(ctx, pid, syscall.RECV, syscall.Args{
				Slot:     types.CapSlot(rng.Intn(4)),
				Endpoint: ep,
			}, now)
		case 3:
			gw.Syscall(ctx, pid, syscall.CAP_LIST, syscall.Args{}, now)
		case 4:
			// CAP_GRANT to a random other process: occasionally lands on a
			// slot naming an endpoint, which is what makes case 5's revoke
			// exercise the notify-on-revoke path against a real holder.
			if len(pids) < 2 {
				continue
			}
			dst := pids[rng.Intn(len(pids))]
			r := gw.Syscall(ctx, pid, syscall.CAP_LIST, syscall.Args{}, now)
			if r.Status != syscall.Ok || len(r.CapInfos) == 0 {
				continue
			}
			info := r.CapInfos[rng.Intn(len(r.CapInfos))]
			gw.Syscall(ctx, pid, syscall.CAP_GRANT, syscall.Args{Slot: info.Slot, DstPid: dst}, now)
		case 5:
			r := gw.Syscall(ctx, pid, syscall.CAP_LIST, syscall.Args{}, now)
			if r.Status != syscall.Ok || len(r.CapInfos) == 0 {
				continue
			}
			info := r.CapInfos[rng.Intn(len(r.CapInfos))]
			gw.Syscall(ctx, pid, syscall.CAP_REVOKE, syscall.Args{Slot: info.Slot}, now)
		}

		require.True(t, gw.CommitLog().VerifyIntegrity())
		replayed := Replay(gw.CommitLog().Commits())
		require.Equal(t, StateHash(gw.State()), StateHash(replayed), "replay diverged after %d iterations", i)
	}
}

func randomName(rng *rand.Rand, i int) string {
	const letters = "abcdefghijklmnopqrstuvwxyz"
	b := make([]byte, 6)
	for j := range b {
		b[j] = letters[rng.Intn(len(letters))]
	}
	return string(b) + "-" + string(rune('a'+i%26))
}
