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

package commands

import (
	"context"
	"flag"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/orbitkernel/kernel/core/kernel/syscall"
)

func testContext(t *testing.T, root string) *cli.Context {
	t.Helper()
	set := flag.NewFlagSet("test", flag.ContinueOnError)
	require.NoError(t, RootFlag.Apply(set))
	require.NoError(t, set.Set(RootFlag.Name, root))
	return cli.NewContext(cli.NewApp(), set, nil)
}

func TestOpenGatewayCreatesFreshStoreWhenEmpty(t *testing.T) {
	cctx := testContext(t, t.TempDir())

	gw, store, persistedSeq, err := OpenGateway(cctx)
	require.NoError(t, err)
	defer store.Close()

	require.Equal(t, uint64(0), persistedSeq)
	require.Equal(t, 1, gw.CommitLog().Len(), "a fresh store still yields the genesis commit")
}

func TestOpenGatewayPersistRoundTrip(t *testing.T) {
	root := t.TempDir()
	cctx := testContext(t, root)

	gw, store, persistedSeq, err := OpenGateway(cctx)
	require.NoError(t, err)

	pid, err := gw.CreateProcess(context.Background(), "a", 1)
	require.NoError(t, err)
	gw.Syscall(context.Background(), pid, syscall.CREATE_EP, syscall.Args{}, 2)

	require.NoError(t, Persist(store, gw, persistedSeq))
	require.NoError(t, store.Close())

	cctx2 := testContext(t, root)
	gw2, store2, persistedSeq2, err := OpenGateway(cctx2)
	require.NoError(t, err)
	defer store2.Close()

	require.Equal(t, uint64(gw.CommitLog().Len()), persistedSeq2)
	require.Equal(t, gw.CommitLog().Len(), gw2.CommitLog().Len())
	require.True(t, gw2.CommitLog().VerifyIntegrity())
	require.Len(t, gw2.State().PS(), 2) // host + a
}

func TestPersistIsIdempotentFromPersistedSeq(t *testing.T) {
	root := t.TempDir()
	cctx := testContext(t, root)

	gw, store, persistedSeq, err := OpenGateway(cctx)
	require.NoError(t, err)
	defer store.Close()

	_, err = gw.CreateProcess(context.Background(), "a", 1)
	require.NoError(t, err)
	require.NoError(t, Persist(store, gw, persistedSeq))

	// Persisting again from the log's new length has nothing left to
	// append, so already stored commits are not re-appended.
	require.NoError(t, Persist(store, gw, uint64(gw.CommitLog().Len())))
}
