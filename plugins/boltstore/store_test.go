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

package boltstore

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/containerd/errdefs"
	"github.com/stretchr/testify/require"

	"github.com/orbitkernel/kernel/core/axiom"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "commits.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAppendAndLoadRoundTrip(t *testing.T) {
	s := openTestStore(t)

	l := axiom.NewCommitLog(100)
	genesis := l.Commits()[0]
	require.NoError(t, s.Append(genesis))

	created := l.Append(axiom.CommitType{Kind: axiom.ProcessCreated, Pid: 1, Name: "a"}, 101)
	require.NoError(t, s.Append(created))

	loaded, err := s.LoadCommits()
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	require.Equal(t, genesis.Seq, loaded[0].Seq)
	require.Equal(t, created.Seq, loaded[1].Seq)
	require.Equal(t, created.Type, loaded[1].Type)
	require.Equal(t, created.ThisHash, loaded[1].ThisHash)
}

func TestGenesisZeroPrevHashRoundTrips(t *testing.T) {
	s := openTestStore(t)

	l := axiom.NewCommitLog(100)
	genesis := l.Commits()[0]
	require.Empty(t, string(genesis.PrevHash))
	require.NoError(t, s.Append(genesis))

	loaded, err := s.LoadCommits()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	require.Empty(t, string(loaded[0].PrevHash))
}

func TestAppendRejectsDuplicateSeq(t *testing.T) {
	s := openTestStore(t)

	l := axiom.NewCommitLog(100)
	genesis := l.Commits()[0]
	require.NoError(t, s.Append(genesis))

	err := s.Append(genesis)
	require.Error(t, err)
	require.True(t, errors.Is(err, errdefs.ErrAlreadyExists))
}

func TestLoadedCommitsReconstructGatewayState(t *testing.T) {
	s := openTestStore(t)

	l := axiom.NewCommitLog(100)
	l.Append(axiom.CommitType{Kind: axiom.ProcessCreated, Pid: 1, Name: "a"}, 101)
	l.Append(axiom.CommitType{Kind: axiom.ProcessCreated, Pid: 2, Name: "b"}, 102)

	for _, c := range l.Commits() {
		require.NoError(t, s.Append(c))
	}

	loaded, err := s.LoadCommits()
	require.NoError(t, err)
	require.Len(t, loaded, l.Len())

	restored := axiom.NewCommitLogFromCommits(loaded)
	require.True(t, restored.VerifyIntegrity())

	state := axiom.Replay(restored.Commits())
	require.Len(t, state.PS(), 3) // host + a + b
}

func TestAppendedCommitsSurviveCloseAndReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "commits.db")
	s, err := Open(path)
	require.NoError(t, err)

	l := axiom.NewCommitLog(100)
	require.NoError(t, s.Append(l.Commits()[0]))
	require.NoError(t, s.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	loaded, err := reopened.LoadCommits()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
}
