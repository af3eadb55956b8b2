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
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/orbitkernel/kernel/core/axiom"
)

func TestConfigValidateRejectsNegativeOpenTimeout(t *testing.T) {
	c := &Config{OpenTimeout: -1}
	require.Error(t, c.Validate())
}

func TestConfigOpenCreatesRootAndStore(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "run")
	store, err := DefaultConfig().Open(context.Background(), root)
	require.NoError(t, err)
	defer store.Close()

	l := axiom.NewCommitLog(100)
	require.NoError(t, store.Append(l.Commits()[0]))
}

func TestConfigOpenWithNoSyncSucceeds(t *testing.T) {
	root := t.TempDir()
	store, err := (&Config{NoSync: true}).Open(context.Background(), root)
	require.NoError(t, err)
	store.Close()
}
