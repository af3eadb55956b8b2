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

// Package boltstore durably persists a kernel run's CommitLog to a bbolt
// database so a host can restart a Gateway from exactly where it left off
// (see axiom.RestoreGateway). It stores the log step's output, never the
// decision to write it: nothing in this package re-runs authorization.
package boltstore

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/containerd/errdefs"
	digest "github.com/opencontainers/go-digest"
	bolt "go.etcd.io/bbolt"

	"github.com/orbitkernel/kernel/core/axiom"
)

var commitsBucket = []byte("commits")

// record is the on-disk shape of one axiom.Commit. The hash fields are
// stored alongside the type so VerifyIntegrity can run against a reloaded
// log without recomputing anything that isn't already canonical.
type record struct {
	Seq       uint64
	Timestamp int64
	Type      axiom.CommitType
	PrevHash  string
	ThisHash  string
}

// Store wraps a bbolt database holding one run's commit sequence.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if necessary) the bbolt database at path and
// ensures the commits bucket exists.
func Open(path string, opts ...Option) (*Store, error) {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}

	options := *bolt.DefaultOptions
	options.Timeout = cfg.timeout
	// Reading bbolt's freelist sometimes fails when the file has a data
	// corruption; disabling freelist sync reduces the chance of the
	// breakage (see etcd-io/bbolt#1, #6).
	options.NoFreelistSync = true
	if cfg.noSync {
		options.NoSync = true
		options.NoGrowSync = true
	}

	db, err := bolt.Open(path, 0644, &options)
	if err != nil {
		return nil, fmt.Errorf("opening commit store at %s: %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(commitsBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append durably records one commit. Callers persist commits in the same
// order the CommitLog assigned them; out-of-order or duplicate sequence
// numbers are rejected rather than silently overwritten, since that would
// desynchronize the log from what any in-memory CommitLog believes it
// chained.
func (s *Store) Append(c axiom.Commit) error {
	r := record{
		Seq:       c.Seq,
		Timestamp: c.Timestamp,
		Type:      c.Type,
		PrevHash:  c.PrevHash.String(),
		ThisHash:  c.ThisHash.String(),
	}
	val, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encoding commit %d: %w", c.Seq, err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(commitsBucket)
		key := seqKey(c.Seq)
		if existing := b.Get(key); existing != nil {
			return fmt.Errorf("commit %d already persisted: %w", c.Seq, errdefs.ErrAlreadyExists)
		}
		var next uint64
		if last, _ := b.Cursor().Last(); last != nil {
			next = binary.BigEndian.Uint64(last) + 1
		}
		if c.Seq != next {
			return fmt.Errorf("commit %d out of order, next is %d: %w", c.Seq, next, errdefs.ErrFailedPrecondition)
		}
		return b.Put(key, val)
	})
}

// LoadCommits returns every persisted commit in sequence order. A freshly
// restarted host passes this straight to axiom.NewCommitLogFromCommits to
// rebuild the chain, then axiom.RestoreGateway to rebuild the Gateway.
func (s *Store) LoadCommits() ([]axiom.Commit, error) {
	var out []axiom.Commit
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(commitsBucket)
		return b.ForEach(func(_, val []byte) error {
			var r record
			if err := json.Unmarshal(val, &r); err != nil {
				return err
			}
			prev, err := parseDigest(r.PrevHash)
			if err != nil {
				return err
			}
			this, err := parseDigest(r.ThisHash)
			if err != nil {
				return err
			}
			out = append(out, axiom.Commit{
				Seq:       r.Seq,
				Timestamp: r.Timestamp,
				Type:      r.Type,
				PrevHash:  prev,
				ThisHash:  this,
			})
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("loading commit store: %w", err)
	}
	return out, nil
}

func seqKey(seq uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], seq)
	return b[:]
}

// parseDigest decodes a persisted hash string, treating "" (the genesis
// commit's zero PrevHash) as the zero digest.Digest rather than an error.
func parseDigest(s string) (digest.Digest, error) {
	if s == "" {
		return "", nil
	}
	return digest.Parse(s)
}
