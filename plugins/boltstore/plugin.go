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
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/containerd/errdefs"
	"github.com/containerd/log"
)

// Config is the toml-facing configuration for the bolt-backed commit
// store, mirroring containerd's metadata plugin's BoltConfig shape.
type Config struct {
	// NoSync disables fsync on every bbolt transaction commit, trading
	// durability for throughput.
	NoSync bool `toml:"no_sync"`
	// OpenTimeout bounds how long opening the database waits on another
	// process's flock(2).
	OpenTimeout time.Duration `toml:"open_timeout"`
}

// DefaultConfig is the Config zkctl opens a run's store with when the
// caller hasn't overridden anything.
func DefaultConfig() *Config {
	return &Config{OpenTimeout: defaultBoltOpenTimeout}
}

func (c *Config) Validate() error {
	if c.OpenTimeout < 0 {
		return fmt.Errorf("open_timeout must not be negative: %w", errdefs.ErrInvalidArgument)
	}
	return nil
}

// Open validates c, ensures root exists, and opens the commit store
// rooted there. This is the one place a --root directory becomes a
// *Store, so Config stays the single source of truth for how the bolt
// store is tuned instead of a value nothing reads.
func (c *Config) Open(ctx context.Context, root string) (*Store, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(root, 0711); err != nil {
		return nil, err
	}

	var opts []Option
	if c.NoSync {
		opts = append(opts, WithNoSync())
		log.G(ctx).Warn("using async mode for the bolt commit store")
	}
	if c.OpenTimeout > 0 {
		opts = append(opts, WithOpenTimeout(c.OpenTimeout))
	}
	return Open(filepath.Join(root, "commits.db"), opts...)
}
