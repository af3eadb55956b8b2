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

import "time"

// defaultBoltOpenTimeout bounds how long bolt.Open blocks on the file's
// flock(2) before giving up; without it a stuck prior process hangs every
// future one indefinitely.
const defaultBoltOpenTimeout = 10 * time.Second

type config struct {
	timeout time.Duration
	noSync  bool
}

func defaultConfig() config {
	return config{timeout: defaultBoltOpenTimeout}
}

// Option configures Open.
type Option func(*config)

// WithOpenTimeout overrides the default flock(2) wait.
func WithOpenTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithNoSync trades durability for throughput by skipping fsync on every
// transaction commit, the way BoltConfig.NoSync does for containerd's
// metadata store.
func WithNoSync() Option {
	return func(c *config) { c.noSync = true }
}
