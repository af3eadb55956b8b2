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

package audit

import (
	"context"
	"fmt"

	"github.com/containerd/errdefs"
)

// Config points the audit plugin at its remote collector. An empty
// Address disables forwarding: Open returns a nil *Publisher, and
// callers are expected to check for that before use.
type Config struct {
	Network string `toml:"network"`
	Address string `toml:"address"`
}

func (c *Config) Validate() error {
	if c.Address == "" {
		return nil
	}
	if c.Network == "" {
		return fmt.Errorf("network required when address is set: %w", errdefs.ErrInvalidArgument)
	}
	return nil
}

// Open validates c and dials its remote collector, returning a nil
// *Publisher (and no error) when Address is empty so callers can treat
// an unconfigured audit sink as "nothing to publish to" without a type
// switch on every call site.
func (c *Config) Open(ctx context.Context) (*Publisher, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if c.Address == "" {
		return nil, nil
	}
	return NewPublisher(ctx, c.Network, c.Address)
}
