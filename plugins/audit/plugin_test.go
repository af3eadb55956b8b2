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
	"errors"
	"testing"

	"github.com/containerd/errdefs"
	"github.com/stretchr/testify/require"
)

func TestConfigValidateAllowsEmptyAddress(t *testing.T) {
	c := &Config{}
	require.NoError(t, c.Validate())
}

func TestConfigValidateRequiresNetworkWithAddress(t *testing.T) {
	c := &Config{Address: "127.0.0.1:9000"}
	err := c.Validate()
	require.Error(t, err)
	require.True(t, errors.Is(err, errdefs.ErrInvalidArgument))
}

func TestConfigValidateAcceptsAddressWithNetwork(t *testing.T) {
	c := &Config{Network: "tcp", Address: "127.0.0.1:9000"}
	require.NoError(t, c.Validate())
}

func TestConfigOpenWithNoAddressReturnsNilPublisher(t *testing.T) {
	c := &Config{}
	p, err := c.Open(context.Background())
	require.NoError(t, err)
	require.Nil(t, p)
}

func TestConfigOpenRejectsInvalidConfig(t *testing.T) {
	c := &Config{Address: "127.0.0.1:9000"}
	_, err := c.Open(context.Background())
	require.Error(t, err)
	require.True(t, errors.Is(err, errdefs.ErrInvalidArgument))
}
