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

package identifiers

import (
	"strings"
	"testing"

	"github.com/containerd/errdefs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	for _, valid := range []string{
		"default",
		"Default",
		"1.2.3",
		"network-service",
		"vfs_service",
		"a",
	} {
		assert.NoError(t, Validate(valid), "expected %q to be valid", valid)
	}
}

func TestValidateRejects(t *testing.T) {
	for _, invalid := range []string{
		"",
		"-leading-dash",
		"has a space",
		"has/a/slash",
		strings.Repeat("a", maxLength+1),
	} {
		err := Validate(invalid)
		require.Error(t, err, "expected %q to be invalid", invalid)
		assert.True(t, errdefs.IsInvalidArgument(err))
	}
}
