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

package step

import (
	"errors"
	"fmt"

	"github.com/containerd/errdefs"

	"github.com/orbitkernel/kernel/core/kernel/syscall"
)

func isErr(err, target error) bool {
	return errors.Is(err, target)
}

func errUnknownSyscall(num syscall.Num) error {
	return fmt.Errorf("unknown syscall %#x: %w", uint32(num), errdefs.ErrInvalidArgument)
}

var (
	errTooManyTransfers = errors.New("too many capabilities named in one SEND_CAP")
	errNotEndpointOwner = errors.New("process does not own this endpoint")
	errNoReplyTarget    = errors.New("message carries no reply endpoint")
	errWrongKillTarget  = errors.New("KILL capability does not name the target process")
)

func errTooManyTransfersWrapped(n int) error {
	return fmt.Errorf("%w: %d", errTooManyTransfers, n)
}
