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

package capability

import (
	"errors"
	"fmt"

	"github.com/containerd/errdefs"

	"github.com/orbitkernel/kernel/core/kernel/types"
)

// Sentinel errors identifying the three authorization failure classes from
// spec.md §4.1. Each is additionally wrapped with the matching errdefs
// class so callers can choose either granularity with errors.Is.
var (
	ErrNoCapability            = errors.New("no capability in slot")
	ErrWrongObjectType         = errors.New("capability object type mismatch")
	ErrInsufficientPermissions = errors.New("insufficient permissions")
)

func errSlotEmpty(slot types.CapSlot) error {
	return fmt.Errorf("%w: slot %d: %w", ErrNoCapability, slot, errdefs.ErrNotFound)
}

func errWrongType(slot types.CapSlot, want, have types.ObjectType) error {
	return fmt.Errorf("%w: slot %d: want %s, have %s: %w", ErrWrongObjectType, slot, want, have, errdefs.ErrInvalidArgument)
}

func errInsufficient(slot types.CapSlot, needed, have types.Permissions) error {
	return fmt.Errorf("%w: slot %d: needed %+v, have %+v: %w", ErrInsufficientPermissions, slot, needed, have, errdefs.ErrPermissionDenied)
}

func errNoGrantPermission(slot types.CapSlot) error {
	return fmt.Errorf("%w: slot %d lacks grant permission: %w", ErrInsufficientPermissions, slot, errdefs.ErrPermissionDenied)
}

func errProcessUnknown(pid types.ProcessId) error {
	return fmt.Errorf("process %s has no capability space: %w", pid, errdefs.ErrNotFound)
}
