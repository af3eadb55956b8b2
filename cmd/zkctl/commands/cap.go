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

package commands

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/orbitkernel/kernel/core/kernel/syscall"
	"github.com/orbitkernel/kernel/core/kernel/types"
)

func parsePerms(s string) types.Permissions {
	var p types.Permissions
	for _, c := range s {
		switch c {
		case 'r':
			p.Read = true
		case 'w':
			p.Write = true
		case 'g':
			p.Grant = true
		}
	}
	return p
}

// GrantCommand issues CAP_GRANT, moving a capability to another process;
// the source slot is left empty.
var GrantCommand = &cli.Command{
	Name:      "cap-grant",
	Usage:     "Move a capability to another process",
	ArgsUsage: "<pid> <slot> <dst-pid>",
	Action: func(cliContext *cli.Context) error {
		pid, slot, err := parsePidSlot(cliContext)
		if err != nil {
			return err
		}
		dst, err := parseUintArg(cliContext, 2, "dst-pid")
		if err != nil {
			return err
		}
		return runSyscall(cliContext, pid, syscall.CAP_GRANT, syscall.Args{
			Slot:   slot,
			DstPid: types.ProcessId(dst),
		})
	},
}

// RevokeCommand issues CAP_REVOKE, cascading revocation to every
// descendant the named capability has.
var RevokeCommand = &cli.Command{
	Name:      "cap-revoke",
	Usage:     "Revoke a capability and everything derived or granted from it",
	ArgsUsage: "<pid> <slot>",
	Action: func(cliContext *cli.Context) error {
		pid, slot, err := parsePidSlot(cliContext)
		if err != nil {
			return err
		}
		return runSyscall(cliContext, pid, syscall.CAP_REVOKE, syscall.Args{Slot: slot})
	},
}

// DeriveCommand issues CAP_DERIVE, installing a new capability whose
// permissions are the intersection of the parent's with a mask like "rw".
var DeriveCommand = &cli.Command{
	Name:      "cap-derive",
	Usage:     "Derive a weaker capability from one this process holds",
	ArgsUsage: "<pid> <parent-slot> <mask (subset of rwg)>",
	Action: func(cliContext *cli.Context) error {
		pid, err := parseUintArg(cliContext, 0, "pid")
		if err != nil {
			return err
		}
		parentSlot, err := parseUintArg(cliContext, 1, "parent-slot")
		if err != nil {
			return err
		}
		mask := parsePerms(cliContext.Args().Get(2))
		return runSyscall(cliContext, types.ProcessId(pid), syscall.CAP_DERIVE, syscall.Args{
			ParentSlot: types.CapSlot(parentSlot),
			Mask:       mask,
		})
	},
}

// InspectCommand issues CAP_INSPECT.
var InspectCommand = &cli.Command{
	Name:      "cap-inspect",
	Usage:     "Show what a capability slot refers to",
	ArgsUsage: "<pid> <slot>",
	Action: func(cliContext *cli.Context) error {
		pid, slot, err := parsePidSlot(cliContext)
		if err != nil {
			return err
		}
		return runSyscall(cliContext, pid, syscall.CAP_INSPECT, syscall.Args{Slot: slot})
	},
}

// ListCommand issues CAP_LIST.
var ListCommand = &cli.Command{
	Name:      "cap-list",
	Usage:     "List every capability a process holds",
	ArgsUsage: "<pid>",
	Action: func(cliContext *cli.Context) error {
		pid, err := parseUintArg(cliContext, 0, "pid")
		if err != nil {
			return fmt.Errorf("pid required: %w", err)
		}
		return runSyscall(cliContext, types.ProcessId(pid), syscall.CAP_LIST, syscall.Args{})
	},
}
