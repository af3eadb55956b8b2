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
	"time"

	"github.com/urfave/cli/v2"

	"github.com/orbitkernel/kernel/core/kernel/syscall"
	"github.com/orbitkernel/kernel/core/kernel/types"
)

// CreateCommand registers a new process with the run's Gateway. This is
// the host-administrative CreateProcess entry point, not a guest syscall:
// no SysLog entry is recorded for it, matching spec.md's "processes cannot
// create other processes from inside the sandbox" rule.
var CreateCommand = &cli.Command{
	Name:      "create",
	Usage:     "Create a new process",
	ArgsUsage: "<name>",
	Action: func(cliContext *cli.Context) error {
		name := cliContext.Args().First()
		if name == "" {
			return fmt.Errorf("process name required")
		}
		gw, store, persistedSeq, err := OpenGateway(cliContext)
		if err != nil {
			return err
		}
		defer store.Close()

		pub, err := OpenAuditPublisher(cliContext)
		if err != nil {
			return err
		}
		if pub != nil {
			defer pub.Close()
		}

		pid, err := gw.CreateProcess(cliContext.Context, name, time.Now().Unix())
		if err != nil {
			return err
		}
		if err := Persist(store, gw, persistedSeq); err != nil {
			return err
		}
		PublishAudit(cliContext.Context, pub, gw, persistedSeq)
		fmt.Println(pid)
		return nil
	},
}

// PSCommand lists every process in the run's process table.
var PSCommand = &cli.Command{
	Name:  "ps",
	Usage: "List processes",
	Action: func(cliContext *cli.Context) error {
		gw, store, _, err := OpenGateway(cliContext)
		if err != nil {
			return err
		}
		defer store.Close()

		for _, p := range gw.State().PS() {
			fmt.Printf("%-12s %-20s %-12s created=%d\n", types.ProcessId(p.Pid), p.Name, p.State, p.Created)
		}
		return nil
	},
}

// KillCommand issues a KILL syscall against a target process.
var KillCommand = &cli.Command{
	Name:      "kill",
	Usage:     "Terminate a process via its KILL capability",
	ArgsUsage: "<pid> <slot> <target-pid>",
	Action: func(cliContext *cli.Context) error {
		pid, slot, err := parsePidSlot(cliContext)
		if err != nil {
			return err
		}
		target, err := parseUintArg(cliContext, 2, "target-pid")
		if err != nil {
			return err
		}

		gw, store, persistedSeq, err := OpenGateway(cliContext)
		if err != nil {
			return err
		}
		defer store.Close()

		pub, err := OpenAuditPublisher(cliContext)
		if err != nil {
			return err
		}
		if pub != nil {
			defer pub.Close()
		}

		result := gw.Syscall(cliContext.Context, pid, syscall.KILL, syscall.Args{
			Slot:      slot,
			TargetPid: types.ProcessId(target),
		}, time.Now().Unix())
		if err := Persist(store, gw, persistedSeq); err != nil {
			return err
		}
		PublishAudit(cliContext.Context, pub, gw, persistedSeq)
		return printResult(result)
	},
}
