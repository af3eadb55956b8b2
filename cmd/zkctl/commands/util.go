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
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/orbitkernel/kernel/core/kernel/syscall"
	"github.com/orbitkernel/kernel/core/kernel/types"
)

func parseUintArg(cliContext *cli.Context, i int, name string) (uint64, error) {
	s := cliContext.Args().Get(i)
	if s == "" {
		return 0, fmt.Errorf("%s argument required", name)
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, s, err)
	}
	return v, nil
}

// parsePidSlot parses the near-universal leading "<pid> <slot>" argument
// pair every capability-gated syscall command takes.
func parsePidSlot(cliContext *cli.Context) (types.ProcessId, types.CapSlot, error) {
	pid, err := parseUintArg(cliContext, 0, "pid")
	if err != nil {
		return 0, 0, err
	}
	slot, err := parseUintArg(cliContext, 1, "slot")
	if err != nil {
		return 0, 0, err
	}
	return types.ProcessId(pid), types.CapSlot(slot), nil
}

// printResult prints a syscall's outcome as one line of JSON so command
// output stays scriptable, the way ctr's --pretty-less-but-parseable
// subcommands do.
func printResult(r syscall.Result) error {
	if r.Status != syscall.Ok {
		return fmt.Errorf("%s: %w", r.Status, r.Err)
	}
	b, err := json.Marshal(r)
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}
