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

// Package app assembles the zkctl command line: a thin, direct-to-Gateway
// debug and administrative client in the spirit of ctr, for driving a
// single kernel run's commit store one syscall at a time.
package app

import (
	"fmt"

	"github.com/containerd/log"
	"github.com/urfave/cli/v2"

	"github.com/orbitkernel/kernel/cmd/zkctl/commands"
)

func init() {
	cli.VersionPrinter = func(cliContext *cli.Context) {
		fmt.Println(cliContext.App.Name, cliContext.App.Version)
	}
}

// Version is stamped at build time via -ldflags; it defaults to "dev" for
// local builds.
var Version = "dev"

// New returns a *cli.App instance.
func New() *cli.App {
	app := cli.NewApp()
	app.Name = "zkctl"
	app.Version = Version
	app.Usage = "debug and administrative client for an orbitkernel run"
	app.Description = `
zkctl drives a single kernel run's Gateway one syscall at a time,
persisting every resulting commit to the run's bolt-backed commit store so
later invocations pick up exactly where the last one left off.`
	app.EnableBashCompletion = true
	app.Flags = []cli.Flag{
		&cli.BoolFlag{
			Name:  "debug",
			Usage: "Enable debug output in logs",
		},
		commands.RootFlag,
		commands.AuditNetworkFlag,
		commands.AuditAddressFlag,
	}
	app.Commands = []*cli.Command{
		commands.CreateCommand,
		commands.PSCommand,
		commands.KillCommand,
		commands.CreateEndpointCommand,
		commands.DeleteEndpointCommand,
		commands.SendCommand,
		commands.SendCapCommand,
		commands.RecvCommand,
		commands.CallCommand,
		commands.ReplyCommand,
		commands.GrantCommand,
		commands.RevokeCommand,
		commands.DeriveCommand,
		commands.InspectCommand,
		commands.ListCommand,
		commands.VerifyCommand,
	}
	app.Before = func(cliContext *cli.Context) error {
		if cliContext.Bool("debug") {
			return log.SetLevel("debug")
		}
		return nil
	}
	return app
}
