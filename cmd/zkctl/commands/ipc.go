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
	"time"

	"github.com/urfave/cli/v2"

	"github.com/orbitkernel/kernel/core/kernel/syscall"
	"github.com/orbitkernel/kernel/core/kernel/types"
)

func runSyscall(cliContext *cli.Context, pid types.ProcessId, num syscall.Num, args syscall.Args) error {
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

	result := gw.Syscall(cliContext.Context, pid, num, args, time.Now().Unix())
	if err := Persist(store, gw, persistedSeq); err != nil {
		return err
	}
	PublishAudit(cliContext.Context, pub, gw, persistedSeq)
	return printResult(result)
}

// CreateEndpointCommand issues CREATE_EP for the given process.
var CreateEndpointCommand = &cli.Command{
	Name:      "create-ep",
	Usage:     "Create an endpoint owned by a process",
	ArgsUsage: "<pid>",
	Action: func(cliContext *cli.Context) error {
		pid, err := parseUintArg(cliContext, 0, "pid")
		if err != nil {
			return err
		}
		return runSyscall(cliContext, types.ProcessId(pid), syscall.CREATE_EP, syscall.Args{})
	},
}

// DeleteEndpointCommand issues DELETE_EP.
var DeleteEndpointCommand = &cli.Command{
	Name:      "delete-ep",
	Usage:     "Delete an endpoint this process owns",
	ArgsUsage: "<pid> <slot> <endpoint>",
	Action: func(cliContext *cli.Context) error {
		pid, slot, err := parsePidSlot(cliContext)
		if err != nil {
			return err
		}
		ep, err := parseUintArg(cliContext, 2, "endpoint")
		if err != nil {
			return err
		}
		return runSyscall(cliContext, pid, syscall.DELETE_EP, syscall.Args{
			Slot:     slot,
			Endpoint: types.EndpointId(ep),
		})
	},
}

// SendCommand issues SEND: a fire-and-forget message with no capability
// transfer.
var SendCommand = &cli.Command{
	Name:      "send",
	Usage:     "Send a message on an endpoint this process holds a Write capability for",
	ArgsUsage: "<pid> <slot> <endpoint> <tag> <data>",
	Action: func(cliContext *cli.Context) error {
		pid, slot, err := parsePidSlot(cliContext)
		if err != nil {
			return err
		}
		ep, err := parseUintArg(cliContext, 2, "endpoint")
		if err != nil {
			return err
		}
		tag, err := parseUintArg(cliContext, 3, "tag")
		if err != nil {
			return err
		}
		data := cliContext.Args().Get(4)
		return runSyscall(cliContext, pid, syscall.SEND, syscall.Args{
			Slot:     slot,
			Endpoint: types.EndpointId(ep),
			Tag:      uint32(tag),
			Data:     []byte(data),
		})
	},
}

// SendCapCommand issues SEND_CAP: a message that also transfers one
// capability, named by its slot in the sender's own space, to the
// receiver.
var SendCapCommand = &cli.Command{
	Name:      "send-cap",
	Usage:     "Send a message transferring one capability along with it",
	ArgsUsage: "<pid> <slot> <endpoint> <tag> <data> <cap-src-slot>",
	Action: func(cliContext *cli.Context) error {
		pid, slot, err := parsePidSlot(cliContext)
		if err != nil {
			return err
		}
		ep, err := parseUintArg(cliContext, 2, "endpoint")
		if err != nil {
			return err
		}
		tag, err := parseUintArg(cliContext, 3, "tag")
		if err != nil {
			return err
		}
		data := cliContext.Args().Get(4)
		capSlot, err := parseUintArg(cliContext, 5, "cap-src-slot")
		if err != nil {
			return err
		}
		return runSyscall(cliContext, pid, syscall.SEND_CAP, syscall.Args{
			Slot:     slot,
			Endpoint: types.EndpointId(ep),
			Tag:      uint32(tag),
			Data:     []byte(data),
			Transfers: []syscall.TransferArg{
				{SrcSlot: types.CapSlot(capSlot)},
			},
		})
	},
}

// RecvCommand issues RECV.
var RecvCommand = &cli.Command{
	Name:      "recv",
	Usage:     "Receive the next message queued on an endpoint this process owns",
	ArgsUsage: "<pid> <slot> <endpoint>",
	Action: func(cliContext *cli.Context) error {
		pid, slot, err := parsePidSlot(cliContext)
		if err != nil {
			return err
		}
		ep, err := parseUintArg(cliContext, 2, "endpoint")
		if err != nil {
			return err
		}
		return runSyscall(cliContext, pid, syscall.RECV, syscall.Args{
			Slot:     slot,
			Endpoint: types.EndpointId(ep),
		})
	},
}

// CallCommand issues CALL: SEND plus an implicit one-shot reply endpoint.
var CallCommand = &cli.Command{
	Name:      "call",
	Usage:     "Send a message and create a one-shot reply endpoint for it",
	ArgsUsage: "<pid> <slot> <endpoint> <tag> <data>",
	Action: func(cliContext *cli.Context) error {
		pid, slot, err := parsePidSlot(cliContext)
		if err != nil {
			return err
		}
		ep, err := parseUintArg(cliContext, 2, "endpoint")
		if err != nil {
			return err
		}
		tag, err := parseUintArg(cliContext, 3, "tag")
		if err != nil {
			return err
		}
		data := cliContext.Args().Get(4)
		return runSyscall(cliContext, pid, syscall.CALL, syscall.Args{
			Slot:     slot,
			Endpoint: types.EndpointId(ep),
			Tag:      uint32(tag),
			Data:     []byte(data),
		})
	},
}

// ReplyCommand issues REPLY against a reply endpoint named in a prior RECV
// result's Message.ReplyTo-equivalent endpoint id.
var ReplyCommand = &cli.Command{
	Name:      "reply",
	Usage:     "Reply on a CALL's implicit reply endpoint",
	ArgsUsage: "<pid> <reply-endpoint> <tag> <data>",
	Action: func(cliContext *cli.Context) error {
		pid, err := parseUintArg(cliContext, 0, "pid")
		if err != nil {
			return err
		}
		ep, err := parseUintArg(cliContext, 1, "reply-endpoint")
		if err != nil {
			return err
		}
		tag, err := parseUintArg(cliContext, 2, "tag")
		if err != nil {
			return err
		}
		data := cliContext.Args().Get(3)
		replyTo := types.EndpointId(ep)
		return runSyscall(cliContext, types.ProcessId(pid), syscall.REPLY, syscall.Args{
			ReplyTo: &replyTo,
			Tag:     uint32(tag),
			Data:    []byte(data),
		})
	},
}
