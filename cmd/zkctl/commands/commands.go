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

// Package commands holds the flags and helpers shared by every zkctl
// subcommand: opening the bolt-backed commit store a run lives in and
// rebuilding a Gateway from it.
package commands

import (
	"context"
	"time"

	"github.com/containerd/log"
	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/orbitkernel/kernel/core/axiom"
	"github.com/orbitkernel/kernel/plugins/audit"
	"github.com/orbitkernel/kernel/plugins/boltstore"
)

// RootFlag names the directory a run's commit store lives in, the zkctl
// analogue of ctr's --address: the one piece of state every subcommand
// needs to find its way to the same kernel run.
var RootFlag = &cli.StringFlag{
	Name:    "root",
	Aliases: []string{"r"},
	Usage:   "Directory holding this run's commit store",
	Value:   "./zkctl-run",
	EnvVars: []string{"ZKCTL_ROOT"},
}

// AuditNetworkFlag and AuditAddressFlag configure the ttrpc collector
// every commit-producing command forwards its newly persisted commits
// to. AuditAddressFlag unset (the default) disables forwarding: commands
// behave exactly as if plugins/audit didn't exist.
var AuditNetworkFlag = &cli.StringFlag{
	Name:    "audit-network",
	Usage:   "Network of the ttrpc audit collector (unix, tcp)",
	Value:   "unix",
	EnvVars: []string{"ZKCTL_AUDIT_NETWORK"},
}

var AuditAddressFlag = &cli.StringFlag{
	Name:    "audit-address",
	Usage:   "Address of a ttrpc audit collector; unset disables audit forwarding",
	EnvVars: []string{"ZKCTL_AUDIT_ADDRESS"},
}

// OpenGateway opens the commit store under cliContext's --root and
// rebuilds a Gateway from it by replaying every persisted commit.
// persistedSeq is the count of commits already on disk, the starting
// point a later Persist call needs so it doesn't try to re-append
// commits the store already has. Callers must Close the returned Store
// once done; the Gateway itself needs no explicit teardown.
func OpenGateway(cliContext *cli.Context) (gw *axiom.Gateway, store *boltstore.Store, persistedSeq uint64, err error) {
	root := cliContext.String(RootFlag.Name)
	store, err = boltstore.DefaultConfig().Open(cliContext.Context, root)
	if err != nil {
		return nil, nil, 0, err
	}

	commits, err := store.LoadCommits()
	if err != nil {
		store.Close()
		return nil, nil, 0, err
	}

	var clog *axiom.CommitLog
	if len(commits) == 0 {
		clog = axiom.NewCommitLog(time.Now().Unix())
	} else {
		clog = axiom.NewCommitLogFromCommits(commits)
	}

	// Each invocation is a fresh process, so run identity isn't persisted
	// across commands; every command gets its own uuid purely for log
	// correlation within that one invocation.
	gw = axiom.RestoreGateway(uuid.New(), clog)
	return gw, store, uint64(len(commits)), nil
}

// Persist appends every commit produced at or after fromSeq to store. Call
// this with the persistedSeq OpenGateway returned after every command that
// issues a syscall or creates a process.
func Persist(store *boltstore.Store, gw *axiom.Gateway, fromSeq uint64) error {
	for _, c := range gw.CommitLog().Commits() {
		if c.Seq < fromSeq {
			continue
		}
		if err := store.Append(c); err != nil {
			return err
		}
	}
	return nil
}

// OpenAuditPublisher dials the collector named by --audit-address and
// returns a nil *audit.Publisher, nil error when that flag is unset, so
// callers can pass the result straight to PublishAudit without a type
// switch. Callers holding a non-nil Publisher must Close it.
func OpenAuditPublisher(cliContext *cli.Context) (*audit.Publisher, error) {
	cfg := &audit.Config{
		Network: cliContext.String(AuditNetworkFlag.Name),
		Address: cliContext.String(AuditAddressFlag.Name),
	}
	return cfg.Open(cliContext.Context)
}

// PublishAudit forwards every commit at or after fromSeq to pub, tagged
// with gw's run id. A nil pub is a no-op: the zero-configuration path
// every command takes when --audit-address is unset. Publish failures
// are logged and otherwise swallowed; the Publisher itself requeues with
// backoff, and a CLI command that already persisted its commits must not
// fail just because the audit collector is briefly unreachable.
func PublishAudit(ctx context.Context, pub *audit.Publisher, gw *axiom.Gateway, fromSeq uint64) {
	if pub == nil {
		return
	}
	runID := gw.RunID().String()
	for _, c := range gw.CommitLog().Commits() {
		if c.Seq < fromSeq {
			continue
		}
		if err := pub.Publish(ctx, audit.NewEnvelope(runID, c)); err != nil {
			log.G(ctx).WithError(err).WithField("seq", c.Seq).Warn("publish commit to audit collector")
		}
	}
}
