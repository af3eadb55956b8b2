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
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/containerd/ttrpc"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/orbitkernel/kernel/plugins/audit"
)

func testApp(commands ...*cli.Command) *cli.App {
	app := cli.NewApp()
	app.Name = "zkctl-test"
	app.Flags = []cli.Flag{RootFlag}
	app.Commands = commands
	return app
}

func TestCreateCommandRequiresName(t *testing.T) {
	app := testApp(CreateCommand)
	err := app.Run([]string{"zkctl-test", "--root", t.TempDir(), "create"})
	require.Error(t, err)
}

func TestCreateThenPSSucceeds(t *testing.T) {
	root := t.TempDir()
	app := testApp(CreateCommand, PSCommand)

	require.NoError(t, app.Run([]string{"zkctl-test", "--root", root, "create", "alpha"}))
	require.NoError(t, app.Run([]string{"zkctl-test", "--root", root, "ps"}))

	cctx := testContext(t, root)
	gw, store, _, err := OpenGateway(cctx)
	require.NoError(t, err)
	defer store.Close()
	require.Len(t, gw.State().PS(), 2) // host + alpha
}

// recordingForwarder stands in for a remote audit collector, recording
// every envelope a Publisher forwards to it.
type recordingForwarder struct {
	mu        sync.Mutex
	envelopes []*audit.Envelope
}

func (f *recordingForwarder) Forward(ctx context.Context, req *audit.ForwardRequest) (*audit.ForwardResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.envelopes = append(f.envelopes, req.Envelope)
	return &audit.ForwardResponse{}, nil
}

func (f *recordingForwarder) seen() []*audit.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*audit.Envelope, len(f.envelopes))
	copy(out, f.envelopes)
	return out
}

func TestCreateCommandPublishesAuditEnvelopeWhenConfigured(t *testing.T) {
	forwarder := &recordingForwarder{}
	srv, err := ttrpc.NewServer()
	require.NoError(t, err)
	audit.RegisterForwarder(srv, forwarder)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go srv.Serve(context.Background(), l)
	defer srv.Shutdown(context.Background())

	app := testApp(CreateCommand)
	app.Flags = append(app.Flags, AuditNetworkFlag, AuditAddressFlag)

	root := t.TempDir()
	require.NoError(t, app.Run([]string{
		"zkctl-test", "--root", root,
		"--audit-network", "tcp", "--audit-address", l.Addr().String(),
		"create", "alpha",
	}))

	require.Eventually(t, func() bool {
		return len(forwarder.seen()) > 0
	}, 2*time.Second, 10*time.Millisecond, "audit collector should have received at least one envelope")

	seen := forwarder.seen()
	require.Equal(t, "ProcessCreated", seen[len(seen)-1].Kind)
}

func TestKillCommandRejectsMissingArgs(t *testing.T) {
	app := testApp(KillCommand)
	err := app.Run([]string{"zkctl-test", "--root", t.TempDir(), "kill"})
	require.Error(t, err)
}
