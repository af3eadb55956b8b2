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

package audit

import (
	"context"
	"net"
	"sync"
	"testing"

	"github.com/containerd/ttrpc"
	"github.com/stretchr/testify/require"

	"github.com/orbitkernel/kernel/core/axiom"
)

// recordingForwarder is a Forwarder that records every envelope it receives,
// standing in for a real audit collector in tests.
type recordingForwarder struct {
	mu        sync.Mutex
	envelopes []*Envelope
}

func (f *recordingForwarder) Forward(ctx context.Context, req *ForwardRequest) (*ForwardResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.envelopes = append(f.envelopes, req.Envelope)
	return &ForwardResponse{}, nil
}

func (f *recordingForwarder) seen() []*Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*Envelope, len(f.envelopes))
	copy(out, f.envelopes)
	return out
}

func startTestServer(t *testing.T, svc Forwarder) (addr string, stop func()) {
	t.Helper()
	srv, err := ttrpc.NewServer()
	require.NoError(t, err)
	RegisterForwarder(srv, svc)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go srv.Serve(context.Background(), l)

	return l.Addr().String(), func() {
		srv.Shutdown(context.Background())
	}
}

func TestForwardRoundTripsOverTTRPC(t *testing.T) {
	forwarder := &recordingForwarder{}
	addr, stop := startTestServer(t, forwarder)
	defer stop()

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	client := ttrpc.NewClient(conn)
	defer client.Close()

	remote := NewForwarderClient(client)

	l := axiom.NewCommitLog(100)
	c := l.Append(axiom.CommitType{Kind: axiom.ProcessCreated, Pid: 1, Name: "a"}, 101)
	env := NewEnvelope("run-1", c)

	resp, err := remote.Forward(context.Background(), &ForwardRequest{Envelope: env})
	require.NoError(t, err)
	require.NotNil(t, resp)

	seen := forwarder.seen()
	require.Len(t, seen, 1)
	require.Equal(t, env.RunID, seen[0].RunID)
	require.Equal(t, env.Seq, seen[0].Seq)
	require.Equal(t, env.Commit, seen[0].Commit)
}
