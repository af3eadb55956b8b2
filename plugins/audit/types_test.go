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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/orbitkernel/kernel/core/axiom"
)

func TestNewEnvelopeProjectsCommitFields(t *testing.T) {
	l := axiom.NewCommitLog(100)
	c := l.Append(axiom.CommitType{Kind: axiom.ProcessCreated, Pid: 1, Name: "a"}, 101)

	env := NewEnvelope("run-1", c)
	require.Equal(t, "run-1", env.RunID)
	require.Equal(t, c.Seq, env.Seq)
	require.Equal(t, c.Timestamp, env.Timestamp)
	require.Equal(t, "ProcessCreated", env.Kind)
	require.Equal(t, c.ThisHash.String(), env.ThisHash)
	require.Equal(t, c.Type, env.Commit)
}

func TestForwardRequestMarshalUnmarshalRoundTrip(t *testing.T) {
	l := axiom.NewCommitLog(100)
	c := l.Append(axiom.CommitType{Kind: axiom.ProcessCreated, Pid: 1, Name: "a"}, 101)
	req := &ForwardRequest{Envelope: NewEnvelope("run-1", c)}

	encoded, err := req.Marshal()
	require.NoError(t, err)

	var decoded ForwardRequest
	require.NoError(t, decoded.Unmarshal(encoded))
	require.Equal(t, req.Envelope.RunID, decoded.Envelope.RunID)
	require.Equal(t, req.Envelope.Seq, decoded.Envelope.Seq)
	require.Equal(t, req.Envelope.Commit, decoded.Envelope.Commit)
}

func TestForwardResponseMarshalUnmarshalRoundTrip(t *testing.T) {
	resp := &ForwardResponse{}
	encoded, err := resp.Marshal()
	require.NoError(t, err)

	var decoded ForwardResponse
	require.NoError(t, decoded.Unmarshal(encoded))
}
