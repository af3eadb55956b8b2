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

// Package audit forwards committed kernel state mutations to a remote
// collector over ttrpc. It has no generated stub: request and response
// types implement ttrpc's Marshaler/Unmarshaler directly with JSON, so the
// wire format needs no protoc step, only the ttrpc runtime itself.
package audit

import (
	"encoding/json"

	"github.com/orbitkernel/kernel/core/axiom"
)

// Envelope is one forwarded commit, addressed by the run it came from.
type Envelope struct {
	RunID     string          `json:"run_id"`
	Seq       uint64          `json:"seq"`
	Timestamp int64           `json:"timestamp"`
	Kind      string          `json:"kind"`
	ThisHash  string          `json:"this_hash"`
	Commit    axiom.CommitType `json:"commit"`
}

// NewEnvelope builds an Envelope from a committed entry.
func NewEnvelope(runID string, c axiom.Commit) *Envelope {
	return &Envelope{
		RunID:     runID,
		Seq:       c.Seq,
		Timestamp: c.Timestamp,
		Kind:      c.Type.Kind.String(),
		ThisHash:  c.ThisHash.String(),
		Commit:    c.Type,
	}
}

// ForwardRequest is the ttrpc request for the Audit/Forward method.
type ForwardRequest struct {
	Envelope *Envelope `json:"envelope"`
}

// Marshal implements ttrpc.Marshaler.
func (r *ForwardRequest) Marshal() ([]byte, error) { return json.Marshal(r) }

// Unmarshal implements ttrpc.Unmarshaler.
func (r *ForwardRequest) Unmarshal(b []byte) error { return json.Unmarshal(b, r) }

// ForwardResponse is the (empty) ttrpc response for Forward.
type ForwardResponse struct{}

// Marshal implements ttrpc.Marshaler.
func (r *ForwardResponse) Marshal() ([]byte, error) { return json.Marshal(r) }

// Unmarshal implements ttrpc.Unmarshaler.
func (r *ForwardResponse) Unmarshal(b []byte) error { return json.Unmarshal(b, r) }
