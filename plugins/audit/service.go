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

	"github.com/containerd/ttrpc"
)

// serviceName identifies the Audit service on the ttrpc wire; ttrpc
// dispatches by the pair (serviceName, method), same as a protobuf
// service's fully qualified name would, but here it's just a constant.
const serviceName = "io.orbitkernel.audit.v1.Audit"

// Forwarder is the Audit service's one method: hand a committed mutation
// to whatever is collecting them.
type Forwarder interface {
	Forward(ctx context.Context, req *ForwardRequest) (*ForwardResponse, error)
}

// RegisterForwarder registers svc on srv using ttrpc's low-level
// Server.Register/Method API, the same mechanism generated *_ttrpc.pb.go code
// uses internally, but hand-written since this service has no .proto.
func RegisterForwarder(srv *ttrpc.Server, svc Forwarder) {
	srv.Register(serviceName, map[string]ttrpc.Method{
		"Forward": func(ctx context.Context, unmarshal func(interface{}) error) (interface{}, error) {
			var req ForwardRequest
			if err := unmarshal(&req); err != nil {
				return nil, err
			}
			return svc.Forward(ctx, &req)
		},
	})
}

// forwarderClient calls a remote Audit service over an existing
// ttrpc.Client connection.
type forwarderClient struct {
	client *ttrpc.Client
}

// NewForwarderClient wraps c as a Forwarder.
func NewForwarderClient(c *ttrpc.Client) Forwarder {
	return &forwarderClient{client: c}
}

func (f *forwarderClient) Forward(ctx context.Context, req *ForwardRequest) (*ForwardResponse, error) {
	var resp ForwardResponse
	if err := f.client.Call(ctx, serviceName, "Forward", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
