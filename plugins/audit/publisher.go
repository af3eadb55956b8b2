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
	"time"

	"github.com/containerd/log"
	"github.com/containerd/ttrpc"
)

const (
	queueSize  = 2048
	maxRequeue = 5
)

type item struct {
	env   *Envelope
	ctx   context.Context
	count int
}

// Publisher forwards committed kernel mutations to a remote Audit service
// over ttrpc, requeuing with backoff on failure the way a live audit feed
// tolerates a collector that's briefly unreachable without ever blocking
// the Gateway that's producing the commits.
type Publisher struct {
	client  *ttrpc.Client
	forward Forwarder
	closed  chan struct{}
	closer  sync.Once
	requeue chan *item
}

// NewPublisher dials address and starts forwarding. Close releases the
// connection and stops the requeue loop.
func NewPublisher(ctx context.Context, network, address string) (*Publisher, error) {
	conn, err := net.Dial(network, address)
	if err != nil {
		return nil, err
	}
	client := ttrpc.NewClient(conn)

	p := &Publisher{
		client:  client,
		forward: NewForwarderClient(client),
		closed:  make(chan struct{}),
		requeue: make(chan *item, queueSize),
	}
	go p.processQueue(ctx)
	return p, nil
}

// Done returns a channel that closes when the publisher has shut down.
func (p *Publisher) Done() <-chan struct{} {
	return p.closed
}

// Close closes the ttrpc connection and stops the requeue loop.
func (p *Publisher) Close() error {
	err := p.client.Close()
	p.closer.Do(func() { close(p.closed) })
	return err
}

func (p *Publisher) processQueue(ctx context.Context) {
	for {
		select {
		case <-p.closed:
			return
		case i := <-p.requeue:
			if i.count > maxRequeue {
				log.G(ctx).WithField("seq", i.env.Seq).Error("evicting commit from audit queue after retry limit")
				continue
			}
			if err := p.forwardOne(i.ctx, i.env); err != nil {
				log.G(ctx).WithError(err).WithField("seq", i.env.Seq).Error("forward commit to audit collector")
				p.queue(i)
			}
		}
	}
}

func (p *Publisher) queue(i *item) {
	go func() {
		i.count++
		t := time.NewTimer(time.Duration(i.count) * time.Second)
		defer t.Stop()
		select {
		case <-p.closed:
		case <-t.C:
			select {
			case p.requeue <- i:
			case <-p.closed:
			}
		}
	}()
}

// Publish forwards env. On failure it requeues env for retry in the
// background and also returns the error to the caller.
func (p *Publisher) Publish(ctx context.Context, env *Envelope) error {
	if err := p.forwardOne(ctx, env); err != nil {
		p.queue(&item{env: env, ctx: ctx})
		return err
	}
	return nil
}

func (p *Publisher) forwardOne(ctx context.Context, env *Envelope) error {
	fCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := p.forward.Forward(fCtx, &ForwardRequest{Envelope: env})
	return err
}
