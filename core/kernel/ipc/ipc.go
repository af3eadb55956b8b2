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

// Package ipc implements the kernel's message-passing primitives:
// endpoints, their bounded queues, and messages with transferable
// capabilities. Everything here is data plus queue bookkeeping; the
// authorization checks and capability moves that guard access to an
// endpoint live in the capability and step packages.
package ipc

import (
	"errors"
	"fmt"

	"github.com/containerd/errdefs"

	"github.com/orbitkernel/kernel/core/kernel/capability"
	"github.com/orbitkernel/kernel/core/kernel/types"
)

// ErrQueueFull is returned by Enqueue when an endpoint's queue is already
// at MaxEndpointQueueDepth.
var ErrQueueFull = errors.New("endpoint queue full")

// ErrMessageTooLarge is returned when a message payload exceeds
// types.MaxMessageSize.
var ErrMessageTooLarge = errors.New("message payload too large")

// ErrTooManyCaps is returned when a message carries more than
// types.MaxCapsPerMessage transferred capabilities.
var ErrTooManyCaps = errors.New("too many transferred capabilities")

func errQueueFull(id types.EndpointId) error {
	return fmt.Errorf("%w: endpoint %s: %w", ErrQueueFull, id, errdefs.ErrResourceExhausted)
}

func errMessageTooLarge(size int) error {
	return fmt.Errorf("%w: %d bytes exceeds %d: %w", ErrMessageTooLarge, size, types.MaxMessageSize, errdefs.ErrInvalidArgument)
}

func errTooManyCaps(n int) error {
	return fmt.Errorf("%w: %d exceeds %d: %w", ErrTooManyCaps, n, types.MaxCapsPerMessage, errdefs.ErrInvalidArgument)
}

// TransferredCap is one capability riding along with a Message. Ref is the
// opaque handle the capability engine issued when the sender's copy was
// detached; ReceiverSlotHint is the slot the sender suggests the receiver
// install it in.
type TransferredCap struct {
	Ref              capability.CapRef
	ObjectType       types.ObjectType
	ObjectID         uint64
	Permissions      types.Permissions
	ReceiverSlotHint *types.CapSlot
}

// Message is one IPC message en route from From to an endpoint.
type Message struct {
	From            types.ProcessId
	Tag             uint32
	Data            []byte
	TransferredCaps []TransferredCap

	// ReplyTo is the ephemeral one-shot reply endpoint a CALL attaches to
	// its outgoing message. A plain SEND/SEND_CAP leaves this nil.
	ReplyTo *types.EndpointId

	// SendSeq is a per-endpoint monotonic counter assigned at enqueue
	// time, used to break ties when messages share a Timestamp (spec.md
	// §4.2's ordering guarantee).
	SendSeq uint64
	// Timestamp is the `now` the SEND syscall carried.
	Timestamp int64
}

// Summary is the read-only, cap-free projection of a queued message used
// by PS-style introspection.
type Summary struct {
	From types.ProcessId
	Tag  uint32
	Size int
}

// Endpoint is a kernel-owned bounded FIFO message queue with a single
// owner and potentially many senders.
type Endpoint struct {
	ID      types.EndpointId
	Owner   types.ProcessId
	pending []Message
	nextSeq uint64
	Metrics types.EndpointMetrics
}

// NewEndpoint allocates an empty endpoint owned by owner.
func NewEndpoint(id types.EndpointId, owner types.ProcessId) *Endpoint {
	return &Endpoint{ID: id, Owner: owner}
}

// Clone returns a deep copy of e.
func (e *Endpoint) Clone() *Endpoint {
	cp := &Endpoint{
		ID:      e.ID,
		Owner:   e.Owner,
		nextSeq: e.nextSeq,
		Metrics: e.Metrics,
	}
	cp.pending = make([]Message, len(e.pending))
	for i, m := range e.pending {
		cp.pending[i] = m
		cp.pending[i].Data = append([]byte(nil), m.Data...)
		cp.pending[i].TransferredCaps = append([]TransferredCap(nil), m.TransferredCaps...)
		if m.ReplyTo != nil {
			id := *m.ReplyTo
			cp.pending[i].ReplyTo = &id
		}
	}
	return cp
}

// Len reports the number of messages currently queued.
func (e *Endpoint) Len() int {
	return len(e.pending)
}

// Enqueue appends msg to the tail of the queue, assigning its SendSeq.
// Fails with ErrQueueFull past MaxEndpointQueueDepth, ErrMessageTooLarge
// past MaxMessageSize, or ErrTooManyCaps past MaxCapsPerMessage. On any
// failure the queue is left untouched.
func (e *Endpoint) Enqueue(msg Message) (Message, error) {
	if len(msg.Data) > types.MaxMessageSize {
		return Message{}, errMessageTooLarge(len(msg.Data))
	}
	if len(msg.TransferredCaps) > types.MaxCapsPerMessage {
		return Message{}, errTooManyCaps(len(msg.TransferredCaps))
	}
	if len(e.pending) >= types.MaxEndpointQueueDepth {
		e.Metrics.QueueFullDrops++
		return Message{}, errQueueFull(e.ID)
	}

	msg.SendSeq = e.nextSeq
	e.nextSeq++
	e.pending = append(e.pending, msg)
	e.Metrics.MessagesSent++
	if len(e.pending) > e.Metrics.HighWaterMark {
		e.Metrics.HighWaterMark = len(e.pending)
	}
	return msg, nil
}

// Dequeue removes and returns the head message, reporting ok=false if the
// queue is empty (the caller surfaces this as WouldBlock).
func (e *Endpoint) Dequeue() (Message, bool) {
	if len(e.pending) == 0 {
		return Message{}, false
	}
	msg := e.pending[0]
	e.pending = e.pending[1:]
	e.Metrics.MessagesReceived++
	return msg, true
}

// Drain removes and returns every pending message, leaving the queue
// empty. Used by DELETE_ENDPOINT.
func (e *Endpoint) Drain() []Message {
	out := e.pending
	e.pending = nil
	return out
}

// Pending returns defensive copies of every queued message, head first,
// without mutating the queue. Used by state hashing, which needs full
// message fidelity rather than Peek's size-only summaries.
func (e *Endpoint) Pending() []Message {
	out := make([]Message, len(e.pending))
	for i, m := range e.pending {
		out[i] = m
		out[i].Data = append([]byte(nil), m.Data...)
		out[i].TransferredCaps = append([]TransferredCap(nil), m.TransferredCaps...)
	}
	return out
}

// Peek returns read-only summaries of the queued messages, head first,
// without mutating the queue.
func (e *Endpoint) Peek() []Summary {
	out := make([]Summary, len(e.pending))
	for i, m := range e.pending {
		out[i] = Summary{From: m.From, Tag: m.Tag, Size: len(m.Data)}
	}
	return out
}
