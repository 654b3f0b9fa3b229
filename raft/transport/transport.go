// Package transport provides the opaque node-identifier addressed
// send/call abstraction the role driver requires (spec §1: "transport
// assumed to deliver messages by opaque node identifiers"; defining a
// wire format is an explicit non-goal). It ships a single in-memory
// implementation, adequate for tests and for composing a
// single-process demo of several driver instances; it carries Go
// values directly rather than serializing them, mirroring the BEAM
// message-passing semantics the specification's source system relies
// on for effects like dirty_query's closure payload.
package transport

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/lxc/raftd/raft"
)

// Handler is implemented by whatever is registered under a NodeID —
// in practice, a *raft.Driver. Deliver must not block past what the
// caller's context/timeout allows.
type Handler interface {
	Deliver(ctx context.Context, class raft.Class, body any) (any, error)
}

// Registry is an in-memory Transport: a process-wide table mapping
// NodeID to the Handler currently registered for it. Node("A").Send to
// Node("B") resolves directly to B's Handler.Deliver, with no actual
// network hop — grounded on the teacher's raft.NewInmemTransport
// fallback in lxd/cluster/raft.go, used there for single-node/test
// operation of the very same kind of consensus transport this module
// formalizes into its primary interface.
type Registry struct {
	mu       sync.RWMutex
	handlers map[raft.NodeID]Handler
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[raft.NodeID]Handler)}
}

// Register binds id to h, replacing any previous handler for id.
func (r *Registry) Register(id raft.NodeID, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.handlers[id] = h
}

// Unregister removes id, if present.
func (r *Registry) Unregister(id raft.NodeID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.handlers, id)
}

func (r *Registry) lookup(id raft.NodeID) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handlers[id]
	return h, ok
}

// ErrNoProcess is returned when no handler is registered for the
// target node id, the in-memory analogue of an Erlang {error, noproc}.
var ErrNoProcess = errors.New("transport: no process registered for node")

// ErrNodeDown is returned when the target was registered but the call
// deadline elapsed before it replied. Errors returned by the handler
// itself are passed back to the caller unchanged.
var ErrNodeDown = errors.New("transport: node down")

// Bound returns a raft.Transport that sends/calls as if originating
// from self — the registry itself does not need to know the sender's
// identity, but Bound exists so callers construct one Transport per
// node rather than threading a bare *Registry plus an id everywhere.
func (r *Registry) Bound(self raft.NodeID) raft.Transport {
	return &bound{registry: r, self: self}
}

type bound struct {
	registry *Registry
	self     raft.NodeID
}

// Send is fire-and-forget: it hands the message to the target
// handler's goroutine and does not wait for Deliver to return, only
// for it to have been scheduled.
func (b *bound) Send(ctx context.Context, to raft.NodeID, class raft.Class, body any) error {
	h, ok := b.registry.lookup(to)
	if !ok {
		return errors.Wrapf(ErrNoProcess, "send to %s", to)
	}

	go func() {
		deliverCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, _ = h.Deliver(deliverCtx, class, body)
	}()

	return nil
}

// Call performs a synchronous request and waits for a reply or for
// timeout/ctx to elapse.
func (b *bound) Call(ctx context.Context, to raft.NodeID, body any, timeout time.Duration) (any, error) {
	h, ok := b.registry.lookup(to)
	if !ok {
		return nil, errors.Wrapf(ErrNoProcess, "call to %s", to)
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		value any
		err   error
	}

	resultCh := make(chan result, 1)
	go func() {
		value, err := h.Deliver(callCtx, raft.ClassCall, body)
		resultCh <- result{value: value, err: err}
	}()

	select {
	case r := <-resultCh:
		return r.value, r.err
	case <-callCtx.Done():
		return nil, errors.Wrapf(ErrNodeDown, "call to %s timed out", to)
	}
}
