// Package proxy implements the replication sub-driver supervisor
// described in §4.7/§6 of the specification: a handle that accepts
// append-entries batches and guarantees a heartbeat goes out to every
// peer no less often than the broadcast interval, even with no new
// batch to send. The replication sub-driver's own internals (log
// shipping, acknowledgement tracking) are out of scope; this package
// only implements its externally observable contract.
//
// Grounded on the teacher's lxd/cluster heartbeat goroutine
// (lxd/cluster/heartbeat.go), which fans a periodic message out to
// every cluster member with a sync.WaitGroup, generalized here to run
// on raft/timer.Group instead of a single ad-hoc ticker.
package proxy

import (
	"context"
	"sync"
	"time"

	"github.com/lxc/raftd/raft"
	"github.com/lxc/raftd/raft/timer"
)

// Supervisor is a raft.ProxySupervisor broadcasting batches to a fixed
// peer set over a raft.Transport.
type Supervisor struct {
	peers     []raft.NodeID
	transport raft.Transport
	logger    raft.Logger

	group *timer.Group

	mu     sync.Mutex
	latest raft.Batch

	done     chan struct{}
	doneOnce sync.Once
	err      error
}

// NewFactory returns a raft.ProxyFactory building a fresh Supervisor
// targeting peers over transport each time the driver needs one (on
// first send_rpcs while Leader, and again after an unexpected exit).
func NewFactory(peers []raft.NodeID, transport raft.Transport, logger raft.Logger) raft.ProxyFactory {
	return func() raft.ProxySupervisor {
		return &Supervisor{
			peers:     peers,
			transport: transport,
			logger:    logger,
			done:      make(chan struct{}),
		}
	}
}

// Start launches the heartbeat loop, sending the most recently queued
// batch (nil until the first Send) to every peer no less often than
// interval.
func (s *Supervisor) Start(ctx context.Context, interval time.Duration) error {
	s.group = timer.NewGroup()
	s.group.Add(s.heartbeat, timer.Every(interval))
	s.group.Start(ctx)

	go func() {
		<-ctx.Done()
		s.finish(ctx.Err())
	}()

	return nil
}

func (s *Supervisor) heartbeat(ctx context.Context) {
	s.mu.Lock()
	batch := s.latest
	s.mu.Unlock()

	s.broadcast(ctx, batch)
}

// Send queues batch as the latest known replication state and, if
// urgent, broadcasts it immediately rather than waiting for the next
// heartbeat tick.
func (s *Supervisor) Send(ctx context.Context, urgent bool, batch raft.Batch) error {
	s.mu.Lock()
	s.latest = batch
	s.mu.Unlock()

	if urgent {
		s.broadcast(ctx, batch)
	}

	return nil
}

// broadcast fans batch out to every peer concurrently, logging but
// otherwise ignoring individual send failures: a peer that is
// unreachable this tick will receive the next heartbeat or the next
// urgent batch, per the replication sub-driver's own retry contract
// (§6, out of scope here).
func (s *Supervisor) broadcast(ctx context.Context, batch raft.Batch) {
	if batch == nil {
		return
	}

	var wg sync.WaitGroup
	for _, peer := range s.peers {
		wg.Add(1)
		go func(peer raft.NodeID) {
			defer wg.Done()

			if err := s.transport.Send(ctx, peer, raft.ClassInfo, batch); err != nil {
				s.logger.Warn("proxy send failed", map[string]any{"peer": peer, "err": err})
			}
		}(peer)
	}

	wg.Wait()
}

// Stop cancels the heartbeat loop and waits up to grace for it to
// finish, reporting a clean exit either way: Stop is the driver asking
// for shutdown, not the proxy failing.
func (s *Supervisor) Stop(ctx context.Context, grace time.Duration) error {
	var err error
	if s.group != nil {
		err = s.group.Stop(grace)
	}

	s.finish(nil)
	return err
}

// Done is closed once the supervisor has stopped, whether asked to or
// because its context was canceled out from under it.
func (s *Supervisor) Done() <-chan struct{} { return s.done }

// Err is the reason the supervisor stopped; nil after a clean Stop.
func (s *Supervisor) Err() error { return s.err }

func (s *Supervisor) finish(err error) {
	s.doneOnce.Do(func() {
		s.err = err
		close(s.done)
	})
}
