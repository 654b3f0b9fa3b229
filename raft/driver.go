package raft

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/lxc/raftd/raft/timer"
)

// Driver is the per-node role driver: a single dispatch goroutine that
// owns the current Role and NodeState, receives events over inbox,
// calls into Core to decide what happens next, and executes the
// resulting effects. Grounded on the teacher's single-goroutine
// dispatch pattern in lxd/cluster/heartbeat.go, generalized from a
// fixed heartbeat loop to the general event/effect loop §4 describes.
type Driver struct {
	cfg   Config
	state NodeState
	role  Role
	// roleView mirrors role for the benefit of Role(), callable from
	// any goroutine; the dispatch loop is still the sole writer of
	// role itself.
	roleView atomic.Int32

	inbox chan Event
	local []Event

	pending pendingBuffer

	electionTimer *timer.OneShot
	syncTimer     *timer.OneShot

	proxy ProxySupervisor

	mu       sync.Mutex
	stopped  bool
	stopCh   chan struct{}
	stopOnce sync.Once
}

// New constructs a driver for cfg.Init.ID, seeding the decision core
// via cfg.Init. The driver does not arm its initial election timer or
// start processing events until Run is called.
func New(cfg Config) (*Driver, error) {
	cfg.setDefaults()

	state, err := cfg.Core.Init(cfg.Init)
	if err != nil {
		return nil, errors.Wrap(err, "init decision core")
	}

	d := &Driver{
		cfg:           cfg,
		state:         state,
		role:          Follower,
		inbox:         make(chan Event, 64),
		electionTimer: timer.NewOneShot(),
		syncTimer:     timer.NewOneShot(),
		stopCh:        make(chan struct{}),
	}

	return d, nil
}

func (d *Driver) core() Core           { return d.cfg.Core }
func (d *Driver) transport() Transport { return d.cfg.Transport }
func (d *Driver) logger() Logger       { return d.cfg.Logger }
func (d *Driver) stats() Stats         { return d.cfg.Stats }

// Run processes events until ctx is canceled or the decision core
// requests a Stop transition. It is meant to be run in its own
// goroutine; Deliver/Submit are the only safe ways to feed it events
// from the outside.
func (d *Driver) Run(ctx context.Context) error {
	d.armElectionTimer()

	for {
		ev, ok := d.next(ctx)
		if !ok {
			return ctx.Err()
		}

		stop, err := d.dispatchOne(ctx, ev)
		if err != nil {
			d.logger().Error("dispatch failed", map[string]any{"err": err})
			d.terminate()
			return err
		}

		if stop {
			d.terminate()
			return nil
		}
	}
}

// next returns the next event to process, preferring the local queue
// fed by NextEvent effects (§4: "processed... ahead of any other
// pending inbound event") over the external inbox.
func (d *Driver) next(ctx context.Context) (Event, bool) {
	if len(d.local) > 0 {
		ev := d.local[0]
		d.local = d.local[1:]
		return ev, true
	}

	select {
	case ev := <-d.inbox:
		return ev, true
	case <-d.stopCh:
		return Event{}, false
	case <-ctx.Done():
		return Event{}, false
	}
}

// dispatchOne handles a single event, returning true if the driver
// should terminate after applying its effects.
func (d *Driver) dispatchOne(ctx context.Context, ev Event) (bool, error) {
	switch body := ev.Body.(type) {
	case LeaderCall:
		return false, d.handleLeaderCall(ctx, ev, body)

	case DirtyQuery:
		d.handleDirtyQuery(ev, body)
		return false, nil

	default:
		return d.handleCoreEvent(ctx, ev)
	}
}

// handleDirtyQuery answers a dirty_query directly against the current
// machine state snapshot, without invoking the decision core (§4.6:
// "evaluated locally... does not pass through the core and therefore
// cannot affect role or term").
func (d *Driver) handleDirtyQuery(ev Event, body DirtyQuery) {
	result := DirtyQueryResult{
		LastApplied: d.state.LastApplied(),
		Term:        d.state.CurrentTerm(),
		Result:      body.Fn(d.state.MachineState()),
	}

	if ev.Reply != nil {
		ev.Reply(result)
	}
}

// handleLeaderCall implements the routing table in §4.4/§4.5: Leader
// dispatches into the core like any other event, Follower with a known
// leader redirects immediately, and everyone else buffers.
func (d *Driver) handleLeaderCall(ctx context.Context, ev Event, call LeaderCall) error {
	switch d.role {
	case Leader:
		return d.dispatchCore(ctx, Event{Class: ev.Class, Body: stampCallerHandle(call.Inner, ev.Reply), Reply: ev.Reply})

	case Follower:
		if leader, ok := d.state.LeaderKnown(); ok {
			if ev.Reply != nil {
				ev.Reply(Redirect{Leader: leader})
			}

			return nil
		}

		d.pending.push(ev.Class, call.Inner, ev.Reply)
		d.stats().PendingDepth(d.pending.len())
		return nil

	default: // Candidate
		d.pending.push(ev.Class, call.Inner, ev.Reply)
		d.stats().PendingDepth(d.pending.len())
		return nil
	}
}

// stampCallerHandle implements the leader command path transform in
// §4.1: a CommandReq inner body is rewritten to a CommandForCore
// carrying the caller's reply handle, so the decision core can emit a
// Reply effect with a nil Handle (resolved against the current call)
// or, for ReplyNotifyOnConsensus commands, stash CallerAddr in its own
// state and address a later Notify effect to it. Any other inner body
// (e.g. StateQuery) passes through unchanged.
func stampCallerHandle(inner any, reply ReplyFunc) any {
	cmd, ok := inner.(CommandReq)
	if !ok {
		return inner
	}

	return CommandForCore{
		Kind:        cmd.Kind,
		CallerReply: reply,
		CallerAddr:  cmd.CallerAddr,
		Data:        cmd.Data,
		ReplyMode:   cmd.ReplyMode,
	}
}

// handleCoreEvent routes any event not specially handled above into
// the decision core for the current role, applies the resulting
// transition, and executes its effects.
func (d *Driver) handleCoreEvent(ctx context.Context, ev Event) (bool, error) {
	if err := d.dispatchCore(ctx, ev); err != nil {
		return false, err
	}

	return d.role == Stop, nil
}

// dispatchCore calls the decision core for the current role, applies
// the role/state transition and the leader-change side effects on the
// pending buffer (§4.4), and interprets the resulting effects.
func (d *Driver) dispatchCore(ctx context.Context, ev Event) error {
	var (
		next  Role
		state NodeState
		effs  []Effect
	)

	prevLeader, prevKnown := d.state.LeaderKnown()

	if _, exited := ev.Body.(ProxyExited); exited {
		// The handle is already gone; clear it so the core's response
		// (typically a fresh send_rpcs) recreates the proxy rather than
		// addressing the dead one (§4.7: "start a fresh proxy").
		d.proxy = nil
		d.stats().ProxyRestart()
	}

	switch d.role {
	case Follower:
		next, state, effs = d.core().HandleFollower(ev, d.state)
	case Candidate:
		next, state, effs = d.core().HandleCandidate(ev, d.state)
	case Leader:
		next, state, effs = d.core().HandleLeader(ev, d.state)
	default:
		return errors.Errorf("raft: event dispatched while in role %s", d.role)
	}

	d.state = state

	if next != d.role {
		d.stats().RoleTransition(d.role, next)
		d.onTransition(ctx, d.role, next)
		d.role = next
		d.roleView.Store(int32(next))
	}

	if leader, known := d.state.LeaderKnown(); known && (!prevKnown || leader != prevLeader) {
		d.pending.drainRedirect(leader)
		d.stats().PendingDepth(0)
	}

	if err := d.interpret(ctx, effs, &ev); err != nil {
		return err
	}

	d.armElectionTimer()
	return nil
}

// onTransition carries out the role-change duties §4.4 assigns beyond
// what the core's own effects cover: replaying buffered commands on
// promotion to Leader, and tearing down the replication proxy when
// stepping down or stopping.
func (d *Driver) onTransition(ctx context.Context, from, to Role) {
	if to == Leader {
		for _, ev := range d.pending.drainReplay() {
			d.local = append(d.local, ev)
		}

		d.stats().PendingDepth(0)
	}

	if from == Leader && to != Leader {
		d.stopProxy(ctx)
	}
}

// armElectionTimer (re)arms the election timer unless the current role
// is Leader, which never times out an election (§4.3).
func (d *Driver) armElectionTimer() {
	if d.role == Leader {
		d.electionTimer.Cancel()
		return
	}

	lo, hi := 2*d.cfg.BroadcastTime, 5*d.cfg.BroadcastTime
	if d.role == Candidate {
		hi = 7 * d.cfg.BroadcastTime
	}

	d.electionTimer.Arm(timer.RandomDuration(d.cfg.Rand, lo, hi), func() {
		d.electionTimer.MarkFired()
		d.inject(Event{Class: ClassTimer, Body: ElectionTimeout{}})
	})
}

// startProxy brings up a fresh replication proxy and seeds it with the
// current replication batch, per §4.7.
func (d *Driver) startProxy(ctx context.Context) error {
	p := d.cfg.ProxyFactory()

	if err := p.Start(ctx, d.cfg.BroadcastTime); err != nil {
		return errors.Wrap(err, "start replication proxy")
	}

	d.proxy = p
	batch := d.core().MakeRPCs(d.state)

	go func() {
		<-p.Done()
		// Only the dispatch goroutine replaces d.proxy, and only ever
		// with a result of this same function, so identity comparison
		// here discards a stale exit notification from a proxy that
		// has already been superseded or stopped.
		if d.proxy != p {
			return
		}

		d.inject(Event{Class: ClassInfo, Body: ProxyExited{Err: p.Err()}})
	}()

	if batch != nil {
		return p.Send(ctx, true, batch)
	}

	return nil
}

// stopProxy asks the current proxy to shut down gracefully, if one is
// running.
func (d *Driver) stopProxy(ctx context.Context) {
	if d.proxy == nil {
		return
	}

	// Clear the handle before stopping, so the exit watcher started in
	// startProxy sees the proxy as superseded and does not report it.
	p := d.proxy
	d.proxy = nil

	stopCtx, cancel := context.WithTimeout(ctx, d.cfg.ProxyGrace)
	defer cancel()

	if err := p.Stop(stopCtx, d.cfg.ProxyGrace); err != nil {
		d.logger().Warn("proxy stop failed", map[string]any{"err": err})
	}
}

// Deliver implements transport.Handler, the entry point for inbound
// peer/client RPCs. It blocks until the event has been processed for
// ClassCall, and returns nil immediately otherwise.
func (d *Driver) Deliver(ctx context.Context, class Class, body any) (any, error) {
	if d.isStopped() {
		return nil, ErrStopped
	}

	if class != ClassCall {
		select {
		case d.inbox <- Event{Class: class, Body: body}:
			return nil, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	replyCh := make(chan any, 1)
	ev := Event{
		Class: class,
		Body:  body,
		Reply: func(value any) { replyCh <- value },
	}

	select {
	case d.inbox <- ev:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case reply := <-replyCh:
		return reply, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// inject enqueues an event from outside the dispatch goroutine (a vote
// task, a proxy exit notification, a fired timer).
func (d *Driver) inject(ev Event) {
	if d.isStopped() {
		return
	}

	select {
	case d.inbox <- ev:
	case <-d.stopCh:
	}
}

// Submit enqueues ev from within the same process, bypassing the
// transport layer; used by cmd/raftd and by tests to inject casts.
func (d *Driver) Submit(ctx context.Context, ev Event) {
	select {
	case d.inbox <- ev:
	case <-ctx.Done():
	case <-d.stopCh:
	}
}

func (d *Driver) isStopped() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stopped
}

// Stop requests an orderly shutdown of the dispatch loop; it does not
// wait for Run to return.
func (d *Driver) Stop() {
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()

	d.stopOnce.Do(func() { close(d.stopCh) })
}

func (d *Driver) terminate() {
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()

	d.electionTimer.Cancel()
	d.syncTimer.Cancel()
	d.stopProxy(context.Background())
	d.core().Terminate(d.state)
	d.stopOnce.Do(func() { close(d.stopCh) })
}

// Role reports the driver's current role, for tests and introspection.
// Safe to call from any goroutine.
func (d *Driver) Role() Role { return Role(d.roleView.Load()) }
