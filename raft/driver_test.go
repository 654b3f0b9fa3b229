package raft_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lxc/raftd/raft"
	"github.com/lxc/raftd/raft/raftfake"
	"github.com/lxc/raftd/raft/transport"
)

func newDriver(t *testing.T, id raft.NodeID, core *raftfake.Core, proxies *[]*raftfake.Proxy) (*raft.Driver, *transport.Registry) {
	t.Helper()

	registry := transport.NewRegistry()
	d, err := raft.New(raft.Config{
		Core:          core,
		Init:          raft.InitConfig{ID: id},
		Transport:     registry.Bound(id),
		ProxyFactory:  raftfake.NewProxyFactory(proxies),
		BroadcastTime: 20 * time.Millisecond,
		VoteTimeout:   20 * time.Millisecond,
		ProxyGrace:    20 * time.Millisecond,
	})
	require.NoError(t, err)

	registry.Register(id, d)
	return d, registry
}

func runDriver(t *testing.T, d *raft.Driver) context.CancelFunc {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = d.Run(ctx) }()
	t.Cleanup(cancel)

	return cancel
}

// Invariant 2 (§8): a leader call against a node with a known leader
// redirects in O(1) without reaching the decision core.
func TestDriver_RedirectsWithoutInvokingCore(t *testing.T) {
	leader := raft.NodeID{Name: "leader"}
	self := raft.NodeID{Name: "follower"}

	var followerCalled bool
	core := raftfake.New()
	core.InitFunc = func(cfg raft.InitConfig) (raft.NodeState, error) {
		return raftfake.State{Id: cfg.ID}.WithLeader(leader), nil
	}
	core.Follower = func(ev raft.Event, ns raft.NodeState) (raft.Role, raft.NodeState, []raft.Effect) {
		followerCalled = true
		return raft.Follower, ns, nil
	}

	var proxies []*raftfake.Proxy
	d, _ := newDriver(t, self, core, &proxies)
	runDriver(t, d)

	reply, err := d.Deliver(context.Background(), raft.ClassCall, raft.LeaderCall{Inner: "cmd"})
	require.NoError(t, err)
	assert.Equal(t, raft.Redirect{Leader: leader}, reply)
	assert.False(t, followerCalled)
}

// Invariant 3 (§8): commands buffered while Candidate are replayed to
// the core as leader-call events in original order upon promotion to
// Leader, before any subsequent live event.
func TestDriver_CandidateBufferReplaysInOrder(t *testing.T) {
	self := raft.NodeID{Name: "a"}

	var order []string
	core := raftfake.New()
	core.InitFunc = func(cfg raft.InitConfig) (raft.NodeState, error) {
		return raftfake.State{Id: cfg.ID}, nil
	}
	core.Follower = func(ev raft.Event, ns raft.NodeState) (raft.Role, raft.NodeState, []raft.Effect) {
		if ev.Body == "elect" {
			return raft.Candidate, ns, nil
		}

		return raft.Follower, ns, nil
	}
	core.Candidate = func(ev raft.Event, ns raft.NodeState) (raft.Role, raft.NodeState, []raft.Effect) {
		if ev.Body == "promote" {
			return raft.Leader, ns, nil
		}

		return raft.Candidate, ns, nil
	}
	core.Leader = func(ev raft.Event, ns raft.NodeState) (raft.Role, raft.NodeState, []raft.Effect) {
		cmd := ev.Body.(string)
		order = append(order, cmd)
		return raft.Leader, ns, []raft.Effect{raft.Reply{Value: cmd}}
	}

	var proxies []*raftfake.Proxy
	d, _ := newDriver(t, self, core, &proxies)
	runDriver(t, d)

	d.Submit(context.Background(), raft.Event{Class: raft.ClassCast, Body: "elect"})
	time.Sleep(10 * time.Millisecond)
	require.Equal(t, raft.Candidate, d.Role())

	type result struct {
		value any
		err   error
	}

	results := make(chan result, 2)
	deliver := func(cmd string) {
		v, err := d.Deliver(context.Background(), raft.ClassCall, raft.LeaderCall{Inner: cmd})
		results <- result{value: v, err: err}
	}

	go deliver("cmd1")
	time.Sleep(5 * time.Millisecond)
	go deliver("cmd2")
	time.Sleep(5 * time.Millisecond)

	d.Submit(context.Background(), raft.Event{Class: raft.ClassCast, Body: "promote"})

	for i := 0; i < 2; i++ {
		select {
		case r := <-results:
			require.NoError(t, r.err)
		case <-time.After(time.Second):
			t.Fatal("reply not received")
		}
	}

	assert.Equal(t, []string{"cmd1", "cmd2"}, order)
}

// Invariant 4 (§8): when a follower's known leader transitions from
// unknown to known, every buffered entry receives exactly one redirect
// and the buffer empties.
func TestDriver_LeaderChangeFlushesPendingWithRedirect(t *testing.T) {
	self := raft.NodeID{Name: "b"}
	leader := raft.NodeID{Name: "a"}

	core := raftfake.New()
	core.InitFunc = func(cfg raft.InitConfig) (raft.NodeState, error) {
		return raftfake.State{Id: cfg.ID}, nil
	}
	core.Follower = func(ev raft.Event, ns raft.NodeState) (raft.Role, raft.NodeState, []raft.Effect) {
		if ev.Body == "learn" {
			state := ns.(raftfake.State).WithLeader(leader)
			return raft.Follower, state, nil
		}

		return raft.Follower, ns, nil
	}

	var proxies []*raftfake.Proxy
	d, _ := newDriver(t, self, core, &proxies)
	runDriver(t, d)

	replyCh := make(chan any, 1)
	go func() {
		v, _ := d.Deliver(context.Background(), raft.ClassCall, raft.LeaderCall{Inner: "cmd"})
		replyCh <- v
	}()

	time.Sleep(10 * time.Millisecond)
	d.Submit(context.Background(), raft.Event{Class: raft.ClassCast, Body: "learn"})

	select {
	case v := <-replyCh:
		assert.Equal(t, raft.Redirect{Leader: leader}, v)
	case <-time.After(time.Second):
		t.Fatal("redirect not delivered")
	}
}

// Invariant 5 (§8): send_rpcs creates the proxy on first use under
// Leader, and an unexpected exit triggers exactly one restart seeded
// with a freshly rebuilt batch.
func TestDriver_ProxyRestartsAfterCrash(t *testing.T) {
	self := raft.NodeID{Name: "a"}

	core := raftfake.New()
	core.InitFunc = func(cfg raft.InitConfig) (raft.NodeState, error) {
		return raftfake.State{Id: cfg.ID}, nil
	}
	core.Leader = func(ev raft.Event, ns raft.NodeState) (raft.Role, raft.NodeState, []raft.Effect) {
		switch ev.Body.(type) {
		case raft.ProxyExited:
			return raft.Leader, ns, []raft.Effect{raft.SendRPCs{Urgent: true, Batch: "batch-2"}}
		default:
			if ev.Body == "kick" {
				return raft.Leader, ns, []raft.Effect{raft.SendRPCs{Urgent: true, Batch: "batch-1"}}
			}

			return raft.Leader, ns, nil
		}
	}
	core.MakeRPCsFunc = func(ns raft.NodeState) raft.Batch { return "rebuilt" }

	var proxies []*raftfake.Proxy
	d, _ := newDriver(t, self, core, &proxies)

	// A dedicated event promotes Follower straight to Leader; "kick" is
	// then dispatched to the Leader handler on a second event, since a
	// single event is only ever handled by one role's handler.
	core.Follower = func(ev raft.Event, ns raft.NodeState) (raft.Role, raft.NodeState, []raft.Effect) {
		if ev.Body == "bootstrap" {
			return raft.Leader, ns, nil
		}

		return raft.Follower, ns, nil
	}

	runDriver(t, d)

	d.Submit(context.Background(), raft.Event{Class: raft.ClassCast, Body: "bootstrap"})
	time.Sleep(10 * time.Millisecond)
	require.Equal(t, raft.Leader, d.Role())

	d.Submit(context.Background(), raft.Event{Class: raft.ClassCast, Body: "kick"})
	time.Sleep(20 * time.Millisecond)
	require.Len(t, proxies, 1)
	assert.Contains(t, proxies[0].SentBatches(), raft.Batch("batch-1"))

	proxies[0].Crash(assert.AnError)
	time.Sleep(30 * time.Millisecond)

	require.Len(t, proxies, 2)
	assert.True(t, proxies[1].Started())
}

// §7: a Reply effect with a nil handle outside of a call context is a
// protocol violation and terminates the driver.
func TestDriver_ProtocolViolationTerminatesDriver(t *testing.T) {
	self := raft.NodeID{Name: "a"}

	core := raftfake.New()
	core.InitFunc = func(cfg raft.InitConfig) (raft.NodeState, error) {
		return raftfake.State{Id: cfg.ID}, nil
	}
	core.Follower = func(ev raft.Event, ns raft.NodeState) (raft.Role, raft.NodeState, []raft.Effect) {
		return raft.Follower, ns, []raft.Effect{raft.Reply{Value: "oops"}}
	}

	var proxies []*raftfake.Proxy
	d, _ := newDriver(t, self, core, &proxies)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- d.Run(ctx) }()

	d.Submit(ctx, raft.Event{Class: raft.ClassCast, Body: "cast-not-a-call"})

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, raft.ErrProtocolViolation)
	case <-time.After(time.Second):
		t.Fatal("driver did not terminate")
	}
}
