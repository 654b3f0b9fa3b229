// Command raftd is a composition-root demonstration of the role
// driver: it wires three in-process nodes together over the in-memory
// transport, forces one to Leader, and issues a client command against
// a follower to show the redirect-then-answer path end to end. It
// takes no flags and loads no configuration of its own, in the manner
// of the teacher's slim cmd/ binaries — it exists to prove the pieces
// fit together, not as an operable daemon.
//
// The decision core itself is out of scope for this module (only its
// contract is defined); demoCore below is a minimal, single-node-only
// stand-in good enough to exercise the driver, transport, proxy,
// logging and stats wiring, not a Raft implementation.
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/lxc/raftd/raft"
	"github.com/lxc/raftd/raft/client"
	"github.com/lxc/raftd/raft/logging"
	"github.com/lxc/raftd/raft/proxy"
	"github.com/lxc/raftd/raft/raftstats"
	"github.com/lxc/raftd/raft/transport"
)

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	registry := transport.NewRegistry()

	a := raft.NodeID{Name: "a"}
	b := raft.NodeID{Name: "b"}
	c := raft.NodeID{Name: "c"}
	peers := []raft.NodeID{a, b, c}

	leaderDone := make(chan struct{})
	drivers := make(map[raft.NodeID]*raft.Driver, len(peers))

	for _, self := range peers {
		self := self
		core := newDemoCore(self == a)

		others := make([]raft.NodeID, 0, len(peers)-1)
		for _, p := range peers {
			if p != self {
				others = append(others, p)
			}
		}

		d, err := raft.New(raft.Config{
			Core:          core,
			Init:          raft.InitConfig{ID: self},
			Transport:     registry.Bound(self),
			ProxyFactory:  proxy.NewFactory(others, registry.Bound(self), logging.Default()),
			Logger:        logging.New(nil, logging.Ctx{"node": self.String()}),
			Stats:         raftstats.New(prometheus.NewRegistry(), self.String()),
			BroadcastTime: 50 * time.Millisecond,
		})
		if err != nil {
			panic(err)
		}

		registry.Register(self, d)
		drivers[self] = d

		if self == a {
			core.onLeader = func() { close(leaderDone) }
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for self, d := range drivers {
		go func(self raft.NodeID, d *raft.Driver) {
			if err := d.Run(ctx); err != nil && ctx.Err() == nil {
				logging.Error("driver exited", logging.Ctx{"node": self.String(), "err": err})
			}
		}(self, d)
	}

	drivers[a].Submit(ctx, raft.Event{Class: raft.ClassCast, Body: "elect"})

	select {
	case <-leaderDone:
	case <-ctx.Done():
		panic("leader election demo timed out")
	}

	cmdClient := client.New(registry.Bound(raft.NodeID{Name: "demo-client"}))
	result, err := cmdClient.Command(ctx, b, raft.CommandReq{Kind: "set", Data: 42}, time.Second)
	if err != nil {
		panic(err)
	}

	fmt.Printf("command answered by leader: %v\n", result)

	for _, d := range drivers {
		d.Stop()
	}
}

// demoCore is a minimal raft.Core: the designated node moves straight
// from Follower to Candidate to Leader on an "elect" cast (no real
// voting, since this module does not implement the consensus
// algorithm), every other node starts already knowing that leader.
type demoCore struct {
	isDesignatedLeader bool
	onLeader           func()
}

func newDemoCore(isDesignatedLeader bool) *demoCore {
	return &demoCore{isDesignatedLeader: isDesignatedLeader}
}

func (c *demoCore) Init(cfg raft.InitConfig) (raft.NodeState, error) {
	return &demoState{id: cfg.ID}, nil
}

func (c *demoCore) HandleFollower(ev raft.Event, ns raft.NodeState) (raft.Role, raft.NodeState, []raft.Effect) {
	if c.isDesignatedLeader && ev.Body == "elect" {
		return raft.Candidate, ns, []raft.Effect{raft.NextEvent{Event: ev}}
	}

	return raft.Follower, ns, nil
}

func (c *demoCore) HandleCandidate(ev raft.Event, ns raft.NodeState) (raft.Role, raft.NodeState, []raft.Effect) {
	return raft.Leader, ns, []raft.Effect{raft.NextEvent{Event: ev}}
}

func (c *demoCore) HandleLeader(ev raft.Event, ns raft.NodeState) (raft.Role, raft.NodeState, []raft.Effect) {
	if c.onLeader != nil {
		c.onLeader()
		c.onLeader = nil
	}

	cmd, ok := ev.Body.(raft.CommandForCore)
	if !ok {
		return raft.Leader, ns, nil
	}

	state := ns.(*demoState)
	state.applied++
	state.machine = cmd.Data

	return raft.Leader, state, []raft.Effect{
		raft.Reply{Value: fmt.Sprintf("applied %v at index %d", cmd.Data, state.applied)},
	}
}

func (c *demoCore) MakeRPCs(ns raft.NodeState) raft.Batch {
	return ns.(*demoState).machine
}

func (c *demoCore) MaybeSnapshot(index uint64, ns raft.NodeState) raft.NodeState { return ns }

func (c *demoCore) RecordSnapshotPoint(index uint64, ns raft.NodeState) raft.NodeState { return ns }

func (c *demoCore) Terminate(ns raft.NodeState) {}

type demoState struct {
	id      raft.NodeID
	applied uint64
	machine any
}

func (s *demoState) ID() raft.NodeID     { return s.id }
func (s *demoState) CurrentTerm() uint64 { return 1 }
func (s *demoState) LastApplied() uint64 { return s.applied }
func (s *demoState) MachineState() any   { return s.machine }
func (s *demoState) Cluster() map[raft.NodeID]raft.PeerInfo {
	return nil
}

func (s *demoState) LeaderKnown() (raft.NodeID, bool) {
	return raft.NodeID{Name: "a"}, true
}
