package raftfake

import "github.com/lxc/raftd/raft"

// Handler computes a role transition for a single event, the shape
// shared by HandleFollower/HandleCandidate/HandleLeader.
type Handler func(ev raft.Event, ns raft.NodeState) (raft.Role, raft.NodeState, []raft.Effect)

// Core is a fully scriptable raft.Core: every method defaults to a
// harmless no-op (same role, same state, no effects) and can be
// overridden per test.
type Core struct {
	InitFunc   func(cfg raft.InitConfig) (raft.NodeState, error)
	Follower   Handler
	Candidate  Handler
	Leader     Handler
	MakeRPCsFunc          func(ns raft.NodeState) raft.Batch
	MaybeSnapshotFunc     func(index uint64, ns raft.NodeState) raft.NodeState
	RecordSnapshotFunc    func(index uint64, ns raft.NodeState) raft.NodeState
	TerminateFunc         func(ns raft.NodeState)
	Terminated            bool
}

// New returns a Core whose handlers all default to passing the event
// through unchanged.
func New() *Core {
	return &Core{}
}

func (c *Core) Init(cfg raft.InitConfig) (raft.NodeState, error) {
	if c.InitFunc != nil {
		return c.InitFunc(cfg)
	}

	return State{Id: cfg.ID, ClusterInfo: cfg.Cluster}, nil
}

func (c *Core) HandleFollower(ev raft.Event, ns raft.NodeState) (raft.Role, raft.NodeState, []raft.Effect) {
	if c.Follower != nil {
		return c.Follower(ev, ns)
	}

	return raft.Follower, ns, nil
}

func (c *Core) HandleCandidate(ev raft.Event, ns raft.NodeState) (raft.Role, raft.NodeState, []raft.Effect) {
	if c.Candidate != nil {
		return c.Candidate(ev, ns)
	}

	return raft.Candidate, ns, nil
}

func (c *Core) HandleLeader(ev raft.Event, ns raft.NodeState) (raft.Role, raft.NodeState, []raft.Effect) {
	if c.Leader != nil {
		return c.Leader(ev, ns)
	}

	return raft.Leader, ns, nil
}

func (c *Core) MakeRPCs(ns raft.NodeState) raft.Batch {
	if c.MakeRPCsFunc != nil {
		return c.MakeRPCsFunc(ns)
	}

	return nil
}

func (c *Core) MaybeSnapshot(index uint64, ns raft.NodeState) raft.NodeState {
	if c.MaybeSnapshotFunc != nil {
		return c.MaybeSnapshotFunc(index, ns)
	}

	return ns
}

func (c *Core) RecordSnapshotPoint(index uint64, ns raft.NodeState) raft.NodeState {
	if c.RecordSnapshotFunc != nil {
		return c.RecordSnapshotFunc(index, ns)
	}

	return ns
}

func (c *Core) Terminate(ns raft.NodeState) {
	c.Terminated = true
	if c.TerminateFunc != nil {
		c.TerminateFunc(ns)
	}
}
