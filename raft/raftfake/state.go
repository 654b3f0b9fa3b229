// Package raftfake provides a scriptable stand-in for the decision
// core (raft.Core) and its opaque node state, for use in raft package
// tests and the in-memory integration harness. The real algorithm is
// explicitly out of scope for this module (spec §1); this package
// exists only to drive the role driver's dispatch, pending-buffer and
// proxy-lifecycle logic under test.
package raftfake

import "github.com/lxc/raftd/raft"

// State is a minimal concrete raft.NodeState, with every field
// directly settable by test code.
type State struct {
	Id          raft.NodeID
	Term        uint64
	Leader      raft.NodeID
	HasLeader   bool
	Applied     uint64
	Machine     any
	ClusterInfo map[raft.NodeID]raft.PeerInfo
}

func (s State) ID() raft.NodeID        { return s.Id }
func (s State) CurrentTerm() uint64    { return s.Term }
func (s State) LastApplied() uint64    { return s.Applied }
func (s State) MachineState() any      { return s.Machine }
func (s State) Cluster() map[raft.NodeID]raft.PeerInfo {
	return s.ClusterInfo
}

func (s State) LeaderKnown() (raft.NodeID, bool) {
	return s.Leader, s.HasLeader
}

// WithLeader returns a copy of s with the known leader set to id.
func (s State) WithLeader(id raft.NodeID) State {
	s.Leader = id
	s.HasLeader = true
	return s
}
