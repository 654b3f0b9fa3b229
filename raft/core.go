package raft

// NodeState is the opaque per-node state owned exclusively by the
// decision core and threaded through every call. The driver never
// mutates it directly; it only reads the handful of fields it needs
// to route events (§3: id, current_term, leader_id, machine_state,
// last_applied, cluster) through this accessor interface, and passes
// the rest through unchanged between core calls.
type NodeState interface {
	// ID is this node's own identifier.
	ID() NodeID
	// CurrentTerm is the node's view of the current Raft term.
	CurrentTerm() uint64
	// LeaderKnown reports the currently known leader, if any.
	LeaderKnown() (NodeID, bool)
	// LastApplied is the index of the last log entry applied to the
	// state machine.
	LastApplied() uint64
	// MachineState exposes the user state machine's current value,
	// for dirty queries to read without going through the core.
	MachineState() any
	// Cluster returns the known peer set, keyed by peer id.
	Cluster() map[NodeID]PeerInfo
}

// PeerInfo is per-peer metadata carried in the cluster map.
type PeerInfo struct {
	Voter bool
}

// InitConfig seeds the decision core's Init call.
type InitConfig struct {
	ID      NodeID
	Cluster map[NodeID]PeerInfo
}

// Batch is an opaque append-entries batch produced by MakeRPCs and
// handed to the proxy; the driver never inspects its contents.
type Batch any

// Core is the pure, referentially-transparent Raft decision logic.
// The driver is a consumer of this interface; implementing the
// algorithm itself is out of scope for this module.
type Core interface {
	// Init builds the initial node state for a freshly started node.
	Init(cfg InitConfig) (NodeState, error)

	// HandleFollower, HandleCandidate and HandleLeader compute the
	// next role, the updated node state, and the effects to execute
	// for an event received while in the corresponding role.
	// HandleLeader's next role may additionally be Stop, requesting
	// orderly shutdown after the returned effects are applied.
	HandleFollower(ev Event, ns NodeState) (Role, NodeState, []Effect)
	HandleCandidate(ev Event, ns NodeState) (Role, NodeState, []Effect)
	HandleLeader(ev Event, ns NodeState) (Role, NodeState, []Effect)

	// MakeRPCs rebuilds the current replication batch, used to
	// reseed the proxy after an unexpected restart.
	MakeRPCs(ns NodeState) Batch

	// MaybeSnapshot and RecordSnapshotPoint service the
	// release_cursor and snapshot_point effects respectively.
	MaybeSnapshot(index uint64, ns NodeState) NodeState
	RecordSnapshotPoint(index uint64, ns NodeState) NodeState

	// Terminate is called once, after the final effects of a Stop
	// transition have been applied, to let the core flush any
	// in-memory-only bookkeeping.
	Terminate(ns NodeState)
}
