package raft

// Role is the local Raft role of a node. The zero value is Follower,
// matching the invariant that every node boots as a Follower.
type Role int

const (
	// Follower is the initial role of every node on boot.
	Follower Role = iota
	// Candidate is soliciting votes for a new term.
	Candidate
	// Leader is driving replication for the current term.
	Leader
	// Stop is a pseudo-role: only ever returned by HandleLeader to
	// request an orderly shutdown after the final effects are applied.
	Stop
)

// String implements fmt.Stringer for log messages.
func (r Role) String() string {
	switch r {
	case Follower:
		return "follower"
	case Candidate:
		return "candidate"
	case Leader:
		return "leader"
	case Stop:
		return "stop"
	default:
		return "unknown"
	}
}
