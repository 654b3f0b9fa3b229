package raft

// Class classifies how an event arrived and what kind of response, if
// any, the driver owes back to its originator.
type Class int

const (
	// ClassCall is a synchronous client request; a reply must
	// eventually be produced for the caller's handle.
	ClassCall Class = iota
	// ClassCast is an asynchronous message; no reply is expected.
	ClassCast
	// ClassInfo is an unsolicited message (peer RPC, proxy exit).
	ClassInfo
	// ClassTimer is an internally generated timer event.
	ClassTimer
)

func (c Class) String() string {
	switch c {
	case ClassCall:
		return "call"
	case ClassCast:
		return "cast"
	case ClassInfo:
		return "info"
	case ClassTimer:
		return "timer"
	default:
		return "unknown"
	}
}

// ReplyFunc is a one-shot reply handle bound to the caller of a Call
// event. Calling it more than once is a programmer error; neither the
// interpreter nor the handle itself checks for it.
type ReplyFunc func(value any)

// Event is one inbound occurrence dispatched to the decision core (or,
// for LeaderCall/DirtyQuery, handled directly by the driver without
// involving the core). Body carries the actual payload; recognized
// driver-level payload types are declared below.
type Event struct {
	Class Class
	Body  any
	Reply ReplyFunc
}

// LeaderCall wraps a request that must be served by the current
// leader; followers redirect, non-leaders without a known leader
// buffer it.
type LeaderCall struct {
	Inner any
}

// ReplyMode controls how a command's outcome is reported back to the
// caller, mirroring the three modes the decision core can request.
type ReplyMode int

const (
	// ReplyAfterLogAppend replies as soon as the command is appended
	// to the local log, before consensus is reached.
	ReplyAfterLogAppend ReplyMode = iota
	// ReplyAwaitConsensus blocks the reply until the command is
	// committed by a majority.
	ReplyAwaitConsensus
	// ReplyNotifyOnConsensus replies immediately and later delivers an
	// asynchronous {consensus, reply} notification once committed.
	ReplyNotifyOnConsensus
)

// CommandReq is the client-facing command payload, as received from
// the network before the leader has stamped it with the caller's
// handle. CallerAddr is only meaningful for ReplyNotifyOnConsensus
// commands: it is the address the eventual Notify effect should be
// sent to, since the caller's ReplyFunc for *this* call cannot survive
// past the immediate reply to address an effect raised later, against
// a different event, once the command commits.
type CommandReq struct {
	Kind       string
	CallerAddr NodeID
	Data       any
	ReplyMode  ReplyMode
}

// CommandForCore is what a CommandReq becomes once the leader-call
// path has stamped it with the caller's reply handle (§4.1: "must be
// transformed to {command, caller_handle, data, reply_mode} before
// being passed to the decision core"), so the decision core can later
// emit the right reply/notify effect for it.
type CommandForCore struct {
	Kind        string
	CallerReply ReplyFunc
	CallerAddr  NodeID
	Data        any
	ReplyMode   ReplyMode
}

// DirtyQuery is evaluated locally against the current machine state
// without invoking the decision core.
type DirtyQuery struct {
	Fn func(machineState any) any
}

// DirtyQueryResult is the reply shape for a dirty query.
type DirtyQueryResult struct {
	LastApplied uint64
	Term        uint64
	Result      any
}

// StateQuerySpec selects what StateQuery returns.
type StateQuerySpec int

const (
	// StateQueryAll returns the full opaque node state.
	StateQueryAll StateQuerySpec = iota
	// StateQueryMembers returns only the cluster member set.
	StateQueryMembers
)

// StateQuery is a leader-call request for driver-owned introspection
// data, handled by the decision core like any other command.
type StateQuery struct {
	Spec StateQuerySpec
}

// Redirect is the reply a follower with a known leader sends back
// immediately for a leader call, without invoking the decision core.
type Redirect struct {
	Leader NodeID
}

// ElectionTimeout is the timer event that fires when no
// election-relevant activity has refreshed the election timer in
// time.
type ElectionTimeout struct{}

// SyncTick is the pseudo-event delivered to the decision core when the
// sync timer fires.
type SyncTick struct{}

// ProxyExited is an info event reporting that the replication proxy
// terminated unexpectedly while this node was Leader.
type ProxyExited struct {
	Err error
}

// VoteReply is the info event a vote-request task casts back once its
// synchronous call to a peer completes (successfully or not).
type VoteReply struct {
	Peer NodeID
	Body any
	Err  error
}
