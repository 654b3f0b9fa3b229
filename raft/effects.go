package raft

// Effect is a tagged value produced by the decision core describing a
// side effect for the driver to execute. It is a closed sum type: the
// interpreter in effects_interpreter.go exhaustively switches over the
// concrete types below, so adding a new effect is a compile-time event
// rather than a silent no-op.
type Effect interface {
	isEffect()
}

// NextEvent injects an event into the driver's own queue, processed
// after the current handler returns but ahead of any other pending
// inbound event. The originating event's class is preserved.
type NextEvent struct {
	Event Event
}

// SendMsg is a fire-and-forget message to a peer or local process.
type SendMsg struct {
	To      NodeID
	Message any
}

// Notify sends an asynchronous {consensus, reply} notification to a
// client handle that previously issued a notify_on_consensus command.
type Notify struct {
	To    NodeID
	Reply any
}

// Reply queues a reply action. Handle is nil when the decision core
// expects the driver to already know the caller (i.e. the current
// event is itself a Call); the interpreter fails fatally if Handle is
// nil and the originating event is not a Call.
type Reply struct {
	Handle ReplyFunc
	Value  any
}

// VoteRequest is a single (peer, request) pair within a
// SendVoteRequests effect.
type VoteRequest struct {
	Peer    NodeID
	Request any
}

// SendVoteRequests spawns one transient task per peer, each performing
// a synchronous call with a short timeout, casting the result back to
// the driver as a fresh event.
type SendVoteRequests struct {
	Requests []VoteRequest
}

// SendRPCs routes a replication batch to the proxy, creating it if
// absent. Urgent batches bypass any coalescing the proxy performs.
type SendRPCs struct {
	Urgent bool
	Batch  any
}

// ReleaseCursor asks the decision core to take a snapshot up to Index.
type ReleaseCursor struct {
	Index uint64
}

// SnapshotPoint asks the decision core to record a candidate snapshot
// point at Index.
type SnapshotPoint struct {
	Index uint64
}

// ScheduleSync arms the sync timer if it is not already armed.
type ScheduleSync struct{}

func (NextEvent) isEffect()        {}
func (SendMsg) isEffect()          {}
func (Notify) isEffect()           {}
func (Reply) isEffect()            {}
func (SendVoteRequests) isEffect() {}
func (SendRPCs) isEffect()         {}
func (ReleaseCursor) isEffect()    {}
func (SnapshotPoint) isEffect()    {}
func (ScheduleSync) isEffect()     {}
