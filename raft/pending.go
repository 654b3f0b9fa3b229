package raft

// pendingCommand is a client command accepted while no leader was
// known, or while a candidate election was in progress. It is held in
// original arrival order, per invariant 4 in §3: the buffer is only
// ever drained wholesale, by redirect or by replay.
type pendingCommand struct {
	class Class
	inner any
	reply ReplyFunc
}

// pendingBuffer is the FIFO described in §4.5. It is owned exclusively
// by the driver's dispatch goroutine, so it needs no locking of its
// own.
type pendingBuffer struct {
	entries []pendingCommand
}

func (b *pendingBuffer) push(class Class, inner any, reply ReplyFunc) {
	b.entries = append(b.entries, pendingCommand{class: class, inner: inner, reply: reply})
}

func (b *pendingBuffer) len() int {
	return len(b.entries)
}

// drainRedirect replies {redirect, leader} to every buffered entry, in
// arrival order, and empties the buffer. Used on a follower observing
// its leader_id change (§4.4, Follower -> Follower row).
func (b *pendingBuffer) drainRedirect(leader NodeID) {
	for _, entry := range b.entries {
		if entry.reply != nil {
			entry.reply(Redirect{Leader: leader})
		}
	}

	b.entries = nil
}

// drainReplay returns synthetic leader-call events for every buffered
// entry, in arrival order, and empties the buffer. Used on promotion
// to Leader (§4.4, -> Leader row).
func (b *pendingBuffer) drainReplay() []Event {
	events := make([]Event, len(b.entries))
	for i, entry := range b.entries {
		events[i] = Event{
			Class: entry.class,
			Body:  LeaderCall{Inner: entry.inner},
			Reply: entry.reply,
		}
	}

	b.entries = nil
	return events
}
