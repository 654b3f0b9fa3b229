package raft

import "testing"

func TestPendingBuffer_DrainRedirectRepliesEveryEntryOnce(t *testing.T) {
	var b pendingBuffer
	var replies []any

	b.push(ClassCall, "cmd1", func(v any) { replies = append(replies, v) })
	b.push(ClassCall, "cmd2", func(v any) { replies = append(replies, v) })

	leader := NodeID{Name: "a"}
	b.drainRedirect(leader)

	if len(replies) != 2 {
		t.Fatalf("expected 2 replies, got %d", len(replies))
	}

	for _, r := range replies {
		if r != (Redirect{Leader: leader}) {
			t.Fatalf("expected redirect to %v, got %v", leader, r)
		}
	}

	if b.len() != 0 {
		t.Fatalf("expected buffer to be empty, got len %d", b.len())
	}
}

func TestPendingBuffer_DrainReplayPreservesOrderAndHandles(t *testing.T) {
	var b pendingBuffer
	var gotReply ReplyFunc = func(any) {}

	b.push(ClassCall, "cmd1", gotReply)
	b.push(ClassCall, "cmd2", gotReply)

	events := b.drainReplay()
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}

	first, ok := events[0].Body.(LeaderCall)
	if !ok || first.Inner != "cmd1" {
		t.Fatalf("expected first event to wrap cmd1, got %+v", events[0])
	}

	second, ok := events[1].Body.(LeaderCall)
	if !ok || second.Inner != "cmd2" {
		t.Fatalf("expected second event to wrap cmd2, got %+v", events[1])
	}

	if b.len() != 0 {
		t.Fatalf("expected buffer to be empty after replay, got len %d", b.len())
	}
}
