package transport_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lxc/raftd/raft"
	"github.com/lxc/raftd/raft/transport"
)

type fakeHandler struct {
	deliver func(ctx context.Context, class raft.Class, body any) (any, error)
}

func (f *fakeHandler) Deliver(ctx context.Context, class raft.Class, body any) (any, error) {
	return f.deliver(ctx, class, body)
}

func TestRegistry_CallRoundTrip(t *testing.T) {
	registry := transport.NewRegistry()
	b := raft.NodeID{Name: "b"}
	registry.Register(b, &fakeHandler{
		deliver: func(ctx context.Context, class raft.Class, body any) (any, error) {
			require.Equal(t, raft.ClassCall, class)
			return "pong", nil
		},
	})

	a := registry.Bound(raft.NodeID{Name: "a"})
	reply, err := a.Call(context.Background(), b, "ping", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "pong", reply)
}

func TestRegistry_CallNoProcess(t *testing.T) {
	registry := transport.NewRegistry()
	a := registry.Bound(raft.NodeID{Name: "a"})

	_, err := a.Call(context.Background(), raft.NodeID{Name: "ghost"}, "ping", time.Second)
	assert.ErrorIs(t, err, transport.ErrNoProcess)
}

func TestRegistry_CallTimesOut(t *testing.T) {
	registry := transport.NewRegistry()
	b := raft.NodeID{Name: "b"}
	block := make(chan struct{})
	defer close(block)
	registry.Register(b, &fakeHandler{
		deliver: func(ctx context.Context, class raft.Class, body any) (any, error) {
			<-block
			return nil, nil
		},
	})

	a := registry.Bound(raft.NodeID{Name: "a"})
	_, err := a.Call(context.Background(), b, "ping", 10*time.Millisecond)
	assert.ErrorIs(t, err, transport.ErrNodeDown)
}

func TestRegistry_Send(t *testing.T) {
	registry := transport.NewRegistry()
	b := raft.NodeID{Name: "b"}
	received := make(chan any, 1)
	registry.Register(b, &fakeHandler{
		deliver: func(ctx context.Context, class raft.Class, body any) (any, error) {
			received <- body
			return nil, nil
		},
	})

	a := registry.Bound(raft.NodeID{Name: "a"})
	require.NoError(t, a.Send(context.Background(), b, raft.ClassCast, "hello"))

	select {
	case body := <-received:
		assert.Equal(t, "hello", body)
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}
}

func TestRegistry_Unregister(t *testing.T) {
	registry := transport.NewRegistry()
	id := raft.NodeID{Name: "b"}
	registry.Register(id, &fakeHandler{deliver: func(context.Context, raft.Class, any) (any, error) { return nil, nil }})
	registry.Unregister(id)

	a := registry.Bound(raft.NodeID{Name: "a"})
	err := a.Send(context.Background(), id, raft.ClassCast, "hi")
	assert.ErrorIs(t, err, transport.ErrNoProcess)
}
