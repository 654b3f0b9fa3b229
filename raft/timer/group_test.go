package timer_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/lxc/raftd/raft/timer"
)

func TestGroup_Add(t *testing.T) {
	group := timer.NewGroup()
	ok := make(chan struct{})
	f := func(context.Context) { close(ok) }
	group.Add(f, timer.Every(time.Second))
	group.Start(context.Background())

	assertRecv(t, ok)

	assert.NoError(t, group.Stop(time.Second))
}

func TestGroup_StopUngracefully(t *testing.T) {
	group := timer.NewGroup()

	ok := make(chan struct{})
	defer close(ok)
	f := func(context.Context) {
		ok <- struct{}{}
		<-ok
	}

	group.Add(f, timer.Every(time.Second))
	group.Start(context.Background())

	assertRecv(t, ok)

	assert.EqualError(t, group.Stop(time.Millisecond), "Task(s) still running: IDs [0]")
}

func assertRecv(t *testing.T, ch chan struct{}) {
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("no object received")
	}
}
