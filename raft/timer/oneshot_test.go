package timer_test

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/lxc/raftd/raft/timer"
)

func TestOneShot_ArmFires(t *testing.T) {
	o := timer.NewOneShot()
	fired := make(chan struct{})
	o.Arm(10*time.Millisecond, func() { close(fired) })
	assert.True(t, o.Armed())

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
}

func TestOneShot_RearmCancelsPrevious(t *testing.T) {
	o := timer.NewOneShot()
	var fires int
	o.Arm(5*time.Millisecond, func() { fires++ })
	o.Arm(50*time.Millisecond, func() { fires++ })

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, fires)

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 1, fires)
}

func TestOneShot_Cancel(t *testing.T) {
	o := timer.NewOneShot()
	o.Arm(20*time.Millisecond, func() { t.Fatal("should not fire") })
	assert.True(t, o.Cancel())
	assert.False(t, o.Armed())
	time.Sleep(40 * time.Millisecond)
}

func TestRandomDuration_WithinBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 1000; i++ {
		d := timer.RandomDuration(rng, 2*time.Second, 5*time.Second)
		assert.GreaterOrEqual(t, d, 2*time.Second)
		assert.Less(t, d, 5*time.Second)
	}
}
