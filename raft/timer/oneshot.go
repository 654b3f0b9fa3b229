package timer

import (
	"math/rand"
	"sync"
	"time"
)

// OneShot is a cancelable, re-armable single-shot timer. The election
// timer and the sync timer are both state-scoped one-shots: they are
// implicitly canceled whenever the driver re-arms them, rather than
// left to coalesce like the periodic Schedule above.
type OneShot struct {
	mu    sync.Mutex
	timer *time.Timer
	armed bool
}

// NewOneShot returns a disarmed timer.
func NewOneShot() *OneShot {
	return &OneShot{}
}

// Arm cancels any pending fire and schedules fn to run after d.
func (o *OneShot) Arm(d time.Duration, fn func()) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.timer != nil {
		o.timer.Stop()
	}

	o.timer = time.AfterFunc(d, fn)
	o.armed = true
}

// Cancel disarms the timer, preventing a pending fire. It reports
// whether a pending fire was actually canceled.
func (o *OneShot) Cancel() bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.armed = false
	if o.timer == nil {
		return false
	}

	return o.timer.Stop()
}

// Armed reports whether the timer currently has a pending fire. It
// backs the sync_scheduled invariant (§3): the driver mirrors this
// value rather than re-deriving it on every ScheduleSync effect.
func (o *OneShot) Armed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.armed
}

// MarkFired clears the armed flag after the timer has fired, so a
// subsequent ScheduleSync effect knows it is free to re-arm.
func (o *OneShot) MarkFired() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.armed = false
}

// RandomDuration returns a uniform random duration in [min, max). It
// is used to derive the election timeout for Followers ([2T, 5T)) and
// Candidates ([2T, 7T)), per §4.3.
func RandomDuration(rng *rand.Rand, min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}

	return min + time.Duration(rng.Int63n(int64(max-min)))
}
