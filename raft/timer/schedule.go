// Package timer provides the scheduling primitives the role driver
// uses for its election timer, sync timer, and the replication
// proxy's periodic heartbeat loop.
//
// Func/Schedule/Start/Group reconstruct the contract of the teacher
// repository's internal task scheduler (github.com/canonical/lxd's
// lxd/task package) from its exported test behavior: that package's
// own implementation was not available to read, only its tests, so
// the shapes below are inferred from observed behavior rather than
// copied source.
package timer

import (
	"context"
	"fmt"
	"time"
)

// Func is a unit of recurring work. It receives a context that is
// canceled when the scheduler is stopped.
type Func func(context.Context)

// Schedule computes the delay before the next invocation of a Func.
// A negative duration (with a nil error) disables the task entirely:
// it will never run. A positive error paired with a positive delay
// means "try computing the schedule again after delay, without
// running the task"; paired with a non-positive delay it aborts the
// task outright.
type Schedule func() (time.Duration, error)

type everyOptions struct {
	skipFirst bool
}

// EveryOption tweaks the behavior of Every.
type EveryOption func(*everyOptions)

// SkipFirst makes the first invocation happen only after the first
// interval elapses, rather than immediately.
func SkipFirst(o *everyOptions) {
	o.skipFirst = true
}

// Every returns a Schedule that fires at a fixed interval, starting
// immediately unless SkipFirst is given. An interval of zero disables
// the task: it is never invoked.
func Every(interval time.Duration, options ...EveryOption) Schedule {
	var o everyOptions
	for _, opt := range options {
		opt(&o)
	}

	first := true
	return func() (time.Duration, error) {
		if interval <= 0 {
			return -1, nil
		}

		if first {
			first = false
			if o.skipFirst {
				return interval, nil
			}

			return 0, nil
		}

		return interval, nil
	}
}

// Start runs f according to schedule on its own goroutine, until the
// returned stop function is called. reset cuts short the current
// wait, running f again immediately as if the schedule had elapsed
// right away.
func Start(f Func, schedule Schedule) (stop func(timeout time.Duration) error, reset func()) {
	ctx, cancel := context.WithCancel(context.Background())
	resetCh := make(chan struct{}, 1)
	done := make(chan struct{})

	wait := func(d time.Duration) (canceled, wasReset bool) {
		if d <= 0 {
			return false, false
		}

		timer := time.NewTimer(d)
		defer timer.Stop()

		select {
		case <-timer.C:
			return false, false
		case <-resetCh:
			return false, true
		case <-ctx.Done():
			return true, false
		}
	}

	go func() {
		defer close(done)

		retried := false
		for {
			delay, err := schedule()
			if err != nil {
				if delay <= 0 {
					return
				}

				if canceled, _ := wait(delay); canceled {
					return
				}

				retried = true
				continue
			}

			if delay < 0 {
				return
			}

			// Once a temporary schedule error has been waited out, the
			// task runs as soon as the schedule succeeds again.
			if retried {
				retried = false
				delay = 0
			}

			if canceled, _ := wait(delay); canceled {
				return
			}

			select {
			case <-ctx.Done():
				return
			default:
			}

			f(ctx)
		}
	}()

	stop = func(timeout time.Duration) error {
		cancel()
		select {
		case <-done:
			return nil
		case <-time.After(timeout):
			return fmt.Errorf("task did not stop within %s", timeout)
		}
	}
	reset = func() {
		select {
		case resetCh <- struct{}{}:
		default:
		}
	}

	return stop, reset
}
