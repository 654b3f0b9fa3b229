package raft

import (
	"context"

	"github.com/pkg/errors"
)

// interpret executes effs in order against d, appending any events the
// effects themselves generate (NextEvent) to the end of the driver's
// local queue, which is drained ahead of the external inbox. callEvent is the event currently being handled, used to
// validate Reply{Handle: nil} effects and nil otherwise.
//
// Grounded on the teacher's lxd/cluster heartbeat/task dispatch style:
// a single goroutine folds a batch of work items left to right, firing
// off background goroutines for anything that must not block the
// dispatch loop itself (SendMsg, Notify, SendVoteRequests).
func (d *Driver) interpret(ctx context.Context, effs []Effect, callEvent *Event) error {
	for _, eff := range effs {
		switch e := eff.(type) {
		case NextEvent:
			d.local = append(d.local, e.Event)

		case SendMsg:
			d.stats().EffectExecuted("send_msg")
			to, msg := e.To, e.Message
			go func() {
				if err := d.transport().Send(context.Background(), to, ClassInfo, msg); err != nil {
					d.logger().Warn("send failed", map[string]any{"to": to, "err": err})
				}
			}()

		case Notify:
			d.stats().EffectExecuted("notify")
			to, reply := e.To, e.Reply
			go func() {
				if err := d.transport().Send(context.Background(), to, ClassInfo, reply); err != nil {
					d.logger().Warn("notify failed", map[string]any{"to": to, "err": err})
				}
			}()

		case Reply:
			d.stats().EffectExecuted("reply")
			handle := e.Handle
			if handle == nil {
				if callEvent == nil || callEvent.Class != ClassCall || callEvent.Reply == nil {
					return errors.Wrap(ErrProtocolViolation, "reply with nil handle outside a call")
				}

				handle = callEvent.Reply
			}

			handle(e.Value)

		case SendVoteRequests:
			d.stats().EffectExecuted("send_vote_requests")
			d.spawnVoteRequests(e.Requests)

		case SendRPCs:
			d.stats().EffectExecuted("send_rpcs")
			if err := d.sendRPCs(ctx, e.Urgent, e.Batch); err != nil {
				// A replacement proxy that fails to start after an
				// unexpected exit is fatal to the driver.
				if callEvent != nil && d.proxy == nil {
					if _, restarting := callEvent.Body.(ProxyExited); restarting {
						return errors.Wrap(ErrProxyRestartFailed, err.Error())
					}
				}

				d.logger().Error("send_rpcs failed", map[string]any{"err": err})
			}

		case ReleaseCursor:
			d.stats().EffectExecuted("release_cursor")
			d.state = d.core().MaybeSnapshot(e.Index, d.state)

		case SnapshotPoint:
			d.stats().EffectExecuted("snapshot_point")
			d.state = d.core().RecordSnapshotPoint(e.Index, d.state)

		case ScheduleSync:
			d.stats().EffectExecuted("schedule_sync")
			d.armSyncTimer()

		default:
			return errors.Errorf("raft: unrecognized effect %T", eff)
		}
	}

	return nil
}

// spawnVoteRequests fires one transient goroutine per requested peer,
// each performing a synchronous call bounded by the driver's vote
// timeout and casting the outcome back as a VoteReply info event (§4.3:
// "each request is a transient task; its result is delivered back to
// the owning node as an ordinary event").
func (d *Driver) spawnVoteRequests(reqs []VoteRequest) {
	timeout := d.cfg.VoteTimeout

	for _, req := range reqs {
		peer, body := req.Peer, req.Request

		go func() {
			reply, err := d.transport().Call(context.Background(), peer, body, timeout)
			d.inject(Event{
				Class: ClassInfo,
				Body:  VoteReply{Peer: peer, Body: reply, Err: err},
			})
		}()
	}
}

// sendRPCs routes batch to the current replication proxy, creating one
// on first use, per §4.7.
func (d *Driver) sendRPCs(ctx context.Context, urgent bool, batch Batch) error {
	if d.proxy == nil {
		if err := d.startProxy(ctx); err != nil {
			return err
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, d.cfg.BroadcastTime)
	defer cancel()

	return d.proxy.Send(callCtx, urgent, batch)
}

func (d *Driver) armSyncTimer() {
	if d.syncTimer.Armed() {
		return
	}

	d.syncTimer.Arm(d.cfg.SyncInterval, func() {
		d.syncTimer.MarkFired()
		d.inject(Event{Class: ClassTimer, Body: SyncTick{}})
	})
}
