package raft

import "github.com/pkg/errors"

// ErrProtocolViolation is returned by the interpreter, and terminates
// the driver, when the decision core emits a Reply effect with a nil
// handle outside of a Call event. That shape is only valid when the
// driver already knows the caller from the current event; seeing it
// elsewhere means the core itself is buggy.
var ErrProtocolViolation = errors.New("raft: reply effect without a call context")

// ErrProxyRestartFailed is returned when the proxy supervisor could
// not bring up a replacement proxy after an unexpected exit.
var ErrProxyRestartFailed = errors.New("raft: failed to restart replication proxy")

// ErrStopped is returned by operations attempted against a driver that
// has already terminated.
var ErrStopped = errors.New("raft: driver stopped")
