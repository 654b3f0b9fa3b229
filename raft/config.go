package raft

import (
	"context"
	"math/rand"
	"time"
)

// Transport delivers messages to peers by opaque node identifier. The
// driver never looks inside a message; it only routes SendMsg, Notify
// and SendVoteRequests effects through it.
type Transport interface {
	// Send is fire-and-forget, used for SendMsg and Notify effects.
	Send(ctx context.Context, to NodeID, class Class, body any) error
	// Call performs a synchronous request with the given timeout,
	// used by the transient vote-request tasks spawned for
	// SendVoteRequests.
	Call(ctx context.Context, to NodeID, body any, timeout time.Duration) (any, error)
}

// ProxySupervisor is the driver's view of the replication sub-driver
// described in §6: a handle that accepts batches and can be asked to
// stop. Concrete implementations live in raft/proxy.
type ProxySupervisor interface {
	// Start brings up the proxy, which will send heartbeats no less
	// often than interval even absent new batches.
	Start(ctx context.Context, interval time.Duration) error
	// Send forwards a batch; urgent batches bypass coalescing.
	Send(ctx context.Context, urgent bool, batch Batch) error
	// Stop asks the proxy to shut down within grace before it is
	// killed outright.
	Stop(ctx context.Context, grace time.Duration) error
	// Done is closed when the proxy exits, whether asked to or not.
	Done() <-chan struct{}
	// Err is the reason the proxy exited; nil after a clean Stop.
	Err() error
}

// ProxyFactory builds a fresh ProxySupervisor each time the driver
// needs one: on first SendRPCs while Leader, and again whenever the
// previous one exits unexpectedly while still Leader.
type ProxyFactory func() ProxySupervisor

// Logger is the narrow logging surface the driver needs; raft/logging
// provides an implementation backed by logrus.
type Logger interface {
	Debug(msg string, ctx map[string]any)
	Info(msg string, ctx map[string]any)
	Warn(msg string, ctx map[string]any)
	Error(msg string, ctx map[string]any)
}

// Stats is the narrow counters surface the driver reports to;
// raft/raftstats provides an implementation backed by Prometheus.
type Stats interface {
	RoleTransition(from, to Role)
	ProxyRestart()
	EffectExecuted(kind string)
	PendingDepth(n int)
}

// Config bundles everything the driver needs beyond the decision core
// itself.
type Config struct {
	Core          Core
	Init          InitConfig
	Transport     Transport
	ProxyFactory  ProxyFactory
	Logger        Logger
	Stats         Stats
	BroadcastTime time.Duration
	SyncInterval  time.Duration
	Rand          *rand.Rand
	VoteTimeout   time.Duration
	ProxyGrace    time.Duration
}

func (c *Config) setDefaults() {
	if c.BroadcastTime <= 0 {
		c.BroadcastTime = 100 * time.Millisecond
	}

	if c.SyncInterval <= 0 {
		c.SyncInterval = 10 * time.Millisecond
	}

	if c.VoteTimeout <= 0 {
		c.VoteTimeout = 500 * time.Millisecond
	}

	if c.ProxyGrace <= 0 {
		c.ProxyGrace = 100 * time.Millisecond
	}

	if c.Rand == nil {
		c.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	if c.Logger == nil {
		c.Logger = noopLogger{}
	}

	if c.Stats == nil {
		c.Stats = noopStats{}
	}
}

type noopLogger struct{}

func (noopLogger) Debug(string, map[string]any) {}
func (noopLogger) Info(string, map[string]any)  {}
func (noopLogger) Warn(string, map[string]any)  {}
func (noopLogger) Error(string, map[string]any) {}

type noopStats struct{}

func (noopStats) RoleTransition(Role, Role) {}
func (noopStats) ProxyRestart()             {}
func (noopStats) EffectExecuted(string)     {}
func (noopStats) PendingDepth(int)          {}
