package raftfake

import (
	"context"
	"sync"
	"time"

	"github.com/lxc/raftd/raft"
)

// Proxy is a scriptable raft.ProxySupervisor recording every batch it
// is sent, for assertions in driver tests.
type Proxy struct {
	mu      sync.Mutex
	Batches []raft.Batch
	started bool
	stopped bool
	done    chan struct{}
	err     error

	StartFunc func(ctx context.Context, interval time.Duration) error
}

// NewProxyFactory returns a raft.ProxyFactory handing out fresh,
// independently scripted Proxy instances; instances is appended to
// every time the driver asks for a new one, so tests can observe
// restarts.
func NewProxyFactory(instances *[]*Proxy) raft.ProxyFactory {
	return func() raft.ProxySupervisor {
		p := &Proxy{done: make(chan struct{})}
		*instances = append(*instances, p)
		return p
	}
}

func (p *Proxy) Start(ctx context.Context, interval time.Duration) error {
	p.mu.Lock()
	p.started = true
	p.mu.Unlock()

	if p.StartFunc != nil {
		return p.StartFunc(ctx, interval)
	}

	return nil
}

func (p *Proxy) Send(ctx context.Context, urgent bool, batch raft.Batch) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Batches = append(p.Batches, batch)
	return nil
}

func (p *Proxy) Stop(ctx context.Context, grace time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.stopped {
		p.stopped = true
		close(p.done)
	}

	return nil
}

func (p *Proxy) Done() <-chan struct{} { return p.done }

func (p *Proxy) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Crash simulates an unexpected proxy exit, closing Done with err set,
// without going through Stop.
func (p *Proxy) Crash(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return
	}

	p.stopped = true
	p.err = err
	close(p.done)
}

// Started reports whether Start has been called.
func (p *Proxy) Started() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.started
}

// SentBatches returns a snapshot of every batch passed to Send.
func (p *Proxy) SentBatches() []raft.Batch {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]raft.Batch(nil), p.Batches...)
}
