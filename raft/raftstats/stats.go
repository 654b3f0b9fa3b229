// Package raftstats implements raft.Stats on top of
// github.com/prometheus/client_golang, the metrics dependency carried
// in the teacher's go.mod (its own usage site, lxd/metrics, builds a
// bespoke MetricSet rather than registering client_golang collectors
// directly, and was not retrieved in source form — only its test file
// was). The counters/gauges below are registered the idiomatic
// promauto way instead, since no teacher call site survived to imitate
// directly.
package raftstats

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/lxc/raftd/raft"
)

// Stats is a raft.Stats backed by a dedicated Prometheus registry, so
// that multiple in-process nodes (as in the cmd/raftd demo) do not
// collide registering the same collector names twice.
type Stats struct {
	node string

	roleTransitions *prometheus.CounterVec
	proxyRestarts   prometheus.Counter
	effects         *prometheus.CounterVec
	pendingDepth    prometheus.Gauge
	currentRole     *prometheus.GaugeVec
}

// New builds a Stats for node, registering its collectors with
// registry. Each call registers its own collector instances, so
// callers running more than one node in the same process must give
// each node its own registry (prometheus.NewRegistry()) rather than
// share one, to avoid colliding on identical metric descriptors.
func New(registry *prometheus.Registry, node string) *Stats {
	factory := promauto.With(registry)

	s := &Stats{
		node: node,
		roleTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "raftd",
			Name:      "role_transitions_total",
			Help:      "Number of role transitions performed by the driver.",
		}, []string{"node", "from", "to"}),
		proxyRestarts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "raftd",
			Name:      "proxy_restarts_total",
			Help:      "Number of times the replication proxy was restarted after an unexpected exit.",
			ConstLabels: prometheus.Labels{
				"node": node,
			},
		}),
		effects: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "raftd",
			Name:      "effects_executed_total",
			Help:      "Number of effects executed by the driver, by kind.",
		}, []string{"node", "kind"}),
		pendingDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "raftd",
			Name:      "pending_commands",
			Help:      "Current depth of the pending-command buffer.",
			ConstLabels: prometheus.Labels{
				"node": node,
			},
		}),
		currentRole: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "raftd",
			Name:      "role",
			Help:      "1 for the role this node currently holds, 0 otherwise.",
		}, []string{"node", "role"}),
	}

	for _, r := range []raft.Role{raft.Follower, raft.Candidate, raft.Leader} {
		s.currentRole.WithLabelValues(node, r.String()).Set(0)
	}

	s.currentRole.WithLabelValues(node, raft.Follower.String()).Set(1)

	return s
}

// RoleTransition implements raft.Stats.
func (s *Stats) RoleTransition(from, to raft.Role) {
	s.roleTransitions.WithLabelValues(s.node, from.String(), to.String()).Inc()
	s.currentRole.WithLabelValues(s.node, from.String()).Set(0)
	s.currentRole.WithLabelValues(s.node, to.String()).Set(1)
}

// ProxyRestart implements raft.Stats.
func (s *Stats) ProxyRestart() {
	s.proxyRestarts.Inc()
}

// EffectExecuted implements raft.Stats.
func (s *Stats) EffectExecuted(kind string) {
	s.effects.WithLabelValues(s.node, kind).Inc()
}

// PendingDepth implements raft.Stats.
func (s *Stats) PendingDepth(n int) {
	s.pendingDepth.Set(float64(n))
}
