package raftstats_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/lxc/raftd/raft"
	"github.com/lxc/raftd/raft/raftstats"
)

func TestStats_RoleTransition(t *testing.T) {
	registry := prometheus.NewRegistry()
	s := raftstats.New(registry, "a")

	s.RoleTransition(raft.Follower, raft.Candidate)

	families, err := registry.Gather()
	require.NoError(t, err)

	var found bool
	for _, f := range families {
		if f.GetName() != "raftd_role_transitions_total" {
			continue
		}

		for _, m := range f.Metric {
			if labelsMatch(m, map[string]string{"node": "a", "from": "follower", "to": "candidate"}) {
				found = true
				require.Equal(t, float64(1), m.Counter.GetValue())
			}
		}
	}

	require.True(t, found, "expected a role_transitions_total sample for follower->candidate")
}

func TestStats_PendingDepth(t *testing.T) {
	registry := prometheus.NewRegistry()
	s := raftstats.New(registry, "a")

	s.PendingDepth(3)

	families, err := registry.Gather()
	require.NoError(t, err)

	var found bool
	for _, f := range families {
		if f.GetName() == "raftd_pending_commands" {
			found = true
			require.Equal(t, float64(3), f.Metric[0].Gauge.GetValue())
		}
	}

	require.True(t, found)
}

func labelsMatch(m *dto.Metric, want map[string]string) bool {
	if len(m.Label) != len(want) {
		return false
	}

	for _, l := range m.Label {
		if want[l.GetName()] != l.GetValue() {
			return false
		}
	}

	return true
}
