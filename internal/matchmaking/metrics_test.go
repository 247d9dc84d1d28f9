package matchmaking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_RecordedByMatchMaker(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	pm := metrics.(*prometheusMetrics)

	prov := newFakeProvisioner()
	prov.bindFn = func(context.Context, string, []string, map[string]int) (map[string]string, error) {
		return nil, errors.New("bind refused")
	}
	m := NewMatchMaker(prov, Config{}, WithMetrics(metrics))

	alice, bob, carol := newFakePlayer("alice", 0), newFakePlayer("bob", 0), newFakePlayer("carol", 0)
	m.RequestMatch(alice)
	m.RequestMatch(bob)
	m.RequestMatch(carol)
	assert.Equal(t, 3.0, testutil.ToFloat64(pm.queueSize))

	alice.connected.Store(false)
	outcome, _ := m.step(context.Background())
	require.Equal(t, OutcomeEvicted, outcome)
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.evictions))
	assert.Equal(t, 2.0, testutil.ToFloat64(pm.queueSize))

	outcome, _ = m.step(context.Background())
	require.Equal(t, OutcomeFailed, outcome)
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.provisioningFailures.WithLabelValues(StageBindPlayers)))
	assert.Equal(t, 0.0, testutil.ToFloat64(pm.provisioningFailures.WithLabelValues(StageCreateSession)))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.iterations.WithLabelValues("evicted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.iterations.WithLabelValues("failed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(pm.queueSize))
}

func TestMetrics_NotificationFailures(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	metrics.NotificationFailed()
	metrics.ProvisioningElapsed(StageCreateSession, 3*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.(*prometheusMetrics).notificationFailures))
	assert.Equal(t, 1, testutil.CollectAndCount(metrics.(*prometheusMetrics).provisioningElapsed))
}
