package orchestration

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterMetrics(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := svc.CreateSession(ctx, 2)
		require.NoError(t, err)
	}
	listener := NewListener(newFakeReader(), &recordingService{})
	listener.handle(ctx, MatchOutcomeEvent{Type: EventMatchCommitted, SessionID: "s1"})

	registry := prometheus.NewRegistry()
	RegisterMetrics(registry, svc, listener)

	expected := `
# HELP nexus_orchestration_active_sessions Sessions that have not expired or been released
# TYPE nexus_orchestration_active_sessions gauge
nexus_orchestration_active_sessions 2
# HELP nexus_orchestration_confirmed_matches_total Matches confirmed by the matchmaker
# TYPE nexus_orchestration_confirmed_matches_total counter
nexus_orchestration_confirmed_matches_total 1
`
	assert.NoError(t, testutil.GatherAndCompare(registry, strings.NewReader(expected)))
}
