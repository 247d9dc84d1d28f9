package orchestration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testConfig = Config{
	FleetID:     "fleet-test",
	Host:        "10.0.0.1",
	PortMin:     7000,
	PortMax:     7001,
	UnboundTTL:  time.Minute,
	MaxLifetime: time.Hour,
}

func newTestService(t *testing.T) (Service, Store, func(time.Duration)) {
	t.Helper()
	mr, rdb := newTestRedis(t)
	store := NewRedisStore(rdb)
	return NewService(store, testConfig), store, mr.FastForward
}

func TestService_CreateSessionCyclesPorts(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	var ports []int
	for i := 0; i < 3; i++ {
		s, err := svc.CreateSession(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, "10.0.0.1", s.Host)
		assert.Equal(t, "fleet-test", s.FleetID)
		assert.Equal(t, StatusPending, s.Status)
		ports = append(ports, s.Port)

		stored, err := store.Get(ctx, s.ID)
		require.NoError(t, err)
		assert.Equal(t, s.ID, stored.ID)
	}
	assert.Equal(t, []int{7000, 7001, 7000}, ports)
}

func TestService_CreateSessionRejectsCapacity(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.CreateSession(context.Background(), 0)
	assert.ErrorIs(t, err, ErrInvalidCapacity)
}

func TestService_BindPlayers(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	s, err := svc.CreateSession(ctx, 2)
	require.NoError(t, err)

	tokens, err := svc.BindPlayers(ctx, s.ID, []string{"alice", "bob"}, map[string]int{"alice": 1200, "bob": 900})
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.NotEmpty(t, tokens["alice"])
	assert.NotEmpty(t, tokens["bob"])
	assert.NotEqual(t, tokens["alice"], tokens["bob"])

	stored, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusBound, stored.Status)

	slots, err := store.Slots(ctx, s.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []PlayerSlot{
		{PlayerID: "alice", JoinToken: tokens["alice"], Score: 1200},
		{PlayerID: "bob", JoinToken: tokens["bob"], Score: 900},
	}, slots)

	_, err = svc.BindPlayers(ctx, s.ID, []string{"carol", "dave"}, nil)
	assert.ErrorIs(t, err, ErrSessionAlreadyBound)
}

func TestService_BindPlayersValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	s, err := svc.CreateSession(ctx, 2)
	require.NoError(t, err)

	tests := []struct {
		name      string
		sessionID string
		players   []string
		want      error
	}{
		{"no players", s.ID, nil, ErrInvalidPlayers},
		{"duplicate players", s.ID, []string{"alice", "alice"}, ErrInvalidPlayers},
		{"empty id", s.ID, []string{"alice", ""}, ErrInvalidPlayers},
		{"over capacity", s.ID, []string{"a", "b", "c"}, ErrTooManyPlayers},
		{"unknown session", "missing", []string{"alice", "bob"}, ErrSessionNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.BindPlayers(ctx, tt.sessionID, tt.players, nil)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	// Rejected requests do not consume the bind.
	_, err = svc.BindPlayers(ctx, s.ID, []string{"alice", "bob"}, nil)
	assert.NoError(t, err)
}

func TestService_UnboundSessionExpires(t *testing.T) {
	svc, _, fastForward := newTestService(t)
	ctx := context.Background()
	s, err := svc.CreateSession(ctx, 2)
	require.NoError(t, err)

	fastForward(testConfig.UnboundTTL + time.Second)

	_, err = svc.BindPlayers(ctx, s.ID, []string{"alice", "bob"}, nil)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestService_ReleaseAndConfirm(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	s, err := svc.CreateSession(ctx, 2)
	require.NoError(t, err)
	_, err = svc.BindPlayers(ctx, s.ID, []string{"alice", "bob"}, nil)
	require.NoError(t, err)

	require.NoError(t, svc.Confirm(ctx, s.ID))
	stored, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, stored.Status)

	active, err := svc.ActiveSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), active)

	require.NoError(t, svc.Release(ctx, s.ID))
	_, err = store.Get(ctx, s.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, svc.Confirm(ctx, s.ID), ErrSessionNotFound)
	assert.NoError(t, svc.Release(ctx, s.ID))

	active, err = svc.ActiveSessions(ctx)
	require.NoError(t, err)
	assert.Zero(t, active)
}
