package matchmaking

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// headerAuth trusts the X-Player header.
type headerAuth struct{}

func (headerAuth) Authenticate(r *http.Request) (string, error) {
	if id := r.Header.Get("X-Player"); id != "" {
		return id, nil
	}
	return "", errors.New("missing player")
}

type fixedScores map[string]int

func (s fixedScores) Score(_ context.Context, id string) int { return s[id] }

func newTestServer(t *testing.T, mm *MatchMaker) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewWebsocketHandler(mm, headerAuth{}, fixedScores{"alice": 1300, "bob": 1100}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, player string) *websocket.Conn {
	t.Helper()
	header := http.Header{}
	header.Set("X-Player", player)
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) serverMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var msg serverMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestWebsocketHandler_RejectsUnauthenticated(t *testing.T) {
	mm, _ := newTestMatchMaker(newFakeProvisioner(), Config{})
	srv := newTestServer(t, mm)

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, 0, mm.QueueLen())
}

func TestWebsocketHandler_QueueAndCancel(t *testing.T) {
	mm, _ := newTestMatchMaker(newFakeProvisioner(), Config{})
	srv := newTestServer(t, mm)
	conn := dial(t, srv, "alice")

	msg := readMessage(t, conn)
	assert.Equal(t, MsgQueued, msg.Type)
	require.NotNil(t, msg.Queued)
	assert.True(t, *msg.Queued)
	assert.Equal(t, 1, mm.QueueLen())

	require.NoError(t, conn.WriteJSON(clientMessage{Type: MsgRequestMatch}))
	msg = readMessage(t, conn)
	require.NotNil(t, msg.Queued)
	assert.False(t, *msg.Queued, "duplicate request is acknowledged but not queued twice")
	assert.Equal(t, 1, mm.QueueLen())

	require.NoError(t, conn.WriteJSON(clientMessage{Type: MsgCancel}))
	assert.Equal(t, MsgCancelled, readMessage(t, conn).Type)
	assert.Equal(t, 0, mm.QueueLen())
}

func TestWebsocketHandler_DisconnectWithdraws(t *testing.T) {
	mm, _ := newTestMatchMaker(newFakeProvisioner(), Config{})
	srv := newTestServer(t, mm)
	conn := dial(t, srv, "alice")
	readMessage(t, conn)
	require.Equal(t, 1, mm.QueueLen())

	conn.Close()
	assert.Eventually(t, func() bool { return mm.QueueLen() == 0 }, 3*time.Second, 10*time.Millisecond)
}

func TestWebsocketHandler_MatchFound(t *testing.T) {
	prov := newFakeProvisioner()
	var scores map[string]int
	bind := prov.bindFn
	prov.bindFn = func(ctx context.Context, sessionID string, ids []string, s map[string]int) (map[string]string, error) {
		scores = s
		return bind(ctx, sessionID, ids, s)
	}
	mm, _ := newTestMatchMaker(prov, Config{PollInterval: 5 * time.Millisecond})
	srv := newTestServer(t, mm)

	alice := dial(t, srv, "alice")
	assert.Equal(t, MsgQueued, readMessage(t, alice).Type)
	bob := dial(t, srv, "bob")
	assert.Equal(t, MsgQueued, readMessage(t, bob).Type)

	require.NoError(t, mm.StartMatchmaking(context.Background()))
	defer mm.Stop()

	for player, conn := range map[string]*websocket.Conn{"alice": alice, "bob": bob} {
		msg := readMessage(t, conn)
		assert.Equal(t, MsgMatchFound, msg.Type)
		assert.Equal(t, "10.0.0.1", msg.Host)
		assert.Equal(t, 7001, msg.Port)
		assert.Equal(t, "session-1/"+player, msg.JoinToken)
	}
	mm.Stop()
	assert.Equal(t, map[string]int{"alice": 1300, "bob": 1100}, scores)
}
