package matchmaking

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Message types exchanged over the matchmaking socket.
const (
	MsgRequestMatch = "REQUEST_MATCH"
	MsgCancel       = "CANCEL"
	MsgQueued       = "QUEUED"
	MsgCancelled    = "CANCELLED"
	MsgMatchFound   = "MATCH_FOUND"
)

var ErrPlayerDisconnected = errors.New("player disconnected")

// upgrader is used to upgrade an HTTP connection to a persistent WebSocket connection.
var upgrader = websocket.Upgrader{
	// Allow connections from any origin (for development).
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Queuer is the part of the MatchMaker the transport needs.
type Queuer interface {
	RequestMatch(p Player) bool
	Withdraw(p Player)
}

// Authenticator resolves the player name for an incoming request.
type Authenticator interface {
	Authenticate(r *http.Request) (string, error)
}

// ScoreSource looks up the rating reported for a player.
type ScoreSource interface {
	Score(ctx context.Context, playerID string) int
}

type clientMessage struct {
	Type string `json:"type"`
}

type serverMessage struct {
	Type      string `json:"type"`
	Queued    *bool  `json:"queued,omitempty"`
	Host      string `json:"host,omitempty"`
	Port      int    `json:"port,omitempty"`
	JoinToken string `json:"joinToken,omitempty"`
}

// wsPlayer is a Player backed by a WebSocket connection.
type wsPlayer struct {
	id        string
	score     int
	conn      *websocket.Conn
	writeMu   sync.Mutex
	connected atomic.Bool
}

func newWSPlayer(id string, score int, conn *websocket.Conn) *wsPlayer {
	p := &wsPlayer{id: id, score: score, conn: conn}
	p.connected.Store(true)
	return p
}

func (p *wsPlayer) ID() string        { return p.id }
func (p *wsPlayer) Score() int        { return p.score }
func (p *wsPlayer) IsConnected() bool { return p.connected.Load() }

func (p *wsPlayer) NotifyMatch(ctx context.Context, host string, port int, joinToken string) error {
	if !p.IsConnected() {
		return ErrPlayerDisconnected
	}
	return p.send(ctx, serverMessage{
		Type:      MsgMatchFound,
		Host:      host,
		Port:      port,
		JoinToken: joinToken,
	})
}

func (p *wsPlayer) send(ctx context.Context, msg serverMessage) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := p.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return p.conn.WriteJSON(msg)
}

// WebsocketHandler handles the WebSocket connection for matchmaking.
type WebsocketHandler struct {
	mm     Queuer
	auth   Authenticator
	scores ScoreSource
}

func NewWebsocketHandler(mm Queuer, auth Authenticator, scores ScoreSource) *WebsocketHandler {
	return &WebsocketHandler{mm: mm, auth: auth, scores: scores}
}

// ServeHTTP authenticates the player, upgrades the connection and queues the player.
func (h *WebsocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	playerID, err := h.auth.Authenticate(r)
	if err != nil {
		slog.Warn("Rejected matchmaking connection", "remote", r.RemoteAddr, "error", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	score := h.scores.Score(r.Context(), playerID)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	slog.Info("WebSocket connection established", "playerID", playerID)

	player := newWSPlayer(playerID, score, conn)
	h.requestMatch(player)
	h.handleConnection(player)
}

func (h *WebsocketHandler) requestMatch(p *wsPlayer) {
	queued := h.mm.RequestMatch(p)
	if err := p.send(context.Background(), serverMessage{Type: MsgQueued, Queued: &queued}); err != nil {
		slog.Warn("Failed to acknowledge match request", "playerID", p.id, "error", err)
	}
}

// handleConnection runs the read pump for the lifetime of the connection.
func (h *WebsocketHandler) handleConnection(p *wsPlayer) {
	done := make(chan struct{})
	defer func() {
		close(done)
		p.connected.Store(false)
		slog.Info("Closing WebSocket connection and withdrawing player", "playerID", p.id)
		h.mm.Withdraw(p)
		p.conn.Close()
	}()

	go p.pingLoop(done)

	p.conn.SetReadDeadline(time.Now().Add(pongWait))
	p.conn.SetPongHandler(func(string) error {
		return p.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("WebSocket connection closed unexpectedly", "playerID", p.id, "error", err)
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("Ignoring malformed client message", "playerID", p.id, "error", err)
			continue
		}

		switch msg.Type {
		case MsgRequestMatch:
			h.requestMatch(p)
		case MsgCancel:
			h.mm.Withdraw(p)
			if err := p.send(context.Background(), serverMessage{Type: MsgCancelled}); err != nil {
				slog.Warn("Failed to acknowledge cancel", "playerID", p.id, "error", err)
			}
		default:
			slog.Warn("Unknown client message type", "playerID", p.id, "type", msg.Type)
		}
	}
}

func (p *wsPlayer) pingLoop(done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := p.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
