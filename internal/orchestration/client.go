package orchestration

import (
	"context"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/cheildo/nexus-duel-matchmaker/internal/matchmaking"
)

// Dial opens a client connection to the provisioner service.
func Dial(addr string) (*grpc.ClientConn, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		slog.Error("Failed to create provisioner client", "address", addr, "error", err)
		return nil, err
	}
	return conn, nil
}

// Client is the matchmaker's view of the provisioner service.
type Client struct {
	conn grpc.ClientConnInterface
}

var _ matchmaking.SessionProvisioner = (*Client)(nil)

func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

func (c *Client) CreateSession(ctx context.Context, capacity int) (*matchmaking.SessionDescriptor, error) {
	in, err := structpb.NewStruct(map[string]any{fieldCapacity: capacity})
	if err != nil {
		return nil, err
	}

	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, createSessionMethod, in, out); err != nil {
		return nil, err
	}

	fields := out.GetFields()
	return &matchmaking.SessionDescriptor{
		SessionID: fields[fieldSessionID].GetStringValue(),
		Host:      fields[fieldHost].GetStringValue(),
		Port:      int(fields[fieldPort].GetNumberValue()),
	}, nil
}

func (c *Client) BindPlayers(ctx context.Context, sessionID string, playerIDs []string, scores map[string]int) (map[string]string, error) {
	players := make([]any, 0, len(playerIDs))
	for _, id := range playerIDs {
		players = append(players, id)
	}
	scoreFields := make(map[string]any, len(scores))
	for id, score := range scores {
		scoreFields[id] = score
	}

	in, err := structpb.NewStruct(map[string]any{
		fieldSessionID: sessionID,
		fieldPlayers:   players,
		fieldScores:    scoreFields,
	})
	if err != nil {
		return nil, err
	}

	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, bindPlayersMethod, in, out); err != nil {
		return nil, err
	}

	tokens := make(map[string]string)
	for id, v := range out.GetFields()[fieldTokens].GetStructValue().GetFields() {
		tokens[id] = v.GetStringValue()
	}
	return tokens, nil
}
