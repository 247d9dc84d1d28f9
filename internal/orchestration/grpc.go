package orchestration

import (
	"context"
	"errors"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// The provisioner speaks plain structpb messages, so the service is declared here
// instead of being generated from a .proto file.
const (
	provisionerServiceName = "nexusclash.provisioning.v1.SessionProvisioner"

	createSessionMethod = "/" + provisionerServiceName + "/CreateSession"
	bindPlayersMethod   = "/" + provisionerServiceName + "/BindPlayers"
	getStatusMethod     = "/" + provisionerServiceName + "/GetStatus"
)

// Message field names.
const (
	fieldCapacity       = "capacity"
	fieldSessionID      = "sessionId"
	fieldHost           = "host"
	fieldPort           = "port"
	fieldPlayers        = "players"
	fieldScores         = "scores"
	fieldTokens         = "joinTokens"
	fieldStatus         = "status"
	fieldActiveSessions = "activeSessions"
	fieldConfirmed      = "confirmedMatches"
)

// ProvisionerServer is the server API for the SessionProvisioner service.
type ProvisionerServer interface {
	CreateSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	BindPlayers(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetStatus(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

func RegisterProvisionerServer(s grpc.ServiceRegistrar, srv ProvisionerServer) {
	s.RegisterService(&provisionerServiceDesc, srv)
}

var provisionerServiceDesc = grpc.ServiceDesc{
	ServiceName: provisionerServiceName,
	HandlerType: (*ProvisionerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateSession", Handler: createSessionHandler},
		{MethodName: "BindPlayers", Handler: bindPlayersHandler},
		{MethodName: "GetStatus", Handler: getStatusHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "nexusclash/provisioning/v1/provisioner.proto",
}

func createSessionHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ProvisionerServer).CreateSession(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: createSessionMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ProvisionerServer).CreateSession(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func bindPlayersHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ProvisionerServer).BindPlayers(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: bindPlayersMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ProvisionerServer).BindPlayers(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func getStatusHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ProvisionerServer).GetStatus(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: getStatusMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ProvisionerServer).GetStatus(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// GRPCHandler implements ProvisionerServer on top of the Service.
type GRPCHandler struct {
	svc      Service
	listener *Listener
}

func NewGRPCHandler(svc Service, listener *Listener) *GRPCHandler {
	return &GRPCHandler{svc: svc, listener: listener}
}

func (h *GRPCHandler) CreateSession(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	capacity := int(req.GetFields()[fieldCapacity].GetNumberValue())
	slog.Info("gRPC CreateSession request received", "capacity", capacity)

	session, err := h.svc.CreateSession(ctx, capacity)
	if err != nil {
		return nil, toStatus(err)
	}

	return structpb.NewStruct(map[string]any{
		fieldSessionID: session.ID,
		fieldHost:      session.Host,
		fieldPort:      session.Port,
		fieldCapacity:  session.Capacity,
	})
}

func (h *GRPCHandler) BindPlayers(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	sessionID := fields[fieldSessionID].GetStringValue()

	var playerIDs []string
	for _, v := range fields[fieldPlayers].GetListValue().GetValues() {
		playerIDs = append(playerIDs, v.GetStringValue())
	}
	scores := make(map[string]int)
	for id, v := range fields[fieldScores].GetStructValue().GetFields() {
		scores[id] = int(v.GetNumberValue())
	}
	slog.Info("gRPC BindPlayers request received", "sessionID", sessionID, "players", playerIDs)

	tokens, err := h.svc.BindPlayers(ctx, sessionID, playerIDs, scores)
	if err != nil {
		return nil, toStatus(err)
	}

	tokenFields := make(map[string]any, len(tokens))
	for id, token := range tokens {
		tokenFields[id] = token
	}
	return structpb.NewStruct(map[string]any{
		fieldSessionID: sessionID,
		fieldTokens:    tokenFields,
	})
}

func (h *GRPCHandler) GetStatus(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	active, err := h.svc.ActiveSessions(ctx)
	if err != nil {
		return nil, toStatus(err)
	}

	var confirmed int64
	if h.listener != nil {
		confirmed = h.listener.ConfirmedMatches()
	}
	return structpb.NewStruct(map[string]any{
		fieldStatus:         "OK",
		fieldActiveSessions: active,
		fieldConfirmed:      confirmed,
	})
}

// toStatus maps service errors to gRPC status codes without leaking internals.
func toStatus(err error) error {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, ErrInvalidCapacity), errors.Is(err, ErrInvalidPlayers):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, ErrSessionAlreadyBound), errors.Is(err, ErrTooManyPlayers):
		return status.Error(codes.FailedPrecondition, err.Error())
	}
	return status.Error(codes.Internal, "an unexpected error occurred")
}
