package game

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "cardroom.game.v1.GameService"

const (
	methodCreateSession   = "/" + ServiceName + "/CreateSession"
	methodGetSession      = "/" + ServiceName + "/GetSession"
	methodApplyAction     = "/" + ServiceName + "/ApplyAction"
	methodCompleteSession = "/" + ServiceName + "/CompleteSession"
	methodListActions     = "/" + ServiceName + "/ListActions"
	methodListRules       = "/" + ServiceName + "/ListRules"
)

// GameServiceServer is the server API for GameService.
type GameServiceServer interface {
	CreateSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ApplyAction(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CompleteSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListActions(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListRules(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterGameServiceServer registers srv on s.
func RegisterGameServiceServer(s grpc.ServiceRegistrar, srv GameServiceServer) {
	s.RegisterService(&GameServiceDesc, srv)
}

func unaryHandler(fullMethod string, call func(GameServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(GameServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(GameServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// GameServiceDesc describes GameService for grpc.Server.
var GameServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*GameServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateSession", Handler: unaryHandler(methodCreateSession, GameServiceServer.CreateSession)},
		{MethodName: "GetSession", Handler: unaryHandler(methodGetSession, GameServiceServer.GetSession)},
		{MethodName: "ApplyAction", Handler: unaryHandler(methodApplyAction, GameServiceServer.ApplyAction)},
		{MethodName: "CompleteSession", Handler: unaryHandler(methodCompleteSession, GameServiceServer.CompleteSession)},
		{MethodName: "ListActions", Handler: unaryHandler(methodListActions, GameServiceServer.ListActions)},
		{MethodName: "ListRules", Handler: unaryHandler(methodListRules, GameServiceServer.ListRules)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "cardroom/game/v1/game.proto",
}

// GameServiceClient is the client API for GameService.
type GameServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewGameServiceClient returns a client over cc.
func NewGameServiceClient(cc grpc.ClientConnInterface) *GameServiceClient {
	return &GameServiceClient{cc: cc}
}

func (c *GameServiceClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateSession opens a session for a room.
func (c *GameServiceClient) CreateSession(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodCreateSession, in, opts...)
}

// GetSession loads a session.
func (c *GameServiceClient) GetSession(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodGetSession, in, opts...)
}

// ApplyAction applies one action.
func (c *GameServiceClient) ApplyAction(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodApplyAction, in, opts...)
}

// CompleteSession closes a session.
func (c *GameServiceClient) CompleteSession(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodCompleteSession, in, opts...)
}

// ListActions pages through a session's history.
func (c *GameServiceClient) ListActions(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodListActions, in, opts...)
}

// ListRules lists the registered rules.
func (c *GameServiceClient) ListRules(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodListRules, in, opts...)
}
