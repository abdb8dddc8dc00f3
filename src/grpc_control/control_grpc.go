package grpc_control

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// Messages are protobuf well-known types, so no generated code is needed.

const ServiceName = "mtmhub.control.v1.HubControl"

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

type HubControlServer interface {
	ListAccounts(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	ResetAccount(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ResetAll(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	TriggerPoll(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	GetStatus(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

func RegisterHubControlServer(s grpc.ServiceRegistrar, srv HubControlServer) {
	s.RegisterService(&HubControl_ServiceDesc, srv)
}

// -----------------------------------------------------------------------------

// unary adapts a typed method to a grpc.MethodHandler.
func unary[Req any](name string, newReq func() Req,
	call func(HubControlServer, context.Context, Req) (*structpb.Struct, error)) grpc.MethodDesc {

	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := newReq()
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(HubControlServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(HubControlServer), ctx, req.(Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func newEmpty() *emptypb.Empty    { return new(emptypb.Empty) }
func newStruct() *structpb.Struct { return new(structpb.Struct) }

// -----------------------------------------------------------------------------

var HubControl_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*HubControlServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("ListAccounts", newEmpty, HubControlServer.ListAccounts),
		unary("ResetAccount", newStruct, HubControlServer.ResetAccount),
		unary("ResetAll", newEmpty, HubControlServer.ResetAll),
		unary("TriggerPoll", newEmpty, HubControlServer.TriggerPoll),
		unary("GetStatus", newEmpty, HubControlServer.GetStatus),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "mtmhub/control/v1/control.proto",
}

// -----------------------------------------------------------------------------
// Client
// -----------------------------------------------------------------------------

type HubControlClient struct {
	cc grpc.ClientConnInterface
}

func NewHubControlClient(cc grpc.ClientConnInterface) *HubControlClient {
	return &HubControlClient{cc: cc}
}

func (c *HubControlClient) invoke(ctx context.Context, method string, in interface{}, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HubControlClient) ListAccounts(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "ListAccounts", &emptypb.Empty{}, opts...)
}

func (c *HubControlClient) ResetAccount(ctx context.Context, userID string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(map[string]interface{}{"user_id": userID})
	if err != nil {
		return nil, err
	}
	return c.invoke(ctx, "ResetAccount", in, opts...)
}

func (c *HubControlClient) ResetAll(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "ResetAll", &emptypb.Empty{}, opts...)
}

func (c *HubControlClient) TriggerPoll(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "TriggerPoll", &emptypb.Empty{}, opts...)
}

func (c *HubControlClient) GetStatus(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "GetStatus", &emptypb.Empty{}, opts...)
}
