package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "gobebop.v1.LocationService"

// Full method names.
const (
	MethodListLocations   = "/" + ServiceName + "/ListLocations"
	MethodBuildFilter     = "/" + ServiceName + "/BuildFilter"
	MethodResolveLocation = "/" + ServiceName + "/ResolveLocation"
)

// LocationServiceServer is the server API. Requests and responses are
// google.protobuf.Struct documents whose fields are described on Server.
type LocationServiceServer interface {
	ListLocations(context.Context, *structpb.Struct) (*structpb.Struct, error)
	BuildFilter(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ResolveLocation(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(srv LocationServiceServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryCall) func(interface{}, context.Context, func(interface{}) error, grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(LocationServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(LocationServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// LocationServiceDesc describes the service for grpc.Server.RegisterService.
var LocationServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LocationServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "ListLocations",
			Handler: unaryHandler(MethodListLocations, func(s LocationServiceServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
				return s.ListLocations(ctx, in)
			}),
		},
		{
			MethodName: "BuildFilter",
			Handler: unaryHandler(MethodBuildFilter, func(s LocationServiceServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
				return s.BuildFilter(ctx, in)
			}),
		},
		{
			MethodName: "ResolveLocation",
			Handler: unaryHandler(MethodResolveLocation, func(s LocationServiceServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
				return s.ResolveLocation(ctx, in)
			}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "gobebop/v1/location.proto",
}

// RegisterLocationServiceServer registers srv with s.
func RegisterLocationServiceServer(s grpc.ServiceRegistrar, srv LocationServiceServer) {
	s.RegisterService(&LocationServiceDesc, srv)
}

// LocationServiceClient calls the service over a client connection.
type LocationServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewLocationServiceClient wraps cc.
func NewLocationServiceClient(cc grpc.ClientConnInterface) *LocationServiceClient {
	return &LocationServiceClient{cc: cc}
}

func (c *LocationServiceClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// ListLocations calls LocationService.ListLocations.
func (c *LocationServiceClient) ListLocations(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodListLocations, in, opts...)
}

// BuildFilter calls LocationService.BuildFilter.
func (c *LocationServiceClient) BuildFilter(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodBuildFilter, in, opts...)
}

// ResolveLocation calls LocationService.ResolveLocation.
func (c *LocationServiceClient) ResolveLocation(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodResolveLocation, in, opts...)
}
