package grpc

import (
	"context"
	"fmt"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
	"strconv"
)

// The service carries serialized rpc messages as google.protobuf.BytesValue.
// Its proto definition would read:
//
//	service Store {
//	  rpc Call(google.protobuf.BytesValue) returns (google.protobuf.BytesValue);
//	  rpc Stream(google.protobuf.BytesValue) returns (stream google.protobuf.BytesValue);
//	}
const (
	ServiceName  = "memdb.v1.Store"
	callMethod   = "/" + ServiceName + "/Call"
	streamMethod = "/" + ServiceName + "/Stream"

	// shardMetadataKey is the request metadata holding the shard id
	shardMetadataKey = "memdb-shard-id"
)

// storeService is implemented by the server transport
type storeService interface {
	Call(ctx context.Context, req *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
	Stream(req *wrapperspb.BytesValue, stream grpc.ServerStream) error
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*storeService)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Call",
			Handler:    callHandler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Stream",
			Handler:       streamHandler,
			ServerStreams: true,
		},
	},
	Metadata: "memdb/v1/store.proto",
}

func callHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(storeService).Call(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: callMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(storeService).Call(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

func streamHandler(srv any, stream grpc.ServerStream) error {
	in := new(wrapperspb.BytesValue)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(storeService).Stream(in, stream)
}

// withShard attaches the shard id to an outgoing context
func withShard(ctx context.Context, shardId uint64) context.Context {
	return metadata.AppendToOutgoingContext(ctx, shardMetadataKey, strconv.FormatUint(shardId, 10))
}

// shardFromContext reads the shard id of an incoming request
func shardFromContext(ctx context.Context) (uint64, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return 0, status.Error(codes.InvalidArgument, "missing request metadata")
	}
	values := md.Get(shardMetadataKey)
	if len(values) != 1 {
		return 0, status.Errorf(codes.InvalidArgument, "expected exactly one %s", shardMetadataKey)
	}
	shardId, err := strconv.ParseUint(values[0], 10, 64)
	if err != nil {
		return 0, status.Error(codes.InvalidArgument, fmt.Sprintf("invalid shard id %q", values[0]))
	}
	return shardId, nil
}
