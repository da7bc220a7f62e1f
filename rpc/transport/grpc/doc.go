// Package grpc implements a gRPC based transport layer for the memDB RPC system.
//
// The service memdb.v1.Store has a unary Call and a server streaming Stream method.
// Both carry serialized rpc messages wrapped in google.protobuf.BytesValue, so the
// serializer stays pluggable like on every other transport. The shard id travels
// in the request metadata (memdb-shard-id).
//
// Key Components:
//
//   - grpcServerTransport: registers the Store service and the standard gRPC health
//     service. Stream handler failures are reported as codes.Internal.
//
//   - grpcClientTransport: keeps ConnectionsPerEndpoint client connections per endpoint
//     and balances calls round-robin. Calls failing with codes.Unavailable are retried.
package grpc
