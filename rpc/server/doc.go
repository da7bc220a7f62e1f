// Package server implements the RPC server of memDB.
// It provides the adapter that maps RPC messages onto store.IStore calls,
// along with the core server implementation that manages shards and request routing.
//
// The package focuses on:
//   - Server-side RPC request handling for all store operations
//   - Streaming range scans through the transport's stream handler
//   - Adapter pattern to decouple application logic from RPC mechanisms
//   - A Prometheus metrics endpoint covering every shard
//
// Key Components:
//
//   - IRPCServerAdapter: Interface defining the contract for all server adapters,
//     with the Handle and HandleStream methods that process incoming requests
//     against a store.IStore.
//
//   - NewIStoreServerAdapter: Factory function creating an adapter for the store
//     operations, translating RPC requests to store.IStore method calls.
//
//   - NewRPCServer: Factory function creating a configured server with the specified
//     transport and serializer mechanisms.
//
// Usage Example:
//
//	config := common.ServerConfig{
//	  Shards: []common.ServerShard{
//	    {ShardID: 100, Type: common.ShardTypeLocalIStore},
//	  },
//	  MaxRange: 10,
//	  Transport: common.ServerTransportConfig{Endpoint: "0.0.0.0:50051"},
//	  MetricsEndpoint: "0.0.0.0:9090",
//	  LogLevel: "info",
//	}
//
//	s := server.NewRPCServer(
//	  config,
//	  grpc.NewGrpcServerTransport(),
//	  serializer.NewBinarySerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// Every shard is a local actor store (lstore) on a B-tree engine. Requests for
// unknown shards are answered with a NotFound error.
//
// Thread Safety:
//
//	The server implementation is thread-safe and can handle concurrent requests
//	across multiple connections. Requests to one shard are serialized by its actor.
//	Serve must be called only once, Shutdown may be called from any goroutine.
package server
