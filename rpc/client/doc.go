// Package client implements the RPC client of memDB.
// It provides an implementation of the store.IStore interface that
// communicates with a remote server via RPC.
//
// The package focuses on:
//   - Transparent RPC access to a store shard
//   - Integration with the transport and serialization layers
//   - Error handling and conversion between RPC and domain errors
//
// Key Components:
//
//   - NewRPCStore: Factory function that creates a client implementing the store.IStore
//     interface. This client forwards all operations to the server via the configured
//     transport layer. Range scans use the stream support of the transport.
//
// Errors returned by the server keep their store.RetCode. Transport and
// serialization failures are reported as internal errors (store.IsInternal).
//
// Usage Example:
//
//	config := common.ClientConfig{
//	  TimeoutSecond: 5,
//	  Transport: common.ClientTransportConfig{
//	    Endpoints:  []string{"localhost:50051"},
//	    RetryCount: 3,
//	  },
//	}
//
//	s, err := client.NewRPCStore(100, config, grpc.NewGrpcClientTransport(), serializer.NewBinarySerializer())
//	if err != nil {
//	  log.Fatal(err)
//	}
//	defer s.Close()
//
//	_, _ = s.Set([]byte("mykey"), structpb.NewStringValue("myvalue"))
//	v, _ := s.Get([]byte("mykey"))
//
// Performance Considerations:
//
//   - For applications that frequently send large payloads, increasing ConnectionsPerEndpoint
//     can improve throughput by allowing parallel requests.
//
//   - For small messages, a single connection per endpoint is often more efficient due to
//     reduced connection overhead.
//
//   - The choice of serializer significantly affects performance. The binary serializer
//     provides the best performance and smallest payload size.
//
// Thread Safety:
//
//	The store client is thread-safe and can be used concurrently from
//	multiple goroutines. A single key stream must only be read by one goroutine.
package client
