// Package rpc provides the remote procedure call framework of memDB.
// It acts as the communication layer between clients and the server,
// enabling store operations across network boundaries.
//
// The package is organized into several subpackages:
//
//   - common: Core data structures and utilities used across the RPC system,
//     including the Message protocol, configuration structures, and logging.
//
//   - transport: Network communication abstractions with pluggable implementations
//     (gRPC, HTTP, TCP, Unix sockets), each supporting unary calls and server streams.
//
//   - serializer: Message serialization with multiple format options (Binary, Proto, JSON, GOB)
//     for converting between Message objects and byte arrays.
//
//   - client: RPC client implementing store.IStore, allowing applications to
//     use a remote shard transparently.
//
//   - server: RPC server components that handle incoming requests and route them
//     to the shard stores.
package rpc
