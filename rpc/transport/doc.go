// Package transport defines how serialized memDB messages travel between
// client and server, independent of the network protocol.
//
// A transport moves opaque byte slices tagged with a shard ID. It offers two
// call shapes:
//
//   - unary: one request, one response (ServerHandleFunc, IRPCClientTransport.Send)
//   - server stream: one request, many responses until the handler returns
//     (ServerStreamHandleFunc, IRPCClientTransport.Stream). Range scans use it.
//
// Closing an IClientStream before io.EOF cancels the handler on the server.
// Implementations live in the subpackages grpc, http, tcp and unix. The
// testing subpackage holds a conformance suite every implementation runs.
package transport
