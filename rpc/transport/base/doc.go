// Package base implements the framed socket protocol shared by the tcp and
// unix transports. The protocol specific parts (dial, listen, socket options)
// are supplied through IClientConnector and IServerConnector.
//
// Every frame has the layout
//
//	kind (1 byte) | shardID (8 bytes) | requestID (8 bytes) | length (4 bytes) | payload
//
// where kind is one of unary, stream open, stream item, stream end and stream
// cancel. A stream end frame with a payload carries the error text of a failed
// stream. Header and payload are written with a single net.Buffers write.
//
// The client multiplexes many requests over each connection and matches
// responses by request ID. Requests are spread round-robin over
// ConnectionsPerEndpoint connections per endpoint. A broken connection fails
// all pending requests and is redialed in the background with backoff.
// Only requests that never reached the server are retried: a request that
// timed out may have been executed, resending it could apply a Push twice.
//
// The server runs one reader goroutine per connection and bounds the requests
// in flight per connection with a worker semaphore. Read buffers come from a
// sync.Pool. Closing a connection cancels all of its streams.
package base
