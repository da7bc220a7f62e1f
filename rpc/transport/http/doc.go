// Package http carries memDB requests over plain HTTP/1.1.
//
// The server is a go-chi router with two routes per shard:
//
//	POST /{shardId}          unary request, the response body is the serialized response
//	POST /{shardId}/stream   server stream, the body is a sequence of chunks
//
// A stream chunk is kind (1 byte) | length (4 bytes) | payload, where kind is an
// item, the end marker or an error whose payload is the error text. Chunks are
// flushed as they are written so range results reach the client before the
// scan finishes.
//
// The client balances requests round-robin over all endpoints and retries only
// when the connection could not be established. Endpoints without a scheme get
// http:// prepended.
package http
