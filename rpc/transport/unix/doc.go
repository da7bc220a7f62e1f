// Package unix runs the framed base transport over Unix domain sockets for
// clients on the same machine as the memDB server.
//
// The endpoint is a socket path (e.g. /tmp/memdb.sock). A stale socket file
// left behind by a previous server is removed before listening. The default
// server buffer is 64 KB, streams and retries behave exactly as described in
// the base package.
package unix
