// Package cmd implements the command-line interface of memDB. It provides a
// hierarchical command structure with operations for running the server and
// interacting with it as a client.
//
// The package is organized into several subpackages:
//
//   - serve: Starts and configures the memDB server
//   - kv: Scalar operations, deletion, range scans, engine info and load tests
//   - dict: Dictionary operations (set, get, has)
//   - queue: Deque operations (push, pop, len)
//   - set: Set operations (add, del, len)
//   - util: Shared utilities for flags, configuration and value parsing (internal use)
//
// Every flag can also be set through an environment variable with the prefix
// MEMDB_ (e.g. MEMDB_TRANSPORT_ENDPOINTS). See memdb -help for a list of all commands.
package cmd
