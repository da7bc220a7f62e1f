// Package store provides the high-level interface of the multi-type key-value store
// together with its unified error handling.
//
// Key Components:
//
//   - IStore Interface: The core abstraction defining the operations on the four value
//     variants (scalar, dictionary, set and deque) plus deletion, range scans and
//     engine statistics. Both the local actor store (lstore) and the RPC client
//     (rpc/client) implement it, so applications and tests can switch between an
//     in-process store and a remote one without code changes.
//
//   - KeyStream: The pull-based result of a range scan. Keys are delivered one at a
//     time and the consumer may abandon the stream at any point.
//
//   - Error System: A structured error reporting mechanism using typed return codes
//     (RetCNotFound, RetCInvalidArgument, RetCInternalError, ...) and descriptive
//     messages. Helpers like IsNotFound inspect wrapped errors via errors.As.
//
//   - DBFactory: A function type that abstracts the creation of the underlying db.KVDB
//     instance, providing dependency injection of the storage engine.
//
// Shared conformance tests for IStore implementations live in the
// "github.com/ValentinKolb/memDB/lib/store/testing" package.
package store
