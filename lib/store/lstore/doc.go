// Package lstore implements the local, in-memory store behind the store.IStore
// interface. A single actor goroutine owns the db.KVDB engine for its whole
// lifetime; every operation is a command sent through a mailbox of capacity 1
// and answered on a private reply channel of capacity 1.
//
// Implementation Details:
//
//   - Actor: The actor takes one command at a time, checks its preconditions,
//     applies it to the engine and replies before taking the next one. Commands
//     are therefore linearizable in mailbox order. Domain errors are replied and
//     never stop the loop; only Close does.
//
//   - Gateway: The IStore methods build a command, send it into the mailbox
//     (blocking while it is occupied) and wait for the reply. If the actor has
//     stopped, callers receive a RetCInternalError ("unable to send: actor stopped"
//     or "no response got").
//
//   - Range Streams: A range scan is computed during the actor's turn (at most
//     Config.MaxRange keys). A detached goroutine then delivers the keys through a
//     channel of capacity 1, so a slow consumer never holds up the actor. Validation
//     errors are delivered as the only item of the stream.
//
//   - Metrics: Every store records command counts and latencies with
//     github.com/VictoriaMetrics/metrics into its own metrics set.
//
// Usage Example:
//
//	factory := func() db.KVDB { return btree.NewBTreeDB(nil) }
//	s := lstore.NewLocalStore(factory, &lstore.Config{MaxRange: 10})
//	defer s.Close()
//
//	_, err := s.Set([]byte("greeting"), structpb.NewStringValue("hello"))
//	size, _, err := s.SAdd([]byte("tags"), []byte("go"))
package lstore
