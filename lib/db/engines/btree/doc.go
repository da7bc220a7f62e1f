// Package btree implements the db.KVDB interface on top of an in-memory B-tree
// (github.com/google/btree).
//
// Keys are ordered byte-lexicographically (bytes.Compare), which gives the ordered
// key space required for range scans. The engine additionally keeps a per-variant
// key count that is updated on every Put and Delete, so GetInfo can report the
// variant breakdown without scanning the tree. Size figures in GetInfo are
// extrapolated from a sample of the first entries.
//
// The engine is not safe for concurrent use. It is designed to be owned by the
// single goroutine of the store actor (see the lstore package), which serializes
// every access.
//
// Example:
//
//	database := btree.NewBTreeDB(nil)
//	database.Put([]byte("a"), value.NewScalar(structpb.NewNumberValue(1)))
//	database.Ascend(db.Included([]byte("a")), db.Excluded([]byte("z")), func(key []byte, v value.Value) bool {
//		fmt.Println(string(key))
//		return true
//	})
package btree
