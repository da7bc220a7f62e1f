// Package testing provides a conformance suite for store.IStore implementations.
//
// The suite checks the observable contract of the store: value round trips for all
// four variants, the exact error codes and messages of every failure path, the
// guarantee that failing operations never mutate data, range bound handling and
// truncation, and linearizable concurrent updates.
//
// Example usage:
//
//	factory := func() store.IStore {
//		return lstore.NewLocalStore(func() db.KVDB { return btree.NewBTreeDB(nil) }, nil)
//	}
//	storetesting.RunIStoreTests(t, "LocalStore", factory)
package testing
