// Package testing holds the conformance suite and benchmarks every db.KVDB
// engine runs.
//
// The suite checks the ordering of binary keys, bound handling of range
// scans and the per-kind bookkeeping reported by GetInfo.
//
//	factory := func() db.KVDB { return btree.NewBTreeDB(nil) }
//	dbtesting.RunKVDBTests(t, "btree", factory)
//	dbtesting.RunKVDBBenchmarks(b, "btree", factory)
package testing
