// Package db provides the interface for the ordered key space behind a memDB store.
//
// The package focuses on:
//   - A small ordered key-value interface (KVDB) keyed by arbitrary byte strings
//   - Range bounds that can be inclusive, exclusive or unbounded
//   - Feature discovery through capability flags
//   - Metadata reporting through DatabaseInfo
//
// Key Components:
//
//   - KVDB Interface: Put, Get, Delete, Len and an ordered Ascend scan. Values are
//     the variants of the value package. Implementations do not need to be safe for
//     concurrent use since a database is owned by the single store actor.
//
//   - Bound: One endpoint of a key range. Bounds carry a kind (included, excluded,
//     unbounded) and a key. AboveLower and BelowUpper evaluate a key against a bound.
//
//   - Feature Flags: Implementations advertise their capabilities via SupportsFeature.
//
//   - DatabaseInfo: Key count, estimated size, per-variant key counts and
//     implementation specific metadata.
//
// Related Packages:
//
// The engines/btree package (github.com/ValentinKolb/memDB/lib/db/engines/btree) implements
// KVDB on top of an in-memory B-tree.
//
// The util package (github.com/ValentinKolb/memDB/lib/db/util) provides the statistics
// helpers used by GetInfo.
//
// The testing package (github.com/ValentinKolb/memDB/lib/db/testing) provides
// standardized tests and benchmarks for KVDB implementations.
//   - RunKVDBTests: Runs a standardized test suite to validate implementations
//   - RunKVDBBenchmarks: Provides performance benchmarks for comparing implementations
package db
