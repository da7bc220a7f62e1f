package testing

import (
	"fmt"
	"github.com/ValentinKolb/memDB/lib/db"
	"github.com/ValentinKolb/memDB/lib/value"
	"math/rand"
	"testing"
)

// RunKVDBBenchmarks runs all benchmarks for a key-value database implementations.
// KVDB implementations are single owner, so the benchmarks run sequentially.
func RunKVDBBenchmarks(b *testing.B, name string, factory DBFactory) {

	b.Run("Put", func(b *testing.B) {
		benchmarkPut(b, factory())
	})

	b.Run("PutExisting", func(b *testing.B) {
		benchmarkPutExisting(b, factory())
	})

	b.Run("Get", func(b *testing.B) {
		benchmarkGet(b, factory())
	})

	b.Run("Delete", func(b *testing.B) {
		benchmarkDelete(b, factory())
	})

	b.Run("Ascend10", func(b *testing.B) {
		benchmarkAscend(b, factory(), 10)
	})

	b.Run("Ascend100", func(b *testing.B) {
		benchmarkAscend(b, factory(), 100)
	})

	b.Run("MixedUsage", func(b *testing.B) {
		benchmarkMixedUsage(b, factory())
	})
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

const benchKeySpace = 100_000

func benchKey(i int) []byte {
	return []byte(fmt.Sprintf("bench-key-%08d", i))
}

func fill(database db.KVDB, n int) {
	for i := 0; i < n; i++ {
		database.Put(benchKey(i), scalar(float64(i)))
	}
}

// Benchmark for Put operation
func benchmarkPut(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeaturePut)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		database.Put(benchKey(i), scalar(float64(i)))
	}
}

// Benchmark for Put operation with existing keys
func benchmarkPutExisting(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeaturePut)
	fill(database, benchKeySpace)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		database.Put(benchKey(i%benchKeySpace), scalar(float64(i)))
	}
}

// Benchmark for Get operation
func benchmarkGet(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeaturePut|db.FeatureGet)
	fill(database, benchKeySpace)

	keys := make([][]byte, 1024)
	for i := range keys {
		keys[i] = benchKey(rand.Intn(benchKeySpace))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		database.Get(keys[i%len(keys)])
	}
}

// Benchmark for Delete operation
func benchmarkDelete(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeaturePut|db.FeatureDelete)
	fill(database, benchKeySpace)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		database.Delete(benchKey(i % benchKeySpace))
	}
}

// Benchmark for bounded range scans
func benchmarkAscend(b *testing.B, database db.KVDB, limit int) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeaturePut|db.FeatureRange)
	fill(database, benchKeySpace)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		start := rand.Intn(benchKeySpace - limit)
		n := 0
		database.Ascend(db.Included(benchKey(start)), db.Unbounded(), func(_ []byte, _ value.Value) bool {
			n++
			return n < limit
		})
	}
}

// Benchmark for a mix of reads, writes and deletes
func benchmarkMixedUsage(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeaturePut|db.FeatureGet|db.FeatureDelete)
	fill(database, benchKeySpace/10)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		key := benchKey(rand.Intn(benchKeySpace / 10))
		switch i % 10 {
		case 0, 1, 2:
			database.Put(key, scalar(float64(i)))
		case 3:
			database.Delete(key)
		default:
			database.Get(key)
		}
	}
}
