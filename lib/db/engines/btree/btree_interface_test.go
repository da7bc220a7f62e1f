package btree

import (
	"github.com/ValentinKolb/memDB/lib/db"
	dbtesting "github.com/ValentinKolb/memDB/lib/db/testing"
	"testing"
)

func Test(t *testing.T) {
	dbtesting.RunKVDBTests(t, "BTreeDB", func() db.KVDB {
		return NewBTreeDB(nil)
	})
}

func TestSmallDegree(t *testing.T) {
	dbtesting.RunKVDBTests(t, "BTreeDB(degree=2)", func() db.KVDB {
		return NewBTreeDB(&Config{Degree: 2})
	})
}

func Benchmark(b *testing.B) {
	dbtesting.RunKVDBBenchmarks(b, "BTreeDB", func() db.KVDB {
		return NewBTreeDB(nil)
	})
}
