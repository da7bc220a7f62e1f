package testing

import (
	"bytes"
	"fmt"
	"github.com/ValentinKolb/memDB/lib/db"
	"github.com/ValentinKolb/memDB/lib/value"
	"google.golang.org/protobuf/types/known/structpb"
	"math/rand"
	"sort"
	"testing"
)

// DBFactory is a function that creates a new instance of a KVDB implementation
type DBFactory func() db.KVDB

// RunKVDBTests runs a comprehensive test suite for a KVDB implementation.
func RunKVDBTests(t *testing.T, name string, factory DBFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Put&Get", func(t *testing.T) {
			testPutGet(t, factory())
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, factory())
		})

		t.Run("BinaryKeys", func(t *testing.T) {
			testBinaryKeys(t, factory())
		})

		t.Run("AscendOrder", func(t *testing.T) {
			testAscendOrder(t, factory())
		})

		t.Run("AscendBounds", func(t *testing.T) {
			testAscendBounds(t, factory())
		})

		t.Run("AscendStop", func(t *testing.T) {
			testAscendStop(t, factory())
		})

		t.Run("Info", func(t *testing.T) {
			testInfo(t, factory())
		})

		t.Run("RealisticUsage", func(t *testing.T) {
			testRealisticUsage(t, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// Checks if the database supports the specified feature
// Skip the test if it is not supported
func requireFeature(t testing.TB, database db.KVDB, feature db.Feature) {
	if !database.SupportsFeature(feature) {
		t.Skip()
	}
}

func scalar(n float64) value.Value {
	return value.NewScalar(structpb.NewNumberValue(n))
}

func scalarOf(t testing.TB, v value.Value) float64 {
	s, ok := value.AsScalar(v)
	if !ok {
		t.Fatalf("expected scalar, got %s", v.Kind())
	}
	return s.GetNumberValue()
}

func collect(database db.KVDB, lower, upper db.Bound) []string {
	var keys []string
	database.Ascend(lower, upper, func(key []byte, _ value.Value) bool {
		keys = append(keys, string(key))
		return true
	})
	return keys
}

func equalKeys(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testPutGet(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeaturePut|db.FeatureGet)

	key := []byte("test-key")

	database.Put(key, scalar(1))
	v, ok := database.Get(key)
	if !ok {
		t.Fatalf("Expected key %s to exist after Put", key)
	}
	if got := scalarOf(t, v); got != 1 {
		t.Errorf("Expected value 1, got %v", got)
	}

	// overwrite with another variant
	database.Put(key, value.NewSet())
	v, ok = database.Get(key)
	if !ok {
		t.Fatalf("Expected key %s to exist after second Put", key)
	}
	if v.Kind() != value.KindSet {
		t.Errorf("Expected kind %s, got %s", value.KindSet, v.Kind())
	}

	if database.Len() != 1 {
		t.Errorf("Expected Len() = 1, got %d", database.Len())
	}

	if _, ok := database.Get([]byte("nonexistent-key")); ok {
		t.Errorf("Expected nonexistent key to return loaded=false")
	}
}

func testDelete(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeaturePut|db.FeatureGet|db.FeatureDelete)

	key := []byte("delete-me")
	database.Put(key, scalar(1))

	if !database.Delete(key) {
		t.Errorf("Expected Delete to report an existing key")
	}
	if _, ok := database.Get(key); ok {
		t.Errorf("Expected key to be gone after Delete")
	}
	if database.Delete(key) {
		t.Errorf("Expected second Delete to report a missing key")
	}
	if database.Len() != 0 {
		t.Errorf("Expected Len() = 0, got %d", database.Len())
	}
}

func testBinaryKeys(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeaturePut|db.FeatureGet|db.FeatureRange)

	keys := [][]byte{
		{},
		{0x00},
		{0x00, 0x00},
		{0x00, 0xff},
		{0x01},
		{0xff},
		{0xff, 0x00},
	}

	// insert in reverse order
	for i := len(keys) - 1; i >= 0; i-- {
		database.Put(keys[i], scalar(float64(i)))
	}

	for i, key := range keys {
		v, ok := database.Get(key)
		if !ok {
			t.Errorf("Key %x not found", key)
			continue
		}
		if got := scalarOf(t, v); got != float64(i) {
			t.Errorf("Key %x: expected %d, got %v", key, i, got)
		}
	}

	i := 0
	database.Ascend(db.Unbounded(), db.Unbounded(), func(key []byte, _ value.Value) bool {
		if !bytes.Equal(key, keys[i]) {
			t.Errorf("Position %d: expected key %x, got %x", i, keys[i], key)
		}
		i++
		return true
	})
	if i != len(keys) {
		t.Errorf("Expected %d keys in scan, got %d", len(keys), i)
	}
}

func testAscendOrder(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeaturePut|db.FeatureRange)

	n := 500
	expected := make([]string, 0, n)
	for _, i := range rand.Perm(n) {
		key := fmt.Sprintf("key-%04d", i)
		database.Put([]byte(key), scalar(float64(i)))
	}
	for i := 0; i < n; i++ {
		expected = append(expected, fmt.Sprintf("key-%04d", i))
	}
	sort.Strings(expected)

	got := collect(database, db.Unbounded(), db.Unbounded())
	if !equalKeys(got, expected) {
		t.Errorf("Ascend returned %d keys in wrong order", len(got))
	}
}

func testAscendBounds(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeaturePut|db.FeatureRange)

	for _, k := range []string{"a", "b", "c", "d", "e"} {
		database.Put([]byte(k), scalar(0))
	}

	tests := []struct {
		name     string
		lower    db.Bound
		upper    db.Bound
		expected []string
	}{
		{"Included/Included", db.Included([]byte("b")), db.Included([]byte("d")), []string{"b", "c", "d"}},
		{"Included/Excluded", db.Included([]byte("b")), db.Excluded([]byte("d")), []string{"b", "c"}},
		{"Excluded/Included", db.Excluded([]byte("b")), db.Included([]byte("d")), []string{"c", "d"}},
		{"Excluded/Excluded", db.Excluded([]byte("b")), db.Excluded([]byte("d")), []string{"c"}},
		{"BetweenKeys", db.Included([]byte("bb")), db.Included([]byte("dd")), []string{"c", "d"}},
		{"Equal Included", db.Included([]byte("c")), db.Included([]byte("c")), []string{"c"}},
		{"Equal Excluded", db.Excluded([]byte("c")), db.Included([]byte("c")), nil},
		{"Unbounded lower", db.Unbounded(), db.Excluded([]byte("c")), []string{"a", "b"}},
		{"Unbounded upper", db.Excluded([]byte("c")), db.Unbounded(), []string{"d", "e"}},
		{"Empty", db.Included([]byte("x")), db.Included([]byte("z")), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := collect(database, tt.lower, tt.upper)
			if !equalKeys(got, tt.expected) {
				t.Errorf("Ascend(%v, %v) = %v, want %v", tt.lower, tt.upper, got, tt.expected)
			}
		})
	}
}

func testAscendStop(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeaturePut|db.FeatureRange)

	for i := 0; i < 20; i++ {
		database.Put([]byte(fmt.Sprintf("%02d", i)), scalar(float64(i)))
	}

	var keys []string
	database.Ascend(db.Included([]byte("00")), db.Excluded([]byte("20")), func(key []byte, _ value.Value) bool {
		keys = append(keys, string(key))
		return len(keys) < 10
	})

	if len(keys) != 10 {
		t.Fatalf("Expected scan to stop after 10 keys, got %d", len(keys))
	}
	if keys[0] != "00" || keys[9] != "09" {
		t.Errorf("Unexpected keys %v", keys)
	}
}

func testInfo(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeaturePut|db.FeatureDelete|db.FeatureInfo)

	database.Put([]byte("s"), scalar(1))
	database.Put([]byte("d"), value.NewDictionary())
	database.Put([]byte("q"), value.NewDeque())
	database.Put([]byte("m1"), value.NewSet())
	database.Put([]byte("m2"), value.NewSet())

	// replacing a value moves it to another kind
	database.Put([]byte("m2"), scalar(2))
	database.Delete([]byte("q"))

	info := database.GetInfo()
	if info.Keys != 4 {
		t.Errorf("Expected 4 keys, got %d", info.Keys)
	}

	expected := map[string]int{"scalar": 2, "dictionary": 1, "set": 1}
	for kind, n := range expected {
		if info.Kinds[kind] != n {
			t.Errorf("Expected %d keys of kind %s, got %d", n, kind, info.Kinds[kind])
		}
	}
	if _, ok := info.Kinds["deque"]; ok {
		t.Errorf("Expected no deque keys to be reported")
	}
	if info.SizeBytes <= 0 {
		t.Errorf("Expected a positive size estimate, got %d", info.SizeBytes)
	}
}

func testRealisticUsage(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeaturePut|db.FeatureGet|db.FeatureDelete|db.FeatureRange)

	// shadow model to compare against
	model := make(map[string]float64)

	numOperations := 10_000
	for i := 0; i < numOperations; i++ {
		var key string
		if i%5 == 0 {
			key = fmt.Sprintf("hot-key-%d", i%50)
		} else {
			key = fmt.Sprintf("key-%d", i%2000)
		}

		switch i % 10 {
		case 0, 1, 2, 3, 4, 5, 6:
			database.Put([]byte(key), scalar(float64(i)))
			model[key] = float64(i)
		case 7, 8:
			v, ok := database.Get([]byte(key))
			expected, exists := model[key]
			if ok != exists {
				t.Fatalf("Key %s: loaded=%v, model says %v", key, ok, exists)
			}
			if ok && scalarOf(t, v) != expected {
				t.Fatalf("Key %s: expected %v, got %v", key, expected, scalarOf(t, v))
			}
		case 9:
			existed := database.Delete([]byte(key))
			if _, exists := model[key]; existed != exists {
				t.Fatalf("Key %s: Delete reported %v, model says %v", key, existed, exists)
			}
			delete(model, key)
		}
	}

	if database.Len() != len(model) {
		t.Fatalf("Expected Len() = %d, got %d", len(model), database.Len())
	}

	expected := make([]string, 0, len(model))
	for k := range model {
		expected = append(expected, k)
	}
	sort.Strings(expected)

	if got := collect(database, db.Unbounded(), db.Unbounded()); !equalKeys(got, expected) {
		t.Errorf("Full scan does not match the model (%d vs %d keys)", len(got), len(expected))
	}
}
