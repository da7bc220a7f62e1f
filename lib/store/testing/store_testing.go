package testing

import (
	"errors"
	"fmt"
	"github.com/ValentinKolb/memDB/lib/db"
	"github.com/ValentinKolb/memDB/lib/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
	"io"
	"sync"
	"testing"
)

// StoreFactory is a function that creates a new, empty IStore.
// Stores created by the factory must use a range limit of 10.
type StoreFactory func() store.IStore

// RunIStoreTests runs the conformance suite for an IStore implementation.
func RunIStoreTests(t *testing.T, name string, factory StoreFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("ScalarRoundTrip", func(t *testing.T) {
			testScalarRoundTrip(t, factory())
		})

		t.Run("ScalarErrors", func(t *testing.T) {
			testScalarErrors(t, factory())
		})

		t.Run("DictionaryScenario", func(t *testing.T) {
			testDictionaryScenario(t, factory())
		})

		t.Run("DictionaryErrors", func(t *testing.T) {
			testDictionaryErrors(t, factory())
		})

		t.Run("DequeSymmetry", func(t *testing.T) {
			testDequeSymmetry(t, factory())
		})

		t.Run("DequeErrors", func(t *testing.T) {
			testDequeErrors(t, factory())
		})

		t.Run("SetMembership", func(t *testing.T) {
			testSetMembership(t, factory())
		})

		t.Run("SetErrors", func(t *testing.T) {
			testSetErrors(t, factory())
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, factory())
		})

		t.Run("TypeMismatchIsolation", func(t *testing.T) {
			testTypeMismatchIsolation(t, factory())
		})

		t.Run("RangeBounds", func(t *testing.T) {
			testRangeBounds(t, factory())
		})

		t.Run("RangeValidation", func(t *testing.T) {
			testRangeValidation(t, factory())
		})

		t.Run("RangeTruncation", func(t *testing.T) {
			testRangeTruncation(t, factory())
		})

		t.Run("Info", func(t *testing.T) {
			testInfo(t, factory())
		})

		t.Run("ConcurrentSAdd", func(t *testing.T) {
			testConcurrentSAdd(t, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

func num(n float64) *structpb.Value {
	return structpb.NewNumberValue(n)
}

func str(s string) *structpb.Value {
	return structpb.NewStringValue(s)
}

// requireCode asserts that err is a *store.Error with the given code and message
func requireCode(t *testing.T, err error, code store.RetCode, msg string) {
	t.Helper()
	require.Error(t, err)
	var e *store.Error
	require.True(t, errors.As(err, &e), "expected *store.Error, got %T: %v", err, err)
	assert.Equal(t, code, e.Code, "unexpected code for %q", e.Msg)
	if msg != "" {
		assert.Equal(t, msg, e.Msg)
	}
}

func assertProtoEqual(t *testing.T, expected, actual *structpb.Value) {
	t.Helper()
	assert.True(t, proto.Equal(expected, actual), "expected %v, got %v", expected, actual)
}

// collectKeys drains a key stream. The returned error is the first non-EOF error.
func collectKeys(t *testing.T, s store.IStore, lower, upper db.Bound) ([]string, error) {
	t.Helper()
	stream, err := s.Range(lower, upper)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	var keys []string
	for {
		key, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return keys, nil
		}
		if err != nil {
			return keys, err
		}
		keys = append(keys, string(key))
	}
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testScalarRoundTrip(t *testing.T, s store.IStore) {
	defer s.Close()

	values := []*structpb.Value{
		num(42),
		str("hello"),
		structpb.NewBoolValue(true),
		structpb.NewNullValue(),
		structpb.NewListValue(&structpb.ListValue{Values: []*structpb.Value{num(1), str("two")}}),
		structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{"a": num(1)}}),
	}

	for i, v := range values {
		key := []byte(fmt.Sprintf("scalar-%d", i))
		ts, err := s.Set(key, v)
		require.NoError(t, err)
		assert.False(t, ts.IsZero(), "Set returned a zero timestamp")

		got, err := s.Get(key)
		require.NoError(t, err)
		assertProtoEqual(t, v, got)
	}

	// overwrite replaces the value
	_, err := s.Set([]byte("scalar-0"), str("replaced"))
	require.NoError(t, err)
	got, err := s.Get([]byte("scalar-0"))
	require.NoError(t, err)
	assertProtoEqual(t, str("replaced"), got)

	// binary keys
	key := []byte{0x00, 0xff, 0x10}
	_, err = s.Set(key, num(7))
	require.NoError(t, err)
	got, err = s.Get(key)
	require.NoError(t, err)
	assertProtoEqual(t, num(7), got)
}

func testScalarErrors(t *testing.T, s store.IStore) {
	defer s.Close()

	_, err := s.Get([]byte("missing"))
	requireCode(t, err, store.RetCNotFound, "no value found")

	_, err = s.Set([]byte("k"), nil)
	requireCode(t, err, store.RetCInvalidArgument, "no value specified")

	_, err = s.Get([]byte("k"))
	requireCode(t, err, store.RetCNotFound, "no value found")

	_, _, err = s.SAdd([]byte("set"), []byte("m"))
	require.NoError(t, err)
	_, err = s.Get([]byte("set"))
	requireCode(t, err, store.RetCInvalidArgument, "invalid type")
}

func testDictionaryScenario(t *testing.T, s store.IStore) {
	defer s.Close()

	key := []byte("u")

	size, ts, err := s.DSet(key, []byte("name"), str("ann"))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), size)
	assert.False(t, ts.IsZero())

	size, _, err = s.DSet(key, []byte("age"), num(30))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), size)

	got, err := s.DGet(key, []byte("name"))
	require.NoError(t, err)
	assertProtoEqual(t, str("ann"), got)

	found, err := s.DHas(key, []byte("email"))
	require.NoError(t, err)
	assert.False(t, found)

	found, err = s.DHas(key, []byte("age"))
	require.NoError(t, err)
	assert.True(t, found)

	// overwriting a sub-key keeps the size
	size, _, err = s.DSet(key, []byte("age"), num(31))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), size)
	got, err = s.DGet(key, []byte("age"))
	require.NoError(t, err)
	assertProtoEqual(t, num(31), got)
}

func testDictionaryErrors(t *testing.T, s store.IStore) {
	defer s.Close()

	_, err := s.DGet([]byte("missing"), []byte("x"))
	requireCode(t, err, store.RetCNotFound, "no value found")

	_, err = s.DHas([]byte("missing"), []byte("x"))
	requireCode(t, err, store.RetCNotFound, "no value found")

	_, _, err = s.DSet([]byte("d"), []byte("x"), num(1))
	require.NoError(t, err)

	_, err = s.DGet([]byte("d"), []byte("y"))
	requireCode(t, err, store.RetCNotFound, "no value found")

	// a missing value neither creates nor changes a dictionary
	_, _, err = s.DSet([]byte("d"), []byte("y"), nil)
	requireCode(t, err, store.RetCInvalidArgument, "the value missing")
	found, err := s.DHas([]byte("d"), []byte("y"))
	require.NoError(t, err)
	assert.False(t, found)

	_, _, err = s.DSet([]byte("fresh"), []byte("y"), nil)
	requireCode(t, err, store.RetCInvalidArgument, "the value missing")
	_, err = s.DHas([]byte("fresh"), []byte("y"))
	requireCode(t, err, store.RetCNotFound, "no value found")

	// wrong variant
	_, err = s.Set([]byte("scalar"), num(1))
	require.NoError(t, err)
	_, _, err = s.DSet([]byte("scalar"), []byte("x"), num(1))
	requireCode(t, err, store.RetCInvalidArgument, "the key is not a map")
	_, err = s.DGet([]byte("scalar"), []byte("x"))
	requireCode(t, err, store.RetCInvalidArgument, "not a map")
	_, err = s.DHas([]byte("scalar"), []byte("x"))
	requireCode(t, err, store.RetCInvalidArgument, "not a map")
}

func testDequeSymmetry(t *testing.T, s store.IStore) {
	defer s.Close()

	// push back / pop front is FIFO
	for i := 1; i <= 3; i++ {
		n, ts, err := s.Push([]byte("fifo"), num(float64(i)), false)
		require.NoError(t, err)
		assert.Equal(t, uint64(i), n)
		assert.False(t, ts.IsZero())
	}
	for i := 1; i <= 3; i++ {
		v, ts, err := s.Pop([]byte("fifo"), true)
		require.NoError(t, err)
		assertProtoEqual(t, num(float64(i)), v)
		assert.False(t, ts.IsZero())
	}

	// push front / pop front is LIFO
	for i := 1; i <= 3; i++ {
		_, _, err := s.Push([]byte("lifo"), num(float64(i)), true)
		require.NoError(t, err)
	}
	for i := 3; i >= 1; i-- {
		v, _, err := s.Pop([]byte("lifo"), true)
		require.NoError(t, err)
		assertProtoEqual(t, num(float64(i)), v)
	}

	// mixed ends
	_, _, err := s.Push([]byte("mixed"), str("b"), false)
	require.NoError(t, err)
	_, _, err = s.Push([]byte("mixed"), str("a"), true)
	require.NoError(t, err)
	_, _, err = s.Push([]byte("mixed"), str("c"), false)
	require.NoError(t, err)

	n, err := s.QLen([]byte("mixed"))
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n)

	v, _, err := s.Pop([]byte("mixed"), false)
	require.NoError(t, err)
	assertProtoEqual(t, str("c"), v)
	v, _, err = s.Pop([]byte("mixed"), true)
	require.NoError(t, err)
	assertProtoEqual(t, str("a"), v)
}

func testDequeErrors(t *testing.T, s store.IStore) {
	defer s.Close()

	_, _, err := s.Pop([]byte("missing"), true)
	requireCode(t, err, store.RetCNotFound, "no value found")

	_, err = s.QLen([]byte("missing"))
	requireCode(t, err, store.RetCNotFound, "no queue found")

	// an emptied deque stays in place
	_, _, err = s.Push([]byte("q"), num(1), false)
	require.NoError(t, err)
	_, _, err = s.Pop([]byte("q"), false)
	require.NoError(t, err)

	_, _, err = s.Pop([]byte("q"), false)
	requireCode(t, err, store.RetCNotFound, "the queue is empty")

	n, err := s.QLen([]byte("q"))
	require.NoError(t, err)
	assert.Equal(t, uint64(0), n)

	// missing value
	_, _, err = s.Push([]byte("q"), nil, false)
	requireCode(t, err, store.RetCInvalidArgument, "the value missing")
	_, _, err = s.Push([]byte("fresh"), nil, true)
	requireCode(t, err, store.RetCInvalidArgument, "the value missing")
	_, err = s.QLen([]byte("fresh"))
	requireCode(t, err, store.RetCNotFound, "no queue found")

	// wrong variant
	_, _, err = s.SAdd([]byte("set"), []byte("m"))
	require.NoError(t, err)
	_, _, err = s.Push([]byte("set"), num(1), false)
	requireCode(t, err, store.RetCInvalidArgument, "not a queue")
	_, _, err = s.Pop([]byte("set"), false)
	requireCode(t, err, store.RetCInvalidArgument, "not a queue")
	_, err = s.QLen([]byte("set"))
	requireCode(t, err, store.RetCInvalidArgument, "not a queue")
}

func testSetMembership(t *testing.T, s store.IStore) {
	defer s.Close()

	key := []byte("tags")

	n, ts, err := s.SAdd(key, []byte("go"))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)
	assert.False(t, ts.IsZero())

	// adding twice is idempotent
	n, _, err = s.SAdd(key, []byte("go"))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)

	n, _, err = s.SAdd(key, []byte("rust"))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)

	n, err = s.SLen(key)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)

	n, _, err = s.SDel(key, []byte("go"))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)

	// deleting an absent member is a no-op
	n, _, err = s.SDel(key, []byte("go"))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)

	// the empty set stays in place
	n, _, err = s.SDel(key, []byte("rust"))
	require.NoError(t, err)
	assert.Equal(t, uint64(0), n)
	n, err = s.SLen(key)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), n)
}

func testSetErrors(t *testing.T, s store.IStore) {
	defer s.Close()

	_, _, err := s.SDel([]byte("missing"), []byte("m"))
	requireCode(t, err, store.RetCNotFound, "no val found")

	_, err = s.SLen([]byte("missing"))
	requireCode(t, err, store.RetCNotFound, "no set found")

	_, _, err = s.Push([]byte("q"), num(1), false)
	require.NoError(t, err)
	_, _, err = s.SAdd([]byte("q"), []byte("m"))
	requireCode(t, err, store.RetCInvalidArgument, "not a set")
	_, _, err = s.SDel([]byte("q"), []byte("m"))
	requireCode(t, err, store.RetCInvalidArgument, "not a set")
	_, err = s.SLen([]byte("q"))
	requireCode(t, err, store.RetCInvalidArgument, "not a set")
}

func testDelete(t *testing.T, s store.IStore) {
	defer s.Close()

	// deleting an absent key succeeds
	ts, err := s.Del([]byte("missing"))
	require.NoError(t, err)
	assert.False(t, ts.IsZero())

	_, err = s.Set([]byte("a"), num(1))
	require.NoError(t, err)
	_, _, err = s.SAdd([]byte("b"), []byte("m"))
	require.NoError(t, err)

	_, err = s.Del([]byte("a"))
	require.NoError(t, err)
	_, err = s.Del([]byte("b"))
	require.NoError(t, err)
	_, err = s.Del([]byte("b"))
	require.NoError(t, err)

	_, err = s.Get([]byte("a"))
	requireCode(t, err, store.RetCNotFound, "no value found")
	_, err = s.SLen([]byte("b"))
	requireCode(t, err, store.RetCNotFound, "no set found")

	// a deleted key can hold another variant afterwards
	n, _, err := s.Push([]byte("b"), num(1), false)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)
}

func testTypeMismatchIsolation(t *testing.T, s store.IStore) {
	defer s.Close()

	key := []byte("k")

	_, _, err := s.DSet(key, []byte("a"), num(1))
	require.NoError(t, err)

	// every failing operation leaves the dictionary untouched
	_, err = s.Get(key)
	requireCode(t, err, store.RetCInvalidArgument, "")
	_, _, err = s.Push(key, num(2), false)
	requireCode(t, err, store.RetCInvalidArgument, "")
	_, _, err = s.Pop(key, true)
	requireCode(t, err, store.RetCInvalidArgument, "")
	_, _, err = s.SAdd(key, []byte("m"))
	requireCode(t, err, store.RetCInvalidArgument, "")
	_, _, err = s.SDel(key, []byte("m"))
	requireCode(t, err, store.RetCInvalidArgument, "")
	_, err = s.QLen(key)
	requireCode(t, err, store.RetCInvalidArgument, "")
	_, err = s.SLen(key)
	requireCode(t, err, store.RetCInvalidArgument, "")

	got, err := s.DGet(key, []byte("a"))
	require.NoError(t, err)
	assertProtoEqual(t, num(1), got)

	// the same holds for deques that fail DSet
	_, _, err = s.Push([]byte("q"), num(1), false)
	require.NoError(t, err)
	_, _, err = s.DSet([]byte("q"), []byte("a"), num(1))
	requireCode(t, err, store.RetCInvalidArgument, "the key is not a map")
	n, err := s.QLen([]byte("q"))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)

	// and for scalars that fail container operations
	_, err = s.Set([]byte("s"), str("hello"))
	require.NoError(t, err)
	_, _, err = s.Push([]byte("s"), num(2), true)
	requireCode(t, err, store.RetCInvalidArgument, "")
	_, _, err = s.SAdd([]byte("s"), []byte("m"))
	requireCode(t, err, store.RetCInvalidArgument, "")
	_, _, err = s.DSet([]byte("s"), []byte("a"), num(1))
	requireCode(t, err, store.RetCInvalidArgument, "")
	got, err = s.Get([]byte("s"))
	require.NoError(t, err)
	assertProtoEqual(t, str("hello"), got)
}

func testRangeBounds(t *testing.T, s store.IStore) {
	defer s.Close()

	for _, k := range []string{"a", "b", "c", "d", "e"} {
		_, err := s.Set([]byte(k), num(0))
		require.NoError(t, err)
	}
	// containers are part of the key space too
	_, _, err := s.SAdd([]byte("cc"), []byte("m"))
	require.NoError(t, err)

	tests := []struct {
		name     string
		lower    db.Bound
		upper    db.Bound
		expected []string
	}{
		{"Included/Included", db.Included([]byte("b")), db.Included([]byte("d")), []string{"b", "c", "cc", "d"}},
		{"Included/Excluded", db.Included([]byte("b")), db.Excluded([]byte("d")), []string{"b", "c", "cc"}},
		{"Excluded/Included", db.Excluded([]byte("b")), db.Included([]byte("d")), []string{"c", "cc", "d"}},
		{"Excluded/Excluded", db.Excluded([]byte("c")), db.Excluded([]byte("e")), []string{"cc", "d"}},
		{"Equal bounds", db.Included([]byte("c")), db.Included([]byte("c")), []string{"c"}},
		{"Equal bounds excluded", db.Included([]byte("c")), db.Excluded([]byte("c")), nil},
		{"No match", db.Included([]byte("x")), db.Included([]byte("z")), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keys, err := collectKeys(t, s, tt.lower, tt.upper)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, keys)
		})
	}
}

func testRangeValidation(t *testing.T, s store.IStore) {
	defer s.Close()

	_, err := s.Set([]byte("a"), num(0))
	require.NoError(t, err)

	tests := []struct {
		name  string
		lower db.Bound
		upper db.Bound
		msg   string
	}{
		{"Unbounded lower", db.Unbounded(), db.Included([]byte("z")), "invalid bound"},
		{"Unbounded upper", db.Included([]byte("a")), db.Unbounded(), "invalid bound"},
		{"Both unbounded", db.Unbounded(), db.Unbounded(), "invalid bound"},
		{"Unknown lower kind", db.Bound{Kind: 7, Key: []byte("a")}, db.Included([]byte("z")), "invalid bound"},
		{"Unknown upper kind", db.Included([]byte("a")), db.Bound{Kind: 7, Key: []byte("n")}, "invalid bound"},
		{"Lower greater than upper", db.Included([]byte("b")), db.Included([]byte("a")), "lower > upper"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keys, err := collectKeys(t, s, tt.lower, tt.upper)
			requireCode(t, err, store.RetCInvalidArgument, tt.msg)
			assert.Empty(t, keys)
		})
	}
}

func testRangeTruncation(t *testing.T, s store.IStore) {
	defer s.Close()

	// 15 keys within [00, 20)
	var expected []string
	for i := 0; i < 15; i++ {
		key := fmt.Sprintf("%02d", i)
		_, err := s.Set([]byte(key), num(float64(i)))
		require.NoError(t, err)
		if i < 10 {
			expected = append(expected, key)
		}
	}

	keys, err := collectKeys(t, s, db.Included([]byte("00")), db.Excluded([]byte("20")))
	require.NoError(t, err)
	assert.Equal(t, expected, keys)

	// abandoning a stream early does not affect the store
	stream, err := s.Range(db.Included([]byte("00")), db.Excluded([]byte("20")))
	require.NoError(t, err)
	first, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, "00", string(first))
	stream.Close()

	got, err := s.Get([]byte("14"))
	require.NoError(t, err)
	assertProtoEqual(t, num(14), got)
}

func testInfo(t *testing.T, s store.IStore) {
	defer s.Close()

	_, err := s.Set([]byte("s"), num(1))
	require.NoError(t, err)
	_, _, err = s.DSet([]byte("d"), []byte("x"), num(1))
	require.NoError(t, err)
	_, _, err = s.Push([]byte("q"), num(1), false)
	require.NoError(t, err)
	_, _, err = s.SAdd([]byte("m"), []byte("x"))
	require.NoError(t, err)

	info, err := s.GetDBInfo()
	require.NoError(t, err)
	assert.Equal(t, 4, info.Keys)
	assert.Equal(t, map[string]int{"scalar": 1, "dictionary": 1, "deque": 1, "set": 1}, info.Kinds)
}

func testConcurrentSAdd(t *testing.T, s store.IStore) {
	defer s.Close()

	workers := 8
	perWorker := 50

	total := uint64(workers / 2 * perWorker)

	var wg sync.WaitGroup
	errs := make(chan error, workers*perWorker)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				// every member is added by two workers
				member := fmt.Sprintf("m-%d", (w/2)*perWorker+i)
				if _, _, err := s.SAdd([]byte("shared"), []byte(member)); err != nil {
					errs <- err
				}
			}
		}(w)
	}

	// a concurrent reader only ever sees the set grow
	stop := make(chan struct{})
	readerDone := make(chan error, 1)
	go func() {
		var last uint64
		for {
			select {
			case <-stop:
				readerDone <- nil
				return
			default:
			}
			n, err := s.SLen([]byte("shared"))
			if store.IsNotFound(err) {
				if last > 0 {
					readerDone <- fmt.Errorf("set vanished after reaching size %d", last)
					return
				}
				continue
			}
			if err != nil {
				readerDone <- err
				return
			}
			if n < last || n > total {
				readerDone <- fmt.Errorf("set size went from %d to %d", last, n)
				return
			}
			last = n
		}
	}()

	wg.Wait()
	close(stop)
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	require.NoError(t, <-readerDone)

	n, err := s.SLen([]byte("shared"))
	require.NoError(t, err)
	assert.Equal(t, total, n)
}
