package lstore

import (
	"bytes"
	"fmt"
	"github.com/ValentinKolb/memDB/lib/db"
	"github.com/ValentinKolb/memDB/lib/db/engines/btree"
	"github.com/ValentinKolb/memDB/lib/store"
	storetesting "github.com/ValentinKolb/memDB/lib/store/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
	"io"
	"sync"
	"testing"
	"time"
)

func btreeFactory() db.KVDB {
	return btree.NewBTreeDB(nil)
}

func TestLocalStore(t *testing.T) {
	storetesting.RunIStoreTests(t, "LocalStore", func() store.IStore {
		return NewLocalStore(btreeFactory, nil)
	})
}

func TestLocalStoreSmallDegree(t *testing.T) {
	storetesting.RunIStoreTests(t, "LocalStoreDegree2", func() store.IStore {
		return NewLocalStore(func() db.KVDB { return btree.NewBTreeDB(&btree.Config{Degree: 2}) }, &Config{Name: "small"})
	})
}

func TestClosedStore(t *testing.T) {
	s := NewLocalStore(btreeFactory, nil)
	require.NoError(t, s.Close())

	// closing twice is fine
	require.NoError(t, s.Close())

	_, err := s.Set([]byte("k"), structpb.NewNumberValue(1))
	require.Error(t, err)
	assert.True(t, store.IsInternal(err))

	_, err = s.Get([]byte("k"))
	assert.True(t, store.IsInternal(err))

	_, err = s.Range(db.Included([]byte("a")), db.Included([]byte("b")))
	assert.True(t, store.IsInternal(err))
}

func TestMaxRangeConfig(t *testing.T) {
	s := NewLocalStore(btreeFactory, &Config{MaxRange: 3})
	defer s.Close()

	for i := 0; i < 10; i++ {
		_, err := s.Set([]byte(fmt.Sprintf("k%d", i)), structpb.NewNumberValue(float64(i)))
		require.NoError(t, err)
	}

	stream, err := s.Range(db.Included([]byte("k0")), db.Included([]byte("k9")))
	require.NoError(t, err)
	defer stream.Close()

	var keys []string
	for {
		key, err := stream.Recv()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		keys = append(keys, string(key))
	}
	assert.Equal(t, []string{"k0", "k1", "k2"}, keys)
}

func TestRangeErrorEndsStream(t *testing.T) {
	s := NewLocalStore(btreeFactory, nil)
	defer s.Close()

	stream, err := s.Range(db.Unbounded(), db.Included([]byte("z")))
	require.NoError(t, err, "validation errors are delivered inside the stream")

	_, err = stream.Recv()
	assert.True(t, store.IsInvalidArgument(err))

	_, err = stream.Recv()
	assert.Equal(t, io.EOF, err)
}

func TestRangeRejectsUnknownBoundKind(t *testing.T) {
	s := NewLocalStore(btreeFactory, nil)
	defer s.Close()

	for _, key := range []string{"a", "m", "z"} {
		_, err := s.Set([]byte(key), structpb.NewStringValue(key))
		require.NoError(t, err)
	}

	stream, err := s.Range(db.Included([]byte("m")), db.Bound{Kind: 7, Key: []byte("n")})
	require.NoError(t, err)

	key, err := stream.Recv()
	assert.Nil(t, key)
	assert.True(t, store.IsInvalidArgument(err), "got %v", err)

	_, err = stream.Recv()
	assert.Equal(t, io.EOF, err)
}

func TestUnconsumedStreamDoesNotBlockActor(t *testing.T) {
	s := NewLocalStore(btreeFactory, &Config{MaxRange: 100})
	defer s.Close()

	for i := 0; i < 100; i++ {
		_, err := s.Set([]byte(fmt.Sprintf("%03d", i)), structpb.NewNumberValue(float64(i)))
		require.NoError(t, err)
	}

	// open streams and never read them
	var streams []store.KeyStream
	for i := 0; i < 5; i++ {
		stream, err := s.Range(db.Included([]byte("000")), db.Included([]byte("999")))
		require.NoError(t, err)
		streams = append(streams, stream)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.Set([]byte("after"), structpb.NewBoolValue(true))
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("actor blocked by unconsumed range streams")
	}

	for _, stream := range streams {
		stream.Close()
	}

	// streamers exit after Close
	impl := s.(*storeImpl)
	assert.Eventually(t, func() bool {
		return impl.metrics.activeRanges.Load() == 0
	}, 5*time.Second, 10*time.Millisecond)
}

func TestInputIsCopied(t *testing.T) {
	s := NewLocalStore(btreeFactory, nil)
	defer s.Close()

	key := []byte("key")
	v := structpb.NewStringValue("original")

	_, err := s.Set(key, v)
	require.NoError(t, err)

	// mutate the caller's buffers after the call
	key[0] = 'x'
	v.Kind = &structpb.Value_StringValue{StringValue: "changed"}

	got, err := s.Get([]byte("key"))
	require.NoError(t, err)
	assert.Equal(t, "original", got.GetStringValue())

	// mutating a returned value does not change the store
	got.Kind = &structpb.Value_StringValue{StringValue: "changed"}
	again, err := s.Get([]byte("key"))
	require.NoError(t, err)
	assert.Equal(t, "original", again.GetStringValue())
}

func TestKindlessValueIsMissing(t *testing.T) {
	s := NewLocalStore(btreeFactory, nil)
	defer s.Close()

	_, err := s.Set([]byte("k"), &structpb.Value{})
	assert.True(t, store.IsInvalidArgument(err))

	_, _, err = s.Push([]byte("q"), &structpb.Value{}, false)
	assert.True(t, store.IsInvalidArgument(err))
}

func TestConcurrentMixedOperations(t *testing.T) {
	s := NewLocalStore(btreeFactory, nil)
	defer s.Close()

	workers := 8
	pushes := 100

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			key := []byte(fmt.Sprintf("worker-%d", w))
			for i := 0; i < pushes; i++ {
				_, _, err := s.Push([]byte("shared-queue"), structpb.NewNumberValue(float64(i)), i%2 == 0)
				assert.NoError(t, err)
				_, err = s.Set(key, structpb.NewNumberValue(float64(i)))
				assert.NoError(t, err)
			}
		}(w)
	}
	wg.Wait()

	n, err := s.QLen([]byte("shared-queue"))
	require.NoError(t, err)
	assert.Equal(t, uint64(workers*pushes), n)

	for w := 0; w < workers; w++ {
		v, err := s.Get([]byte(fmt.Sprintf("worker-%d", w)))
		require.NoError(t, err)
		assert.True(t, proto.Equal(structpb.NewNumberValue(float64(pushes-1)), v))
	}
}

func TestMetrics(t *testing.T) {
	s := NewLocalStore(btreeFactory, &Config{Name: "metrics-test"})
	defer s.Close()

	_, err := s.Set([]byte("k"), structpb.NewNumberValue(1))
	require.NoError(t, err)
	_, err = s.Get([]byte("missing"))
	require.Error(t, err)

	var buf bytes.Buffer
	s.(*storeImpl).WritePrometheus(&buf)
	out := buf.String()

	assert.Contains(t, out, `memdb_commands_total{store="metrics-test",cmd="Set",status="ok"} 1`)
	assert.Contains(t, out, `memdb_commands_total{store="metrics-test",cmd="Get",status="error"} 1`)
	assert.Contains(t, out, `memdb_keys{store="metrics-test"} 1`)
	assert.Contains(t, out, `memdb_writes_total{store="metrics-test"} 1`)
}
