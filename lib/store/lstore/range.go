package lstore

import (
	"github.com/ValentinKolb/memDB/lib/store/lstore/internal"
	"io"
	"sync"
)

// startRangeStream hands the keys (or a single validation error) to a detached
// goroutine that pushes them one at a time into a channel of capacity 1.
// The returned cancel function abandons the stream.
func (s *storeImpl) startRangeStream(keys [][]byte, err error) (<-chan internal.StreamItem, func()) {
	out := make(chan internal.StreamItem, 1)
	stop := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() { close(stop) })
	}

	items := make([]internal.StreamItem, 0, len(keys)+1)
	if err != nil {
		items = append(items, internal.StreamItem{Err: err})
	}
	for _, k := range keys {
		items = append(items, internal.StreamItem{Key: k})
	}

	s.metrics.rangeOpened()
	go func() {
		defer s.metrics.rangeClosed()
		defer close(out)

		for i, item := range items {
			select {
			case out <- item:
			case <-stop:
				Logger.Debugf("range stream abandoned by consumer, dropped %d of %d items", len(items)-i, len(items))
				return
			}
		}
	}()

	return out, cancel
}

// keyStream is the consumer side of a range stream, it implements store.KeyStream
type keyStream struct {
	items  <-chan internal.StreamItem
	cancel func()
	done   bool
}

func (ks *keyStream) Recv() ([]byte, error) {
	if ks.done {
		return nil, io.EOF
	}
	item, ok := <-ks.items
	if !ok {
		ks.done = true
		return nil, io.EOF
	}
	if item.Err != nil {
		ks.done = true
		ks.cancel()
		return nil, item.Err
	}
	return item.Key, nil
}

func (ks *keyStream) Close() {
	ks.done = true
	ks.cancel()
}
