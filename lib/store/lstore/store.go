package lstore

import (
	"bytes"
	"github.com/ValentinKolb/memDB/lib/db"
	"github.com/ValentinKolb/memDB/lib/store"
	"github.com/ValentinKolb/memDB/lib/store/lstore/internal"
	"github.com/ValentinKolb/memDB/lib/value"
	"github.com/lni/dragonboat/v4/logger"
	"google.golang.org/protobuf/types/known/structpb"
	"io"
	"sync"
	"time"
)

var Logger = logger.GetLogger("lstore")

// DefaultMaxRange is the maximum number of keys returned by a single range scan
const DefaultMaxRange = 10

// Config holds the configuration of a local store
type Config struct {
	// Name identifies the store in logs and metrics (e.g. the shard id)
	Name string
	// MaxRange is the maximum number of keys returned by Range. Fixed for the lifetime of the store.
	MaxRange int
}

type storeImpl struct {
	name     string
	maxRange int

	// db is owned by the actor goroutine, no other goroutine may touch it
	db db.KVDB

	mailbox chan *internal.Command
	quit    chan struct{}
	done    chan struct{}
	once    sync.Once
	metrics *storeMetrics
}

// NewLocalStore creates a new local store instance and starts its actor.
// This store implementation is not distributed and only works on a single node.
// A nil config selects the defaults.
func NewLocalStore(factory store.DBFactory, config *Config) store.IStore {
	s := newLocalStore(factory, config)
	go s.run()
	return s
}

func newLocalStore(factory store.DBFactory, config *Config) *storeImpl {
	s := &storeImpl{
		name:     "default",
		maxRange: DefaultMaxRange,
		db:       factory(),
		mailbox:  make(chan *internal.Command, 1),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	if config != nil {
		if config.Name != "" {
			s.name = config.Name
		}
		if config.MaxRange > 0 {
			s.maxRange = config.MaxRange
		}
	}

	// the gauge is read from the metrics endpoint, so it asks the actor instead of the engine
	s.metrics = newStoreMetrics(s.name, func() float64 {
		info, err := s.GetDBInfo()
		if err != nil {
			return 0
		}
		return float64(info.Keys)
	})
	return s
}

// WritePrometheus writes the metrics of the store in Prometheus text format to w.
// It is available on stores created by NewLocalStore via a type assertion.
func (s *storeImpl) WritePrometheus(w io.Writer) {
	s.metrics.WritePrometheus(w)
}

// call sends cmd to the actor and waits for the result
func (s *storeImpl) call(cmd *internal.Command) internal.Result {
	select {
	case s.mailbox <- cmd:
	case <-s.done:
		return internal.Result{Err: store.Internal("unable to send: actor stopped")}
	case <-s.quit:
		return internal.Result{Err: store.Internal("unable to send: actor stopped")}
	}

	select {
	case r := <-cmd.Reply:
		return r
	case <-s.done:
		// the actor may have answered right before it stopped
		select {
		case r := <-cmd.Reply:
			return r
		default:
			return internal.Result{Err: store.Internal("no response got")}
		}
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Set(key []byte, v *structpb.Value) (time.Time, error) {
	cmd := internal.NewCommand(internal.CommandTSet)
	cmd.Key = bytes.Clone(key)
	cmd.Value = value.Clone(v)
	r := s.call(cmd)
	return r.Time, r.Err
}

func (s *storeImpl) Get(key []byte) (*structpb.Value, error) {
	cmd := internal.NewCommand(internal.CommandTGet)
	cmd.Key = key
	r := s.call(cmd)
	return r.Value, r.Err
}

func (s *storeImpl) DSet(key, dkey []byte, v *structpb.Value) (uint64, time.Time, error) {
	cmd := internal.NewCommand(internal.CommandTDSet)
	cmd.Key = bytes.Clone(key)
	cmd.DKey = dkey
	cmd.Value = value.Clone(v)
	r := s.call(cmd)
	return r.Count, r.Time, r.Err
}

func (s *storeImpl) DGet(key, dkey []byte) (*structpb.Value, error) {
	cmd := internal.NewCommand(internal.CommandTDGet)
	cmd.Key = key
	cmd.DKey = dkey
	r := s.call(cmd)
	return r.Value, r.Err
}

func (s *storeImpl) DHas(key, dkey []byte) (bool, error) {
	cmd := internal.NewCommand(internal.CommandTDHas)
	cmd.Key = key
	cmd.DKey = dkey
	r := s.call(cmd)
	return r.Found, r.Err
}

func (s *storeImpl) Push(key []byte, v *structpb.Value, front bool) (uint64, time.Time, error) {
	cmd := internal.NewCommand(internal.CommandTPush)
	cmd.Key = bytes.Clone(key)
	cmd.Value = value.Clone(v)
	cmd.Front = front
	r := s.call(cmd)
	return r.Count, r.Time, r.Err
}

func (s *storeImpl) Pop(key []byte, front bool) (*structpb.Value, time.Time, error) {
	cmd := internal.NewCommand(internal.CommandTPop)
	cmd.Key = key
	cmd.Front = front
	r := s.call(cmd)
	return r.Value, r.Time, r.Err
}

func (s *storeImpl) QLen(key []byte) (uint64, error) {
	cmd := internal.NewCommand(internal.CommandTQLen)
	cmd.Key = key
	r := s.call(cmd)
	return r.Count, r.Err
}

func (s *storeImpl) SAdd(key, member []byte) (uint64, time.Time, error) {
	cmd := internal.NewCommand(internal.CommandTSAdd)
	cmd.Key = bytes.Clone(key)
	cmd.DKey = member
	r := s.call(cmd)
	return r.Count, r.Time, r.Err
}

func (s *storeImpl) SDel(key, member []byte) (uint64, time.Time, error) {
	cmd := internal.NewCommand(internal.CommandTSDel)
	cmd.Key = key
	cmd.DKey = member
	r := s.call(cmd)
	return r.Count, r.Time, r.Err
}

func (s *storeImpl) SLen(key []byte) (uint64, error) {
	cmd := internal.NewCommand(internal.CommandTSLen)
	cmd.Key = key
	r := s.call(cmd)
	return r.Count, r.Err
}

func (s *storeImpl) Del(key []byte) (time.Time, error) {
	cmd := internal.NewCommand(internal.CommandTDel)
	cmd.Key = key
	r := s.call(cmd)
	return r.Time, r.Err
}

func (s *storeImpl) Range(lower, upper db.Bound) (store.KeyStream, error) {
	cmd := internal.NewCommand(internal.CommandTRange)
	cmd.Lower = lower
	cmd.Upper = upper
	r := s.call(cmd)
	if r.Err != nil {
		return nil, r.Err
	}
	return &keyStream{items: r.Stream, cancel: r.Cancel}, nil
}

func (s *storeImpl) GetDBInfo() (db.DatabaseInfo, error) {
	cmd := internal.NewCommand(internal.CommandTInfo)
	r := s.call(cmd)
	return r.Info, r.Err
}

func (s *storeImpl) Close() error {
	s.once.Do(func() {
		close(s.quit)
	})
	<-s.done
	return nil
}
