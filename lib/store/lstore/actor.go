package lstore

import (
	"bytes"
	"github.com/ValentinKolb/memDB/lib/db"
	"github.com/ValentinKolb/memDB/lib/store"
	"github.com/ValentinKolb/memDB/lib/store/lstore/internal"
	"github.com/ValentinKolb/memDB/lib/value"
	"time"
)

// handlerFunc executes a single command against the engine and returns its result
type handlerFunc func(s *storeImpl, cmd *internal.Command) internal.Result

// handlers maps every command type to its implementation.
// All handlers run on the actor goroutine and check their preconditions before mutating.
var handlers = map[internal.CommandType]handlerFunc{
	internal.CommandTSet:   (*storeImpl).handleSet,
	internal.CommandTGet:   (*storeImpl).handleGet,
	internal.CommandTDSet:  (*storeImpl).handleDSet,
	internal.CommandTDGet:  (*storeImpl).handleDGet,
	internal.CommandTDHas:  (*storeImpl).handleDHas,
	internal.CommandTPush:  (*storeImpl).handlePush,
	internal.CommandTPop:   (*storeImpl).handlePop,
	internal.CommandTQLen:  (*storeImpl).handleQLen,
	internal.CommandTSAdd:  (*storeImpl).handleSAdd,
	internal.CommandTSDel:  (*storeImpl).handleSDel,
	internal.CommandTSLen:  (*storeImpl).handleSLen,
	internal.CommandTDel:   (*storeImpl).handleDel,
	internal.CommandTRange: (*storeImpl).handleRange,
	internal.CommandTInfo:  (*storeImpl).handleInfo,
}

// run is the actor loop. It owns s.db exclusively and processes one command at a time
// until the store is closed.
func (s *storeImpl) run() {
	defer close(s.done)
	defer func() {
		if err := s.db.Close(); err != nil {
			Logger.Warningf("failed to close database: %v", err)
		}
	}()

	for {
		select {
		case cmd := <-s.mailbox:
			s.execute(cmd)
		case <-s.quit:
			Logger.Debugf("store %s stopped", s.name)
			return
		}
	}
}

// execute runs a single command and delivers its result
func (s *storeImpl) execute(cmd *internal.Command) {
	start := time.Now()

	handler, ok := handlers[cmd.Type]
	var result internal.Result
	if ok {
		result = handler(s, cmd)
	} else {
		result = internal.Result{Err: store.NewError(store.RetCUnsupportedOperation, "unknown command "+cmd.Type.String())}
	}

	s.metrics.observe(cmd.Type, result.Err, start)

	if !cmd.WithResult(result) {
		// the reply channel has capacity 1 and is private, so this only happens if it was reused
		Logger.Debugf("dropped reply for %s command", cmd.Type)
		if result.Cancel != nil {
			result.Cancel()
		}
	}
}

// --------------------------------------------------------------------------
// Scalar Handlers
// --------------------------------------------------------------------------

func (s *storeImpl) handleSet(cmd *internal.Command) internal.Result {
	if !value.Present(cmd.Value) {
		return internal.Result{Err: store.InvalidArgument("no value specified")}
	}
	s.db.Put(cmd.Key, value.NewScalar(cmd.Value))
	return internal.Result{Time: time.Now()}
}

func (s *storeImpl) handleGet(cmd *internal.Command) internal.Result {
	v, ok := s.db.Get(cmd.Key)
	if !ok {
		return internal.Result{Err: store.NotFound("no value found")}
	}
	payload, ok := value.AsScalar(v)
	if !ok {
		return internal.Result{Err: store.InvalidArgument("invalid type")}
	}
	return internal.Result{Value: value.Clone(payload)}
}

// --------------------------------------------------------------------------
// Dictionary Handlers
// --------------------------------------------------------------------------

func (s *storeImpl) handleDSet(cmd *internal.Command) internal.Result {
	var dict value.Dictionary
	if v, ok := s.db.Get(cmd.Key); ok {
		if dict, ok = value.AsDictionary(v); !ok {
			return internal.Result{Err: store.InvalidArgument("the key is not a map")}
		}
	}
	if !value.Present(cmd.Value) {
		return internal.Result{Err: store.InvalidArgument("the value missing")}
	}
	if dict == nil {
		dict = value.NewDictionary()
		s.db.Put(cmd.Key, dict)
	}
	dict[string(cmd.DKey)] = cmd.Value
	return internal.Result{Count: uint64(len(dict)), Time: time.Now()}
}

func (s *storeImpl) handleDGet(cmd *internal.Command) internal.Result {
	dict, err := s.dictionary(cmd.Key)
	if err != nil {
		return internal.Result{Err: err}
	}
	payload, ok := dict[string(cmd.DKey)]
	if !ok {
		return internal.Result{Err: store.NotFound("no value found")}
	}
	return internal.Result{Value: value.Clone(payload)}
}

func (s *storeImpl) handleDHas(cmd *internal.Command) internal.Result {
	dict, err := s.dictionary(cmd.Key)
	if err != nil {
		return internal.Result{Err: err}
	}
	_, found := dict[string(cmd.DKey)]
	return internal.Result{Found: found}
}

// dictionary returns the existing dictionary stored under key
func (s *storeImpl) dictionary(key []byte) (value.Dictionary, error) {
	v, ok := s.db.Get(key)
	if !ok {
		return nil, store.NotFound("no value found")
	}
	dict, ok := value.AsDictionary(v)
	if !ok {
		return nil, store.InvalidArgument("not a map")
	}
	return dict, nil
}

// --------------------------------------------------------------------------
// Deque Handlers
// --------------------------------------------------------------------------

func (s *storeImpl) handlePush(cmd *internal.Command) internal.Result {
	var dq *value.Deque
	if v, ok := s.db.Get(cmd.Key); ok {
		if dq, ok = value.AsDeque(v); !ok {
			return internal.Result{Err: store.InvalidArgument("not a queue")}
		}
	}
	if !value.Present(cmd.Value) {
		return internal.Result{Err: store.InvalidArgument("the value missing")}
	}
	if dq == nil {
		dq = value.NewDeque()
		s.db.Put(cmd.Key, dq)
	}
	n := dq.Push(cmd.Value, cmd.Front)
	return internal.Result{Count: uint64(n), Time: time.Now()}
}

func (s *storeImpl) handlePop(cmd *internal.Command) internal.Result {
	dq, err := s.deque(cmd.Key, "no value found")
	if err != nil {
		return internal.Result{Err: err}
	}
	// an emptied deque stays in place
	payload, ok := dq.Pop(cmd.Front)
	if !ok {
		return internal.Result{Err: store.NotFound("the queue is empty")}
	}
	return internal.Result{Value: payload, Time: time.Now()}
}

func (s *storeImpl) handleQLen(cmd *internal.Command) internal.Result {
	dq, err := s.deque(cmd.Key, "no queue found")
	if err != nil {
		return internal.Result{Err: err}
	}
	return internal.Result{Count: uint64(dq.Len())}
}

// deque returns the existing deque stored under key
func (s *storeImpl) deque(key []byte, notFound string) (*value.Deque, error) {
	v, ok := s.db.Get(key)
	if !ok {
		return nil, store.NotFound(notFound)
	}
	dq, ok := value.AsDeque(v)
	if !ok {
		return nil, store.InvalidArgument("not a queue")
	}
	return dq, nil
}

// --------------------------------------------------------------------------
// Set Handlers
// --------------------------------------------------------------------------

func (s *storeImpl) handleSAdd(cmd *internal.Command) internal.Result {
	var set value.Set
	if v, ok := s.db.Get(cmd.Key); ok {
		if set, ok = value.AsSet(v); !ok {
			return internal.Result{Err: store.InvalidArgument("not a set")}
		}
	} else {
		set = value.NewSet()
		s.db.Put(cmd.Key, set)
	}
	set[string(cmd.DKey)] = struct{}{}
	return internal.Result{Count: uint64(len(set)), Time: time.Now()}
}

func (s *storeImpl) handleSDel(cmd *internal.Command) internal.Result {
	set, err := s.set(cmd.Key, "no val found")
	if err != nil {
		return internal.Result{Err: err}
	}
	delete(set, string(cmd.DKey))
	return internal.Result{Count: uint64(len(set)), Time: time.Now()}
}

func (s *storeImpl) handleSLen(cmd *internal.Command) internal.Result {
	set, err := s.set(cmd.Key, "no set found")
	if err != nil {
		return internal.Result{Err: err}
	}
	return internal.Result{Count: uint64(len(set))}
}

// set returns the existing set stored under key
func (s *storeImpl) set(key []byte, notFound string) (value.Set, error) {
	v, ok := s.db.Get(key)
	if !ok {
		return nil, store.NotFound(notFound)
	}
	set, ok := value.AsSet(v)
	if !ok {
		return nil, store.InvalidArgument("not a set")
	}
	return set, nil
}

// --------------------------------------------------------------------------
// Key Space Handlers
// --------------------------------------------------------------------------

func (s *storeImpl) handleDel(cmd *internal.Command) internal.Result {
	s.db.Delete(cmd.Key)
	return internal.Result{Time: time.Now()}
}

func (s *storeImpl) handleRange(cmd *internal.Command) internal.Result {
	var keys [][]byte
	err := validateBounds(cmd.Lower, cmd.Upper)
	if err == nil {
		keys = make([][]byte, 0, s.maxRange)
		s.db.Ascend(cmd.Lower, cmd.Upper, func(key []byte, _ value.Value) bool {
			if len(keys) >= s.maxRange {
				return false
			}
			keys = append(keys, bytes.Clone(key))
			return true
		})
	}

	// validation errors travel inside the stream
	stream, cancel := s.startRangeStream(keys, err)
	return internal.Result{Stream: stream, Cancel: cancel}
}

func (s *storeImpl) handleInfo(_ *internal.Command) internal.Result {
	return internal.Result{Info: s.db.GetInfo()}
}

// validateBounds checks that both bounds are included or excluded and lower is not greater than upper
func validateBounds(lower, upper db.Bound) error {
	if !lower.Kind.Bounded() || !upper.Kind.Bounded() {
		return store.InvalidArgument("invalid bound")
	}
	if bytes.Compare(lower.Key, upper.Key) > 0 {
		return store.InvalidArgument("lower > upper")
	}
	return nil
}
