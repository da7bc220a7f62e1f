package store

import (
	"errors"
	"fmt"
	"github.com/ValentinKolb/memDB/lib/db"
	"google.golang.org/protobuf/types/known/structpb"
	"time"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// DBFactory is a function type that creates a new db used by the store.
// This is used to abstract the creation of the db from the store implementation.
type DBFactory func() db.KVDB

// IStore is the generic interface for interacting with a multi-type key–value store.
// Every key holds exactly one of the variants scalar, dictionary, set or deque.
// Failed operations return a *Error and never change the stored data.
// Write operations return the wall-clock time at which the mutation was applied.
type IStore interface {

	// --------------------------------------------------------------------------
	// Scalar Operations
	// --------------------------------------------------------------------------

	// Set stores v as a scalar under key, replacing whatever the key held before.
	// A nil v or a structpb.Value without a kind counts as a missing value and
	// fails with an invalid argument error. The same applies to DSet and Push.
	Set(key []byte, v *structpb.Value) (ts time.Time, err error)
	// Get returns the scalar stored under key.
	Get(key []byte) (v *structpb.Value, err error)

	// --------------------------------------------------------------------------
	// Dictionary Operations
	// --------------------------------------------------------------------------

	// DSet stores v under the sub-key dkey of the dictionary at key.
	// A missing dictionary is created. Returns the size of the dictionary.
	DSet(key, dkey []byte, v *structpb.Value) (size uint64, ts time.Time, err error)
	// DGet returns the value stored under the sub-key dkey of the dictionary at key.
	DGet(key, dkey []byte) (v *structpb.Value, err error)
	// DHas returns whether the dictionary at key contains dkey.
	DHas(key, dkey []byte) (found bool, err error)

	// --------------------------------------------------------------------------
	// Deque Operations
	// --------------------------------------------------------------------------

	// Push adds v at the front or back of the deque at key.
	// A missing deque is created. Returns the new length of the deque.
	Push(key []byte, v *structpb.Value, front bool) (length uint64, ts time.Time, err error)
	// Pop removes and returns the value at the front or back of the deque at key.
	// The deque stays in place when it becomes empty.
	Pop(key []byte, front bool) (v *structpb.Value, ts time.Time, err error)
	// QLen returns the length of the deque at key.
	QLen(key []byte) (length uint64, err error)

	// --------------------------------------------------------------------------
	// Set Operations
	// --------------------------------------------------------------------------

	// SAdd adds member to the set at key. A missing set is created.
	// Adding an existing member is a no-op. Returns the size of the set.
	SAdd(key, member []byte) (size uint64, ts time.Time, err error)
	// SDel removes member from the set at key. Returns the size of the set.
	SDel(key, member []byte) (size uint64, ts time.Time, err error)
	// SLen returns the size of the set at key.
	SLen(key []byte) (size uint64, err error)

	// --------------------------------------------------------------------------
	// Key Space Operations
	// --------------------------------------------------------------------------

	// Del removes key regardless of its variant. Deleting a missing key succeeds.
	Del(key []byte) (ts time.Time, err error)
	// Range streams the keys within lower and upper in ascending order.
	// Both bounds must be set and lower must not be greater than upper.
	// Validation errors may be reported by Range itself or as the first item of the stream.
	Range(lower, upper db.Bound) (stream KeyStream, err error)
	// GetDBInfo returns metadata about the database underlying the store.
	// It is not guaranteed that all fields are filled in or that the information is up-to-date!
	GetDBInfo() (info db.DatabaseInfo, err error)

	// Close releases the store. Calls after Close fail with RetCInternalError.
	Close() error
}

// KeyStream is a pull-based sequence of keys produced by IStore.Range
type KeyStream interface {
	// Recv returns the next key. It returns io.EOF after the last key.
	// Any other error ends the stream.
	Recv() (key []byte, err error)
	// Close abandons the stream. It is safe to call Close more than once.
	Close()
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

// NewError creates a new store Error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// NotFound creates a RetCNotFound error
func NotFound(msg string) *Error {
	return NewError(RetCNotFound, msg)
}

// InvalidArgument creates a RetCInvalidArgument error
func InvalidArgument(msg string) *Error {
	return NewError(RetCInvalidArgument, msg)
}

// Internal creates a RetCInternalError error
func Internal(msg string) *Error {
	return NewError(RetCInternalError, msg)
}

// CodeOf returns the return code carried by err.
// A nil error maps to RetCSuccess, errors that are no *Error map to RetCInternalError.
func CodeOf(err error) RetCode {
	if err == nil {
		return RetCSuccess
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return RetCInternalError
}

// IsNotFound reports whether err carries RetCNotFound
func IsNotFound(err error) bool {
	return err != nil && CodeOf(err) == RetCNotFound
}

// IsInvalidArgument reports whether err carries RetCInvalidArgument
func IsInvalidArgument(err error) bool {
	return err != nil && CodeOf(err) == RetCInvalidArgument
}

// IsInternal reports whether err carries RetCInternalError
func IsInternal(err error) bool {
	return err != nil && CodeOf(err) == RetCInternalError
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

// RetCode is the outcome category of a store operation
type RetCode uint64

const (
	RetCSuccess              RetCode = iota // 0: Command executed successfully.
	RetCInternalError                       // 1: Command failed due to an internal error.
	RetCUnsupportedOperation                // 2: Operation is not supported by underlying database.
	RetCInvalidArgument                     // 3: The request was malformed or targets a key of another variant.
	RetCNotFound                            // 4: The key, sub-key or member does not exist.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "Internal"
	case RetCUnsupportedOperation:
		return "UnsupportedOperation"
	case RetCInvalidArgument:
		return "InvalidArgument"
	case RetCNotFound:
		return "NotFound"
	default:
		return fmt.Sprintf("Unknown(%d)", uint64(c))
	}
}
