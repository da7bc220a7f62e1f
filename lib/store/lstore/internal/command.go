package internal

import (
	"fmt"
	"github.com/ValentinKolb/memDB/lib/db"
	"google.golang.org/protobuf/types/known/structpb"
	"time"
)

// CommandType defines the possible operations of the store actor.
type CommandType uint8

const (
	CommandTSet   CommandType = iota // Store a scalar.
	CommandTGet                      // Read a scalar.
	CommandTDSet                     // Insert or overwrite a dictionary entry.
	CommandTDGet                     // Read a dictionary entry.
	CommandTDHas                     // Test a dictionary entry.
	CommandTPush                     // Push onto a deque.
	CommandTPop                      // Pop from a deque.
	CommandTQLen                     // Length of a deque.
	CommandTSAdd                     // Add a set member.
	CommandTSDel                     // Remove a set member.
	CommandTSLen                     // Size of a set.
	CommandTDel                      // Delete a key.
	CommandTRange                    // Scan a key range.
	CommandTInfo                     // Engine statistics.
)

func (ct CommandType) String() string {
	switch ct {
	case CommandTSet:
		return "Set"
	case CommandTGet:
		return "Get"
	case CommandTDSet:
		return "DSet"
	case CommandTDGet:
		return "DGet"
	case CommandTDHas:
		return "DHas"
	case CommandTPush:
		return "Push"
	case CommandTPop:
		return "Pop"
	case CommandTQLen:
		return "QLen"
	case CommandTSAdd:
		return "SAdd"
	case CommandTSDel:
		return "SDel"
	case CommandTSLen:
		return "SLen"
	case CommandTDel:
		return "Del"
	case CommandTRange:
		return "Range"
	case CommandTInfo:
		return "Info"
	default:
		return fmt.Sprintf("Unknown(%d)", ct)
	}
}

// IsWrite reports whether the command may mutate the key space
func (ct CommandType) IsWrite() bool {
	switch ct {
	case CommandTSet, CommandTDSet, CommandTPush, CommandTPop, CommandTSAdd, CommandTSDel, CommandTDel:
		return true
	default:
		return false
	}
}

// Command is a single request to the store actor.
// Key, DKey (also used for set members) and Value belong to the actor once sent.
type Command struct {
	Type  CommandType
	Key   []byte
	DKey  []byte
	Value *structpb.Value
	Front bool
	Lower db.Bound
	Upper db.Bound

	// Reply receives exactly one Result. It has capacity 1, so the actor never blocks on it.
	Reply chan Result
}

// NewCommand creates a command of the given type with a private reply channel
func NewCommand(t CommandType) *Command {
	return &Command{
		Type:  t,
		Reply: make(chan Result, 1),
	}
}

// Result is the answer of the actor to a Command. Err is nil on success,
// the other fields are set depending on the command type.
type Result struct {
	Value *structpb.Value
	Count uint64
	Found bool
	Time  time.Time
	// Stream is the consumer side of a range scan
	Stream <-chan StreamItem
	// Cancel abandons the range scan
	Cancel func()
	Info   db.DatabaseInfo
	Err    error
}

// StreamItem is one element of a range stream: either a key or an error
type StreamItem struct {
	Key []byte
	Err error
}

// WithResult delivers r to the reply channel without blocking.
// It reports false if the channel already holds a result.
func (command *Command) WithResult(r Result) bool {
	select {
	case command.Reply <- r:
		return true
	default:
		return false
	}
}
