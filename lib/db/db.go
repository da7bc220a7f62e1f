package db

import (
	"bytes"
	"github.com/ValentinKolb/memDB/lib/value"
)

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

type Implementation string

const (
	ImplBTree Implementation = "btree"
)

// Feature represents database features as bit flags
type Feature uint64

const (
	FeatureGet    Feature = 1 << iota // Support for Get operations
	FeaturePut                        // Support for Put operations
	FeatureDelete                     // Support for Delete operations
	FeatureRange                      // Support for ordered range scans
	FeatureInfo                       // Support for detailed GetInfo statistics
)

func (f Feature) String() string {
	switch f {
	case FeatureGet:
		return "Get"
	case FeaturePut:
		return "Put"
	case FeatureDelete:
		return "Delete"
	case FeatureRange:
		return "Range"
	case FeatureInfo:
		return "Info"
	default:
		return "Unknown"
	}
}

// DatabaseInfo holds statistics about a database. Size values are estimates.
type DatabaseInfo struct {
	Keys              int            `json:"keys"`
	SizeBytes         int            `json:"size_bytes"`
	DbType            Implementation `json:"db_type"`
	SupportedFeatures []Feature      `json:"supported_features"`
	Kinds             map[string]int `json:"kinds"`
	Metadata          interface{}    `json:"metadata"`
}

// --------------------------------------------------------------------------
// Range Bounds
// --------------------------------------------------------------------------

// BoundKind tells whether a range endpoint is inclusive, exclusive or absent
type BoundKind uint8

const (
	BoundUnbounded BoundKind = iota
	BoundIncluded
	BoundExcluded
)

func (k BoundKind) String() string {
	switch k {
	case BoundIncluded:
		return "included"
	case BoundExcluded:
		return "excluded"
	case BoundUnbounded:
		return "unbounded"
	default:
		return "invalid"
	}
}

// Bounded reports whether k is one of the two kinds that limit a range
func (k BoundKind) Bounded() bool {
	return k == BoundIncluded || k == BoundExcluded
}

// Bound is one endpoint of a key range
type Bound struct {
	Kind BoundKind
	Key  []byte
}

// Included returns an inclusive bound at key
func Included(key []byte) Bound {
	return Bound{Kind: BoundIncluded, Key: key}
}

// Excluded returns an exclusive bound at key
func Excluded(key []byte) Bound {
	return Bound{Kind: BoundExcluded, Key: key}
}

// Unbounded returns an open bound
func Unbounded() Bound {
	return Bound{Kind: BoundUnbounded}
}

// AboveLower reports whether key lies on the inner side of b used as a lower bound
func (b Bound) AboveLower(key []byte) bool {
	switch b.Kind {
	case BoundIncluded:
		return bytes.Compare(key, b.Key) >= 0
	case BoundExcluded:
		return bytes.Compare(key, b.Key) > 0
	default:
		return true
	}
}

// BelowUpper reports whether key lies on the inner side of b used as an upper bound
func (b Bound) BelowUpper(key []byte) bool {
	switch b.Kind {
	case BoundIncluded:
		return bytes.Compare(key, b.Key) <= 0
	case BoundExcluded:
		return bytes.Compare(key, b.Key) < 0
	default:
		return true
	}
}

// --------------------------------------------------------------------------
// Database Interface
// --------------------------------------------------------------------------

// KVDB defines an interface for ordered key-value database implementations.
// Keys are arbitrary byte strings ordered byte-lexicographically.
// Implementations are NOT required to be safe for concurrent use: a database
// is owned by exactly one goroutine (see the lstore package).
type KVDB interface {

	// --------------------------------------------------------------------------
	// Write Operations
	// --------------------------------------------------------------------------

	// Put inserts or replaces the value stored under key.
	// The database takes ownership of key and value.
	Put(key []byte, v value.Value)

	// Delete removes key. It reports whether the key existed.
	Delete(key []byte) (existed bool)

	// --------------------------------------------------------------------------
	// Query Operations
	// --------------------------------------------------------------------------

	// Get returns the value stored under key.
	// The returned value is the stored instance, not a copy.
	Get(key []byte) (v value.Value, loaded bool)

	// Len returns the number of keys
	Len() int

	// Ascend calls fn for every key within [lower, upper] (respecting the bound kinds)
	// in ascending order until fn returns false.
	Ascend(lower, upper Bound, fn func(key []byte, v value.Value) bool)

	// --------------------------------------------------------------------------
	// Feature Support
	// --------------------------------------------------------------------------

	// SupportsFeature checks if the database implementation supports the specified feature.
	// Multiple features can be checked at once using bitwise OR (|) operator.
	SupportsFeature(feature Feature) (ok bool)

	// GetInfo returns information about the database.
	GetInfo() (info DatabaseInfo)

	// Close releases all data held by the database.
	Close() (err error)
}
