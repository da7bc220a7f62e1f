package btree

import (
	"bytes"
	"github.com/ValentinKolb/memDB/lib/db"
	"github.com/ValentinKolb/memDB/lib/db/util"
	"github.com/ValentinKolb/memDB/lib/value"
	"github.com/google/btree"
	"google.golang.org/protobuf/proto"
)

const (
	// DefaultDegree is the B-tree degree used if none is configured
	DefaultDegree = 32

	// infoSampleSize is the number of entries sampled for size estimates in GetInfo
	infoSampleSize = 1000

	// entryOverhead is the estimated per-entry bookkeeping cost in bytes
	entryOverhead = 48
)

// Config holds the configuration of the btree engine
type Config struct {
	// Degree of the B-tree (see github.com/google/btree)
	Degree int
}

// entry is a single item of the tree
type entry struct {
	key []byte
	val value.Value
}

func lessEntry(a, b entry) bool {
	return bytes.Compare(a.key, b.key) < 0
}

// btreeImpl implements db.KVDB with an in-memory B-tree
type btreeImpl struct {
	tree   *btree.BTreeG[entry]
	degree int
	kinds  map[value.Kind]int
}

// NewBTreeDB creates a new btree engine. A nil config selects the defaults.
func NewBTreeDB(config *Config) db.KVDB {
	degree := DefaultDegree
	if config != nil && config.Degree > 1 {
		degree = config.Degree
	}
	return &btreeImpl{
		tree:   btree.NewG[entry](degree, lessEntry),
		degree: degree,
		kinds:  make(map[value.Kind]int, 4),
	}
}

// --------------------------------------------------------------------------
// KVDB Interface Implementation - Write Operations
// --------------------------------------------------------------------------

func (t *btreeImpl) Put(key []byte, v value.Value) {
	old, replaced := t.tree.ReplaceOrInsert(entry{key: key, val: v})
	if replaced {
		t.kinds[old.val.Kind()]--
	}
	t.kinds[v.Kind()]++
}

func (t *btreeImpl) Delete(key []byte) bool {
	old, existed := t.tree.Delete(entry{key: key})
	if existed {
		t.kinds[old.val.Kind()]--
	}
	return existed
}

// --------------------------------------------------------------------------
// KVDB Interface Implementation - Query Operations
// --------------------------------------------------------------------------

func (t *btreeImpl) Get(key []byte) (value.Value, bool) {
	e, ok := t.tree.Get(entry{key: key})
	if !ok {
		return nil, false
	}
	return e.val, true
}

func (t *btreeImpl) Len() int {
	return t.tree.Len()
}

func (t *btreeImpl) Ascend(lower, upper db.Bound, fn func(key []byte, v value.Value) bool) {
	iter := func(e entry) bool {
		// only the pivot itself can be rejected by an exclusive lower bound
		if !lower.AboveLower(e.key) {
			return true
		}
		if !upper.BelowUpper(e.key) {
			return false
		}
		return fn(e.key, e.val)
	}

	if lower.Kind == db.BoundUnbounded {
		t.tree.Ascend(iter)
	} else {
		t.tree.AscendGreaterOrEqual(entry{key: lower.Key}, iter)
	}
}

// --------------------------------------------------------------------------
// KVDB Interface Implementation - Features and Metadata
// --------------------------------------------------------------------------

func (t *btreeImpl) SupportsFeature(feature db.Feature) bool {
	supported := db.FeatureGet | db.FeaturePut | db.FeatureDelete | db.FeatureRange | db.FeatureInfo
	return feature&supported == feature
}

func (t *btreeImpl) GetInfo() db.DatabaseInfo {
	keyHistogram := util.NewSizeHistogram()
	valueHistogram := util.NewSizeHistogram()
	containerSizes := make([]float64, 0, infoSampleSize)

	// sample the first entries of the tree
	sampled := 0
	t.tree.Ascend(func(e entry) bool {
		keyHistogram.Add(len(e.key))
		valueHistogram.Add(estimateValueSize(e.val))
		if e.val.Kind() != value.KindScalar {
			containerSizes = append(containerSizes, float64(e.val.Size()))
		}
		sampled++
		return sampled < infoSampleSize
	})

	// extrapolate the total size from the sample
	avgEntry := keyHistogram.Mean() + valueHistogram.Mean() + entryOverhead
	sizeBytes := avgEntry * t.tree.Len()

	kinds := make(map[string]int, len(t.kinds))
	for k, n := range t.kinds {
		if n > 0 {
			kinds[k.String()] = n
		}
	}

	meta := &struct {
		Degree          int        `json:"degree"`
		SampledEntries  int        `json:"sampled_entries"`
		MedianKeySize   int        `json:"median_key_size"`
		MedianValueSize int        `json:"median_value_size"`
		P99ValueSize    int        `json:"p99_value_size"`
		ContainerSizes  util.Stats `json:"container_sizes"`
		Info            string     `json:"info"`
	}{
		Degree:          t.degree,
		SampledEntries:  sampled,
		MedianKeySize:   keyHistogram.Percentile(50),
		MedianValueSize: valueHistogram.Percentile(50),
		P99ValueSize:    valueHistogram.Percentile(99),
		ContainerSizes:  util.NewStats(containerSizes),
		Info:            "Size values are estimates based on a sample of the key space.",
	}

	return db.DatabaseInfo{
		Keys:              t.tree.Len(),
		SizeBytes:         sizeBytes,
		DbType:            db.ImplBTree,
		SupportedFeatures: []db.Feature{db.FeatureGet, db.FeaturePut, db.FeatureDelete, db.FeatureRange, db.FeatureInfo},
		Kinds:             kinds,
		Metadata:          meta,
	}
}

func (t *btreeImpl) Close() error {
	t.tree.Clear(false)
	clear(t.kinds)
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// estimateValueSize returns the approximate payload size of a value in bytes
func estimateValueSize(v value.Value) int {
	switch v.Kind() {
	case value.KindScalar:
		s, _ := value.AsScalar(v)
		return proto.Size(s)
	case value.KindDictionary:
		d, _ := value.AsDictionary(v)
		size := 0
		for k, p := range d {
			size += len(k) + proto.Size(p)
		}
		return size
	case value.KindSet:
		s, _ := value.AsSet(v)
		size := 0
		for m := range s {
			size += len(m)
		}
		return size
	case value.KindDeque:
		d, _ := value.AsDeque(v)
		size := 0
		for i := 0; i < d.Len(); i++ {
			size += proto.Size(d.At(i))
		}
		return size
	default:
		return 0
	}
}
