package util

import (
	"math"
	"sync/atomic"
)

// ----------------------------------------------------------------------------
// Summary statistics
// ----------------------------------------------------------------------------

// Stats summarizes a series of samples
type Stats struct {
	StdDeviation float64 `json:"std_deviation"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Mean         float64 `json:"mean"`
	MinMaxRatio  float64 `json:"min_max_ratio"`
}

// NewStats computes population statistics over values.
// An empty series yields the zero Stats.
func NewStats(values []float64) Stats {
	if len(values) == 0 {
		return Stats{}
	}

	lo, hi, sum := values[0], values[0], 0.0
	for _, v := range values {
		sum += v
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	mean := sum / float64(len(values))

	var squares float64
	for _, v := range values {
		squares += (v - mean) * (v - mean)
	}

	ratio := 1.0
	if hi > 0 {
		ratio = lo / hi
	}

	return Stats{
		StdDeviation: math.Sqrt(squares / float64(len(values))),
		Min:          lo,
		Max:          hi,
		Mean:         mean,
		MinMaxRatio:  ratio,
	}
}

// DistributionStats rates how evenly a quantity is spread over buckets
// (e.g. operations over workers or entries over containers)
type DistributionStats struct {
	Stats
	// DistributionQuality is 1 for a perfectly even spread and approaches 0 for a skewed one
	DistributionQuality float64 `json:"distribution_quality"`
}

// NewDistributionStats combines the coefficient of variation and the
// min/max ratio of values into a single quality score
func NewDistributionStats(values []float64) DistributionStats {
	stats := NewStats(values)

	var cv float64
	if stats.Mean > 0 {
		cv = stats.StdDeviation / stats.Mean
	}

	return DistributionStats{
		Stats:               stats,
		DistributionQuality: (1.0-math.Min(1.0, cv))*0.5 + stats.MinMaxRatio*0.5,
	}
}

// ----------------------------------------------------------------------------
// SizeHistogram
// ----------------------------------------------------------------------------

// sizeBoundaries are the upper bounds of the histogram buckets (powers of four from 16B to 4GiB).
// Samples above the last boundary fall into an overflow bucket.
var sizeBoundaries = func() []int64 {
	var b []int64
	for size := int64(16); size <= 4<<30; size *= 4 {
		b = append(b, size)
	}
	return b
}()

// SizeHistogram tracks the distribution of byte sizes in exponential buckets.
// It is safe for concurrent use. Percentiles are estimated from the bucket bounds.
type SizeHistogram struct {
	buckets []atomic.Int64
	count   atomic.Int64
	sum     atomic.Int64
}

// NewSizeHistogram creates an empty histogram
func NewSizeHistogram() *SizeHistogram {
	return &SizeHistogram{buckets: make([]atomic.Int64, len(sizeBoundaries)+1)}
}

// Add records a single size sample. Negative sizes count as zero.
func (h *SizeHistogram) Add(size int) {
	s := int64(max(size, 0))
	idx := len(sizeBoundaries)
	for i, boundary := range sizeBoundaries {
		if s <= boundary {
			idx = i
			break
		}
	}
	h.buckets[idx].Add(1)
	h.count.Add(1)
	h.sum.Add(s)
}

// Count returns the number of samples
func (h *SizeHistogram) Count() int64 {
	return h.count.Load()
}

// Mean returns the exact average of all samples
func (h *SizeHistogram) Mean() int {
	n := h.count.Load()
	if n == 0 {
		return 0
	}
	return int(h.sum.Load() / n)
}

// Percentile estimates the p-th percentile (0-100) as the midpoint of the bucket containing it
func (h *SizeHistogram) Percentile(p int) int {
	n := h.count.Load()
	if n == 0 || p < 0 || p > 100 {
		return 0
	}

	target := max(int64(math.Ceil(float64(n)*float64(p)/100.0)), 1)
	var seen int64
	for i := range h.buckets {
		seen += h.buckets[i].Load()
		if seen >= target {
			return int(bucketMidpoint(i))
		}
	}
	return h.Mean()
}

// Distribution returns the bucket upper bounds and the share of samples (in percent) per bucket.
// The last share belongs to the overflow bucket.
func (h *SizeHistogram) Distribution() ([]int64, []float64) {
	shares := make([]float64, len(h.buckets))
	if n := h.count.Load(); n > 0 {
		for i := range h.buckets {
			shares[i] = float64(h.buckets[i].Load()) * 100.0 / float64(n)
		}
	}
	return sizeBoundaries, shares
}

func bucketMidpoint(i int) int64 {
	switch {
	case i == 0:
		return sizeBoundaries[0] / 2
	case i < len(sizeBoundaries):
		return (sizeBoundaries[i-1] + sizeBoundaries[i]) / 2
	default:
		return sizeBoundaries[len(sizeBoundaries)-1] * 2
	}
}
