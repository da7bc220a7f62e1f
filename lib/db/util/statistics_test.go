package util

import (
	"math"
	"sync"
	"testing"
)

func TestNewStats(t *testing.T) {
	if got := NewStats(nil); got != (Stats{}) {
		t.Errorf("NewStats(nil) = %+v, want zero value", got)
	}

	s := NewStats([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if s.Mean != 5 || s.Min != 2 || s.Max != 9 {
		t.Errorf("unexpected stats %+v", s)
	}
	if s.StdDeviation != 2 {
		t.Errorf("StdDeviation = %v, want 2", s.StdDeviation)
	}
	if math.Abs(s.MinMaxRatio-2.0/9.0) > 1e-9 {
		t.Errorf("MinMaxRatio = %v, want %v", s.MinMaxRatio, 2.0/9.0)
	}
}

func TestDistributionStats(t *testing.T) {
	even := NewDistributionStats([]float64{10, 10, 10, 10})
	if even.DistributionQuality != 1 {
		t.Errorf("even spread quality = %v, want 1", even.DistributionQuality)
	}

	skewed := NewDistributionStats([]float64{1, 1, 1, 100})
	if skewed.DistributionQuality >= even.DistributionQuality {
		t.Errorf("skewed quality %v should be below even quality %v", skewed.DistributionQuality, even.DistributionQuality)
	}
}

func TestSizeHistogram(t *testing.T) {
	h := NewSizeHistogram()
	if h.Percentile(50) != 0 || h.Mean() != 0 {
		t.Fatal("empty histogram should report zero")
	}

	for i := 0; i < 90; i++ {
		h.Add(10) // first bucket (<= 16)
	}
	for i := 0; i < 10; i++ {
		h.Add(1000) // (256, 1024]
	}

	if h.Count() != 100 {
		t.Errorf("Count() = %d, want 100", h.Count())
	}
	if h.Mean() != (90*10+10*1000)/100 {
		t.Errorf("Mean() = %d", h.Mean())
	}
	if got := h.Percentile(50); got != 8 {
		t.Errorf("Percentile(50) = %d, want 8", got)
	}
	if got := h.Percentile(99); got != (256+1024)/2 {
		t.Errorf("Percentile(99) = %d, want %d", got, (256+1024)/2)
	}
	if h.Percentile(101) != 0 || h.Percentile(-1) != 0 {
		t.Error("out of range percentiles should return 0")
	}

	bounds, shares := h.Distribution()
	if len(shares) != len(bounds)+1 {
		t.Fatalf("expected %d shares, got %d", len(bounds)+1, len(shares))
	}
	if shares[0] != 90 {
		t.Errorf("share of first bucket = %v, want 90", shares[0])
	}
}

func TestSizeHistogramOverflowAndConcurrency(t *testing.T) {
	h := NewSizeHistogram()
	h.Add(8 << 30)
	if got := h.Percentile(100); got != int(sizeBoundaries[len(sizeBoundaries)-1]*2) {
		t.Errorf("overflow bucket estimate = %d", got)
	}

	h = NewSizeHistogram()
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				h.Add(i)
			}
		}()
	}
	wg.Wait()
	if h.Count() != 8000 {
		t.Errorf("Count() = %d, want 8000", h.Count())
	}
}
