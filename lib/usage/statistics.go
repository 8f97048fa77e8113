// Package usage computes on-demand statistics about the contents of a table.
// This file holds the statistical helpers: a spread summary for a set of values,
// a balance score for the namespace distribution and a size histogram for
// serialized entry sizes. The histogram uses exponential bucket sizing to cover
// bytes to gigabytes with a fixed, small memory footprint.
package usage

import (
	"math"
)

// ----------------------------------------------------------------------------
// Spread and Balance
// ----------------------------------------------------------------------------

// Spread describes the dispersion of a set of values
type Spread struct {
	StdDeviation float64 `json:"stdDeviation"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Mean         float64 `json:"mean"`
	MinMaxRatio  float64 `json:"minMaxRatio"`
}

// NewSpread computes mean, standard deviation, minimum and maximum of the values
func NewSpread(values []float64) Spread {
	if len(values) == 0 {
		return Spread{}
	}

	lo, hi := values[0], values[0]
	var sum float64
	for _, v := range values {
		sum += v
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	mean := sum / float64(len(values))

	// population standard deviation
	var squared float64
	for _, v := range values {
		diff := v - mean
		squared += diff * diff
	}

	ratio := 1.0
	if hi > 0 {
		ratio = lo / hi
	}

	return Spread{
		StdDeviation: math.Sqrt(squared / float64(len(values))),
		Min:          lo,
		Max:          hi,
		Mean:         mean,
		MinMaxRatio:  ratio,
	}
}

// Balance rates how evenly entries are spread over the namespaces
type Balance struct {
	Spread
	Quality float64 `json:"quality"` // 1.0 means perfectly even
}

// NewBalance computes the balance of the given per-namespace counts
func NewBalance(counts []float64) Balance {
	spread := NewSpread(counts)

	// coefficient of variation
	var cv float64
	if spread.Mean > 0 {
		cv = spread.StdDeviation / spread.Mean
	}

	// lower CV and higher min/max ratio indicate a better distribution
	quality := (1.0-math.Min(1.0, cv))*0.5 + spread.MinMaxRatio*0.5
	if len(counts) == 0 {
		quality = 0
	}

	return Balance{
		Spread:  spread,
		Quality: quality,
	}
}

// ----------------------------------------------------------------------------
// SizeHistogram
// ----------------------------------------------------------------------------

// sizeBoundaries are the upper bounds of the histogram buckets, from 16B to 4GB
var sizeBoundaries = []int64{
	16, 64, 256, 1024, 4096, // Bytes: 16B to 4KB
	16384, 65536, 262144, 1048576, // KB range: 16KB to 1MB
	4194304, 16777216, 67108864, // MB range: 4MB to 64MB
	268435456, 1073741824, 4294967296, // Above 256MB to 4GB
}

// SizeHistogram tracks the distribution of entry sizes.
// It is filled by a single scan and is not safe for concurrent use.
type SizeHistogram struct {
	buckets []int64 // last bucket holds everything above the largest boundary
	count   int64
	sum     int64
}

// NewSizeHistogram creates an empty histogram
func NewSizeHistogram() *SizeHistogram {
	return &SizeHistogram{
		buckets: make([]int64, len(sizeBoundaries)+1),
	}
}

// Add records one size sample
func (h *SizeHistogram) Add(size int64) {
	idx := len(sizeBoundaries)
	for i, boundary := range sizeBoundaries {
		if size <= boundary {
			idx = i
			break
		}
	}

	h.buckets[idx]++
	h.count++
	h.sum += size
}

// Count returns the number of samples
func (h *SizeHistogram) Count() int64 {
	return h.count
}

// Sum returns the sum of all samples
func (h *SizeHistogram) Sum() int64 {
	return h.sum
}

// Average returns the mean sample size
func (h *SizeHistogram) Average() int64 {
	if h.count == 0 {
		return 0
	}
	return h.sum / h.count
}

// Percentile estimates the given percentile (0-100) from the bucket counts
func (h *SizeHistogram) Percentile(percentile int) int64 {
	if h.count == 0 || percentile < 0 || percentile > 100 {
		return 0
	}

	target := int64(math.Ceil(float64(h.count) * float64(percentile) / 100.0))
	var cumulative int64
	for i, count := range h.buckets {
		cumulative += count
		if cumulative < target {
			continue
		}
		switch {
		case i == 0:
			return sizeBoundaries[0] / 2
		case i < len(sizeBoundaries):
			return (sizeBoundaries[i-1] + sizeBoundaries[i]) / 2
		default:
			return sizeBoundaries[len(sizeBoundaries)-1] * 2
		}
	}

	return h.Average()
}
