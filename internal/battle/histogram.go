package battle

import (
	"math"
	"sort"
)

// Histogram counts integer outcomes. The zero value is ready to use.
type Histogram struct {
	counts map[int]int
	total  int
}

// HistogramFromCounts rebuilds a histogram from bucket counts.
func HistogramFromCounts(counts map[int]int) Histogram {
	var h Histogram
	for value, count := range counts {
		h.addN(value, count)
	}
	return h
}

// Add records one occurrence of value.
func (h *Histogram) Add(value int) {
	h.addN(value, 1)
}

func (h *Histogram) addN(value, count int) {
	if count <= 0 {
		return
	}
	if h.counts == nil {
		h.counts = map[int]int{}
	}
	h.counts[value] += count
	h.total += count
}

// Merge adds every bucket of other into h.
func (h *Histogram) Merge(other Histogram) {
	for value, count := range other.counts {
		h.addN(value, count)
	}
}

// Total returns the number of recorded occurrences.
func (h Histogram) Total() int {
	return h.total
}

// Count returns the occurrences recorded for value.
func (h Histogram) Count(value int) int {
	return h.counts[value]
}

// Counts returns a copy of the bucket counts.
func (h Histogram) Counts() map[int]int {
	out := make(map[int]int, len(h.counts))
	for value, count := range h.counts {
		out[value] = count
	}
	return out
}

// Bucket is one histogram value and its count.
type Bucket struct {
	Value int
	Count int
}

// Buckets returns the non-empty buckets ordered by value.
func (h Histogram) Buckets() []Bucket {
	buckets := make([]Bucket, 0, len(h.counts))
	for value, count := range h.counts {
		buckets = append(buckets, Bucket{Value: value, Count: count})
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Value < buckets[j].Value })
	return buckets
}

// Mean returns the average recorded value, or 0 for an empty histogram.
func (h Histogram) Mean() float64 {
	if h.total == 0 {
		return 0
	}
	sum := 0.0
	for value, count := range h.counts {
		sum += float64(value) * float64(count)
	}
	return sum / float64(h.total)
}

// Percentile returns the smallest value whose cumulative share reaches p
// (0 < p <= 1). It returns 0 for an empty histogram.
func (h Histogram) Percentile(p float64) int {
	if h.total == 0 {
		return 0
	}
	need := int(math.Ceil(p * float64(h.total)))
	if need < 1 {
		need = 1
	}
	seen := 0
	buckets := h.Buckets()
	for _, b := range buckets {
		seen += b.Count
		if seen >= need {
			return b.Value
		}
	}
	return buckets[len(buckets)-1].Value
}

// CumulativeAt returns the share of occurrences with a value at most v.
func (h Histogram) CumulativeAt(v int) float64 {
	if h.total == 0 {
		return 0
	}
	seen := 0
	for value, count := range h.counts {
		if value <= v {
			seen += count
		}
	}
	return float64(seen) / float64(h.total)
}
