package metrics

import (
	"math"
	"sort"
)

// BandwidthSummary is a basic statistics snapshot over per-circuit minimum
// bandwidths.
type BandwidthSummary struct {
	Count int
	Min   int64
	Max   int64
	Avg   float64
	P50   float64
	P95   float64
}

// SummarizeBandwidth computes summary statistics for a list of circuit
// bandwidths.
func SummarizeBandwidth(items []int64) BandwidthSummary {
	if len(items) == 0 {
		return BandwidthSummary{Count: 0}
	}

	values := make([]float64, 0, len(items))
	var sum float64
	minBW := int64(math.MaxInt64)
	maxBW := int64(math.MinInt64)

	for _, bw := range items {
		values = append(values, float64(bw))
		sum += float64(bw)
		if bw < minBW {
			minBW = bw
		}
		if bw > maxBW {
			maxBW = bw
		}
	}

	sort.Float64s(values)

	return BandwidthSummary{
		Count: len(items),
		Min:   minBW,
		Max:   maxBW,
		Avg:   sum / float64(len(items)),
		P50:   percentile(values, 0.50),
		P95:   percentile(values, 0.95),
	}
}

func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	if p <= 0 {
		return values[0]
	}
	if p >= 1 {
		return values[len(values)-1]
	}
	idx := int(math.Ceil(p*float64(len(values)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(values) {
		idx = len(values) - 1
	}
	return values[idx]
}
