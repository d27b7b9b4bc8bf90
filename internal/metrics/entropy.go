package metrics

import "math"

// Entropy returns the Shannon entropy, in bits, of a frequency table whose
// counts add up to total. Zero counts contribute nothing; a zero total
// yields 0.
func Entropy(freq map[string]int, total int) float64 {
	if total == 0 {
		return 0
	}

	var h float64
	for _, k := range freq {
		if k <= 0 {
			continue
		}
		p := float64(k) / float64(total)
		h -= p * math.Log2(p)
	}
	return h
}

// MaxEntropy is the entropy of n equiprobable categories.
func MaxEntropy(n int) float64 {
	if n <= 1 {
		return 0
	}
	return math.Log2(float64(n))
}
