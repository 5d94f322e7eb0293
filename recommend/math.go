package recommend

import "math"

// normalize returns the L2-normalized copy of v, or nil when the norm is 0
// (the caller treats a nil vector as unscoreable against the cosine term).
func normalize(v []float64) []float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	if sum == 0 {
		return nil
	}
	norm := math.Sqrt(sum)
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}

// dot is the cosine similarity of two already-normalized vectors. A nil or
// mismatched side contributes 0, excluding the pair from that term.
func dot(a, b []float64) float64 {
	if a == nil || b == nil || len(a) != len(b) {
		return 0
	}
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// jaccard returns |A∩B| / |A∪B|, 0 when both sets are empty.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for k := range a {
		if _, ok := b[k]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
