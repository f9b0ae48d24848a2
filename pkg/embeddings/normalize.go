package embeddings

import "math"

// Normalize scales v to unit length so cosine similarity reduces to a plain
// dot product. Zero vectors are returned unchanged.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}

	inv := 1 / math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) * inv)
	}
	return out
}

// NormalizeAll normalizes every vector in vs, skipping nil entries so it can
// run directly over a partially failed batch.
func NormalizeAll(vs [][]float32) [][]float32 {
	out := make([][]float32, len(vs))
	for i, v := range vs {
		if v == nil {
			continue
		}
		out[i] = Normalize(v)
	}
	return out
}
