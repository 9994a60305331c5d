// Package fusion combines text and image embeddings into one query vector.
package fusion

import "math"

// Fuse returns the weighted combination of text and image.
//
// A single present embedding is returned unchanged. With both present the
// vectors are truncated to the shorter length, summed with the weights and
// re-normalized to unit length; an all-zero sum is returned as is. ok is
// false when neither embedding is present and no vector search may run.
func Fuse(text, image []float32, textWeight, imageWeight float64) (fused []float32, ok bool) {
	switch {
	case len(text) == 0 && len(image) == 0:
		return nil, false
	case len(image) == 0:
		return text, true
	case len(text) == 0:
		return image, true
	}

	// Both encoders must share axis order up to n for this to be meaningful.
	n := min(len(text), len(image))
	out := make([]float32, n)
	var sum float64
	for i := range n {
		v := textWeight*float64(text[i]) + imageWeight*float64(image[i])
		out[i] = float32(v)
		sum += v * v
	}

	mag := math.Sqrt(sum)
	if mag == 0 {
		return out, true
	}
	for i := range out {
		out[i] = float32(float64(out[i]) / mag)
	}
	return out, true
}
