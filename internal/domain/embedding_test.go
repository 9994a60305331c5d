package domain

import (
	"math"
	"testing"
)

func TestNormalize(t *testing.T) {
	v := Normalize([]float32{3, 4})
	if math.Abs(float64(v[0])-0.6) > 1e-6 || math.Abs(float64(v[1])-0.8) > 1e-6 {
		t.Errorf("Normalize = %v, want [0.6 0.8]", v)
	}
	if !IsUnit(v) {
		t.Error("expected unit vector")
	}
}

func TestNormalize_ZeroVector(t *testing.T) {
	in := []float32{0, 0, 0}
	out := Normalize(in)
	if len(out) != 3 {
		t.Fatalf("len = %d, want 3", len(out))
	}
	for i, x := range out {
		if x != 0 {
			t.Errorf("out[%d] = %v, want 0", i, x)
		}
	}
	if IsUnit(out) {
		t.Error("zero vector must not be unit")
	}
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0}, []float32{1, 0}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"zero", []float32{0, 0}, []float32{1, 0}, 0},
		{"different lengths", []float32{1, 0, 5}, []float32{1, 0}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Cosine(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Cosine = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEmbeddingResult_Dimensions(t *testing.T) {
	r := EmbeddingResult{Embedding: make([]float32, EmbeddingDimensions)}
	if r.Dimensions() != 384 {
		t.Errorf("Dimensions = %d, want 384", r.Dimensions())
	}
}
