package fusion

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/matsearch/internal/domain"
)

func randomUnit(r *rand.Rand, n int) []float32 {
	v := make([]float32, n)
	for i := range v {
		v[i] = float32(r.NormFloat64())
	}
	return domain.Normalize(v)
}

func TestFuse_UnitLength(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for range 200 {
		a, b := randomUnit(r, 16), randomUnit(r, 16)
		w1, w2 := r.Float64(), r.Float64()
		if w1+w2 == 0 {
			continue
		}
		fused, ok := Fuse(a, b, w1, w2)
		require.True(t, ok)
		norm := domain.Norm(fused)
		if norm == 0 {
			continue
		}
		assert.InDelta(t, 1.0, norm, 1e-5)
	}
}

func TestFuse_SoleWeightReturnsInput(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 4))
	a, b := randomUnit(r, 8), randomUnit(r, 8)

	onlyText, _ := Fuse(a, b, 1, 0)
	onlyImage, _ := Fuse(a, b, 0, 1)
	for i := range a {
		assert.InDelta(t, a[i], onlyText[i], 1e-6)
		assert.InDelta(t, b[i], onlyImage[i], 1e-6)
	}
}

func TestFuse_SingleInputUnchanged(t *testing.T) {
	a := []float32{0.6, 0.8}

	got, ok := Fuse(a, nil, 0.3, 0.7)
	require.True(t, ok)
	assert.Same(t, &a[0], &got[0])

	got, ok = Fuse(nil, a, 0.3, 0.7)
	require.True(t, ok)
	assert.Equal(t, a, got)
}

func TestFuse_NeitherPresent(t *testing.T) {
	got, ok := Fuse(nil, nil, 0.5, 0.5)
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestFuse_TruncatesToShorter(t *testing.T) {
	fused, ok := Fuse([]float32{1, 0, 0}, []float32{0, 1}, 1, 1)
	require.True(t, ok)
	require.Len(t, fused, 2)
	assert.InDelta(t, 1/math.Sqrt2, fused[0], 1e-6)
	assert.InDelta(t, 1/math.Sqrt2, fused[1], 1e-6)
}

func TestFuse_ZeroMagnitudeLeftUnnormalized(t *testing.T) {
	fused, ok := Fuse([]float32{1, 0}, []float32{1, 0}, 1, -1)
	require.True(t, ok)
	assert.Equal(t, []float32{0, 0}, fused)
}
