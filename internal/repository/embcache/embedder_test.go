package embcache

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/kailas-cloud/matsearch/internal/db"
	"github.com/kailas-cloud/matsearch/internal/domain"
)

func TestEmbed_CacheMiss(t *testing.T) {
	inner := &mockEncoder{result: domain.EmbeddingResult{
		Embedding:    []float32{0.1, 0.2, 0.3},
		PromptTokens: 10,
		TotalTokens:  10,
	}}
	ce, ms := newTestCachedEncoder(t, inner)

	var setKey string
	var setTTL time.Duration
	ms.setFn = func(_ context.Context, key string, _ []byte, ttl time.Duration) error {
		setKey, setTTL = key, ttl
		return nil
	}

	result, err := ce.Embed(context.Background(), "test text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Embedding) != 3 || result.Embedding[0] != 0.1 {
		t.Fatalf("unexpected vector: %v", result.Embedding)
	}
	if result.TotalTokens != 10 {
		t.Fatalf("expected TotalTokens=10, got %d", result.TotalTokens)
	}
	if !strings.HasPrefix(setKey, "matsearch:emb_cache:text:") {
		t.Fatalf("unexpected cache key %q", setKey)
	}
	if setTTL != time.Hour {
		t.Fatalf("ttl = %v", setTTL)
	}
}

func TestEmbed_CacheHit(t *testing.T) {
	inner := &mockEncoder{result: domain.EmbeddingResult{Embedding: []float32{0.1, 0.2, 0.3}}}
	ce, ms := newTestCachedEncoder(t, inner)

	cached := []byte(db.EncodeVector([]float32{0.4, 0.5, 0.6}))
	ms.getFn = func(_ context.Context, _ string) ([]byte, error) { return cached, nil }

	result, err := ce.Embed(context.Background(), "test text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Embedding[0] != 0.4 {
		t.Fatalf("expected cached vector, got: %v", result.Embedding)
	}
	if result.TotalTokens != 0 {
		t.Fatalf("expected TotalTokens=0 on cache hit, got %d", result.TotalTokens)
	}
	if inner.calls != 0 {
		t.Fatalf("inner called %d times on hit", inner.calls)
	}
}

func TestEmbed_InnerError(t *testing.T) {
	inner := &mockEncoder{err: errors.New("provider down")}
	ce, _ := newTestCachedEncoder(t, inner)

	if _, err := ce.Embed(context.Background(), "test text"); err == nil {
		t.Fatal("expected error from inner encoder")
	}
}

func TestEmbed_StoreErrorFallsThrough(t *testing.T) {
	inner := &mockEncoder{result: domain.EmbeddingResult{Embedding: []float32{1}}}
	ce, ms := newTestCachedEncoder(t, inner)
	ms.getFn = func(context.Context, string) ([]byte, error) { return nil, errors.New("timeout") }
	ms.setFn = func(context.Context, string, []byte, time.Duration) error { return errors.New("timeout") }

	res, err := ce.Embed(context.Background(), "x")
	if err != nil {
		t.Fatalf("cache failures must not fail the call: %v", err)
	}
	if res.Embedding[0] != 1 {
		t.Fatalf("unexpected vector %v", res.Embedding)
	}
}

func TestEmbedImage_SeparateNamespace(t *testing.T) {
	inner := &mockEncoder{result: domain.EmbeddingResult{Embedding: []float32{1, 0}}}
	ce, ms := newTestCachedEncoder(t, inner)

	var keys []string
	ms.setFn = func(_ context.Context, key string, _ []byte, _ time.Duration) error {
		keys = append(keys, key)
		return nil
	}

	if _, err := ce.EmbedImage(context.Background(), []byte("same")); err != nil {
		t.Fatalf("EmbedImage: %v", err)
	}
	if _, err := ce.Embed(context.Background(), "same"); err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(keys) != 2 || keys[0] == keys[1] {
		t.Fatalf("text and image keys must differ: %v", keys)
	}
	if !strings.Contains(keys[0], ":image:") {
		t.Fatalf("image key = %q", keys[0])
	}
}

func TestEmbedImage_NoImageEncoder(t *testing.T) {
	inner := &mockEncoder{}
	ce := New(inner, nil, &mockKVStore{}, Options{}, nil, zap.NewNop())

	_, err := ce.EmbedImage(context.Background(), []byte{1})
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Fatalf("expected ErrEmbeddingProviderError, got %v", err)
	}
}

func TestCacheMetrics(t *testing.T) {
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_cache_total"}, []string{"modality", "result"})
	inner := &mockEncoder{result: domain.EmbeddingResult{Embedding: []float32{1}}}
	ce := New(inner, inner, &mockKVStore{}, Options{}, counter, zap.NewNop())

	_, _ = ce.Embed(context.Background(), "a")

	if got := testutil.ToFloat64(counter.WithLabelValues("text", "miss")); got != 1 {
		t.Fatalf("miss counter = %v", got)
	}
}

func TestCacheKey_ModelScoped(t *testing.T) {
	a := New(nil, nil, &mockKVStore{}, Options{Model: "a"}, nil, zap.NewNop())
	b := New(nil, nil, &mockKVStore{}, Options{Model: "b"}, nil, zap.NewNop())
	if a.cacheKey("text", []byte("x")) == b.cacheKey("text", []byte("x")) {
		t.Fatal("keys must differ across models")
	}
}
