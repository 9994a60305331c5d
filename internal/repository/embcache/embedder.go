// Package embcache caches encoder output in the key-value store.
package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/matsearch/internal/db"
	"github.com/kailas-cloud/matsearch/internal/domain"
)

// store is the consumer interface for the embedding cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Options configures the cache.
type Options struct {
	Prefix string        // defaults to domain.KeyPrefix
	Model  string        // part of the key so a model switch never serves stale vectors
	TTL    time.Duration // 0 keeps entries forever
}

// CachedEncoder caches text and image embeddings. Image caching is only
// active when an image encoder is supplied.
type CachedEncoder struct {
	text       domain.Embedder
	image      domain.ImageEmbedder
	store      store
	opts       Options
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a caching decorator.
// cacheTotal is a counter vec with labels "modality" and "result" ("hit"/"miss"), passed explicitly.
func New(
	text domain.Embedder,
	image domain.ImageEmbedder,
	s store,
	opts Options,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedEncoder {
	if opts.Prefix == "" {
		opts.Prefix = domain.KeyPrefix
	}
	return &CachedEncoder{
		text:       text,
		image:      image,
		store:      s,
		opts:       opts,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// Embed returns a cached text embedding or calls the text encoder.
// A hit reports zero tokens.
func (c *CachedEncoder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	return c.cached(ctx, "text", []byte(text), func(ctx context.Context) (domain.EmbeddingResult, error) {
		return c.text.Embed(ctx, text)
	})
}

// EmbedImage returns a cached image embedding or calls the image encoder.
func (c *CachedEncoder) EmbedImage(ctx context.Context, image []byte) (domain.EmbeddingResult, error) {
	if c.image == nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed image: %w", domain.ErrEmbeddingProviderError)
	}
	return c.cached(ctx, "image", image, func(ctx context.Context) (domain.EmbeddingResult, error) {
		return c.image.EmbedImage(ctx, image)
	})
}

func (c *CachedEncoder) cached(
	ctx context.Context, modality string, payload []byte,
	encode func(context.Context) (domain.EmbeddingResult, error),
) (domain.EmbeddingResult, error) {
	key := c.cacheKey(modality, payload)

	if vec, ok := c.getFromCache(ctx, key); ok {
		c.incCache(modality, "hit")
		return domain.EmbeddingResult{Embedding: vec}, nil
	}
	c.incCache(modality, "miss")

	result, err := encode(ctx)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed %s: %w", modality, err)
	}

	c.putToCache(ctx, key, result.Embedding)
	return result, nil
}

func (c *CachedEncoder) incCache(modality, result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(modality, result).Inc()
	}
}

func (c *CachedEncoder) cacheKey(modality string, payload []byte) string {
	h := sha256.New()
	h.Write([]byte(c.opts.Model))
	h.Write([]byte{0})
	h.Write(payload)
	return c.opts.Prefix + "emb_cache:" + modality + ":" + hex.EncodeToString(h.Sum(nil))
}

func (c *CachedEncoder) getFromCache(ctx context.Context, key string) ([]float32, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to get cached embedding", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	if len(data) == 0 {
		return nil, false
	}

	vec, err := db.DecodeVector(string(data))
	if err != nil {
		c.logger.Warn("Failed to parse cached embedding", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return vec, true
}

func (c *CachedEncoder) putToCache(ctx context.Context, key string, vec []float32) {
	if len(vec) == 0 {
		return
	}
	if err := c.store.SetWithTTL(ctx, key, []byte(db.EncodeVector(vec)), c.opts.TTL); err != nil {
		c.logger.Warn("Failed to cache embedding", zap.String("key", key), zap.Error(err))
	}
}
