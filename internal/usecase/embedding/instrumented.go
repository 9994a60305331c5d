package embedding

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/matsearch/internal/domain"
	"github.com/kailas-cloud/matsearch/internal/domain/usage"
	"github.com/kailas-cloud/matsearch/internal/metrics"
)

// Modalities of encoder input.
const (
	ModalityText  = "text"
	ModalityImage = "image"
)

// BudgetChecker is the local interface for budget enforcement.
type BudgetChecker interface {
	Check(ctx context.Context) error
	Record(ctx context.Context, tokens int64)
	Remaining(period usage.Period) int64
}

// InstrumentedEncoder wraps the text and image encoders with budget
// enforcement and the encoder contract: every vector has the configured
// dimensions and unit length.
// Transport metrics (requests, duration, tokens) are recorded in transport/openai.
type InstrumentedEncoder struct {
	text       domain.Embedder
	image      domain.ImageEmbedder
	provider   string
	model      string
	dimensions int
	budget     BudgetChecker
	logger     *zap.Logger
}

// NewInstrumentedEncoder wraps encoders with budget and contract checks.
// image may be nil; dimensions <= 0 disables the length check.
func NewInstrumentedEncoder(
	text domain.Embedder, image domain.ImageEmbedder, provider, model string, dimensions int,
	budget BudgetChecker, logger *zap.Logger,
) *InstrumentedEncoder {
	return &InstrumentedEncoder{
		text:       text,
		image:      image,
		provider:   provider,
		model:      model,
		dimensions: dimensions,
		budget:     budget,
		logger:     logger,
	}
}

// Embed vectorizes text.
func (p *InstrumentedEncoder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	return p.run(ctx, ModalityText, func(ctx context.Context) (domain.EmbeddingResult, error) {
		return p.text.Embed(ctx, text)
	})
}

// EmbedImage vectorizes raw image bytes.
func (p *InstrumentedEncoder) EmbedImage(ctx context.Context, image []byte) (domain.EmbeddingResult, error) {
	if p.image == nil {
		return domain.EmbeddingResult{}, fmt.Errorf("%w: no image encoder configured", domain.ErrEmbeddingProviderError)
	}
	return p.run(ctx, ModalityImage, func(ctx context.Context) (domain.EmbeddingResult, error) {
		return p.image.EmbedImage(ctx, image)
	})
}

func (p *InstrumentedEncoder) run(
	ctx context.Context, modality string,
	call func(ctx context.Context) (domain.EmbeddingResult, error),
) (domain.EmbeddingResult, error) {
	if p.budget != nil {
		if err := p.budget.Check(ctx); err != nil {
			p.logger.Error("Encoder budget exceeded",
				zap.String("provider", p.provider),
				zap.String("modality", modality),
				zap.Error(err),
			)
			return domain.EmbeddingResult{}, fmt.Errorf("budget check: %w", err)
		}
	}

	start := time.Now()
	result, err := call(ctx)
	duration := time.Since(start)

	if err != nil {
		p.logger.Error("Embedding request failed",
			zap.String("provider", p.provider),
			zap.String("model", p.model),
			zap.String("modality", modality),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.EmbeddingResult{}, fmt.Errorf("embed %s: %w", modality, err)
	}

	if err := p.validate(result.Embedding); err != nil {
		p.logger.Error("Encoder contract violated",
			zap.String("provider", p.provider),
			zap.String("modality", modality),
			zap.Int("dimensions", len(result.Embedding)),
			zap.Error(err),
		)
		return domain.EmbeddingResult{}, fmt.Errorf("embed %s: %w", modality, err)
	}

	if result.TotalTokens > 0 {
		domain.UsageFromContext(ctx).AddTokens(result.TotalTokens)
		if p.budget != nil {
			p.budget.Record(ctx, int64(result.TotalTokens))
			remaining := metrics.EmbeddingBudgetTokensRemaining
			remaining.WithLabelValues(p.provider, string(usage.PeriodDay)).Set(float64(p.budget.Remaining(usage.PeriodDay)))
			remaining.WithLabelValues(p.provider, string(usage.PeriodMonth)).Set(float64(p.budget.Remaining(usage.PeriodMonth)))
		}
	}

	p.logger.Debug("Embedding request completed",
		zap.String("provider", p.provider),
		zap.String("model", p.model),
		zap.String("modality", modality),
		zap.Duration("duration", duration),
		zap.Int("dimensions", len(result.Embedding)),
		zap.Int("total_tokens", result.TotalTokens),
	)
	return result, nil
}

func (p *InstrumentedEncoder) validate(v []float32) error {
	if p.dimensions > 0 && len(v) != p.dimensions {
		metrics.EmbeddingErrorsTotal.WithLabelValues(p.provider, p.model, "dimension_mismatch").Inc()
		return fmt.Errorf("%w: got %d, want %d", domain.ErrVectorDimMismatch, len(v), p.dimensions)
	}
	if !domain.IsUnit(v) {
		metrics.EmbeddingErrorsTotal.WithLabelValues(p.provider, p.model, "non_unit").Inc()
		return fmt.Errorf("%w: vector norm %.4f is not 1", domain.ErrEmbeddingProviderError, domain.Norm(v))
	}
	return nil
}
