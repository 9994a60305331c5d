// Package openai adapts an OpenAI-compatible embeddings API to the text
// and image encoder contracts.
package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/matsearch/internal/domain"
	"github.com/kailas-cloud/matsearch/internal/metrics"
)

// Encoder produces text and image embeddings through one provider.
// Images are sent as base64 data URLs, the input format multimodal
// OpenAI-compatible embedding endpoints accept.
type Encoder struct {
	client     *openai.Client
	textModel  openai.EmbeddingModel
	imageModel openai.EmbeddingModel
	dimensions int
	user       string
	provider   string
	logger     *zap.Logger
}

// Config holds the embedding provider settings.
type Config struct {
	APIKey     string
	BaseURL    string
	TextModel  string
	ImageModel string // defaults to TextModel
	Dimensions int
	User       string
	Provider   string
	Logger     *zap.Logger
}

// NewEncoder creates an OpenAI-compatible encoder.
func NewEncoder(cfg *Config) *Encoder {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	imageModel := cfg.ImageModel
	if imageModel == "" {
		imageModel = cfg.TextModel
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Encoder{
		client:     openai.NewClientWithConfig(clientCfg),
		textModel:  openai.EmbeddingModel(cfg.TextModel),
		imageModel: openai.EmbeddingModel(imageModel),
		dimensions: cfg.Dimensions,
		user:       cfg.User,
		provider:   cfg.Provider,
		logger:     logger,
	}
}

// Embed implements domain.Embedder.
func (e *Encoder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	return e.create(ctx, "text", e.textModel, text)
}

// EmbedImage implements domain.ImageEmbedder.
func (e *Encoder) EmbedImage(ctx context.Context, image []byte) (domain.EmbeddingResult, error) {
	if len(image) == 0 {
		return domain.EmbeddingResult{}, domain.Errorf(domain.KindValidation, "encoder.image", "image is empty")
	}
	return e.create(ctx, "image", e.imageModel, dataURL(image))
}

func (e *Encoder) create(
	ctx context.Context, modality string, model openai.EmbeddingModel, input string,
) (domain.EmbeddingResult, error) {
	req := openai.EmbeddingRequest{
		Input:          []string{input},
		Model:          model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
		User:           e.user,
	}
	if e.dimensions > 0 {
		req.Dimensions = e.dimensions
	}

	start := time.Now()
	resp, err := e.client.CreateEmbeddings(ctx, req)
	duration := time.Since(start)

	m := string(model)
	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, m, modality, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(e.provider, m, "api_error").Inc()
		e.logger.Debug("Embedding API call failed",
			zap.String("modality", modality), zap.Duration("duration", duration), zap.Error(err))
		return domain.EmbeddingResult{}, parseAPIError(err)
	}

	if len(resp.Data) == 0 {
		metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, m, modality, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(e.provider, m, "empty_response").Inc()
		return domain.EmbeddingResult{}, fmt.Errorf("empty embedding response: %w", domain.ErrEmbeddingProviderError)
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, m, modality, "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(e.provider, m, modality).Observe(duration.Seconds())

	if resp.Usage.TotalTokens > 0 {
		metrics.EmbeddingTokensTotal.WithLabelValues(e.provider, m, "prompt").Add(float64(resp.Usage.PromptTokens))
		metrics.EmbeddingTokensTotal.WithLabelValues(e.provider, m, "total").Add(float64(resp.Usage.TotalTokens))
	}

	return domain.EmbeddingResult{
		Embedding:    resp.Data[0].Embedding,
		PromptTokens: resp.Usage.PromptTokens,
		TotalTokens:  resp.Usage.TotalTokens,
	}, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (e *Encoder) HealthCheck(ctx context.Context) error {
	if _, err := e.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

func dataURL(image []byte) string {
	return "data:" + http.DetectContentType(image) + ";base64," + base64.StdEncoding.EncodeToString(image)
}

// parseAPIError extracts a readable message from the provider response.
// Errors wrap domain.ErrEmbeddingProviderError, plus domain.ErrRateLimited on 429.
func parseAPIError(err error) error {
	status, msg := 0, ""

	var reqErr *openai.RequestError
	var apiErr *openai.APIError
	switch {
	case errors.As(err, &reqErr):
		status, msg = reqErr.HTTPStatusCode, extractDetail(reqErr.Body)
		if msg == "" {
			msg = string(reqErr.Body)
		}
	case errors.As(err, &apiErr):
		status, msg = apiErr.HTTPStatusCode, apiErr.Message
	default:
		return fmt.Errorf("embedding request failed: %v: %w", err, domain.ErrEmbeddingProviderError)
	}

	if status == http.StatusTooManyRequests {
		return fmt.Errorf("embedding API error %d: %s: %w", status, msg,
			errors.Join(domain.ErrEmbeddingProviderError, domain.ErrRateLimited))
	}
	return fmt.Errorf("embedding API error %d: %s: %w", status, msg, domain.ErrEmbeddingProviderError)
}

// extractDetail extracts the "detail" field from a JSON error body (Nebius error format).
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
