package matsearch

import "github.com/kailas-cloud/matsearch/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrValidation             = domain.ErrValidation
	ErrNotFound               = domain.ErrNotFound
	ErrUnavailable            = domain.ErrUnavailable
	ErrInsufficientCredits    = domain.ErrInsufficientCredits
	ErrVectorDimMismatch      = domain.ErrVectorDimMismatch
	ErrRateLimited            = domain.ErrRateLimited
	ErrEmbeddingQuotaExceeded = domain.ErrEmbeddingQuotaExceeded
	ErrEmbeddingProviderError = domain.ErrEmbeddingProviderError
)

// QuotaError carries the required and available credits of a rejected search.
// Use errors.As() to extract it.
type QuotaError = domain.QuotaError
