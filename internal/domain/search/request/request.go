package request

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/matsearch/internal/domain"
	"github.com/kailas-cloud/matsearch/internal/domain/ontology"
	"github.com/kailas-cloud/matsearch/internal/domain/search/filter"
	"github.com/kailas-cloud/matsearch/internal/domain/search/kind"
)

// Search parameter limits.
const (
	// MaxQueryLength is the maximum allowed search query length.
	MaxQueryLength = 4096
	// MaxImageBytes bounds the decoded image payload.
	MaxImageBytes = 8 << 20
	DefaultLimit  = 20
	MaxLimit      = 100
	// MaxOffset bounds pagination depth; the local path fetches offset+limit candidates.
	MaxOffset = 1000
)

// Request is a validated search request.
type Request struct {
	Kind           kind.Kind
	Query          string
	Image          []byte
	ImageEmbedding []float32
	TextWeight     float64
	ImageWeight    float64
	Domain         ontology.Type
	SessionID      string
	UserID         string
	Filters        filter.Set
	Limit          int
	Offset         int
}

// Params are raw request parameters before validation.
type Params struct {
	Query          string
	Image          []byte
	ImageEmbedding []float32
	TextWeight     *float64
	ImageWeight    *float64
	Domain         string
	SessionID      string
	UserID         string
	Filters        map[string]string
	Limit          int
	Offset         int
}

// Limits bounds pagination; zero values fall back to package defaults.
type Limits struct {
	Default   int
	Max       int
	MaxOffset int
}

// New validates params for kind k. Failures carry domain.KindValidation.
func New(k kind.Kind, p Params, lim Limits) (Request, error) {
	const op = "search.request"

	if !k.IsValid() {
		return Request{}, domain.Errorf(domain.KindValidation, op, "unknown search kind %q", k)
	}
	query := strings.TrimSpace(p.Query)
	if len(query) > MaxQueryLength {
		return Request{}, domain.Errorf(domain.KindValidation, op, "query too long (max %d chars)", MaxQueryLength)
	}
	if len(p.Image) > MaxImageBytes {
		return Request{}, domain.Errorf(domain.KindValidation, op, "image too large (max %d bytes)", MaxImageBytes)
	}

	hasImage := len(p.Image) > 0 || len(p.ImageEmbedding) > 0
	switch k {
	case kind.Multimodal:
		if query == "" && !hasImage {
			return Request{}, domain.Errorf(domain.KindValidation, op, "query or image is required")
		}
	case kind.Conversational, kind.Domain:
		if query == "" {
			return Request{}, domain.Errorf(domain.KindValidation, op, "query is required")
		}
	}

	var dom ontology.Type
	if p.Domain != "" {
		t, err := ontology.Parse(p.Domain)
		if err != nil {
			return Request{}, domain.E(domain.KindValidation, op, err)
		}
		dom = t
	}
	if k == kind.Domain && dom == "" {
		return Request{}, domain.Errorf(domain.KindValidation, op, "domain is required")
	}

	tw, iw := 0.5, 0.5
	if p.TextWeight != nil {
		tw = *p.TextWeight
	}
	if p.ImageWeight != nil {
		iw = *p.ImageWeight
	}
	if tw < 0 || iw < 0 {
		return Request{}, domain.Errorf(domain.KindValidation, op, "weights must be non-negative")
	}
	if query != "" && hasImage && tw+iw == 0 {
		return Request{}, domain.Errorf(domain.KindValidation, op, "at least one weight must be positive")
	}

	filters, err := filter.FromMap(p.Filters)
	if err != nil {
		return Request{}, domain.E(domain.KindValidation, op, fmt.Errorf("filters: %w", err))
	}

	if p.Offset < 0 {
		return Request{}, domain.Errorf(domain.KindValidation, op, "offset must be non-negative")
	}
	if maxOffset := maxOffsetOf(lim); p.Offset > maxOffset {
		return Request{}, domain.Errorf(domain.KindValidation, op, "offset too large (max %d)", maxOffset)
	}

	return Request{
		Kind:           k,
		Query:          query,
		Image:          p.Image,
		ImageEmbedding: p.ImageEmbedding,
		TextWeight:     tw,
		ImageWeight:    iw,
		Domain:         dom,
		SessionID:      strings.TrimSpace(p.SessionID),
		UserID:         strings.TrimSpace(p.UserID),
		Filters:        filters,
		Limit:          clampLimit(p.Limit, lim),
		Offset:         p.Offset,
	}, nil
}

func clampLimit(limit int, lim Limits) int {
	def, maxLimit := lim.Default, lim.Max
	if def <= 0 {
		def = DefaultLimit
	}
	if maxLimit <= 0 {
		maxLimit = MaxLimit
	}
	if limit <= 0 {
		limit = def
	}
	return min(limit, maxLimit)
}

func maxOffsetOf(lim Limits) int {
	if lim.MaxOffset <= 0 {
		return MaxOffset
	}
	return lim.MaxOffset
}

// HasImage reports whether the request carries an image payload or embedding.
func (r *Request) HasImage() bool {
	return len(r.Image) > 0 || len(r.ImageEmbedding) > 0
}

// EffectiveDomain returns the request domain or ontology.General.
func (r *Request) EffectiveDomain() ontology.Type {
	if r.Domain == "" {
		return ontology.General
	}
	return r.Domain
}
