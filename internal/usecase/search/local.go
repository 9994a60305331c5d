package search

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/matsearch/internal/domain"
	domconv "github.com/kailas-cloud/matsearch/internal/domain/conversation"
	"github.com/kailas-cloud/matsearch/internal/domain/material"
	"github.com/kailas-cloud/matsearch/internal/domain/ontology"
	"github.com/kailas-cloud/matsearch/internal/domain/search/filter"
	"github.com/kailas-cloud/matsearch/internal/domain/search/request"
	"github.com/kailas-cloud/matsearch/internal/domain/search/result"
	"github.com/kailas-cloud/matsearch/internal/logger"
	"github.com/kailas-cloud/matsearch/internal/usecase/conversation"
	"github.com/kailas-cloud/matsearch/internal/usecase/fusion"
	"github.com/kailas-cloud/matsearch/internal/usecase/ranking"
	"github.com/kailas-cloud/matsearch/internal/usecase/understanding"
)

// local serves req from the local stores.
func (s *Service) local(ctx context.Context, req *request.Request, conv *domconv.Context) (*result.Envelope, error) {
	const op = "search.local"
	ctx, span := tracer.Start(ctx, op)
	defer span.End()
	log := logger.FromContextOr(ctx, s.logger)

	var (
		enh      understanding.Enhancement
		imageVec []float32
		imageErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	if req.Query != "" && s.deps.Understander != nil {
		g.Go(func() error {
			enh = s.deps.Understander.Enhance(gctx, req.Query, understanding.Params{
				Domain: string(req.Domain),
				UserID: req.UserID,
			}, conv)
			return nil
		})
	}
	if req.HasImage() {
		g.Go(func() error {
			imageVec, imageErr = s.imageVector(gctx, req)
			return nil
		})
	}
	_ = g.Wait()

	if imageErr != nil {
		if req.Query == "" {
			return nil, domain.E(domain.KindAvailability, op, imageErr)
		}
		log.Warn("image embedding failed, searching by text only", zap.Error(imageErr))
	}

	text := req.Query
	if enh.EnhancedQuery != "" {
		text = enh.EnhancedQuery
	}
	if conv != nil && text != "" {
		text = conversation.ResolveFollowUp(req.Query, text, conv)
	}

	filters := req.Filters
	o := s.ontologyFor(req)
	if o != nil {
		text = ranking.ExpandQuery(text, o)
		filters = ranking.ApplyFilters(filters, o)
	}

	vec, hasVec := fusion.Fuse(enh.Embedding, imageVec, req.TextWeight, req.ImageWeight)
	hits, total, err := s.retrieve(ctx, text, vec, hasVec, filters, req.Offset+req.Limit)
	if err != nil {
		return nil, domain.E(domain.KindOf(err), op, err)
	}
	span.SetAttributes(attribute.Int("search.candidates", len(hits)))

	env := &result.Envelope{
		Metadata: result.Metadata{
			SearchStrategy:   req.Kind.LocalStrategy(),
			Total:            total,
			OriginalQuery:    req.Query,
			EnhancedQuery:    enh.EnhancedQuery,
			InterpretedQuery: text,
			RelatedTerms:     enh.RelatedTerms,
		},
	}
	if req.Query != "" {
		env.Metadata.Confidence = enh.Confidence
	}

	if o != nil {
		hits = ranking.Rank(hits, o)
		env.Metadata.Insights = ranking.ExtractInsights(hits, o)
	}
	env.Materials = page(hits, req.Offset, req.Limit)
	env.KnowledgeEntries, env.Relationships = knowledge(enh, env.Materials)
	return env, nil
}

// ontologyFor returns the ontology driving domain ranking, or nil when the
// request names no domain.
func (s *Service) ontologyFor(req *request.Request) *ontology.Ontology {
	if req.Domain == "" || s.deps.Ontologies == nil {
		return nil
	}
	return s.deps.Ontologies.Get(req.Domain)
}

func (s *Service) imageVector(ctx context.Context, req *request.Request) ([]float32, error) {
	if len(req.ImageEmbedding) > 0 {
		return domain.Normalize(req.ImageEmbedding), nil
	}
	if s.deps.Images == nil {
		return nil, domain.ErrEmbeddingProviderError
	}
	res, err := s.deps.Images.EmbedImage(ctx, req.Image)
	if err != nil {
		return nil, err
	}
	return res.Embedding, nil
}

// retrieve runs vector and full-text retrieval for k candidates. With both
// available the lists are merged by RRF; a failing full-text search leaves
// the vector hits in place.
func (s *Service) retrieve(
	ctx context.Context, text string, vec []float32, hasVec bool, filters filter.Set, k int,
) ([]material.Scored, int, error) {
	log := logger.FromContextOr(ctx, s.logger)

	var (
		knn, bm25       []material.Scored
		textTotal       int
		knnErr, bm25Err error
		ranKNN, ranText bool
	)
	g, gctx := errgroup.WithContext(ctx)
	if hasVec {
		ranKNN = true
		g.Go(func() error {
			knn, knnErr = s.deps.Materials.SearchSimilar(gctx, vec, filters, k)
			return nil
		})
	}
	if strings.TrimSpace(text) != "" {
		ranText = true
		g.Go(func() error {
			bm25, textTotal, bm25Err = s.deps.Materials.SearchText(gctx, text, filters, 0, k)
			return nil
		})
	}
	_ = g.Wait()

	if ranKNN && knnErr != nil {
		if !ranText || bm25Err != nil {
			return nil, 0, knnErr
		}
		log.Warn("vector search failed, using full-text hits", zap.Error(knnErr))
		ranKNN = false
	}
	if ranText && bm25Err != nil {
		if !ranKNN {
			return nil, 0, bm25Err
		}
		log.Warn("full-text search failed, using vector hits", zap.Error(bm25Err))
		ranText = false
	}

	switch {
	case ranKNN && ranText:
		merged := fuseRRF(knn, bm25, k)
		return merged, max(len(merged), textTotal), nil
	case ranKNN:
		return knn, len(knn), nil
	case ranText:
		return fuseRRF(nil, bm25, k), textTotal, nil
	default:
		return []material.Scored{}, 0, nil
	}
}

func page(hits []material.Scored, offset, limit int) []material.Scored {
	if offset < 0 || limit <= 0 || offset >= len(hits) {
		return []material.Scored{}
	}
	return hits[offset : offset+min(limit, len(hits)-offset)]
}

// knowledge lists the matched concepts and links each returned material to
// the concepts whose term its text mentions.
func knowledge(enh understanding.Enhancement, materials []material.Scored) ([]result.KnowledgeEntry, []result.Relationship) {
	entries := make([]result.KnowledgeEntry, 0, len(enh.Matches))
	rels := []result.Relationship{}
	for _, m := range enh.Matches {
		c := m.Concept
		entries = append(entries, result.KnowledgeEntry{
			ID:           c.ID(),
			Term:         c.Term(),
			Domain:       c.DomainContext(),
			RelatedTerms: c.RelatedTerms(),
			Similarity:   m.Similarity,
		})
		term := strings.ToLower(c.Term())
		for i := range materials {
			if strings.Contains(strings.ToLower(materials[i].Text()), term) {
				rels = append(rels, result.Relationship{
					SourceID: materials[i].ID,
					TargetID: c.ID(),
					Type:     result.RelationMentions,
					Strength: m.Similarity,
				})
			}
		}
	}
	return entries, rels
}
