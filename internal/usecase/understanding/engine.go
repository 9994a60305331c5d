// Package understanding turns raw queries into embeddings and expanded query text.
package understanding

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/matsearch/internal/domain"
	"github.com/kailas-cloud/matsearch/internal/domain/concept"
	"github.com/kailas-cloud/matsearch/internal/domain/conversation"
	"github.com/kailas-cloud/matsearch/internal/logger"
	"github.com/kailas-cloud/matsearch/internal/metrics"
	"github.com/kailas-cloud/matsearch/internal/repository/queryhistory"
)

// Defaults applied when Options or Params leave a field zero.
const (
	DefaultMinConfidence   = 0.7
	DefaultMaxRelatedTerms = 5
	DefaultConceptLimit    = 10

	// NoMatchConfidence is reported when no concept clears the threshold.
	NoMatchConfidence = 0.5
	// RecentItemSimilarity is the cosine a viewed item must exceed to personalize a query.
	RecentItemSimilarity = 0.7

	maxAppendedConcepts = 3
	backgroundTimeout   = 5 * time.Second
)

// Options configures an Engine.
type Options struct {
	MinConfidence   float64
	MaxRelatedTerms int
	ConceptLimit    int
}

// Params tunes a single Enhance call. Zero values fall back to the engine options.
type Params struct {
	Domain          string
	UserID          string
	MinConfidence   float64
	MaxRelatedTerms int
}

// Enhancement is the outcome of query understanding.
type Enhancement struct {
	OriginalQuery string
	EnhancedQuery string
	RelatedTerms  []string
	Embedding     []float32
	Confidence    float64
	Matches       []concept.Match
	TokensUsed    int
}

// HasEmbedding reports whether the query was vectorized.
func (e Enhancement) HasEmbedding() bool { return len(e.Embedding) > 0 }

// Engine expands queries with nearby semantic concepts.
type Engine struct {
	encoder  Encoder
	concepts ConceptStore
	history  HistoryRecorder
	pool     Submitter
	opts     Options
	logger   *zap.Logger
}

// New creates a query understanding engine.
func New(
	encoder Encoder, concepts ConceptStore, history HistoryRecorder, pool Submitter,
	opts Options, logger *zap.Logger,
) *Engine {
	if opts.MinConfidence <= 0 {
		opts.MinConfidence = DefaultMinConfidence
	}
	if opts.MaxRelatedTerms <= 0 {
		opts.MaxRelatedTerms = DefaultMaxRelatedTerms
	}
	if opts.ConceptLimit <= 0 {
		opts.ConceptLimit = DefaultConceptLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		encoder:  encoder,
		concepts: concepts,
		history:  history,
		pool:     pool,
		opts:     opts,
		logger:   logger,
	}
}

// Enhance embeds query, finds matching concepts and builds the expanded query.
// It never fails: an encoder error yields the query unchanged with zero confidence.
// cc, when non-nil, personalizes the expansion.
func (e *Engine) Enhance(ctx context.Context, query string, p Params, cc *conversation.Context) Enhancement {
	out := Enhancement{
		OriginalQuery: query,
		EnhancedQuery: query,
		RelatedTerms:  []string{},
	}
	if strings.TrimSpace(query) == "" {
		return out
	}

	minConf := p.MinConfidence
	if minConf <= 0 {
		minConf = e.opts.MinConfidence
	}
	maxRelated := p.MaxRelatedTerms
	if maxRelated <= 0 {
		maxRelated = e.opts.MaxRelatedTerms
	}

	emb, err := e.encoder.Embed(ctx, query)
	if err != nil {
		e.log(ctx).Warn("query embedding failed, using raw query", zap.Error(err))
		return out
	}
	out.Embedding = emb.Embedding
	out.TokensUsed = emb.TotalTokens

	out.Matches = e.searchConcepts(ctx, emb.Embedding, p.Domain, minConf)
	out.RelatedTerms = relatedTerms(out.Matches, maxRelated)
	out.EnhancedQuery = appendConceptTerms(query, out.Matches)
	if cc != nil {
		out.EnhancedQuery = personalize(out.EnhancedQuery, query, out.RelatedTerms, emb.Embedding, cc)
	}

	out.Confidence = NoMatchConfidence
	if len(out.Matches) > 0 {
		out.Confidence = out.Matches[0].Similarity
	}

	e.recordAsync(ctx, out, p)
	return out
}

// searchConcepts queries the requested domain, then the general partition
// when the domain has no matches. Store errors count as no matches.
func (e *Engine) searchConcepts(ctx context.Context, vec []float32, domainContext string, threshold float64) []concept.Match {
	if domainContext == "" {
		domainContext = concept.GeneralDomain
	}
	matches, err := e.concepts.Search(ctx, vec, domainContext, threshold, e.opts.ConceptLimit)
	if err != nil {
		e.log(ctx).Warn("concept search failed", zap.String("domain", domainContext), zap.Error(err))
	}
	if len(matches) > 0 || domainContext == concept.GeneralDomain {
		return matches
	}

	matches, err = e.concepts.Search(ctx, vec, concept.GeneralDomain, threshold, e.opts.ConceptLimit)
	if err != nil {
		e.log(ctx).Warn("general concept search failed", zap.Error(err))
	}
	return matches
}

func relatedTerms(matches []concept.Match, limit int) []string {
	out := make([]string, 0, limit)
	seen := make(map[string]bool)
	for _, m := range matches {
		self := strings.ToLower(m.Concept.Term())
		for _, t := range m.Concept.RelatedTerms() {
			key := strings.ToLower(strings.TrimSpace(t))
			if key == "" || key == self || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, t)
			if len(out) == limit {
				return out
			}
		}
	}
	return out
}

func appendConceptTerms(query string, matches []concept.Match) string {
	terms := make([]string, 0, maxAppendedConcepts)
	seen := map[string]bool{strings.ToLower(strings.TrimSpace(query)): true}
	for _, m := range matches {
		if len(terms) == maxAppendedConcepts {
			break
		}
		key := strings.ToLower(m.Concept.Term())
		if seen[key] {
			continue
		}
		seen[key] = true
		terms = append(terms, m.Concept.Term())
	}
	if len(terms) == 0 {
		return query
	}
	return query + " " + strings.Join(terms, " ")
}

// personalize appends at most one signal from the session: the first
// preference term sharing a word with the query or its related terms, else
// the id of the first recently viewed item close to the query vector.
func personalize(enhanced, query string, related []string, vec []float32, cc *conversation.Context) string {
	lowered := strings.ToLower(enhanced)
	vocab := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(query + " " + strings.Join(related, " "))) {
		vocab[w] = true
	}

	for _, pref := range cc.Preferences.Terms {
		p := strings.ToLower(strings.TrimSpace(pref))
		if p == "" || strings.Contains(lowered, p) {
			continue
		}
		for _, w := range strings.Fields(p) {
			if vocab[w] {
				return enhanced + " " + pref
			}
		}
	}

	for _, item := range cc.Preferences.RecentItems {
		if len(item.Embedding) == 0 || item.ID == "" {
			continue
		}
		if domain.Cosine(vec, item.Embedding) > RecentItemSimilarity {
			return enhanced + " " + item.ID
		}
	}
	return enhanced
}

// recordAsync stores the query in history and bumps the top concept's
// popularity. Both writes are best-effort.
func (e *Engine) recordAsync(ctx context.Context, enh Enhancement, p Params) {
	if e.pool == nil {
		return
	}
	bg := context.WithoutCancel(ctx)
	log := e.log(ctx)

	if e.history != nil {
		entry := queryhistory.Entry{
			Query:     enh.OriginalQuery,
			Enhanced:  enh.EnhancedQuery,
			Embedding: enh.Embedding,
			UserID:    p.UserID,
			Domain:    p.Domain,
			Timestamp: time.Now(),
		}
		e.submit(log, "query_history", func() error {
			tctx, cancel := context.WithTimeout(bg, backgroundTimeout)
			defer cancel()
			_, err := e.history.Record(tctx, entry)
			return err
		})
	}

	if len(enh.Matches) > 0 {
		id := enh.Matches[0].Concept.ID()
		e.submit(log.With(zap.String("concept_id", id)), "concept_popularity", func() error {
			tctx, cancel := context.WithTimeout(bg, backgroundTimeout)
			defer cancel()
			return e.concepts.IncrementPopularity(tctx, id)
		})
	}
}

func (e *Engine) submit(log *zap.Logger, task string, fn func() error) {
	err := e.pool.Submit(func() {
		if err := fn(); err != nil {
			metrics.BackgroundTasksTotal.WithLabelValues(task, "error").Inc()
			log.Warn("background write failed", zap.String("task", task), zap.Error(err))
			return
		}
		metrics.BackgroundTasksTotal.WithLabelValues(task, "ok").Inc()
	})
	if err != nil {
		metrics.BackgroundTasksTotal.WithLabelValues(task, "rejected").Inc()
		log.Warn("background write rejected", zap.String("task", task), zap.Error(err))
	}
}

func (e *Engine) log(ctx context.Context) *zap.Logger {
	return logger.FromContextOr(ctx, e.logger)
}
