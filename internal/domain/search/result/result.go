// Package result defines the search response envelope shared by the local
// and remote execution paths.
package result

import (
	"github.com/kailas-cloud/matsearch/internal/domain/material"
	"github.com/kailas-cloud/matsearch/internal/domain/search/kind"
)

// Envelope is the full search response.
type Envelope struct {
	Materials        []material.Scored `json:"materials"`
	KnowledgeEntries []KnowledgeEntry  `json:"knowledge_entries"`
	Relationships    []Relationship    `json:"relationships"`
	Metadata         Metadata          `json:"metadata"`
}

// KnowledgeEntry is a domain concept relevant to the query.
type KnowledgeEntry struct {
	ID           string   `json:"id"`
	Term         string   `json:"term"`
	Domain       string   `json:"domain"`
	RelatedTerms []string `json:"related_terms,omitempty"`
	Similarity   float64  `json:"similarity"`
}

// Relationship links two entities of the envelope.
type Relationship struct {
	SourceID string  `json:"source_id"`
	TargetID string  `json:"target_id"`
	Type     string  `json:"type"`
	Strength float64 `json:"strength"`
}

// RelationMentions links a material to a concept whose term appears in it.
const RelationMentions = "mentions"

// Metadata describes how the envelope was produced.
type Metadata struct {
	SearchStrategy   kind.Strategy     `json:"search_strategy"`
	Confidence       float64           `json:"confidence"`
	ProcessingTimeMS int64             `json:"processing_time_ms"`
	Total            int               `json:"total"`
	OriginalQuery    string            `json:"original_query,omitempty"`
	EnhancedQuery    string            `json:"enhanced_query,omitempty"`
	InterpretedQuery string            `json:"interpreted_query,omitempty"`
	RelatedTerms     []string          `json:"related_terms,omitempty"`
	SessionID        string            `json:"session_id,omitempty"`
	Domain           string            `json:"domain,omitempty"`
	Entities         map[string]string `json:"entities,omitempty"`
	Insights         *Insights         `json:"insights,omitempty"`
	CreditsUsed      int64             `json:"credits_used"`
	Attempts         int               `json:"attempts,omitempty"`
	FallbackReason   string            `json:"fallback_reason,omitempty"`
}

// Insights explains a domain ranking.
type Insights struct {
	KeyAttributes []string        `json:"key_attributes"`
	Primary       *Recommendation `json:"primary,omitempty"`
	Alternatives  []Alternative   `json:"alternatives,omitempty"`
}

// Recommendation is the top-ranked material with its key attributes.
type Recommendation struct {
	MaterialID string   `json:"material_id"`
	Name       string   `json:"name"`
	Reasons    []string `json:"reasons"`
}

// Alternative is a runner-up annotated with how it differs from the primary.
type Alternative struct {
	MaterialID  string `json:"material_id"`
	Name        string `json:"name"`
	Distinction string `json:"distinction"`
}

// MaterialIDs returns ids of the materials in order.
func (e *Envelope) MaterialIDs() []string {
	ids := make([]string, len(e.Materials))
	for i := range e.Materials {
		ids[i] = e.Materials[i].ID
	}
	return ids
}
