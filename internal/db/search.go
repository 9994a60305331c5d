package db

import "github.com/kailas-cloud/matsearch/internal/domain/search/filter"

// VectorField is the hash field holding the embedding in every vector index.
const VectorField = "vector"

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName    string
	Filters      filter.Set
	Vector       []float32
	K            int
	ReturnFields []string
}

// TextQuery is the input for BM25 full-text search over one TEXT field.
type TextQuery struct {
	IndexName    string
	Field        string
	Query        string
	Filters      filter.Set
	Offset       int
	Limit        int
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit. For KNN queries Score is the
// cosine similarity clamped to [0,1]; for text queries it is the BM25 score.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
