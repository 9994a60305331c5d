package search

import (
	"slices"

	"github.com/kailas-cloud/matsearch/internal/domain/material"
)

// rrfK is the Reciprocal Rank Fusion constant (standard value from Cormack et al. 2009).
const rrfK = 60

// fuseRRF merges vector and full-text hits via Reciprocal Rank Fusion.
// score(d) = sum of 1/(k + rank_i(d)) for each ranking where d appears,
// rescaled so a document ranked first in both lists scores 1.
// When a material appears in both lists, the vector hit is kept.
func fuseRRF(knn, text []material.Scored, topK int) []material.Scored {
	if topK <= 0 {
		return []material.Scored{}
	}
	scores := make(map[string]float64, len(knn)+len(text))
	merged := make([]material.Scored, 0, len(knn)+len(text))

	for rank, m := range knn {
		scores[m.ID] = 1.0 / float64(rrfK+rank+1)
		merged = append(merged, m)
	}
	for rank, m := range text {
		s := 1.0 / float64(rrfK+rank+1)
		if _, ok := scores[m.ID]; !ok {
			merged = append(merged, m)
		}
		scores[m.ID] += s
	}

	best := 2.0 / float64(rrfK+1)
	for i := range merged {
		merged[i].Score = scores[merged[i].ID] / best
	}

	slices.SortStableFunc(merged, func(a, b material.Scored) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})

	if len(merged) > topK {
		merged = merged[:topK]
	}
	return merged
}
