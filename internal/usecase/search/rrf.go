package search

import (
	"sort"

	"github.com/kailas-cloud/finsight/internal/domain/search/result"
)

// fuseRRF merges dense and sparse rankings via Reciprocal Rank Fusion.
// score(d) = sum of 1/(k + rank_i(d)) over the rankings where d appears, rank 1-based.
// When a candidate appears in both lists, the dense copy is kept and its sparse score merged in.
// Ties are broken by id so the order is deterministic.
func fuseRRF(dense, sparse []result.Candidate, k, topN int) []result.Candidate {
	type scored struct {
		c      result.Candidate
		scores result.Scores
	}

	merged := make(map[string]*scored, len(dense)+len(sparse))
	order := make([]string, 0, len(dense)+len(sparse))

	for rank, c := range dense {
		s := c.Scores()
		s.Fused = 1.0 / float64(k+rank+1)
		merged[c.ID()] = &scored{c: c, scores: s}
		order = append(order, c.ID())
	}

	for rank, c := range sparse {
		contrib := 1.0 / float64(k+rank+1)
		if existing, ok := merged[c.ID()]; ok {
			existing.scores.Fused += contrib
			existing.scores.Sparse = c.Scores().Sparse
			continue
		}
		s := c.Scores()
		s.Fused = contrib
		merged[c.ID()] = &scored{c: c, scores: s}
		order = append(order, c.ID())
	}

	out := make([]result.Candidate, 0, len(merged))
	for _, id := range order {
		m := merged[id]
		out = append(out, m.c.WithScores(m.scores))
	}

	sort.SliceStable(out, func(i, j int) bool {
		si, sj := out[i].Scores().Fused, out[j].Scores().Fused
		if si != sj {
			return si > sj
		}
		return out[i].ID() < out[j].ID()
	})

	if len(out) > topN {
		out = out[:topN]
	}
	return out
}
