package search

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/blas/blas32"

	"github.com/kailas-cloud/finsight/internal/domain/search/result"
)

// maxSim scores a document against the query multivector: for every query token
// the best cosine similarity to any document token, summed over query tokens.
// Zero-norm tokens and tokens of mismatched dimension contribute nothing.
func maxSim(query, doc [][]float32) float64 {
	if len(query) == 0 || len(doc) == 0 {
		return 0
	}

	docNorms := make([]float32, len(doc))
	for j, d := range doc {
		docNorms[j] = blas32.Nrm2(vec(d))
	}

	var total float64
	for _, q := range query {
		qv := vec(q)
		qn := blas32.Nrm2(qv)
		if qn == 0 {
			continue
		}
		best := math.Inf(-1)
		for j, d := range doc {
			if docNorms[j] == 0 || len(d) != len(q) {
				continue
			}
			sim := float64(blas32.Dot(qv, vec(d))) / (float64(qn) * float64(docNorms[j]))
			if sim > best {
				best = sim
			}
		}
		if !math.IsInf(best, -1) {
			total += best
		}
	}
	return total
}

func vec(v []float32) blas32.Vector {
	return blas32.Vector{N: len(v), Inc: 1, Data: v}
}

// rerank sets the late-interaction score of every candidate and orders them by it.
// Ties fall back to the fused score, then to id.
func rerank(query [][]float32, candidates []result.Candidate) []result.Candidate {
	out := make([]result.Candidate, len(candidates))
	for i, c := range candidates {
		s := c.Scores()
		s.LateInteraction = maxSim(query, c.Multivector())
		out[i] = c.WithScores(s)
	}
	orderByLateInteraction(out)
	return out
}

func orderByLateInteraction(out []result.Candidate) {
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Scores(), out[j].Scores()
		if a.LateInteraction != b.LateInteraction {
			return a.LateInteraction > b.LateInteraction
		}
		if a.Fused != b.Fused {
			return a.Fused > b.Fused
		}
		return out[i].ID() < out[j].ID()
	})
}

// normalize divides every late-interaction score by the maximum and reports how
// many candidates it dropped. Candidates with a non-positive raw score are dropped
// so that normalized scores stay in (0, 1].
// The input must already be ordered by late-interaction score.
func normalize(ranked []result.Candidate) (out []result.Result, dropped int) {
	out = make([]result.Result, 0, len(ranked))
	if len(ranked) == 0 {
		return out, 0
	}
	top := ranked[0].Scores().LateInteraction
	if top <= 0 {
		return out, len(ranked)
	}
	for _, c := range ranked {
		raw := c.Scores().LateInteraction
		if raw <= 0 {
			dropped++
			continue
		}
		out = append(out, result.New(c, raw, raw/top))
	}
	return out, dropped
}
