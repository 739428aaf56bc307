package search

import (
	"math"
	"testing"

	"github.com/kailas-cloud/finsight/internal/domain/search/result"
)

func TestMaxSim(t *testing.T) {
	tests := []struct {
		name  string
		query [][]float32
		doc   [][]float32
		want  float64
	}{
		{"identical tokens", [][]float32{{1, 0}, {0, 1}}, [][]float32{{1, 0}, {0, 1}}, 2},
		{"best match per query token", [][]float32{{1, 0}}, [][]float32{{0, 1}, {1, 1}, {2, 0}}, 1},
		{"orthogonal", [][]float32{{1, 0}}, [][]float32{{0, 3}}, 0},
		{"scale invariant", [][]float32{{2, 0}}, [][]float32{{5, 0}}, 1},
		{"empty doc", [][]float32{{1, 0}}, nil, 0},
		{"zero query token ignored", [][]float32{{0, 0}, {1, 0}}, [][]float32{{1, 0}}, 1},
		{"dimension mismatch ignored", [][]float32{{1, 0, 0}}, [][]float32{{1, 0}}, 0},
		{"negative similarity", [][]float32{{1, 0}}, [][]float32{{-1, 0}}, -1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := maxSim(tc.query, tc.doc)
			if math.Abs(got-tc.want) > 1e-6 {
				t.Errorf("maxSim = %f, want %f", got, tc.want)
			}
		})
	}
}

func TestRerank_OrdersByLateInteraction(t *testing.T) {
	query := [][]float32{{1, 0}, {0, 1}}
	candidates := []result.Candidate{
		result.NewCandidate("weak", "", nil, [][]float32{{1, 1}}).WithScores(result.Scores{Fused: 0.03}),
		result.NewCandidate("strong", "", nil, [][]float32{{1, 0}, {0, 1}}).WithScores(result.Scores{Fused: 0.01}),
	}

	ranked := rerank(query, candidates)
	if ranked[0].ID() != "strong" {
		t.Fatalf("expected strong first, got %s", ranked[0].ID())
	}
	if ranked[0].Scores().Fused != 0.01 {
		t.Errorf("fused score not preserved: %f", ranked[0].Scores().Fused)
	}
	if math.Abs(ranked[0].Scores().LateInteraction-2) > 1e-6 {
		t.Errorf("late interaction = %f, want 2", ranked[0].Scores().LateInteraction)
	}
}

func TestRerank_TieBreaksOnFusedScore(t *testing.T) {
	query := [][]float32{{1, 0}}
	same := [][]float32{{1, 0}}
	candidates := []result.Candidate{
		result.NewCandidate("b", "", nil, same).WithScores(result.Scores{Fused: 0.01}),
		result.NewCandidate("a", "", nil, same).WithScores(result.Scores{Fused: 0.02}),
	}
	ranked := rerank(query, candidates)
	if ranked[0].ID() != "a" {
		t.Errorf("expected a first, got %s", ranked[0].ID())
	}
}

func withLateInteraction(id string, raw float64) result.Candidate {
	return makeCandidate(id).WithScores(result.Scores{LateInteraction: raw})
}

func TestNormalize(t *testing.T) {
	out, dropped := normalize([]result.Candidate{
		withLateInteraction("a", 8),
		withLateInteraction("b", 4),
		withLateInteraction("c", 2),
	})
	if len(out) != 3 || dropped != 0 {
		t.Fatalf("expected 3 results and none dropped, got %d and %d", len(out), dropped)
	}
	if out[0].Score() != 1 {
		t.Errorf("top score = %f, want 1", out[0].Score())
	}
	if out[1].Score() != 0.5 || out[2].Score() != 0.25 {
		t.Errorf("scores = %f, %f", out[1].Score(), out[2].Score())
	}
	if out[1].RawScore() != 4 {
		t.Errorf("raw score = %f, want 4", out[1].RawScore())
	}
}

func TestNormalize_Empty(t *testing.T) {
	out, dropped := normalize(nil)
	if out == nil || len(out) != 0 || dropped != 0 {
		t.Fatalf("expected empty non-nil slice, got %v", out)
	}
}

func TestNormalize_DropsNonPositive(t *testing.T) {
	out, dropped := normalize([]result.Candidate{
		withLateInteraction("a", 3),
		withLateInteraction("b", 0),
		withLateInteraction("c", -1),
	})
	if len(out) != 1 || out[0].ID() != "a" {
		t.Fatalf("expected only a, got %d results", len(out))
	}
	if dropped != 2 {
		t.Errorf("dropped = %d, want 2", dropped)
	}

	out, dropped = normalize([]result.Candidate{withLateInteraction("x", -0.5)})
	if len(out) != 0 || dropped != 1 {
		t.Fatalf("expected no results and one dropped when max is not positive, got %d and %d", len(out), dropped)
	}
}
