package analysis

import (
	"context"
	"errors"
	"testing"

	"github.com/litmaphq/litmap/models"
)

// fakeEmbedder returns canned vectors keyed by input text.
type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
	calls   int
}

func (f *fakeEmbedder) CreateEmbedding(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, txt := range texts {
		v, ok := f.vectors[txt]
		if !ok {
			return nil, errors.New("no canned vector for: " + txt)
		}
		out[i] = v
	}
	return out, nil
}

type fakeIndex struct {
	hits      []Hit
	upsertErr error
	queryErr  error
	healthy   bool
}

func (f *fakeIndex) Upsert(papers []*models.Paper, embeddings [][]float32) (int, error) {
	if f.upsertErr != nil {
		return 0, f.upsertErr
	}
	return len(papers), nil
}

func (f *fakeIndex) Query(_ context.Context, _ string, _ []float32, _ int) ([]Hit, error) {
	return f.hits, f.queryErr
}

func (f *fakeIndex) Healthy() bool { return f.healthy }

func languageModelPapers() ([]*models.Paper, *fakeEmbedder) {
	papers := []*models.Paper{
		{ID: "p0", Title: "Transformers", Abstract: "transformers"},
		{ID: "p1", Title: "Attention", Abstract: "attention"},
		{ID: "p2", Title: "BERT", Abstract: "BERT"},
		{ID: "p3", Title: "GPT", Abstract: "GPT"},
		{ID: "p4", Title: "Language Modeling", Abstract: "language modeling"},
	}
	emb := &fakeEmbedder{vectors: map[string][]float32{
		"transformers":      {1, 0, 0},
		"attention":         {0.9, 0.1, 0},
		"BERT":              {0, 1, 0},
		"GPT":               {0, 0, 1},
		"language modeling": {0.5, 0.5, 0},
		"query":             {1, 0, 0},
	}}
	return papers, emb
}

func TestRankCosineFallbackOrder(t *testing.T) {
	papers, emb := languageModelPapers()
	ranker := NewRanker(emb, nil)

	ranked, err := ranker.Rank(context.Background(), papers, "query", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ranked) != 3 {
		t.Fatalf("expected 3 papers, got %d", len(ranked))
	}
	wantOrder := []string{"p0", "p1", "p4"}
	for i, id := range wantOrder {
		if ranked[i].ID != id {
			t.Fatalf("position %d: got %s, want %s", i, ranked[i].ID, id)
		}
	}
	if ranked[0].RelevanceScore != 1.0 {
		t.Fatalf("expected top score 1.0, got %v", ranked[0].RelevanceScore)
	}
	for _, p := range ranked {
		if p.ScoreSource != models.ScoreSourceLocal {
			t.Fatalf("expected local score source, got %q", p.ScoreSource)
		}
	}
}

func TestRankBound(t *testing.T) {
	papers, emb := languageModelPapers()
	ranker := NewRanker(emb, nil)

	for _, topK := range []int{0, 2, 5, 10} {
		ranked, err := ranker.Rank(context.Background(), papers, "query", topK)
		if err != nil {
			t.Fatalf("topK=%d: unexpected error: %v", topK, err)
		}
		want := topK
		if len(papers) < want {
			want = len(papers)
		}
		if len(ranked) != want {
			t.Fatalf("topK=%d: got %d papers, want %d", topK, len(ranked), want)
		}
	}
}

func TestRankOrderingDescending(t *testing.T) {
	papers, emb := languageModelPapers()
	ranker := NewRanker(emb, nil)

	ranked, err := ranker.Rank(context.Background(), papers, "query", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 1; i < len(ranked); i++ {
		if ranked[i].RelevanceScore > ranked[i-1].RelevanceScore {
			t.Fatalf("not sorted descending at %d: %v > %v", i, ranked[i].RelevanceScore, ranked[i-1].RelevanceScore)
		}
	}
}

func TestRankEmptyInput(t *testing.T) {
	ranker := NewRanker(&fakeEmbedder{}, nil)
	ranked, err := ranker.Rank(context.Background(), nil, "query", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ranked) != 0 {
		t.Fatalf("expected empty result, got %d", len(ranked))
	}
}

func TestRankNegativeTopK(t *testing.T) {
	papers, emb := languageModelPapers()
	ranker := NewRanker(emb, nil)
	if _, err := ranker.Rank(context.Background(), papers, "query", -1); err == nil {
		t.Fatalf("expected error for negative topK")
	}
}

func TestRankDegradedEmbeddingPath(t *testing.T) {
	papers, _ := languageModelPapers()
	emb := &fakeEmbedder{err: ErrEmbeddingUnavailable}
	ranker := NewRanker(emb, nil)

	ranked, err := ranker.Rank(context.Background(), papers, "query", 3)
	if err != nil {
		t.Fatalf("embedding failure must not raise: %v", err)
	}
	if len(ranked) != 3 {
		t.Fatalf("expected first 3 papers, got %d", len(ranked))
	}
	for i, id := range []string{"p0", "p1", "p2"} {
		if ranked[i].ID != id {
			t.Fatalf("position %d: got %s, want %s (input order)", i, ranked[i].ID, id)
		}
		if ranked[i].ScoreSource != models.ScoreSourceNone {
			t.Fatalf("degraded papers must stay unscored, got %q", ranked[i].ScoreSource)
		}
	}
}

func TestRankExternalIndexPath(t *testing.T) {
	papers, emb := languageModelPapers()
	index := &fakeIndex{
		healthy: true,
		hits:    []Hit{{PaperID: "p2", Score: 12.5}, {PaperID: "p0", Score: 7.25}},
	}
	ranker := NewRanker(emb, index)

	ranked, err := ranker.Rank(context.Background(), papers, "query", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ranked) != 2 {
		t.Fatalf("expected 2 reconciled papers, got %d", len(ranked))
	}
	if ranked[0].ID != "p2" || ranked[1].ID != "p0" {
		t.Fatalf("expected index order [p2 p0], got [%s %s]", ranked[0].ID, ranked[1].ID)
	}
	if ranked[0].RelevanceScore != 12.5 {
		t.Fatalf("expected external score copied, got %v", ranked[0].RelevanceScore)
	}
	for _, p := range ranked {
		if p.ScoreSource != models.ScoreSourceExternal {
			t.Fatalf("expected external score source, got %q", p.ScoreSource)
		}
	}
}

func TestRankIndexUnknownIDsFallsBack(t *testing.T) {
	papers, emb := languageModelPapers()
	index := &fakeIndex{
		healthy: true,
		hits:    []Hit{{PaperID: "unknown-1", Score: 3}, {PaperID: "unknown-2", Score: 2}},
	}
	ranker := NewRanker(emb, index)

	ranked, err := ranker.Rank(context.Background(), papers, "query", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ranked) != 3 {
		t.Fatalf("expected cosine fallback with 3 papers, got %d", len(ranked))
	}
	if ranked[0].ID != "p0" || ranked[0].ScoreSource != models.ScoreSourceLocal {
		t.Fatalf("expected local cosine fallback, got %s via %q", ranked[0].ID, ranked[0].ScoreSource)
	}
}

func TestRankIndexFailureFallsBack(t *testing.T) {
	papers, emb := languageModelPapers()
	index := &fakeIndex{healthy: true, queryErr: ErrSearchIndexFailure}
	ranker := NewRanker(emb, index)

	ranked, err := ranker.Rank(context.Background(), papers, "query", 2)
	if err != nil {
		t.Fatalf("index failure must not raise: %v", err)
	}
	if len(ranked) != 2 || ranked[0].ID != "p0" {
		t.Fatalf("expected cosine fallback, got %v", ranked)
	}
}

func TestRankMissingAbstractUsesSentinel(t *testing.T) {
	papers := []*models.Paper{
		{ID: "p0", Abstract: ""},
		{ID: "p1", Abstract: "attention"},
	}
	emb := &fakeEmbedder{vectors: map[string][]float32{
		abstractSentinel: {0, 0, 1},
		"attention":      {1, 0, 0},
		"query":          {1, 0, 0},
	}}
	ranker := NewRanker(emb, nil)

	ranked, err := ranker.Rank(context.Background(), papers, "query", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ranked[0].ID != "p1" {
		t.Fatalf("expected paper with real abstract first, got %s", ranked[0].ID)
	}
}
