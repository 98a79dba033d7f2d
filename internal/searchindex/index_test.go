package searchindex

import (
	"context"
	"testing"

	"github.com/litmaphq/litmap/models"
)

func testPapers() ([]*models.Paper, [][]float32) {
	papers := []*models.Paper{
		{ID: "p0", Title: "Attention Is All You Need", Abstract: "We propose the transformer, a model architecture based entirely on attention mechanisms."},
		{ID: "p1", Title: "BERT", Abstract: "Deep bidirectional transformers for language understanding."},
		{ID: "p2", Title: "AlphaFold", Abstract: "Highly accurate protein structure prediction."},
	}
	embeddings := [][]float32{
		{1, 0, 0},
		{0.8, 0.2, 0},
		{0, 0, 1},
	}
	return papers, embeddings
}

func TestUpsertAndQuery(t *testing.T) {
	idx, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer idx.Close()

	papers, embeddings := testPapers()
	n, err := idx.Upsert(papers, embeddings)
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 indexed, got %d", n)
	}

	hits, err := idx.Query(context.Background(), "transformer attention", []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(hits) == 0 || len(hits) > 2 {
		t.Fatalf("expected 1-2 hits, got %d", len(hits))
	}
	if hits[0].PaperID != "p0" {
		t.Fatalf("expected p0 to rank first, got %s", hits[0].PaperID)
	}
	for i := 1; i < len(hits); i++ {
		if hits[i].Score > hits[i-1].Score {
			t.Fatalf("hits not sorted descending")
		}
	}
}

func TestUpsertLengthMismatch(t *testing.T) {
	idx, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer idx.Close()

	papers, _ := testPapers()
	if _, err := idx.Upsert(papers, [][]float32{{1}}); err == nil {
		t.Fatalf("expected error for mismatched lengths")
	}
}

func TestQueryEmptyIndex(t *testing.T) {
	idx, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer idx.Close()

	hits, err := idx.Query(context.Background(), "anything", []float32{1, 0, 0}, 5)
	if err != nil {
		t.Fatalf("empty index must not error: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("expected no hits, got %d", len(hits))
	}
}

func TestHealthyLifecycle(t *testing.T) {
	idx, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !idx.Healthy() {
		t.Fatalf("fresh index should be healthy")
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if idx.Healthy() {
		t.Fatalf("closed index should not be healthy")
	}
	if _, err := idx.Query(context.Background(), "q", []float32{1}, 1); err == nil {
		t.Fatalf("expected error querying closed index")
	}
}
