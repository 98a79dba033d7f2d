// Package searchindex provides an in-process hybrid search index over
// candidate papers: BM25 text matching via bleve fused with in-memory vector
// similarity using reciprocal-rank fusion. It implements the ranking
// engine's SearchIndex boundary.
package searchindex

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/blevesearch/bleve"

	"github.com/litmaphq/litmap/internal/analysis"
	"github.com/litmaphq/litmap/models"
)

const rrfK = 60 // reciprocal-rank-fusion constant

type indexedPaper struct {
	Title    string `json:"title"`
	Abstract string `json:"abstract"`
}

// Index holds a memory-only bleve index plus the papers' embedding vectors.
// Safe for concurrent use.
type Index struct {
	mu      sync.RWMutex
	bleve   bleve.Index
	vectors map[string][]float32
	closed  bool
	logger  *log.Logger
}

// New creates an empty in-memory hybrid index.
func New() (*Index, error) {
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("searchindex: %w", err)
	}
	return &Index{
		bleve:   idx,
		vectors: make(map[string][]float32),
		logger:  log.New(log.Writer(), "[INDEX] ", log.LstdFlags),
	}, nil
}

// Upsert indexes papers and their embeddings. Partial success is allowed;
// the returned count is the number of papers actually indexed.
func (x *Index) Upsert(papers []*models.Paper, embeddings [][]float32) (int, error) {
	if len(papers) != len(embeddings) {
		return 0, fmt.Errorf("searchindex: %d papers but %d embeddings", len(papers), len(embeddings))
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.closed {
		return 0, fmt.Errorf("searchindex: index closed")
	}

	indexed := 0
	for i, p := range papers {
		doc := indexedPaper{Title: p.Title, Abstract: p.Abstract}
		if err := x.bleve.Index(p.ID, doc); err != nil {
			x.logger.Printf("Failed to index paper %s: %v", p.ID, err)
			continue
		}
		x.vectors[p.ID] = embeddings[i]
		indexed++
	}
	return indexed, nil
}

// Query runs lexical and vector searches and fuses them with RRF, returning
// at most topK hits sorted descending by fused score. Fewer than topK hits
// is normal for small corpora; an empty result is not an error.
func (x *Index) Query(ctx context.Context, query string, queryEmbedding []float32, topK int) ([]analysis.Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.closed {
		return nil, fmt.Errorf("searchindex: index closed")
	}

	lexical, err := x.lexicalSearch(query, topK)
	if err != nil {
		return nil, err
	}
	vector, err := x.vectorSearch(queryEmbedding, topK)
	if err != nil {
		return nil, err
	}
	return fuseRRF(lexical, vector, topK), nil
}

// Healthy reports whether the index can serve queries.
func (x *Index) Healthy() bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.bleve != nil && !x.closed
}

// Close releases the underlying bleve index.
func (x *Index) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.closed {
		return nil
	}
	x.closed = true
	return x.bleve.Close()
}

type rankedHit struct {
	id   string
	rank int
}

func (x *Index) lexicalSearch(query string, k int) ([]rankedHit, error) {
	q := bleve.NewMatchQuery(query)
	req := bleve.NewSearchRequestOptions(q, k*3, 0, false)
	res, err := x.bleve.Search(req)
	if err != nil {
		return nil, fmt.Errorf("searchindex: bm25 search: %w", err)
	}
	var out []rankedHit
	for i, hit := range res.Hits {
		out = append(out, rankedHit{id: hit.ID, rank: i + 1})
		if len(out) >= k {
			break
		}
	}
	return out, nil
}

func (x *Index) vectorSearch(queryEmbedding []float32, k int) ([]rankedHit, error) {
	type scored struct {
		id    string
		score float64
	}
	scoreds := make([]scored, 0, len(x.vectors))
	for id, vec := range x.vectors {
		if len(vec) != len(queryEmbedding) {
			// Vectors from a different embedding model generation; skip
			// rather than failing the whole query.
			continue
		}
		s, err := analysis.CosineSimilarity(queryEmbedding, vec)
		if err != nil {
			return nil, err
		}
		scoreds = append(scoreds, scored{id: id, score: s})
	}
	sort.Slice(scoreds, func(i, j int) bool {
		if scoreds[i].score != scoreds[j].score {
			return scoreds[i].score > scoreds[j].score
		}
		return scoreds[i].id < scoreds[j].id
	})
	var out []rankedHit
	for i, sc := range scoreds {
		out = append(out, rankedHit{id: sc.id, rank: i + 1})
		if len(out) >= k {
			break
		}
	}
	return out, nil
}

func fuseRRF(a, b []rankedHit, k int) []analysis.Hit {
	fused := map[string]float64{}
	add := func(list []rankedHit) {
		for _, h := range list {
			fused[h.id] += 1.0 / float64(rrfK+h.rank)
		}
	}
	add(a)
	add(b)

	out := make([]analysis.Hit, 0, len(fused))
	for id, score := range fused {
		out = append(out, analysis.Hit{PaperID: id, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].PaperID < out[j].PaperID
	})
	if len(out) > k {
		out = out[:k]
	}
	return out
}
