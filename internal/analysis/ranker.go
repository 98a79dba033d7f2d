package analysis

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/litmaphq/litmap/models"
)

// abstractSentinel stands in for papers that arrive without an abstract, so
// they are never embedded as empty strings.
const abstractSentinel = "No abstract available."

// Ranker reduces a candidate set to the top-K papers most relevant to a
// query. It prefers the hybrid search index when one is configured and
// healthy, and falls back to local cosine ranking otherwise. Both boundaries
// are injected at construction so the fallback paths are testable with fakes.
type Ranker struct {
	embedder Embedder
	index    SearchIndex
	logger   *log.Logger
}

// NewRanker creates a Ranker. index may be nil, in which case only the local
// cosine path is used.
func NewRanker(embedder Embedder, index SearchIndex) *Ranker {
	return &Ranker{
		embedder: embedder,
		index:    index,
		logger:   log.New(log.Writer(), "[RANKER] ", log.LstdFlags),
	}
}

// Rank returns at most topK papers sorted descending by relevance score.
//
// Failure policy: an embedding failure degrades to the first topK papers in
// input order, unscored; an index failure (or a result set that reconciles to
// zero known papers) falls back to local cosine ranking. Neither surfaces an
// error. Contract violations (negative topK) do.
func (r *Ranker) Rank(ctx context.Context, papers []*models.Paper, query string, topK int) ([]*models.Paper, error) {
	if topK < 0 {
		return nil, fmt.Errorf("rank: topK must be >= 0, got %d", topK)
	}
	if len(papers) == 0 {
		return nil, nil
	}

	r.logger.Printf("Ranking %d papers, selecting top %d", len(papers), topK)

	abstracts := make([]string, len(papers))
	for i, p := range papers {
		abstracts[i] = embeddableText(p)
	}

	embeddings, err := r.embedder.CreateEmbedding(ctx, abstracts)
	var queryEmbedding []float32
	if err == nil {
		var qvecs [][]float32
		qvecs, err = r.embedder.CreateEmbedding(ctx, []string{query})
		if err == nil && len(qvecs) == 1 {
			queryEmbedding = qvecs[0]
		} else if err == nil {
			err = fmt.Errorf("%w: expected 1 query vector, got %d", ErrEmbeddingUnavailable, len(qvecs))
		}
	}
	if err != nil {
		// Degraded but available beats failing the whole call.
		r.logger.Printf("Embedding generation failed, returning first %d unscored: %v", topK, err)
		return truncate(papers, topK), nil
	}

	if r.index != nil && r.index.Healthy() {
		if ranked, ok := r.rankViaIndex(ctx, papers, embeddings, query, queryEmbedding, topK); ok {
			return ranked, nil
		}
	}

	return r.cosineRank(papers, embeddings, queryEmbedding, topK)
}

// rankViaIndex tries the external hybrid path. It reports ok=false on any
// failure, including hits that match no local paper, so the caller can fall
// back to local ranking.
func (r *Ranker) rankViaIndex(ctx context.Context, papers []*models.Paper, embeddings [][]float32, query string, queryEmbedding []float32, topK int) ([]*models.Paper, bool) {
	if _, err := r.index.Upsert(papers, embeddings); err != nil {
		r.logger.Printf("Index upsert failed, using cosine fallback: %v", err)
		return nil, false
	}
	hits, err := r.index.Query(ctx, query, queryEmbedding, topK)
	if err != nil {
		r.logger.Printf("Index query failed, using cosine fallback: %v", err)
		return nil, false
	}
	if len(hits) == 0 {
		return nil, false
	}

	byID := make(map[string]*models.Paper, len(papers))
	for _, p := range papers {
		byID[p.ID] = p
	}
	matched := make([]*models.Paper, 0, topK)
	for _, h := range hits {
		if len(matched) >= topK {
			break
		}
		p, ok := byID[h.PaperID]
		if !ok {
			continue
		}
		p.RelevanceScore = h.Score
		p.ScoreSource = models.ScoreSourceExternal
		matched = append(matched, p)
	}
	if len(matched) == 0 {
		r.logger.Printf("Index returned %d hits but none matched local papers, using cosine fallback", len(hits))
		return nil, false
	}
	return matched, true
}

// cosineRank scores each paper by cosine similarity to the query embedding
// and keeps the topK. Equal scores preserve input order.
func (r *Ranker) cosineRank(papers []*models.Paper, embeddings [][]float32, queryEmbedding []float32, topK int) ([]*models.Paper, error) {
	ranked := make([]*models.Paper, len(papers))
	for i, p := range papers {
		score, err := CosineSimilarity(embeddings[i], queryEmbedding)
		if err != nil {
			return nil, fmt.Errorf("rank: %w", err)
		}
		p.RelevanceScore = score
		p.ScoreSource = models.ScoreSourceLocal
		ranked[i] = p
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].RelevanceScore > ranked[j].RelevanceScore
	})
	out := truncate(ranked, topK)
	if len(out) > 0 {
		r.logger.Printf("Cosine-ranked %d papers (top score: %.3f)", len(out), out[0].RelevanceScore)
	}
	return out, nil
}

func embeddableText(p *models.Paper) string {
	if p.Abstract == "" {
		return abstractSentinel
	}
	return p.Abstract
}

func truncate(papers []*models.Paper, k int) []*models.Paper {
	if len(papers) <= k {
		return papers
	}
	return papers[:k]
}
