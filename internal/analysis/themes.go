package analysis

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/litmaphq/litmap/models"
)

// DefaultClusterSeed fixes the k-means random source so repeated runs over
// the same papers produce the same theme grouping.
const DefaultClusterSeed = 42

// ThemeSynthesizer groups ranked papers into 2-4 labeled themes scored by
// relevance to the query. Cluster labeling goes through the Summarizer
// boundary; when it fails, themes get deterministic fallback names.
type ThemeSynthesizer struct {
	embedder   Embedder
	summarizer Summarizer
	seed       int64
	logger     *log.Logger
}

// NewThemeSynthesizer creates a ThemeSynthesizer with the default cluster seed.
func NewThemeSynthesizer(embedder Embedder, summarizer Summarizer) *ThemeSynthesizer {
	return &ThemeSynthesizer{
		embedder:   embedder,
		summarizer: summarizer,
		seed:       DefaultClusterSeed,
		logger:     log.New(log.Writer(), "[THEMES] ", log.LstdFlags),
	}
}

// WithSeed overrides the cluster seed. Pinning the seed keeps theme grouping
// reproducible for a given paper set.
func (t *ThemeSynthesizer) WithSeed(seed int64) *ThemeSynthesizer {
	t.seed = seed
	return t
}

// ExtractThemes clusters papers by embedding similarity and returns named,
// scored themes sorted descending by relevance.
//
// A theme's final score is max(normalized cluster score, average paper
// relevance). The two operands are on the same [0,1] scale only when the
// papers were scored by the local cosine path; the hybrid index uses its own
// scale, and the max is taken anyway for compatibility with how relevance has
// always been reported. See DESIGN.md.
func (t *ThemeSynthesizer) ExtractThemes(ctx context.Context, papers []*models.Paper, query string) ([]models.Theme, error) {
	if len(papers) == 0 {
		return nil, nil
	}

	abstracts := make([]string, len(papers))
	for i, p := range papers {
		abstracts[i] = embeddableText(p)
	}

	embeddings, err := t.embedder.CreateEmbedding(ctx, abstracts)
	var queryEmbedding []float32
	if err == nil {
		var qvecs [][]float32
		qvecs, err = t.embedder.CreateEmbedding(ctx, []string{query})
		if err == nil && len(qvecs) == 1 {
			queryEmbedding = qvecs[0]
		} else if err == nil {
			err = fmt.Errorf("%w: expected 1 query vector, got %d", ErrEmbeddingUnavailable, len(qvecs))
		}
	}
	if err != nil {
		t.logger.Printf("Embedding generation failed for themes, returning catch-all: %v", err)
		return []models.Theme{t.catchAllTheme(papers)}, nil
	}

	// 2-4 themes scaling with paper count. For N <= 2 clustering degenerates
	// to one singleton per paper.
	k := len(papers) / 3
	if k < 2 {
		k = 2
	}
	if k > 4 {
		k = 4
	}

	clusters, err := Cluster(embeddings, k, t.seed)
	if err != nil {
		return nil, fmt.Errorf("extract themes: %w", err)
	}

	// Iterate clusters in index order so output order (before the final sort)
	// is deterministic.
	clusterIDs := make([]int, 0, len(clusters))
	for id := range clusters {
		clusterIDs = append(clusterIDs, id)
	}
	sort.Ints(clusterIDs)

	rawScores := make([]float64, len(clusterIDs))
	var maxRaw float64
	for i, id := range clusterIDs {
		var sum float64
		for _, m := range clusters[id] {
			sim, serr := CosineSimilarity(embeddings[m], queryEmbedding)
			if serr != nil {
				return nil, fmt.Errorf("extract themes: %w", serr)
			}
			sum += sim
		}
		rawScores[i] = sum / float64(len(clusters[id]))
		if rawScores[i] > maxRaw {
			maxRaw = rawScores[i]
		}
	}

	themes := make([]models.Theme, 0, len(clusterIDs))
	for i, id := range clusterIDs {
		members := clusters[id]
		clusterPapers := make([]*models.Paper, len(members))
		ids := make([]string, len(members))
		var relevanceSum float64
		for j, m := range members {
			clusterPapers[j] = papers[m]
			ids[j] = papers[m].ID
			relevanceSum += papers[m].RelevanceScore
		}
		avgRelevance := relevanceSum / float64(len(members))

		normalized := 0.0
		if maxRaw > 0 {
			normalized = rawScores[i] / maxRaw
		}

		label := t.describe(ctx, clusterPapers, query)

		score := normalized
		if avgRelevance > score {
			score = avgRelevance
		}
		themes = append(themes, models.Theme{
			Name:           label.Name,
			Description:    label.Description,
			PaperIDs:       ids,
			RelevanceScore: score,
		})
	}

	sort.SliceStable(themes, func(i, j int) bool {
		return themes[i].RelevanceScore > themes[j].RelevanceScore
	})

	t.logger.Printf("Extracted %d themes via clustering", len(themes))
	return themes, nil
}

// describe labels a cluster via the summarizer, with a deterministic fallback
// so a theme is never left unnamed.
func (t *ThemeSynthesizer) describe(ctx context.Context, papers []*models.Paper, query string) ThemeLabel {
	label, err := t.summarizer.DescribeTheme(ctx, papers, query)
	if err == nil && label.Name != "" && label.Description != "" {
		return label
	}
	if err != nil {
		t.logger.Printf("Theme labeling failed, using fallback name: %v", err)
	}
	return ThemeLabel{
		Name:        fmt.Sprintf("Theme of %d Papers", len(papers)),
		Description: fmt.Sprintf("Papers discussing related aspects of %s", query),
	}
}

func (t *ThemeSynthesizer) catchAllTheme(papers []*models.Paper) models.Theme {
	ids := make([]string, len(papers))
	for i, p := range papers {
		ids[i] = p.ID
	}
	return models.Theme{
		Name:           "General Findings",
		Description:    "Combined findings from all papers",
		PaperIDs:       ids,
		RelevanceScore: 0.5,
	}
}
