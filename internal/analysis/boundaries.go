package analysis

import (
	"context"

	"github.com/litmaphq/litmap/models"
)

// Embedder maps text to fixed-length vectors. Vectors within one call share
// the same dimensionality.
type Embedder interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// Hit is a single result from the hybrid search index.
type Hit struct {
	PaperID string
	Score   float64
}

// SearchIndex is the optional hybrid (lexical + vector) ranking boundary.
// Query may return fewer than topK hits; "nothing found" is not an error.
type SearchIndex interface {
	Upsert(papers []*models.Paper, embeddings [][]float32) (int, error)
	Query(ctx context.Context, query string, queryEmbedding []float32, topK int) ([]Hit, error)
	Healthy() bool
}

// ThemeLabel is the summarizer's short name and description for a cluster.
type ThemeLabel struct {
	Name        string
	Description string
}

// Summarizer produces a label for a group of papers relative to a query.
type Summarizer interface {
	DescribeTheme(ctx context.Context, papers []*models.Paper, query string) (ThemeLabel, error)
}
