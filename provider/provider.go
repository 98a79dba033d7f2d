package provider

import (
	"context"
	"errors"

	"github.com/litmaphq/litmap/config"
	"github.com/litmaphq/litmap/internal/analysis"
	"github.com/litmaphq/litmap/models"
	openai_provider "github.com/litmaphq/litmap/provider/openai"
)

// Provider is the language-model boundary used across the pipeline: search
// planning, theme labeling, prose synthesis, and embedding generation.
type Provider interface {
	CreateSearchPlan(ctx context.Context, query string, maxPapers int) (models.SearchPlan, error)
	DescribeTheme(ctx context.Context, papers []*models.Paper, query string) (analysis.ThemeLabel, error)
	SynthesizeSection(ctx context.Context, themeLabel string, papers []*models.Paper, query string) (string, error)
	GenerateReport(ctx context.Context, query string, paperCount int, themesContent, citationsText string) (string, error)
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// UsageFunc receives token counts after each successful model call.
type UsageFunc = openai_provider.UsageFunc

// NewProvider creates an LLM provider from configuration. usage may be nil
// when token accounting is not wanted.
func NewProvider(cfg config.LLMConfig, usage UsageFunc) (Provider, error) {
	switch cfg.Type {
	case "", "openai":
		if cfg.APIKey == "" {
			return nil, errors.New("llm.api_key (or OPENAI_API_KEY) not set")
		}
		return openai_provider.NewClient(cfg, usage), nil
	default:
		return nil, errors.New("unsupported LLM provider: " + cfg.Type)
	}
}
