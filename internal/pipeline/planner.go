// Package pipeline coordinates the research workflow: plan the search, fetch
// papers, rank and theme them, and write the report.
package pipeline

import (
	"context"
	"log"
	"strings"

	"github.com/litmaphq/litmap/config"
	"github.com/litmaphq/litmap/models"
	"github.com/litmaphq/litmap/provider"
)

// Planner turns a natural language research query into a structured search
// plan via the model, with a deterministic fallback when the model fails.
type Planner struct {
	provider provider.Provider
	cfg      config.RetrievalConfig
	logger   *log.Logger
}

func NewPlanner(prov provider.Provider, cfg config.RetrievalConfig) *Planner {
	return &Planner{
		provider: prov,
		cfg:      cfg,
		logger:   log.New(log.Writer(), "[PLANNER] ", log.LstdFlags),
	}
}

// CreateSearchPlan generates a search plan for the query. ArXiv is always
// included as primary source and max papers is capped at twice the configured
// per-query limit.
func (p *Planner) CreateSearchPlan(ctx context.Context, query string) models.SearchPlan {
	p.logger.Printf("creating search plan for %q", query)

	plan, err := p.provider.CreateSearchPlan(ctx, query, p.cfg.MaxPapersPerQuery)
	if err != nil || len(plan.Keywords) == 0 {
		p.logger.Printf("search plan creation failed (%v), using fallback plan", err)
		return p.fallbackPlan(query)
	}

	if !containsSource(plan.Sources, "arxiv") {
		plan.Sources = append([]string{"arxiv"}, plan.Sources...)
	}
	if plan.MaxPapers <= 0 || plan.MaxPapers > p.cfg.MaxPapersPerQuery*2 {
		plan.MaxPapers = p.cfg.MaxPapersPerQuery
	}

	p.logger.Printf("search plan: %d keywords, %d max papers, sources=%v",
		len(plan.Keywords), plan.MaxPapers, plan.Sources)
	return plan
}

func (p *Planner) fallbackPlan(query string) models.SearchPlan {
	keywords := strings.Fields(query)
	if len(keywords) > 5 {
		keywords = keywords[:5]
	}
	return models.SearchPlan{
		Keywords:   keywords,
		TimePeriod: "last 2 years",
		Fields:     []string{"Computer Science"},
		Sources:    []string{"arxiv"},
		MaxPapers:  p.cfg.MaxPapersPerQuery,
	}
}

func containsSource(sources []string, name string) bool {
	for _, s := range sources {
		if s == name {
			return true
		}
	}
	return false
}
