// Package retrieval implements the academic paper sources. Each source is a
// Retriever that normalizes its API's results into models.Paper; the Registry
// selects the enabled ones and the planner picks among them by name.
package retrieval

import (
	"context"
	"log"

	"github.com/litmaphq/litmap/config"
	"github.com/litmaphq/litmap/models"
)

// Retriever is an academic paper source.
type Retriever interface {
	// Name returns the source identifier used in search plans.
	Name() string
	// Search runs the query and returns normalized papers.
	Search(ctx context.Context, query string, maxResults int) ([]*models.Paper, error)
}

// Registry holds the configured retrievers.
type Registry struct {
	retrievers []Retriever
	logger     *log.Logger
}

// NewRegistry builds the set of enabled retrievers. ArXiv is always on; the
// other sources are opt-in through configuration. When a cache is provided
// every retriever is wrapped with it.
func NewRegistry(cfg config.RetrievalConfig, cache *Cache) *Registry {
	logger := log.New(log.Writer(), "[RETRIEVAL] ", log.LstdFlags)

	var retrievers []Retriever
	retrievers = append(retrievers, NewArxivClient(cfg))
	if cfg.EnableSemanticScholar {
		retrievers = append(retrievers, NewSemanticScholarClient(cfg))
	}
	if cfg.EnableOpenAlex {
		retrievers = append(retrievers, NewOpenAlexClient(cfg))
	}
	if cfg.EnablePubMed {
		retrievers = append(retrievers, NewPubMedClient(cfg))
	}

	if cache != nil {
		for i, r := range retrievers {
			retrievers[i] = cache.Wrap(r)
		}
	}

	for _, r := range retrievers {
		logger.Printf("retriever enabled: %s", r.Name())
	}
	return &Registry{retrievers: retrievers, logger: logger}
}

// NewStaticRegistry builds a registry around pre-constructed retrievers.
func NewStaticRegistry(retrievers ...Retriever) *Registry {
	return &Registry{
		retrievers: retrievers,
		logger:     log.New(log.Writer(), "[RETRIEVAL] ", log.LstdFlags),
	}
}

// All returns every enabled retriever.
func (reg *Registry) All() []Retriever {
	return reg.retrievers
}

// ForSources returns the retrievers matching the given source names. Unknown
// names are skipped; an empty selection falls back to all enabled retrievers
// so a bad plan never yields zero sources.
func (reg *Registry) ForSources(sources []string) []Retriever {
	byName := make(map[string]Retriever, len(reg.retrievers))
	for _, r := range reg.retrievers {
		byName[r.Name()] = r
	}

	var selected []Retriever
	for _, name := range sources {
		if r, ok := byName[name]; ok {
			selected = append(selected, r)
		} else {
			reg.logger.Printf("plan names unknown or disabled source %q, skipping", name)
		}
	}
	if len(selected) == 0 {
		return reg.retrievers
	}
	return selected
}

// Dedupe removes duplicate papers, preferring DOI as identity and falling
// back to a normalized title. The first occurrence wins, so callers should
// pass papers in source priority order.
func Dedupe(papers []*models.Paper) []*models.Paper {
	seen := make(map[string]bool, len(papers))
	out := make([]*models.Paper, 0, len(papers))
	for _, p := range papers {
		key := p.DOI
		if key == "" {
			key = "title:" + normalizeTitle(p.Title)
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p)
	}
	return out
}

func normalizeTitle(title string) string {
	out := make([]rune, 0, len(title))
	for _, r := range title {
		switch {
		case r >= 'A' && r <= 'Z':
			out = append(out, r+('a'-'A'))
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			out = append(out, r)
		}
	}
	return string(out)
}
