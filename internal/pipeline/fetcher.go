package pipeline

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/litmaphq/litmap/internal/retrieval"
	"github.com/litmaphq/litmap/internal/telemetry"
	"github.com/litmaphq/litmap/models"
)

// Fetcher queries the sources named in a search plan concurrently and merges
// the results. A failing source is logged and skipped, never fatal.
type Fetcher struct {
	registry  *retrieval.Registry
	telemetry *telemetry.Telemetry
	logger    *log.Logger
}

func NewFetcher(registry *retrieval.Registry, tel *telemetry.Telemetry) *Fetcher {
	return &Fetcher{
		registry:  registry,
		telemetry: tel,
		logger:    log.New(log.Writer(), "[FETCHER] ", log.LstdFlags),
	}
}

// FetchPapers retrieves papers from the plan's sources and deduplicates them.
// When every planned source comes back empty, all enabled retrievers are
// tried before giving up.
func (f *Fetcher) FetchPapers(ctx context.Context, plan models.SearchPlan) []*models.Paper {
	query := plan.Query()
	f.logger.Printf("fetching papers: query=%q, sources=%v, max=%d", query, plan.Sources, plan.MaxPapers)

	selected := f.registry.ForSources(plan.Sources)
	papers := f.fetchFrom(ctx, selected, query, plan.MaxPapers)

	if len(papers) == 0 && len(selected) < len(f.registry.All()) {
		f.logger.Printf("no results from planned sources, trying all enabled retrievers")
		papers = f.fetchFrom(ctx, f.registry.All(), query, plan.MaxPapers)
	}

	unique := retrieval.Dedupe(papers)
	f.logger.Printf("total unique papers: %d (from %d raw)", len(unique), len(papers))
	return unique
}

// fetchFrom fans out over the retrievers and merges results in retriever
// order, so deduplication keeps a stable source priority.
func (f *Fetcher) fetchFrom(ctx context.Context, retrievers []retrieval.Retriever, query string, maxResults int) []*models.Paper {
	results := make([][]*models.Paper, len(retrievers))

	var wg sync.WaitGroup
	for i, r := range retrievers {
		wg.Add(1)
		go func(i int, r retrieval.Retriever) {
			defer wg.Done()

			start := time.Now()
			papers, err := r.Search(ctx, query, maxResults)
			f.telemetry.RecordSource(ctx, telemetry.SourceEvent{
				Source:   r.Name(),
				Duration: time.Since(start),
				Success:  err == nil,
				Results:  len(papers),
			})
			if err != nil {
				f.logger.Printf("failed to fetch from %s: %v", r.Name(), err)
				return
			}
			f.logger.Printf("fetched %d papers from %s", len(papers), r.Name())
			results[i] = papers
		}(i, r)
	}
	wg.Wait()

	var all []*models.Paper
	for _, papers := range results {
		all = append(all, papers...)
	}
	return all
}
