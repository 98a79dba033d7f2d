package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/litmaphq/litmap/config"
	"github.com/litmaphq/litmap/internal/analysis"
	"github.com/litmaphq/litmap/internal/retrieval"
	"github.com/litmaphq/litmap/internal/searchindex"
	"github.com/litmaphq/litmap/internal/telemetry"
	"github.com/litmaphq/litmap/models"
	"github.com/litmaphq/litmap/provider"
)

// ProgressFunc receives progress events during a run. Callbacks run on the
// orchestrator goroutine and must not block for long.
type ProgressFunc func(models.ProgressEvent)

// Orchestrator coordinates the research workflow:
//
//  1. Planner turns the query into a search plan.
//  2. Fetcher retrieves papers from the planned sources.
//  3. Ranker and ThemeSynthesizer pick the top papers and group them.
//  4. Writer generates the structured report.
type Orchestrator struct {
	cfg       *config.Config
	provider  provider.Provider
	planner   *Planner
	fetcher   *Fetcher
	writer    *Writer
	telemetry *telemetry.Telemetry
	logger    *log.Logger
}

func NewOrchestrator(cfg *config.Config, prov provider.Provider, registry *retrieval.Registry, tel *telemetry.Telemetry) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		provider:  prov,
		planner:   NewPlanner(prov, cfg.Retrieval),
		fetcher:   NewFetcher(registry, tel),
		writer:    NewWriter(prov),
		telemetry: tel,
		logger:    log.New(log.Writer(), "[ORCHESTRATOR] ", log.LstdFlags),
	}
}

// Research runs the full workflow and returns the report. maxPapers <= 0
// uses the planned limit.
func (o *Orchestrator) Research(ctx context.Context, query string, maxPapers int) (*models.ResearchReport, error) {
	return o.ResearchStream(ctx, query, maxPapers, nil)
}

// ResearchStream runs the full workflow, emitting progress events along the
// way. It fails only when no papers can be found or the context is canceled;
// degraded model or index availability yields a report with fallback content.
func (o *Orchestrator) ResearchStream(ctx context.Context, query string, maxPapers int, progress ProgressFunc) (*models.ResearchReport, error) {
	reportID := uuid.New().String()[:8]
	start := time.Now()
	o.logger.Printf("[%s] starting research: %q", reportID, query)

	emit := func(status, message string, paperCount int) {
		if progress != nil {
			progress(models.ProgressEvent{Status: status, Message: message, PaperCount: paperCount})
		}
	}
	emit("starting", fmt.Sprintf("Initializing research for: %s...", query), 0)

	// Step 1: planning.
	emit("planning", "Creating search plan...", 0)
	plan := o.stagePlan(ctx, query)
	if maxPapers > 0 {
		plan.MaxPapers = maxPapers
	}
	emit("planned", fmt.Sprintf("Plan: %d keywords, sources=%v", len(plan.Keywords), plan.Sources), 0)

	// Step 2: fetching.
	emit("fetching", fmt.Sprintf("Searching for papers max=%d...", plan.MaxPapers), 0)
	papers := o.stageFetch(ctx, plan)
	if len(papers) == 0 {
		o.recordRun(ctx, reportID, query, start, false, 0, 0)
		emit("error", "No papers found matching the criteria.", 0)
		return nil, fmt.Errorf("no papers found for query %q", query)
	}
	emit("fetched", fmt.Sprintf("Fetched %d unique papers", len(papers)), len(papers))

	// Step 3: analysis.
	emit("analyzing", fmt.Sprintf("Analyzing %d papers & extracting themes...", len(papers)), len(papers))
	topPapers, themes, err := o.stageAnalyze(ctx, papers, query)
	if err != nil {
		o.recordRun(ctx, reportID, query, start, false, len(papers), 0)
		emit("error", fmt.Sprintf("Analysis failed: %v", err), len(papers))
		return nil, err
	}
	emit("analyzed", fmt.Sprintf("Identified %d key themes from %d top papers.", len(themes), len(topPapers)), len(topPapers))

	// Step 4: writing.
	emit("writing", "Synthesizing final research report...", len(topPapers))
	report := o.stageWrite(ctx, query, topPapers, themes)
	report.ReportID = reportID
	report.ProcessingTime = time.Since(start)

	o.recordRun(ctx, reportID, query, start, true, len(topPapers), len(themes))
	o.logger.Printf("[%s] finished in %.1fs", reportID, report.ProcessingTime.Seconds())
	emit("complete", "Research complete!", len(topPapers))
	return report, nil
}

func (o *Orchestrator) stagePlan(ctx context.Context, query string) models.SearchPlan {
	start := time.Now()
	plan := o.planner.CreateSearchPlan(ctx, query)
	o.telemetry.RecordStage(ctx, telemetry.StageEvent{Stage: "planning", Duration: time.Since(start), Success: true})
	return plan
}

func (o *Orchestrator) stageFetch(ctx context.Context, plan models.SearchPlan) []*models.Paper {
	start := time.Now()
	papers := o.fetcher.FetchPapers(ctx, plan)
	o.telemetry.RecordStage(ctx, telemetry.StageEvent{Stage: "fetching", Duration: time.Since(start), Success: len(papers) > 0})
	return papers
}

// stageAnalyze ranks the papers with a fresh per-run search index and groups
// the survivors into themes. Only contract violations propagate as errors.
func (o *Orchestrator) stageAnalyze(ctx context.Context, papers []*models.Paper, query string) ([]*models.Paper, []models.Theme, error) {
	start := time.Now()

	var index analysis.SearchIndex
	if idx, err := searchindex.New(); err != nil {
		o.logger.Printf("search index unavailable, ranking locally: %v", err)
	} else {
		defer idx.Close()
		index = idx
	}

	ranker := analysis.NewRanker(o.provider, index)
	topPapers, err := ranker.Rank(ctx, papers, query, o.cfg.Analysis.TopKPapers)
	if err != nil {
		o.telemetry.RecordStage(ctx, telemetry.StageEvent{Stage: "analyzing", Duration: time.Since(start), Success: false})
		return nil, nil, fmt.Errorf("ranking failed: %w", err)
	}

	synth := analysis.NewThemeSynthesizer(o.provider, o.provider).WithSeed(o.cfg.Analysis.ClusterSeed)
	themes, err := synth.ExtractThemes(ctx, topPapers, query)
	if err != nil {
		o.telemetry.RecordStage(ctx, telemetry.StageEvent{Stage: "analyzing", Duration: time.Since(start), Success: false})
		return nil, nil, fmt.Errorf("theme extraction failed: %w", err)
	}

	o.telemetry.RecordStage(ctx, telemetry.StageEvent{Stage: "analyzing", Duration: time.Since(start), Success: true})
	return topPapers, themes, nil
}

func (o *Orchestrator) stageWrite(ctx context.Context, query string, papers []*models.Paper, themes []models.Theme) *models.ResearchReport {
	start := time.Now()
	report := o.writer.GenerateReport(ctx, query, papers, themes)
	o.telemetry.RecordStage(ctx, telemetry.StageEvent{Stage: "writing", Duration: time.Since(start), Success: true})
	return report
}

func (o *Orchestrator) recordRun(ctx context.Context, reportID, query string, start time.Time, success bool, paperCount, themeCount int) {
	o.telemetry.RecordRun(ctx, telemetry.RunEvent{
		ReportID:   reportID,
		Query:      query,
		Duration:   time.Since(start),
		Success:    success,
		PaperCount: paperCount,
		ThemeCount: themeCount,
	})
}
