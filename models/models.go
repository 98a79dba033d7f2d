package models

import (
	"errors"
	"time"
)

// ErrReportNotFound is returned when a stored report is not found
var ErrReportNotFound = errors.New("report not found")

// ScoreSource records which scoring regime produced a paper's relevance score.
// External and local scores live on different scales and are never mixed
// within a single ranked list.
type ScoreSource string

const (
	ScoreSourceNone     ScoreSource = ""
	ScoreSourceExternal ScoreSource = "hybrid_index"
	ScoreSourceLocal    ScoreSource = "cosine_fallback"
)

// Paper is a candidate document flowing through the pipeline. RelevanceScore
// is mutable and assigned during ranking; everything else is set by the
// retrieval layer and passed through unchanged.
type Paper struct {
	ID             string      `json:"id"`
	Title          string      `json:"title"`
	Authors        []string    `json:"authors"`
	Abstract       string      `json:"abstract"`
	PublishedAt    time.Time   `json:"published_at"`
	URL            string      `json:"url"`
	PDFURL         string      `json:"pdf_url,omitempty"`
	DOI            string      `json:"doi,omitempty"`
	Source         string      `json:"source"`
	Citations      int         `json:"citations,omitempty"`
	RelevanceScore float64     `json:"relevance_score"`
	ScoreSource    ScoreSource `json:"score_source,omitempty"`
}

// Theme is a named, scored grouping of papers sharing semantic similarity.
type Theme struct {
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	PaperIDs       []string `json:"paper_ids"`
	RelevanceScore float64  `json:"relevance_score"`
}

// SearchPlan is the planner's structured output: what to search for and where.
type SearchPlan struct {
	Keywords   []string `json:"keywords"`
	TimePeriod string   `json:"time_period"`
	Fields     []string `json:"fields"`
	Sources    []string `json:"sources"`
	MaxPapers  int      `json:"max_papers"`
}

// Query returns the search query string built from the plan's keywords.
func (p SearchPlan) Query() string {
	q := ""
	for i, kw := range p.Keywords {
		if i > 0 {
			q += " "
		}
		q += kw
	}
	return q
}

// ResearchReport is the final synthesized output of a pipeline run.
type ResearchReport struct {
	ReportID       string        `json:"report_id"`
	Query          string        `json:"query"`
	PapersAnalyzed int           `json:"papers_analyzed"`
	Markdown       string        `json:"markdown_output"`
	Citations      []string      `json:"citations"`
	Themes         []Theme       `json:"themes"`
	TopPapers      []*Paper      `json:"top_papers"`
	ProcessingTime time.Duration `json:"processing_time"`
	CreatedAt      time.Time     `json:"created_at"`
}

// ProgressEvent is emitted by the orchestrator while a run is in flight.
type ProgressEvent struct {
	Status     string `json:"status"`
	Message    string `json:"message"`
	PaperCount int    `json:"papers_count,omitempty"`
}
