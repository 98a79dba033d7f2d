package pipeline

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/litmaphq/litmap/models"
	"github.com/litmaphq/litmap/provider"
)

// Writer synthesizes ranked papers and themes into a markdown research
// report. Every model call has a deterministic fallback so a report is always
// produced.
type Writer struct {
	provider provider.Provider
	logger   *log.Logger
}

func NewWriter(prov provider.Provider) *Writer {
	return &Writer{
		provider: prov,
		logger:   log.New(log.Writer(), "[WRITER] ", log.LstdFlags),
	}
}

// GenerateReport builds the complete research report for the query.
func (w *Writer) GenerateReport(ctx context.Context, query string, papers []*models.Paper, themes []models.Theme) *models.ResearchReport {
	w.logger.Printf("generating report for %q (%d papers)", query, len(papers))

	if len(papers) == 0 {
		return w.emptyReport(query)
	}

	citations := formatCitations(papers)
	citationsText := strings.Join(citations, "\n")

	var themesContent strings.Builder
	if len(themes) > 0 {
		for _, theme := range themes {
			themePapers := selectByID(papers, theme.PaperIDs)
			if len(themePapers) == 0 {
				themePapers = headPapers(papers, 3)
			}
			label := theme.Name + ": " + theme.Description
			section := w.synthesizeSection(ctx, label, themePapers, query)
			fmt.Fprintf(&themesContent, "\n### %s\n%s\n", theme.Name, section)
		}
	} else {
		themesContent.WriteString(w.synthesizeSection(ctx, "General Findings", papers, query))
	}

	markdown, err := w.provider.GenerateReport(ctx, query, len(papers), themesContent.String(), citationsText)
	if err != nil {
		w.logger.Printf("report generation failed: %v", err)
		markdown = fallbackReport(query, papers, citations)
	}

	report := &models.ResearchReport{
		Query:          query,
		PapersAnalyzed: len(papers),
		Markdown:       markdown,
		Citations:      citations,
		Themes:         themes,
		TopPapers:      headPapers(papers, 5),
		CreatedAt:      time.Now(),
	}
	w.logger.Printf("report generated: %d chars, %d citations", len(markdown), len(citations))
	return report
}

func (w *Writer) synthesizeSection(ctx context.Context, themeLabel string, papers []*models.Paper, query string) string {
	section, err := w.provider.SynthesizeSection(ctx, themeLabel, papers, query)
	if err == nil {
		return section
	}
	w.logger.Printf("theme synthesis failed: %v", err)

	titles := make([]string, 0, 3)
	for _, p := range headPapers(papers, 3) {
		titles = append(titles, fmt.Sprintf("%q", p.Title))
	}
	name, _, _ := strings.Cut(themeLabel, ":")
	return fmt.Sprintf("Key papers on %s: %s", name, strings.Join(titles, ", "))
}

func (w *Writer) emptyReport(query string) *models.ResearchReport {
	markdown := fmt.Sprintf("# Research Report: %s\n\n## Summary\n\n"+
		"No relevant papers were found for this query. "+
		"Please try broadening your search terms or checking different data sources.\n", query)
	return &models.ResearchReport{
		Query:     query,
		Markdown:  markdown,
		CreatedAt: time.Now(),
	}
}

// formatCitations renders papers as numbered academic citations matching the
// reference list in generated reports.
func formatCitations(papers []*models.Paper) []string {
	citations := make([]string, 0, len(papers))
	for i, p := range papers {
		authors := strings.Join(headStrings(p.Authors, 3), ", ")
		if len(p.Authors) > 3 {
			authors += " et al."
		}
		year := "n.d."
		if !p.PublishedAt.IsZero() {
			year = p.PublishedAt.Format("2006")
		}
		citations = append(citations, fmt.Sprintf("[%d] %s (%s). %q. %s. %s",
			i+1, authors, year, p.Title, sourceDisplayName(p.Source), p.URL))
	}
	return citations
}

// fallbackReport renders a plain markdown report without the model.
func fallbackReport(query string, papers []*models.Paper, citations []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Research Report: %s\n\n", query)

	minYear, maxYear := 0, 0
	for _, p := range papers {
		if p.PublishedAt.IsZero() {
			continue
		}
		y := p.PublishedAt.Year()
		if minYear == 0 || y < minYear {
			minYear = y
		}
		if y > maxYear {
			maxYear = y
		}
	}
	if minYear > 0 {
		fmt.Fprintf(&sb, "## Summary\nAnalyzed %d papers from %d to %d.\n\n", len(papers), minYear, maxYear)
	} else {
		fmt.Fprintf(&sb, "## Summary\nAnalyzed %d papers.\n\n", len(papers))
	}

	sb.WriteString("## Papers Found\n\n")
	for _, p := range papers {
		fmt.Fprintf(&sb, "### %s\n", p.Title)
		fmt.Fprintf(&sb, "- **Authors**: %s\n", strings.Join(headStrings(p.Authors, 3), ", "))
		fmt.Fprintf(&sb, "- **Relevance**: %.1f%%\n", p.RelevanceScore*100)
		fmt.Fprintf(&sb, "- **Abstract**: %s\n\n", truncateAbstract(p.Abstract, 150))
	}

	sb.WriteString("## References\n")
	sb.WriteString(strings.Join(citations, "\n"))
	return sb.String()
}

// truncateAbstract cuts an abstract at a word limit, preferring to end on a
// sentence boundary when one falls in the last 30% of the allowance.
func truncateAbstract(abstract string, maxWords int) string {
	words := strings.Fields(abstract)
	if len(words) <= maxWords {
		return abstract
	}
	truncated := strings.Join(words[:maxWords], " ")
	for _, punct := range []string{". ", "? ", "! "} {
		if i := strings.LastIndex(truncated, punct); i > (len(truncated)*7)/10 {
			return truncated[:i+1]
		}
	}
	return truncated + "..."
}

func selectByID(papers []*models.Paper, ids []string) []*models.Paper {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []*models.Paper
	for _, p := range papers {
		if want[p.ID] {
			out = append(out, p)
		}
	}
	return out
}

func headPapers(papers []*models.Paper, n int) []*models.Paper {
	if len(papers) <= n {
		return papers
	}
	return papers[:n]
}

func headStrings(ss []string, n int) []string {
	if len(ss) <= n {
		return ss
	}
	return ss[:n]
}

func sourceDisplayName(source string) string {
	parts := strings.Split(source, "_")
	for i, p := range parts {
		if p != "" {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, " ")
}
