package retrieval

import (
	"context"
	"encoding/xml"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/litmaphq/litmap/config"
	"github.com/litmaphq/litmap/models"
)

const arxivBaseURL = "http://export.arxiv.org/api/query"

// ArxivClient queries the arXiv Atom API. It is the primary source and is
// always enabled. arXiv asks for a polite delay between requests, which the
// client enforces across calls.
type ArxivClient struct {
	baseURL    string
	maxResults int
	delay      time.Duration
	httpClient *http.Client
	logger     *log.Logger

	mu       sync.Mutex // serializes request pacing across goroutines
	lastCall time.Time
}

func NewArxivClient(cfg config.RetrievalConfig) *ArxivClient {
	return &ArxivClient{
		baseURL:    arxivBaseURL,
		maxResults: cfg.ArxivMaxResults,
		delay:      cfg.ArxivDelay,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     log.New(log.Writer(), "[ARXIV] ", log.LstdFlags),
	}
}

func (c *ArxivClient) Name() string { return "arxiv" }

type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID        string       `xml:"id"`
	Title     string       `xml:"title"`
	Summary   string       `xml:"summary"`
	Published string       `xml:"published"`
	Authors   []atomAuthor `xml:"author"`
	Links     []atomLink   `xml:"link"`
	DOI       string       `xml:"doi"`
}

type atomAuthor struct {
	Name string `xml:"name"`
}

type atomLink struct {
	Href  string `xml:"href,attr"`
	Rel   string `xml:"rel,attr"`
	Title string `xml:"title,attr"`
}

func (c *ArxivClient) Search(ctx context.Context, query string, maxResults int) ([]*models.Paper, error) {
	if maxResults <= 0 || maxResults > c.maxResults {
		maxResults = c.maxResults
	}

	if err := c.waitTurn(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("search_query", "all:"+query)
	params.Set("start", "0")
	params.Set("max_results", fmt.Sprintf("%d", maxResults))
	params.Set("sortBy", "relevance")
	params.Set("sortOrder", "descending")

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("arxiv request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arxiv returned status %d", resp.StatusCode)
	}

	var feed atomFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("failed to parse arxiv feed: %w", err)
	}

	papers := make([]*models.Paper, 0, len(feed.Entries))
	for _, e := range feed.Entries {
		papers = append(papers, c.parseEntry(e))
	}
	c.logger.Printf("retrieved %d papers for %q", len(papers), query)
	return papers, nil
}

// waitTurn enforces the polite inter-request delay. The lock is held through
// the wait so concurrent callers are spaced out instead of racing past the
// same lastCall value.
func (c *ArxivClient) waitTurn(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if wait := c.delay - time.Since(c.lastCall); wait > 0 {
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	c.lastCall = time.Now()
	return nil
}

func (c *ArxivClient) parseEntry(e atomEntry) *models.Paper {
	authors := make([]string, 0, len(e.Authors))
	for _, a := range e.Authors {
		authors = append(authors, a.Name)
	}

	var pdfURL string
	for _, l := range e.Links {
		if l.Title == "pdf" {
			pdfURL = l.Href
			break
		}
	}

	published, _ := time.Parse(time.RFC3339, e.Published)

	return &models.Paper{
		ID:          shortArxivID(e.ID),
		Title:       collapseWhitespace(e.Title),
		Authors:     authors,
		Abstract:    collapseWhitespace(e.Summary),
		PublishedAt: published,
		URL:         e.ID,
		PDFURL:      pdfURL,
		DOI:         e.DOI,
		Source:      "arxiv",
	}
}

// shortArxivID extracts "2301.12345v1" from the full entry URL.
func shortArxivID(entryID string) string {
	if i := strings.LastIndex(entryID, "/abs/"); i >= 0 {
		return entryID[i+len("/abs/"):]
	}
	return entryID
}

// collapseWhitespace normalizes the newline-wrapped text arXiv returns.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
