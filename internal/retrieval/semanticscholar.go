package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/litmaphq/litmap/config"
	"github.com/litmaphq/litmap/models"
)

const (
	semanticScholarBaseURL = "https://api.semanticscholar.org/graph/v1"
	semanticScholarFields  = "paperId,title,authors,abstract,year,citationCount,externalIds,url,openAccessPdf"
	semanticScholarLimit   = 100 // API maximum per request
)

// SemanticScholarClient queries the Semantic Scholar Graph API. An API key is
// optional and only raises the rate limit.
type SemanticScholarClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *log.Logger
}

func NewSemanticScholarClient(cfg config.RetrievalConfig) *SemanticScholarClient {
	return &SemanticScholarClient{
		baseURL:    semanticScholarBaseURL,
		apiKey:     cfg.SemanticScholarAPIKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     log.New(log.Writer(), "[S2] ", log.LstdFlags),
	}
}

func (c *SemanticScholarClient) Name() string { return "semantic_scholar" }

type s2Response struct {
	Data []s2Paper `json:"data"`
}

type s2Paper struct {
	PaperID       string `json:"paperId"`
	Title         string `json:"title"`
	Abstract      string `json:"abstract"`
	Year          int    `json:"year"`
	CitationCount int    `json:"citationCount"`
	URL           string `json:"url"`
	Authors       []struct {
		Name string `json:"name"`
	} `json:"authors"`
	ExternalIDs struct {
		DOI string `json:"DOI"`
	} `json:"externalIds"`
	OpenAccessPdf struct {
		URL string `json:"url"`
	} `json:"openAccessPdf"`
}

func (c *SemanticScholarClient) Search(ctx context.Context, query string, maxResults int) ([]*models.Paper, error) {
	if maxResults <= 0 || maxResults > semanticScholarLimit {
		maxResults = semanticScholarLimit
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("limit", fmt.Sprintf("%d", maxResults))
	params.Set("fields", semanticScholarFields)

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/paper/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("semantic scholar request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("semantic scholar returned status %d", resp.StatusCode)
	}

	var parsed s2Response
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to parse semantic scholar response: %w", err)
	}

	papers := make([]*models.Paper, 0, len(parsed.Data))
	for _, item := range parsed.Data {
		papers = append(papers, c.parseResult(item))
	}
	c.logger.Printf("retrieved %d papers for %q", len(papers), query)
	return papers, nil
}

func (c *SemanticScholarClient) parseResult(item s2Paper) *models.Paper {
	authors := make([]string, 0, len(item.Authors))
	for _, a := range item.Authors {
		authors = append(authors, a.Name)
	}

	pageURL := item.URL
	if pageURL == "" {
		pageURL = "https://www.semanticscholar.org/paper/" + item.PaperID
	}

	var published time.Time
	if item.Year > 0 {
		published = time.Date(item.Year, time.January, 1, 0, 0, 0, 0, time.UTC)
	}

	return &models.Paper{
		ID:          item.PaperID,
		Title:       item.Title,
		Authors:     authors,
		Abstract:    item.Abstract,
		PublishedAt: published,
		URL:         pageURL,
		PDFURL:      item.OpenAccessPdf.URL,
		DOI:         item.ExternalIDs.DOI,
		Source:      "semantic_scholar",
		Citations:   item.CitationCount,
	}
}
