package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/litmaphq/litmap/config"
	"github.com/litmaphq/litmap/models"
)

const openAlexBaseURL = "https://api.openalex.org"

// OpenAlexClient queries the OpenAlex works API. No key is needed; passing a
// mailto address joins the polite pool with higher rate limits.
type OpenAlexClient struct {
	baseURL    string
	mailto     string
	httpClient *http.Client
	logger     *log.Logger
}

func NewOpenAlexClient(cfg config.RetrievalConfig) *OpenAlexClient {
	return &OpenAlexClient{
		baseURL:    openAlexBaseURL,
		mailto:     cfg.OpenAlexMailto,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     log.New(log.Writer(), "[OPENALEX] ", log.LstdFlags),
	}
}

func (c *OpenAlexClient) Name() string { return "openalex" }

type openAlexResponse struct {
	Results []openAlexWork `json:"results"`
}

type openAlexWork struct {
	ID              string           `json:"id"`
	DOI             string           `json:"doi"`
	Title           string           `json:"title"`
	PublicationDate string           `json:"publication_date"`
	CitedByCount    int              `json:"cited_by_count"`
	Authorships     []struct {
		Author struct {
			DisplayName string `json:"display_name"`
		} `json:"author"`
	} `json:"authorships"`
	AbstractInvertedIndex map[string][]int `json:"abstract_inverted_index"`
	PrimaryLocation       struct {
		LandingPageURL string `json:"landing_page_url"`
		PdfURL         string `json:"pdf_url"`
	} `json:"primary_location"`
}

func (c *OpenAlexClient) Search(ctx context.Context, query string, maxResults int) ([]*models.Paper, error) {
	if maxResults <= 0 || maxResults > 200 {
		maxResults = 25
	}

	params := url.Values{}
	params.Set("search", query)
	params.Set("per_page", fmt.Sprintf("%d", maxResults))
	if c.mailto != "" {
		params.Set("mailto", c.mailto)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/works?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openalex request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("openalex returned status %d", resp.StatusCode)
	}

	var parsed openAlexResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to parse openalex response: %w", err)
	}

	papers := make([]*models.Paper, 0, len(parsed.Results))
	for _, w := range parsed.Results {
		papers = append(papers, c.parseWork(w))
	}
	c.logger.Printf("retrieved %d papers for %q", len(papers), query)
	return papers, nil
}

func (c *OpenAlexClient) parseWork(w openAlexWork) *models.Paper {
	authors := make([]string, 0, len(w.Authorships))
	for _, a := range w.Authorships {
		authors = append(authors, a.Author.DisplayName)
	}

	published, _ := time.Parse("2006-01-02", w.PublicationDate)

	pageURL := w.PrimaryLocation.LandingPageURL
	if pageURL == "" {
		pageURL = w.ID
	}

	return &models.Paper{
		ID:          strings.TrimPrefix(w.ID, "https://openalex.org/"),
		Title:       w.Title,
		Authors:     authors,
		Abstract:    invertAbstract(w.AbstractInvertedIndex),
		PublishedAt: published,
		URL:         pageURL,
		PDFURL:      w.PrimaryLocation.PdfURL,
		DOI:         strings.TrimPrefix(w.DOI, "https://doi.org/"),
		Source:      "openalex",
		Citations:   w.CitedByCount,
	}
}

// invertAbstract reconstructs the abstract text from OpenAlex's inverted
// index, which maps each word to the positions it occupies.
func invertAbstract(index map[string][]int) string {
	if len(index) == 0 {
		return ""
	}
	type posWord struct {
		pos  int
		word string
	}
	var entries []posWord
	for word, positions := range index {
		for _, p := range positions {
			entries = append(entries, posWord{pos: p, word: word})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].pos < entries[j].pos })

	words := make([]string, len(entries))
	for i, e := range entries {
		words[i] = e.word
	}
	return strings.Join(words, " ")
}
