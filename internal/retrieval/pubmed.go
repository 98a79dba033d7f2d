package retrieval

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/litmaphq/litmap/config"
	"github.com/litmaphq/litmap/models"
)

const pubmedBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

// PubMedClient queries NCBI E-Utilities in two steps: esearch resolves the
// query to PubMed IDs, efetch returns the full records for those IDs.
// An email identifies the caller per NCBI usage policy.
type PubMedClient struct {
	baseURL    string
	email      string
	httpClient *http.Client
	logger     *log.Logger
}

func NewPubMedClient(cfg config.RetrievalConfig) *PubMedClient {
	return &PubMedClient{
		baseURL:    pubmedBaseURL,
		email:      cfg.PubMedEmail,
		httpClient: &http.Client{Timeout: 20 * time.Second},
		logger:     log.New(log.Writer(), "[PUBMED] ", log.LstdFlags),
	}
}

func (c *PubMedClient) Name() string { return "pubmed" }

type esearchResponse struct {
	ESearchResult struct {
		IDList []string `json:"idlist"`
	} `json:"esearchresult"`
}

type pubmedArticleSet struct {
	Articles []pubmedArticle `xml:"PubmedArticle"`
}

type pubmedArticle struct {
	Citation struct {
		PMID    string `xml:"PMID"`
		Article struct {
			Title    string `xml:"ArticleTitle"`
			Abstract struct {
				Text []string `xml:"AbstractText"`
			} `xml:"Abstract"`
			AuthorList struct {
				Authors []struct {
					LastName string `xml:"LastName"`
					ForeName string `xml:"ForeName"`
				} `xml:"Author"`
			} `xml:"AuthorList"`
			ELocationIDs []struct {
				Type  string `xml:"EIdType,attr"`
				Value string `xml:",chardata"`
			} `xml:"ELocationID"`
			Journal struct {
				PubDate struct {
					Year  string `xml:"Year"`
					Month string `xml:"Month"`
				} `xml:"JournalIssue>PubDate"`
			} `xml:"Journal"`
		} `xml:"Article"`
	} `xml:"MedlineCitation"`
}

func (c *PubMedClient) Search(ctx context.Context, query string, maxResults int) ([]*models.Paper, error) {
	if maxResults <= 0 {
		maxResults = 20
	}

	ids, err := c.esearch(ctx, query, maxResults)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	papers, err := c.efetch(ctx, ids)
	if err != nil {
		return nil, err
	}
	c.logger.Printf("retrieved %d papers for %q", len(papers), query)
	return papers, nil
}

func (c *PubMedClient) esearch(ctx context.Context, query string, maxResults int) ([]string, error) {
	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("term", query)
	params.Set("retmax", fmt.Sprintf("%d", maxResults))
	params.Set("retmode", "json")
	params.Set("sort", "relevance")
	if c.email != "" {
		params.Set("email", c.email)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/esearch.fcgi?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pubmed esearch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pubmed esearch returned status %d", resp.StatusCode)
	}

	var parsed esearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to parse esearch response: %w", err)
	}
	return parsed.ESearchResult.IDList, nil
}

func (c *PubMedClient) efetch(ctx context.Context, ids []string) ([]*models.Paper, error) {
	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("id", strings.Join(ids, ","))
	params.Set("retmode", "xml")
	if c.email != "" {
		params.Set("email", c.email)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/efetch.fcgi?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pubmed efetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pubmed efetch returned status %d", resp.StatusCode)
	}

	var set pubmedArticleSet
	if err := xml.NewDecoder(resp.Body).Decode(&set); err != nil {
		return nil, fmt.Errorf("failed to parse efetch response: %w", err)
	}

	papers := make([]*models.Paper, 0, len(set.Articles))
	for _, a := range set.Articles {
		papers = append(papers, parsePubmedArticle(a))
	}
	return papers, nil
}

func parsePubmedArticle(a pubmedArticle) *models.Paper {
	art := a.Citation.Article

	authors := make([]string, 0, len(art.AuthorList.Authors))
	for _, au := range art.AuthorList.Authors {
		name := strings.TrimSpace(au.ForeName + " " + au.LastName)
		if name != "" {
			authors = append(authors, name)
		}
	}

	var doi string
	for _, el := range art.ELocationIDs {
		if el.Type == "doi" {
			doi = strings.TrimSpace(el.Value)
			break
		}
	}

	var published time.Time
	if year, err := strconv.Atoi(art.Journal.PubDate.Year); err == nil {
		month := time.January
		if m, err := time.Parse("Jan", art.Journal.PubDate.Month); err == nil {
			month = m.Month()
		}
		published = time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	}

	return &models.Paper{
		ID:          "pmid:" + a.Citation.PMID,
		Title:       art.Title,
		Authors:     authors,
		Abstract:    strings.Join(art.Abstract.Text, " "),
		PublishedAt: published,
		URL:         "https://pubmed.ncbi.nlm.nih.gov/" + a.Citation.PMID + "/",
		DOI:         doi,
		Source:      "pubmed",
	}
}
