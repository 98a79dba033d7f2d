package openai_provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/litmaphq/litmap/config"
	"github.com/litmaphq/litmap/internal/analysis"
	"github.com/litmaphq/litmap/models"
)

const defaultBaseURL = "https://api.openai.com/v1"

// UsageFunc receives token counts after each successful model call.
type UsageFunc func(model string, promptTokens, completionTokens int64)

// Client implements the provider boundary against OpenAI's API.
type Client struct {
	apiKey          string
	baseURL         string
	completionModel string
	embeddingModel  string
	temperature     float64
	maxTokens       int
	httpClient      *http.Client
	usage           UsageFunc
}

// Message represents a message in a conversation
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type tokenUsage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage tokenUsage `json:"usage"`
}

// NewClient creates a new OpenAI client. usage may be nil.
func NewClient(cfg config.LLMConfig, usage UsageFunc) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		apiKey:          cfg.APIKey,
		baseURL:         baseURL,
		completionModel: cfg.CompletionModel,
		embeddingModel:  cfg.EmbeddingModel,
		temperature:     cfg.Temperature,
		maxTokens:       cfg.MaxTokens,
		httpClient:      &http.Client{Timeout: cfg.Timeout},
		usage:           usage,
	}
}

func (c *Client) reportUsage(model string, u tokenUsage) {
	if c.usage != nil && u.PromptTokens+u.CompletionTokens > 0 {
		c.usage(model, u.PromptTokens, u.CompletionTokens)
	}
}

// CreateEmbedding generates embeddings for the given texts.
func (c *Client) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(map[string]interface{}{
		"model": c.embeddingModel,
		"input": texts,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/embeddings", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", analysis.ErrEmbeddingUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: API returned status %d", analysis.ErrEmbeddingUnavailable, resp.StatusCode)
	}

	var openaiResp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
		Usage tokenUsage `json:"usage"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&openaiResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	c.reportUsage(c.embeddingModel, openaiResp.Usage)

	vecs := make([][]float32, len(openaiResp.Data))
	for i, d := range openaiResp.Data {
		vecs[i] = d.Embedding
	}
	return vecs, nil
}

// CreateSearchPlan asks the model to turn a research query into a structured
// search plan.
func (c *Client) CreateSearchPlan(ctx context.Context, query string, maxPapers int) (models.SearchPlan, error) {
	prompt := fmt.Sprintf(`Analyze this research query and produce a search plan for academic paper retrieval.

Research Query: "%s"

Return a JSON object with exactly this structure:
{
    "keywords": ["3-6 optimized search keywords"],
    "time_period": "e.g. last 2 years",
    "fields": ["academic fields, e.g. Computer Science"],
    "sources": ["subset of: arxiv, semantic_scholar, openalex, pubmed"],
    "max_papers": %d
}
Do not include any other text or explanation.`, query, maxPapers)

	raw, err := c.complete(ctx, prompt, c.temperature, 0)
	if err != nil {
		return models.SearchPlan{}, err
	}

	var plan models.SearchPlan
	if err := json.Unmarshal([]byte(stripFences(raw)), &plan); err != nil {
		return models.SearchPlan{}, fmt.Errorf("%w: malformed search plan: %v", analysis.ErrGenerationFailed, err)
	}
	return plan, nil
}

// DescribeTheme asks the model for a short name and description of what
// unites a cluster of papers.
func (c *Client) DescribeTheme(ctx context.Context, papers []*models.Paper, query string) (analysis.ThemeLabel, error) {
	var sb strings.Builder
	for i, p := range papers {
		fmt.Fprintf(&sb, "[%d] %s\nAbstract: %s\n\n", i+1, p.Title, truncate(p.Abstract, 250))
	}

	prompt := fmt.Sprintf(`Analyze these %d papers and identify the common theme.

Research Query: "%s"

Papers:
%s
Return a JSON object with exactly this structure:
{
    "name": "2-4 word theme name",
    "description": "1-2 sentence description of what unites these papers"
}
Focus on what makes these papers similar (domain, methodology, application, etc.).
Do not include any other text or explanation.`, len(papers), query, sb.String())

	raw, err := c.complete(ctx, prompt, 0.3, 0)
	if err != nil {
		return analysis.ThemeLabel{}, err
	}

	var label analysis.ThemeLabel
	var parsed struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal([]byte(stripFences(raw)), &parsed); err != nil {
		return analysis.ThemeLabel{}, fmt.Errorf("%w: malformed theme label: %v", analysis.ErrGenerationFailed, err)
	}
	label.Name = parsed.Name
	label.Description = parsed.Description
	if label.Name == "" || label.Description == "" {
		return analysis.ThemeLabel{}, fmt.Errorf("%w: empty theme label", analysis.ErrGenerationFailed)
	}
	return label, nil
}

// SynthesizeSection writes a short synthesis of the papers under one theme.
func (c *Client) SynthesizeSection(ctx context.Context, themeLabel string, papers []*models.Paper, query string) (string, error) {
	prompt := fmt.Sprintf(`You are writing one section of an academic literature review.

Research Query: "%s"
Theme: %s

Papers:
%s
Write 2-3 paragraphs synthesizing what these papers contribute to the theme.
Reference papers by their bracketed number. Be concrete about methods and findings.`,
		query, themeLabel, formatPapersForPrompt(papers))

	return c.complete(ctx, prompt, 0.6, 1000)
}

// GenerateReport writes the final markdown report from pre-synthesized theme
// sections and a citation list.
func (c *Client) GenerateReport(ctx context.Context, query string, paperCount int, themesContent, citationsText string) (string, error) {
	prompt := fmt.Sprintf(`Write a structured markdown research report.

Research Query: "%s"
Papers analyzed: %d

Theme sections (use these as the body, lightly edited for flow):
%s

References (include verbatim as the final section):
%s

Structure: title, executive summary, the theme sections, conclusions, references.`,
		query, paperCount, themesContent, citationsText)

	return c.complete(ctx, prompt, 0.5, c.maxTokens)
}

func (c *Client) complete(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error) {
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}
	body, err := json.Marshal(chatRequest{
		Model:       c.completionModel,
		Messages:    []Message{{Role: "user", Content: prompt}},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", analysis.ErrGenerationFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: API returned status %d", analysis.ErrGenerationFailed, resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	c.reportUsage(c.completionModel, parsed.Usage)
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", analysis.ErrGenerationFailed)
	}
	return parsed.Choices[0].Message.Content, nil
}

func formatPapersForPrompt(papers []*models.Paper) string {
	var sb strings.Builder
	for i, p := range papers {
		authors := strings.Join(firstN(p.Authors, 5), ", ")
		fmt.Fprintf(&sb, "**[%d] %s**\nAuthors: %s\nSource: %s\nRelevance: %.2f\nAbstract: %s\n\n",
			i+1, p.Title, authors, p.Source, p.RelevanceScore, truncate(p.Abstract, 1200))
	}
	return sb.String()
}

func firstN(ss []string, n int) []string {
	if len(ss) <= n {
		return ss
	}
	return ss[:n]
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

// stripFences removes markdown code fences the model sometimes wraps JSON in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
