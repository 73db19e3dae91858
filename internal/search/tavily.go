package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Result is one ranked hit from the web-search collaborator.
type Result struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	URL     string `json:"url"`
}

// Response is the collaborator's reply. Answer, when present, is the
// search provider's own generated summary.
type Response struct {
	Results []Result `json:"results"`
	Answer  string   `json:"answer,omitempty"`
	Query   string   `json:"query,omitempty"`
}

// Client talks to a Tavily-style search API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

type searchReq struct {
	Query                    string `json:"query"`
	IncludeAnswer            bool   `json:"include_answer"`
	SearchDepth              string `json:"search_depth"`
	APIKey                   string `json:"api_key"`
	IncludeImages            bool   `json:"include_images"`
	IncludeImageDescriptions bool   `json:"include_image_descriptions"`
}

// Search runs one query. When the provider returns its own answer, it is
// prepended to the result list as a pseudo-source so downstream formatting
// treats it like any other result.
func (c *Client) Search(ctx context.Context, query string, includeImages, includeImageDescriptions bool) (*Response, error) {
	body, err := json.Marshal(searchReq{
		Query:                    query,
		IncludeAnswer:            true,
		SearchDepth:              "advanced",
		APIKey:                   c.apiKey,
		IncludeImages:            includeImages,
		IncludeImageDescriptions: includeImageDescriptions,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		var e struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(raw, &e) == nil && e.Message != "" {
			return nil, fmt.Errorf("search: %s", e.Message)
		}
		return nil, fmt.Errorf("search: status %d", resp.StatusCode)
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if out.Results == nil {
		return nil, fmt.Errorf("search: malformed response")
	}

	if out.Answer != "" {
		out.Results = append([]Result{{
			Title:   "AI Generated Answer",
			Content: out.Answer,
			URL:     "Generated from the search provider's answer",
		}}, out.Results...)
	}

	return &out, nil
}

// FormatResults renders results as numbered source blocks for injection as a
// single system message:
//
//	[Source 1]: <title>
//	<content>
//	URL: <url>
//
// joined with blank lines, in the order returned by Search.
func FormatResults(results []Result) string {
	blocks := make([]string, 0, len(results))
	for i, r := range results {
		blocks = append(blocks, fmt.Sprintf("[Source %d]: %s\n%s\nURL: %s", i+1, r.Title, r.Content, r.URL))
	}
	return strings.Join(blocks, "\n\n")
}
