// Package search wraps the SerpAPI Google-search endpoint used by the
// research stage's search_internet tool.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"patentwatch/internal/config"
	"patentwatch/internal/logger"
)

// ResultUnavailable is the fixed tool-result text fed back to the model when
// a search cannot be completed. Search failures never abort a research round.
const ResultUnavailable = "暂时无法获取SerpAPI搜索结果"

type Client struct {
	apiKey      string
	baseURL     string
	resultCount int
	httpClient  *http.Client
}

func NewClient(cfg config.SearchConfig) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("SERP_API_KEY not configured")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://serpapi.com/search.json"
	}
	count := cfg.ResultCount
	if count <= 0 {
		count = 30
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		apiKey:      cfg.APIKey,
		baseURL:     baseURL,
		resultCount: count,
		httpClient:  &http.Client{Timeout: timeout},
	}, nil
}

type organicResult struct {
	Snippet string `json:"snippet"`
	Link    string `json:"link"`
}

type apiResponse struct {
	OrganicResults []organicResult `json:"organic_results"`
}

// Search issues one Google search. afterDate, when non-empty, narrows results
// with an "after:<date>" query suffix. The digest is one numbered line per
// hit: "<n>. <snippet> [URL: <link>]".
func (c *Client) Search(ctx context.Context, query, afterDate string) (digest string, urls []string, err error) {
	q := query
	if afterDate != "" {
		q = fmt.Sprintf("%s after:%s", query, afterDate)
	}
	params := url.Values{}
	params.Set("api_key", c.apiKey)
	params.Set("q", q)
	params.Set("engine", "google")
	params.Set("num", fmt.Sprintf("%d", c.resultCount))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", nil, err
	}
	res, err := c.httpClient.Do(req)
	if err != nil {
		logger.Log.Errorf("SerpAPI search failed: %v", err)
		return "", nil, err
	}
	defer res.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<20))
	if res.StatusCode >= 400 {
		err := fmt.Errorf("status code: %d", res.StatusCode)
		logger.Log.Errorf("SerpAPI search failed: %v", err)
		return "", nil, err
	}

	var parsed apiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		logger.Log.Errorf("SerpAPI response decode failed: %v", err)
		return "", nil, err
	}

	lines := make([]string, 0, len(parsed.OrganicResults))
	urls = make([]string, 0, len(parsed.OrganicResults))
	for i, r := range parsed.OrganicResults {
		lines = append(lines, fmt.Sprintf("%d. %s [URL: %s]", i+1, r.Snippet, r.Link))
		urls = append(urls, r.Link)
	}
	return strings.Join(lines, "\n"), urls, nil
}
