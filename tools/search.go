package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"
)

// ============================================================================
// BRAVE SEARCH TOOL
// ============================================================================

const braveSearchEndpoint = "https://api.search.brave.com/res/v1/web/search"

// BraveSearchArgs are the arguments for the brave_search tool.
type BraveSearchArgs struct {
	Query     string `json:"query" jsonschema:"required,description=The search query"`
	Count     int    `json:"count,omitempty" jsonschema:"description=Number of results to return (default 10; max 20)"`
	Freshness string `json:"freshness,omitempty" jsonschema:"description=Freshness filter: pd (past day) pw (past week) pm (past month) py (past year)"`
}

// SearchResult is one web result.
type SearchResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
	Age         string `json:"age,omitempty"`
}

// BraveSearchResult is the tool's JSON payload.
type BraveSearchResult struct {
	Results []SearchResult `json:"results"`
	Query   string         `json:"query"`
}

// BraveSearchTool searches the web through the Brave Search API.
type BraveSearchTool struct {
	client *http.Client
	apiKey string
	schema map[string]interface{}
}

// NewBraveSearchTool creates the tool; requires BRAVE_API_KEY.
func NewBraveSearchTool() (*BraveSearchTool, error) {
	apiKey := os.Getenv("BRAVE_API_KEY")
	if apiKey == "" {
		return nil, NewConfigMissingError("brave_search", "BRAVE_API_KEY")
	}
	return &BraveSearchTool{
		client: &http.Client{Timeout: 30 * time.Second},
		apiKey: apiKey,
		schema: ReflectSchema(&BraveSearchArgs{}),
	}, nil
}

func (t *BraveSearchTool) GetName() string {
	return "brave_search"
}

func (t *BraveSearchTool) GetDescription() string {
	return "Searches the web using Brave Search API. Returns relevant search results with titles, URLs, and descriptions."
}

func (t *BraveSearchTool) GetSchema() map[string]interface{} {
	return t.schema
}

func (t *BraveSearchTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	var parsed BraveSearchArgs
	if err := decodeArgs(args, &parsed); err != nil {
		return nil, err
	}

	count := parsed.Count
	if count <= 0 {
		count = 10
	}
	if count > 20 {
		count = 20
	}

	query := url.Values{}
	query.Set("q", parsed.Query)
	query.Set("count", strconv.Itoa(count))
	if parsed.Freshness != "" {
		query.Set("freshness", parsed.Freshness)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, braveSearchEndpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", t.apiKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("Brave API error: %s", string(body))
	}

	var body struct {
		Web struct {
			Results []SearchResult `json:"results"`
		} `json:"web"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("invalid response format: %w", err)
	}

	return BraveSearchResult{
		Results: body.Web.Results,
		Query:   parsed.Query,
	}, nil
}
